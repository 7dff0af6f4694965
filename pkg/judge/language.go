package judge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedLanguage indicates the requested language has no judge mapping.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language identifies a programming language understood by every runner.
type Language string

// Supported languages.
const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageJava       Language = "java"
	LanguageCPP        Language = "cpp"
	LanguageC          Language = "c"
	LanguageGo         Language = "go"
)

type languageSpec struct {
	judge0ID int
	image    string
	fileName string
	command  string
}

var languageCatalog = map[Language]languageSpec{
	LanguagePython: {
		judge0ID: 71,
		image:    "python:3.11-alpine",
		fileName: "main.py",
		command:  "python main.py",
	},
	LanguageJavaScript: {
		judge0ID: 63,
		image:    "node:20-alpine",
		fileName: "main.js",
		command:  "node main.js",
	},
	LanguageJava: {
		judge0ID: 62,
		image:    "eclipse-temurin:21-jdk-alpine",
		fileName: "Main.java",
		command:  "javac Main.java && java Main",
	},
	LanguageCPP: {
		judge0ID: 54,
		image:    "gcc:13",
		fileName: "main.cpp",
		command:  "g++ -O2 -o main main.cpp && ./main",
	},
	LanguageC: {
		judge0ID: 50,
		image:    "gcc:13",
		fileName: "main.c",
		command:  "gcc -O2 -o main main.c && ./main",
	},
	LanguageGo: {
		judge0ID: 60,
		image:    "golang:1.22-alpine",
		fileName: "main.go",
		command:  "go run main.go",
	},
}

var languageAliases = map[string]Language{
	"python":     LanguagePython,
	"python3":    LanguagePython,
	"py":         LanguagePython,
	"javascript": LanguageJavaScript,
	"js":         LanguageJavaScript,
	"node":       LanguageJavaScript,
	"nodejs":     LanguageJavaScript,
	"java":       LanguageJava,
	"cpp":        LanguageCPP,
	"c++":        LanguageCPP,
	"cplusplus":  LanguageCPP,
	"c":          LanguageC,
	"go":         LanguageGo,
	"golang":     LanguageGo,
}

// ParseLanguage resolves a client supplied language name, accepting common aliases.
func ParseLanguage(raw string) (Language, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if language, ok := languageAliases[normalized]; ok {
		return language, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, raw)
}

// SupportedLanguages lists the canonical language names in stable order.
func SupportedLanguages() []Language {
	languages := make([]Language, 0, len(languageCatalog))
	for language := range languageCatalog {
		languages = append(languages, language)
	}
	sort.Slice(languages, func(i, j int) bool { return languages[i] < languages[j] })
	return languages
}

// String returns the canonical language name.
func (l Language) String() string {
	return string(l)
}

// Valid reports whether the language is part of the catalog.
func (l Language) Valid() bool {
	_, ok := languageCatalog[l]
	return ok
}

// Judge0ID returns the numeric language id used by Judge0 compatible services.
func (l Language) Judge0ID() int {
	return languageCatalog[l].judge0ID
}
