package dto

import "time"

// SolutionRequest is the examinee code for one problem.
type SolutionRequest struct {
	ProblemIndex  *int   `json:"problem_index" validate:"required,gte=0"`
	Language      string `json:"language" validate:"required,max=32"`
	SubmittedCode string `json:"submitted_code" validate:"required,max=65536"`
}

// SubmitRequest is the final submission of an examinee for a round.
type SubmitRequest struct {
	Identity  string            `json:"identity" validate:"required,email,max=320"`
	Solutions []SolutionRequest `json:"solutions" validate:"required,min=1,dive"`
}

// VisibleTestResult echoes a visible test with the program output.
type VisibleTestResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Passed         bool   `json:"passed"`
	Error          string `json:"error,omitempty"`
}

// HiddenTestResult reports only the verdict of a hidden test.
type HiddenTestResult struct {
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// ProblemSummary is the evaluation outcome for one submitted problem.
type ProblemSummary struct {
	ProblemIndex        int                 `json:"problem_index"`
	Title               string              `json:"title"`
	Language            string              `json:"language"`
	TestsPassed         int                 `json:"tests_passed"`
	TotalTests          int                 `json:"total_tests"`
	IsCorrect           bool                `json:"is_correct"`
	ProblemScorePercent int                 `json:"problem_score_percent"`
	VisibleTests        []VisibleTestResult `json:"visible_tests"`
	HiddenTests         []HiddenTestResult  `json:"hidden_tests"`
}

// SubmissionSummary is returned after a submission has been judged and stored.
type SubmissionSummary struct {
	RoundID          uint             `json:"round_id"`
	AccessKey        string           `json:"access_key"`
	Identity         string           `json:"identity"`
	Problems         []ProblemSummary `json:"problems"`
	TotalScore       int              `json:"total_score"`
	MaxPossibleScore int              `json:"max_possible_score"`
	AverageScore     float64          `json:"average_score"`
	SubmittedAt      time.Time        `json:"submitted_at"`
}
