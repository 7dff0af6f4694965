package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName    string
	AppEnv     string
	AppPort    string
	LogLevel   string
	LogFile    string
	PublicURL  string
	NATSURL    string
	RedisURL   string
	JWTSecret  string
	SessionKey string

	DatabaseDriver string
	DatabaseURL    string

	OTPTTL           time.Duration
	OTPMaxAttempts   int
	OTPSweepInterval time.Duration
	OTPRateLimit     int

	JudgeBackend           string
	JudgeBaseURL           string
	JudgeAuthToken         string
	JudgeRapidAPIKey       string
	JudgeRapidAPIHost      string
	JudgeTimeout           time.Duration
	JudgeMaxConcurrency    int
	JudgeRequestsPerSecond float64
	SkipLanguageCheck      bool
	DockerHost             string
	CodeRunMemoryMB        int
	CodeRunCPUShares       int

	SubmissionDeadline time.Duration

	MailDriver   string
	MailHost     string
	MailPort     int
	MailUsername string
	MailPassword string
	MailFrom     string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TECHLEARN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "TechLearn Assessment API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("public.base_url", "http://localhost:3000")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("otp.ttl", "10m")
	v.SetDefault("otp.max_attempts", 5)
	v.SetDefault("otp.sweep_interval", "2m")
	v.SetDefault("otp.rate_limit", 5)
	v.SetDefault("judge.backend", "judge0")
	v.SetDefault("judge.timeout", "10s")
	v.SetDefault("judge.max_concurrency", 8)
	v.SetDefault("judge.requests_per_second", 0)
	v.SetDefault("code_run_memory_mb", 256)
	v.SetDefault("code_run_cpu_shares", 512)
	v.SetDefault("assessment.submission_deadline", "2m")
	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.port", 587)

	durations := map[string]time.Duration{}
	for _, key := range []string{"otp.ttl", "otp.sweep_interval", "judge.timeout", "assessment.submission_deadline"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:    v.GetString("app.name"),
		AppEnv:     v.GetString("app.env"),
		AppPort:    v.GetString("app.port"),
		LogLevel:   strings.ToLower(v.GetString("log.level")),
		LogFile:    v.GetString("log.file"),
		PublicURL:  strings.TrimRight(v.GetString("public.base_url"), "/"),
		NATSURL:    v.GetString("nats.url"),
		RedisURL:   v.GetString("redis.url"),
		JWTSecret:  v.GetString("jwt.secret"),
		SessionKey: v.GetString("session.secret"),

		DatabaseDriver: strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:    v.GetString("database.url"),

		OTPTTL:           clampOTPTTL(durations["otp.ttl"]),
		OTPMaxAttempts:   v.GetInt("otp.max_attempts"),
		OTPSweepInterval: durations["otp.sweep_interval"],
		OTPRateLimit:     v.GetInt("otp.rate_limit"),

		JudgeBackend:           strings.ToLower(v.GetString("judge.backend")),
		JudgeBaseURL:           v.GetString("judge.base_url"),
		JudgeAuthToken:         v.GetString("judge.auth_token"),
		JudgeRapidAPIKey:       v.GetString("judge.rapidapi_key"),
		JudgeRapidAPIHost:      v.GetString("judge.rapidapi_host"),
		JudgeTimeout:           durations["judge.timeout"],
		JudgeMaxConcurrency:    v.GetInt("judge.max_concurrency"),
		JudgeRequestsPerSecond: v.GetFloat64("judge.requests_per_second"),
		SkipLanguageCheck:      v.GetBool("judge.skip_language_check"),
		DockerHost:             v.GetString("docker_host"),
		CodeRunMemoryMB:        v.GetInt("code_run_memory_mb"),
		CodeRunCPUShares:       v.GetInt("code_run_cpu_shares"),

		SubmissionDeadline: durations["assessment.submission_deadline"],

		MailDriver:   strings.ToLower(v.GetString("mail.driver")),
		MailHost:     v.GetString("mail.host"),
		MailPort:     v.GetInt("mail.port"),
		MailUsername: v.GetString("mail.username"),
		MailPassword: v.GetString("mail.password"),
		MailFrom:     v.GetString("mail.from"),
	}

	if cfg.JWTSecret == "" || cfg.SessionKey == "" {
		return Config{}, fmt.Errorf("jwt and session secrets must be provided")
	}

	switch cfg.JudgeBackend {
	case "judge0":
		if cfg.JudgeBaseURL == "" {
			return Config{}, fmt.Errorf("judge base url must be provided for the judge0 backend")
		}
	case "docker":
	default:
		return Config{}, fmt.Errorf("unknown judge backend %q", cfg.JudgeBackend)
	}

	if cfg.OTPMaxAttempts <= 0 {
		cfg.OTPMaxAttempts = 5
	}

	if cfg.JudgeMaxConcurrency <= 0 {
		cfg.JudgeMaxConcurrency = 8
	}

	if cfg.CodeRunMemoryMB <= 0 {
		cfg.CodeRunMemoryMB = 256
	}

	if cfg.CodeRunCPUShares <= 0 {
		cfg.CodeRunCPUShares = 512
	}

	return cfg, nil
}

// clampOTPTTL keeps one-time codes valid between five and ten minutes.
func clampOTPTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl < 5*time.Minute:
		return 5 * time.Minute
	case ttl > 10*time.Minute:
		return 10 * time.Minute
	default:
		return ttl
	}
}
