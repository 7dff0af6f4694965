package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vasiprashanti/techlearn-api/internal/config"
	"github.com/vasiprashanti/techlearn-api/internal/database"
	"github.com/vasiprashanti/techlearn-api/internal/handler"
	"github.com/vasiprashanti/techlearn-api/internal/middleware"
	"github.com/vasiprashanti/techlearn-api/internal/models"
	"github.com/vasiprashanti/techlearn-api/internal/observability"
	"github.com/vasiprashanti/techlearn-api/internal/repository"
	"github.com/vasiprashanti/techlearn-api/internal/router"
	"github.com/vasiprashanti/techlearn-api/internal/service"
	"github.com/vasiprashanti/techlearn-api/pkg/events"
	"github.com/vasiprashanti/techlearn-api/pkg/judge"
	"github.com/vasiprashanti/techlearn-api/pkg/mailer"
	"github.com/vasiprashanti/techlearn-api/pkg/ttlcache"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Round{}, &models.Submission{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	otpStore := newOTPStore(ctx, cfg, logger)

	runner, closeRunner := newRunner(ctx, cfg, logger)
	defer closeRunner()

	mail, err := newMailer(cfg, logger)
	if err != nil {
		log.Fatalf("failed to configure mailer: %v", err)
	}

	publisher := events.Publisher(events.NopPublisher{})
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Drain()
		publisher = events.NewNATSPublisher(conn, "")
	}

	sessions, err := service.NewSessionIssuer(cfg.SessionKey)
	if err != nil {
		log.Fatalf("failed to create session issuer: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	roundRepo := repository.NewRoundRepository(db)
	resultStore := repository.NewResultStore(db)

	roundService := service.NewRoundService(roundRepo, resultStore, validate, logger, service.RoundConfig{PublicURL: cfg.PublicURL})
	otpService := service.NewOTPService(roundRepo, resultStore, otpStore, mail, sessions, logger, service.OTPConfig{
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
	})
	engine := service.NewScoringEngine(runner, logger, service.ScoringConfig{
		MaxConcurrency: cfg.JudgeMaxConcurrency,
		TestTimeout:    cfg.JudgeTimeout,
	})
	submissionService := service.NewSubmissionService(roundRepo, resultStore, engine, publisher, validate, logger, service.SubmissionConfig{
		Deadline: cfg.SubmissionDeadline,
	})

	roundHandler := handler.NewRoundHandler(roundService, validate, logger)
	assessmentHandler := handler.NewAssessmentHandler(roundService, otpService, submissionService, sessions, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RoundHandler:      roundHandler,
		AssessmentHandler: assessmentHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		OTPRateLimit:      middleware.RateLimit("otp", cfg.OTPRateLimit, time.Minute),
		MetricsHandler:    observability.MetricsHandler(),
		DB:                db,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("addr", cfg.HTTPAddress()).Str("judge_backend", cfg.JudgeBackend).Msg("server started")

	waitForShutdown(app)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = zerolog.MultiLevelWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("app", cfg.AppName).Logger()
}

func newOTPStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) ttlcache.Cache {
	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		return ttlcache.NewRedis(client, "techlearn:")
	}

	store := ttlcache.NewMemory(logger)
	store.StartSweeper(ctx, cfg.OTPSweepInterval)
	return store
}

func newRunner(ctx context.Context, cfg config.Config, logger zerolog.Logger) (judge.Runner, func()) {
	if cfg.JudgeBackend == "docker" {
		runner, err := judge.NewDockerRunner(judge.DockerConfig{
			Host:          cfg.DockerHost,
			Timeout:       cfg.JudgeTimeout,
			MemoryLimitMB: int64(cfg.CodeRunMemoryMB),
			CPUShares:     int64(cfg.CodeRunCPUShares),
			Logger:        logger,
		})
		if err != nil {
			log.Fatalf("failed to create docker runner: %v", err)
		}
		return runner, func() { _ = runner.Close() }
	}

	client, err := judge.NewJudge0Client(judge.Judge0Config{
		BaseURL:           cfg.JudgeBaseURL,
		AuthToken:         cfg.JudgeAuthToken,
		RapidAPIKey:       cfg.JudgeRapidAPIKey,
		RapidAPIHost:      cfg.JudgeRapidAPIHost,
		Timeout:           cfg.JudgeTimeout,
		RequestsPerSecond: cfg.JudgeRequestsPerSecond,
		Logger:            logger,
	})
	if err != nil {
		log.Fatalf("failed to create judge0 client: %v", err)
	}

	if !cfg.SkipLanguageCheck {
		verifyCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := client.VerifyLanguages(verifyCtx); err != nil {
			log.Fatalf("judge0 language check failed: %v", err)
		}
	}
	return client, func() {}
}

func newMailer(cfg config.Config, logger zerolog.Logger) (mailer.Mailer, error) {
	if cfg.MailDriver == "smtp" {
		return mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.MailHost,
			Port:     cfg.MailPort,
			Username: cfg.MailUsername,
			Password: cfg.MailPassword,
			From:     cfg.MailFrom,
		})
	}
	return mailer.NewLogMailer(logger), nil
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
