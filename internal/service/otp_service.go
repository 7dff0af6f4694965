package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vasiprashanti/techlearn-api/internal/dto"
	"github.com/vasiprashanti/techlearn-api/internal/models"
	"github.com/vasiprashanti/techlearn-api/internal/observability"
	"github.com/vasiprashanti/techlearn-api/internal/repository"
	"github.com/vasiprashanti/techlearn-api/pkg/mailer"
	"github.com/vasiprashanti/techlearn-api/pkg/ttlcache"
)

const (
	otpDigits = 6
	// otpExpiryGrace keeps an entry in the store past its expiry so a late attempt is
	// reported as expired rather than unknown.
	otpExpiryGrace = time.Minute
	// sessionGrace lets a verified examinee reach the submission endpoint after the
	// window closes, where the late attempt is rejected with the window status.
	sessionGrace = 30 * time.Minute
)

// OTPService issues and verifies single-use codes scoped to a round and identity.
type OTPService interface {
	Issue(ctx context.Context, accessKey, identity string) (dto.OTPIssuedResponse, error)
	Verify(ctx context.Context, accessKey, identity, code string) (dto.VerifiedSessionResponse, error)
}

// OTPConfig tunes code lifetime and the mismatch allowance.
type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
}

type otpEntry struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type otpService struct {
	rounds   repository.RoundRepository
	results  repository.ResultStore
	cache    ttlcache.Cache
	mailer   mailer.Mailer
	sessions *SessionIssuer
	logger   zerolog.Logger
	tracer   trace.Tracer
	config   OTPConfig
	now      func() time.Time
	generate func() (string, error)
}

// NewOTPService constructs the OTP workflow.
func NewOTPService(rounds repository.RoundRepository, results repository.ResultStore, cache ttlcache.Cache, mail mailer.Mailer, sessions *SessionIssuer, logger zerolog.Logger, cfg OTPConfig) OTPService {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}

	return &otpService{
		rounds:   rounds,
		results:  results,
		cache:    cache,
		mailer:   mail,
		sessions: sessions,
		logger:   logger.With().Str("component", "otp_service").Logger(),
		tracer:   otel.Tracer("github.com/vasiprashanti/techlearn-api/internal/service/otp"),
		config:   cfg,
		now:      time.Now,
		generate: generateCode,
	}
}

func (s *otpService) Issue(ctx context.Context, accessKey, identity string) (dto.OTPIssuedResponse, error) {
	ctx, span := s.tracer.Start(ctx, "otp.issue")
	defer span.End()

	identity = NormalizeIdentity(identity)
	span.SetAttributes(attribute.String("round.access_key", accessKey))

	round, err := s.admit(ctx, accessKey, identity)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return dto.OTPIssuedResponse{}, err
	}

	code, err := s.generate()
	if err != nil {
		span.RecordError(err)
		return dto.OTPIssuedResponse{}, fmt.Errorf("generate code: %w", err)
	}

	now := s.now()
	entry := otpEntry{Code: code, ExpiresAt: now.Add(s.config.TTL)}
	payload, err := json.Marshal(entry)
	if err != nil {
		return dto.OTPIssuedResponse{}, err
	}

	key := otpKey(round.AccessKey, identity)
	if _, err := s.cache.Delete(ctx, attemptsKey(key)); err != nil {
		span.RecordError(err)
		return dto.OTPIssuedResponse{}, fmt.Errorf("reset attempts: %w", err)
	}
	if err := s.cache.Put(ctx, key, payload, s.config.TTL+otpExpiryGrace); err != nil {
		span.RecordError(err)
		return dto.OTPIssuedResponse{}, fmt.Errorf("store code: %w", err)
	}

	message := mailer.Message{
		To:      identity,
		Subject: fmt.Sprintf("Your access code for %s", round.Title),
		Body: fmt.Sprintf("Your verification code for %s is %s.\nIt expires in %d minutes and can be used once.",
			round.Title, code, int(s.config.TTL.Minutes())),
	}
	if err := s.mailer.Send(ctx, message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		if _, delErr := s.cache.Delete(ctx, key); delErr != nil {
			s.logger.Error().Err(delErr).Str("identity", MaskIdentity(identity)).Msg("failed to roll back undelivered code")
		}
		observability.RecordOTPEvent("delivery_failed")
		s.logger.Warn().Err(err).Str("identity", MaskIdentity(identity)).Str("access_key", round.AccessKey).Msg("otp delivery failed")
		return dto.OTPIssuedResponse{}, fmt.Errorf("%w: %v", ErrOTPDelivery, err)
	}

	observability.RecordOTPEvent("issued")
	s.logger.Info().Str("identity", MaskIdentity(identity)).Str("access_key", round.AccessKey).Msg("otp issued")
	span.SetStatus(codes.Ok, "issued")

	return dto.OTPIssuedResponse{Identity: MaskIdentity(identity), ExpiresAt: entry.ExpiresAt}, nil
}

func (s *otpService) Verify(ctx context.Context, accessKey, identity, code string) (dto.VerifiedSessionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "otp.verify")
	defer span.End()

	identity = NormalizeIdentity(identity)
	span.SetAttributes(attribute.String("round.access_key", accessKey))

	round, err := s.admit(ctx, accessKey, identity)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return dto.VerifiedSessionResponse{}, err
	}

	key := otpKey(round.AccessKey, identity)
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ttlcache.ErrMiss) {
			observability.RecordOTPEvent("invalid")
			return dto.VerifiedSessionResponse{}, ErrOTPInvalid
		}
		span.RecordError(err)
		return dto.VerifiedSessionResponse{}, fmt.Errorf("load code: %w", err)
	}

	var entry otpEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		_, _ = s.cache.Delete(ctx, key)
		return dto.VerifiedSessionResponse{}, ErrOTPInvalid
	}

	now := s.now()
	if now.After(entry.ExpiresAt) {
		if err := s.discard(ctx, key); err != nil {
			return dto.VerifiedSessionResponse{}, fmt.Errorf("drop expired code: %w", err)
		}
		observability.RecordOTPEvent("expired")
		return dto.VerifiedSessionResponse{}, ErrOTPExpired
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) != 1 {
		return dto.VerifiedSessionResponse{}, s.recordMismatch(ctx, key, entry.ExpiresAt.Sub(now), identity)
	}

	// Delete reports whether this call removed the entry, so concurrent verifications
	// with the same code cannot both succeed.
	consumed, err := s.cache.Delete(ctx, key)
	if err != nil {
		span.RecordError(err)
		return dto.VerifiedSessionResponse{}, fmt.Errorf("consume code: %w", err)
	}
	if !consumed {
		observability.RecordOTPEvent("invalid")
		return dto.VerifiedSessionResponse{}, ErrOTPInvalid
	}
	if _, err := s.cache.Delete(ctx, attemptsKey(key)); err != nil {
		s.logger.Warn().Err(err).Str("identity", MaskIdentity(identity)).Msg("failed to clear otp attempts")
	}

	expiresAt := round.EndsAt().Add(sessionGrace)
	token, err := s.sessions.Issue(identity, round.AccessKey, expiresAt)
	if err != nil {
		span.RecordError(err)
		return dto.VerifiedSessionResponse{}, err
	}

	observability.RecordOTPEvent("verified")
	s.logger.Info().Str("identity", MaskIdentity(identity)).Str("access_key", round.AccessKey).Msg("otp verified")
	span.SetStatus(codes.Ok, "verified")

	return dto.VerifiedSessionResponse{
		Round:        dto.NewPublicRoundResponse(round, now),
		SessionToken: token,
		ExpiresAt:    expiresAt,
	}, nil
}

// admit runs the checks shared by issue and verify: the round exists, is open, and the
// identity has not submitted yet.
func (s *otpService) admit(ctx context.Context, accessKey, identity string) (models.Round, error) {
	if identity == "" {
		return models.Round{}, ErrInvalidSubmission
	}

	round, err := findRoundByAccessKey(ctx, s.rounds, accessKey)
	if err != nil {
		return models.Round{}, err
	}
	if err := checkAccessWindow(round, s.now()); err != nil {
		return models.Round{}, err
	}
	if err := ensureNotSubmitted(ctx, s.results, round.ID, identity); err != nil {
		return models.Round{}, err
	}
	return round, nil
}

// recordMismatch counts a wrong guess under its own key; the code entry itself is never
// rewritten, so a guess racing a successful verification cannot restore a consumed code.
func (s *otpService) recordMismatch(ctx context.Context, key string, remaining time.Duration, identity string) error {
	observability.RecordOTPEvent("invalid")

	ttl := remaining + otpExpiryGrace
	if ttl < time.Second {
		ttl = time.Second
	}
	attempts, err := s.cache.Incr(ctx, attemptsKey(key), ttl)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if attempts >= int64(s.config.MaxAttempts) {
		if err := s.discard(ctx, key); err != nil {
			return fmt.Errorf("drop exhausted code: %w", err)
		}
		s.logger.Warn().Str("identity", MaskIdentity(identity)).Int64("attempts", attempts).Msg("otp attempts exhausted")
	}
	return ErrOTPInvalid
}

func (s *otpService) discard(ctx context.Context, key string) error {
	if _, err := s.cache.Delete(ctx, key); err != nil {
		return err
	}
	_, err := s.cache.Delete(ctx, attemptsKey(key))
	return err
}

func otpKey(accessKey, identity string) string {
	return fmt.Sprintf("otp:%s:%s", accessKey, identity)
}

func attemptsKey(key string) string {
	return key + ":attempts"
}

func generateCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
