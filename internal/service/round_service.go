package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vasiprashanti/techlearn-api/internal/dto"
	"github.com/vasiprashanti/techlearn-api/internal/models"
	"github.com/vasiprashanti/techlearn-api/internal/repository"
)

const (
	accessKeySlugLimit   = 48
	accessKeyCreateTries = 3
)

// RoundService manages round scheduling and the public round view.
type RoundService interface {
	Create(ctx context.Context, req dto.CreateRoundRequest) (dto.CreateRoundResponse, error)
	List(ctx context.Context) ([]dto.AdminRoundResponse, error)
	Get(ctx context.Context, id uint) (dto.AdminRoundResponse, error)
	SetActive(ctx context.Context, id uint, active bool) (dto.AdminRoundResponse, error)
	Scores(ctx context.Context, id uint) ([]dto.ScoreEntry, error)
	GetPublic(ctx context.Context, accessKey string) (dto.PublicRoundResponse, error)
	Status(ctx context.Context, accessKey string) (models.RoundTimeStatus, error)
}

// RoundConfig carries the base URL used to build shareable access links.
type RoundConfig struct {
	PublicURL string
}

type roundService struct {
	rounds    repository.RoundRepository
	results   repository.ResultStore
	validator *validator.Validate
	policy    *bluemonday.Policy
	strict    *bluemonday.Policy
	logger    zerolog.Logger
	config    RoundConfig
	now       func() time.Time
	newKey    func(title string) string
}

// NewRoundService constructs the round service.
func NewRoundService(rounds repository.RoundRepository, results repository.ResultStore, validate *validator.Validate, logger zerolog.Logger, cfg RoundConfig) RoundService {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("p", "strong", "em", "code", "pre", "ul", "ol", "li", "br")

	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	return &roundService{
		rounds:    rounds,
		results:   results,
		validator: validate,
		policy:    policy,
		strict:    bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "round_service").Logger(),
		config:    cfg,
		now:       time.Now,
		newKey:    newAccessKey,
	}
}

func (s *roundService) Create(ctx context.Context, req dto.CreateRoundRequest) (dto.CreateRoundResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CreateRoundResponse{}, err
	}

	problems := make([]models.Problem, 0, len(req.Problems))
	for i, p := range req.Problems {
		if len(p.VisibleTests) != models.VisibleTestCount || len(p.HiddenTests) == 0 {
			return dto.CreateRoundResponse{}, fmt.Errorf("%w: problem %d needs %d visible and at least one hidden test", ErrInvalidSubmission, i, models.VisibleTestCount)
		}
		problems = append(problems, models.Problem{
			Title:        strings.TrimSpace(s.strict.Sanitize(p.Title)),
			Description:  s.policy.Sanitize(p.Description),
			Difficulty:   strings.ToLower(strings.TrimSpace(p.Difficulty)),
			VisibleTests: toTestCases(p.VisibleTests),
			HiddenTests:  toTestCases(p.HiddenTests),
		})
	}

	round := models.Round{
		Title:           strings.TrimSpace(s.strict.Sanitize(req.Title)),
		Organization:    strings.TrimSpace(s.strict.Sanitize(req.Organization)),
		ScheduledStart:  req.ScheduledStart.UTC(),
		DurationMinutes: req.DurationMinutes,
		IsActive:        true,
	}
	round.SetProblems(problems)

	var err error
	for attempt := 0; attempt < accessKeyCreateTries; attempt++ {
		round.ID = 0
		round.AccessKey = s.newKey(round.Title)
		err = s.rounds.Create(ctx, &round)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return dto.CreateRoundResponse{}, err
	}

	s.logger.Info().Uint("round_id", round.ID).Str("access_key", round.AccessKey).Int("problems", len(problems)).Msg("round created")

	return dto.CreateRoundResponse{
		ID:         round.ID,
		AccessKey:  round.AccessKey,
		AccessLink: s.accessLink(round.AccessKey),
	}, nil
}

func (s *roundService) List(ctx context.Context) ([]dto.AdminRoundResponse, error) {
	rounds, err := s.rounds.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	responses := make([]dto.AdminRoundResponse, 0, len(rounds))
	for _, round := range rounds {
		responses = append(responses, dto.NewAdminRoundResponse(round, s.accessLink(round.AccessKey), now, false))
	}
	return responses, nil
}

func (s *roundService) Get(ctx context.Context, id uint) (dto.AdminRoundResponse, error) {
	round, err := s.roundByID(ctx, id)
	if err != nil {
		return dto.AdminRoundResponse{}, err
	}
	return dto.NewAdminRoundResponse(round, s.accessLink(round.AccessKey), s.now(), true), nil
}

func (s *roundService) SetActive(ctx context.Context, id uint, active bool) (dto.AdminRoundResponse, error) {
	if err := s.rounds.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AdminRoundResponse{}, ErrRoundNotFound
		}
		return dto.AdminRoundResponse{}, err
	}

	s.logger.Info().Uint("round_id", id).Bool("is_active", active).Msg("round status updated")
	return s.Get(ctx, id)
}

func (s *roundService) Scores(ctx context.Context, id uint) ([]dto.ScoreEntry, error) {
	if _, err := s.roundByID(ctx, id); err != nil {
		return nil, err
	}

	submissions, err := s.results.ListScores(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewScoreEntrySlice(submissions), nil
}

// GetPublic returns round metadata; problem statements are only included while the
// access window is open.
func (s *roundService) GetPublic(ctx context.Context, accessKey string) (dto.PublicRoundResponse, error) {
	round, err := findRoundByAccessKey(ctx, s.rounds, accessKey)
	if err != nil {
		return dto.PublicRoundResponse{}, err
	}

	now := s.now()
	response := dto.NewPublicRoundResponse(round, now)
	if !round.IsAccessible(now) {
		response.Problems = []dto.PublicProblemResponse{}
	}
	return response, nil
}

func (s *roundService) Status(ctx context.Context, accessKey string) (models.RoundTimeStatus, error) {
	round, err := findRoundByAccessKey(ctx, s.rounds, accessKey)
	if err != nil {
		return models.RoundTimeStatus{}, err
	}
	return round.TimeStatus(s.now()), nil
}

func (s *roundService) roundByID(ctx context.Context, id uint) (models.Round, error) {
	round, err := s.rounds.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Round{}, ErrRoundNotFound
		}
		return models.Round{}, err
	}
	return round, nil
}

func (s *roundService) accessLink(accessKey string) string {
	return fmt.Sprintf("%s/rounds/%s", s.config.PublicURL, accessKey)
}

func newAccessKey(title string) string {
	prefix := slug.Make(title)
	if len(prefix) > accessKeySlugLimit {
		prefix = strings.Trim(prefix[:accessKeySlugLimit], "-")
	}
	if prefix == "" {
		prefix = "round"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return prefix + "-" + suffix
}

func toTestCases(payloads []dto.TestCasePayload) []models.TestCase {
	cases := make([]models.TestCase, 0, len(payloads))
	for _, payload := range payloads {
		cases = append(cases, models.TestCase{Input: payload.Input, ExpectedOutput: payload.ExpectedOutput})
	}
	return cases
}
