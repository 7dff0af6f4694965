package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/vasiprashanti/techlearn-api/internal/dto"
	"github.com/vasiprashanti/techlearn-api/internal/models"
	"github.com/vasiprashanti/techlearn-api/internal/observability"
	"github.com/vasiprashanti/techlearn-api/internal/repository"
	"github.com/vasiprashanti/techlearn-api/pkg/events"
	"github.com/vasiprashanti/techlearn-api/pkg/judge"
)

// SubmissionService accepts, judges and stores the single submission of an examinee.
type SubmissionService interface {
	Submit(ctx context.Context, accessKey string, req dto.SubmitRequest) (dto.SubmissionSummary, error)
}

// SubmissionConfig bounds how long judging may take per submission.
type SubmissionConfig struct {
	Deadline time.Duration
}

type submissionService struct {
	rounds    repository.RoundRepository
	results   repository.ResultStore
	engine    ScoringEngine
	publisher events.Publisher
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	config    SubmissionConfig
	now       func() time.Time
}

// NewSubmissionService constructs the submission coordinator.
func NewSubmissionService(rounds repository.RoundRepository, results repository.ResultStore, engine ScoringEngine, publisher events.Publisher, validate *validator.Validate, logger zerolog.Logger, cfg SubmissionConfig) SubmissionService {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 2 * time.Minute
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &submissionService{
		rounds:    rounds,
		results:   results,
		engine:    engine,
		publisher: publisher,
		validator: validate,
		logger:    logger.With().Str("component", "submission_service").Logger(),
		tracer:    otel.Tracer("github.com/vasiprashanti/techlearn-api/internal/service/submission"),
		config:    cfg,
		now:       time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, accessKey string, req dto.SubmitRequest) (dto.SubmissionSummary, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit")
	defer span.End()
	span.SetAttributes(attribute.String("round.access_key", accessKey))

	if err := s.validate(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		observability.RecordSubmission("rejected", 0, 0)
		return dto.SubmissionSummary{}, err
	}
	identity := NormalizeIdentity(req.Identity)

	round, err := findRoundByAccessKey(ctx, s.rounds, accessKey)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return dto.SubmissionSummary{}, err
	}
	if err := checkAccessWindow(round, s.now()); err != nil {
		span.SetStatus(codes.Error, err.Error())
		observability.RecordSubmission("rejected", 0, 0)
		return dto.SubmissionSummary{}, err
	}
	if err := ensureNotSubmitted(ctx, s.results, round.ID, identity); err != nil {
		if errors.Is(err, ErrDuplicateSubmission) {
			observability.RecordSubmission("duplicate", 0, 0)
		}
		span.SetStatus(codes.Error, err.Error())
		return dto.SubmissionSummary{}, err
	}

	problems := round.ProblemList()
	requests, err := resolveSolutions(problems, req.Solutions)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		observability.RecordSubmission("rejected", 0, 0)
		return dto.SubmissionSummary{}, err
	}

	evalCtx, cancel := context.WithTimeout(ctx, s.config.Deadline)
	defer cancel()

	evaluations, err := s.engine.EvaluateAll(evalCtx, requests)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		observability.RecordSubmission("timeout", 0, 0)
		s.logger.Warn().Err(err).Str("identity", MaskIdentity(identity)).Str("access_key", round.AccessKey).Msg("submission evaluation aborted")
		return dto.SubmissionSummary{}, err
	}

	summary := buildSummary(round, identity, problems, evaluations, s.now().UTC())
	submission := models.Submission{
		RoundID:          round.ID,
		Identity:         identity,
		TotalScore:       summary.TotalScore,
		MaxPossibleScore: summary.MaxPossibleScore,
		SubmittedAt:      summary.SubmittedAt,
	}
	submission.SetSolutions(buildSolutionResults(evaluations))

	if err := s.results.Save(ctx, &submission); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordSubmission("duplicate", 0, 0)
			span.SetStatus(codes.Error, "duplicate submission")
			return dto.SubmissionSummary{}, ErrDuplicateSubmission
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		observability.RecordSubmission("error", 0, 0)
		s.logger.Error().
			Err(err).
			Str("identity", MaskIdentity(identity)).
			Str("access_key", round.AccessKey).
			Interface("summary", summary).
			Msg("evaluated submission could not be stored")
		return dto.SubmissionSummary{}, fmt.Errorf("store submission: %w", err)
	}

	observability.RecordSubmission("stored", summary.TotalScore, summary.MaxPossibleScore)
	s.publish(ctx, round, submission)
	s.logger.Info().
		Str("identity", MaskIdentity(identity)).
		Str("access_key", round.AccessKey).
		Int("total_score", summary.TotalScore).
		Int("max_possible_score", summary.MaxPossibleScore).
		Msg("submission stored")
	span.SetStatus(codes.Ok, "stored")

	return summary, nil
}

func (s *submissionService) validate(req dto.SubmitRequest) error {
	if s.validator != nil {
		if err := s.validator.Struct(req); err != nil {
			return err
		}
	}
	if len(req.Solutions) == 0 {
		return fmt.Errorf("%w: at least one solution is required", ErrInvalidSubmission)
	}

	seen := make(map[int]struct{}, len(req.Solutions))
	for _, solution := range req.Solutions {
		if solution.ProblemIndex == nil {
			return fmt.Errorf("%w: problem_index is required", ErrInvalidSubmission)
		}
		if _, dup := seen[*solution.ProblemIndex]; dup {
			return fmt.Errorf("%w: problem %d submitted more than once", ErrInvalidSubmission, *solution.ProblemIndex)
		}
		seen[*solution.ProblemIndex] = struct{}{}
	}
	return nil
}

func (s *submissionService) publish(ctx context.Context, round models.Round, submission models.Submission) {
	event := events.SubmissionStored{
		SubmissionID:     submission.ID,
		RoundID:          round.ID,
		AccessKey:        round.AccessKey,
		Identity:         submission.Identity,
		TotalScore:       submission.TotalScore,
		MaxPossibleScore: submission.MaxPossibleScore,
		SubmittedAt:      submission.SubmittedAt,
	}
	if err := s.publisher.PublishSubmissionStored(ctx, event); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to publish submission event")
	}
}

// resolveSolutions maps every solution to its problem and judge language before any
// code is executed.
func resolveSolutions(problems []models.Problem, solutions []dto.SolutionRequest) ([]EvaluationRequest, error) {
	requests := make([]EvaluationRequest, 0, len(solutions))
	for _, solution := range solutions {
		index := *solution.ProblemIndex
		if index < 0 || index >= len(problems) {
			return nil, fmt.Errorf("%w: index %d", ErrProblemNotFound, index)
		}

		language, err := judge.ParseLanguage(solution.Language)
		if err != nil {
			return nil, err
		}

		requests = append(requests, EvaluationRequest{
			ProblemIndex: index,
			Problem:      problems[index],
			Code:         solution.SubmittedCode,
			Language:     language,
		})
	}
	return requests, nil
}

// buildSummary sums per-problem percentages into the total; the average is reported
// alongside and is not persisted.
func buildSummary(round models.Round, identity string, problems []models.Problem, evaluations []ProblemEvaluation, submittedAt time.Time) dto.SubmissionSummary {
	summary := dto.SubmissionSummary{
		RoundID:          round.ID,
		AccessKey:        round.AccessKey,
		Identity:         identity,
		Problems:         make([]dto.ProblemSummary, 0, len(evaluations)),
		MaxPossibleScore: len(problems) * 100,
		SubmittedAt:      submittedAt,
	}

	for _, evaluation := range evaluations {
		summary.TotalScore += evaluation.ScorePercent
		summary.Problems = append(summary.Problems, newProblemSummary(evaluation))
	}
	if len(problems) > 0 {
		summary.AverageScore = math.Round(float64(summary.TotalScore)/float64(len(problems))*100) / 100
	}
	return summary
}

func newProblemSummary(evaluation ProblemEvaluation) dto.ProblemSummary {
	problem := dto.ProblemSummary{
		ProblemIndex:        evaluation.ProblemIndex,
		Title:               evaluation.Title,
		Language:            evaluation.Language.String(),
		TestsPassed:         evaluation.TestsPassed,
		TotalTests:          evaluation.TotalTests,
		IsCorrect:           evaluation.IsCorrect,
		ProblemScorePercent: evaluation.ScorePercent,
		VisibleTests:        make([]dto.VisibleTestResult, 0, len(evaluation.Visible)),
		HiddenTests:         make([]dto.HiddenTestResult, 0, len(evaluation.Hidden)),
	}
	for _, outcome := range evaluation.Visible {
		problem.VisibleTests = append(problem.VisibleTests, dto.VisibleTestResult{
			Input:          outcome.Input,
			ExpectedOutput: outcome.ExpectedOutput,
			ActualOutput:   outcome.ActualOutput,
			Passed:         outcome.Passed,
			Error:          outcome.Error,
		})
	}
	for _, outcome := range evaluation.Hidden {
		problem.HiddenTests = append(problem.HiddenTests, dto.HiddenTestResult{
			Passed: outcome.Passed,
			Error:  outcome.Error,
		})
	}
	return problem
}

func buildSolutionResults(evaluations []ProblemEvaluation) []models.SolutionResult {
	results := make([]models.SolutionResult, 0, len(evaluations))
	for _, evaluation := range evaluations {
		result := models.SolutionResult{
			ProblemIndex:        evaluation.ProblemIndex,
			SubmittedCode:       evaluation.Code,
			Language:            evaluation.Language.String(),
			TestsPassed:         evaluation.TestsPassed,
			TotalTests:          evaluation.TotalTests,
			IsCorrect:           evaluation.IsCorrect,
			ProblemScorePercent: evaluation.ScorePercent,
			VisiblePassed:       make([]bool, 0, len(evaluation.Visible)),
			HiddenPassed:        make([]bool, 0, len(evaluation.Hidden)),
		}
		for _, outcome := range evaluation.Visible {
			result.VisiblePassed = append(result.VisiblePassed, outcome.Passed)
		}
		for _, outcome := range evaluation.Hidden {
			result.HiddenPassed = append(result.HiddenPassed, outcome.Passed)
		}
		results = append(results, result)
	}
	return results
}
