package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vasiprashanti/techlearn-api/internal/models"
	"github.com/vasiprashanti/techlearn-api/pkg/judge"
)

// ScoringEngine judges solutions against a problem's visible and hidden tests.
type ScoringEngine interface {
	Evaluate(ctx context.Context, problem models.Problem, code string, language judge.Language) (ProblemEvaluation, error)
	EvaluateAll(ctx context.Context, requests []EvaluationRequest) ([]ProblemEvaluation, error)
}

// ScoringConfig bounds judge fan-out.
type ScoringConfig struct {
	MaxConcurrency int
	TestTimeout    time.Duration
}

// EvaluationRequest pairs a problem with the code submitted for it.
type EvaluationRequest struct {
	ProblemIndex int
	Problem      models.Problem
	Code         string
	Language     judge.Language
}

// TestOutcome is the verdict for a single test case. Hidden outcomes never carry
// input or expected output.
type TestOutcome struct {
	Input          string
	ExpectedOutput string
	ActualOutput   string
	Passed         bool
	Error          string
}

// ProblemEvaluation aggregates the verdicts for one problem.
type ProblemEvaluation struct {
	ProblemIndex int
	Title        string
	Code         string
	Language     judge.Language
	Visible      []TestOutcome
	Hidden       []TestOutcome
	TestsPassed  int
	TotalTests   int
	IsCorrect    bool
	ScorePercent int
}

type testJob struct {
	request int
	hidden  bool
	index   int
	tc      models.TestCase
}

type scoringEngine struct {
	runner judge.Runner
	config ScoringConfig
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewScoringEngine constructs a scoring engine on top of a judge runner.
func NewScoringEngine(runner judge.Runner, logger zerolog.Logger, cfg ScoringConfig) ScoringEngine {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = 10 * time.Second
	}

	return &scoringEngine{
		runner: runner,
		config: cfg,
		logger: logger.With().Str("component", "scoring_engine").Logger(),
		tracer: otel.Tracer("github.com/vasiprashanti/techlearn-api/internal/service/scoring"),
	}
}

func (e *scoringEngine) Evaluate(ctx context.Context, problem models.Problem, code string, language judge.Language) (ProblemEvaluation, error) {
	results, err := e.EvaluateAll(ctx, []EvaluationRequest{{Problem: problem, Code: code, Language: language}})
	if err != nil {
		return ProblemEvaluation{}, err
	}
	return results[0], nil
}

// EvaluateAll dispatches every test of every request through a bounded pool and
// returns evaluations in request order. A judge failure only fails its own test; an
// expired context fails the whole batch with ErrEvaluationDeadline.
func (e *scoringEngine) EvaluateAll(ctx context.Context, requests []EvaluationRequest) ([]ProblemEvaluation, error) {
	ctx, span := e.tracer.Start(ctx, "scoring.evaluate_all")
	defer span.End()

	evaluations := make([]ProblemEvaluation, len(requests))
	var jobs []testJob
	for i, req := range requests {
		evaluations[i] = ProblemEvaluation{
			ProblemIndex: req.ProblemIndex,
			Title:        req.Problem.Title,
			Code:         req.Code,
			Language:     req.Language,
			Visible:      make([]TestOutcome, len(req.Problem.VisibleTests)),
			Hidden:       make([]TestOutcome, len(req.Problem.HiddenTests)),
		}
		for j, tc := range req.Problem.VisibleTests {
			jobs = append(jobs, testJob{request: i, index: j, tc: tc})
		}
		for j, tc := range req.Problem.HiddenTests {
			jobs = append(jobs, testJob{request: i, hidden: true, index: j, tc: tc})
		}
	}
	span.SetAttributes(attribute.Int("scoring.problems", len(requests)), attribute.Int("scoring.tests", len(jobs)))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.config.MaxConcurrency)
	for _, job := range jobs {
		if groupCtx.Err() != nil {
			break
		}
		job := job
		group.Go(func() error {
			outcome := e.runTest(groupCtx, requests[job.request], job.tc)
			// Each job owns a distinct slot, so no locking is needed.
			if job.hidden {
				evaluations[job.request].Hidden[job.index] = outcome
			} else {
				evaluations[job.request].Visible[job.index] = outcome
			}
			return nil
		})
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "deadline exceeded")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrEvaluationDeadline
		}
		return nil, fmt.Errorf("%w: %v", ErrEvaluationDeadline, err)
	}

	for i := range evaluations {
		tally(&evaluations[i])
	}
	span.SetStatus(codes.Ok, "evaluated")
	return evaluations, nil
}

func (e *scoringEngine) runTest(ctx context.Context, req EvaluationRequest, tc models.TestCase) TestOutcome {
	result := e.runner.Run(ctx, judge.RunRequest{
		Source:   req.Code,
		Language: req.Language,
		Stdin:    tc.Input,
		Timeout:  e.config.TestTimeout,
	})

	outcome := TestOutcome{
		Input:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
		ActualOutput:   result.Output,
	}
	if !result.Accepted {
		outcome.Error = result.ErrorText
		if result.StatusCode < 0 {
			e.logger.Warn().Int("status", result.StatusCode).Str("language", req.Language.String()).Str("error", result.ErrorText).Msg("judge call failed")
		}
		return outcome
	}

	outcome.Passed = judge.NormalizeOutput(result.Output) == judge.NormalizeOutput(tc.ExpectedOutput)
	return outcome
}

func tally(evaluation *ProblemEvaluation) {
	passed := 0
	for _, outcome := range evaluation.Visible {
		if outcome.Passed {
			passed++
		}
	}
	for _, outcome := range evaluation.Hidden {
		if outcome.Passed {
			passed++
		}
	}

	evaluation.TestsPassed = passed
	evaluation.TotalTests = len(evaluation.Visible) + len(evaluation.Hidden)
	evaluation.ScorePercent = scorePercent(passed, evaluation.TotalTests)
	evaluation.IsCorrect = evaluation.TotalTests > 0 && passed == evaluation.TotalTests
}

// scorePercent rounds half away from zero.
func scorePercent(passed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(passed) / float64(total)))
}
