package dto

import (
	"time"

	"github.com/vasiprashanti/techlearn-api/internal/models"
)

// TestCasePayload is a stdin/stdout pair supplied by round authors.
type TestCasePayload struct {
	Input          string `json:"input" validate:"max=65536"`
	ExpectedOutput string `json:"expected_output" validate:"max=65536"`
}

// ProblemRequest describes one problem of a round being created.
type ProblemRequest struct {
	Title        string            `json:"title" validate:"required,max=255"`
	Description  string            `json:"description" validate:"required"`
	Difficulty   string            `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	VisibleTests []TestCasePayload `json:"visible_tests" validate:"len=2,dive"`
	HiddenTests  []TestCasePayload `json:"hidden_tests" validate:"min=1,dive"`
}

// CreateRoundRequest captures the admin payload for scheduling a round.
type CreateRoundRequest struct {
	Title           string           `json:"title" validate:"required,max=255"`
	Organization    string           `json:"organization" validate:"max=255"`
	ScheduledStart  time.Time        `json:"scheduled_start" validate:"required"`
	DurationMinutes int              `json:"duration_minutes" validate:"required,gt=0,lte=1440"`
	Problems        []ProblemRequest `json:"problems" validate:"required,min=1,dive"`
}

// RoundStatusRequest toggles whether a round accepts examinees.
type RoundStatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// CreateRoundResponse is returned once a round has been scheduled.
type CreateRoundResponse struct {
	ID         uint   `json:"id"`
	AccessKey  string `json:"access_key"`
	AccessLink string `json:"access_link"`
}

// PublicProblemResponse exposes a problem without its hidden tests.
type PublicProblemResponse struct {
	Index           int               `json:"problem_index"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Difficulty      string            `json:"difficulty,omitempty"`
	VisibleTests    []TestCasePayload `json:"visible_tests"`
	HiddenTestCount int               `json:"hidden_test_count"`
}

// PublicRoundResponse is the examinee view of a round.
type PublicRoundResponse struct {
	Title           string                  `json:"title"`
	Organization    string                  `json:"organization,omitempty"`
	AccessKey       string                  `json:"access_key"`
	ScheduledStart  time.Time               `json:"scheduled_start"`
	DurationMinutes int                     `json:"duration_minutes"`
	TimeStatus      models.RoundTimeStatus  `json:"time_status"`
	Problems        []PublicProblemResponse `json:"problems"`
}

// NewPublicRoundResponse converts a round into its examinee view.
func NewPublicRoundResponse(round models.Round, now time.Time) PublicRoundResponse {
	problems := round.ProblemList()
	views := make([]PublicProblemResponse, 0, len(problems))
	for index, problem := range problems {
		views = append(views, PublicProblemResponse{
			Index:           index,
			Title:           problem.Title,
			Description:     problem.Description,
			Difficulty:      problem.Difficulty,
			VisibleTests:    newTestCasePayloads(problem.VisibleTests),
			HiddenTestCount: len(problem.HiddenTests),
		})
	}

	return PublicRoundResponse{
		Title:           round.Title,
		Organization:    round.Organization,
		AccessKey:       round.AccessKey,
		ScheduledStart:  round.ScheduledStart,
		DurationMinutes: round.DurationMinutes,
		TimeStatus:      round.TimeStatus(now),
		Problems:        views,
	}
}

// AdminProblemResponse includes hidden tests and is only served to staff.
type AdminProblemResponse struct {
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Difficulty   string            `json:"difficulty,omitempty"`
	VisibleTests []TestCasePayload `json:"visible_tests"`
	HiddenTests  []TestCasePayload `json:"hidden_tests"`
}

// AdminRoundResponse is the staff view of a round.
type AdminRoundResponse struct {
	ID              uint                   `json:"id"`
	Title           string                 `json:"title"`
	Organization    string                 `json:"organization,omitempty"`
	AccessKey       string                 `json:"access_key"`
	AccessLink      string                 `json:"access_link"`
	ScheduledStart  time.Time              `json:"scheduled_start"`
	DurationMinutes int                    `json:"duration_minutes"`
	IsActive        bool                   `json:"is_active"`
	AttemptCount    int                    `json:"attempt_count"`
	Phase           string                 `json:"phase"`
	Problems        []AdminProblemResponse `json:"problems,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// NewAdminRoundResponse converts a round into its staff view. Problems are only
// included when requested so listings stay small.
func NewAdminRoundResponse(round models.Round, accessLink string, now time.Time, includeProblems bool) AdminRoundResponse {
	response := AdminRoundResponse{
		ID:              round.ID,
		Title:           round.Title,
		Organization:    round.Organization,
		AccessKey:       round.AccessKey,
		AccessLink:      accessLink,
		ScheduledStart:  round.ScheduledStart,
		DurationMinutes: round.DurationMinutes,
		IsActive:        round.IsActive,
		AttemptCount:    round.AttemptCount,
		Phase:           round.Phase(now),
		CreatedAt:       round.CreatedAt,
		UpdatedAt:       round.UpdatedAt,
	}

	if includeProblems {
		for _, problem := range round.ProblemList() {
			response.Problems = append(response.Problems, AdminProblemResponse{
				Title:        problem.Title,
				Description:  problem.Description,
				Difficulty:   problem.Difficulty,
				VisibleTests: newTestCasePayloads(problem.VisibleTests),
				HiddenTests:  newTestCasePayloads(problem.HiddenTests),
			})
		}
	}

	return response
}

// ScoreEntry is one row of a round leaderboard.
type ScoreEntry struct {
	Identity         string    `json:"identity"`
	Score            int       `json:"score"`
	MaxPossibleScore int       `json:"max_possible_score"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// NewScoreEntrySlice converts stored submissions into leaderboard rows.
func NewScoreEntrySlice(submissions []models.Submission) []ScoreEntry {
	entries := make([]ScoreEntry, 0, len(submissions))
	for _, submission := range submissions {
		entries = append(entries, ScoreEntry{
			Identity:         submission.Identity,
			Score:            submission.TotalScore,
			MaxPossibleScore: submission.MaxPossibleScore,
			SubmittedAt:      submission.SubmittedAt,
		})
	}
	return entries
}

func newTestCasePayloads(cases []models.TestCase) []TestCasePayload {
	payloads := make([]TestCasePayload, 0, len(cases))
	for _, tc := range cases {
		payloads = append(payloads, TestCasePayload{Input: tc.Input, ExpectedOutput: tc.ExpectedOutput})
	}
	return payloads
}
