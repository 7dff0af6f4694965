package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vasiprashanti/techlearn-api/internal/dto"
	"github.com/vasiprashanti/techlearn-api/internal/models"
)

func validRoundRequest(start time.Time) dto.CreateRoundRequest {
	return dto.CreateRoundRequest{
		Title:           "Weekly Contest 12",
		Organization:    "TechLearn",
		ScheduledStart:  start,
		DurationMinutes: 60,
		Problems: []dto.ProblemRequest{{
			Title:        "Sum",
			Description:  "<p>Add two numbers</p><script>alert(1)</script>",
			Difficulty:   "easy",
			VisibleTests: []dto.TestCasePayload{{Input: "1 2", ExpectedOutput: "3"}, {Input: "2 2", ExpectedOutput: "4"}},
			HiddenTests:  []dto.TestCasePayload{{Input: "5 5", ExpectedOutput: "10"}},
		}},
	}
}

func newRoundFixture(rounds *roundRepoStub) *roundService {
	return NewRoundService(rounds, newResultStoreStub(rounds), validator.New(), testLogger(), RoundConfig{PublicURL: "https://techlearn.test/"}).(*roundService)
}

func TestRoundServiceCreateBuildsAccessLink(t *testing.T) {
	rounds := newRoundRepoStub()
	svc := newRoundFixture(rounds)

	resp, err := svc.Create(context.Background(), validRoundRequest(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp.AccessKey, "weekly-contest-12-"))
	require.Len(t, resp.AccessKey, len("weekly-contest-12-")+12)
	require.Equal(t, "https://techlearn.test/rounds/"+resp.AccessKey, resp.AccessLink)

	stored, err := rounds.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.True(t, stored.IsActive)
	problems := stored.ProblemList()
	require.Len(t, problems, 1)
	require.NotContains(t, problems[0].Description, "<script>")
	require.Contains(t, problems[0].Description, "<p>Add two numbers</p>")
	require.Len(t, problems[0].HiddenTests, 1)
}

func TestRoundServiceCreateRetriesAccessKeyCollision(t *testing.T) {
	rounds := newRoundRepoStub()
	rounds.createErr = []error{gorm.ErrDuplicatedKey}
	svc := newRoundFixture(rounds)

	keys := []string{"taken", "fresh"}
	svc.newKey = func(string) string {
		key := keys[0]
		keys = keys[1:]
		return key
	}

	resp, err := svc.Create(context.Background(), validRoundRequest(time.Now()))
	require.NoError(t, err)
	require.Equal(t, "fresh", resp.AccessKey)
}

func TestRoundServiceCreateValidatesTestCounts(t *testing.T) {
	svc := newRoundFixture(newRoundRepoStub())

	req := validRoundRequest(time.Now())
	req.Problems[0].VisibleTests = req.Problems[0].VisibleTests[:1]
	_, err := svc.Create(context.Background(), req)
	var validationErrs validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrs))

	req = validRoundRequest(time.Now())
	req.Problems[0].HiddenTests = nil
	_, err = svc.Create(context.Background(), req)
	require.True(t, errors.As(err, &validationErrs))
}

func TestRoundServicePublicViewHidesProblemsOutsideWindow(t *testing.T) {
	now := time.Now()
	problem := models.Problem{Title: "Sum", VisibleTests: testCases("v", 2), HiddenTests: testCases("h", 2)}
	rounds := newRoundRepoStub(
		testRound("open", now.Add(-time.Minute), problem),
		testRound("soon", now.Add(10*time.Minute), problem),
	)
	svc := newRoundFixture(rounds)
	svc.now = func() time.Time { return now }

	open, err := svc.GetPublic(context.Background(), "open")
	require.NoError(t, err)
	require.Len(t, open.Problems, 1)
	require.Len(t, open.Problems[0].VisibleTests, 2)
	require.Equal(t, 2, open.Problems[0].HiddenTestCount)
	require.Equal(t, models.RoundPhaseActive, open.TimeStatus.Phase)

	soon, err := svc.GetPublic(context.Background(), "soon")
	require.NoError(t, err)
	require.Empty(t, soon.Problems)
	require.Equal(t, 10, soon.TimeStatus.MinutesUntilStart)

	status, err := svc.Status(context.Background(), "soon")
	require.NoError(t, err)
	require.False(t, status.HasStarted)

	_, err = svc.GetPublic(context.Background(), "nope")
	require.ErrorIs(t, err, ErrRoundNotFound)
}

func TestRoundServiceAdminOperations(t *testing.T) {
	now := time.Now()
	rounds := newRoundRepoStub(testRound("weekly", now.Add(-time.Minute), models.Problem{Title: "Sum", VisibleTests: testCases("v", 2), HiddenTests: testCases("h", 1)}))
	svc := newRoundFixture(rounds)

	detail, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, detail.Problems, 1)
	require.Len(t, detail.Problems[0].HiddenTests, 1)

	listed, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Empty(t, listed[0].Problems)

	updated, err := svc.SetActive(context.Background(), 1, false)
	require.NoError(t, err)
	require.False(t, updated.IsActive)
	require.Equal(t, models.RoundPhaseInactive, updated.Phase)
	require.Equal(t, "weekly", updated.AccessKey)

	_, err = svc.SetActive(context.Background(), 42, true)
	require.ErrorIs(t, err, ErrRoundNotFound)

	_, err = svc.Scores(context.Background(), 42)
	require.ErrorIs(t, err, ErrRoundNotFound)
}

func TestRoundServiceScores(t *testing.T) {
	rounds := newRoundRepoStub(testRound("weekly", time.Now(), models.Problem{Title: "Sum"}))
	results := newResultStoreStub(rounds)
	svc := NewRoundService(rounds, results, validator.New(), testLogger(), RoundConfig{})

	require.NoError(t, results.Save(context.Background(), &models.Submission{RoundID: 1, Identity: "a@x.com", TotalScore: 80, MaxPossibleScore: 100}))

	scores, err := svc.Scores(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	require.Equal(t, "a@x.com", scores[0].Identity)
	require.Equal(t, 80, scores[0].Score)
}
