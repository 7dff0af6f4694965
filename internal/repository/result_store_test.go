package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vasiprashanti/techlearn-api/internal/models"
)

func setupAssessmentTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Round{}, &models.Submission{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func seedRound(t *testing.T, db *gorm.DB, key string) models.Round {
	t.Helper()
	round := models.Round{
		Title:           "Weekly Round",
		ScheduledStart:  time.Now().Add(-time.Minute),
		DurationMinutes: 60,
		IsActive:        true,
		AccessKey:       key,
	}
	round.SetProblems([]models.Problem{{Title: "Sum"}})
	require.NoError(t, db.Create(&round).Error)
	return round
}

func TestResultStoreSaveIncrementsAttempts(t *testing.T) {
	db := setupAssessmentTestDB(t)
	store := NewResultStore(db)
	round := seedRound(t, db, "weekly-1")

	submission := models.Submission{RoundID: round.ID, Identity: "a@x.com", TotalScore: 100, MaxPossibleScore: 100, SubmittedAt: time.Now()}
	submission.SetSolutions([]models.SolutionResult{{ProblemIndex: 0, TestsPassed: 3, TotalTests: 3, IsCorrect: true, ProblemScorePercent: 100, HiddenPassed: []bool{true}}})
	require.NoError(t, store.Save(context.Background(), &submission))
	require.NotZero(t, submission.ID)

	var stored models.Round
	require.NoError(t, db.First(&stored, round.ID).Error)
	require.Equal(t, 1, stored.AttemptCount)

	found, err := store.FindByRoundAndIdentity(context.Background(), round.ID, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, []bool{true}, found.SolutionList()[0].HiddenPassed)
}

func TestResultStoreRejectsDuplicateAtStorageLayer(t *testing.T) {
	db := setupAssessmentTestDB(t)
	store := NewResultStore(db)
	round := seedRound(t, db, "weekly-2")

	first := models.Submission{RoundID: round.ID, Identity: "a@x.com", SubmittedAt: time.Now()}
	require.NoError(t, store.Save(context.Background(), &first))

	second := models.Submission{RoundID: round.ID, Identity: "a@x.com", SubmittedAt: time.Now()}
	err := store.Save(context.Background(), &second)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Where("round_id = ?", round.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)

	var stored models.Round
	require.NoError(t, db.First(&stored, round.ID).Error)
	require.Equal(t, 1, stored.AttemptCount, "failed insert must not bump the counter")
}

func TestResultStoreConcurrentDuplicatesStoreOnce(t *testing.T) {
	db := setupAssessmentTestDB(t)
	store := NewResultStore(db)
	round := seedRound(t, db, "weekly-3")

	var saved int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			submission := models.Submission{RoundID: round.ID, Identity: "race@x.com", SubmittedAt: time.Now()}
			if err := store.Save(context.Background(), &submission); err == nil {
				atomic.AddInt32(&saved, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), saved)
}

func TestResultStoreListScoresOrdersByScore(t *testing.T) {
	db := setupAssessmentTestDB(t)
	store := NewResultStore(db)
	round := seedRound(t, db, "weekly-4")

	now := time.Now()
	for identity, score := range map[string]int{"low@x.com": 50, "high@x.com": 175, "mid@x.com": 100} {
		submission := models.Submission{RoundID: round.ID, Identity: identity, TotalScore: score, MaxPossibleScore: 200, SubmittedAt: now}
		require.NoError(t, store.Save(context.Background(), &submission))
	}

	scores, err := store.ListScores(context.Background(), round.ID)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	require.Equal(t, "high@x.com", scores[0].Identity)
	require.Equal(t, "low@x.com", scores[2].Identity)
}

func TestRoundRepositoryAccessKeyAndActivation(t *testing.T) {
	db := setupAssessmentTestDB(t)
	repo := NewRoundRepository(db)
	round := seedRound(t, db, "weekly-5")

	found, err := repo.GetByAccessKey(context.Background(), "weekly-5")
	require.NoError(t, err)
	require.Equal(t, round.ID, found.ID)

	_, err = repo.GetByAccessKey(context.Background(), "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.SetActive(context.Background(), round.ID, false))
	found, err = repo.GetByID(context.Background(), round.ID)
	require.NoError(t, err)
	require.False(t, found.IsActive)
	require.Equal(t, "weekly-5", found.AccessKey)

	require.ErrorIs(t, repo.SetActive(context.Background(), 9999, true), gorm.ErrRecordNotFound)

	duplicate := models.Round{Title: "Copy", ScheduledStart: time.Now(), DurationMinutes: 30, IsActive: true, AccessKey: "weekly-5"}
	require.ErrorIs(t, repo.Create(context.Background(), &duplicate), gorm.ErrDuplicatedKey)
}
