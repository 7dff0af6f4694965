package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/vasiprashanti/techlearn-api/internal/models"
)

// ResultStore persists evaluated submissions.
type ResultStore interface {
	Save(ctx context.Context, submission *models.Submission) error
	FindByRoundAndIdentity(ctx context.Context, roundID uint, identity string) (models.Submission, error)
	IncrementAttempts(ctx context.Context, roundID uint) error
	ListScores(ctx context.Context, roundID uint) ([]models.Submission, error)
}

// NewResultStore constructs a result store.
func NewResultStore(db *gorm.DB) ResultStore {
	return &resultStore{db: db}
}

type resultStore struct {
	db *gorm.DB
}

// Save inserts the submission and bumps the round attempt counter atomically. A second
// submission for the same (round, identity) fails with gorm.ErrDuplicatedKey.
func (s *resultStore) Save(ctx context.Context, submission *models.Submission) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Round").Create(submission).Error; err != nil {
			return translate(err)
		}
		return incrementAttempts(tx, submission.RoundID)
	})
}

func (s *resultStore) FindByRoundAndIdentity(ctx context.Context, roundID uint, identity string) (models.Submission, error) {
	var submission models.Submission
	err := s.db.WithContext(ctx).
		Where("round_id = ? AND identity = ?", roundID, identity).
		First(&submission).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (s *resultStore) IncrementAttempts(ctx context.Context, roundID uint) error {
	return incrementAttempts(s.db.WithContext(ctx), roundID)
}

func (s *resultStore) ListScores(ctx context.Context, roundID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	err := s.db.WithContext(ctx).
		Select("id", "round_id", "identity", "total_score", "max_possible_score", "submitted_at").
		Where("round_id = ?", roundID).
		Order("total_score DESC").
		Order("submitted_at ASC").
		Find(&submissions).Error
	return submissions, err
}

// translate normalizes unique violations from drivers that do not implement gorm's
// error translation.
func translate(err error) error {
	if err == nil || errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "unique constraint") || strings.Contains(message, "duplicate key") {
		return gorm.ErrDuplicatedKey
	}
	return err
}
