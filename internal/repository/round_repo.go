package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/vasiprashanti/techlearn-api/internal/models"
)

// RoundRepository exposes persistence helpers for assessment rounds.
type RoundRepository interface {
	Create(ctx context.Context, round *models.Round) error
	GetByID(ctx context.Context, id uint) (models.Round, error)
	GetByAccessKey(ctx context.Context, accessKey string) (models.Round, error)
	List(ctx context.Context) ([]models.Round, error)
	SetActive(ctx context.Context, id uint, active bool) error
	IncrementAttempts(ctx context.Context, id uint) error
}

// NewRoundRepository constructs a round repository.
func NewRoundRepository(db *gorm.DB) RoundRepository {
	return &roundRepository{db: db}
}

type roundRepository struct {
	db *gorm.DB
}

func (r *roundRepository) Create(ctx context.Context, round *models.Round) error {
	return translate(r.db.WithContext(ctx).Create(round).Error)
}

func (r *roundRepository) GetByID(ctx context.Context, id uint) (models.Round, error) {
	var round models.Round
	if err := r.db.WithContext(ctx).First(&round, id).Error; err != nil {
		return models.Round{}, err
	}
	return round, nil
}

func (r *roundRepository) GetByAccessKey(ctx context.Context, accessKey string) (models.Round, error) {
	var round models.Round
	if err := r.db.WithContext(ctx).Where("access_key = ?", accessKey).First(&round).Error; err != nil {
		return models.Round{}, err
	}
	return round, nil
}

func (r *roundRepository) List(ctx context.Context) ([]models.Round, error) {
	var rounds []models.Round
	err := r.db.WithContext(ctx).
		Order("scheduled_start DESC").
		Order("id DESC").
		Find(&rounds).Error
	return rounds, err
}

// SetActive only touches is_active; the access key is never rewritten after creation.
func (r *roundRepository) SetActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.Round{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *roundRepository) IncrementAttempts(ctx context.Context, id uint) error {
	return incrementAttempts(r.db.WithContext(ctx), id)
}

func incrementAttempts(db *gorm.DB, id uint) error {
	result := db.Model(&models.Round{}).
		Where("id = ?", id).
		UpdateColumn("attempt_count", gorm.Expr("attempt_count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
