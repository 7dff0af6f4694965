package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vasiprashanti/techlearn-api/internal/models"
	"github.com/vasiprashanti/techlearn-api/internal/repository"
)

// NormalizeIdentity canonicalises an examinee email for keys and uniqueness checks.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// MaskIdentity hides most of the local part of an email for logs and responses.
func MaskIdentity(identity string) string {
	at := strings.LastIndex(identity, "@")
	if at <= 0 {
		if identity == "" {
			return ""
		}
		return "***"
	}

	local, domain := identity[:at], identity[at:]
	if len(local) <= 2 {
		return local[:1] + "***" + domain
	}
	return local[:1] + "***" + local[len(local)-1:] + domain
}

func findRoundByAccessKey(ctx context.Context, rounds repository.RoundRepository, accessKey string) (models.Round, error) {
	accessKey = strings.TrimSpace(accessKey)
	if accessKey == "" {
		return models.Round{}, ErrRoundNotFound
	}

	round, err := rounds.GetByAccessKey(ctx, accessKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Round{}, ErrRoundNotFound
		}
		return models.Round{}, err
	}
	return round, nil
}

// checkAccessWindow returns an AccessWindowError when the round cannot be entered at now.
func checkAccessWindow(round models.Round, now time.Time) error {
	if round.IsAccessible(now) {
		return nil
	}

	status := round.TimeStatus(now)
	accessErr := &AccessWindowError{Status: status.Phase, RoundTitle: round.Title, Window: status}
	switch status.Phase {
	case models.RoundPhaseInactive:
		accessErr.err = ErrRoundInactive
	case models.RoundPhaseUpcoming:
		accessErr.err = ErrRoundNotStarted
		accessErr.StartsIn = status.MinutesUntilStart
	default:
		accessErr.err = ErrRoundExpired
	}
	return accessErr
}

func ensureNotSubmitted(ctx context.Context, results repository.ResultStore, roundID uint, identity string) error {
	_, err := results.FindByRoundAndIdentity(ctx, roundID, identity)
	switch {
	case err == nil:
		return ErrDuplicateSubmission
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}
