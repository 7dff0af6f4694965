package service

import (
	"errors"
	"fmt"

	"github.com/vasiprashanti/techlearn-api/internal/models"
	"github.com/vasiprashanti/techlearn-api/pkg/judge"
)

var (
	// ErrRoundNotFound indicates no round matches the access key or id.
	ErrRoundNotFound = errors.New("round not found")
	// ErrProblemNotFound indicates a solution references a problem index outside the round.
	ErrProblemNotFound = errors.New("problem not found")
	// ErrDuplicateSubmission indicates the identity already submitted for the round.
	ErrDuplicateSubmission = errors.New("submission already recorded for this identity")
	// ErrOTPInvalid indicates the code is missing, wrong or exhausted.
	ErrOTPInvalid = errors.New("invalid one-time code")
	// ErrOTPExpired indicates the code outlived its TTL.
	ErrOTPExpired = errors.New("one-time code expired")
	// ErrOTPDelivery indicates the code could not be mailed.
	ErrOTPDelivery = errors.New("one-time code could not be delivered")
	// ErrUnsupportedLanguage indicates the solution language has no judge mapping.
	ErrUnsupportedLanguage = judge.ErrUnsupportedLanguage
	// ErrInvalidSubmission indicates a structurally invalid submission or round payload.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrEvaluationDeadline indicates judging did not finish before the submission deadline.
	ErrEvaluationDeadline = errors.New("evaluation deadline exceeded")
	// ErrInvalidSession indicates a missing, expired or mismatched examinee session token.
	ErrInvalidSession = errors.New("invalid examinee session")

	// ErrRoundNotStarted indicates the access window has not opened yet.
	ErrRoundNotStarted = errors.New("round has not started")
	// ErrRoundExpired indicates the access window has closed.
	ErrRoundExpired = errors.New("round has expired")
	// ErrRoundInactive indicates the round was deactivated by staff.
	ErrRoundInactive = errors.New("round is not active")
)

// AccessWindowError reports why a round cannot currently be entered, with the window
// status for client countdowns.
type AccessWindowError struct {
	Status     string
	StartsIn   int
	RoundTitle string
	Window     models.RoundTimeStatus
	err        error
}

func (e *AccessWindowError) Error() string {
	if e.err == nil {
		return "round is " + e.Status
	}
	if e.StartsIn > 0 {
		return fmt.Sprintf("%s: starts in %d minute(s)", e.err, e.StartsIn)
	}
	return e.err.Error()
}

func (e *AccessWindowError) Unwrap() error {
	return e.err
}
