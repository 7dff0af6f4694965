package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/vasiprashanti/techlearn-api/internal/middleware"
	"github.com/vasiprashanti/techlearn-api/internal/service"
	"github.com/vasiprashanti/techlearn-api/internal/utils"
)

// Stable error kinds returned in the error_kind field.
const (
	KindValidation          = "validation_error"
	KindNotFound            = "not_found"
	KindWindowNotStarted    = "access_window_not_started"
	KindWindowExpired       = "access_window_expired"
	KindDuplicateSubmission = "duplicate_submission"
	KindOTP                 = "otp_error"
	KindEvaluationTimeout   = "evaluation_timeout"
	KindDelivery            = "delivery_error"
	KindUnauthorized        = "unauthorized"
	KindInternal            = "internal_error"
)

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Params(name)), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func parseBody(c *fiber.Ctx, target interface{}) error {
	if err := c.BodyParser(target); err != nil {
		return utils.FailKind(c, fiber.StatusBadRequest, KindValidation, "invalid request body", nil)
	}
	return nil
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		field := fieldErr.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		details[field] = fieldErr.Tag()
	}
	return details
}

// respondError maps service errors onto HTTP statuses and error kinds. Unknown errors
// are logged and reported as internal errors without leaking their text.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var (
		validationErrs validator.ValidationErrors
		accessErr      *service.AccessWindowError
	)

	switch {
	case errors.As(err, &validationErrs):
		return utils.FailKind(c, fiber.StatusBadRequest, KindValidation, "validation failed", validationDetails(validationErrs))
	case errors.Is(err, service.ErrInvalidSubmission), errors.Is(err, service.ErrUnsupportedLanguage):
		return utils.FailKind(c, fiber.StatusBadRequest, KindValidation, err.Error(), nil)
	case errors.Is(err, service.ErrRoundNotFound), errors.Is(err, service.ErrProblemNotFound):
		return utils.FailKind(c, fiber.StatusNotFound, KindNotFound, err.Error(), nil)
	case errors.As(err, &accessErr):
		if errors.Is(err, service.ErrRoundNotStarted) {
			return utils.FailKind(c, fiber.StatusTooEarly, KindWindowNotStarted, err.Error(), accessErr.Window)
		}
		return utils.FailKind(c, fiber.StatusGone, KindWindowExpired, err.Error(), accessErr.Window)
	case errors.Is(err, service.ErrDuplicateSubmission):
		return utils.FailKind(c, fiber.StatusConflict, KindDuplicateSubmission, err.Error(), nil)
	case errors.Is(err, service.ErrOTPInvalid), errors.Is(err, service.ErrOTPExpired):
		return utils.FailKind(c, fiber.StatusUnauthorized, KindOTP, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidSession):
		return utils.FailKind(c, fiber.StatusUnauthorized, KindUnauthorized, err.Error(), nil)
	case errors.Is(err, service.ErrOTPDelivery):
		return utils.FailKind(c, fiber.StatusBadGateway, KindDelivery, service.ErrOTPDelivery.Error(), nil)
	case errors.Is(err, service.ErrEvaluationDeadline):
		return utils.FailKind(c, fiber.StatusGatewayTimeout, KindEvaluationTimeout, err.Error(), nil)
	default:
		reqLogger := middleware.RequestLogger(logger, c)
		reqLogger.Error().Err(err).Str("route", c.Path()).Msg("request failed")
		return utils.FailKind(c, fiber.StatusInternalServerError, KindInternal, "internal server error", nil)
	}
}
