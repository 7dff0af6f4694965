package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/vasiprashanti/techlearn-api/internal/dto"
	"github.com/vasiprashanti/techlearn-api/internal/middleware"
	"github.com/vasiprashanti/techlearn-api/internal/service"
	"github.com/vasiprashanti/techlearn-api/internal/utils"
)

// AssessmentHandler exposes the examinee facing round endpoints.
type AssessmentHandler struct {
	rounds      service.RoundService
	otp         service.OTPService
	submissions service.SubmissionService
	sessions    middleware.SessionVerifier
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewAssessmentHandler constructs the handler.
func NewAssessmentHandler(rounds service.RoundService, otp service.OTPService, submissions service.SubmissionService, sessions middleware.SessionVerifier, validator *validator.Validate, logger zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		rounds:      rounds,
		otp:         otp,
		submissions: submissions,
		sessions:    sessions,
		validator:   validator,
		logger:      logger.With().Str("component", "assessment_handler").Logger(),
	}
}

// Register wires the public endpoints. otpLimiter guards code issue and verification.
func (h *AssessmentHandler) Register(router fiber.Router, otpLimiter fiber.Handler) {
	if otpLimiter == nil {
		otpLimiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Get("/:accessKey", h.get)
	router.Get("/:accessKey/status", h.status)
	router.Post("/:accessKey/otp", otpLimiter, h.requestOTP)
	router.Post("/:accessKey/otp/verify", otpLimiter, h.verifyOTP)
	router.Post("/:accessKey/submit", middleware.ExamineeSession(h.sessions), h.submit)
}

func (h *AssessmentHandler) get(c *fiber.Ctx) error {
	round, err := h.rounds.GetPublic(c.UserContext(), c.Params("accessKey"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "round retrieved", round)
}

func (h *AssessmentHandler) status(c *fiber.Ctx) error {
	status, err := h.rounds.Status(c.UserContext(), c.Params("accessKey"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "round status retrieved", status)
}

func (h *AssessmentHandler) requestOTP(c *fiber.Ctx) error {
	var payload dto.OTPRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}
	if err := h.validator.Struct(payload); err != nil {
		return respondError(c, h.logger, err)
	}

	issued, err := h.otp.Issue(c.UserContext(), c.Params("accessKey"), payload.Identity)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "verification code sent", issued)
}

func (h *AssessmentHandler) verifyOTP(c *fiber.Ctx) error {
	var payload dto.OTPVerifyRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}
	if err := h.validator.Struct(payload); err != nil {
		return respondError(c, h.logger, err)
	}

	session, err := h.otp.Verify(c.UserContext(), c.Params("accessKey"), payload.Identity, payload.Code)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "verification succeeded", session)
}

func (h *AssessmentHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmitRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	if middleware.ExamineeIdentity(c) != service.NormalizeIdentity(payload.Identity) {
		return respondError(c, h.logger, service.ErrInvalidSession)
	}

	summary, err := h.submissions.Submit(c.UserContext(), c.Params("accessKey"), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission evaluated", summary)
}
