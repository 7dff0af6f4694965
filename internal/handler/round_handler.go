package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/vasiprashanti/techlearn-api/internal/dto"
	"github.com/vasiprashanti/techlearn-api/internal/service"
	"github.com/vasiprashanti/techlearn-api/internal/utils"
)

// RoundHandler exposes staff endpoints for scheduling rounds and reading scores.
type RoundHandler struct {
	service   service.RoundService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRoundHandler constructs the handler.
func NewRoundHandler(service service.RoundService, validator *validator.Validate, logger zerolog.Logger) *RoundHandler {
	return &RoundHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "round_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *RoundHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/", h.list)
	router.Get("/:id", h.get)
	router.Patch("/:id/status", h.setStatus)
	router.Get("/:id/scores", h.scores)
}

func (h *RoundHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateRoundRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	created, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "round created", created)
}

func (h *RoundHandler) list(c *fiber.Ctx) error {
	rounds, err := h.service.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, rounds, "rounds retrieved", fiber.Map{"total": len(rounds)})
}

func (h *RoundHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.FailKind(c, fiber.StatusBadRequest, KindValidation, err.Error(), nil)
	}

	round, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "round retrieved", round)
}

func (h *RoundHandler) setStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.FailKind(c, fiber.StatusBadRequest, KindValidation, err.Error(), nil)
	}

	var payload dto.RoundStatusRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}
	if err := h.validator.Struct(payload); err != nil {
		return respondError(c, h.logger, err)
	}

	round, err := h.service.SetActive(c.UserContext(), id, *payload.IsActive)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "round status updated", round)
}

func (h *RoundHandler) scores(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.FailKind(c, fiber.StatusBadRequest, KindValidation, err.Error(), nil)
	}

	scores, err := h.service.Scores(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, scores, "scores retrieved", fiber.Map{"total": len(scores)})
}
