package handler

import (
	"context"

	"jobpilot/internal/delivery/http/dto"
	"jobpilot/internal/delivery/http/middleware"
	"jobpilot/internal/domain"
	"jobpilot/internal/pipeline"
	"jobpilot/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type PipelineActions interface {
	StartHunt(ctx context.Context, userID uuid.UUID, done func(pipeline.HuntSummary, error)) error
	Status(ctx context.Context, userID uuid.UUID) (domain.PipelineStatus, error)
}

type PipelineHandler struct {
	actions PipelineActions
}

func NewPipelineHandler(actions PipelineActions) *PipelineHandler {
	return &PipelineHandler{actions: actions}
}

func (h *PipelineHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Post("/hunt", h.HandleHunt)
	r.Get("/status", h.HandleStatus)
}

// HandleHunt starts a hunt in the background and answers 202 right away.
// The run reports through the event stream.
func (h *PipelineHandler) HandleHunt(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	if err := h.actions.StartHunt(context.Background(), userID, nil); err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusAccepted, "hunt started", fiber.Map{"user_id": userID})
}

func (h *PipelineHandler) HandleStatus(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	st, err := h.actions.Status(c.Context(), userID)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewPipelineStatusResponse(st))
}
