package handler

import (
	"context"

	"jobpilot/internal/delivery/http/dto"
	"jobpilot/internal/delivery/http/middleware"
	"jobpilot/internal/domain/match"
	"jobpilot/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type MatchReader interface {
	GetByJobID(ctx context.Context, userID, jobID uuid.UUID) (match.Result, error)
	List(ctx context.Context, userID uuid.UUID, minScore float64, limit int) ([]match.Result, error)
}

type MatchHandler struct {
	matches MatchReader
}

func NewMatchHandler(matches MatchReader) *MatchHandler {
	return &MatchHandler{matches: matches}
}

func (h *MatchHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/matches", h.HandleList)
	r.Get("/matches/:job_id", h.HandleGet)
}

func (h *MatchHandler) HandleList(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	minScore, err := parseQueryFloat(c, "min_score", 0)
	if err != nil || minScore < 0 || minScore > 1 {
		return middleware.NewAppError(fiber.StatusBadRequest, "min_score must be between 0 and 1", nil, err)
	}
	limit, err := parseQueryIntStrict(c, "limit", 50)
	if err != nil {
		return badRequest(err)
	}

	items, err := h.matches.List(c.Context(), userID, minScore, limit)
	if err != nil {
		return mapError(err)
	}
	return response.List(c, dto.NewMatchResponses(items), response.Page{Limit: limit, Count: len(items)})
}

func (h *MatchHandler) HandleGet(c fiber.Ctx) error {
	userID, jobID, err := subject(c, "job_id")
	if err != nil {
		return err
	}
	res, err := h.matches.GetByJobID(c.Context(), userID, jobID)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewMatchResponse(res))
}
