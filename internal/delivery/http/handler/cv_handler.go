package handler

import (
	"context"
	"strconv"

	"jobpilot/internal/delivery/http/dto"
	"jobpilot/internal/delivery/http/middleware"
	"jobpilot/internal/domain/cv"
	"jobpilot/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type CVStore interface {
	Current(ctx context.Context, userID uuid.UUID) (cv.Version, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]cv.Version, error)
	Version(ctx context.Context, userID uuid.UUID, n int) (cv.Version, error)
	UpdateWithVersion(ctx context.Context, userID uuid.UUID, content string, source cv.Source, summary string) (cv.Version, bool, error)
}

type CVHandler struct {
	store CVStore
}

func NewCVHandler(store CVStore) *CVHandler {
	return &CVHandler{store: store}
}

func (h *CVHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	grp := r.Group("/cv")
	grp.Get("", h.HandleCurrent)
	grp.Put("", h.HandleUpdate)
	grp.Get("/versions", h.HandleHistory)
	grp.Get("/versions/:version", h.HandleVersion)
}

func (h *CVHandler) HandleCurrent(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	v, err := h.store.Current(c.Context(), userID)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewCVResponse(v, true))
}

// HandleUpdate stores a new version unless the content is unchanged, in
// which case the current version is returned with created=false.
func (h *CVHandler) HandleUpdate(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateCVRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	src, err := cv.ParseSource(req.Source)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, err.Error(), nil, err)
	}

	v, created, err := h.store.UpdateWithVersion(c.Context(), userID, req.Content, src, req.ChangeSummary)
	if err != nil {
		return mapError(err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return response.Success(c, status, "", dto.UpdateCVResponse{CVResponse: dto.NewCVResponse(v, false), Created: created})
}

func (h *CVHandler) HandleHistory(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	limit, err := parseQueryIntStrict(c, "limit", 10)
	if err != nil {
		return badRequest(err)
	}
	versions, err := h.store.History(c.Context(), userID, limit)
	if err != nil {
		return mapError(err)
	}
	out := make([]dto.CVResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, dto.NewCVResponse(v, false))
	}
	return response.List(c, out, response.Page{Limit: limit, Count: len(out)})
}

func (h *CVHandler) HandleVersion(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(c.Params("version"))
	if err != nil || n <= 0 {
		return middleware.NewAppError(fiber.StatusBadRequest, "version must be a positive integer", nil, err)
	}
	v, err := h.store.Version(c.Context(), userID, n)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewCVResponse(v, true))
}
