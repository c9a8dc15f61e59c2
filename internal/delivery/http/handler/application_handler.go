package handler

import (
	"context"
	"strings"

	"jobpilot/internal/applier"
	"jobpilot/internal/delivery/http/dto"
	"jobpilot/internal/delivery/http/middleware"
	"jobpilot/internal/domain/application"
	"jobpilot/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type ApplicationStore interface {
	List(ctx context.Context, userID uuid.UUID, status application.Status, limit, offset int) ([]application.WithJob, error)
	Update(ctx context.Context, userID, id uuid.UUID, status application.Status, meta application.Meta) error
	DeleteWithJob(ctx context.Context, userID, id uuid.UUID) error
}

type ApplicationActions interface {
	ApplyApplication(ctx context.Context, userID, applicationID uuid.UUID) (applier.Outcome, error)
}

type ApplicationHandler struct {
	store   ApplicationStore
	actions ApplicationActions
}

func NewApplicationHandler(store ApplicationStore, actions ApplicationActions) *ApplicationHandler {
	return &ApplicationHandler{store: store, actions: actions}
}

func (h *ApplicationHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	grp := r.Group("/applications")
	grp.Get("", h.HandleList)
	grp.Patch("/:id", h.HandleUpdate)
	grp.Delete("/:id", h.HandleDelete)
	grp.Post("/:id/apply", h.HandleApply)
}

func (h *ApplicationHandler) HandleList(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var status application.Status
	if s := strings.TrimSpace(c.Query("status")); s != "" {
		if status, err = application.ParseStatus(s); err != nil {
			return badRequest(err)
		}
	}
	limit, err := parseQueryIntStrict(c, "limit", 50)
	if err != nil {
		return badRequest(err)
	}
	offset, err := parseQueryIntStrict(c, "offset", 0)
	if err != nil {
		return badRequest(err)
	}

	items, err := h.store.List(c.Context(), userID, status, limit, offset)
	if err != nil {
		return mapError(err)
	}
	return response.List(c, dto.NewApplicationResponses(items), response.Page{Limit: limit, Offset: offset, Count: len(items)})
}

func (h *ApplicationHandler) HandleUpdate(c fiber.Ctx) error {
	userID, id, err := subject(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateApplicationRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}

	var status application.Status
	if s := strings.TrimSpace(req.Status); s != "" {
		if status, err = application.ParseStatus(s); err != nil {
			return middleware.NewAppError(fiber.StatusBadRequest, err.Error(), nil, err)
		}
	}
	if status == "" && len(req.Meta) == 0 {
		return middleware.NewAppError(fiber.StatusBadRequest, "nothing to update", nil, nil)
	}

	if err := h.store.Update(c.Context(), userID, id, status, req.Meta); err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, fiber.Map{"application_id": id})
}

func (h *ApplicationHandler) HandleDelete(c fiber.Ctx) error {
	userID, id, err := subject(c, "id")
	if err != nil {
		return err
	}
	if err := h.store.DeleteWithJob(c.Context(), userID, id); err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, nil)
}

func (h *ApplicationHandler) HandleApply(c fiber.Ctx) error {
	userID, id, err := subject(c, "id")
	if err != nil {
		return err
	}
	out, err := h.actions.ApplyApplication(c.Context(), userID, id)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewApplyOutcomeResponse(out))
}
