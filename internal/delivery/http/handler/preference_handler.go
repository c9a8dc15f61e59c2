package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"jobpilot/internal/delivery/http/middleware"
	"jobpilot/internal/domain/preference"
	"jobpilot/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type PreferenceStore interface {
	Get(ctx context.Context, userID uuid.UUID) (preference.Preferences, error)
	Set(ctx context.Context, userID uuid.UUID, values map[string]string) error
}

var preferenceKeys = map[string]bool{
	preference.KeyKeywords:      true,
	preference.KeyLocation:      true,
	preference.KeyTown:          true,
	preference.KeyRadius:        true,
	preference.KeyStackKeywords: true,
	preference.KeyBlocklist:     true,
}

type PreferenceHandler struct {
	store PreferenceStore
}

func NewPreferenceHandler(store PreferenceStore) *PreferenceHandler {
	return &PreferenceHandler{store: store}
}

func (h *PreferenceHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/preferences", h.HandleGet)
	r.Put("/preferences", h.HandleSet)
}

func (h *PreferenceHandler) HandleGet(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	p, err := h.store.Get(c.Context(), userID)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, p)
}

// HandleSet upserts only the keys present in the body.
func (h *PreferenceHandler) HandleSet(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var body map[string]any
	if err := c.Bind().Body(&body); err != nil {
		return badRequest(err)
	}
	values, err := preferenceValues(body)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, err.Error(), nil, err)
	}

	if err := h.store.Set(c.Context(), userID, values); err != nil {
		return mapError(err)
	}
	p, err := h.store.Get(c.Context(), userID)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, p)
}

func preferenceValues(body map[string]any) (map[string]string, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("no preferences given")
	}
	out := make(map[string]string, len(body))
	for k, v := range body {
		if !preferenceKeys[k] {
			return nil, fmt.Errorf("unknown preference %q", k)
		}
		var s string
		switch val := v.(type) {
		case nil:
		case string:
			s = strings.TrimSpace(val)
		case float64:
			s = strconv.FormatFloat(val, 'f', -1, 64)
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, strings.TrimSpace(fmt.Sprint(item)))
			}
			s = strings.Join(parts, ",")
		default:
			return nil, fmt.Errorf("preference %q has unsupported type", k)
		}
		if k == preference.KeyRadius && s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("radius must be a positive integer")
			}
		}
		out[k] = s
	}
	return out, nil
}
