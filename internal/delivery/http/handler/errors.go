package handler

import (
	"context"
	"errors"
	"strconv"

	"jobpilot/internal/applier"
	"jobpilot/internal/config"
	"jobpilot/internal/cvversion"
	"jobpilot/internal/delivery/http/middleware"
	"jobpilot/internal/discovery"
	"jobpilot/internal/pipeline"
	"jobpilot/internal/pkg/response"
	"jobpilot/internal/repository"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// mapError translates domain sentinels into HTTP errors. Anything unknown
// becomes a 500 whose cause is only logged.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, repository.ErrJobNotFound),
		errors.Is(err, repository.ErrApplicationNotFound),
		errors.Is(err, repository.ErrMatchNotFound),
		errors.Is(err, cvversion.ErrNoCurrentVersion),
		errors.Is(err, cvversion.ErrVersionNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, err.Error(), nil, err)
	case errors.Is(err, repository.ErrDuplicateJob):
		return middleware.NewAppError(fiber.StatusConflict, repository.ErrDuplicateJob.Error(), nil, err)
	case errors.Is(err, pipeline.ErrRunInProgress):
		return middleware.NewAppError(fiber.StatusConflict, err.Error(), nil, err)
	case errors.Is(err, pipeline.ErrInvalidJob),
		errors.Is(err, cvversion.ErrEmptyContent),
		errors.Is(err, config.ErrUnknownBoard):
		return middleware.NewAppError(fiber.StatusBadRequest, err.Error(), nil, err)
	case errors.Is(err, pipeline.ErrPreferencesNotSet),
		errors.Is(err, applier.ErrUnsupportedBoard):
		return middleware.NewAppError(fiber.StatusUnprocessableEntity, err.Error(), nil, err)
	case errors.Is(err, applier.ErrLoginFailed):
		return middleware.NewAppError(fiber.StatusUnprocessableEntity, "board login failed", nil, err)
	case errors.Is(err, discovery.ErrAllAdaptersFailed):
		return middleware.NewAppError(fiber.StatusServiceUnavailable, response.MessageServiceUnavailable, nil, err)
	case errors.Is(err, context.DeadlineExceeded):
		return middleware.NewAppError(fiber.StatusGatewayTimeout, "", nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}

func badRequest(err error) error {
	return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
}

func parseQueryIntStrict(c fiber.Ctx, key string, defaultVal int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(s)
}

func parseQueryFloat(c fiber.Ctx, key string, defaultVal float64) (float64, error) {
	s := c.Query(key)
	if s == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(s, 64)
}

func uuidParam(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, badRequest(err)
	}
	return id, nil
}

// subject resolves the acting user and one uuid path parameter.
func subject(c fiber.Ctx, param string) (uuid.UUID, uuid.UUID, error) {
	userID, err := middleware.UserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuidParam(c, param)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, id, nil
}
