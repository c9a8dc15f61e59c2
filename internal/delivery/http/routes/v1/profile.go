package v1

import (
	"jobpilot/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

func RegisterProfile(r fiber.Router, cv *handler.CVHandler, prefs *handler.PreferenceHandler) {
	if r == nil {
		return
	}
	if cv != nil {
		cv.RegisterRoutes(r)
	}
	if prefs != nil {
		prefs.RegisterRoutes(r)
	}
}
