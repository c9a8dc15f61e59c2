package routes

import (
	v1 "jobpilot/internal/delivery/http/routes/v1"

	"github.com/gofiber/fiber/v3"
)

func RegisterV1(r fiber.Router, handlers v1.Handlers, auth fiber.Handler) {
	if r == nil {
		return
	}

	v1.Register(r, handlers, auth)
}
