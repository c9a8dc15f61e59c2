package v1

import (
	"jobpilot/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

func RegisterJobs(r fiber.Router, jobs *handler.JobsHandler, apps *handler.ApplicationHandler, matches *handler.MatchHandler) {
	if r == nil {
		return
	}
	if jobs != nil {
		jobs.RegisterRoutes(r)
	}
	if apps != nil {
		apps.RegisterRoutes(r)
	}
	if matches != nil {
		matches.RegisterRoutes(r)
	}
}
