package v1

import (
	"jobpilot/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

type Handlers struct {
	Jobs         *handler.JobsHandler
	Applications *handler.ApplicationHandler
	Matches      *handler.MatchHandler
	CV           *handler.CVHandler
	Preferences  *handler.PreferenceHandler
	Pipeline     *handler.PipelineHandler
	// Events streams pipeline events over a websocket.
	Events fiber.Handler
}

// Register mounts every v1 endpoint behind auth. All of them act on behalf
// of the token's user.
func Register(r fiber.Router, h Handlers, auth fiber.Handler) {
	if r == nil {
		return
	}

	protected := r
	if auth != nil {
		protected = r.Group("", auth)
	}

	RegisterJobs(protected, h.Jobs, h.Applications, h.Matches)
	RegisterProfile(protected, h.CV, h.Preferences)
	if h.Pipeline != nil {
		h.Pipeline.RegisterRoutes(protected)
	}
	if h.Events != nil {
		protected.Get("/ws/events", h.Events)
	}
}
