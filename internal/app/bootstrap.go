package app

import (
	"context"
	"fmt"
	"strings"

	"jobpilot/internal/config"
	"jobpilot/internal/delivery/http/handler"
	"jobpilot/internal/delivery/http/middleware"
	"jobpilot/internal/delivery/http/routes"
	v1 "jobpilot/internal/delivery/http/routes/v1"
	"jobpilot/internal/ws"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

type App struct {
	Fiber     *fiber.App
	Container *Container
}

func New(c *Container) *App {
	f := fiber.New(fiber.Config{AppName: c.Config.App.AppName})

	registerGlobalMiddleware(f, c.Log)
	registerRoutes(f, c)

	return &App{Fiber: f, Container: c}
}

// Bootstrap builds the container and the HTTP app, and starts the event hub.
// The returned cleanup stops the hub and closes the container.
func Bootstrap(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, func() error, error) {
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, nil, fmt.Errorf("jwt secret is required to serve the api")
	}
	c, err := NewContainer(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	go c.Hub.Run(hubCtx)

	cleanup := func() error {
		stopHub()
		return c.Close()
	}
	return New(c), cleanup, nil
}

func registerGlobalMiddleware(app *fiber.App, log *zap.Logger) {
	if app == nil {
		return
	}

	app.Use(middleware.NewAccessLogMiddleware(log).Middleware())
	app.Use(middleware.NewErrorMiddleware(log).Middleware())
}

func registerRoutes(app *fiber.App, c *Container) {
	if app == nil {
		return
	}

	o := c.Orchestrator
	handlers := v1.Handlers{
		Jobs:         handler.NewJobsHandler(c.Jobs, o),
		Applications: handler.NewApplicationHandler(c.Applications, o),
		Matches:      handler.NewMatchHandler(c.Matches),
		CV:           handler.NewCVHandler(c.CVs),
		Preferences:  handler.NewPreferenceHandler(c.Preferences),
		Pipeline:     handler.NewPipelineHandler(o),
		Events:       ws.NewHandler(c.Hub, c.Log).HandleEvents,
	}
	auth := middleware.NewAuthMiddleware(c.JWT).Middleware()

	routes.NewRegistry(handler.NewHealthHandler(c.DB.Ping), handlers, auth).Register(app)
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
