package handler

import (
	"context"
	"strings"

	"jobpilot/internal/applier"
	"jobpilot/internal/delivery/http/dto"
	"jobpilot/internal/delivery/http/middleware"
	"jobpilot/internal/domain/job"
	"jobpilot/internal/domain/match"
	"jobpilot/internal/pipeline"
	"jobpilot/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type JobReader interface {
	List(ctx context.Context, userID uuid.UUID, f job.ListFilter) ([]job.Posting, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (job.Posting, error)
}

// JobActions is the part of the orchestrator the job endpoints drive.
type JobActions interface {
	AddJob(ctx context.Context, userID uuid.UUID, in job.Raw) (job.Posting, error)
	BulkAddJobs(ctx context.Context, userID uuid.UUID, rows []job.Raw) (pipeline.BulkResult, error)
	ScrapeBoard(ctx context.Context, userID uuid.UUID, source string) (pipeline.ScrapeSummary, error)
	AnalyzeJob(ctx context.Context, userID, jobID uuid.UUID) (job.Posting, error)
	MatchJob(ctx context.Context, userID, jobID uuid.UUID) (match.Result, error)
	ApplyJob(ctx context.Context, userID, jobID uuid.UUID) (applier.Outcome, error)
}

const maxBulkJobs = 500

type JobsHandler struct {
	jobs    JobReader
	actions JobActions
}

func NewJobsHandler(jobs JobReader, actions JobActions) *JobsHandler {
	return &JobsHandler{jobs: jobs, actions: actions}
}

func (h *JobsHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/jobs", h.HandleListJobs)
	r.Post("/jobs", h.HandleAddJob)
	r.Post("/jobs/bulk", h.HandleBulkAdd)
	r.Post("/jobs/scrape", h.HandleScrape)
	r.Get("/jobs/:id", h.HandleGetJob)
	r.Post("/jobs/:id/analyze", h.HandleAnalyze)
	r.Post("/jobs/:id/match", h.HandleMatch)
	r.Post("/jobs/:id/apply", h.HandleApply)
}

func (h *JobsHandler) HandleListJobs(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	limit, err := parseQueryIntStrict(c, "limit", 50)
	if err != nil {
		return badRequest(err)
	}
	offset, err := parseQueryIntStrict(c, "offset", 0)
	if err != nil {
		return badRequest(err)
	}

	items, err := h.jobs.List(c.Context(), userID, job.ListFilter{
		Source: c.Query("source"),
		Status: c.Query("status"),
		Query:  c.Query("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return mapError(err)
	}
	return response.List(c, dto.NewJobResponses(items), response.Page{Limit: limit, Offset: offset, Count: len(items)})
}

func (h *JobsHandler) HandleGetJob(c fiber.Ctx) error {
	userID, jobID, err := subject(c, "id")
	if err != nil {
		return err
	}
	p, err := h.jobs.GetByID(c.Context(), userID, jobID)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewJobResponse(p))
}

func (h *JobsHandler) HandleAddJob(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req dto.JobRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}

	p, err := h.actions.AddJob(c.Context(), userID, req.Raw())
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusCreated, response.MessageCreated, dto.NewJobResponse(p))
}

func (h *JobsHandler) HandleBulkAdd(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req dto.BulkJobsRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	if len(req.Jobs) == 0 || len(req.Jobs) > maxBulkJobs {
		return middleware.NewAppError(fiber.StatusBadRequest, "jobs must hold between 1 and 500 rows", nil, nil)
	}

	rows := make([]job.Raw, 0, len(req.Jobs))
	for _, j := range req.Jobs {
		rows = append(rows, j.Raw())
	}
	res, err := h.actions.BulkAddJobs(c.Context(), userID, rows)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, res)
}

func (h *JobsHandler) HandleScrape(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req dto.ScrapeRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	source := strings.ToLower(strings.TrimSpace(req.Source))
	if source == "" {
		return middleware.NewAppError(fiber.StatusBadRequest, "source is required", nil, nil)
	}

	summary, err := h.actions.ScrapeBoard(c.Context(), userID, source)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, summary)
}

func (h *JobsHandler) HandleAnalyze(c fiber.Ctx) error {
	userID, jobID, err := subject(c, "id")
	if err != nil {
		return err
	}
	p, err := h.actions.AnalyzeJob(c.Context(), userID, jobID)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewJobResponse(p))
}

func (h *JobsHandler) HandleMatch(c fiber.Ctx) error {
	userID, jobID, err := subject(c, "id")
	if err != nil {
		return err
	}
	res, err := h.actions.MatchJob(c.Context(), userID, jobID)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewMatchResponse(res))
}

func (h *JobsHandler) HandleApply(c fiber.Ctx) error {
	userID, jobID, err := subject(c, "id")
	if err != nil {
		return err
	}
	out, err := h.actions.ApplyJob(c.Context(), userID, jobID)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewApplyOutcomeResponse(out))
}
