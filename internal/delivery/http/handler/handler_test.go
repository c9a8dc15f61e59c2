package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jobpilot/internal/applier"
	"jobpilot/internal/delivery/http/middleware"
	"jobpilot/internal/domain"
	"jobpilot/internal/domain/application"
	"jobpilot/internal/domain/job"
	"jobpilot/internal/domain/match"
	"jobpilot/internal/domain/preference"
	"jobpilot/internal/pipeline"
	"jobpilot/internal/repository"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUser = uuid.MustParse("7d3c4f1e-1c2b-4a5d-9e8f-0a1b2c3d4e5f")

type fakeJobs struct {
	jobs   map[uuid.UUID]job.Posting
	filter job.ListFilter
}

func (f *fakeJobs) List(_ context.Context, _ uuid.UUID, lf job.ListFilter) ([]job.Posting, error) {
	f.filter = lf
	out := []job.Posting{}
	for _, p := range f.jobs {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeJobs) GetByID(_ context.Context, _, id uuid.UUID) (job.Posting, error) {
	if p, ok := f.jobs[id]; ok {
		return p, nil
	}
	return job.Posting{}, repository.ErrJobNotFound
}

type fakeActions struct {
	addErr    error
	scrapeErr error
	huntErr   error
	applyErr  error
	added     []job.Raw
	bulk      []job.Raw
	hunts     int
	scraped   string
}

func (f *fakeActions) AddJob(_ context.Context, userID uuid.UUID, in job.Raw) (job.Posting, error) {
	if f.addErr != nil {
		return job.Posting{}, f.addErr
	}
	f.added = append(f.added, in)
	return job.Posting{ID: uuid.New(), UserID: userID, Title: in.Title, URL: in.URL, Source: job.SourceManual}, nil
}

func (f *fakeActions) BulkAddJobs(_ context.Context, _ uuid.UUID, rows []job.Raw) (pipeline.BulkResult, error) {
	f.bulk = rows
	return pipeline.BulkResult{Inserted: len(rows), Errors: []pipeline.JobError{}}, nil
}

func (f *fakeActions) ScrapeBoard(_ context.Context, _ uuid.UUID, source string) (pipeline.ScrapeSummary, error) {
	f.scraped = source
	return pipeline.ScrapeSummary{Source: source, Inserted: 2, Errors: []pipeline.JobError{}}, f.scrapeErr
}

func (f *fakeActions) AnalyzeJob(_ context.Context, _, jobID uuid.UUID) (job.Posting, error) {
	return job.Posting{ID: jobID}, nil
}

func (f *fakeActions) MatchJob(_ context.Context, userID, jobID uuid.UUID) (match.Result, error) {
	return match.Result{JobID: jobID, UserID: userID, Match: true, Score: 0.8, MatchedSkills: []string{"React"}, CVVersion: 2}, nil
}

func (f *fakeActions) ApplyJob(_ context.Context, _, jobID uuid.UUID) (applier.Outcome, error) {
	return applier.Outcome{JobID: jobID, Result: applier.ResultApplied, Status: application.StatusApplied}, f.applyErr
}

func (f *fakeActions) ApplyApplication(_ context.Context, _, id uuid.UUID) (applier.Outcome, error) {
	return applier.Outcome{JobID: id, Result: applier.ResultExternal, Status: application.StatusExternal, URL: "https://acme.test/apply"}, f.applyErr
}

func (f *fakeActions) StartHunt(context.Context, uuid.UUID, func(pipeline.HuntSummary, error)) error {
	if f.huntErr != nil {
		return f.huntErr
	}
	f.hunts++
	return nil
}

func (f *fakeActions) Status(context.Context, uuid.UUID) (domain.PipelineStatus, error) {
	return domain.PipelineStatus{TotalJobs: 4, DatabaseHealthy: true}, nil
}

type fakeApplications struct {
	status  application.Status
	meta    application.Meta
	deleted uuid.UUID
}

func (f *fakeApplications) List(context.Context, uuid.UUID, application.Status, int, int) ([]application.WithJob, error) {
	return []application.WithJob{{Application: application.Application{ID: uuid.New(), Status: application.StatusOpportunity}, JobTitle: "React Developer"}}, nil
}

func (f *fakeApplications) Update(_ context.Context, _, _ uuid.UUID, status application.Status, meta application.Meta) error {
	f.status, f.meta = status, meta
	return nil
}

func (f *fakeApplications) DeleteWithJob(_ context.Context, _, id uuid.UUID) error {
	f.deleted = id
	return nil
}

type fakePreferences struct {
	values map[string]string
}

func (f *fakePreferences) Get(context.Context, uuid.UUID) (preference.Preferences, error) {
	return preference.Preferences{Keywords: f.values[preference.KeyKeywords], Location: f.values[preference.KeyLocation]}, nil
}

func (f *fakePreferences) Set(_ context.Context, _ uuid.UUID, values map[string]string) error {
	for k, v := range values {
		f.values[k] = v
	}
	return nil
}

type env struct {
	app     *fiber.App
	jobs    *fakeJobs
	actions *fakeActions
	apps    *fakeApplications
	prefs   *fakePreferences
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		jobs:    &fakeJobs{jobs: map[uuid.UUID]job.Posting{}},
		actions: &fakeActions{},
		apps:    &fakeApplications{},
		prefs:   &fakePreferences{values: map[string]string{}},
	}
	e.app = fiber.New()
	e.app.Use(middleware.NewErrorMiddleware(nil).Middleware())
	e.app.Use(func(c fiber.Ctx) error {
		if c.Get("X-Anonymous") == "" {
			c.Locals(middleware.CtxUserIDKey, testUser)
		}
		return c.Next()
	})
	NewJobsHandler(e.jobs, e.actions).RegisterRoutes(e.app)
	NewApplicationHandler(e.apps, e.actions).RegisterRoutes(e.app)
	NewPreferenceHandler(e.prefs).RegisterRoutes(e.app)
	NewPipelineHandler(e.actions).RegisterRoutes(e.app)
	return e
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *env) do(t *testing.T, method, path, body string, headers ...string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestAddJob(t *testing.T) {
	e := newEnv(t)

	code, out := e.do(t, http.MethodPost, "/jobs", `{"title":"Frontend Engineer","url":"https://acme.test/1"}`)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, http.StatusCreated, out.Status)
	require.Len(t, e.actions.added, 1)
	assert.Equal(t, "Frontend Engineer", e.actions.added[0].Title)

	e.actions.addErr = repository.ErrDuplicateJob
	code, out = e.do(t, http.MethodPost, "/jobs", `{"title":"Frontend Engineer","url":"https://acme.test/1"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, repository.ErrDuplicateJob.Error(), out.Message)

	e.actions.addErr = pipeline.ErrInvalidJob
	code, _ = e.do(t, http.MethodPost, "/jobs", `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBulkAddRejectsEmptyBody(t *testing.T) {
	e := newEnv(t)

	code, _ := e.do(t, http.MethodPost, "/jobs/bulk", `{"jobs":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, out := e.do(t, http.MethodPost, "/jobs/bulk", `{"jobs":[{"title":"a","url":"https://a.test"},{"title":"b","url":"https://b.test"}]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, e.actions.bulk, 2)
	assert.Contains(t, string(out.Data), `"inserted":2`)
}

func TestListJobsPassesFilters(t *testing.T) {
	e := newEnv(t)
	id := uuid.New()
	e.jobs.jobs[id] = job.Posting{ID: id, Title: "UI Developer"}

	code, out := e.do(t, http.MethodGet, "/jobs?source=cwjobs&status=opportunity&q=ui&limit=5&offset=10", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, job.ListFilter{Source: "cwjobs", Status: "opportunity", Query: "ui", Limit: 5, Offset: 10}, e.jobs.filter)
	assert.Contains(t, string(out.Data), "UI Developer")

	code, _ = e.do(t, http.MethodGet, "/jobs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetJobNotFound(t *testing.T) {
	e := newEnv(t)

	code, _ := e.do(t, http.MethodGet, "/jobs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.do(t, http.MethodGet, "/jobs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestScrapeNormalizesSource(t *testing.T) {
	e := newEnv(t)

	code, _ := e.do(t, http.MethodPost, "/jobs/scrape", `{"source":" CWJobs "}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cwjobs", e.actions.scraped)

	code, _ = e.do(t, http.MethodPost, "/jobs/scrape", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	e.actions.scrapeErr = pipeline.ErrRunInProgress
	code, _ = e.do(t, http.MethodPost, "/jobs/scrape", `{"source":"cwjobs"}`)
	assert.Equal(t, http.StatusConflict, code)

	e.actions.scrapeErr = pipeline.ErrPreferencesNotSet
	code, _ = e.do(t, http.MethodPost, "/jobs/scrape", `{"source":"cwjobs"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestMatchAndApply(t *testing.T) {
	e := newEnv(t)
	id := uuid.NewString()

	code, out := e.do(t, http.MethodPost, "/jobs/"+id+"/match", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(out.Data), `"reasons":["React"]`)
	assert.Contains(t, string(out.Data), `"suggested_tests":[]`)

	code, out = e.do(t, http.MethodPost, "/jobs/"+id+"/apply", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(out.Data), `"result":"applied"`)

	e.actions.applyErr = applier.ErrLoginFailed
	code, out = e.do(t, http.MethodPost, "/jobs/"+id+"/apply", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "board login failed", out.Message)
}

func TestApplicationsEndpoints(t *testing.T) {
	e := newEnv(t)
	id := uuid.New()

	code, out := e.do(t, http.MethodGet, "/applications?status=opportunity", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(out.Data), "React Developer")

	code, _ = e.do(t, http.MethodGet, "/applications?status=ghosted", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodPatch, "/applications/"+id.String(), `{"status":"interview","meta":{"note":"call on monday"}}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, application.StatusInterview, e.apps.status)
	assert.Equal(t, "call on monday", e.apps.meta["note"])

	code, _ = e.do(t, http.MethodPatch, "/applications/"+id.String(), `{"status":"hired"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(t, http.MethodPatch, "/applications/"+id.String(), `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodDelete, "/applications/"+id.String(), "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, e.apps.deleted)

	code, out = e.do(t, http.MethodPost, "/applications/"+id.String()+"/apply", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(out.Data), `"url":"https://acme.test/apply"`)
}

func TestPreferences(t *testing.T) {
	e := newEnv(t)

	code, out := e.do(t, http.MethodPut, "/preferences", `{"keywords":"react developer","location":"London","radius":15,"stack_keywords":["react","next.js"]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "15", e.prefs.values[preference.KeyRadius])
	assert.Equal(t, "react,next.js", e.prefs.values[preference.KeyStackKeywords])
	assert.Contains(t, string(out.Data), "react developer")

	code, _ = e.do(t, http.MethodPut, "/preferences", `{"salary":"lots"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(t, http.MethodPut, "/preferences", `{"radius":"-3"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHuntStartsInBackground(t *testing.T) {
	e := newEnv(t)

	code, _ := e.do(t, http.MethodPost, "/hunt", "")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, 1, e.actions.hunts)

	e.actions.huntErr = pipeline.ErrRunInProgress
	code, out := e.do(t, http.MethodPost, "/hunt", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, pipeline.ErrRunInProgress.Error(), out.Message)
}

func TestStatus(t *testing.T) {
	e := newEnv(t)

	code, out := e.do(t, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(out.Data), `"total_jobs":4`)
	assert.Contains(t, string(out.Data), `"database":"up"`)
	assert.Contains(t, string(out.Data), `"redis":"down"`)
}

func TestUnauthenticatedRequest(t *testing.T) {
	e := newEnv(t)

	code, _ := e.do(t, http.MethodGet, "/status", "", "X-Anonymous", "1")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestUnknownErrorsDoNotLeak(t *testing.T) {
	e := newEnv(t)
	e.actions.scrapeErr = errors.New("pq: password authentication failed for user jobpilot")

	code, out := e.do(t, http.MethodPost, "/jobs/scrape", `{"source":"cwjobs"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.NotContains(t, out.Message, "password")
}
