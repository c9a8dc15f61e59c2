package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"jobpilot/internal/applier"
	"jobpilot/internal/domain"
	"jobpilot/internal/domain/application"
	"jobpilot/internal/domain/job"
	"jobpilot/internal/domain/match"
	"jobpilot/internal/notify"
	"jobpilot/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInvalidJob = errors.New("job needs a title and an absolute http(s) url")

// AnalyzeJob fetches and stores the description of one job.
func (o *Orchestrator) AnalyzeJob(ctx context.Context, userID, jobID uuid.UUID) (job.Posting, error) {
	p, err := o.deps.Jobs.GetByID(ctx, userID, jobID)
	if err != nil {
		return job.Posting{}, err
	}
	release, err := o.acquire(ctx)
	if err != nil {
		return p, err
	}
	defer release()

	r := o.newRun("analyze", userID)
	defer r.close()
	s, err := r.session(ctx)
	if err != nil {
		return p, err
	}
	return o.deps.Analyzer.Analyze(ctx, s, p)
}

// MatchJob scores one job against the current CV. It needs no browser and
// does not take the run lock.
func (o *Orchestrator) MatchJob(ctx context.Context, userID, jobID uuid.UUID) (match.Result, error) {
	p, err := o.deps.Jobs.GetByID(ctx, userID, jobID)
	if err != nil {
		return match.Result{}, err
	}
	return o.deps.Matcher.Match(ctx, p)
}

// ApplyJob runs the apply flow for one job, reusing its stored match for the
// application annotations when there is one.
func (o *Orchestrator) ApplyJob(ctx context.Context, userID, jobID uuid.UUID) (applier.Outcome, error) {
	p, err := o.deps.Jobs.GetByID(ctx, userID, jobID)
	if err != nil {
		return applier.Outcome{}, err
	}
	return o.apply(ctx, p)
}

// ApplyApplication applies to the job behind an existing application.
func (o *Orchestrator) ApplyApplication(ctx context.Context, userID, applicationID uuid.UUID) (applier.Outcome, error) {
	app, err := o.deps.Applications.GetByID(ctx, userID, applicationID)
	if err != nil {
		return applier.Outcome{}, err
	}
	p, err := o.deps.Jobs.GetByID(ctx, userID, app.JobID)
	if err != nil {
		return applier.Outcome{}, err
	}
	return o.apply(ctx, p)
}

func (o *Orchestrator) apply(ctx context.Context, p job.Posting) (applier.Outcome, error) {
	release, err := o.acquire(ctx)
	if err != nil {
		return applier.Outcome{}, err
	}
	defer release()

	var m *match.Result
	if o.deps.Matches != nil {
		res, err := o.deps.Matches.GetByJobID(ctx, p.UserID, p.ID)
		switch {
		case err == nil:
			m = &res
		case !errors.Is(err, repository.ErrMatchNotFound):
			return applier.Outcome{}, fmt.Errorf("load match: %w", err)
		}
	}

	r := o.newRun("apply", p.UserID)
	defer r.close()
	s, err := r.session(ctx)
	if err != nil {
		return applier.Outcome{}, err
	}
	out, err := o.deps.NewApplier().Apply(ctx, s, p, m)
	if err != nil {
		return out, err
	}
	o.notify(ctx, notify.NewEvent(notify.ApplicationUpdated, p.UserID, map[string]any{
		"job_id": p.ID.String(),
		"title":  p.Title,
		"status": string(out.Status),
		"result": string(out.Result),
	}))
	return out, nil
}

// AddJob stores a manually entered job with a followup application.
func (o *Orchestrator) AddJob(ctx context.Context, userID uuid.UUID, in job.Raw) (job.Posting, error) {
	if err := validateRaw(in); err != nil {
		return job.Posting{}, err
	}
	p := job.FromRaw(userID, job.SourceManual, in, o.now().UTC())
	app := &application.Application{
		Status: application.StatusFollowup,
		Source: job.SourceManual,
		Meta:   application.Meta{application.MetaNote: "added manually"},
	}
	ok, err := o.deps.Intake.Insert(ctx, p, app)
	if err != nil {
		return job.Posting{}, err
	}
	if !ok {
		return job.Posting{}, fmt.Errorf("%w: %s", repository.ErrDuplicateJob, p.URL)
	}
	return p, nil
}

// BulkAddJobs imports rows one by one, each with an opportunity application
// in the same transaction. A bad row never stops the rest.
func (o *Orchestrator) BulkAddJobs(ctx context.Context, userID uuid.UUID, rows []job.Raw) (BulkResult, error) {
	res := BulkResult{Errors: []JobError{}}
	for _, in := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		fail := func(err error) {
			res.Failed++
			res.Errors = append(res.Errors, JobError{URL: in.URL, Step: "import", Error: err.Error()})
		}
		if err := validateRaw(in); err != nil {
			fail(err)
			continue
		}
		p := job.FromRaw(userID, job.SourceManual, in, o.now().UTC())
		ok, err := o.deps.Intake.Insert(ctx, p, &application.Application{
			Status: application.StatusOpportunity,
			Source: job.SourceManual,
			Meta:   application.Meta{application.MetaNote: "bulk import"},
		})
		switch {
		case err != nil:
			fail(err)
		case !ok:
			fail(repository.ErrDuplicateJob)
		default:
			res.Inserted++
		}
	}
	o.log.Info("bulk import finished",
		zap.String("pipeline", "import"),
		zap.Int("inserted", res.Inserted),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func validateRaw(in job.Raw) error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrInvalidJob
	}
	u, err := url.Parse(strings.TrimSpace(in.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidJob
	}
	return nil
}

// Status summarizes the user's jobs and applications and the health of the
// backing services.
func (o *Orchestrator) Status(ctx context.Context, userID uuid.UUID) (domain.PipelineStatus, error) {
	var (
		st  domain.PipelineStatus
		err error
	)
	if st.TotalJobs, err = o.deps.Status.GetTotalJobs(ctx, userID); err != nil {
		return st, err
	}
	if st.JobsToday, err = o.deps.Status.GetJobsToday(ctx, userID); err != nil {
		return st, err
	}
	if st.Sources, err = o.deps.Status.GetSourceStats(ctx, userID); err != nil {
		return st, err
	}
	if st.ApplicationsByStatus, err = o.deps.Status.GetStatusCounts(ctx, userID); err != nil {
		return st, err
	}
	st.RunInProgress = o.Running()
	st.DatabaseHealthy = ping(ctx, o.deps.DBPing)
	st.RedisHealthy = ping(ctx, o.deps.RedisPing)
	st.ServerTime = o.now().UTC()
	return st, nil
}

func ping(ctx context.Context, fn func(context.Context) error) bool {
	if fn == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return fn(ctx) == nil
}
