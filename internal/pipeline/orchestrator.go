// Package pipeline composes discovery, analysis, matching and applying into
// the actions a user can trigger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"jobpilot/internal/applier"
	"jobpilot/internal/browser"
	"jobpilot/internal/config"
	"jobpilot/internal/discovery"
	"jobpilot/internal/domain"
	"jobpilot/internal/domain/application"
	"jobpilot/internal/domain/job"
	"jobpilot/internal/domain/match"
	"jobpilot/internal/domain/preference"
	"jobpilot/internal/logger"
	"jobpilot/internal/notify"
	"jobpilot/internal/scraper"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrRunInProgress     = errors.New("another pipeline run is in progress")
	ErrPreferencesNotSet = errors.New("keywords and location preferences are not set")
)

const (
	lockKey                     = "jobpilot:lock:run"
	DefaultOpportunityThreshold = 0.6
)

type JobStore interface {
	GetByID(ctx context.Context, userID, id uuid.UUID) (job.Posting, error)
}

type ApplicationStore interface {
	GetByID(ctx context.Context, userID, id uuid.UUID) (application.Application, error)
	SetStatus(ctx context.Context, userID, jobID uuid.UUID, status application.Status, meta application.Meta, appliedAt *time.Time) error
}

type MatchStore interface {
	GetByJobID(ctx context.Context, userID, jobID uuid.UUID) (match.Result, error)
}

type PreferenceStore interface {
	Get(ctx context.Context, userID uuid.UUID) (preference.Preferences, error)
}

type StatusStore interface {
	GetTotalJobs(ctx context.Context, userID uuid.UUID) (int, error)
	GetJobsToday(ctx context.Context, userID uuid.UUID) (int, error)
	GetSourceStats(ctx context.Context, userID uuid.UUID) ([]domain.SourceStat, error)
	GetStatusCounts(ctx context.Context, userID uuid.UUID) (map[string]int, error)
}

type Discoverer interface {
	ScrapeAndSave(ctx context.Context, userID uuid.UUID, adapters []scraper.JobSourceAdapter, keywords []string, opts discovery.Options) (discovery.Summary, []job.Posting, error)
}

// Intake stores a job and its application in one transaction.
type Intake interface {
	Insert(ctx context.Context, p job.Posting, app *application.Application) (bool, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, s browser.Session, p job.Posting) (job.Posting, error)
}

type Matcher interface {
	Match(ctx context.Context, p job.Posting) (match.Result, error)
}

type Applier interface {
	Apply(ctx context.Context, s browser.Session, p job.Posting, m *match.Result) (applier.Outcome, error)
}

// AdapterFactory builds the adapter for a named board.
type AdapterFactory func(board string, p config.SearchParams) (scraper.JobSourceAdapter, error)

// Locker guards runs across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error)
}

type Deps struct {
	Jobs         JobStore
	Applications ApplicationStore
	Matches      MatchStore
	Preferences  PreferenceStore
	Status       StatusStore
	Discovery    Discoverer
	Intake       Intake
	Analyzer     Analyzer
	Matcher      Matcher
	// NewApplier returns an applier scoped to one run.
	NewApplier func() Applier
	Adapters   AdapterFactory
	Launcher   browser.Launcher
	Locker     Locker
	Notifier   notify.Notifier

	DBPing    func(ctx context.Context) error
	RedisPing func(ctx context.Context) error
}

type Options struct {
	HuntBoards           []string
	OpportunityThreshold float64
	RunTimeout           time.Duration
	LockTTL              time.Duration
}

// Orchestrator allows one browser-driving run at a time per process, and
// across processes when a Locker is configured.
type Orchestrator struct {
	deps Deps
	opts Options
	log  *zap.Logger
	now  func() time.Time

	mu      sync.Mutex
	running bool
}

func New(deps Deps, opts Options, log *zap.Logger) *Orchestrator {
	if opts.OpportunityThreshold <= 0 {
		opts.OpportunityThreshold = DefaultOpportunityThreshold
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 30 * time.Minute
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = opts.RunTimeout + 15*time.Minute
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Multi{}
	}
	return &Orchestrator{deps: deps, opts: opts, log: logger.OrNop(log), now: time.Now}
}

// Running reports whether a run holds the in-process lock.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// acquire takes the run lock or fails fast with ErrRunInProgress.
func (o *Orchestrator) acquire(ctx context.Context) (func(), error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	o.running = true
	o.mu.Unlock()

	unlock := func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}
	if o.deps.Locker == nil {
		return unlock, nil
	}
	release, ok, err := o.deps.Locker.TryLock(ctx, lockKey, o.opts.LockTTL)
	if err != nil {
		o.log.Warn("distributed lock unavailable, relying on process lock", zap.Error(err))
		return unlock, nil
	}
	if !ok {
		unlock()
		return nil, ErrRunInProgress
	}
	return func() {
		release(context.WithoutCancel(ctx))
		unlock()
	}, nil
}

// run owns the browser session of one orchestration. The session is created
// on first use and closed by close.
type run struct {
	o     *Orchestrator
	name  string
	sess  browser.Session
	start time.Time
	log   *zap.Logger
}

func (o *Orchestrator) newRun(name string, userID uuid.UUID) *run {
	return &run{
		o:     o,
		name:  name,
		start: time.Now(),
		log:   o.log.With(zap.String("pipeline", name), zap.String("user_id", userID.String())),
	}
}

func (r *run) session(ctx context.Context) (browser.Session, error) {
	if r.sess != nil {
		return r.sess, nil
	}
	if r.o.deps.Launcher == nil {
		return nil, errors.New("no browser launcher configured")
	}
	s, err := r.o.deps.Launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	r.sess = s
	return s, nil
}

func (r *run) close() {
	if r.sess != nil {
		if err := r.sess.Close(); err != nil {
			r.log.Warn("close browser", zap.Error(err))
		}
		r.sess = nil
	}
	r.log.Debug("run cleanup complete", zap.Duration("duration", time.Since(r.start)))
}

func (o *Orchestrator) notify(ctx context.Context, e notify.Event) {
	notify.Send(context.WithoutCancel(ctx), o.deps.Notifier, e, o.log)
}

func (o *Orchestrator) searchParams(p preference.Preferences) config.SearchParams {
	return config.SearchParams{
		Keywords: p.Keywords,
		Location: p.Location,
		TownName: p.Town,
		Radius:   p.RadiusOrDefault(),
	}
}
