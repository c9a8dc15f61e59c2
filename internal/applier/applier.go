// Package applier drives a job board's apply flow in a browser session as an
// explicit state machine and records the outcome on the application.
package applier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"jobpilot/internal/browser"
	"jobpilot/internal/config"
	"jobpilot/internal/domain/application"
	"jobpilot/internal/domain/job"
	"jobpilot/internal/domain/match"
	"jobpilot/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrLoginFailed is returned for every job of a board whose login failed
// earlier in the same run.
var ErrLoginFailed = browser.ErrLoginFailed

var ErrUnsupportedBoard = errors.New("no apply flow configured for this board")

type ApplicationStore interface {
	SetStatus(ctx context.Context, userID, jobID uuid.UUID, status application.Status, meta application.Meta, appliedAt *time.Time) error
}

type JobStore interface {
	UpdateApplyButtonText(ctx context.Context, userID, id uuid.UUID, text string) error
}

type Options struct {
	Credentials config.CredentialsConfig
	Submitter   Submitter
	Wait        time.Duration
	SnapshotDir string
}

// Outcome describes how one apply attempt ended.
type Outcome struct {
	JobID      uuid.UUID
	Result     Result
	Status     application.Status
	URL        string
	ButtonText string
	Submitted  bool
	Snapshot   string
	Err        error
	Trace      []State
}

// Applier is scoped to one run: a login failure on a board sticks until a
// new Applier is created.
type Applier struct {
	boards config.Catalogue
	apps   ApplicationStore
	jobs   JobStore
	opts   Options
	log    *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	loggedIn  map[string]bool
	loginErrs map[string]error
}

func New(boards config.Catalogue, apps ApplicationStore, jobs JobStore, opts Options, log *zap.Logger) *Applier {
	if opts.Submitter == nil {
		opts.Submitter = DryRun{}
	}
	if opts.Wait <= 0 {
		opts.Wait = 10 * time.Second
	}
	return &Applier{
		boards:    boards,
		apps:      apps,
		jobs:      jobs,
		opts:      opts,
		log:       logger.OrNop(log),
		now:       time.Now,
		loggedIn:  map[string]bool{},
		loginErrs: map[string]error{},
	}
}

// attempt carries one walk through the state machine.
type attempt struct {
	a     *Applier
	s     browser.Session
	board config.Board
	job   job.Posting
	state State
	out   Outcome
	log   *zap.Logger
}

// Apply walks the apply flow for p. Unexpected pages end in a followup
// outcome with a nil error; only a failed board login and store failures
// are returned as errors.
func (a *Applier) Apply(ctx context.Context, s browser.Session, p job.Posting, m *match.Result) (Outcome, error) {
	log := a.log.With(zap.String("pipeline", "apply"), zap.String("job_id", p.ID.String()))
	meta := matchMeta(m)

	b, ok := a.boards.ForURL(p.URL)
	if !ok || b.Selectors.ApplyButton == "" {
		out := Outcome{JobID: p.ID, Result: ResultFollowup, Status: application.StatusFollowup, Err: ErrUnsupportedBoard}
		log.Warn("no apply flow for board", zap.String("url", p.URL))
		return out, a.apps.SetStatus(ctx, p.UserID, p.ID, application.StatusFollowup,
			meta.Merge(application.Meta{application.MetaError: ErrUnsupportedBoard.Error()}), nil)
	}
	if err := a.loginError(b.Name); err != nil {
		return Outcome{JobID: p.ID}, err
	}

	at := &attempt{a: a, s: s, board: b, job: p, state: StateInit, out: Outcome{JobID: p.ID}, log: log.With(zap.String("source", b.Name))}
	start := time.Now()
	for at.state != StateDone {
		next, err := at.step(ctx)
		if err != nil {
			if errors.Is(err, ErrLoginFailed) {
				return at.out, err
			}
			at.followup(ctx, err)
			break
		}
		if !canTransition(at.state, next) {
			at.followup(ctx, fmt.Errorf("illegal transition %s -> %s", at.state, next))
			break
		}
		at.out.Trace = append(at.out.Trace, next)
		at.state = next
	}

	if err := at.record(ctx, meta); err != nil {
		return at.out, err
	}
	at.log.Info("apply finished",
		zap.String("step", "apply"),
		zap.String("status", string(at.out.Result)),
		zap.Bool("submitted", at.out.Submitted),
		zap.Duration("duration", time.Since(start)),
	)
	return at.out, nil
}

func (a *Applier) loginError(board string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loginErrs[board]
}

// step performs the work of the current state and returns the next one.
func (at *attempt) step(ctx context.Context) (State, error) {
	sel := at.board.Selectors
	switch at.state {
	case StateInit:
		if err := at.a.ensureLogin(ctx, at.s, at.board); err != nil {
			return at.state, err
		}
		return StateLoggedIn, nil

	case StateLoggedIn:
		if err := at.s.Navigate(ctx, at.job.URL, browser.Load); err != nil {
			return at.state, fmt.Errorf("open job page: %w", err)
		}
		return StateOnJobPage, nil

	case StateOnJobPage:
		body, err := at.s.BodyText(ctx)
		if err != nil {
			return at.state, fmt.Errorf("read job page: %w", err)
		}
		if at.board.IsUnavailable(body) {
			return StateUnavailable, nil
		}
		// The disabled affordance is listed first so it wins when both render.
		found, err := at.s.WaitAny(ctx, nonEmpty(sel.AppliedButton, sel.ApplyButton), at.a.opts.Wait)
		if err != nil {
			return at.state, fmt.Errorf("apply button: %w", err)
		}
		if found == sel.AppliedButton {
			if at.alreadyApplied(ctx) {
				return StateAlreadyApplied, nil
			}
			if !at.exists(ctx, sel.ApplyButton) {
				return at.state, errors.New("apply button: only a disabled button without the applied label is present")
			}
		}
		text, _ := at.s.Text(ctx, sel.ApplyButton)
		at.out.ButtonText = strings.TrimSpace(text)
		if err := at.a.jobs.UpdateApplyButtonText(ctx, at.job.UserID, at.job.ID, at.out.ButtonText); err != nil {
			at.log.Warn("could not record apply button text", zap.Error(err))
		}
		if err := at.s.Click(ctx, sel.ApplyButton); err != nil {
			return at.state, fmt.Errorf("click apply: %w", err)
		}
		return StateApplyClicked, nil

	case StateApplyClicked:
		wanted := nonEmpty(sel.ContinueExternal, sel.Review, sel.Send)
		if _, err := at.s.WaitAny(ctx, wanted, at.a.opts.Wait); err != nil {
			return at.state, fmt.Errorf("next apply step: %w", err)
		}
		switch {
		case at.exists(ctx, sel.ContinueExternal):
			return StateExternalRedirect, nil
		case at.exists(ctx, sel.Review):
			return StateReviewRequired, nil
		case at.exists(ctx, sel.Send):
			return StateDirectSend, nil
		}
		return at.state, errors.New("waited for the next step but no known button is present")

	case StateReviewRequired:
		if err := at.s.Click(ctx, sel.Review); err != nil {
			return at.state, fmt.Errorf("click review: %w", err)
		}
		if _, err := at.s.WaitAny(ctx, []string{sel.Send}, at.a.opts.Wait); err != nil {
			return at.state, fmt.Errorf("send button after review: %w", err)
		}
		return StateDirectSend, nil

	case StateUnavailable:
		at.finish(ResultExpired, application.StatusRejected)
		return StateDone, nil

	case StateAlreadyApplied:
		at.finish(ResultAlreadyApplied, application.StatusApplied)
		return StateDone, nil

	case StateExternalRedirect:
		href, ok, _ := at.s.Attr(ctx, sel.ContinueExternal, "href")
		if !ok || strings.TrimSpace(href) == "" {
			href, _ = at.s.URL(ctx)
		}
		at.out.URL = href
		at.finish(ResultExternal, application.StatusExternal)
		return StateDone, nil

	case StateDirectSend:
		sent, err := at.a.opts.Submitter.Submit(ctx, at.s, sel.Send)
		if err != nil {
			return at.state, fmt.Errorf("submit application: %w", err)
		}
		at.out.Submitted = sent
		at.finish(ResultApplied, application.StatusApplied)
		return StateDone, nil
	}
	return at.state, fmt.Errorf("no handler for state %s", at.state)
}

func (at *attempt) finish(r Result, st application.Status) {
	at.out.Result = r
	at.out.Status = st
}

func (at *attempt) exists(ctx context.Context, sel string) bool {
	if sel == "" {
		return false
	}
	ok, _ := at.s.Exists(ctx, sel)
	return ok
}

// alreadyApplied checks the disabled apply affordance, which the caller has
// already seen. When the board names a label, its text must contain it.
func (at *attempt) alreadyApplied(ctx context.Context) bool {
	sel := at.board.Selectors.AppliedButton
	label := strings.ToLower(strings.TrimSpace(at.board.AlreadyAppliedLabel))
	if label == "" {
		return true
	}
	text, err := at.s.Text(ctx, sel)
	return err == nil && strings.Contains(strings.ToLower(text), label)
}

func (at *attempt) followup(ctx context.Context, err error) {
	at.out.Err = err
	at.finish(ResultFollowup, application.StatusFollowup)
	at.state = StateDone
	at.out.Trace = append(at.out.Trace, StateDone)

	path, serr := browser.Capture(ctx, at.s, at.a.opts.SnapshotDir, at.board.Name+"-apply-error")
	if serr != nil {
		at.log.Warn("snapshot failed", zap.Error(serr))
	} else {
		at.out.Snapshot = path
	}
	at.log.Warn("non-standard apply, marked for followup", zap.String("status", "followup"), zap.Error(err))
}

// record writes the outcome on the job's application.
func (at *attempt) record(ctx context.Context, meta application.Meta) error {
	var appliedAt *time.Time
	extra := application.Meta{application.MetaOutcome: string(at.out.Result)}
	switch at.out.Result {
	case ResultApplied:
		now := at.a.now().UTC()
		appliedAt = &now
		if !at.out.Submitted {
			extra[application.MetaNote] = "dry run: final send was not clicked"
		}
	case ResultExpired:
		extra[application.MetaError] = "job is no longer available"
	case ResultExternal:
		extra[application.MetaExternalURL] = at.out.URL
	case ResultFollowup:
		if at.out.Err != nil {
			extra[application.MetaError] = at.out.Err.Error()
		}
		if at.out.Snapshot != "" {
			extra[application.MetaSnapshot] = at.out.Snapshot
		}
	}
	if err := at.a.apps.SetStatus(ctx, at.job.UserID, at.job.ID, at.out.Status, meta.Merge(extra), appliedAt); err != nil {
		return fmt.Errorf("record apply outcome: %w", err)
	}
	return nil
}

// ensureLogin signs in once per board and remembers failures for the run.
func (a *Applier) ensureLogin(ctx context.Context, s browser.Session, b config.Board) error {
	if !b.RequiresLogin {
		return nil
	}
	a.mu.Lock()
	if err := a.loginErrs[b.Name]; err != nil {
		a.mu.Unlock()
		return err
	}
	if a.loggedIn[b.Name] {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	creds, _ := a.opts.Credentials.For(b.Name)
	err := browser.Login(ctx, s, b, creds, a.opts.Wait)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		if _, serr := browser.Capture(ctx, s, a.opts.SnapshotDir, b.Name+"-login-error"); serr != nil {
			a.log.Warn("snapshot failed", zap.Error(serr))
		}
		a.loginErrs[b.Name] = err
		a.log.Error("board login failed", zap.String("source", b.Name), zap.Error(err))
		return err
	}
	a.loggedIn[b.Name] = true
	return nil
}

func matchMeta(m *match.Result) application.Meta {
	if m == nil || !m.Persistable() {
		return application.Meta{}
	}
	return application.Meta{
		application.MetaScore:   m.Score,
		application.MetaReasons: m.Reasons(),
	}
}

func nonEmpty(sels ...string) []string {
	out := make([]string, 0, len(sels))
	for _, s := range sels {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
