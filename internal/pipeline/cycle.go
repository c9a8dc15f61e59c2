package pipeline

import (
	"context"
	"errors"
	"time"

	"jobpilot/internal/discovery"
	"jobpilot/internal/domain/application"
	"jobpilot/internal/domain/job"
	"jobpilot/internal/domain/preference"
	"jobpilot/internal/notify"
	"jobpilot/internal/scraper"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScrapeBoard runs one board: discovery with an opportunity application per
// new job, then analysis of every new job.
func (o *Orchestrator) ScrapeBoard(ctx context.Context, userID uuid.UUID, source string) (ScrapeSummary, error) {
	summary := ScrapeSummary{Source: source, Errors: []JobError{}}
	prefs, err := o.readyPreferences(ctx, userID)
	if err != nil {
		return summary, err
	}
	adapter, err := o.deps.Adapters(source, o.searchParams(prefs))
	if err != nil {
		return summary, err
	}

	release, err := o.acquire(ctx)
	if err != nil {
		return summary, err
	}
	defer release()

	r := o.newRun("scrape", userID)
	defer r.close()
	o.notify(ctx, notify.Event{Type: notify.RunStarted, UserID: userID, Run: "scrape", Data: map[string]any{"source": source}, At: o.now().UTC()})

	found, saved, err := o.deps.Discovery.ScrapeAndSave(ctx, userID, []scraper.JobSourceAdapter{adapter}, prefs.StackKeywordList(), discovery.Options{
		Blocklist:         prefs.BlocklistTerms(),
		Trigger:           "manual",
		CreateOpportunity: true,
	})
	summary.Fetched, summary.Relevant, summary.Inserted = found.Fetched, found.Relevant, found.Inserted
	summary.Opportunities = found.Inserted
	if err != nil {
		o.finish(ctx, r, userID, len(summary.Errors)+1, summary.String())
		return summary, err
	}

	for _, p := range saved {
		if ctx.Err() != nil {
			break
		}
		if _, err := r.analyze(ctx, p); err != nil {
			summary.AnalyzeFailed++
			summary.Errors = append(summary.Errors, JobError{JobID: p.ID, URL: p.URL, Step: "analyze", Error: err.Error()})
			continue
		}
		summary.Analyzed++
	}

	r.log.Info("scrape cycle finished",
		zap.String("source", source),
		zap.Int("inserted", summary.Inserted),
		zap.Int("analyzed", summary.Analyzed),
		zap.Int("analyze_failed", summary.AnalyzeFailed),
		zap.Duration("duration", time.Since(r.start)),
	)
	o.finish(ctx, r, userID, len(summary.Errors), summary.String())
	return summary, ctx.Err()
}

// Hunt scrapes every configured board, analyzes and matches each new job,
// and promotes a job to opportunity only when it matches above the
// opportunity threshold.
func (o *Orchestrator) Hunt(ctx context.Context, userID uuid.UUID) (HuntSummary, error) {
	release, err := o.acquire(ctx)
	if err != nil {
		return HuntSummary{}, err
	}
	defer release()
	return o.hunt(ctx, userID)
}

// StartHunt takes the run lock and hunts in the background with its own
// timeout. done, when non-nil, receives the outcome.
func (o *Orchestrator) StartHunt(ctx context.Context, userID uuid.UUID, done func(HuntSummary, error)) error {
	release, err := o.acquire(ctx)
	if err != nil {
		return err
	}
	go func() {
		defer release()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.RunTimeout)
		defer cancel()
		s, err := o.hunt(runCtx, userID)
		if err != nil {
			o.log.Error("background hunt failed", zap.String("pipeline", "hunt"), zap.Error(err))
		}
		if done != nil {
			done(s, err)
		}
	}()
	return nil
}

func (o *Orchestrator) hunt(ctx context.Context, userID uuid.UUID) (HuntSummary, error) {
	summary := HuntSummary{Boards: []BoardSummary{}, Errors: []JobError{}}
	prefs, err := o.readyPreferences(ctx, userID)
	if errors.Is(err, ErrPreferencesNotSet) {
		summary.Skipped = true
		summary.Message = "hunt skipped: keywords or location not set in preferences"
		o.log.Info(summary.Message, zap.String("pipeline", "hunt"))
		return summary, nil
	}
	if err != nil {
		return summary, err
	}

	r := o.newRun("hunt", userID)
	defer r.close()
	o.notify(ctx, notify.Event{Type: notify.RunStarted, UserID: userID, Run: "hunt", At: o.now().UTC()})

	params := o.searchParams(prefs)
	adapters := make([]scraper.JobSourceAdapter, 0, len(o.opts.HuntBoards))
	for _, name := range o.opts.HuntBoards {
		a, err := o.deps.Adapters(name, params)
		if err != nil {
			summary.Boards = append(summary.Boards, BoardSummary{Source: name, Error: err.Error()})
			continue
		}
		adapters = append(adapters, a)
	}

	found, saved, err := o.deps.Discovery.ScrapeAndSave(ctx, userID, adapters, prefs.StackKeywordList(), discovery.Options{
		Blocklist: prefs.BlocklistTerms(),
		Trigger:   "hunt",
	})
	summary.Boards = append(summary.Boards, boardSummaries(found)...)
	summary.Inserted = found.Inserted
	if err != nil {
		o.finish(ctx, r, userID, 1, summary.String())
		return summary, err
	}
	if len(saved) == 0 {
		summary.Message = "hunt complete: no new jobs found"
	}

	for _, p := range saved {
		if ctx.Err() != nil {
			break
		}
		o.huntJob(ctx, r, p, &summary)
	}

	if summary.Message == "" {
		summary.Message = summary.String()
	}
	r.log.Info("hunt finished",
		zap.Int("inserted", summary.Inserted),
		zap.Int("analyzed", summary.Analyzed),
		zap.Int("matched", summary.Matched),
		zap.Int("opportunities", summary.Opportunities),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("duration", time.Since(r.start)),
	)
	o.finish(ctx, r, userID, len(summary.Errors), summary.String())
	return summary, ctx.Err()
}

// huntJob analyzes, matches and possibly promotes one newly inserted job.
func (o *Orchestrator) huntJob(ctx context.Context, r *run, p job.Posting, summary *HuntSummary) {
	fail := func(step string, err error) {
		summary.Errors = append(summary.Errors, JobError{JobID: p.ID, URL: p.URL, Step: step, Error: err.Error()})
	}

	analyzed, err := r.analyze(ctx, p)
	if err != nil {
		fail("analyze", err)
		return
	}
	summary.Analyzed++
	if !analyzed.HasDescription() {
		r.log.Warn("skipping match, no description", zap.String("job_id", p.ID.String()))
		return
	}

	res, err := o.deps.Matcher.Match(ctx, analyzed)
	if err != nil {
		fail("match", err)
		return
	}
	if !res.Persistable() {
		fail("match", errors.New(string(res.Reason)))
		return
	}
	summary.Matched++
	if !res.Match || res.Score <= o.opts.OpportunityThreshold {
		return
	}

	meta := application.Meta{
		application.MetaNote:       "found by hunt",
		application.MetaMatchScore: res.Score,
		application.MetaReasons:    res.Reasons(),
	}
	if err := o.deps.Applications.SetStatus(ctx, p.UserID, p.ID, application.StatusOpportunity, meta, nil); err != nil {
		fail("promote", err)
		return
	}
	summary.Opportunities++
	o.notify(ctx, notify.NewEvent(notify.OpportunityFound, p.UserID, map[string]any{
		"job_id":  p.ID.String(),
		"title":   p.Title,
		"company": p.Company,
		"url":     p.URL,
		"score":   res.Score,
	}))
}

func (r *run) analyze(ctx context.Context, p job.Posting) (job.Posting, error) {
	s, err := r.session(ctx)
	if err != nil {
		return p, err
	}
	return r.o.deps.Analyzer.Analyze(ctx, s, p)
}

func (o *Orchestrator) readyPreferences(ctx context.Context, userID uuid.UUID) (preference.Preferences, error) {
	prefs, err := o.deps.Preferences.Get(ctx, userID)
	if err != nil {
		return prefs, err
	}
	if !prefs.ReadyForHunt() {
		return prefs, ErrPreferencesNotSet
	}
	return prefs, nil
}

func (o *Orchestrator) finish(ctx context.Context, r *run, userID uuid.UUID, errs int, summary string) {
	o.notify(ctx, notify.Event{
		Type:   notify.RunFinished,
		UserID: userID,
		Run:    r.name,
		Data:   map[string]any{"errors": errs, "summary": summary},
		At:     o.now().UTC(),
	})
}
