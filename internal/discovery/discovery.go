// Package discovery runs job source adapters and stores the relevant,
// previously unseen postings they return.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobpilot/internal/domain/application"
	"jobpilot/internal/domain/job"
	"jobpilot/internal/filter"
	"jobpilot/internal/repository"
	"jobpilot/internal/scraper"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrAllAdaptersFailed = errors.New("all job sources failed")

type Options struct {
	Blocklist []string
	// Trigger labels the scrape run: manual, hunt, ...
	Trigger string
	// CreateOpportunity stores an opportunity application with each new job.
	CreateOpportunity bool
}

// SourceSummary is the outcome for one adapter.
type SourceSummary struct {
	Source     string
	Fetched    int
	Relevant   int
	Duplicates int
	Inserted   int
	Failed     int
	Err        error
}

type Summary struct {
	Sources    []SourceSummary
	Fetched    int
	Relevant   int
	Duplicates int
	Inserted   int
	Failed     int
}

func (s *Summary) add(src SourceSummary) {
	s.Sources = append(s.Sources, src)
	s.Fetched += src.Fetched
	s.Relevant += src.Relevant
	s.Duplicates += src.Duplicates
	s.Inserted += src.Inserted
	s.Failed += src.Failed
}

// Errors returns the adapter failures of the run.
func (s Summary) Errors() []error {
	var out []error
	for _, src := range s.Sources {
		if src.Err != nil {
			out = append(out, src.Err)
		}
	}
	return out
}

type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// ScrapeAndSave runs adapters one after another. A failing adapter yields
// nothing for this run and the loop moves on; Close is always called. The
// returned postings are the ones inserted by this call.
func (s *Service) ScrapeAndSave(ctx context.Context, userID uuid.UUID, adapters []scraper.JobSourceAdapter, keywords []string, opts Options) (Summary, []job.Posting, error) {
	var (
		summary Summary
		saved   []job.Posting
	)
	relevance := filter.New(opts.Blocklist, keywords)
	failed := 0
	for _, a := range adapters {
		if err := ctx.Err(); err != nil {
			return summary, saved, err
		}
		src, posts := s.runAdapter(ctx, userID, a, relevance, opts)
		summary.add(src)
		saved = append(saved, posts...)
		if src.Err != nil {
			failed++
		}
	}
	if len(adapters) > 0 && failed == len(adapters) {
		return summary, saved, fmt.Errorf("%w: %w", ErrAllAdaptersFailed, errors.Join(summary.Errors()...))
	}
	return summary, saved, nil
}

func (s *Service) runAdapter(ctx context.Context, userID uuid.UUID, a scraper.JobSourceAdapter, relevance *filter.Relevance, opts Options) (SourceSummary, []job.Posting) {
	source := a.Name()
	log := s.log.With(zap.String("pipeline", "discovery"), zap.String("source", source))
	start := time.Now()
	src := SourceSummary{Source: source}

	runID, err := s.store.StartRun(ctx, userID, source, opts.Trigger)
	if err != nil {
		log.Warn("could not record scrape run", zap.Error(err))
	}

	raws, err := fetch(ctx, a)
	if err != nil {
		src.Err = err
		log.Error("adapter failed, moving on", zap.String("step", "fetch"), zap.Error(err))
		s.finish(ctx, runID, src, log)
		return src, nil
	}
	src.Fetched = len(raws)

	relevant, step := relevance.Apply(raws, log)
	relevant = uniqueByURL(relevant)
	src.Relevant = len(relevant)
	log.Info("filtered",
		zap.String("step", "filter"),
		zap.Int("fetched", step.Initial),
		zap.Int("blocked", step.Blocked),
		zap.Int("irrelevant", step.Irrelevant),
		zap.Int("lenient", step.Lenient),
		zap.Int("relevant", src.Relevant),
	)
	if len(relevant) == 0 {
		s.finish(ctx, runID, src, log)
		return src, nil
	}

	urls := make([]string, 0, len(relevant))
	for _, r := range relevant {
		urls = append(urls, r.URL)
	}
	existing, err := s.store.ExistingURLs(ctx, userID, urls)
	if err != nil {
		src.Err = fmt.Errorf("%s: look up existing jobs: %w", source, err)
		log.Error("dedup lookup failed", zap.String("step", "dedup"), zap.Error(err))
		s.finish(ctx, runID, src, log)
		return src, nil
	}

	var saved []job.Posting
	now := s.now()
	for _, r := range relevant {
		if _, ok := existing[r.URL]; ok {
			src.Duplicates++
			continue
		}
		p := job.FromRaw(userID, source, r, now)
		var app *application.Application
		if opts.CreateOpportunity {
			app = &application.Application{
				Status: application.StatusOpportunity,
				Source: source,
				Meta:   application.Meta{application.MetaNote: "discovered by " + source},
			}
		}
		ok, err := s.store.Insert(ctx, p, app)
		if err != nil {
			src.Failed++
			log.Warn("insert failed", zap.String("step", "insert"), zap.String("url", p.URL), zap.Error(err))
			s.logRun(ctx, runID, "error", fmt.Sprintf("insert %s: %v", p.URL, err), log)
			continue
		}
		if !ok {
			// Another run stored it since the lookup.
			src.Duplicates++
			continue
		}
		src.Inserted++
		saved = append(saved, p)
	}

	if src.Duplicates > 0 {
		log.Info("ignoring jobs already stored", zap.String("step", "dedup"), zap.Int("duplicates", src.Duplicates))
	}
	log.Info("saved",
		zap.String("step", "insert"),
		zap.String("status", "success"),
		zap.Int("inserted", src.Inserted),
		zap.Int("failed", src.Failed),
		zap.Duration("duration", time.Since(start)),
	)
	s.finish(ctx, runID, src, log)
	return src, saved
}

// fetch runs Init and FetchJobs, closing the adapter whatever happens.
func fetch(ctx context.Context, a scraper.JobSourceAdapter) (raws []job.Raw, err error) {
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%s: close: %w", a.Name(), cerr)
		}
	}()
	if err := a.Init(ctx); err != nil {
		return nil, err
	}
	return a.FetchJobs(ctx)
}

// logRun appends to the run's audit log. Without a run row there is nothing
// to attach to.
func (s *Service) logRun(ctx context.Context, runID uuid.UUID, level, msg string, log *zap.Logger) {
	if runID == uuid.Nil {
		return
	}
	if err := s.store.LogRun(ctx, runID, level, msg); err != nil {
		log.Debug("could not write scrape log", zap.Error(err))
	}
}

func (s *Service) finish(ctx context.Context, runID uuid.UUID, src SourceSummary, log *zap.Logger) {
	if runID == uuid.Nil {
		return
	}
	status := job.ScrapeRunSuccess
	msg := ""
	if src.Err != nil {
		status = job.ScrapeRunFailed
		msg = src.Err.Error()
	}
	// The run row is written even when ctx was cancelled mid-run.
	ctx = context.WithoutCancel(ctx)
	counts := repository.ScrapeCounts{Fetched: src.Fetched, Relevant: src.Relevant, Inserted: src.Inserted}
	if err := s.store.FinishRun(ctx, runID, status, counts, msg); err != nil {
		log.Warn("could not finish scrape run", zap.Error(err))
	}
}

// uniqueByURL keeps the first posting per URL.
func uniqueByURL(in []job.Raw) []job.Raw {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, r := range in {
		if _, ok := seen[r.URL]; ok {
			continue
		}
		seen[r.URL] = struct{}{}
		out = append(out, r)
	}
	return out
}
