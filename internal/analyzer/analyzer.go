// Package analyzer fetches the full description of a stored posting and
// writes it back.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobpilot/internal/browser"
	"jobpilot/internal/config"
	"jobpilot/internal/domain/job"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

var ErrEmptyDescription = errors.New("description region is empty")

// Error is a failure to analyze one job. The job keeps no description.
type Error struct {
	JobID uuid.UUID
	URL   string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analyze job %s (%s): %v", e.JobID, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// fallbackContent is tried for URLs no configured board owns.
var fallbackContent = []string{
	"#JobAdContent",
	"#jobDescriptionText",
	".jobs-description__content",
	"[class*=job-description]",
	"main",
	"article",
}

type JobStore interface {
	UpdateDescription(ctx context.Context, userID, id uuid.UUID, description string) error
}

type Analyzer struct {
	store  JobStore
	boards config.Catalogue
	wait   time.Duration
	policy *bluemonday.Policy
	md     *converter.Converter
	log    *zap.Logger
}

func New(store JobStore, boards config.Catalogue, wait time.Duration, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &Analyzer{
		store:  store,
		boards: boards,
		wait:   wait,
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		log: log,
	}
}

// Analyze loads p.URL in s, extracts the description and stores it. Errors
// are returned as *Error and are not retried beyond one navigation fallback.
func (a *Analyzer) Analyze(ctx context.Context, s browser.Session, p job.Posting) (job.Posting, error) {
	log := a.log.With(zap.String("pipeline", "analyze"), zap.String("job_id", p.ID.String()))
	start := time.Now()
	fail := func(err error) (job.Posting, error) {
		log.Warn("analysis failed", zap.String("status", "failed"), zap.Error(err))
		return p, &Error{JobID: p.ID, URL: p.URL, Err: err}
	}
	if strings.TrimSpace(p.URL) == "" {
		return fail(errors.New("job has no url"))
	}

	if err := a.open(ctx, s, p.URL, log); err != nil {
		return fail(err)
	}
	text, err := a.extract(ctx, s, p.URL)
	if err != nil {
		return fail(err)
	}
	if err := a.store.UpdateDescription(ctx, p.UserID, p.ID, text); err != nil {
		return fail(fmt.Errorf("save description: %w", err))
	}

	p.Description = &text
	log.Info("description saved",
		zap.String("step", "analyze"),
		zap.String("status", "success"),
		zap.Int("length", len(text)),
		zap.Duration("duration", time.Since(start)),
	)
	return p, nil
}

// open navigates on DOMContentLoaded and retries once waiting for the full
// load when the first attempt hits a protocol error.
func (a *Analyzer) open(ctx context.Context, s browser.Session, url string, log *zap.Logger) error {
	err := s.Navigate(ctx, url, browser.DOMContentLoaded)
	if err == nil {
		return nil
	}
	if !browser.IsProtocolError(err) {
		return fmt.Errorf("open %s: %w", url, err)
	}
	log.Warn("protocol error, retrying with full load", zap.String("url", url), zap.Error(err))
	if err := s.Navigate(ctx, url, browser.Load); err != nil {
		return fmt.Errorf("open %s after retry: %w", url, err)
	}
	return nil
}

func (a *Analyzer) contentSelectors(url string) []string {
	if b, ok := a.boards.ForURL(url); ok && b.Selectors.Content != "" {
		return []string{b.Selectors.Content}
	}
	return fallbackContent
}

func (a *Analyzer) extract(ctx context.Context, s browser.Session, url string) (string, error) {
	sel, err := s.WaitAny(ctx, a.contentSelectors(url), a.wait)
	if err != nil {
		return "", err
	}
	html, err := s.HTML(ctx, sel)
	if err == nil {
		if md := a.toMarkdown(html, url); md != "" {
			return md, nil
		}
	}
	text, err := s.Text(ctx, sel)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDescription
	}
	return text, nil
}

// toMarkdown sanitizes html and renders it as markdown. It returns "" when
// nothing readable is left.
func (a *Analyzer) toMarkdown(html, url string) string {
	clean := a.policy.Sanitize(html)
	if strings.TrimSpace(clean) == "" {
		return ""
	}
	md, err := a.md.ConvertString(clean, converter.WithDomain(url))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}
