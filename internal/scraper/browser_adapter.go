package scraper

import (
	"context"
	"errors"
	"strings"
	"time"

	"jobpilot/internal/browser"
	"jobpilot/internal/config"
	"jobpilot/internal/domain/job"

	"go.uber.org/zap"
)

// noResultsPhrases are checked against the page body when a board has no
// dedicated "no results" element.
var noResultsPhrases = []string{"no jobs found", "0 jobs found", "no matching jobs"}

// BrowserAdapter scrapes a board's results page through a browser session.
type BrowserAdapter struct {
	board     config.Board
	searchURL string
	opts      Options
	log       *zap.Logger

	session browser.Session
}

func NewBrowserAdapter(b config.Board, searchURL string, opts Options) *BrowserAdapter {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &BrowserAdapter{
		board:     b,
		searchURL: searchURL,
		opts:      opts,
		log:       log.With(zap.String("source", b.Name)),
	}
}

func (a *BrowserAdapter) Name() string { return a.board.Name }

// Init launches the session and, when the board has a login page and
// credentials are configured, signs in.
func (a *BrowserAdapter) Init(ctx context.Context) error {
	if a.session != nil {
		return nil
	}
	s, err := a.opts.Launcher.Launch(ctx)
	if err != nil {
		return adapterErr(a.board.Name, "launch", err)
	}
	a.session = s

	creds, ok := a.opts.Credentials.For(a.board.Name)
	if a.board.LoginURL == "" || !ok {
		return nil
	}
	a.log.Info("logging in", zap.String("step", "login"))
	if err := browser.Login(ctx, s, a.board, creds, a.opts.waitTimeout()); err != nil {
		return adapterErr(a.board.Name, "login", err)
	}
	return nil
}

func (a *BrowserAdapter) FetchJobs(ctx context.Context) ([]job.Raw, error) {
	if a.session == nil {
		return nil, adapterErr(a.board.Name, "fetch", ErrNotInitialized)
	}
	s := a.session
	start := time.Now()
	a.log.Info("scraping", zap.String("step", "fetch"), zap.String("url", a.searchURL))

	if err := s.Navigate(ctx, a.searchURL, browser.DOMContentLoaded); err != nil {
		return nil, adapterErr(a.board.Name, "navigate", err)
	}
	if ok, err := browser.DismissConsent(ctx, s, a.board.Selectors.CookieConsent); err != nil {
		return nil, adapterErr(a.board.Name, "cookie consent", err)
	} else if ok {
		a.log.Debug("cookie consent accepted")
	}

	empty, err := a.waitForResults(ctx)
	if err != nil {
		path, snapErr := browser.Capture(ctx, s, a.opts.SnapshotDir, a.board.Name+"-no-results")
		if snapErr == nil {
			a.log.Warn("results did not load", zap.String("snapshot", path), zap.Error(err))
		}
		return nil, adapterErr(a.board.Name, "wait for results", err)
	}
	if empty {
		a.log.Info("no jobs for this search", zap.String("status", "empty"))
		return []job.Raw{}, nil
	}

	var items []listing
	if err := s.Evaluate(ctx, listingJS(a.board.Selectors), &items); err != nil {
		return nil, adapterErr(a.board.Name, "extract", err)
	}
	jobs := toRaw(a.board, items)
	a.log.Info("scraped",
		zap.String("status", "success"),
		zap.Int("cards", len(items)),
		zap.Int("jobs", len(jobs)),
		zap.Duration("duration", time.Since(start)),
	)
	return jobs, nil
}

// waitForResults reports empty=true when the board shows its "no results"
// state instead of a listing.
func (a *BrowserAdapter) waitForResults(ctx context.Context) (bool, error) {
	sel := a.board.Selectors
	ready := sel.ResultsReady
	if ready == "" {
		ready = sel.Card
	}
	wait := []string{ready}
	if sel.NoResults != "" {
		wait = append(wait, sel.NoResults)
	}
	found, err := a.session.WaitAny(ctx, wait, a.opts.waitTimeout())
	if err == nil {
		return found == sel.NoResults && found != ready, nil
	}
	if !errors.Is(err, browser.ErrNotFound) {
		return false, err
	}
	body, berr := a.session.BodyText(ctx)
	if berr == nil && hasNoResultsPhrase(body) {
		return true, nil
	}
	return false, err
}

func hasNoResultsPhrase(body string) bool {
	lower := strings.ToLower(body)
	for _, p := range noResultsPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (a *BrowserAdapter) Close() error {
	if a.session == nil {
		return nil
	}
	err := a.session.Close()
	a.session = nil
	return err
}
