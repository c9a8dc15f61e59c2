package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"jobpilot/internal/config"
	"jobpilot/internal/domain/job"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// CollyAdapter scrapes boards whose results pages render server side.
type CollyAdapter struct {
	board     config.Board
	searchURL string
	opts      Options
	log       *zap.Logger

	collector *colly.Collector
}

func NewCollyAdapter(b config.Board, searchURL string, opts Options) *CollyAdapter {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &CollyAdapter{
		board:     b,
		searchURL: searchURL,
		opts:      opts,
		log:       log.With(zap.String("source", b.Name)),
	}
}

func (a *CollyAdapter) Name() string { return a.board.Name }

func (a *CollyAdapter) Init(context.Context) error {
	if a.collector != nil {
		return nil
	}
	ua := strings.TrimSpace(a.opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	c := colly.NewCollector(
		colly.AllowedDomains(a.allowedDomains()...),
		colly.UserAgent(ua),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(a.opts.waitTimeout() * 3)
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1, RandomDelay: 500 * time.Millisecond})
	a.collector = c
	return nil
}

// allowedDomains is the board's domains plus the search URL host.
func (a *CollyAdapter) allowedDomains() []string {
	out := append([]string{}, a.board.AllowedDomains...)
	if u, err := url.Parse(a.searchURL); err == nil && u.Hostname() != "" {
		out = append(out, u.Hostname())
	}
	return out
}

func (a *CollyAdapter) FetchJobs(ctx context.Context) ([]job.Raw, error) {
	if a.collector == nil {
		return nil, adapterErr(a.board.Name, "fetch", ErrNotInitialized)
	}
	if err := ctx.Err(); err != nil {
		return nil, adapterErr(a.board.Name, "fetch", err)
	}
	start := time.Now()
	sel := a.board.Selectors
	// Clone so callbacks do not pile up across fetches.
	c := a.collector.Clone()
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		r.Headers.Set("Accept-Language", "en-GB,en;q=0.9")
	})

	var (
		items     []listing
		noResults bool
		reqErr    error
	)
	if sel.NoResults != "" {
		c.OnHTML(sel.NoResults, func(*colly.HTMLElement) { noResults = true })
	}
	c.OnHTML(sel.Card, func(e *colly.HTMLElement) {
		it := listing{
			Title:    firstText(e, sel.Title),
			Company:  firstText(e, sel.Company),
			Location: firstText(e, sel.Location),
			Salary:   firstText(e, sel.Salary),
			Posted:   firstText(e, sel.Posted),
		}
		if href := firstAttr(e, sel.Link, "href"); href != "" {
			it.URL = e.Request.AbsoluteURL(href)
		}
		items = append(items, it)
	})
	c.OnError(func(r *colly.Response, err error) {
		reqErr = fmt.Errorf("GET %s: status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	a.log.Info("scraping", zap.String("step", "fetch"), zap.String("url", a.searchURL))
	if err := c.Visit(a.searchURL); err != nil {
		return nil, adapterErr(a.board.Name, "visit", err)
	}
	c.Wait()
	if reqErr != nil {
		return nil, adapterErr(a.board.Name, "visit", reqErr)
	}
	if noResults && len(items) == 0 {
		a.log.Info("no jobs for this search", zap.String("status", "empty"))
		return []job.Raw{}, nil
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

func (a *CollyAdapter) Close() error {
	a.collector = nil
	return nil
}

func firstText(e *colly.HTMLElement, sel string) string {
	if sel == "" {
		return ""
	}
	return strings.TrimSpace(e.DOM.Find(sel).First().Text())
}

func firstAttr(e *colly.HTMLElement, sel, attr string) string {
	if sel == "" {
		return ""
	}
	v, _ := e.DOM.Find(sel).First().Attr(attr)
	return strings.TrimSpace(v)
}
