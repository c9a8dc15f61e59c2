package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

type PlaywrightLauncher struct {
	Opts Options
	Log  *zap.Logger
}

func (l *PlaywrightLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.Opts.Headless),
		Args:     []string{"--disable-blink-features=AutomationControlled", "--disable-dev-shm-usage"},
	}
	if l.Opts.ExecPath != "" {
		launch.ExecutablePath = playwright.String(l.Opts.ExecPath)
	}
	b, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	ctxOpts := playwright.BrowserNewContextOptions{}
	if l.Opts.UserAgent != "" {
		ctxOpts.UserAgent = playwright.String(l.Opts.UserAgent)
	}
	bctx, err := b.NewContext(ctxOpts)
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	p, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new page: %w", err)
	}
	p.SetDefaultTimeout(float64(l.Opts.NavTimeout.Milliseconds()))

	s := &playwrightSession{pw: pw, browser: b, bctx: bctx, page: p, timeout: l.Opts.NavTimeout, log: l.Log}
	s.domOps = domOps{eval: s.Evaluate}
	l.Log.Debug("browser launched", zap.String("driver", "playwright"))
	return s, nil
}

// playwright-go has no context support; ctx is checked before each call and
// the configured timeout bounds the call itself.
type playwrightSession struct {
	domOps

	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page
	timeout time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
}

func (s *playwrightSession) ready(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (s *playwrightSession) timeoutMs(ctx context.Context) *float64 {
	d := s.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d || d <= 0 {
			d = left
		}
	}
	if d <= 0 {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (s *playwrightSession) Navigate(ctx context.Context, url string, wait WaitStrategy) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	state := playwright.WaitUntilStateDomcontentloaded
	switch wait {
	case Load:
		state = playwright.WaitUntilStateLoad
	case NetworkIdle:
		state = playwright.WaitUntilStateNetworkidle
	}
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{WaitUntil: state, Timeout: s.timeoutMs(ctx)}); err != nil {
		return fmt.Errorf("navigate %s (%s): %w", url, wait, err)
	}
	return nil
}

func (s *playwrightSession) Click(ctx context.Context, sel string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := s.page.Locator(sel).First().Click(playwright.LocatorClickOptions{Timeout: s.timeoutMs(ctx)}); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

func (s *playwrightSession) Type(ctx context.Context, sel, text string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := s.page.Locator(sel).First().Fill(text, playwright.LocatorFillOptions{Timeout: s.timeoutMs(ctx)}); err != nil {
		return fmt.Errorf("type into %s: %w", sel, err)
	}
	return nil
}

func (s *playwrightSession) Evaluate(ctx context.Context, js string, out any) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	v, err := s.page.Evaluate(js)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode evaluation result: %w", err)
	}
	return json.Unmarshal(b, out)
}

func (s *playwrightSession) URL(ctx context.Context) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	return s.page.URL(), nil
}

func (s *playwrightSession) Screenshot(ctx context.Context, path string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (s *playwrightSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for _, c := range []func() error{
		func() error { return s.page.Close() },
		func() error { return s.bctx.Close() },
		func() error { return s.browser.Close() },
		s.pw.Stop,
	} {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
