package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

type RodLauncher struct {
	Opts Options
	Log  *zap.Logger
}

func (l *RodLauncher) Launch(ctx context.Context) (Session, error) {
	ln := launcher.New().
		Headless(l.Opts.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		NoSandbox(true)
	if l.Opts.ExecPath != "" {
		ln = ln.Bin(l.Opts.ExecPath)
	}

	u, err := ln.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		ln.Kill()
		return nil, fmt.Errorf("connect chrome: %w", err)
	}

	var p *rod.Page
	if l.Opts.Stealth {
		p, err = stealth.Page(b)
	} else {
		p, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = b.Close()
		ln.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}

	if l.Opts.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: l.Opts.UserAgent}); err != nil {
			l.Log.Warn("set user agent failed", zap.Error(err))
		}
	}

	s := &rodSession{browser: b, page: p, launcher: ln, timeout: l.Opts.NavTimeout, log: l.Log}
	s.domOps = domOps{eval: s.Evaluate}
	l.Log.Debug("browser launched", zap.String("driver", "rod"), zap.Bool("stealth", l.Opts.Stealth))
	return s, nil
}

type rodSession struct {
	domOps

	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	timeout  time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	closed bool
}

// pageFor returns the page bound to ctx and the session timeout.
func (s *rodSession) pageFor(ctx context.Context) (*rod.Page, context.CancelFunc, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, func() {}, ErrClosed
	}
	c, cancel := withOpTimeout(ctx, s.timeout)
	return s.page.Context(c), cancel, nil
}

func (s *rodSession) Navigate(ctx context.Context, url string, wait WaitStrategy) error {
	p, cancel, err := s.pageFor(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	var waitFn func()
	switch wait {
	case Load:
	case NetworkIdle:
		waitFn = p.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	default:
		waitFn = p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	}

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s (%s): %w", url, wait, err)
	}
	if waitFn != nil {
		waitFn()
	} else if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("navigate %s (%s): %w", url, wait, err)
	}

	var code string
	if err := s.Evaluate(ctx, chromeErrorScript, &code); err == nil && code != "" {
		return fmt.Errorf("navigate %s (%s): net::%s", url, wait, code)
	}
	return nil
}

func (s *rodSession) element(ctx context.Context, sel string) (*rod.Element, context.CancelFunc, error) {
	p, cancel, err := s.pageFor(ctx)
	if err != nil {
		return nil, cancel, err
	}
	el, err := p.Element(sel)
	if err != nil {
		cancel()
		return nil, func() {}, fmt.Errorf("%w: %s: %v", ErrNotFound, sel, err)
	}
	return el, cancel, nil
}

func (s *rodSession) Click(ctx context.Context, sel string) error {
	el, cancel, err := s.element(ctx, sel)
	defer cancel()
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

func (s *rodSession) Type(ctx context.Context, sel, text string) error {
	el, cancel, err := s.element(ctx, sel)
	defer cancel()
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		s.log.Debug("select text before input", zap.String("selector", sel), zap.Error(err))
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into %s: %w", sel, err)
	}
	return nil
}

func (s *rodSession) Evaluate(ctx context.Context, js string, out any) error {
	p, cancel, err := s.pageFor(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	res, err := p.Eval(`() => (` + js + `)`)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return res.Value.Unmarshal(out)
}

func (s *rodSession) URL(ctx context.Context) (string, error) {
	p, cancel, err := s.pageFor(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()
	info, err := p.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *rodSession) Screenshot(ctx context.Context, path string) error {
	p, cancel, err := s.pageFor(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	buf, err := p.Screenshot(true, nil)
	if err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}

func (s *rodSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.page.Close(); err != nil {
		firstErr = err
	}
	if err := s.browser.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.launcher.Kill()
	return firstErr
}
