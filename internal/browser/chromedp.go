package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

type ChromedpLauncher struct {
	Opts Options
	Log  *zap.Logger
}

func (l *ChromedpLauncher) Launch(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.Opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if l.Opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.Opts.UserAgent))
	}
	if l.Opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.Opts.ExecPath))
	}

	// The browser outlives the launch call; Close releases it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	startCtx, cancel := withOpTimeout(tabCtx, l.Opts.NavTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(startCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	s := &chromedpSession{
		ctx:     tabCtx,
		cancel:  func() { tabCancel(); allocCancel() },
		timeout: l.Opts.NavTimeout,
		log:     l.Log,
	}
	s.domOps = domOps{eval: s.Evaluate}
	l.Log.Debug("browser launched", zap.String("driver", "chromedp"), zap.Bool("headless", l.Opts.Headless))
	return s, nil
}

type chromedpSession struct {
	domOps

	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	log     *zap.Logger

	closeOnce sync.Once
}

// run executes actions on the tab, bounded by both ctx and the session timeout.
func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	runCtx, cancel := withOpTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *chromedpSession) Navigate(ctx context.Context, url string, wait WaitStrategy) error {
	var err error
	switch wait {
	case Load:
		err = s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
	case NetworkIdle:
		err = s.run(ctx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(1500*time.Millisecond),
		)
	default:
		err = s.run(ctx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				var res page.NavigateReturns
				if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
					return err
				}
				if res.ErrorText != "" {
					return fmt.Errorf("page load error %s", res.ErrorText)
				}
				return nil
			}),
			chromedp.Poll(`document.readyState !== "loading"`, nil, chromedp.WithPollingInterval(100*time.Millisecond)),
		)
	}
	if err != nil {
		return fmt.Errorf("navigate %s (%s): %w", url, wait, err)
	}

	var code string
	if err := s.run(ctx, chromedp.Evaluate(chromeErrorScript, &code)); err == nil && code != "" {
		return fmt.Errorf("navigate %s (%s): net::%s", url, wait, code)
	}
	return nil
}

func (s *chromedpSession) Click(ctx context.Context, sel string) error {
	if err := s.run(ctx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

func (s *chromedpSession) Type(ctx context.Context, sel, text string) error {
	if err := s.run(ctx,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("type into %s: %w", sel, err)
	}
	return nil
}

func (s *chromedpSession) Evaluate(ctx context.Context, js string, out any) error {
	if out == nil {
		var discard json.RawMessage
		out = &discard
	}
	return s.run(ctx, chromedp.Evaluate(js, out))
}

func (s *chromedpSession) URL(ctx context.Context) (string, error) {
	var u string
	err := s.run(ctx, chromedp.Location(&u))
	return u, err
}

func (s *chromedpSession) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 80)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}

func (s *chromedpSession) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.ctx); err != nil {
			s.log.Debug("chromedp cancel", zap.Error(err))
		}
		s.cancel()
	})
	return nil
}
