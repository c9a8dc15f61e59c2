// Package browser hides the headless browser behind a per-run Session so the
// analyzer, adapters and applier do not depend on a particular driver.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobpilot/internal/config"

	"go.uber.org/zap"
)

type WaitStrategy int

const (
	DOMContentLoaded WaitStrategy = iota
	Load
	NetworkIdle
)

func (w WaitStrategy) String() string {
	switch w {
	case Load:
		return "load"
	case NetworkIdle:
		return "networkidle"
	default:
		return "domcontentloaded"
	}
}

var (
	ErrNotFound      = errors.New("element not found")
	ErrClosed        = errors.New("browser session closed")
	ErrUnknownDriver = errors.New("unknown browser driver")
)

// Session is one browser tab owned by a single run. It is not safe for
// concurrent use.
type Session interface {
	Navigate(ctx context.Context, url string, wait WaitStrategy) error
	Exists(ctx context.Context, sel string) (bool, error)
	// WaitAny polls sels in order until one matches and returns it.
	WaitAny(ctx context.Context, sels []string, timeout time.Duration) (string, error)
	Text(ctx context.Context, sel string) (string, error)
	HTML(ctx context.Context, sel string) (string, error)
	BodyText(ctx context.Context) (string, error)
	Attr(ctx context.Context, sel, name string) (string, bool, error)
	Disabled(ctx context.Context, sel string) (bool, error)
	Click(ctx context.Context, sel string) error
	Type(ctx context.Context, sel, text string) error
	Evaluate(ctx context.Context, js string, out any) error
	URL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (Session, error)

func (f LauncherFunc) Launch(ctx context.Context) (Session, error) { return f(ctx) }

type Options struct {
	Headless   bool
	Stealth    bool
	ExecPath   string
	UserAgent  string
	NavTimeout time.Duration
}

func OptionsFromConfig(cfg config.BrowserConfig) Options {
	o := Options{
		Headless:   cfg.Headless,
		Stealth:    cfg.Stealth,
		ExecPath:   strings.TrimSpace(cfg.ExecPath),
		UserAgent:  cfg.UserAgent,
		NavTimeout: cfg.NavTimeout,
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = 30 * time.Second
	}
	return o
}

// NewLauncher returns the launcher for cfg.Driver.
func NewLauncher(cfg config.BrowserConfig, log *zap.Logger) (Launcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := OptionsFromConfig(cfg)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "chromedp":
		return &ChromedpLauncher{Opts: opts, Log: log}, nil
	case "rod":
		return &RodLauncher{Opts: opts, Log: log}, nil
	case "playwright":
		return &PlaywrightLauncher{Opts: opts, Log: log}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
}

var protocolErrors = []string{
	"ERR_HTTP2_PROTOCOL_ERROR",
	"ERR_QUIC_PROTOCOL_ERROR",
	"ERR_SPDY_PROTOCOL_ERROR",
	"ERR_HTTP2_PING_FAILED",
	"ERR_HTTP2_SERVER_REFUSED_STREAM",
}

// IsProtocolError reports whether err is a transport-level protocol failure
// that is worth one retry with a different wait strategy.
func IsProtocolError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range protocolErrors {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// withOpTimeout bounds ctx by d when ctx has no earlier deadline.
func withOpTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < d {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
