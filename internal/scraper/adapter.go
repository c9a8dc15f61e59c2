// Package scraper holds the per-board job source adapters. Every board is
// reached through the same JobSourceAdapter contract; discovery never
// branches on which board it is talking to.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobpilot/internal/browser"
	"jobpilot/internal/config"
	"jobpilot/internal/domain/job"

	"go.uber.org/zap"
)

// JobSourceAdapter fetches raw postings from one job board. Close must be
// safe to call after a failed Init and more than once.
type JobSourceAdapter interface {
	Name() string
	Init(ctx context.Context) error
	FetchJobs(ctx context.Context) ([]job.Raw, error)
	Close() error
}

var ErrNotInitialized = errors.New("adapter not initialized")

// AdapterError is a navigation or extraction failure on a job board.
type AdapterError struct {
	Source string
	Op     string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter: %s: %v", e.Source, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

func adapterErr(source, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AdapterError
	if errors.As(err, &ae) {
		return err
	}
	return &AdapterError{Source: source, Op: op, Err: err}
}

// Options carries what adapters need beyond the board definition.
type Options struct {
	Launcher    browser.Launcher
	Credentials config.CredentialsConfig
	SnapshotDir string
	UserAgent   string
	WaitTimeout time.Duration
	Log         *zap.Logger
}

func (o Options) waitTimeout() time.Duration {
	if o.WaitTimeout > 0 {
		return o.WaitTimeout
	}
	return 10 * time.Second
}

// New builds the adapter for board b searching with p.
func New(b config.Board, p config.SearchParams, opts Options) (JobSourceAdapter, error) {
	searchURL, err := b.BuildSearchURL(p)
	if err != nil {
		return nil, err
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	switch b.Kind {
	case config.BoardKindHTTP:
		return NewCollyAdapter(b, searchURL, opts), nil
	case config.BoardKindBrowser, "":
		if opts.Launcher == nil {
			return nil, fmt.Errorf("board %s needs a browser launcher", b.Name)
		}
		return NewBrowserAdapter(b, searchURL, opts), nil
	}
	return nil, fmt.Errorf("board %s: unsupported kind %q", b.Name, b.Kind)
}

// NewForBoards builds one adapter per named board, in order.
func NewForBoards(cat config.Catalogue, names []string, p config.SearchParams, opts Options) ([]JobSourceAdapter, error) {
	out := make([]JobSourceAdapter, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		b, err := cat.Get(name)
		if err != nil {
			return nil, err
		}
		a, err := New(b, p, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
