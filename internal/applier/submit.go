package applier

import (
	"context"

	"jobpilot/internal/browser"
)

// Submitter performs the final send of an application.
type Submitter interface {
	// Submit reports whether the application was actually sent.
	Submit(ctx context.Context, s browser.Session, sendSelector string) (bool, error)
}

// DryRun stops in front of the final send button.
type DryRun struct{}

func (DryRun) Submit(context.Context, browser.Session, string) (bool, error) { return false, nil }

// Click presses the final send button.
type Click struct{}

func (Click) Submit(ctx context.Context, s browser.Session, sel string) (bool, error) {
	if err := s.Click(ctx, sel); err != nil {
		return false, err
	}
	return true, nil
}

// SubmitterFor returns Click when live submission is enabled and DryRun
// otherwise.
func SubmitterFor(enabled bool) Submitter {
	if enabled {
		return Click{}
	}
	return DryRun{}
}
