// Package notify fans pipeline events out to interested channels.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	RunStarted         EventType = "run_started"
	RunFinished        EventType = "run_finished"
	OpportunityFound   EventType = "opportunity_found"
	ApplicationUpdated EventType = "application_updated"
)

type Event struct {
	Type   EventType      `json:"type"`
	UserID uuid.UUID      `json:"user_id"`
	Run    string         `json:"run,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
	At     time.Time      `json:"at"`
}

func NewEvent(t EventType, userID uuid.UUID, data map[string]any) Event {
	return Event{Type: t, UserID: userID, Data: data, At: time.Now().UTC()}
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

type Func func(ctx context.Context, e Event) error

func (f Func) Notify(ctx context.Context, e Event) error { return f(ctx, e) }

// Multi delivers every event to each notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send delivers e and logs a failure instead of returning it.
func Send(ctx context.Context, n Notifier, e Event, log *zap.Logger) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, e); err != nil && log != nil {
		log.Warn("notification failed", zap.String("event", string(e.Type)), zap.Error(err))
	}
}
