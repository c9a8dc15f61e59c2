package browser

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"jobpilot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProtocolError(t *testing.T) {
	assert.True(t, IsProtocolError(errors.New("page load error net::ERR_HTTP2_PROTOCOL_ERROR")))
	assert.True(t, IsProtocolError(errors.New("navigate x: net::ERR_QUIC_PROTOCOL_ERROR")))
	assert.False(t, IsProtocolError(errors.New("net::ERR_NAME_NOT_RESOLVED")))
	assert.False(t, IsProtocolError(nil))
}

func TestNewLauncher(t *testing.T) {
	for driver, want := range map[string]any{
		"":           &ChromedpLauncher{},
		"chromedp":   &ChromedpLauncher{},
		"ROD":        &RodLauncher{},
		"playwright": &PlaywrightLauncher{},
	} {
		l, err := NewLauncher(config.BrowserConfig{Driver: driver}, nil)
		require.NoError(t, err, driver)
		assert.IsType(t, want, l, driver)
	}

	_, err := NewLauncher(config.BrowserConfig{Driver: "selenium"}, nil)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestOptionsFromConfigDefaultsTimeout(t *testing.T) {
	o := OptionsFromConfig(config.BrowserConfig{ExecPath: "  /usr/bin/chromium "})
	assert.Equal(t, 30*time.Second, o.NavTimeout)
	assert.Equal(t, "/usr/bin/chromium", o.ExecPath)
}

func TestDomOpsDecodesEvaluation(t *testing.T) {
	var scripts []string
	d := domOps{eval: func(_ context.Context, js string, out any) error {
		scripts = append(scripts, js)
		switch v := out.(type) {
		case *found:
			if strings.Contains(js, `"#missing"`) {
				*v = found{}
				return nil
			}
			*v = found{Found: true, Value: "Apply now"}
		case *bool:
			*v = true
		case *string:
			*v = "body text"
		}
		return nil
	}}
	ctx := context.Background()

	txt, err := d.Text(ctx, `[data-testid="apply"]`)
	require.NoError(t, err)
	assert.Equal(t, "Apply now", txt)
	assert.Contains(t, scripts[0], `document.querySelector("[data-testid=\"apply\"]")`)

	_, err = d.Text(ctx, "#missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := d.Exists(ctx, "#x")
	require.NoError(t, err)
	assert.True(t, ok)

	body, err := d.BodyText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "body text", body)
}

func TestPollAny(t *testing.T) {
	var calls atomic.Int32
	exists := func(_ context.Context, sel string) (bool, error) {
		calls.Add(1)
		return sel == "#send" && calls.Load() > 4, nil
	}
	sel, err := PollAny(context.Background(), []string{"#review", "#send"}, time.Second, 5*time.Millisecond, exists)
	require.NoError(t, err)
	assert.Equal(t, "#send", sel)

	_, err = PollAny(context.Background(), []string{"#nope"}, 30*time.Millisecond, 5*time.Millisecond,
		func(context.Context, string) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = PollAny(context.Background(), nil, time.Second, 0, exists)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotPath(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "snaps/apply-followup-job-1_2026-03-04_05-06-07.png", SnapshotPath("snaps", "apply followup/job 1", ts))
	assert.Equal(t, "snaps/snapshot_2026-03-04_05-06-07.png", SnapshotPath("snaps", "!!", ts))
}
