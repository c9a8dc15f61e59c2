package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SnapshotPath names a screenshot file as <name>_<timestamp>.png under dir.
func SnapshotPath(dir, name string, now time.Time) string {
	name = strings.Trim(unsafeName.ReplaceAllString(name, "-"), "-")
	if name == "" {
		name = "snapshot"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.png", name, now.Format("2006-01-02_15-04-05")))
}

// Capture writes a full-page screenshot of s into dir and returns its path.
func Capture(ctx context.Context, s Session, dir, name string) (string, error) {
	if dir == "" {
		dir = filepath.Join("logs", "snapshots")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := SnapshotPath(dir, name, time.Now())
	if err := s.Screenshot(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}
