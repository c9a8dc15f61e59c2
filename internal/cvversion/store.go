// Package cvversion keeps the append-only history of a user's CV with
// exactly one current version.
package cvversion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jobpilot/internal/database"
	"jobpilot/internal/domain/cv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoCurrentVersion = errors.New("user has no cv yet")
	ErrVersionNotFound  = errors.New("cv version not found")
	ErrEmptyContent     = errors.New("cv content is empty")
	ErrUnknownUser      = errors.New("unknown user")
)

const (
	DefaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

const versionColumns = `id, user_id, content, version, is_current, source, change_summary, created_at`

type Store struct {
	db  database.DB
	log *zap.Logger
}

func NewStore(db database.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}
}

func scanVersion(row database.Row) (cv.Version, error) {
	var (
		v   cv.Version
		src string
	)
	if err := row.Scan(&v.ID, &v.UserID, &v.Content, &v.Version, &v.IsCurrent, &src, &v.ChangeSummary, &v.CreatedAt); err != nil {
		return cv.Version{}, err
	}
	v.Source = cv.Source(src)
	return v, nil
}

// CreateVersion appends content as the new current version, even when it
// equals the current one.
func (s *Store) CreateVersion(ctx context.Context, userID uuid.UUID, content string, source cv.Source, summary string) (cv.Version, error) {
	v, _, err := s.write(ctx, userID, content, source, summary, false)
	return v, err
}

// UpdateWithVersion creates a version only when content differs from the
// current one; otherwise it returns the current version and created=false.
func (s *Store) UpdateWithVersion(ctx context.Context, userID uuid.UUID, content string, source cv.Source, summary string) (cv.Version, bool, error) {
	return s.write(ctx, userID, content, source, summary, true)
}

func (s *Store) write(ctx context.Context, userID uuid.UUID, content string, source cv.Source, summary string, onlyIfChanged bool) (cv.Version, bool, error) {
	if strings.TrimSpace(content) == "" {
		return cv.Version{}, false, ErrEmptyContent
	}
	if source == "" {
		source = cv.SourceEditor
	}
	if _, err := cv.ParseSource(string(source)); err != nil {
		return cv.Version{}, false, err
	}

	var (
		out     cv.Version
		created bool
	)
	err := database.InTx(ctx, s.db, func(tx database.Tx) error {
		// Serializes writers for this user.
		var locked uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked); err != nil {
			if database.IsNoRows(err) {
				return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
			}
			return fmt.Errorf("lock user: %w", err)
		}

		current, err := scanVersion(tx.QueryRow(ctx,
			`SELECT `+versionColumns+` FROM cv_versions WHERE user_id = $1 AND is_current`, userID))
		hasCurrent := err == nil
		if err != nil && !database.IsNoRows(err) {
			return fmt.Errorf("read current cv: %w", err)
		}
		if onlyIfChanged && hasCurrent && current.Content == content {
			out = current
			return nil
		}

		var last int
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM cv_versions WHERE user_id = $1`, userID).Scan(&last); err != nil {
			return fmt.Errorf("read last cv version: %w", err)
		}
		if hasCurrent {
			if _, err := tx.Exec(ctx, `UPDATE cv_versions SET is_current = false WHERE user_id = $1 AND is_current`, userID); err != nil {
				return fmt.Errorf("retire current cv: %w", err)
			}
		}

		v := cv.Version{
			ID:            uuid.New(),
			UserID:        userID,
			Content:       content,
			Version:       last + 1,
			IsCurrent:     true,
			Source:        source,
			ChangeSummary: summary,
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO cv_versions (id, user_id, content, version, is_current, source, change_summary)
			 VALUES ($1,$2,$3,$4,true,$5,$6)
			 RETURNING created_at`,
			v.ID, v.UserID, v.Content, v.Version, string(v.Source), v.ChangeSummary,
		).Scan(&v.CreatedAt); err != nil {
			return fmt.Errorf("insert cv version: %w", err)
		}
		out = v
		created = true
		return nil
	})
	if err != nil {
		return cv.Version{}, false, err
	}
	if created {
		s.log.Info("cv version created",
			zap.String("user_id", userID.String()),
			zap.Int("version", out.Version),
			zap.String("source", string(out.Source)),
		)
	}
	return out, created, nil
}

func (s *Store) Current(ctx context.Context, userID uuid.UUID) (cv.Version, error) {
	v, err := scanVersion(s.db.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM cv_versions WHERE user_id = $1 AND is_current`, userID))
	if database.IsNoRows(err) {
		return cv.Version{}, ErrNoCurrentVersion
	}
	return v, err
}

// History lists versions newest first. limit <= 0 means DefaultHistoryLimit.
func (s *Store) History(ctx context.Context, userID uuid.UUID, limit int) ([]cv.Version, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+versionColumns+` FROM cv_versions WHERE user_id = $1 ORDER BY version DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]cv.Version, 0, limit)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) Version(ctx context.Context, userID uuid.UUID, n int) (cv.Version, error) {
	v, err := scanVersion(s.db.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM cv_versions WHERE user_id = $1 AND version = $2`, userID, n))
	if database.IsNoRows(err) {
		return cv.Version{}, fmt.Errorf("%w: %d", ErrVersionNotFound, n)
	}
	return v, err
}

// ForMatching returns the current CV, or the zero value when the user has none.
func (s *Store) ForMatching(ctx context.Context, userID uuid.UUID) (cv.ForMatching, error) {
	v, err := s.Current(ctx, userID)
	if errors.Is(err, ErrNoCurrentVersion) {
		return cv.ForMatching{}, nil
	}
	if err != nil {
		return cv.ForMatching{}, err
	}
	return cv.ForMatching{Content: v.Content, Version: v.Version, CVID: v.ID}, nil
}
