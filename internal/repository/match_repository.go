package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jobpilot/internal/database"
	"jobpilot/internal/domain/match"

	"github.com/google/uuid"
)

type MatchRepository interface {
	Upsert(ctx context.Context, m match.Result) error
	GetByJobID(ctx context.Context, userID, jobID uuid.UUID) (match.Result, error)
	List(ctx context.Context, userID uuid.UUID, minScore float64, limit int) ([]match.Result, error)
}

type PostgresMatchRepository struct {
	db database.Querier
}

func NewPostgresMatchRepository(db database.Querier) *PostgresMatchRepository {
	return &PostgresMatchRepository{db: db}
}

// Upsert keeps one row per job; a later match replaces the scores, the CV
// version and the snapshot.
func (r *PostgresMatchRepository) Upsert(ctx context.Context, m match.Result) error {
	if m.UserID == uuid.Nil || m.JobID == uuid.Nil {
		return fmt.Errorf("match requires user and job ids")
	}
	if m.CVVersion <= 0 {
		return fmt.Errorf("match for job %s has no cv version", m.JobID)
	}
	if m.CheckedAt.IsZero() {
		m.CheckedAt = time.Now().UTC()
	}

	lists := make([]string, 0, 5)
	for _, v := range []any{
		nonNilStrings(m.MatchedSkills),
		nonNilStrings(m.MissingSkills),
		nonNilStrings(m.SuggestedTests),
		completedOrEmpty(m.CompletedTests),
		nonNilStrings(m.KeyInsights),
	} {
		s, err := encodeJSON(v)
		if err != nil {
			return err
		}
		lists = append(lists, s)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO matches (id, job_id, user_id, match, score, matched_skills, missing_skills,
			suggested_tests, completed_tests, key_insights, cv_version, cv_content_snapshot, checked_at)
		 VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7::jsonb,$8::jsonb,$9::jsonb,$10::jsonb,$11,$12,$13)
		 ON CONFLICT (job_id) DO UPDATE SET
			match = EXCLUDED.match,
			score = EXCLUDED.score,
			matched_skills = EXCLUDED.matched_skills,
			missing_skills = EXCLUDED.missing_skills,
			suggested_tests = EXCLUDED.suggested_tests,
			completed_tests = EXCLUDED.completed_tests,
			key_insights = EXCLUDED.key_insights,
			cv_version = EXCLUDED.cv_version,
			cv_content_snapshot = EXCLUDED.cv_content_snapshot,
			checked_at = EXCLUDED.checked_at`,
		uuid.New(), m.JobID, m.UserID, m.Match, m.Score,
		lists[0], lists[1], lists[2], lists[3], lists[4],
		m.CVVersion, match.Snapshot(m.CVContentSnapshot), m.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert match for job %s: %w", m.JobID, err)
	}
	return nil
}

func completedOrEmpty(c []match.CompletedTest) []match.CompletedTest {
	if c == nil {
		return []match.CompletedTest{}
	}
	return c
}

const matchColumns = `id, job_id, user_id, match, score, matched_skills, missing_skills, suggested_tests,
	completed_tests, key_insights, cv_version, cv_content_snapshot, checked_at`

func scanMatch(row database.Row) (match.Result, error) {
	var m match.Result
	var matched, missing, suggested, completed, insights []byte
	if err := row.Scan(
		&m.ID, &m.JobID, &m.UserID, &m.Match, &m.Score, &matched, &missing, &suggested,
		&completed, &insights, &m.CVVersion, &m.CVContentSnapshot, &m.CheckedAt,
	); err != nil {
		return match.Result{}, err
	}

	var err error
	if m.MatchedSkills, err = decodeStrings(matched); err != nil {
		return match.Result{}, err
	}
	if m.MissingSkills, err = decodeStrings(missing); err != nil {
		return match.Result{}, err
	}
	if m.SuggestedTests, err = decodeStrings(suggested); err != nil {
		return match.Result{}, err
	}
	if m.KeyInsights, err = decodeStrings(insights); err != nil {
		return match.Result{}, err
	}
	m.CompletedTests = []match.CompletedTest{}
	if len(completed) > 0 {
		if err := json.Unmarshal(completed, &m.CompletedTests); err != nil {
			return match.Result{}, fmt.Errorf("decode completed tests: %w", err)
		}
	}
	return m, nil
}

func (r *PostgresMatchRepository) GetByJobID(ctx context.Context, userID, jobID uuid.UUID) (match.Result, error) {
	m, err := scanMatch(r.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE job_id = $1 AND user_id = $2`, jobID, userID))
	if err != nil {
		if database.IsNoRows(err) {
			return match.Result{}, ErrMatchNotFound
		}
		return match.Result{}, err
	}
	return m, nil
}

func (r *PostgresMatchRepository) List(ctx context.Context, userID uuid.UUID, minScore float64, limit int) ([]match.Result, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE user_id = $1 AND score >= $2
		 ORDER BY score DESC, checked_at DESC
		 LIMIT $3`,
		userID, minScore, clampLimit(limit, 50, 500),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]match.Result, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
