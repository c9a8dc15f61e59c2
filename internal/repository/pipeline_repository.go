package repository

import (
	"context"
	"database/sql"

	"jobpilot/internal/database"
	"jobpilot/internal/domain"

	"github.com/google/uuid"
)

type PipelineRepository interface {
	GetTotalJobs(ctx context.Context, userID uuid.UUID) (int, error)
	GetJobsToday(ctx context.Context, userID uuid.UUID) (int, error)
	GetSourceStats(ctx context.Context, userID uuid.UUID) ([]domain.SourceStat, error)
	GetStatusCounts(ctx context.Context, userID uuid.UUID) (map[string]int, error)
}

type PostgresPipelineRepository struct {
	db database.Querier
}

func NewPostgresPipelineRepository(db database.Querier) *PostgresPipelineRepository {
	return &PostgresPipelineRepository{db: db}
}

func (r *PostgresPipelineRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var c int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}

func (r *PostgresPipelineRepository) GetTotalJobs(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM jobs WHERE user_id = $1`, userID)
}

func (r *PostgresPipelineRepository) GetJobsToday(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM jobs WHERE user_id = $1 AND scraped_at >= CURRENT_DATE`, userID)
}

func (r *PostgresPipelineRepository) GetSourceStats(ctx context.Context, userID uuid.UUID) ([]domain.SourceStat, error) {
	rows, err := r.db.Query(ctx,
		`SELECT source, COUNT(*) AS total_jobs, MAX(scraped_at) AS last_job_time,
			COUNT(*) FILTER (WHERE description IS NULL OR BTRIM(description) = '') AS missing_description
		 FROM jobs
		 WHERE user_id = $1
		 GROUP BY source
		 ORDER BY total_jobs DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SourceStat, 0)
	for rows.Next() {
		var st domain.SourceStat
		var last sql.NullTime
		if err := rows.Scan(&st.Source, &st.TotalJobs, &last, &st.MissingDescription); err != nil {
			return nil, err
		}
		if last.Valid {
			st.LastJobTime = last.Time.UTC()
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *PostgresPipelineRepository) GetStatusCounts(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM applications WHERE user_id = $1 GROUP BY status`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var s string
		var c int
		if err := rows.Scan(&s, &c); err != nil {
			return nil, err
		}
		out[s] = c
	}
	return out, rows.Err()
}
