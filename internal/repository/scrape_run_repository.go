package repository

import (
	"context"
	"strings"

	"jobpilot/internal/database"
	"jobpilot/internal/domain/job"

	"github.com/google/uuid"
)

type ScrapeCounts struct {
	Fetched  int
	Relevant int
	Inserted int
}

type ScrapeRunRepository interface {
	Start(ctx context.Context, userID uuid.UUID, source, trigger string) (uuid.UUID, error)
	Log(ctx context.Context, runID uuid.UUID, level, message string) error
	Finish(ctx context.Context, runID uuid.UUID, status job.ScrapeRunStatus, counts ScrapeCounts, errMsg string) error
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]job.ScrapeRun, error)
}

type PostgresScrapeRunRepository struct {
	db database.Querier
}

func NewPostgresScrapeRunRepository(db database.Querier) *PostgresScrapeRunRepository {
	return &PostgresScrapeRunRepository{db: db}
}

func (r *PostgresScrapeRunRepository) Start(ctx context.Context, userID uuid.UUID, source, trigger string) (uuid.UUID, error) {
	id := uuid.New()
	if strings.TrimSpace(trigger) == "" {
		trigger = "manual"
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO scrape_runs (id, user_id, source, trigger, status) VALUES ($1,$2,$3,$4,$5)`,
		id, userID, source, trigger, string(job.ScrapeRunRunning),
	)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *PostgresScrapeRunRepository) Log(ctx context.Context, runID uuid.UUID, level, message string) error {
	if runID == uuid.Nil {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO scrape_logs (run_id, level, message) VALUES ($1,$2,$3)`,
		runID, level, message,
	)
	return err
}

func (r *PostgresScrapeRunRepository) Finish(ctx context.Context, runID uuid.UUID, status job.ScrapeRunStatus, counts ScrapeCounts, errMsg string) error {
	if runID == uuid.Nil {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE scrape_runs
		 SET status = $2, finished_at = now(), fetched = $3, relevant = $4, inserted = $5, error = NULLIF($6, '')
		 WHERE id = $1`,
		runID, string(status), counts.Fetched, counts.Relevant, counts.Inserted, errMsg,
	)
	return err
}

func (r *PostgresScrapeRunRepository) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]job.ScrapeRun, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, source, trigger, status, started_at, finished_at, fetched, relevant, inserted, error
		 FROM scrape_runs
		 WHERE user_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2`,
		userID, clampLimit(limit, 20, 200),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]job.ScrapeRun, 0)
	for rows.Next() {
		var sr job.ScrapeRun
		var status string
		if err := rows.Scan(&sr.ID, &sr.UserID, &sr.Source, &sr.Trigger, &status, &sr.StartedAt,
			&sr.FinishedAt, &sr.Fetched, &sr.Relevant, &sr.Inserted, &sr.Error); err != nil {
			return nil, err
		}
		sr.Status = job.ScrapeRunStatus(status)
		out = append(out, sr)
	}
	return out, rows.Err()
}
