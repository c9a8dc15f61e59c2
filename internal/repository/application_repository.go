package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jobpilot/internal/database"
	"jobpilot/internal/domain/application"

	"github.com/google/uuid"
)

type ApplicationRepository interface {
	CreateIgnore(ctx context.Context, a application.Application) (bool, error)
	SetStatus(ctx context.Context, userID, jobID uuid.UUID, status application.Status, meta application.Meta, appliedAt *time.Time) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (application.Application, error)
	GetByJobID(ctx context.Context, userID, jobID uuid.UUID) (application.Application, error)
	List(ctx context.Context, userID uuid.UUID, status application.Status, limit, offset int) ([]application.WithJob, error)
	Update(ctx context.Context, userID, id uuid.UUID, status application.Status, meta application.Meta) error
	DeleteWithJob(ctx context.Context, userID, id uuid.UUID) error
}

type PostgresApplicationRepository struct {
	db database.Querier
}

func NewPostgresApplicationRepository(db database.Querier) *PostgresApplicationRepository {
	return &PostgresApplicationRepository{db: db}
}

const applicationColumns = `a.id, a.job_id, a.user_id, a.status, a.applied_at, a.meta, a.source, a.created_at, a.updated_at`

func scanApplication(row database.Row, extra ...any) (application.Application, error) {
	var a application.Application
	var status string
	var meta []byte
	dest := append([]any{&a.ID, &a.JobID, &a.UserID, &status, &a.AppliedAt, &meta, &a.Source, &a.CreatedAt, &a.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return application.Application{}, err
	}
	a.Status = application.Status(status)
	a.Meta = application.Meta{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Meta); err != nil {
			return application.Application{}, fmt.Errorf("decode application meta: %w", err)
		}
	}
	return a, nil
}

func encodeMeta(m application.Meta) (string, error) {
	if m == nil {
		m = application.Meta{}
	}
	return encodeJSON(map[string]any(m))
}

// CreateIgnore inserts a unless the job already has an application.
func (r *PostgresApplicationRepository) CreateIgnore(ctx context.Context, a application.Application) (bool, error) {
	if !a.Status.Valid() {
		return false, fmt.Errorf("invalid application status %q", a.Status)
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	meta, err := encodeMeta(a.Meta)
	if err != nil {
		return false, err
	}
	n, err := r.db.Exec(ctx,
		`INSERT INTO applications (id, job_id, user_id, status, applied_at, meta, source)
		 VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7)
		 ON CONFLICT (job_id) DO NOTHING`,
		a.ID, a.JobID, a.UserID, string(a.Status), a.AppliedAt, meta, a.Source,
	)
	if err != nil {
		return false, fmt.Errorf("insert application for job %s: %w", a.JobID, err)
	}
	return n == 1, nil
}

// SetStatus records status for the job's application, creating it when
// missing. meta is merged into the stored annotations and applied_at is only
// overwritten when a new value is given.
func (r *PostgresApplicationRepository) SetStatus(ctx context.Context, userID, jobID uuid.UUID, status application.Status, meta application.Meta, appliedAt *time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid application status %q", status)
	}
	m, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO applications (id, job_id, user_id, status, applied_at, meta, source)
		 VALUES ($1,$2,$3,$4,$5,$6::jsonb,'pipeline')
		 ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			applied_at = COALESCE(EXCLUDED.applied_at, applications.applied_at),
			meta = applications.meta || EXCLUDED.meta,
			updated_at = now()`,
		uuid.New(), jobID, userID, string(status), appliedAt, m,
	)
	if err != nil {
		return fmt.Errorf("set application status for job %s: %w", jobID, err)
	}
	return nil
}

func (r *PostgresApplicationRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (application.Application, error) {
	return r.getOne(ctx, `SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1 AND a.user_id = $2`, id, userID)
}

func (r *PostgresApplicationRepository) GetByJobID(ctx context.Context, userID, jobID uuid.UUID) (application.Application, error) {
	return r.getOne(ctx, `SELECT `+applicationColumns+` FROM applications a WHERE a.job_id = $1 AND a.user_id = $2`, jobID, userID)
}

func (r *PostgresApplicationRepository) getOne(ctx context.Context, query string, args ...any) (application.Application, error) {
	a, err := scanApplication(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return application.Application{}, ErrApplicationNotFound
		}
		return application.Application{}, err
	}
	return a, nil
}

func (r *PostgresApplicationRepository) List(ctx context.Context, userID uuid.UUID, status application.Status, limit, offset int) ([]application.WithJob, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + applicationColumns + `, j.title, j.company, j.url, j.source
		 FROM applications a
		 JOIN jobs j ON j.id = a.job_id
		 WHERE a.user_id = $1`)
	args := []any{userID}
	if status != "" {
		args = append(args, string(status))
		fmt.Fprintf(&sb, ` AND a.status = $%d`, len(args))
	}
	if offset < 0 {
		offset = 0
	}
	args = append(args, clampLimit(limit, 50, 500), offset)
	fmt.Fprintf(&sb, ` ORDER BY a.updated_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]application.WithJob, 0)
	for rows.Next() {
		var w application.WithJob
		a, err := scanApplication(rows, &w.JobTitle, &w.JobCompany, &w.JobURL, &w.JobSource)
		if err != nil {
			return nil, err
		}
		w.Application = a
		out = append(out, w)
	}
	return out, rows.Err()
}

// Update changes status and merges meta on an application owned by userID.
// An empty status leaves it unchanged.
func (r *PostgresApplicationRepository) Update(ctx context.Context, userID, id uuid.UUID, status application.Status, meta application.Meta) error {
	if status != "" && !status.Valid() {
		return fmt.Errorf("invalid application status %q", status)
	}
	m, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	n, err := r.db.Exec(ctx,
		`UPDATE applications SET
			status = COALESCE(NULLIF($3, ''), status),
			applied_at = CASE WHEN $3 = 'applied' AND applied_at IS NULL THEN now() ELSE applied_at END,
			meta = meta || $4::jsonb,
			updated_at = now()
		 WHERE id = $1 AND user_id = $2`,
		id, userID, string(status), m,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

// DeleteWithJob removes the application's job; the application and any match
// go with it through the cascade.
func (r *PostgresApplicationRepository) DeleteWithJob(ctx context.Context, userID, id uuid.UUID) error {
	n, err := r.db.Exec(ctx,
		`DELETE FROM jobs WHERE id = (SELECT job_id FROM applications WHERE id = $1 AND user_id = $2)`,
		id, userID,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrApplicationNotFound
	}
	return nil
}
