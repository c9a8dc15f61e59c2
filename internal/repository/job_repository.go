package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobpilot/internal/database"
	"jobpilot/internal/domain/job"

	"github.com/google/uuid"
)

type JobRepository interface {
	ExistingURLs(ctx context.Context, userID uuid.UUID, urls []string) (map[string]struct{}, error)
	InsertIgnore(ctx context.Context, p job.Posting) (bool, error)
	Create(ctx context.Context, p job.Posting) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (job.Posting, error)
	List(ctx context.Context, userID uuid.UUID, f job.ListFilter) ([]job.Posting, error)
	ListMissingDescription(ctx context.Context, userID uuid.UUID, limit int) ([]job.Posting, error)
	UpdateDescription(ctx context.Context, userID, id uuid.UUID, description string) error
	UpdateApplyButtonText(ctx context.Context, userID, id uuid.UUID, text string) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type PostgresJobRepository struct {
	db database.Querier
}

// NewPostgresJobRepository accepts a pool or a transaction.
func NewPostgresJobRepository(db database.Querier) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

const jobColumns = `id, user_id, title, company, location, url, description, source, scraped_at,
	skills, salary, posted, cover_letter, tailored_cv, interview_prep, company_info,
	apply_button_text, created_at, updated_at`

func scanJob(row database.Row) (job.Posting, error) {
	var p job.Posting
	var skills []byte
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.Company, &p.Location, &p.URL, &p.Description, &p.Source, &p.ScrapedAt,
		&skills, &p.Salary, &p.Posted, &p.CoverLetter, &p.TailoredCV, &p.InterviewPrep, &p.CompanyInfo,
		&p.ApplyButtonText, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return job.Posting{}, err
	}
	if p.Skills, err = decodeStrings(skills); err != nil {
		return job.Posting{}, err
	}
	return p, nil
}

func (r *PostgresJobRepository) ExistingURLs(ctx context.Context, userID uuid.UUID, urls []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(urls))
	if len(urls) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT url FROM jobs WHERE user_id = $1 AND url = ANY($2)`, userID, urls)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out[u] = struct{}{}
	}
	return out, rows.Err()
}

func insertArgs(p job.Posting) ([]any, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.ScrapedAt.IsZero() {
		p.ScrapedAt = time.Now().UTC()
	}
	skills, err := encodeJSON(nonNilStrings(p.Skills))
	if err != nil {
		return nil, err
	}
	return []any{
		p.ID, p.UserID, p.Title, p.Company, p.Location, p.URL, p.Description, p.Source, p.ScrapedAt,
		skills, p.Salary, p.Posted,
	}, nil
}

const insertJobSQL = `INSERT INTO jobs (id, user_id, title, company, location, url, description, source, scraped_at, skills, salary, posted)
	 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb,$11,$12)`

// InsertIgnore inserts p unless the user already has a job at the same url.
// It reports whether a row was written.
func (r *PostgresJobRepository) InsertIgnore(ctx context.Context, p job.Posting) (bool, error) {
	args, err := insertArgs(p)
	if err != nil {
		return false, err
	}
	n, err := r.db.Exec(ctx, insertJobSQL+` ON CONFLICT (user_id, url) DO NOTHING`, args...)
	if err != nil {
		return false, fmt.Errorf("insert job %s: %w", p.URL, err)
	}
	return n == 1, nil
}

func (r *PostgresJobRepository) Create(ctx context.Context, p job.Posting) error {
	args, err := insertArgs(p)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, insertJobSQL, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateJob
		}
		return fmt.Errorf("create job %s: %w", p.URL, err)
	}
	return nil
}

func (r *PostgresJobRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (job.Posting, error) {
	row := r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND user_id = $2`, id, userID)
	p, err := scanJob(row)
	if err != nil {
		if database.IsNoRows(err) {
			return job.Posting{}, ErrJobNotFound
		}
		return job.Posting{}, err
	}
	return p, nil
}

func (r *PostgresJobRepository) List(ctx context.Context, userID uuid.UUID, f job.ListFilter) ([]job.Posting, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + jobColumns + ` FROM jobs j WHERE j.user_id = $1`)
	args := []any{userID}

	if s := strings.TrimSpace(f.Source); s != "" {
		args = append(args, s)
		fmt.Fprintf(&sb, ` AND j.source = $%d`, len(args))
	}
	if s := strings.TrimSpace(f.Status); s != "" {
		args = append(args, s)
		fmt.Fprintf(&sb, ` AND EXISTS (SELECT 1 FROM applications a WHERE a.job_id = j.id AND a.status = $%d)`, len(args))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		fmt.Fprintf(&sb, ` AND (j.title ILIKE $%d OR j.company ILIKE $%d)`, len(args), len(args))
	}

	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, clampLimit(f.Limit, 50, 500), offset)
	fmt.Fprintf(&sb, ` ORDER BY j.scraped_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.queryJobs(ctx, sb.String(), args...)
}

func (r *PostgresJobRepository) ListMissingDescription(ctx context.Context, userID uuid.UUID, limit int) ([]job.Posting, error) {
	return r.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE user_id = $1 AND (description IS NULL OR BTRIM(description) = '')
		 ORDER BY scraped_at DESC
		 LIMIT $2`,
		userID, clampLimit(limit, 20, 200),
	)
}

func (r *PostgresJobRepository) queryJobs(ctx context.Context, query string, args ...any) ([]job.Posting, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]job.Posting, 0)
	for rows.Next() {
		p, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresJobRepository) UpdateDescription(ctx context.Context, userID, id uuid.UUID, description string) error {
	return r.updateOne(ctx, `UPDATE jobs SET description = $3, updated_at = now() WHERE id = $1 AND user_id = $2`, id, userID, description)
}

func (r *PostgresJobRepository) UpdateApplyButtonText(ctx context.Context, userID, id uuid.UUID, text string) error {
	return r.updateOne(ctx, `UPDATE jobs SET apply_button_text = $3, updated_at = now() WHERE id = $1 AND user_id = $2`, id, userID, text)
}

func (r *PostgresJobRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return r.updateOne(ctx, `DELETE FROM jobs WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *PostgresJobRepository) updateOne(ctx context.Context, query string, args ...any) error {
	n, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}
