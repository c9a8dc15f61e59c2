package repository

import (
	"context"
	"time"

	"jobpilot/internal/database"
	"jobpilot/internal/domain/match"

	"github.com/google/uuid"
)

type SkillTestRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]match.SkillTest, error)
	Create(ctx context.Context, t match.SkillTest) error
}

type PostgresSkillTestRepository struct {
	db database.Querier
}

func NewPostgresSkillTestRepository(db database.Querier) *PostgresSkillTestRepository {
	return &PostgresSkillTestRepository{db: db}
}

// ListByUser returns every recorded test, newest first.
func (r *PostgresSkillTestRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]match.SkillTest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, skill, score, completed_at
		 FROM skill_tests
		 WHERE user_id = $1
		 ORDER BY completed_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]match.SkillTest, 0)
	for rows.Next() {
		var t match.SkillTest
		if err := rows.Scan(&t.ID, &t.UserID, &t.Skill, &t.Score, &t.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresSkillTestRepository) Create(ctx context.Context, t match.SkillTest) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CompletedAt.IsZero() {
		t.CompletedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO skill_tests (id, user_id, skill, score, completed_at) VALUES ($1,$2,$3,$4,$5)`,
		t.ID, t.UserID, t.Skill, t.Score, t.CompletedAt,
	)
	return err
}
