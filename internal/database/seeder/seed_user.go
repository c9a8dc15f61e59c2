package seeder

import (
	"context"
	"fmt"

	"jobpilot/internal/database"
	"jobpilot/internal/domain/user"
	"jobpilot/internal/repository"

	"github.com/google/uuid"
)

type UserSeeder struct {
	ID    uuid.UUID
	Email string
}

func (UserSeeder) Name() string { return "users" }

func (s UserSeeder) Run(ctx context.Context, db database.DB) error {
	if err := EnsureTableColumns(ctx, db, "users", "id", "email", "created_at"); err != nil {
		return err
	}
	email := normalizeEmail(s.Email)
	if email == "" {
		return fmt.Errorf("default user email is empty")
	}
	_, err := repository.NewPostgresUserRepository(db).Ensure(ctx, user.User{ID: s.ID, Email: email})
	return err
}
