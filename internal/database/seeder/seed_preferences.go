package seeder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"jobpilot/internal/database"
	"jobpilot/internal/domain/preference"
	"jobpilot/internal/domain/user"
	"jobpilot/internal/repository"
)

// PreferencesSeeder writes the default filter lists for the seeded user
// without touching keys that already have a value.
type PreferencesSeeder struct {
	Email string
}

func (PreferencesSeeder) Name() string { return "preferences" }

func (s PreferencesSeeder) Run(ctx context.Context, db database.DB) error {
	if err := EnsureTableColumns(ctx, db, "preferences", "user_id", "key", "value"); err != nil {
		return err
	}

	u, err := repository.NewPostgresUserRepository(db).GetByEmail(ctx, normalizeEmail(s.Email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fmt.Errorf("seed user %s first", s.Email)
		}
		return err
	}

	items := map[string]string{
		preference.KeyStackKeywords: strings.Join(preference.DefaultStackKeywords, ", "),
		preference.KeyBlocklist:     strings.Join(preference.DefaultBlocklist, ", "),
		preference.KeyRadius:        strconv.Itoa(preference.DefaultRadius),
	}

	return database.InTx(ctx, db, func(tx database.Tx) error {
		for k, v := range items {
			_, err := tx.Exec(
				ctx,
				`INSERT INTO preferences (user_id, key, value) VALUES ($1, $2, $3) ON CONFLICT (user_id, key) DO NOTHING`,
				u.ID, k, v,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
