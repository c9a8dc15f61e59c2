package repository

import (
	"context"
	"fmt"

	"jobpilot/internal/database"
	"jobpilot/internal/domain/preference"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

type PreferenceRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (preference.Preferences, error)
	Set(ctx context.Context, userID uuid.UUID, values map[string]string) error
}

type PostgresPreferenceRepository struct {
	db database.DB
}

func NewPostgresPreferenceRepository(db database.DB) *PostgresPreferenceRepository {
	return &PostgresPreferenceRepository{db: db}
}

func (r *PostgresPreferenceRepository) Get(ctx context.Context, userID uuid.UUID) (preference.Preferences, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value FROM preferences WHERE user_id = $1`, userID)
	if err != nil {
		return preference.Preferences{}, err
	}
	defer rows.Close()

	raw := map[string]any{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return preference.Preferences{}, err
		}
		raw[k] = v
	}
	if err := rows.Err(); err != nil {
		return preference.Preferences{}, err
	}
	return DecodePreferences(raw)
}

// DecodePreferences turns stored key/value rows into Preferences. Values are
// strings in the store, so numeric keys are decoded weakly.
func DecodePreferences(raw map[string]any) (preference.Preferences, error) {
	var p preference.Preferences
	if v, ok := raw[preference.KeyRadius].(string); ok && v == "" {
		delete(raw, preference.KeyRadius)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
		TagName:          "mapstructure",
	})
	if err != nil {
		return preference.Preferences{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return preference.Preferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	return p, nil
}

// Set upserts every key in values in a single transaction.
func (r *PostgresPreferenceRepository) Set(ctx context.Context, userID uuid.UUID, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return database.InTx(ctx, r.db, func(tx database.Tx) error {
		for k, v := range values {
			_, err := tx.Exec(ctx,
				`INSERT INTO preferences (user_id, key, value) VALUES ($1,$2,$3)
				 ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
				userID, k, v,
			)
			if err != nil {
				return fmt.Errorf("set preference %s: %w", k, err)
			}
		}
		return nil
	})
}
