package seeder

import (
	"context"
	"strings"
	"testing"
	"time"

	"jobpilot/internal/database/dbtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func columnsHandler(tables map[string][]string, next dbtest.Handler) dbtest.Handler {
	return func(c dbtest.Call) dbtest.Result {
		if strings.Contains(c.Normalized(), "information_schema.columns") {
			var rows [][]any
			for _, col := range tables[c.Args[0].(string)] {
				rows = append(rows, []any{col})
			}
			return dbtest.Result{Rows: rows}
		}
		if next == nil {
			return dbtest.Result{}
		}
		return next(c)
	}
}

func TestEnsureTableColumnsReportsAllMissing(t *testing.T) {
	db := dbtest.New(columnsHandler(map[string][]string{"users": {"id"}}, nil))
	err := EnsureTableColumns(context.Background(), db, "users", "id", "email", "created_at")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email, created_at")
}

func TestDefaultsSeedUserThenPreferences(t *testing.T) {
	userID := uuid.New()
	db := dbtest.New(columnsHandler(
		map[string][]string{
			"users":       {"id", "email", "created_at"},
			"preferences": {"user_id", "key", "value"},
		},
		func(c dbtest.Call) dbtest.Result {
			q := c.Normalized()
			switch {
			case strings.HasPrefix(q, "insert into users"):
				return dbtest.Result{Rows: [][]any{{userID, c.Args[1], time.Now()}}}
			case strings.HasPrefix(q, "select id, email, created_at from users"):
				return dbtest.Result{Rows: [][]any{{userID, c.Args[0], time.Now()}}}
			case strings.HasPrefix(q, "insert into preferences"):
				assert.Contains(t, q, "do nothing")
				return dbtest.Result{RowsAffected: 1}
			}
			return dbtest.Result{}
		},
	))

	err := Runner{Seeders: Defaults(userID, " Me@Example.com ")}.Run(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 1, db.Commits)

	var prefInserts int
	for _, c := range db.Calls {
		if strings.HasPrefix(c.Normalized(), "insert into users") {
			assert.Equal(t, "me@example.com", c.Args[1])
		}
		if strings.HasPrefix(c.Normalized(), "insert into preferences") {
			prefInserts++
			assert.Equal(t, userID, c.Args[0])
		}
	}
	assert.Equal(t, 3, prefInserts)
}
