package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"jobpilot/internal/database/dbtest"
	"jobpilot/internal/domain/application"
	"jobpilot/internal/domain/job"
	"jobpilot/internal/domain/match"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobInsertIgnoreReportsConflict(t *testing.T) {
	seen := map[string]bool{}
	db := dbtest.New(func(c dbtest.Call) dbtest.Result {
		if !strings.HasPrefix(c.Normalized(), "insert into jobs") {
			return dbtest.Result{}
		}
		assert.Contains(t, c.Normalized(), "on conflict (user_id, url) do nothing")
		url := c.Args[5].(string)
		if seen[url] {
			return dbtest.Result{RowsAffected: 0}
		}
		seen[url] = true
		return dbtest.Result{RowsAffected: 1}
	})
	repo := NewPostgresJobRepository(db)
	ctx := context.Background()
	p := job.FromRaw(uuid.New(), "cwjobs", job.Raw{Title: "React Developer", URL: "https://x/1"}, time.Now())

	ok, err := repo.InsertIgnore(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.InsertIgnore(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, `[]`, db.Calls[0].Args[9])
}

func TestJobCreateMapsUniqueViolation(t *testing.T) {
	db := dbtest.New(func(c dbtest.Call) dbtest.Result {
		return dbtest.Result{Err: &pgconn.PgError{Code: "23505"}}
	})
	err := NewPostgresJobRepository(db).Create(context.Background(), job.Posting{UserID: uuid.New(), URL: "u"})
	assert.ErrorIs(t, err, ErrDuplicateJob)
}

func TestJobGetByID(t *testing.T) {
	userID, jobID := uuid.New(), uuid.New()
	now := time.Now()
	db := dbtest.New(func(c dbtest.Call) dbtest.Result {
		if c.Args[0] != jobID {
			return dbtest.Result{}
		}
		return dbtest.Result{Rows: [][]any{{
			jobID, userID, "Frontend Engineer", "Acme", "London", "https://x/1", nil, "cwjobs", now,
			[]byte(`["react","css"]`), "£50k", nil, nil, nil, nil, nil,
			nil, now, now,
		}}}
	})
	repo := NewPostgresJobRepository(db)

	p, err := repo.GetByID(context.Background(), userID, jobID)
	require.NoError(t, err)
	assert.Equal(t, "Frontend Engineer", p.Title)
	assert.Equal(t, []string{"react", "css"}, p.Skills)
	assert.False(t, p.HasDescription())
	require.NotNil(t, p.Salary)
	assert.Equal(t, "£50k", *p.Salary)

	_, err = repo.GetByID(context.Background(), userID, uuid.New())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobUpdateDescriptionNotFound(t *testing.T) {
	db := dbtest.New(func(dbtest.Call) dbtest.Result { return dbtest.Result{RowsAffected: 0} })
	err := NewPostgresJobRepository(db).UpdateDescription(context.Background(), uuid.New(), uuid.New(), "body")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobListBuildsFilters(t *testing.T) {
	db := dbtest.New(nil)
	_, err := NewPostgresJobRepository(db).List(context.Background(), uuid.New(), job.ListFilter{
		Source: "indeed", Status: "opportunity", Query: "react", Limit: 1000,
	})
	require.NoError(t, err)

	c := db.Calls[0]
	q := c.Normalized()
	assert.Contains(t, q, "j.source = $2")
	assert.Contains(t, q, "a.status = $3")
	assert.Contains(t, q, "j.title ilike $4")
	assert.Contains(t, q, "limit $5 offset $6")
	assert.Equal(t, 500, c.Args[4])
	assert.Equal(t, "%react%", c.Args[3])
}

func TestApplicationSetStatusMergesMeta(t *testing.T) {
	db := dbtest.New(func(dbtest.Call) dbtest.Result { return dbtest.Result{RowsAffected: 1} })
	repo := NewPostgresApplicationRepository(db)

	err := repo.SetStatus(context.Background(), uuid.New(), uuid.New(), application.StatusFollowup,
		application.Meta{application.MetaError: "no affordance"}, nil)
	require.NoError(t, err)

	q := db.Calls[0].Normalized()
	assert.Contains(t, q, "on conflict (job_id) do update")
	assert.Contains(t, q, "meta = applications.meta || excluded.meta")
	assert.JSONEq(t, `{"error":"no affordance"}`, db.Calls[0].Args[5].(string))

	err = repo.SetStatus(context.Background(), uuid.New(), uuid.New(), "archived", nil, nil)
	assert.Error(t, err)
	assert.Len(t, db.Calls, 1)
}

func TestApplicationScanDecodesMeta(t *testing.T) {
	id, jobID, userID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()
	db := dbtest.New(func(dbtest.Call) dbtest.Result {
		return dbtest.Result{Rows: [][]any{{
			id, jobID, userID, "external", nil, []byte(`{"external_url":"https://acme.example/apply"}`), "cwjobs", now, now,
		}}}
	})
	a, err := NewPostgresApplicationRepository(db).GetByJobID(context.Background(), userID, jobID)
	require.NoError(t, err)
	assert.Equal(t, application.StatusExternal, a.Status)
	assert.Equal(t, "https://acme.example/apply", a.Meta.String(application.MetaExternalURL))
}

func TestMatchUpsertRequiresCVVersion(t *testing.T) {
	db := dbtest.New(nil)
	repo := NewPostgresMatchRepository(db)

	err := repo.Upsert(context.Background(), match.Result{UserID: uuid.New(), JobID: uuid.New()})
	assert.Error(t, err)
	assert.Empty(t, db.Calls)

	err = repo.Upsert(context.Background(), match.Result{
		UserID: uuid.New(), JobID: uuid.New(), Score: 0.8, Match: true, CVVersion: 4,
		CVContentSnapshot: strings.Repeat("x", match.SnapshotLimit+100),
	})
	require.NoError(t, err)
	q := db.Calls[0].Normalized()
	assert.Contains(t, q, "on conflict (job_id) do update")
	assert.Contains(t, q, "cv_version = excluded.cv_version")
	assert.Equal(t, `[]`, db.Calls[0].Args[8])
	assert.Len(t, db.Calls[0].Args[11].(string), match.SnapshotLimit)
}

func TestDecodePreferences(t *testing.T) {
	p, err := DecodePreferences(map[string]any{
		"keywords":       "react developer",
		"location":       "London",
		"radius":         "25",
		"stack_keywords": "react, typescript",
		"unknown":        "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, 25, p.Radius)
	assert.Equal(t, []string{"react", "typescript"}, p.StackKeywordList())

	p, err = DecodePreferences(map[string]any{"radius": ""})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Radius)

	_, err = DecodePreferences(map[string]any{"radius": "ten"})
	assert.Error(t, err)
}

func TestPreferenceSetRunsInTransaction(t *testing.T) {
	db := dbtest.New(func(dbtest.Call) dbtest.Result { return dbtest.Result{RowsAffected: 1} })
	err := NewPostgresPreferenceRepository(db).Set(context.Background(), uuid.New(), map[string]string{
		"keywords": "react", "location": "Leeds",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, db.Commits)
	require.Len(t, db.Calls, 2)
	for _, c := range db.Calls {
		assert.True(t, c.InTx)
	}
}
