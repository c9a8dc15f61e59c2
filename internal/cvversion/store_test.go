package cvversion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"jobpilot/internal/database/dbtest"
	"jobpilot/internal/domain/cv"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cvTable answers the statements Store issues against an in-memory table.
type cvTable struct {
	mu    sync.Mutex
	users map[uuid.UUID]bool
	rows  []cv.Version
}

func (t *cvTable) row(v cv.Version) []any {
	return []any{v.ID, v.UserID, v.Content, v.Version, v.IsCurrent, string(v.Source), v.ChangeSummary, v.CreatedAt}
}

func (t *cvTable) handle(c dbtest.Call) dbtest.Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	q := c.Normalized()
	switch {
	case strings.HasPrefix(q, "select id from users"):
		if t.users[c.Args[0].(uuid.UUID)] {
			return dbtest.Result{Rows: [][]any{{c.Args[0]}}}
		}
		return dbtest.Result{}
	case strings.Contains(q, "from cv_versions where user_id = $1 and is_current"):
		for _, v := range t.rows {
			if v.UserID == c.Args[0] && v.IsCurrent {
				return dbtest.Result{Rows: [][]any{t.row(v)}}
			}
		}
		return dbtest.Result{}
	case strings.HasPrefix(q, "select coalesce(max(version), 0)"):
		max := 0
		for _, v := range t.rows {
			if v.UserID == c.Args[0] && v.Version > max {
				max = v.Version
			}
		}
		return dbtest.Result{Rows: [][]any{{max}}}
	case strings.HasPrefix(q, "update cv_versions set is_current = false"):
		var n int64
		for i := range t.rows {
			if t.rows[i].UserID == c.Args[0] && t.rows[i].IsCurrent {
				t.rows[i].IsCurrent = false
				n++
			}
		}
		return dbtest.Result{RowsAffected: n}
	case strings.HasPrefix(q, "insert into cv_versions"):
		v := cv.Version{
			ID: c.Args[0].(uuid.UUID), UserID: c.Args[1].(uuid.UUID), Content: c.Args[2].(string),
			Version: c.Args[3].(int), IsCurrent: true, Source: cv.Source(c.Args[4].(string)),
			ChangeSummary: c.Args[5].(string), CreatedAt: time.Now(),
		}
		t.rows = append(t.rows, v)
		return dbtest.Result{Rows: [][]any{{v.CreatedAt}}}
	case strings.Contains(q, "order by version desc"):
		var out [][]any
		for i := len(t.rows) - 1; i >= 0; i-- {
			if t.rows[i].UserID == c.Args[0] && len(out) < c.Args[1].(int) {
				out = append(out, t.row(t.rows[i]))
			}
		}
		return dbtest.Result{Rows: out}
	case strings.Contains(q, "and version = $2"):
		for _, v := range t.rows {
			if v.UserID == c.Args[0] && v.Version == c.Args[1] {
				return dbtest.Result{Rows: [][]any{t.row(v)}}
			}
		}
		return dbtest.Result{}
	}
	return dbtest.Result{Err: errors.New("unexpected query: " + q)}
}

func (t *cvTable) currentCount(user uuid.UUID) int {
	n := 0
	for _, v := range t.rows {
		if v.UserID == user && v.IsCurrent {
			n++
		}
	}
	return n
}

func newStore(users ...uuid.UUID) (*Store, *cvTable, *dbtest.DB) {
	tbl := &cvTable{users: map[uuid.UUID]bool{}}
	for _, u := range users {
		tbl.users[u] = true
	}
	db := dbtest.New(tbl.handle)
	return NewStore(db, nil), tbl, db
}

func TestCreateVersion_IncrementsAndKeepsOneCurrent(t *testing.T) {
	user := uuid.New()
	s, tbl, db := newStore(user)
	ctx := context.Background()

	v1, err := s.CreateVersion(ctx, user, "cv one", cv.SourceUpload, "initial")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.True(t, v1.IsCurrent)

	v2, err := s.CreateVersion(ctx, user, "cv two", "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, cv.SourceEditor, v2.Source)

	assert.Equal(t, 1, tbl.currentCount(user))
	assert.Equal(t, 2, db.Commits)
	assert.Equal(t, 0, db.Rollbacks)

	cur, err := s.Current(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, cur.ID)
}

func TestUpdateWithVersion_NoOpOnSameContent(t *testing.T) {
	user := uuid.New()
	s, tbl, _ := newStore(user)
	ctx := context.Background()

	v1, created, err := s.UpdateWithVersion(ctx, user, "same", cv.SourceEditor, "")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.UpdateWithVersion(ctx, user, "same", cv.SourceEditor, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, v1.ID, again.ID)
	assert.Len(t, tbl.rows, 1)

	v2, created, err := s.UpdateWithVersion(ctx, user, "changed", cv.SourceMasterProfile, "from profile")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, 1, tbl.currentCount(user))
}

func TestReads(t *testing.T) {
	user := uuid.New()
	s, _, _ := newStore(user)
	ctx := context.Background()

	_, err := s.Current(ctx, user)
	assert.ErrorIs(t, err, ErrNoCurrentVersion)
	fm, err := s.ForMatching(ctx, user)
	require.NoError(t, err)
	assert.True(t, fm.Empty())

	for _, c := range []string{"a", "b", "c"} {
		_, err := s.CreateVersion(ctx, user, c, cv.SourceEditor, "")
		require.NoError(t, err)
	}

	hist, err := s.History(ctx, user, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 3, hist[0].Version)
	assert.Equal(t, 2, hist[1].Version)

	v, err := s.Version(ctx, user, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", v.Content)
	assert.False(t, v.IsCurrent)

	_, err = s.Version(ctx, user, 9)
	assert.ErrorIs(t, err, ErrVersionNotFound)

	fm, err = s.ForMatching(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, cv.ForMatching{Content: "c", Version: 3, CVID: hist[0].ID}, fm)
}

func TestWriteValidation(t *testing.T) {
	user := uuid.New()
	s, _, db := newStore(user)
	ctx := context.Background()

	_, err := s.CreateVersion(ctx, user, "  ", cv.SourceEditor, "")
	assert.ErrorIs(t, err, ErrEmptyContent)
	_, err = s.CreateVersion(ctx, user, "x", cv.Source("fax"), "")
	assert.Error(t, err)
	assert.Equal(t, 0, db.Begins)

	_, err = s.CreateVersion(ctx, uuid.New(), "x", cv.SourceEditor, "")
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.Equal(t, 1, db.Rollbacks)
}
