package matcher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"jobpilot/internal/ai/gemini"
	"jobpilot/internal/domain/cv"
	"jobpilot/internal/domain/job"
	"jobpilot/internal/domain/match"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	replies    []string
	err        error
	calls      int
	lastPrompt string
}

func (s *stubScorer) GenerateJSON(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no reply queued")
	}
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return r, nil
}

type stubCV struct {
	cv  cv.ForMatching
	err error
}

func (s stubCV) ForMatching(context.Context, uuid.UUID) (cv.ForMatching, error) { return s.cv, s.err }

type stubTests []match.SkillTest

func (s stubTests) ListByUser(context.Context, uuid.UUID) ([]match.SkillTest, error) { return s, nil }

// memStore keeps one row per job, like the (user_id, job_id) unique key.
type memStore struct {
	rows   map[uuid.UUID]match.Result
	writes int
	err    error
}

func (m *memStore) Upsert(_ context.Context, r match.Result) error {
	if m.err != nil {
		return m.err
	}
	if m.rows == nil {
		m.rows = map[uuid.UUID]match.Result{}
	}
	if prev, ok := m.rows[r.JobID]; ok {
		r.ID = prev.ID
	} else if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.rows[r.JobID] = r
	m.writes++
	return nil
}

type memCache struct {
	data map[string]match.Result
}

func (c *memCache) GetJSON(_ context.Context, key string, out any) (bool, error) {
	r, ok := c.data[key]
	if ok {
		*(out.(*match.Result)) = r
	}
	return ok, nil
}

func (c *memCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	if c.data == nil {
		c.data = map[string]match.Result{}
	}
	c.data[key] = v.(match.Result)
	return nil
}

func posting(desc string) job.Posting {
	p := job.Posting{ID: uuid.New(), UserID: uuid.New(), Title: "Frontend Engineer"}
	if desc != "" {
		p.Description = &desc
	}
	return p
}

const description = "We need React, TypeScript, GraphQL and Next.js. Accessibility experience is a plus."

const goodReply = `{
  "core_requirements": ["React", "TypeScript", "GraphQL", "Next.js"],
  "matched_requirements": ["React", "TypeScript", "GraphQL"],
  "matched_skills": ["React", "TypeScript", "GraphQL", "react"],
  "missing_skills": ["Next.js", "Accessibility"],
  "suggested_tests": ["Next.js", "Accessibility", "Kubernetes", "next.js"],
  "key_insights": ["Strong React background"]
}`

func TestMatch_ScoresAndPersists(t *testing.T) {
	scorer := &stubScorer{replies: []string{"```json\n" + goodReply + "\n```"}}
	store := &memStore{}
	current := cv.ForMatching{Content: "Five years of React, TypeScript and GraphQL.", Version: 3, CVID: uuid.New()}
	history := stubTests{
		{Skill: "Next.js", Score: 75, CompletedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Skill: "Accessibility", Score: 55, CompletedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	m := New(scorer, stubCV{cv: current}, history, store, Options{}, nil)
	p := posting(description)

	res, err := m.Match(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, res.Score, 1e-9)
	assert.True(t, res.Match)
	assert.Equal(t, match.ReasonNone, res.Reason)
	assert.Equal(t, []string{"React", "TypeScript", "GraphQL"}, res.MatchedSkills)
	assert.Equal(t, res.MatchedSkills, res.Reasons())
	// Next.js passed at 75%; Accessibility at 55% needs a retake; Kubernetes is ungrounded.
	assert.Equal(t, []string{"Accessibility"}, res.SuggestedTests)
	require.Len(t, res.CompletedTests, 2)
	assert.Equal(t, "Next.js", res.CompletedTests[0].Skill)
	assert.Equal(t, 3, res.CVVersion)
	assert.Equal(t, current.Content, res.CVContentSnapshot)

	require.Len(t, store.rows, 1)
	assert.Equal(t, p.ID, store.rows[p.ID].JobID)
	assert.Contains(t, scorer.lastPrompt, current.Content)
	assert.Contains(t, scorer.lastPrompt, "Next.js: 75%")
	assert.Contains(t, scorer.lastPrompt, "explicitly present")
}

func TestMatch_BelowThreshold(t *testing.T) {
	reply := `{"core_requirements":["A","B","C"],"matched_requirements":["A"],"matched_skills":[],"missing_skills":[],"key_insights":[]}`
	m := New(&stubScorer{replies: []string{reply}}, stubCV{cv: cv.ForMatching{Content: "cv", Version: 1}}, stubTests{}, &memStore{}, Options{}, nil)

	res, err := m.Match(context.Background(), posting(description))
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.InDelta(t, 1.0/3, res.Score, 1e-9)
	assert.NotNil(t, res.SuggestedTests)
}

func TestMatch_ShortCircuits(t *testing.T) {
	store := &memStore{}
	scorer := &stubScorer{replies: []string{goodReply}}

	res, err := New(scorer, stubCV{cv: cv.ForMatching{Content: "cv", Version: 1}}, stubTests{}, store, Options{}, nil).
		Match(context.Background(), posting(""))
	require.NoError(t, err)
	assert.Equal(t, match.ReasonMissingDescription, res.Reason)
	assert.False(t, res.Match)
	assert.Zero(t, res.Score)

	res, err = New(scorer, stubCV{}, stubTests{}, store, Options{}, nil).Match(context.Background(), posting(description))
	require.NoError(t, err)
	assert.Equal(t, match.ReasonMissingCV, res.Reason)

	assert.Zero(t, scorer.calls)
	assert.Empty(t, store.rows)
}

func TestMatch_ScoringFailureIsNotPersisted(t *testing.T) {
	store := &memStore{}
	current := stubCV{cv: cv.ForMatching{Content: "cv", Version: 2}}

	res, err := New(&stubScorer{err: gemini.ErrInvalidResponse}, current, stubTests{}, store, Options{}, nil).
		Match(context.Background(), posting(description))
	require.NoError(t, err)
	assert.Equal(t, match.ReasonScoringFailed, res.Reason)
	assert.False(t, res.Persistable())

	scorer := &stubScorer{replies: []string{`{"matched_skills": "not a list"}`}}
	res, err = New(scorer, current, stubTests{}, store, Options{Attempts: 2}, nil).Match(context.Background(), posting(description))
	require.NoError(t, err)
	assert.Equal(t, match.ReasonScoringFailed, res.Reason)
	assert.Equal(t, 2, scorer.calls)
	assert.Empty(t, store.rows)
}

func TestMatch_InputAndStoreErrors(t *testing.T) {
	_, err := New(&stubScorer{}, stubCV{err: errors.New("db down")}, stubTests{}, &memStore{}, Options{}, nil).
		Match(context.Background(), posting(description))
	assert.ErrorContains(t, err, "db down")

	_, err = New(&stubScorer{replies: []string{goodReply}}, stubCV{cv: cv.ForMatching{Content: "cv", Version: 1}}, stubTests{}, &memStore{err: errors.New("write failed")}, Options{}, nil).
		Match(context.Background(), posting(description))
	assert.ErrorContains(t, err, "write failed")
}

func TestMatch_CacheSkipsSecondScoring(t *testing.T) {
	scorer := &stubScorer{replies: []string{goodReply}}
	store := &memStore{}
	cache := &memCache{}
	m := New(scorer, stubCV{cv: cv.ForMatching{Content: "cv", Version: 1}}, stubTests{}, store, Options{Cache: cache}, nil)
	p := posting(description)

	first, err := m.Match(context.Background(), p)
	require.NoError(t, err)
	second, err := m.Match(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, 1, scorer.calls)
	assert.Equal(t, first.Score, second.Score)
	assert.Len(t, store.rows, 1)
	assert.Equal(t, 2, store.writes)
}

func TestMatch_ModelScoreWhenNoRequirements(t *testing.T) {
	reply := `{"core_requirements":[],"matched_requirements":[],"matched_skills":["Go"],"missing_skills":[],"key_insights":[],"score":"85%"}`
	res, err := New(&stubScorer{replies: []string{reply}}, stubCV{cv: cv.ForMatching{Content: "cv", Version: 1}}, stubTests{}, &memStore{}, Options{}, nil).
		Match(context.Background(), posting(description))
	require.NoError(t, err)
	assert.InDelta(t, 0.85, res.Score, 1e-9)
	assert.True(t, res.Match)
}

func TestSuggestTests_Bounds(t *testing.T) {
	var proposed []string
	for i := 0; i < 12; i++ {
		proposed = append(proposed, "Skill"+strings.Repeat("x", i))
	}
	got := suggestTests(proposed, proposed, "", nil)
	assert.Len(t, got, maxSuggestedTests)
}

func TestSimilar(t *testing.T) {
	assert.True(t, similar("REST APIs design", "design REST APIs"))
	assert.True(t, similar("Next.js", " next.js "))
	assert.True(t, similar("Résumé Writing", "resume writing"))
	assert.False(t, similar("Java", "JavaScript"))
	assert.False(t, similar("Go", "Google Cloud"))
	assert.False(t, similar("React", "React Native"))
	assert.False(t, similar("Vue", "Angular"))
	assert.False(t, similar("", "Go"))
}

func TestSuggestTests_OnlyTheSamePassedSkillIsDropped(t *testing.T) {
	missing := []string{"JavaScript", "Google Cloud", "Accessibility"}
	history := []match.SkillTest{
		{Skill: "Java", Score: 90},
		{Skill: "Go", Score: 85},
		{Skill: "Accessibility", Score: 60},
	}

	got := suggestTests(missing, missing, description, history)
	assert.Equal(t, []string{"JavaScript", "Google Cloud", "Accessibility"}, got)

	history[2].Score = 60.5
	got = suggestTests(missing, missing, description, history)
	assert.Equal(t, []string{"JavaScript", "Google Cloud"}, got)
}

func TestMatch_RematchAfterCVChangeUpdatesTheSameRow(t *testing.T) {
	store := &memStore{}
	cvs := &stubCV{cv: cv.ForMatching{Content: "CV v3: React and TypeScript.", Version: 3, CVID: uuid.New()}}
	m := New(&stubScorer{replies: []string{goodReply}}, cvs, stubTests{}, store, Options{Cache: &memCache{}}, nil)
	p := posting(description)

	first, err := m.Match(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 3, first.CVVersion)
	require.Len(t, store.rows, 1)
	rowID := store.rows[p.ID].ID

	cvs.cv = cv.ForMatching{Content: "CV v4: React, TypeScript, GraphQL and Next.js.", Version: 4, CVID: uuid.New()}
	second, err := m.Match(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 4, second.CVVersion)

	require.Len(t, store.rows, 1)
	row := store.rows[p.ID]
	assert.Equal(t, rowID, row.ID)
	assert.Equal(t, 4, row.CVVersion)
	assert.Equal(t, "CV v4: React, TypeScript, GraphQL and Next.js.", row.CVContentSnapshot)
	assert.Equal(t, 2, store.writes)
}
