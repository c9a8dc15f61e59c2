// Package matcher scores a job description against the user's current CV
// with an AI collaborator and persists the explained result.
package matcher

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"jobpilot/internal/domain/cv"
	"jobpilot/internal/domain/job"
	"jobpilot/internal/domain/match"
	"jobpilot/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultThreshold = 0.7
	maxPromptChars   = 24000
	defaultLogLength = 200
	defaultCacheTTL  = 24 * time.Hour
)

//go:embed prompt.md
var promptTemplate string

// Scorer is the AI collaborator. It returns raw JSON text.
type Scorer interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

type CVSource interface {
	ForMatching(ctx context.Context, userID uuid.UUID) (cv.ForMatching, error)
}

type TestHistory interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]match.SkillTest, error)
}

type Store interface {
	Upsert(ctx context.Context, m match.Result) error
}

// Cache remembers scored results for identical inputs. Optional.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Options struct {
	Threshold    float64
	MaxLogLength int
	Attempts     int
	Cache        Cache
	CacheTTL     time.Duration
}

type Matcher struct {
	scorer Scorer
	cvs    CVSource
	tests  TestHistory
	store  Store
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

func New(scorer Scorer, cvs CVSource, tests TestHistory, store Store, opts Options, log *zap.Logger) *Matcher {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultLogLength
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 2
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	return &Matcher{
		scorer: scorer,
		cvs:    cvs,
		tests:  tests,
		store:  store,
		opts:   opts,
		log:    logger.OrNop(log),
		now:    time.Now,
	}
}

func (m *Matcher) Threshold() float64 { return m.opts.Threshold }

// Match scores p for its owner. A missing description, a missing CV or a
// failed scoring call yields a non-matching Result carrying a reason code
// and nil error; only such short-circuits skip persistence. The error return
// is reserved for failures to read inputs or store the result.
func (m *Matcher) Match(ctx context.Context, p job.Posting) (match.Result, error) {
	log := m.log.With(zap.String("pipeline", "match"), zap.String("job_id", p.ID.String()))
	base := match.Result{JobID: p.ID, UserID: p.UserID}

	description := strings.TrimSpace(p.DescriptionText())
	if description == "" {
		log.Warn("no description, cannot match", zap.String("status", "skipped"))
		base.Reason = match.ReasonMissingDescription
		return base, nil
	}

	current, err := m.cvs.ForMatching(ctx, p.UserID)
	if err != nil {
		return base, fmt.Errorf("load cv: %w", err)
	}
	if current.Empty() {
		log.Warn("no cv content, cannot match", zap.String("status", "skipped"))
		base.Reason = match.ReasonMissingCV
		return base, nil
	}
	history, err := m.tests.ListByUser(ctx, p.UserID)
	if err != nil {
		return base, fmt.Errorf("load skill tests: %w", err)
	}

	key := cacheKey(p, current, history)
	if res, ok := m.cached(ctx, key, log); ok {
		res.ID, res.JobID, res.UserID = uuid.Nil, p.ID, p.UserID
		res.CheckedAt = m.now().UTC()
		if err := m.store.Upsert(ctx, res); err != nil {
			return res, err
		}
		return res, nil
	}

	start := time.Now()
	resp, err := m.score(ctx, p, description, current, history, log)
	if err != nil {
		log.Warn("scoring failed", zap.String("status", "failed"), zap.Error(err))
		base.Reason = match.ReasonScoringFailed
		return base, nil
	}

	res := m.build(p, description, current, history, resp)
	if err := m.store.Upsert(ctx, res); err != nil {
		return res, err
	}
	m.remember(ctx, key, res, log)

	log.Info("job matched",
		zap.String("step", "match"),
		zap.String("status", "success"),
		zap.Bool("match", res.Match),
		zap.Float64("score", res.Score),
		zap.Int("cv_version", res.CVVersion),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (m *Matcher) score(ctx context.Context, p job.Posting, description string, current cv.ForMatching, history []match.SkillTest, log *zap.Logger) (aiResponse, error) {
	prompt := buildPrompt(p.Title, description, current.Content, history)
	log.Debug("sending match prompt",
		zap.Int("prompt_length", len(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, m.opts.MaxLogLength)),
	)

	var lastErr error
	for attempt := 1; attempt <= m.opts.Attempts; attempt++ {
		raw, err := m.scorer.GenerateJSON(ctx, prompt)
		if err != nil {
			return aiResponse{}, err
		}
		log.Debug("match response",
			zap.Int("attempt", attempt),
			zap.String("response_preview", logger.TruncateForLog(raw, m.opts.MaxLogLength)),
		)
		resp, err := parseResponse(raw)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return aiResponse{}, lastErr
}

func (m *Matcher) build(p job.Posting, description string, current cv.ForMatching, history []match.SkillTest, resp aiResponse) match.Result {
	core := uniqueStrings(resp.CoreRequirements)
	matched := uniqueStrings(resp.MatchedRequirements)

	var score float64
	if len(core) > 0 {
		score = clamp01(float64(len(matched)) / float64(len(core)))
	} else if s, ok := resp.modelScore(); ok {
		score = s
	}
	missing := uniqueStrings(resp.MissingSkills)

	return match.Result{
		JobID:             p.ID,
		UserID:            p.UserID,
		Match:             score >= m.opts.Threshold,
		Score:             score,
		MatchedSkills:     uniqueStrings(resp.MatchedSkills),
		MissingSkills:     missing,
		SuggestedTests:    suggestTests(resp.SuggestedTests, missing, description, history),
		CompletedTests:    completedTests(history),
		KeyInsights:       uniqueStrings(resp.KeyInsights),
		CVVersion:         current.Version,
		CVContentSnapshot: match.Snapshot(current.Content),
		CheckedAt:         m.now().UTC(),
	}
}

func buildPrompt(title, description, cvText string, history []match.SkillTest) string {
	var tests strings.Builder
	if len(history) == 0 {
		tests.WriteString("No test results available")
	}
	for i, t := range history {
		if i > 0 {
			tests.WriteString("\n")
		}
		fmt.Fprintf(&tests, "- %s: %.0f%% (%s)", t.Skill, t.Score, t.CompletedAt.Format("2006-01-02"))
	}

	r := strings.NewReplacer(
		"{{CV}}", trimRunes(cvText, maxPromptChars*6/10),
		"{{TITLE}}", strings.TrimSpace(title),
		"{{DESCRIPTION}}", trimRunes(description, maxPromptChars*35/100),
		"{{TESTS}}", tests.String(),
	)
	return r.Replace(promptTemplate)
}

func trimRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}

// cacheKey identifies one scoring input: the CV version, the description
// and the user's test history.
func cacheKey(p job.Posting, current cv.ForMatching, history []match.SkillTest) string {
	h := sha256.New()
	h.Write([]byte(p.DescriptionText()))
	for _, t := range history {
		fmt.Fprintf(h, "|%s=%.2f", t.Skill, t.Score)
	}
	return fmt.Sprintf("match:%s:%s:v%d:%s", p.UserID, p.ID, current.Version, hex.EncodeToString(h.Sum(nil))[:16])
}

func (m *Matcher) cached(ctx context.Context, key string, log *zap.Logger) (match.Result, bool) {
	if m.opts.Cache == nil {
		return match.Result{}, false
	}
	var res match.Result
	ok, err := m.opts.Cache.GetJSON(ctx, key, &res)
	if err != nil {
		log.Debug("match cache read failed", zap.Error(err))
		return match.Result{}, false
	}
	if ok {
		log.Debug("match cache hit", zap.String("key", key))
	}
	return res, ok
}

func (m *Matcher) remember(ctx context.Context, key string, res match.Result, log *zap.Logger) {
	if m.opts.Cache == nil {
		return
	}
	if err := m.opts.Cache.SetJSON(ctx, key, res, m.opts.CacheTTL); err != nil {
		log.Debug("match cache write failed", zap.Error(err))
	}
}
