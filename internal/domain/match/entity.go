package match

import (
	"time"

	"github.com/google/uuid"
)

// Reason explains a result that did not come from a successful scoring call.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonMissingDescription Reason = "missing-description"
	ReasonMissingCV          Reason = "missing-cv"
	ReasonScoringFailed      Reason = "scoring-failed"
)

const SnapshotLimit = 5000

type CompletedTest struct {
	Skill string    `json:"skill"`
	Score float64   `json:"score"`
	Date  time.Time `json:"date"`
}

// SkillTest is one historical skill assessment. Score is a percentage.
type SkillTest struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Skill       string
	Score       float64
	CompletedAt time.Time
}

type Result struct {
	ID                uuid.UUID
	JobID             uuid.UUID
	UserID            uuid.UUID
	Match             bool
	Score             float64
	MatchedSkills     []string
	MissingSkills     []string
	SuggestedTests    []string
	CompletedTests    []CompletedTest
	KeyInsights       []string
	CVVersion         int
	CVContentSnapshot string
	CheckedAt         time.Time
	Reason            Reason
}

// Persistable reports whether r came from a real scoring call and carries a
// CV version to reference.
func (r Result) Persistable() bool {
	return r.Reason == ReasonNone && r.CVVersion > 0
}

// Reasons is the human summary stored on applications.
func (r Result) Reasons() []string {
	return r.MatchedSkills
}

func Snapshot(content string) string {
	rs := []rune(content)
	if len(rs) <= SnapshotLimit {
		return content
	}
	return string(rs[:SnapshotLimit])
}
