package dto

import (
	"jobpilot/internal/domain/match"

	"github.com/google/uuid"
)

type CompletedTestResponse struct {
	Skill string  `json:"skill"`
	Score float64 `json:"score"`
	Date  string  `json:"date"`
}

type MatchResponse struct {
	JobID          uuid.UUID               `json:"job_id"`
	Match          bool                    `json:"match"`
	Score          float64                 `json:"score"`
	Reasons        []string                `json:"reasons"`
	MatchedSkills  []string                `json:"matched_skills"`
	MissingSkills  []string                `json:"missing_skills"`
	SuggestedTests []string                `json:"suggested_tests"`
	CompletedTests []CompletedTestResponse `json:"completed_tests"`
	KeyInsights    []string                `json:"key_insights"`
	CVVersion      int                     `json:"cv_version"`
	CheckedAt      string                  `json:"checked_at,omitempty"`
	Reason         string                  `json:"reason,omitempty"`
}

func NewMatchResponse(r match.Result) MatchResponse {
	out := MatchResponse{
		JobID:          r.JobID,
		Match:          r.Match,
		Score:          r.Score,
		Reasons:        nonNil(r.Reasons()),
		MatchedSkills:  nonNil(r.MatchedSkills),
		MissingSkills:  nonNil(r.MissingSkills),
		SuggestedTests: nonNil(r.SuggestedTests),
		CompletedTests: make([]CompletedTestResponse, 0, len(r.CompletedTests)),
		KeyInsights:    nonNil(r.KeyInsights),
		CVVersion:      r.CVVersion,
		CheckedAt:      formatTime(r.CheckedAt),
		Reason:         string(r.Reason),
	}
	for _, t := range r.CompletedTests {
		out.CompletedTests = append(out.CompletedTests, CompletedTestResponse{Skill: t.Skill, Score: t.Score, Date: formatTime(t.Date)})
	}
	return out
}

func NewMatchResponses(rs []match.Result) []MatchResponse {
	out := make([]MatchResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, NewMatchResponse(r))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
