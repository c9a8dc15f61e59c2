package pipeline

import (
	"fmt"
	"strings"

	"jobpilot/internal/discovery"

	"github.com/google/uuid"
)

// JobError is a per-job failure that did not stop the run.
type JobError struct {
	JobID uuid.UUID `json:"job_id,omitempty"`
	URL   string    `json:"url,omitempty"`
	Step  string    `json:"step"`
	Error string    `json:"error"`
}

type BoardSummary struct {
	Source     string `json:"source"`
	Fetched    int    `json:"fetched"`
	Relevant   int    `json:"relevant"`
	Duplicates int    `json:"duplicates"`
	Inserted   int    `json:"inserted"`
	Error      string `json:"error,omitempty"`
}

func boardSummaries(s discovery.Summary) []BoardSummary {
	out := make([]BoardSummary, 0, len(s.Sources))
	for _, src := range s.Sources {
		b := BoardSummary{
			Source:     src.Source,
			Fetched:    src.Fetched,
			Relevant:   src.Relevant,
			Duplicates: src.Duplicates,
			Inserted:   src.Inserted,
		}
		if src.Err != nil {
			b.Error = src.Err.Error()
		}
		out = append(out, b)
	}
	return out
}

type ScrapeSummary struct {
	Source        string     `json:"source"`
	Fetched       int        `json:"fetched"`
	Relevant      int        `json:"relevant"`
	Inserted      int        `json:"inserted"`
	Analyzed      int        `json:"analyzed"`
	AnalyzeFailed int        `json:"analyze_failed"`
	Opportunities int        `json:"opportunities"`
	Errors        []JobError `json:"errors"`
}

func (s ScrapeSummary) String() string {
	return fmt.Sprintf("%s: fetched=%d relevant=%d inserted=%d analyzed=%d failed=%d",
		s.Source, s.Fetched, s.Relevant, s.Inserted, s.Analyzed, s.AnalyzeFailed)
}

type HuntSummary struct {
	Skipped       bool           `json:"skipped"`
	Message       string         `json:"message"`
	Boards        []BoardSummary `json:"boards"`
	Inserted      int            `json:"inserted"`
	Analyzed      int            `json:"analyzed"`
	Matched       int            `json:"matched"`
	Opportunities int            `json:"opportunities"`
	Errors        []JobError     `json:"errors"`
}

func (s HuntSummary) String() string {
	if s.Skipped {
		return s.Message
	}
	boards := make([]string, 0, len(s.Boards))
	for _, b := range s.Boards {
		boards = append(boards, b.Source)
	}
	return fmt.Sprintf("hunt over [%s]: inserted=%d analyzed=%d matched=%d opportunities=%d errors=%d",
		strings.Join(boards, ","), s.Inserted, s.Analyzed, s.Matched, s.Opportunities, len(s.Errors))
}

// BulkResult reports a bulk import row by row.
type BulkResult struct {
	Inserted int        `json:"inserted"`
	Failed   int        `json:"failed"`
	Errors   []JobError `json:"errors"`
}
