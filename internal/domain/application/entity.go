package application

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOpportunity Status = "opportunity"
	StatusFollowup    Status = "followup"
	StatusApplied     Status = "applied"
	StatusInterview   Status = "interview"
	StatusExternal    Status = "external"
	StatusRejected    Status = "rejected"
)

var statuses = []Status{
	StatusOpportunity,
	StatusFollowup,
	StatusApplied,
	StatusInterview,
	StatusExternal,
	StatusRejected,
}

func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

func (s Status) Valid() bool {
	for _, v := range statuses {
		if s == v {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid application status %q", s)
	}
	return st, nil
}

// Meta is the free-form annotation map stored with an application.
type Meta map[string]any

const (
	MetaNote        = "note"
	MetaMatchScore  = "match_score"
	MetaScore       = "score"
	MetaReasons     = "reasons"
	MetaError       = "error"
	MetaSnapshot    = "snapshot"
	MetaExternalURL = "external_url"
	MetaOutcome     = "outcome"
)

// Merge returns a copy of m with other's keys laid over it.
func (m Meta) Merge(other Meta) Meta {
	out := make(Meta, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (m Meta) String(key string) string {
	v, _ := m[key].(string)
	return v
}

func (m Meta) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(m))
}

type Application struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	UserID    uuid.UUID
	Status    Status
	AppliedAt *time.Time
	Meta      Meta
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithJob is an application joined with the job fields shown in listings.
type WithJob struct {
	Application
	JobTitle   string
	JobCompany string
	JobURL     string
	JobSource  string
}
