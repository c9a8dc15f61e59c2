package job

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const SourceManual = "manual"

// Raw is what an adapter yields for one listing before filtering.
type Raw struct {
	Title    string
	Company  string
	Location string
	URL      string
	Salary   *string
	Posted   *string
	// Description is only set by adapters that read it from the listing page.
	Description *string
}

type Posting struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Title           string
	Company         string
	Location        string
	URL             string
	Description     *string
	Source          string
	ScrapedAt       time.Time
	Skills          []string
	Salary          *string
	Posted          *string
	CoverLetter     *string
	TailoredCV      *string
	InterviewPrep   *string
	CompanyInfo     *string
	ApplyButtonText *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (p Posting) HasDescription() bool {
	return p.Description != nil && strings.TrimSpace(*p.Description) != ""
}

func (p Posting) DescriptionText() string {
	if p.Description == nil {
		return ""
	}
	return *p.Description
}

// FromRaw builds an unsaved posting owned by userID.
func FromRaw(userID uuid.UUID, source string, r Raw, now time.Time) Posting {
	return Posting{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       strings.TrimSpace(r.Title),
		Company:     strings.TrimSpace(r.Company),
		Location:    strings.TrimSpace(r.Location),
		URL:         strings.TrimSpace(r.URL),
		Description: r.Description,
		Source:      source,
		ScrapedAt:   now,
		Skills:      []string{},
		Salary:      r.Salary,
		Posted:      r.Posted,
	}
}

type ListFilter struct {
	Source string
	Status string
	Query  string
	Limit  int
	Offset int
}

type ScrapeRunStatus string

const (
	ScrapeRunRunning ScrapeRunStatus = "running"
	ScrapeRunSuccess ScrapeRunStatus = "success"
	ScrapeRunFailed  ScrapeRunStatus = "failed"
)

type ScrapeRun struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Source     string
	Trigger    string
	Status     ScrapeRunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Fetched    int
	Relevant   int
	Inserted   int
	Error      *string
}

type ScrapeLog struct {
	ID        int64
	RunID     uuid.UUID
	Level     string
	Message   string
	CreatedAt time.Time
}
