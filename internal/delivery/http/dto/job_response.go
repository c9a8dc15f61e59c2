package dto

import (
	"time"

	"jobpilot/internal/domain/job"

	"github.com/google/uuid"
)

type JobResponse struct {
	JobID           uuid.UUID `json:"job_id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	URL             string    `json:"url"`
	Source          string    `json:"source"`
	Description     *string   `json:"description"`
	Salary          *string   `json:"salary"`
	Posted          *string   `json:"posted"`
	ApplyButtonText *string   `json:"apply_button_text"`
	ScrapedAt       string    `json:"scraped_at"`
}

func NewJobResponse(p job.Posting) JobResponse {
	return JobResponse{
		JobID:           p.ID,
		Title:           p.Title,
		Company:         p.Company,
		Location:        p.Location,
		URL:             p.URL,
		Source:          p.Source,
		Description:     p.Description,
		Salary:          p.Salary,
		Posted:          p.Posted,
		ApplyButtonText: p.ApplyButtonText,
		ScrapedAt:       formatTime(p.ScrapedAt),
	}
}

func NewJobResponses(ps []job.Posting) []JobResponse {
	out := make([]JobResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, NewJobResponse(p))
	}
	return out
}

type JobRequest struct {
	Title       string  `json:"title"`
	Company     string  `json:"company"`
	Location    string  `json:"location"`
	URL         string  `json:"url"`
	Salary      *string `json:"salary"`
	Description *string `json:"description"`
}

func (r JobRequest) Raw() job.Raw {
	return job.Raw{
		Title:       r.Title,
		Company:     r.Company,
		Location:    r.Location,
		URL:         r.URL,
		Salary:      r.Salary,
		Description: r.Description,
	}
}

type BulkJobsRequest struct {
	Jobs []JobRequest `json:"jobs"`
}

type ScrapeRequest struct {
	Source string `json:"source"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := formatTime(*t)
	return &s
}
