package dto

import (
	"jobpilot/internal/applier"
	"jobpilot/internal/domain/application"

	"github.com/google/uuid"
)

type ApplicationResponse struct {
	ApplicationID uuid.UUID        `json:"application_id"`
	JobID         uuid.UUID        `json:"job_id"`
	Status        string           `json:"status"`
	Source        string           `json:"source"`
	AppliedAt     *string          `json:"applied_at"`
	Meta          application.Meta `json:"meta"`
	JobTitle      string           `json:"job_title"`
	JobCompany    string           `json:"job_company"`
	JobURL        string           `json:"job_url"`
	JobSource     string           `json:"job_source"`
	UpdatedAt     string           `json:"updated_at"`
}

func NewApplicationResponses(items []application.WithJob) []ApplicationResponse {
	out := make([]ApplicationResponse, 0, len(items))
	for _, it := range items {
		meta := it.Meta
		if meta == nil {
			meta = application.Meta{}
		}
		out = append(out, ApplicationResponse{
			ApplicationID: it.ID,
			JobID:         it.JobID,
			Status:        string(it.Status),
			Source:        it.Source,
			AppliedAt:     formatTimePtr(it.AppliedAt),
			Meta:          meta,
			JobTitle:      it.JobTitle,
			JobCompany:    it.JobCompany,
			JobURL:        it.JobURL,
			JobSource:     it.JobSource,
			UpdatedAt:     formatTime(it.UpdatedAt),
		})
	}
	return out
}

// UpdateApplicationRequest patches status and merges meta. Both are optional.
type UpdateApplicationRequest struct {
	Status string           `json:"status"`
	Meta   application.Meta `json:"meta"`
}

type ApplyOutcomeResponse struct {
	JobID      uuid.UUID `json:"job_id"`
	Result     string    `json:"result"`
	Status     string    `json:"status"`
	Submitted  bool      `json:"submitted"`
	URL        string    `json:"url,omitempty"`
	ButtonText string    `json:"button_text,omitempty"`
	Snapshot   string    `json:"snapshot,omitempty"`
	Error      string    `json:"error,omitempty"`
	Trace      []string  `json:"trace"`
}

func NewApplyOutcomeResponse(o applier.Outcome) ApplyOutcomeResponse {
	out := ApplyOutcomeResponse{
		JobID:      o.JobID,
		Result:     string(o.Result),
		Status:     string(o.Status),
		Submitted:  o.Submitted,
		URL:        o.URL,
		ButtonText: o.ButtonText,
		Snapshot:   o.Snapshot,
		Trace:      make([]string, 0, len(o.Trace)),
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	for _, s := range o.Trace {
		out.Trace = append(out.Trace, s.String())
	}
	return out
}
