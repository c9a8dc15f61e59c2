package dto

import (
	"jobpilot/internal/domain/cv"

	"github.com/google/uuid"
)

type CVResponse struct {
	ID            uuid.UUID `json:"id"`
	Version       int       `json:"version"`
	IsCurrent     bool      `json:"is_current"`
	Source        string    `json:"source"`
	ChangeSummary string    `json:"change_summary"`
	Content       string    `json:"content,omitempty"`
	CreatedAt     string    `json:"created_at"`
}

func NewCVResponse(v cv.Version, withContent bool) CVResponse {
	out := CVResponse{
		ID:            v.ID,
		Version:       v.Version,
		IsCurrent:     v.IsCurrent,
		Source:        string(v.Source),
		ChangeSummary: v.ChangeSummary,
		CreatedAt:     formatTime(v.CreatedAt),
	}
	if withContent {
		out.Content = v.Content
	}
	return out
}

type UpdateCVRequest struct {
	Content       string `json:"content"`
	Source        string `json:"source"`
	ChangeSummary string `json:"change_summary"`
}

type UpdateCVResponse struct {
	CVResponse
	Created bool `json:"created"`
}
