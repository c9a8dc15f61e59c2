package dto

import "jobpilot/internal/domain"

type SourceStatResponse struct {
	Source             string `json:"source"`
	TotalJobs          int    `json:"total_jobs"`
	MissingDescription int    `json:"missing_description"`
	LastJobTime        string `json:"last_job_time,omitempty"`
}

type PipelineStatusResponse struct {
	TotalJobs            int                  `json:"total_jobs"`
	JobsToday            int                  `json:"jobs_today"`
	Sources              []SourceStatResponse `json:"sources"`
	ApplicationsByStatus map[string]int       `json:"applications_by_status"`
	RunInProgress        bool                 `json:"run_in_progress"`
	Database             string               `json:"database"`
	Redis                string               `json:"redis"`
	ServerTime           string               `json:"server_time"`
}

func NewPipelineStatusResponse(st domain.PipelineStatus) PipelineStatusResponse {
	out := PipelineStatusResponse{
		TotalJobs:            st.TotalJobs,
		JobsToday:            st.JobsToday,
		Sources:              make([]SourceStatResponse, 0, len(st.Sources)),
		ApplicationsByStatus: st.ApplicationsByStatus,
		RunInProgress:        st.RunInProgress,
		Database:             health(st.DatabaseHealthy),
		Redis:                health(st.RedisHealthy),
		ServerTime:           formatTime(st.ServerTime),
	}
	if out.ApplicationsByStatus == nil {
		out.ApplicationsByStatus = map[string]int{}
	}
	for _, s := range st.Sources {
		out.Sources = append(out.Sources, SourceStatResponse{
			Source:             s.Source,
			TotalJobs:          s.TotalJobs,
			MissingDescription: s.MissingDescription,
			LastJobTime:        formatTime(s.LastJobTime),
		})
	}
	return out
}

func health(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}
