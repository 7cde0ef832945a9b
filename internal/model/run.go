package model

import "time"

// RunStatus tracks the lifecycle of a scrape run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun is one invocation of the search→detail→assets workflow for
// a single advertiser.
type ScrapeRun struct {
	ID          string     `json:"id"`
	Advertiser  string     `json:"advertiser"`
	Status      RunStatus  `json:"status"`
	AdsFound    int        `json:"ads_found"`
	AssetsSaved int        `json:"assets_saved"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunSummary is the terminal result recorded when a run completes.
type RunSummary struct {
	AdsFound    int    `json:"ads_found"`
	AssetsSaved int    `json:"assets_saved"`
	Error       string `json:"error,omitempty"`
}
