package model

import "time"

// RunStatus represents the outcome of a scrape run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the persisted log entry for one scraping session.
type Run struct {
	ID           string    `json:"id"`
	Mode         string    `json:"mode"`
	Status       RunStatus `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	Cycles       int       `json:"cycles"`
	Found        int       `json:"found"`
	Synced       int       `json:"synced"`
	Skipped      int       `json:"skipped"`
	SyncFailures int       `json:"sync_failures"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
}
