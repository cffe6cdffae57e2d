// Package state holds the in-memory progress of discovery and download runs.
// Callers only ever see copies taken under the run's lock.
package state

import (
	"time"

	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
)

// RunStatus is the lifecycle state of a whole run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
	RunCancelled RunStatus = "cancelled"
)

// DiscoverySnapshot is a point-in-time copy of a discovery run.
type DiscoverySnapshot struct {
	ID         string                  `json:"id"`
	Reference  string                  `json:"reference"`
	Criteria   model.FilterCriteria    `json:"criteria"`
	Status     RunStatus               `json:"status"`
	Progress   model.DiscoveryProgress `json:"progress"`
	Channel    *model.ChannelIdentity  `json:"channel,omitempty"`
	Result     []model.VideoRecord     `json:"result,omitempty"` // set on completion
	Error      string                  `json:"error,omitempty"`  // set only on a fatal abort
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
}

// DownloadSnapshot is a point-in-time copy of a download run.
type DownloadSnapshot struct {
	ID            string                  `json:"id"`
	Status        RunStatus               `json:"status"`
	Current       int                     `json:"current"`
	Total         int                     `json:"total"`
	Percentage    float64                 `json:"percentage"`
	JobStatus     model.JobStatus         `json:"job_status,omitempty"`
	CurrentTitle  string                  `json:"current_title"`
	Attempt       int                     `json:"attempt,omitempty"`
	WaitRemaining int                     `json:"wait_remaining_minutes,omitempty"`
	Completed     []string                `json:"completed"`
	Failed        []string                `json:"failed"`
	Skipped       []string                `json:"skipped"`
	Outcomes      []model.DownloadOutcome `json:"outcomes"`
	Error         string                  `json:"error,omitempty"`
	StartedAt     time.Time               `json:"started_at"`
	FinishedAt    *time.Time              `json:"finished_at,omitempty"`
}
