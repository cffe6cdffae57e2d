package model

import "fmt"

// JobStatus is a state of the per-job download state machine.
type JobStatus string

const (
	StatusPending         JobStatus = "pending"
	StatusDownloading     JobStatus = "downloading"
	StatusRateLimitedWait JobStatus = "waiting"
	StatusSkipped         JobStatus = "skipped"
	StatusSucceeded       JobStatus = "succeeded"
	StatusFailed          JobStatus = "failed"
)

var allowedTransitions = map[JobStatus]map[JobStatus]bool{
	StatusPending: {
		StatusSkipped:     true,
		StatusDownloading: true,
	},
	StatusDownloading: {
		StatusSucceeded:       true,
		StatusRateLimitedWait: true,
		StatusFailed:          true,
	},
	StatusRateLimitedWait: {
		StatusDownloading: true,
		StatusFailed:      true, // wait interrupted by cancellation
	},
	StatusSkipped:   {},
	StatusSucceeded: {},
	StatusFailed:    {},
}

func IsKnownStatus(status JobStatus) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func CanTransition(from, to JobStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsTerminal reports whether no transition leaves status.
func (s JobStatus) IsTerminal() bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

// JobState tracks one job through the state machine.
type JobState struct {
	Job    DownloadJob
	Status JobStatus
}

func NewJobState(job DownloadJob) *JobState {
	return &JobState{Job: job, Status: StatusPending}
}

func (s *JobState) Transition(to JobStatus) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("invalid job status transition: %q -> %q (video_id=%s)", s.Status, to, s.Job.VideoID)
	}
	s.Status = to
	return nil
}
