package state

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
)

// finalStatus maps the error a run ended with to its status.
func finalStatus(err error) RunStatus {
	switch {
	case err == nil:
		return RunCompleted
	case errors.Is(err, context.Canceled):
		return RunCancelled
	default:
		return RunError
	}
}

// DiscoveryRun is the mutable state of one discovery.
type DiscoveryRun struct {
	mutex  sync.RWMutex
	done   chan struct{}
	snap   DiscoverySnapshot
	cancel context.CancelFunc
}

func newDiscoveryRun(id, reference string, criteria model.FilterCriteria, cancel context.CancelFunc) *DiscoveryRun {
	return &DiscoveryRun{
		done: make(chan struct{}),
		snap: DiscoverySnapshot{
			ID:        id,
			Reference: reference,
			Criteria:  criteria,
			Status:    RunRunning,
			StartedAt: time.Now(),
		},
		cancel: cancel,
	}
}

// ID returns the run handle
func (r *DiscoveryRun) ID() string { return r.snap.ID }

// Update records a progress event.
func (r *DiscoveryRun) Update(p model.DiscoveryProgress) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.snap.Progress = p
}

// Finish records the end of the run. Records are kept only on success.
func (r *DiscoveryRun) Finish(channel *model.ChannelIdentity, records []model.VideoRecord, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.snap.Status != RunRunning {
		return
	}
	defer close(r.done)

	now := time.Now()
	r.snap.FinishedAt = &now
	r.snap.Status = finalStatus(err)
	if channel != nil {
		c := *channel
		r.snap.Channel = &c
	}
	switch r.snap.Status {
	case RunCompleted:
		r.snap.Result = slices.Clone(records)
		if r.snap.Result == nil {
			r.snap.Result = []model.VideoRecord{}
		}
	case RunError:
		r.snap.Error = err.Error()
	}
}

// Running reports whether the run has not finished yet.
func (r *DiscoveryRun) Running() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.snap.Status == RunRunning
}

// Done is closed once the run has finished.
func (r *DiscoveryRun) Done() <-chan struct{} { return r.done }

// Cancel asks the run to stop. It has no effect on a finished run.
func (r *DiscoveryRun) Cancel() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Snapshot returns a copy safe to hand to callers.
func (r *DiscoveryRun) Snapshot() DiscoverySnapshot {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	s := r.snap
	s.Result = slices.Clone(r.snap.Result)
	if r.snap.Channel != nil {
		c := *r.snap.Channel
		s.Channel = &c
	}
	return s
}

// DownloadRun is the mutable state of one download batch.
type DownloadRun struct {
	mutex  sync.RWMutex
	done   chan struct{}
	snap   DownloadSnapshot
	cancel context.CancelFunc
}

func newDownloadRun(id string, total int, cancel context.CancelFunc) *DownloadRun {
	return &DownloadRun{
		done: make(chan struct{}),
		snap: DownloadSnapshot{
			ID:        id,
			Status:    RunRunning,
			Total:     total,
			Completed: []string{},
			Failed:    []string{},
			Skipped:   []string{},
			Outcomes:  []model.DownloadOutcome{},
			StartedAt: time.Now(),
		},
		cancel: cancel,
	}
}

// ID returns the run handle
func (r *DownloadRun) ID() string { return r.snap.ID }

// Observe folds one orchestrator event into the snapshot.
func (r *DownloadRun) Observe(ev model.DownloadEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.snap.Current = ev.Current
	if ev.Total > 0 {
		r.snap.Total = ev.Total
	}
	r.snap.JobStatus = ev.Status
	r.snap.CurrentTitle = ev.Title
	r.snap.Attempt = ev.Attempt
	r.snap.WaitRemaining = ev.WaitRemaining

	if ev.Outcome != nil {
		o := *ev.Outcome
		r.snap.Outcomes = append(r.snap.Outcomes, o)
		switch o.Kind {
		case model.OutcomeSucceeded:
			r.snap.Completed = append(r.snap.Completed, o.Title)
		case model.OutcomeFailed:
			r.snap.Failed = append(r.snap.Failed, o.Title)
		case model.OutcomeSkipped:
			r.snap.Skipped = append(r.snap.Skipped, o.Title)
		}
	}
	if r.snap.Total > 0 {
		r.snap.Percentage = float64(len(r.snap.Outcomes)) * 100 / float64(r.snap.Total)
	}
}

// Finish records the end of the batch.
func (r *DownloadRun) Finish(err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.snap.Status != RunRunning {
		return
	}
	defer close(r.done)

	now := time.Now()
	r.snap.FinishedAt = &now
	r.snap.Status = finalStatus(err)
	r.snap.WaitRemaining = 0
	if r.snap.Status == RunError {
		r.snap.Error = err.Error()
	}
	if r.snap.Status == RunCompleted {
		r.snap.Percentage = 100
	}
}

// Running reports whether the batch has not finished yet.
func (r *DownloadRun) Running() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.snap.Status == RunRunning
}

// Done is closed once the batch has finished.
func (r *DownloadRun) Done() <-chan struct{} { return r.done }

// Cancel asks the batch to stop after the current step.
func (r *DownloadRun) Cancel() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Snapshot returns a copy safe to hand to callers.
func (r *DownloadRun) Snapshot() DownloadSnapshot {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	s := r.snap
	s.Completed = slices.Clone(r.snap.Completed)
	s.Failed = slices.Clone(r.snap.Failed)
	s.Skipped = slices.Clone(r.snap.Skipped)
	s.Outcomes = slices.Clone(r.snap.Outcomes)
	return s
}
