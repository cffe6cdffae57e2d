package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
)

// Registry keeps every run by handle and allows at most one running run of each kind.
type Registry struct {
	mutex sync.Mutex

	discoveries map[string]*DiscoveryRun
	downloads   map[string]*DownloadRun

	activeDiscovery *DiscoveryRun
	activeDownload  *DownloadRun
}

func NewRegistry() *Registry {
	return &Registry{
		discoveries: make(map[string]*DiscoveryRun),
		downloads:   make(map[string]*DownloadRun),
	}
}

// BeginDiscovery registers a new discovery run, or fails with model.ErrBusy
// while another discovery is still running.
func (r *Registry) BeginDiscovery(reference string, criteria model.FilterCriteria, cancel context.CancelFunc) (*DiscoveryRun, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.activeDiscovery != nil && r.activeDiscovery.Running() {
		return nil, fmt.Errorf("discovery %s: %w", r.activeDiscovery.ID(), model.ErrBusy)
	}
	run := newDiscoveryRun(uuid.New().String(), reference, criteria, cancel)
	r.discoveries[run.ID()] = run
	r.activeDiscovery = run
	log.Debug().Str("run_id", run.ID()).Str("reference", reference).Msg("Registered discovery run")
	return run, nil
}

// BeginDownload registers a new download batch, or fails with model.ErrBusy
// while another batch is still running.
func (r *Registry) BeginDownload(total int, cancel context.CancelFunc) (*DownloadRun, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.activeDownload != nil && r.activeDownload.Running() {
		return nil, fmt.Errorf("download %s: %w", r.activeDownload.ID(), model.ErrBusy)
	}
	run := newDownloadRun(uuid.New().String(), total, cancel)
	r.downloads[run.ID()] = run
	r.activeDownload = run
	log.Debug().Str("run_id", run.ID()).Int("jobs", total).Msg("Registered download run")
	return run, nil
}

func (r *Registry) Discovery(id string) (*DiscoveryRun, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	run, ok := r.discoveries[id]
	if !ok {
		return nil, fmt.Errorf("discovery %s: %w", id, model.ErrRunNotFound)
	}
	return run, nil
}

func (r *Registry) Download(id string) (*DownloadRun, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	run, ok := r.downloads[id]
	if !ok {
		return nil, fmt.Errorf("download %s: %w", id, model.ErrRunNotFound)
	}
	return run, nil
}

// Cancel stops the run with the given handle, whichever kind it is.
func (r *Registry) Cancel(id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if run, ok := r.discoveries[id]; ok {
		run.Cancel()
		return nil
	}
	if run, ok := r.downloads[id]; ok {
		run.Cancel()
		return nil
	}
	return fmt.Errorf("run %s: %w", id, model.ErrRunNotFound)
}
