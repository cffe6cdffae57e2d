// Package engine is the caller-facing API: it starts discovery and download
// runs in the background and exposes their progress by handle.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tomyanzhiyuan/ytmp3-scraper/client"
	"github.com/tomyanzhiyuan/ytmp3-scraper/common"
	"github.com/tomyanzhiyuan/ytmp3-scraper/config"
	ytcrawler "github.com/tomyanzhiyuan/ytmp3-scraper/crawler/youtube"
	"github.com/tomyanzhiyuan/ytmp3-scraper/download"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
	"github.com/tomyanzhiyuan/ytmp3-scraper/state"
)

// Discoverer enumerates and classifies one channel
type Discoverer interface {
	Discover(ctx context.Context, reference string, criteria model.FilterCriteria, onProgress func(model.DiscoveryProgress)) (model.ChannelIdentity, []model.VideoRecord, error)
}

// Downloader runs one batch of jobs
type Downloader interface {
	Run(ctx context.Context, jobs []model.DownloadJob, onProgress func(model.DownloadEvent)) ([]model.DownloadOutcome, error)
}

// Engine owns the run registry. All methods are safe for concurrent use.
type Engine struct {
	cfg        *config.Config
	discoverer Discoverer
	downloader Downloader
	registry   *state.Registry
}

func New(cfg *config.Config, discoverer Discoverer, downloader Downloader) *Engine {
	return &Engine{
		cfg:        cfg,
		discoverer: discoverer,
		downloader: downloader,
		registry:   state.NewRegistry(),
	}
}

// NewFromConfig builds the providers, the discovery pipeline and the
// download orchestrator described by cfg.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	providers, err := client.NewProviderFactory(cfg).Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build providers: %w", err)
	}

	resolver, err := ytcrawler.NewResolver(providers.Lookup, cfg.ResolverCacheSize)
	if err != nil {
		return nil, err
	}
	classifier := ytcrawler.NewShortClassifier(providers.Prober, ytcrawler.ClassifierOptions{
		MaxShortDuration: cfg.ShortMaxDuration,
		PortraitRatio:    cfg.PortraitRatio,
	})
	pipeline := ytcrawler.NewPipeline(resolver, providers.Primary, providers.Fallback, classifier)

	orchestrator := download.NewOrchestrator(providers.Fetcher, download.Options{
		Root:            cfg.OutputDir,
		Format:          cfg.Format,
		MaxAttempts:     cfg.MaxAttempts,
		BackoffSchedule: cfg.BackoffSchedule,
		JitterMin:       cfg.JitterMin,
		JitterMax:       cfg.JitterMax,
		FuzzyThreshold:  cfg.FuzzyThreshold,
	})

	return New(cfg, pipeline, orchestrator), nil
}

// StartDiscovery begins a discovery in the background and returns its handle.
// It fails with model.ErrBusy while another discovery is running.
func (e *Engine) StartDiscovery(reference string, criteria model.FilterCriteria) (string, error) {
	criteria = criteria.Normalize()

	ctx, cancel := context.WithCancel(context.Background())
	run, err := e.registry.BeginDiscovery(reference, criteria, cancel)
	if err != nil {
		cancel()
		return "", err
	}

	go func() {
		defer cancel()
		channel, records, err := e.discoverer.Discover(ctx, reference, criteria, run.Update)

		var identity *model.ChannelIdentity
		if channel.ID != "" {
			identity = &channel
		}
		if err != nil {
			log.Error().Err(err).Str("run_id", run.ID()).Str("reference", reference).Msg("Discovery ended with error")
		} else {
			log.Info().Str("run_id", run.ID()).Int("eligible", len(records)).Msg("Discovery completed")
		}
		run.Finish(identity, records, err)
	}()

	return run.ID(), nil
}

func (e *Engine) GetDiscoveryProgress(handle string) (state.DiscoverySnapshot, error) {
	run, err := e.registry.Discovery(handle)
	if err != nil {
		return state.DiscoverySnapshot{}, err
	}
	return run.Snapshot(), nil
}

// WaitDiscovery blocks until the discovery finishes or ctx ends.
func (e *Engine) WaitDiscovery(ctx context.Context, handle string) (state.DiscoverySnapshot, error) {
	run, err := e.registry.Discovery(handle)
	if err != nil {
		return state.DiscoverySnapshot{}, err
	}
	select {
	case <-run.Done():
		return run.Snapshot(), nil
	case <-ctx.Done():
		return run.Snapshot(), ctx.Err()
	}
}

// StartDownload begins a download batch in the background and returns its
// handle. It fails with model.ErrBusy while another batch is running.
func (e *Engine) StartDownload(jobs []model.DownloadJob) (string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	run, err := e.registry.BeginDownload(len(jobs), cancel)
	if err != nil {
		cancel()
		return "", err
	}

	go func() {
		defer cancel()
		outcomes, err := e.downloader.Run(ctx, jobs, run.Observe)
		if err != nil {
			log.Error().Err(err).Str("run_id", run.ID()).Int("finished", len(outcomes)).Msg("Download batch stopped")
		} else {
			log.Info().Str("run_id", run.ID()).Int("jobs", len(outcomes)).Msg("Download batch completed")
		}
		run.Finish(err)
	}()

	return run.ID(), nil
}

func (e *Engine) GetDownloadProgress(handle string) (state.DownloadSnapshot, error) {
	run, err := e.registry.Download(handle)
	if err != nil {
		return state.DownloadSnapshot{}, err
	}
	return run.Snapshot(), nil
}

// WaitDownload blocks until the batch finishes or ctx ends.
func (e *Engine) WaitDownload(ctx context.Context, handle string) (state.DownloadSnapshot, error) {
	run, err := e.registry.Download(handle)
	if err != nil {
		return state.DownloadSnapshot{}, err
	}
	select {
	case <-run.Done():
		return run.Snapshot(), nil
	case <-ctx.Done():
		return run.Snapshot(), ctx.Err()
	}
}

// Cancel stops a discovery or download run.
func (e *Engine) Cancel(handle string) error {
	return e.registry.Cancel(handle)
}

// ListOutputFiles lists downloaded files, newest first.
func (e *Engine) ListOutputFiles() ([]string, error) {
	return download.ListOutputFiles(e.cfg.OutputDir, e.cfg.Format.Extension())
}

// JobsForVideos turns video ids from a discovery into download jobs. Ids the
// discovery did not return still get a job keyed by the bare id.
func (e *Engine) JobsForVideos(discoveryHandle string, ids []string) ([]model.DownloadJob, error) {
	snap, err := e.GetDiscoveryProgress(discoveryHandle)
	if err != nil {
		return nil, err
	}

	var channelName string
	if snap.Channel != nil {
		channelName = snap.Channel.DisplayName
	}
	byID := make(map[string]model.VideoRecord, len(snap.Result))
	for _, rec := range snap.Result {
		byID[rec.ID] = rec
	}

	jobs := make([]model.DownloadJob, 0, len(ids))
	for _, id := range ids {
		job := model.DownloadJob{VideoID: id, URL: common.WatchURL(id), Title: id, ChannelName: channelName}
		if rec, ok := byID[id]; ok {
			job.Title = rec.Title
			if rec.URL != "" {
				job.URL = rec.URL
			}
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
