// Package download runs batches of media downloads one at a time, skipping
// files that already exist and backing off when upstream throttles.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tomyanzhiyuan/ytmp3-scraper/client"
	"github.com/tomyanzhiyuan/ytmp3-scraper/common"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
)

// Options configures an Orchestrator.
type Options struct {
	Root            string
	Format          model.OutputFormat
	MaxAttempts     int
	BackoffSchedule []time.Duration
	JitterMin       time.Duration
	JitterMax       time.Duration
	FuzzyThreshold  float64
}

// DefaultBackoffSchedule is the minimum wait after each rate-limited attempt.
// Attempts beyond its length reuse the last entry.
var DefaultBackoffSchedule = []time.Duration{5 * time.Minute, 15 * time.Minute, 30 * time.Minute, 60 * time.Minute}

// Orchestrator runs a batch sequentially. It is not safe for concurrent Run calls.
type Orchestrator struct {
	fetcher client.MediaFetcher
	dedup   *DedupChecker
	opts    Options
	sleeper Sleeper
	jitter  JitterSource
}

func NewOrchestrator(fetcher client.MediaFetcher, opts Options) *Orchestrator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 4
	}
	if len(opts.BackoffSchedule) == 0 {
		opts.BackoffSchedule = DefaultBackoffSchedule
	}
	if opts.Format == "" {
		opts.Format = model.FormatAudio
	}
	return &Orchestrator{
		fetcher: fetcher,
		dedup:   NewDedupChecker(opts.Root, opts.Format, opts.FuzzyThreshold),
		opts:    opts,
		sleeper: timerSleeper{},
		jitter:  RandomJitter,
	}
}

// WithSleeper replaces the sleeper used for jitter and rate-limit waits.
func (o *Orchestrator) WithSleeper(s Sleeper) *Orchestrator {
	o.sleeper = s
	return o
}

// WithJitter replaces the source of inter-download delays.
func (o *Orchestrator) WithJitter(j JitterSource) *Orchestrator {
	o.jitter = j
	return o
}

// Run processes jobs in order and returns one outcome per finished job. It
// stops early when ctx is cancelled or the output directory disappears; the
// outcomes gathered so far are returned with the error.
func (o *Orchestrator) Run(ctx context.Context, jobs []model.DownloadJob, onProgress func(model.DownloadEvent)) ([]model.DownloadOutcome, error) {
	emit := func(ev model.DownloadEvent) {
		if onProgress != nil {
			onProgress(ev)
		}
	}

	if err := os.MkdirAll(o.opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", o.opts.Root, model.ErrOutputDirLost, err)
	}

	total := len(jobs)
	outcomes := make([]model.DownloadOutcome, 0, total)
	var pendingDelay time.Duration

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		if info, err := os.Stat(o.opts.Root); err != nil || !info.IsDir() {
			log.Error().Str("root", o.opts.Root).Msg("Output directory disappeared, aborting batch")
			return outcomes, fmt.Errorf("%s: %w", o.opts.Root, model.ErrOutputDirLost)
		}

		st := model.NewJobState(job)
		base := model.DownloadEvent{Current: i + 1, Total: total, Title: job.Title}

		ev := base
		ev.Status = st.Status
		emit(ev)

		if exists, path := o.dedup.Exists(job.Title, job.ChannelName); exists {
			if err := st.Transition(model.StatusSkipped); err != nil {
				return outcomes, err
			}
			outcome := model.Skipped(job, path)
			outcomes = append(outcomes, outcome)
			log.Info().Str("title", job.Title).Str("path", path).Msg("Skipping, already downloaded")

			ev := base
			ev.Status = st.Status
			ev.Outcome = &outcome
			emit(ev)
			continue
		}

		if pendingDelay > 0 {
			log.Debug().Dur("delay", pendingDelay).Msg("Pausing before next download")
			if err := o.sleeper.Sleep(ctx, pendingDelay); err != nil {
				return outcomes, err
			}
			pendingDelay = 0
		}

		outcome, err := o.runJob(ctx, st, base, emit)
		outcomes = append(outcomes, outcome)

		ev = base
		ev.Status = st.Status
		ev.Attempt = outcome.Attempts
		ev.Outcome = &outcome
		emit(ev)

		if err != nil {
			return outcomes, err
		}
		pendingDelay = o.jitter(o.opts.JitterMin, o.opts.JitterMax)
	}

	return outcomes, nil
}

// runJob drives one job from Pending to a terminal state. The returned error
// is non-nil only when ctx ended mid-job.
func (o *Orchestrator) runJob(ctx context.Context, st *model.JobState, base model.DownloadEvent, emit func(model.DownloadEvent)) (model.DownloadOutcome, error) {
	job := st.Job
	retry := model.RetryState{MaxAttempts: o.opts.MaxAttempts}

	basename := common.SanitizeFilename(job.Title)
	if basename == "" {
		basename = job.VideoID
	}
	req := client.FetchRequest{
		URL:       job.URL,
		OutputDir: o.dedup.Dir(job.ChannelName),
		Basename:  basename,
		Format:    o.opts.Format,
	}

	fail := func(reason string) model.DownloadOutcome {
		// Transition errors here would mean a bug in the state table.
		if err := st.Transition(model.StatusFailed); err != nil {
			log.Error().Err(err).Msg("Job state")
		}
		return model.Failed(job, reason, retry.Attempt)
	}

	for {
		retry.Attempt++
		if err := st.Transition(model.StatusDownloading); err != nil {
			return fail(err.Error()), nil
		}
		ev := base
		ev.Status = st.Status
		ev.Attempt = retry.Attempt
		emit(ev)

		path, err := o.fetcher.Fetch(ctx, req)
		if err == nil {
			if err := st.Transition(model.StatusSucceeded); err != nil {
				return fail(err.Error()), nil
			}
			log.Info().Str("title", job.Title).Str("path", path).Int("attempt", retry.Attempt).Msg("Downloaded")
			return model.Succeeded(job, path, retry.Attempt), nil
		}
		if ctx.Err() != nil {
			return fail("cancelled"), ctx.Err()
		}

		signal := ClassifyRateLimit(err.Error())
		if !signal.IsLimited {
			log.Warn().Err(err).Str("title", job.Title).Msg("Download failed")
			return fail(err.Error()), nil
		}
		if retry.Exhausted() {
			log.Warn().Err(err).Str("title", job.Title).Int("attempts", retry.Attempt).Msg("Giving up after repeated rate limiting")
			return fail(fmt.Errorf("%w after %d attempts: %w", model.ErrRateLimited, retry.Attempt, err).Error()), nil
		}

		wait := o.backoff(retry.Attempt, signal.SuggestedWaitSeconds)
		retry.LastWaitSeconds = int(wait / time.Second)
		if err := st.Transition(model.StatusRateLimitedWait); err != nil {
			return fail(err.Error()), nil
		}
		log.Warn().Str("title", job.Title).Int("attempt", retry.Attempt).Dur("wait", wait).Msg("Rate limited, waiting before retry")

		if err := o.wait(ctx, wait, base, emit); err != nil {
			return fail("cancelled while waiting out rate limit"), err
		}
	}
}

// backoff is the larger of the suggested wait and the schedule entry for attempt.
func (o *Orchestrator) backoff(attempt, suggestedSeconds int) time.Duration {
	idx := attempt - 1
	if idx >= len(o.opts.BackoffSchedule) {
		idx = len(o.opts.BackoffSchedule) - 1
	}
	if idx < 0 {
		idx = 0
	}
	wait := o.opts.BackoffSchedule[idx]
	if suggested := time.Duration(suggestedSeconds) * time.Second; suggested > wait {
		wait = suggested
	}
	return wait
}

// wait sleeps in one-minute steps, emitting the remaining whole minutes before each.
func (o *Orchestrator) wait(ctx context.Context, d time.Duration, base model.DownloadEvent, emit func(model.DownloadEvent)) error {
	for remaining := d; remaining > 0; {
		ev := base
		ev.Status = model.StatusRateLimitedWait
		ev.WaitRemaining = int((remaining + time.Minute - 1) / time.Minute)
		emit(ev)

		step := min(remaining, time.Minute)
		if err := o.sleeper.Sleep(ctx, step); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("rate limit wait: %w", err)
		}
		remaining -= step
	}
	return nil
}
