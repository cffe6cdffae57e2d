package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tomyanzhiyuan/ytmp3-scraper/client"
	"github.com/tomyanzhiyuan/ytmp3-scraper/common"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
	ytmodel "github.com/tomyanzhiyuan/ytmp3-scraper/model/youtube"
)

// Pipeline resolves a channel, lists it through the primary provider (or the
// fallback) and filters the entries into downloadable video records
type Pipeline struct {
	resolver   *Resolver
	primary    client.CatalogProvider
	fallback   client.CatalogProvider
	classifier *ShortClassifier
	now        func() time.Time
}

// NewPipeline wires a discovery pipeline. primary may be nil when no API
// credential is configured; fallback is required.
func NewPipeline(resolver *Resolver, primary, fallback client.CatalogProvider, classifier *ShortClassifier) *Pipeline {
	return &Pipeline{
		resolver:   resolver,
		primary:    primary,
		fallback:   fallback,
		classifier: classifier,
		now:        time.Now,
	}
}

// WithClock overrides the time source used for time-frame cutoffs.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// filterStats is the end-of-run breakdown
type filterStats struct {
	malformed  int
	duplicates int
	tooOld     int
	live       int
	shorts     int
	long       int
	typeFilter int
}

// Discover returns the eligible videos of the referenced channel in provider
// order. onProgress is called once per source entry, after the entry is handled.
func (p *Pipeline) Discover(ctx context.Context, reference string, criteria model.FilterCriteria, onProgress func(model.DiscoveryProgress)) (model.ChannelIdentity, []model.VideoRecord, error) {
	criteria = criteria.Normalize()
	cutoff := common.Cutoff(criteria.TimeFrame, p.now())

	log.Info().
		Str("reference", reference).
		Str("video_type", string(criteria.VideoType)).
		Str("time_frame", string(criteria.TimeFrame)).
		Msg("Starting channel discovery")

	listing, provider, err := p.startListing(ctx, reference, cutoff)
	if err != nil {
		return model.ChannelIdentity{}, nil, err
	}
	identity := listing.Channel

	var (
		progress model.DiscoveryProgress
		records  []model.VideoRecord
		stats    filterStats
		seen     = make(map[string]bool)
		verdicts = make(map[string]bool)
	)
	emit := func() {
		if onProgress != nil {
			onProgress(progress)
		}
	}

	for entry, iterErr := range listing.Entries {
		if iterErr != nil {
			return identity, nil, &model.ProviderError{
				Provider: provider,
				Channel:  identity.ID,
				Err:      fmt.Errorf("%w: %w", model.ErrProviderFatal, iterErr),
			}
		}
		if err := ctx.Err(); err != nil {
			log.Info().Str("channel_id", identity.ID).Int("processed", progress.Processed).Msg("Discovery cancelled")
			return identity, nil, err
		}

		progress.TotalSeen++
		progress.CurrentTitle = entry.Title

		record, ok := p.evaluate(ctx, entry, criteria, cutoff, seen, verdicts, &stats)
		if entry.ID == "" || entry.Duration == nil {
			progress.Malformed++
		}
		if ok {
			records = append(records, record)
			progress.EligibleSoFar++
		}
		progress.Processed++
		emit()
	}

	log.Info().
		Str("channel_id", identity.ID).
		Str("channel", identity.DisplayName).
		Int("total", progress.TotalSeen).
		Int("eligible", len(records)).
		Int("malformed", stats.malformed).
		Int("duplicates", stats.duplicates).
		Int("too_old", stats.tooOld).
		Int("live", stats.live).
		Int("shorts", stats.shorts).
		Int("long", stats.long).
		Int("type_filtered", stats.typeFilter).
		Msg("Discovery complete")

	return identity, records, nil
}

// evaluate applies the per-entry filters in order. It returns false for any
// entry that is dropped.
func (p *Pipeline) evaluate(ctx context.Context, entry ytmodel.RawEntry, criteria model.FilterCriteria, cutoff time.Time,
	seen, verdicts map[string]bool, stats *filterStats) (model.VideoRecord, bool) {

	if entry.ID == "" || entry.Duration == nil {
		stats.malformed++
		log.Debug().Err(model.ErrMalformedEntry).Str("video_id", entry.ID).Str("title", entry.Title).Msg("Skipping entry")
		return model.VideoRecord{}, false
	}
	if seen[entry.ID] {
		stats.duplicates++
		return model.VideoRecord{}, false
	}
	seen[entry.ID] = true

	published, hasDate := common.ResolvePublishDate(entry.Timestamp, entry.UploadDate, entry.PublishedAt)
	if !cutoff.IsZero() && hasDate && published.Before(cutoff) {
		stats.tooOld++
		return model.VideoRecord{}, false
	}

	if entry.IsLive {
		stats.live++
		return model.VideoRecord{}, false
	}

	duration := max(*entry.Duration, 0)
	isShort, known := verdicts[entry.ID]
	if !known {
		isShort = p.classifier.Classify(ctx, entry.ID, entry.Title, duration, entry.Thumbnail)
		verdicts[entry.ID] = isShort
	}
	if isShort {
		stats.shorts++
	} else {
		stats.long++
	}

	if !criteria.Accepts(isShort) {
		stats.typeFilter++
		return model.VideoRecord{}, false
	}

	record := model.VideoRecord{
		ID:              entry.ID,
		Title:           entry.Title,
		DurationSeconds: duration,
		ThumbnailURL:    entry.Thumbnail.URL,
		URL:             common.WatchURL(entry.ID),
		IsShort:         isShort,
	}
	if hasDate {
		record.PublishedAt = &published
	}
	return record, true
}

// startListing picks the provider. Identity errors abort; any primary failure
// degrades to the fallback, whose own failure is fatal.
func (p *Pipeline) startListing(ctx context.Context, reference string, cutoff time.Time) (*client.Listing, string, error) {
	ref, err := ParseReference(reference)
	if err != nil {
		return nil, "", err
	}

	req := client.ListRequest{Reference: ref.URL(), Cutoff: cutoff}
	if ref.Kind == KindChannelID {
		req.Channel = model.ChannelIdentity{ID: ref.Value}
	}

	usePrimary := p.primary != nil
	if usePrimary && p.resolver != nil && ref.Kind != KindChannelID {
		identity, err := p.resolver.Resolve(ctx, reference)
		switch {
		case err == nil:
			req.Channel = identity
		case errors.Is(err, model.ErrProviderUnavailable):
			log.Warn().Err(err).Str("reference", reference).Msg("Channel lookup unavailable, using fallback provider (degraded mode)")
			usePrimary = false
		default:
			return nil, "", err
		}
	}

	if usePrimary {
		listing, err := p.primary.ListVideos(ctx, req)
		if err == nil {
			return listing, p.primary.Name(), nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		log.Warn().
			Err(err).
			Str("provider", p.primary.Name()).
			Str("reference", reference).
			Msg("Primary catalog provider failed, using fallback provider (degraded mode)")
	} else if p.primary == nil {
		log.Warn().Str("reference", reference).Msg("No primary catalog provider, using fallback provider (degraded mode)")
	}

	if p.fallback == nil {
		return nil, "", &model.ProviderError{Provider: "none", Channel: reference, Err: model.ErrProviderFatal}
	}
	listing, err := p.fallback.ListVideos(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", &model.ProviderError{
			Provider: p.fallback.Name(),
			Channel:  reference,
			Err:      fmt.Errorf("%w: %w", model.ErrProviderFatal, err),
		}
	}
	if listing.Channel.ID == "" {
		listing.Channel.ID = req.Channel.ID
	}
	if listing.Channel.DisplayName == "" {
		listing.Channel.DisplayName = req.Channel.DisplayName
	}
	return listing, p.fallback.Name(), nil
}
