package client

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model/youtube"
)

// ErrProbeUnavailable means the shorts check could not be attempted at all.
var ErrProbeUnavailable = errors.New("shorts probe unavailable")

// CatalogProvider enumerates the videos of one channel
type CatalogProvider interface {
	// Name identifies the provider in logs and errors
	Name() string

	// ListVideos starts a listing. Entries is finite and single use; calling
	// ListVideos again fetches from the start.
	ListVideos(ctx context.Context, req ListRequest) (*Listing, error)
}

// ListRequest describes the channel to enumerate. Channel is empty when the
// reference could not be resolved ahead of time.
type ListRequest struct {
	Reference string
	Channel   model.ChannelIdentity
	Cutoff    time.Time // zero means no page-level cutoff
}

// Listing is the result of a started enumeration.
type Listing struct {
	Channel model.ChannelIdentity
	Entries iter.Seq2[youtube.RawEntry, error]
}

// ChannelLookup performs exact-match channel lookups
type ChannelLookup interface {
	// ChannelByHandle looks up a channel by its @handle, without the leading @
	ChannelByHandle(ctx context.Context, handle string) (*youtube.ChannelSummary, error)

	// ChannelByUsername looks up a channel by legacy username
	ChannelByUsername(ctx context.Context, username string) (*youtube.ChannelSummary, error)

	// SearchChannels returns candidate channel ids for a free-text query
	SearchChannels(ctx context.Context, query string, maxResults int64) ([]string, error)

	// ChannelsByID fetches full summaries for the given ids
	ChannelsByID(ctx context.Context, ids ...string) ([]youtube.ChannelSummary, error)
}

// ShortsProber performs the authoritative short-form check for one video.
// It returns an error wrapping ErrProbeUnavailable when the check could not run.
type ShortsProber interface {
	ProbeShort(ctx context.Context, videoID string) (bool, error)
}

// FetchRequest describes one media download.
type FetchRequest struct {
	URL       string
	OutputDir string
	Basename  string // sanitized title, no extension
	Format    model.OutputFormat
}

// MediaFetcher downloads and converts one video, returning the written path.
type MediaFetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (string, error)
}
