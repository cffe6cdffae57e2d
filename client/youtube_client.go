package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/tomyanzhiyuan/ytmp3-scraper/common"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model/youtube"
)

const (
	maxIDsPerVideosCall = 50
	providerNameDataAPI = "youtube-data-api"
)

// YouTubeDataOptions configures the Data API client
type YouTubeDataOptions struct {
	APIKey            string
	PageSize          int64
	DetailConcurrency int

	// Overrides for tests
	HTTPClient *http.Client
	Endpoint   string
}

// YouTubeDataClient is the primary catalog provider and channel lookup, backed
// by the YouTube Data API v3
type YouTubeDataClient struct {
	service *ytapi.Service
	opts    YouTubeDataOptions
}

var (
	_ CatalogProvider = (*YouTubeDataClient)(nil)
	_ ChannelLookup   = (*YouTubeDataClient)(nil)
)

// NewYouTubeDataClient creates a new YouTube data client. Without an API key the
// primary provider is unavailable.
func NewYouTubeDataClient(opts YouTubeDataOptions) (*YouTubeDataClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("YouTube API key is required: %w", model.ErrProviderUnavailable)
	}
	if opts.PageSize <= 0 || opts.PageSize > 50 {
		opts.PageSize = 50
	}
	if opts.DetailConcurrency <= 0 {
		opts.DetailConcurrency = 1
	}

	return &YouTubeDataClient{opts: opts}, nil
}

// Connect establishes a connection to the YouTube API
func (c *YouTubeDataClient) Connect(ctx context.Context) error {
	log.Info().Msg("Connecting to YouTube API")

	httpClient := c.opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	options := []option.ClientOption{option.WithAPIKey(c.opts.APIKey), option.WithHTTPClient(httpClient)}
	if c.opts.Endpoint != "" {
		options = append(options, option.WithEndpoint(c.opts.Endpoint))
	}

	service, err := ytapi.NewService(ctx, options...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create YouTube service")
		return fmt.Errorf("failed to create YouTube service: %w", err)
	}

	c.service = service
	log.Info().Msg("Connected to YouTube API successfully")
	return nil
}

func (c *YouTubeDataClient) Name() string { return providerNameDataAPI }

func (c *YouTubeDataClient) ChannelByHandle(ctx context.Context, handle string) (*youtube.ChannelSummary, error) {
	if c.service == nil {
		return nil, fmt.Errorf("YouTube client not connected: %w", model.ErrProviderUnavailable)
	}
	resp, err := c.service.Channels.List([]string{"snippet", "contentDetails"}).
		ForHandle(handle).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apiError("channels.list forHandle", err)
	}
	return firstChannel(resp, "@"+handle)
}

func (c *YouTubeDataClient) ChannelByUsername(ctx context.Context, username string) (*youtube.ChannelSummary, error) {
	if c.service == nil {
		return nil, fmt.Errorf("YouTube client not connected: %w", model.ErrProviderUnavailable)
	}
	resp, err := c.service.Channels.List([]string{"snippet", "contentDetails"}).
		ForUsername(username).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apiError("channels.list forUsername", err)
	}
	return firstChannel(resp, username)
}

func (c *YouTubeDataClient) SearchChannels(ctx context.Context, query string, maxResults int64) ([]string, error) {
	if c.service == nil {
		return nil, fmt.Errorf("YouTube client not connected: %w", model.ErrProviderUnavailable)
	}
	resp, err := c.service.Search.List([]string{"snippet"}).
		Q(query).
		Type("channel").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apiError("search.list", err)
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		switch {
		case item.Id != nil && item.Id.ChannelId != "":
			ids = append(ids, item.Id.ChannelId)
		case item.Snippet != nil && item.Snippet.ChannelId != "":
			ids = append(ids, item.Snippet.ChannelId)
		}
	}
	return ids, nil
}

func (c *YouTubeDataClient) ChannelsByID(ctx context.Context, ids ...string) ([]youtube.ChannelSummary, error) {
	if c.service == nil {
		return nil, fmt.Errorf("YouTube client not connected: %w", model.ErrProviderUnavailable)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := c.service.Channels.List([]string{"snippet", "contentDetails"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apiError("channels.list id", err)
	}

	out := make([]youtube.ChannelSummary, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, channelSummary(item))
	}
	return out, nil
}

// ListVideos pages through the channel's uploads playlist and fetches details
// for every entry. The whole listing is fetched before the sequence is returned,
// so any API failure is reported here rather than mid-iteration.
func (c *YouTubeDataClient) ListVideos(ctx context.Context, req ListRequest) (*Listing, error) {
	if c.service == nil {
		return nil, fmt.Errorf("YouTube client not connected: %w", model.ErrProviderUnavailable)
	}
	if req.Channel.ID == "" {
		return nil, fmt.Errorf("channel id required for %s: %w", providerNameDataAPI, model.ErrProviderUnavailable)
	}

	log.Info().
		Str("channel_id", req.Channel.ID).
		Time("cutoff", req.Cutoff).
		Msg("Fetching videos from YouTube channel")

	summaries, err := c.ChannelsByID(ctx, req.Channel.ID)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("channel %s: %w", req.Channel.ID, model.ErrNotFound)
	}
	channel := summaries[0]
	if channel.UploadsPlaylist == "" {
		return nil, fmt.Errorf("channel %s has no uploads playlist: %w", channel.ID, model.ErrNotFound)
	}

	entries, err := c.listUploads(ctx, channel.UploadsPlaylist, req.Cutoff)
	if err != nil {
		return nil, err
	}
	if err := c.fillDetails(ctx, entries); err != nil {
		return nil, err
	}

	log.Info().
		Str("channel_id", channel.ID).
		Int("video_count", len(entries)).
		Msg("Retrieved videos from YouTube channel")

	identity := model.ChannelIdentity{ID: channel.ID, DisplayName: channel.Title}
	if identity.DisplayName == "" {
		identity.DisplayName = req.Channel.DisplayName
	}
	return &Listing{
		Channel: identity,
		Entries: func(yield func(youtube.RawEntry, error) bool) {
			for _, e := range entries {
				if !yield(e, nil) {
					return
				}
			}
		},
	}, nil
}

// listUploads collects playlist entries page by page. Uploads are
// reverse-chronological, so paging stops at the first page whose entries all
// predate the cutoff. That page is dropped; a page straddling the cutoff is kept whole.
func (c *YouTubeDataClient) listUploads(ctx context.Context, playlistID string, cutoff time.Time) ([]youtube.RawEntry, error) {
	var entries []youtube.RawEntry
	var pageToken string
	pages := 0

	for {
		call := c.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(c.opts.PageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			log.Error().Err(err).Str("playlist_id", playlistID).Msg("Failed to get videos from playlist")
			return nil, apiError("playlistItems.list", err)
		}
		pages++

		page := make([]youtube.RawEntry, 0, len(resp.Items))
		allOlder := !cutoff.IsZero() && len(resp.Items) > 0
		for _, item := range resp.Items {
			entry := playlistEntry(item)
			if entry.ID == "" {
				continue
			}
			if entry.PublishedAt.IsZero() || !entry.PublishedAt.Before(cutoff) {
				allOlder = false
			}
			page = append(page, entry)
		}

		if allOlder {
			log.Debug().
				Str("playlist_id", playlistID).
				Int("page", pages).
				Msg("Page entirely older than cutoff, stopping pagination")
			break
		}
		entries = append(entries, page...)

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return entries, nil
}

// fillDetails fetches duration, thumbnails and live markers in batches of up to
// 50 ids. Batches run concurrently; each writes only its own slice range.
func (c *YouTubeDataClient) fillDetails(ctx context.Context, entries []youtube.RawEntry) error {
	var g errgroup.Group
	g.SetLimit(c.opts.DetailConcurrency)

	for start := 0; start < len(entries); start += maxIDsPerVideosCall {
		batch := entries[start:min(start+maxIDsPerVideosCall, len(entries))]
		g.Go(func() error {
			ids := make([]string, len(batch))
			for i, e := range batch {
				ids[i] = e.ID
			}

			resp, err := c.service.Videos.List([]string{"snippet", "contentDetails", "liveStreamingDetails"}).
				Id(ids...).
				Context(ctx).
				Do()
			if err != nil {
				log.Error().Err(err).Int("batch_size", len(ids)).Msg("Failed to get video details")
				return apiError("videos.list", err)
			}

			details := make(map[string]*ytapi.Video, len(resp.Items))
			for _, v := range resp.Items {
				details[v.Id] = v
			}
			for i := range batch {
				if v, ok := details[batch[i].ID]; ok {
					applyVideoDetails(&batch[i], v)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func playlistEntry(item *ytapi.PlaylistItem) youtube.RawEntry {
	var entry youtube.RawEntry
	if item.ContentDetails != nil {
		entry.ID = item.ContentDetails.VideoId
		entry.PublishedAt = parseRFC3339(item.ContentDetails.VideoPublishedAt)
	}
	if item.Snippet != nil {
		entry.Title = item.Snippet.Title
		if entry.ID == "" && item.Snippet.ResourceId != nil {
			entry.ID = item.Snippet.ResourceId.VideoId
		}
		if entry.PublishedAt.IsZero() {
			entry.PublishedAt = parseRFC3339(item.Snippet.PublishedAt)
		}
		entry.Thumbnail = pickThumbnail(item.Snippet.Thumbnails)
	}
	return entry
}

func applyVideoDetails(entry *youtube.RawEntry, v *ytapi.Video) {
	if v.Snippet != nil {
		if v.Snippet.Title != "" {
			entry.Title = v.Snippet.Title
		}
		if t := parseRFC3339(v.Snippet.PublishedAt); !t.IsZero() {
			entry.PublishedAt = t
		}
		if thumb := pickThumbnail(v.Snippet.Thumbnails); thumb.URL != "" {
			entry.Thumbnail = thumb
		}
		if v.Snippet.LiveBroadcastContent == "live" || v.Snippet.LiveBroadcastContent == "upcoming" {
			entry.IsLive = true
		}
	}
	if v.LiveStreamingDetails != nil {
		entry.IsLive = true
	}
	if v.ContentDetails != nil && v.ContentDetails.Duration != "" {
		seconds, err := common.ParseISODuration(v.ContentDetails.Duration)
		if err != nil {
			log.Warn().Err(err).Str("video_id", v.Id).Msg("Unparseable video duration")
			return
		}
		entry.Duration = &seconds
	}
}

func pickThumbnail(details *ytapi.ThumbnailDetails) youtube.Thumbnail {
	if details == nil {
		return youtube.Thumbnail{}
	}
	var variants []youtube.Thumbnail
	for _, t := range []*ytapi.Thumbnail{details.Default, details.Medium, details.High, details.Standard, details.Maxres} {
		if t != nil {
			variants = append(variants, youtube.Thumbnail{URL: t.Url, Width: int(t.Width), Height: int(t.Height)})
		}
	}
	return youtube.PickThumbnail(variants)
}

func channelSummary(item *ytapi.Channel) youtube.ChannelSummary {
	s := youtube.ChannelSummary{ID: item.Id}
	if item.Snippet != nil {
		s.Title = item.Snippet.Title
		s.CustomURL = item.Snippet.CustomUrl
	}
	if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
		s.UploadsPlaylist = item.ContentDetails.RelatedPlaylists.Uploads
	}
	return s
}

func firstChannel(resp *ytapi.ChannelListResponse, query string) (*youtube.ChannelSummary, error) {
	items := slices.DeleteFunc(slices.Clone(resp.Items), func(ch *ytapi.Channel) bool { return ch == nil || ch.Id == "" })
	if len(items) == 0 {
		log.Debug().Str("query", query).Msg("Channel not found on YouTube")
		return nil, fmt.Errorf("channel %s: %w", query, model.ErrNotFound)
	}
	s := channelSummary(items[0])
	return &s, nil
}

// apiError maps Data API failures onto the provider taxonomy. 404s mean the
// resource is gone; everything else (quota, auth, transport) is a provider outage.
func apiError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		log.Warn().Int("status", gerr.Code).Str("op", op).Str("message", gerr.Message).Msg("YouTube API error")
		if gerr.Code == http.StatusNotFound {
			return fmt.Errorf("%s: %w: %w", op, model.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrProviderUnavailable, err)
}

func parseRFC3339(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
