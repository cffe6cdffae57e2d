package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model/youtube"
)

// fakeDataAPI serves canned Data API responses keyed by resource path.
type fakeDataAPI struct {
	mu       sync.Mutex
	requests []*http.Request
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeDataAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(context.Background()))
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	f.handler(w, r)
}

func (f *fakeDataAPI) requestsFor(suffix string) []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*http.Request
	for _, r := range f.requests {
		if strings.HasSuffix(r.URL.Path, suffix) {
			out = append(out, r)
		}
	}
	return out
}

func newTestDataClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*YouTubeDataClient, *fakeDataAPI) {
	t.Helper()
	api := &fakeDataAPI{handler: handler}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := NewYouTubeDataClient(YouTubeDataOptions{
		APIKey:            "test-key",
		PageSize:          2,
		DetailConcurrency: 2,
		HTTPClient:        srv.Client(),
		Endpoint:          srv.URL + "/",
	})
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))
	return c, api
}

func TestNewYouTubeDataClient(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		wantErr bool
	}{
		{name: "valid API key", apiKey: "test-api-key-12345"},
		{name: "empty API key", apiKey: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewYouTubeDataClient(YouTubeDataOptions{APIKey: tt.apiKey})
			if (err != nil) != tt.wantErr {
				t.Errorf("NewYouTubeDataClient() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if !errors.Is(err, model.ErrProviderUnavailable) {
					t.Errorf("expected ErrProviderUnavailable, got %v", err)
				}
				return
			}
			if c.opts.PageSize != 50 {
				t.Errorf("expected default page size 50, got %d", c.opts.PageSize)
			}
			if c.Name() != "youtube-data-api" {
				t.Errorf("unexpected provider name %q", c.Name())
			}
		})
	}
}

func TestYouTubeDataClient_NotConnected(t *testing.T) {
	c, err := NewYouTubeDataClient(YouTubeDataOptions{APIKey: "k"})
	require.NoError(t, err)

	_, err = c.ChannelByHandle(context.Background(), "someone")
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)

	_, err = c.ListVideos(context.Background(), ListRequest{Channel: model.ChannelIdentity{ID: "UC1"}})
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)
}

func TestChannelByHandle(t *testing.T) {
	c, api := newTestDataClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("forHandle") {
		case "samsulek":
			fmt.Fprint(w, `{"items":[{"id":"UC_samsulek","snippet":{"title":"Sam Sulek","customUrl":"@samsulek"},"contentDetails":{"relatedPlaylists":{"uploads":"UU_samsulek"}}}]}`)
		case "sam_sulek":
			fmt.Fprint(w, `{"items":[{"id":"UC_sam_sulek","snippet":{"title":"Sam_Sulek"}}]}`)
		default:
			fmt.Fprint(w, `{"pageInfo":{"totalResults":0}}`)
		}
	})
	ctx := context.Background()

	first, err := c.ChannelByHandle(ctx, "samsulek")
	require.NoError(t, err)
	second, err := c.ChannelByHandle(ctx, "sam_sulek")
	require.NoError(t, err)

	assert.Equal(t, "UC_samsulek", first.ID)
	assert.Equal(t, "@samsulek", first.CustomURL)
	assert.Equal(t, "UU_samsulek", first.UploadsPlaylist)
	assert.Equal(t, "UC_sam_sulek", second.ID)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = c.ChannelByHandle(ctx, "nobody")
	assert.ErrorIs(t, err, model.ErrNotFound)

	// exact lookups only
	assert.Empty(t, api.requestsFor("/search"))
	assert.Len(t, api.requestsFor("/channels"), 3)
}

func TestChannelByUsernameAndSearch(t *testing.T) {
	c, _ := newTestDataClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/search"):
			assert.Equal(t, "channel", r.URL.Query().Get("type"))
			fmt.Fprint(w, `{"items":[{"id":{"kind":"youtube#channel","channelId":"UC_a"}},{"snippet":{"channelId":"UC_b"}}]}`)
		case r.URL.Query().Get("forUsername") == "legacy":
			fmt.Fprint(w, `{"items":[{"id":"UC_legacy","snippet":{"title":"Legacy"}}]}`)
		case len(r.URL.Query()["id"]) > 0:
			fmt.Fprint(w, `{"items":[{"id":"UC_a","snippet":{"title":"A","customUrl":"@a"}},{"id":"UC_b","snippet":{"title":"B","customUrl":"@b"}}]}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	})
	ctx := context.Background()

	ch, err := c.ChannelByUsername(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "UC_legacy", ch.ID)

	ids, err := c.SearchChannels(ctx, "a", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"UC_a", "UC_b"}, ids)

	summaries, err := c.ChannelsByID(ctx, ids...)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "@b", summaries[1].CustomURL)
}

func TestYouTubeDataClient_APIErrorsAreProviderUnavailable(t *testing.T) {
	c, _ := newTestDataClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"quotaExceeded","errors":[{"reason":"quotaExceeded"}]}}`)
	})

	_, err := c.ChannelByHandle(context.Background(), "anyone")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)
	assert.NotErrorIs(t, err, model.ErrNotFound)
}

func uploadsHandler(t *testing.T) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case strings.HasSuffix(r.URL.Path, "/channels"):
			fmt.Fprint(w, `{"items":[{"id":"UC1","snippet":{"title":"Channel One"},"contentDetails":{"relatedPlaylists":{"uploads":"UU1"}}}]}`)
		case strings.HasSuffix(r.URL.Path, "/playlistItems"):
			assert.Equal(t, "UU1", q.Get("playlistId"))
			switch q.Get("pageToken") {
			case "":
				fmt.Fprint(w, `{"nextPageToken":"p2","items":[
					{"snippet":{"title":"newest"},"contentDetails":{"videoId":"v1","videoPublishedAt":"2024-06-01T00:00:00Z"}},
					{"snippet":{"title":"straddles"},"contentDetails":{"videoId":"v2","videoPublishedAt":"2024-05-01T00:00:00Z"}}]}`)
			case "p2":
				fmt.Fprint(w, `{"nextPageToken":"p3","items":[
					{"snippet":{"title":"old"},"contentDetails":{"videoId":"v3","videoPublishedAt":"2024-01-02T00:00:00Z"}},
					{"snippet":{"title":"older"},"contentDetails":{"videoId":"v4","videoPublishedAt":"2024-01-01T00:00:00Z"}}]}`)
			default:
				fmt.Fprint(w, `{"items":[{"snippet":{"title":"ancient"},"contentDetails":{"videoId":"v5","videoPublishedAt":"2020-01-01T00:00:00Z"}}]}`)
			}
		case strings.HasSuffix(r.URL.Path, "/videos"):
			var items []string
			for _, id := range q["id"] {
				switch id {
				case "v1":
					items = append(items, `{"id":"v1","snippet":{"title":"newest","liveBroadcastContent":"none","thumbnails":{"default":{"url":"d1","width":120,"height":90},"high":{"url":"h1","width":480,"height":360}}},"contentDetails":{"duration":"PT5M30S"}}`)
				case "v2":
					items = append(items, `{"id":"v2","snippet":{"title":"straddles"},"contentDetails":{"duration":"PT0S"},"liveStreamingDetails":{"actualStartTime":"2024-05-01T00:00:00Z"}}`)
				case "v3":
					items = append(items, `{"id":"v3","snippet":{"title":"old"},"contentDetails":{"duration":"PT45S"}}`)
				}
			}
			fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
		default:
			http.NotFound(w, r)
		}
	}
}

func collect(t *testing.T, listing *Listing) []youtube.RawEntry {
	t.Helper()
	var out []youtube.RawEntry
	for e, err := range listing.Entries {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestListVideos_AllPages(t *testing.T) {
	c, api := newTestDataClient(t, uploadsHandler(t))

	listing, err := c.ListVideos(context.Background(), ListRequest{Channel: model.ChannelIdentity{ID: "UC1"}})
	require.NoError(t, err)
	assert.Equal(t, model.ChannelIdentity{ID: "UC1", DisplayName: "Channel One"}, listing.Channel)

	entries := collect(t, listing)
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"v1", "v2", "v3", "v4", "v5"}, ids)

	require.NotNil(t, entries[0].Duration)
	assert.Equal(t, 330, *entries[0].Duration)
	assert.Equal(t, youtube.Thumbnail{URL: "h1", Width: 480, Height: 360}, entries[0].Thumbnail)
	assert.False(t, entries[0].IsLive)
	assert.True(t, entries[1].IsLive)
	assert.Nil(t, entries[3].Duration, "video without details keeps a nil duration")

	assert.Len(t, api.requestsFor("/playlistItems"), 3)
	// page size 2 -> five ids fit one details batch
	videoCalls := api.requestsFor("/videos")
	require.Len(t, videoCalls, 1)
	assert.Len(t, videoCalls[0].URL.Query()["id"], 5)
}

func TestListVideos_PageCutoff(t *testing.T) {
	c, api := newTestDataClient(t, uploadsHandler(t))

	cutoff := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	listing, err := c.ListVideos(context.Background(), ListRequest{Channel: model.ChannelIdentity{ID: "UC1"}, Cutoff: cutoff})
	require.NoError(t, err)

	entries := collect(t, listing)
	require.Len(t, entries, 2, "straddling page kept whole, older page dropped")
	assert.Equal(t, "v2", entries[1].ID)
	assert.Len(t, api.requestsFor("/playlistItems"), 2, "no page fetched past the cutoff")
}

func TestListVideos_DetailBatchesPreserveOrder(t *testing.T) {
	const total = 120
	c, api := newTestDataClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case strings.HasSuffix(r.URL.Path, "/channels"):
			fmt.Fprint(w, `{"items":[{"id":"UC1","snippet":{"title":"Big"},"contentDetails":{"relatedPlaylists":{"uploads":"UU1"}}}]}`)
		case strings.HasSuffix(r.URL.Path, "/playlistItems"):
			var items []string
			for i := 0; i < total; i++ {
				items = append(items, fmt.Sprintf(`{"contentDetails":{"videoId":"v%03d"}}`, i))
			}
			fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
		case strings.HasSuffix(r.URL.Path, "/videos"):
			ids := slices.Clone(q["id"])
			slices.Reverse(ids)
			var items []string
			for _, id := range ids {
				items = append(items, fmt.Sprintf(`{"id":%q,"contentDetails":{"duration":"PT1M"}}`, id))
			}
			fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
		}
	})

	listing, err := c.ListVideos(context.Background(), ListRequest{Channel: model.ChannelIdentity{ID: "UC1"}})
	require.NoError(t, err)
	entries := collect(t, listing)
	require.Len(t, entries, total)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("v%03d", i), e.ID)
		require.NotNil(t, e.Duration)
	}

	batches := api.requestsFor("/videos")
	require.Len(t, batches, 3)
	for _, b := range batches {
		assert.LessOrEqual(t, len(b.URL.Query()["id"]), 50)
	}
}

func TestListVideos_ErrorsSurfaceBeforeIteration(t *testing.T) {
	c, _ := newTestDataClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/channels") {
			fmt.Fprint(w, `{"items":[{"id":"UC1","contentDetails":{"relatedPlaylists":{"uploads":"UU1"}}}]}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"code":500,"message":"backend error"}}`)
	})

	listing, err := c.ListVideos(context.Background(), ListRequest{Channel: model.ChannelIdentity{ID: "UC1"}})
	assert.Nil(t, listing)
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)
}

func TestListVideos_RequiresChannelID(t *testing.T) {
	c, _ := newTestDataClient(t, uploadsHandler(t))
	_, err := c.ListVideos(context.Background(), ListRequest{Reference: "https://www.youtube.com/@x"})
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)
}

func TestListVideos_ChannelNotFound(t *testing.T) {
	c, _ := newTestDataClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	_, err := c.ListVideos(context.Background(), ListRequest{Channel: model.ChannelIdentity{ID: "UCgone"}})
	assert.ErrorIs(t, err, model.ErrNotFound)
}
