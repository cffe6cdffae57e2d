package youtube

import (
	"context"
	"iter"

	"github.com/stretchr/testify/mock"

	"github.com/tomyanzhiyuan/ytmp3-scraper/client"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
	ytmodel "github.com/tomyanzhiyuan/ytmp3-scraper/model/youtube"
)

// MockChannelLookup is a mock implementation of client.ChannelLookup.
type MockChannelLookup struct {
	mock.Mock
}

func (m *MockChannelLookup) ChannelByHandle(ctx context.Context, handle string) (*ytmodel.ChannelSummary, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ytmodel.ChannelSummary), args.Error(1)
}

func (m *MockChannelLookup) ChannelByUsername(ctx context.Context, username string) (*ytmodel.ChannelSummary, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ytmodel.ChannelSummary), args.Error(1)
}

func (m *MockChannelLookup) SearchChannels(ctx context.Context, query string, maxResults int64) ([]string, error) {
	args := m.Called(ctx, query, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockChannelLookup) ChannelsByID(ctx context.Context, ids ...string) ([]ytmodel.ChannelSummary, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ytmodel.ChannelSummary), args.Error(1)
}

// MockShortsProber is a mock implementation of client.ShortsProber.
type MockShortsProber struct {
	mock.Mock
}

func (m *MockShortsProber) ProbeShort(ctx context.Context, videoID string) (bool, error) {
	args := m.Called(ctx, videoID)
	return args.Bool(0), args.Error(1)
}

// MockCatalogProvider is a mock implementation of client.CatalogProvider.
type MockCatalogProvider struct {
	mock.Mock
	name string
}

func (m *MockCatalogProvider) Name() string { return m.name }

func (m *MockCatalogProvider) ListVideos(ctx context.Context, req client.ListRequest) (*client.Listing, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Listing), args.Error(1)
}

func staticListing(channel model.ChannelIdentity, entries ...ytmodel.RawEntry) *client.Listing {
	return &client.Listing{
		Channel: channel,
		Entries: func(yield func(ytmodel.RawEntry, error) bool) {
			for _, e := range entries {
				if !yield(e, nil) {
					return
				}
			}
		},
	}
}

func failingListing(channel model.ChannelIdentity, after int, err error, entries ...ytmodel.RawEntry) *client.Listing {
	var seq iter.Seq2[ytmodel.RawEntry, error] = func(yield func(ytmodel.RawEntry, error) bool) {
		for i, e := range entries {
			if i == after {
				yield(ytmodel.RawEntry{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
	return &client.Listing{Channel: channel, Entries: seq}
}

func intPtr(v int) *int { return &v }
