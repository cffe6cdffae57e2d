package client

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/tomyanzhiyuan/ytmp3-scraper/config"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
)

// Providers bundles the collaborators the engine needs. Primary and Lookup
// are nil when no API key is configured.
type Providers struct {
	Primary  CatalogProvider
	Lookup   ChannelLookup
	Fallback CatalogProvider
	Fetcher  MediaFetcher
	Prober   ShortsProber
}

// ProviderFactory creates catalog providers from configuration
type ProviderFactory struct {
	cfg *config.Config
}

func NewProviderFactory(cfg *config.Config) *ProviderFactory {
	return &ProviderFactory{cfg: cfg}
}

// Build connects the primary provider when credentials allow and always
// prepares the yt-dlp fallback.
func (f *ProviderFactory) Build(ctx context.Context) (*Providers, error) {
	ytdlp := NewYtDlpClient(YtDlpOptions{
		BinaryPath:   f.cfg.YtDlpPath,
		CookiesPath:  f.cfg.CookiesPath,
		ListLimit:    f.cfg.FallbackLimit,
		AudioBitrate: f.cfg.AudioBitrate,
	})
	if err := ytdlp.CheckDependency(); err != nil {
		log.Warn().Err(err).Msg("yt-dlp not found; fallback listing and downloads will fail")
	}

	p := &Providers{
		Fallback: ytdlp,
		Fetcher:  ytdlp,
		Prober:   NewHTTPShortsProber(f.cfg.ProbeTimeout),
	}

	data, err := NewYouTubeDataClient(YouTubeDataOptions{
		APIKey:            f.cfg.YouTubeAPIKey,
		PageSize:          f.cfg.PageSize,
		DetailConcurrency: f.cfg.DetailConcurrency,
	})
	if errors.Is(err, model.ErrProviderUnavailable) {
		log.Warn().Msg("No YouTube API key configured, discovery will use the yt-dlp fallback only")
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	if err := data.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("YouTube API unavailable, discovery will use the yt-dlp fallback only")
		return p, nil
	}

	p.Primary = data
	p.Lookup = data
	return p, nil
}
