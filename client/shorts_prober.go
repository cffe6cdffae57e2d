package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tomyanzhiyuan/ytmp3-scraper/common"
)

// HTTPShortsProber checks the /shorts/<id> URL variant. YouTube serves it with
// 200 for short-form videos and redirects to /watch for everything else.
type HTTPShortsProber struct {
	client  *http.Client
	baseURL string
}

var _ ShortsProber = (*HTTPShortsProber)(nil)

func NewHTTPShortsProber(timeout time.Duration) *HTTPShortsProber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPShortsProber{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// WithBaseURL points the prober at another host. Video ids are appended to it.
func (p *HTTPShortsProber) WithBaseURL(baseURL string) *HTTPShortsProber {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	p.baseURL = baseURL
	return p
}

// ProbeShort returns true only for a 200 on the shorts URL. Any other status
// is a definitive "not short"; transport failures are ErrProbeUnavailable.
func (p *HTTPShortsProber) ProbeShort(ctx context.Context, videoID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.shortsURL(videoID), nil)
	if err != nil {
		return false, fmt.Errorf("build shorts probe request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ytmp3-scraper)")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Debug().Err(err).Str("video_id", videoID).Msg("Shorts probe transport failure")
		return false, fmt.Errorf("%w: %w", ErrProbeUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	log.Trace().Str("video_id", videoID).Int("status", resp.StatusCode).Msg("Shorts probe response")
	return resp.StatusCode == http.StatusOK, nil
}

func (p *HTTPShortsProber) shortsURL(videoID string) string {
	if p.baseURL == "" {
		return common.ShortsURL(videoID)
	}
	return p.baseURL + videoID
}
