package youtube

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tomyanzhiyuan/ytmp3-scraper/client"
	ytmodel "github.com/tomyanzhiyuan/ytmp3-scraper/model/youtube"
)

// DefaultTitleMarkers flag short-form videos when the probe cannot run.
var DefaultTitleMarkers = []string{"#shorts", "#short"}

// ClassifierOptions holds the short-form policy
type ClassifierOptions struct {
	MaxShortDuration time.Duration
	PortraitRatio    float64
	TitleMarkers     []string
}

// ShortClassifier decides whether a video is short-form
type ShortClassifier struct {
	prober client.ShortsProber
	opts   ClassifierOptions
}

// NewShortClassifier creates a classifier. prober may be nil, which leaves
// only the heuristic.
func NewShortClassifier(prober client.ShortsProber, opts ClassifierOptions) *ShortClassifier {
	if opts.MaxShortDuration <= 0 {
		opts.MaxShortDuration = 180 * time.Second
	}
	if opts.PortraitRatio <= 0 {
		opts.PortraitRatio = 0.7
	}
	if len(opts.TitleMarkers) == 0 {
		opts.TitleMarkers = DefaultTitleMarkers
	}
	return &ShortClassifier{prober: prober, opts: opts}
}

// Classify applies, in order: the duration ceiling, the authoritative probe,
// and the title/thumbnail heuristic when the probe cannot run.
func (c *ShortClassifier) Classify(ctx context.Context, id, title string, durationSeconds int, thumb ytmodel.Thumbnail) bool {
	if time.Duration(durationSeconds)*time.Second > c.opts.MaxShortDuration {
		return false
	}

	if c.prober != nil {
		isShort, err := c.prober.ProbeShort(ctx, id)
		if err == nil {
			return isShort
		}
		if !errors.Is(err, client.ErrProbeUnavailable) {
			log.Debug().Err(err).Str("video_id", id).Msg("Shorts probe failed, treating as not short")
			return false
		}
		log.Debug().Err(err).Str("video_id", id).Msg("Shorts probe unavailable, using heuristic")
	}

	return c.Heuristic(title, thumb)
}

// Heuristic reports a short when the title carries a marker or the thumbnail
// is portrait. Missing thumbnail dimensions never count as portrait.
func (c *ShortClassifier) Heuristic(title string, thumb ytmodel.Thumbnail) bool {
	lower := strings.ToLower(title)
	for _, marker := range c.opts.TitleMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return thumb.Portrait(c.opts.PortraitRatio)
}
