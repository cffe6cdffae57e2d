// Package youtube contains the raw catalog shapes returned by YouTube providers
package youtube

import "time"

// Thumbnail is the largest thumbnail variant a provider reported for a video.
// Width and Height are zero when the provider did not report dimensions.
type Thumbnail struct {
	URL    string
	Width  int
	Height int
}

// Portrait reports whether the thumbnail is narrower than ratio (width/height).
// Missing dimensions are never portrait.
func (t Thumbnail) Portrait(ratio float64) bool {
	if t.Width <= 0 || t.Height <= 0 {
		return false
	}
	return float64(t.Width)/float64(t.Height) < ratio
}

// RawEntry is one unclassified catalog entry, in provider enumeration order.
type RawEntry struct {
	ID        string
	Title     string
	Duration  *int // nil when the provider omitted it
	Thumbnail Thumbnail
	IsLive    bool

	// Publish date sources, in order of preference.
	Timestamp   *int64
	UploadDate  string // YYYYMMDD
	PublishedAt time.Time
}

// ChannelSummary is what the channel lookup API returns for one channel.
type ChannelSummary struct {
	ID              string
	Title           string
	CustomURL       string
	UploadsPlaylist string
}

// PickThumbnail returns the widest thumbnail from a set of variants.
func PickThumbnail(variants []Thumbnail) Thumbnail {
	var best Thumbnail
	for _, v := range variants {
		if v.URL == "" {
			continue
		}
		if best.URL == "" || v.Width*v.Height > best.Width*best.Height {
			best = v
		}
	}
	return best
}
