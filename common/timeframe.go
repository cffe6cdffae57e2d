package common

import (
	"time"

	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
)

// Cutoff returns the earliest publish time a time frame keeps, or the zero
// time when the frame is unbounded.
func Cutoff(tf model.TimeFrame, now time.Time) time.Time {
	switch tf {
	case model.TimeFrameLastWeek:
		return now.AddDate(0, 0, -7)
	case model.TimeFrameLastMonth:
		return now.AddDate(0, 0, -30)
	case model.TimeFrameLastYear:
		return now.AddDate(0, 0, -365)
	default:
		return time.Time{}
	}
}

// ResolvePublishDate picks the first usable publish date: a unix timestamp,
// then a YYYYMMDD upload date, then an already-parsed time. ok is false when
// none of them parse.
func ResolvePublishDate(timestamp *int64, uploadDate string, publishedAt time.Time) (time.Time, bool) {
	if timestamp != nil && *timestamp > 0 {
		return time.Unix(*timestamp, 0).UTC(), true
	}
	if uploadDate != "" {
		if t, err := time.Parse("20060102", uploadDate); err == nil {
			return t, true
		}
	}
	if !publishedAt.IsZero() {
		return publishedAt, true
	}
	return time.Time{}, false
}
