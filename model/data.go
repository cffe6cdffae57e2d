package model

import "time"

// ChannelIdentity is a resolved channel. It is fixed for the lifetime of one discovery run.
type ChannelIdentity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// VideoRecord is a classified catalog entry.
type VideoRecord struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	DurationSeconds int        `json:"duration"`
	ThumbnailURL    string     `json:"thumbnail"`
	URL             string     `json:"url"`
	IsShort         bool       `json:"is_short"`
	IsLive          bool       `json:"is_live"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// VideoType selects which classified records a discovery keeps.
type VideoType string

const (
	VideoTypeAll        VideoType = "all"
	VideoTypeShortsOnly VideoType = "shorts"
	VideoTypeLongOnly   VideoType = "videos"
)

// TimeFrame bounds a discovery by publish date.
type TimeFrame string

const (
	TimeFrameAll       TimeFrame = "all"
	TimeFrameLastWeek  TimeFrame = "week"
	TimeFrameLastMonth TimeFrame = "month"
	TimeFrameLastYear  TimeFrame = "year"
)

// FilterCriteria is the caller's selection for one discovery run.
type FilterCriteria struct {
	VideoType VideoType `json:"video_type"`
	TimeFrame TimeFrame `json:"time_frame"`
}

// Normalize maps empty or unknown values to All.
func (c FilterCriteria) Normalize() FilterCriteria {
	switch c.VideoType {
	case VideoTypeShortsOnly, VideoTypeLongOnly:
	default:
		c.VideoType = VideoTypeAll
	}
	switch c.TimeFrame {
	case TimeFrameLastWeek, TimeFrameLastMonth, TimeFrameLastYear:
	default:
		c.TimeFrame = TimeFrameAll
	}
	return c
}

// Accepts reports whether a record with the given classification passes the type filter.
func (c FilterCriteria) Accepts(isShort bool) bool {
	switch c.VideoType {
	case VideoTypeShortsOnly:
		return isShort
	case VideoTypeLongOnly:
		return !isShort
	default:
		return true
	}
}

// DiscoveryProgress is emitted once per source entry, in source order.
type DiscoveryProgress struct {
	TotalSeen     int    `json:"total_seen"`
	Processed     int    `json:"processed"`
	EligibleSoFar int    `json:"eligible_so_far"`
	Malformed     int    `json:"malformed"`
	CurrentTitle  string `json:"current_title"`
}

// OutputFormat selects the media fetcher's output.
type OutputFormat string

const (
	FormatAudio OutputFormat = "audio"
	FormatVideo OutputFormat = "video"
)

// Extension returns the file extension written for the format.
func (f OutputFormat) Extension() string {
	if f == FormatVideo {
		return "mp4"
	}
	return "mp3"
}

// DownloadJob is one entry of a download batch.
type DownloadJob struct {
	VideoID     string `json:"video_id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	ChannelName string `json:"channel_name,omitempty"`
}

// OutcomeKind tags a terminal job result.
type OutcomeKind string

const (
	OutcomeSkipped   OutcomeKind = "skipped"
	OutcomeSucceeded OutcomeKind = "succeeded"
	OutcomeFailed    OutcomeKind = "failed"
)

// DownloadOutcome is the terminal result of one job. Path is set for Skipped and
// Succeeded, Reason for Failed.
type DownloadOutcome struct {
	Kind     OutcomeKind `json:"kind"`
	VideoID  string      `json:"video_id"`
	Title    string      `json:"title"`
	Path     string      `json:"path,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	Attempts int         `json:"attempts"`
}

func Skipped(job DownloadJob, existingPath string) DownloadOutcome {
	return DownloadOutcome{Kind: OutcomeSkipped, VideoID: job.VideoID, Title: job.Title, Path: existingPath}
}

func Succeeded(job DownloadJob, path string, attempts int) DownloadOutcome {
	return DownloadOutcome{Kind: OutcomeSucceeded, VideoID: job.VideoID, Title: job.Title, Path: path, Attempts: attempts}
}

func Failed(job DownloadJob, reason string, attempts int) DownloadOutcome {
	return DownloadOutcome{Kind: OutcomeFailed, VideoID: job.VideoID, Title: job.Title, Reason: reason, Attempts: attempts}
}

// RetryState lives only while a job is in flight.
type RetryState struct {
	Attempt         int
	MaxAttempts     int
	LastWaitSeconds int
}

// Exhausted reports whether no attempts remain.
func (r RetryState) Exhausted() bool {
	return r.Attempt >= r.MaxAttempts
}

// RateLimitSignal is derived from a failure message.
type RateLimitSignal struct {
	IsLimited            bool
	SuggestedWaitSeconds int
}

// DownloadEvent is pushed to observers while a batch runs.
type DownloadEvent struct {
	Current       int              `json:"current"`
	Total         int              `json:"total"`
	Status        JobStatus        `json:"status"`
	Title         string           `json:"title"`
	Attempt       int              `json:"attempt,omitempty"`
	WaitRemaining int              `json:"wait_remaining_minutes,omitempty"`
	Outcome       *DownloadOutcome `json:"outcome,omitempty"`
}
