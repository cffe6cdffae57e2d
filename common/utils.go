package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	youtubeBaseURL = "https://www.youtube.com"
)

// WatchURL returns the canonical watch page for a video id.
func WatchURL(videoID string) string {
	return youtubeBaseURL + "/watch?v=" + videoID
}

// ShortsURL returns the short-form URL variant for a video id.
func ShortsURL(videoID string) string {
	return youtubeBaseURL + "/shorts/" + videoID
}

// ChannelURL returns the canonical channel page for a channel id.
func ChannelURL(channelID string) string {
	return youtubeBaseURL + "/channel/" + channelID
}

// HandleURL returns the channel page for an @handle, given without the "@".
func HandleURL(handle string) string {
	return youtubeBaseURL + "/@" + handle
}

// CustomChannelURL returns the legacy /c/ page for a custom slug.
func CustomChannelURL(slug string) string {
	return youtubeBaseURL + "/c/" + slug
}

// UserURL returns the legacy /user/ page for a username.
func UserURL(username string) string {
	return youtubeBaseURL + "/user/" + username
}

// CanonicalChannelURL turns a loosely written channel reference into an
// absolute URL: a bare "@handle" becomes a handle URL and a missing scheme
// becomes https. Anything else is returned trimmed.
func CanonicalChannelURL(reference string) string {
	ref := strings.TrimSpace(reference)
	if strings.HasPrefix(ref, "@") {
		handle := strings.TrimPrefix(ref, "@")
		if i := strings.IndexAny(handle, "/?#"); i >= 0 {
			handle = handle[:i]
		}
		return HandleURL(handle)
	}
	if ref != "" && !strings.Contains(ref, "://") {
		return "https://" + ref
	}
	return ref
}

// VideosTabURL appends "/videos" to a channel URL unless it already ends with it.
// Query strings and fragments are dropped.
func VideosTabURL(channelURL string) string {
	u := channelURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")
	if strings.HasSuffix(u, "/videos") {
		return u
	}
	return u + "/videos"
}

// ReadReferencesFromFile reads channel references from a file, one per line.
// It ignores empty lines and lines starting with a '#' character (comments).
func ReadReferencesFromFile(filename string) ([]string, error) {
	log.Debug().Str("filename", filename).Msg("Reading channel references from file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var refs []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			refs = append(refs, line)
		}
	}

	log.Debug().Int("reference_count", len(refs)).Msg("References read from file")
	return refs, nil
}
