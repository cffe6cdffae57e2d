package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tomyanzhiyuan/ytmp3-scraper/common"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model/youtube"
)

const providerNameYtDlp = "yt-dlp"

// YtDlpOptions configures the yt-dlp backed fallback provider and media fetcher
type YtDlpOptions struct {
	BinaryPath   string
	CookiesPath  string
	ListLimit    int
	AudioBitrate int
}

// commandRunner runs yt-dlp with args. Listing calls need stdout only; fetch
// calls stream lines to onLine. Tests replace it.
type commandRunner func(ctx context.Context, binary string, args []string, onLine func(string)) ([]byte, error)

// YtDlpClient is the fallback catalog provider and the media fetcher. It shells
// out to yt-dlp, which handles extraction and ffmpeg conversion.
type YtDlpClient struct {
	opts YtDlpOptions
	run  commandRunner
}

var (
	_ CatalogProvider = (*YtDlpClient)(nil)
	_ MediaFetcher    = (*YtDlpClient)(nil)
)

func NewYtDlpClient(opts YtDlpOptions) *YtDlpClient {
	if opts.BinaryPath == "" {
		opts.BinaryPath = "yt-dlp"
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = 10000
	}
	if opts.AudioBitrate <= 0 {
		opts.AudioBitrate = 320
	}
	return &YtDlpClient{opts: opts, run: runCommand}
}

func (c *YtDlpClient) Name() string { return providerNameYtDlp }

// CheckDependency reports whether the yt-dlp binary can be found.
func (c *YtDlpClient) CheckDependency() error {
	if _, err := exec.LookPath(c.opts.BinaryPath); err != nil {
		return fmt.Errorf("missing dependency: %s is not installed or not on PATH: %w", c.opts.BinaryPath, err)
	}
	return nil
}

type flatPlaylist struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Channel   string      `json:"channel"`
	ChannelID string      `json:"channel_id"`
	Uploader  string      `json:"uploader"`
	Entries   []flatEntry `json:"entries"`
}

type flatEntry struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Duration   *float64        `json:"duration"`
	Timestamp  *float64        `json:"timestamp"`
	UploadDate string          `json:"upload_date"`
	IsLive     bool            `json:"is_live"`
	WasLive    bool            `json:"was_live"`
	LiveStatus string          `json:"live_status"`
	Thumbnails []flatThumbnail `json:"thumbnails"`
}

type flatThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ListVideos runs a single flat listing of the channel's videos tab.
func (c *YtDlpClient) ListVideos(ctx context.Context, req ListRequest) (*Listing, error) {
	source := req.Reference
	if source == "" && req.Channel.ID != "" {
		source = common.ChannelURL(req.Channel.ID)
	}
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("source URL is required")
	}
	source = common.VideosTabURL(common.CanonicalChannelURL(source))

	args := []string{"--flat-playlist", "-J", "--playlist-items", fmt.Sprintf("1-%d", c.opts.ListLimit)}
	args = append(args, c.cookieArgs()...)
	args = append(args, source)

	log.Info().Str("source", source).Int("limit", c.opts.ListLimit).Msg("Listing channel with yt-dlp")

	out, err := c.run(ctx, c.opts.BinaryPath, args, nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty output")
	}

	var playlist flatPlaylist
	if err := json.Unmarshal(out, &playlist); err != nil {
		return nil, fmt.Errorf("decode yt-dlp listing: %w", err)
	}

	identity := model.ChannelIdentity{ID: playlist.ChannelID, DisplayName: playlist.Channel}
	if identity.ID == "" {
		identity.ID = req.Channel.ID
	}
	if identity.DisplayName == "" {
		identity.DisplayName = playlist.Uploader
	}
	if identity.DisplayName == "" {
		identity.DisplayName = req.Channel.DisplayName
	}

	log.Info().
		Str("channel_id", identity.ID).
		Int("entry_count", len(playlist.Entries)).
		Msg("yt-dlp listing complete")

	entries := playlist.Entries
	return &Listing{
		Channel: identity,
		Entries: func(yield func(youtube.RawEntry, error) bool) {
			for _, e := range entries {
				if !yield(e.rawEntry(), nil) {
					return
				}
			}
		},
	}, nil
}

func (e flatEntry) rawEntry() youtube.RawEntry {
	raw := youtube.RawEntry{
		ID:         e.ID,
		Title:      e.Title,
		UploadDate: e.UploadDate,
		IsLive:     e.IsLive || e.WasLive || isLiveStatus(e.LiveStatus),
	}
	if e.Duration != nil {
		d := int(*e.Duration)
		raw.Duration = &d
	}
	if e.Timestamp != nil {
		ts := int64(*e.Timestamp)
		raw.Timestamp = &ts
	}
	variants := make([]youtube.Thumbnail, 0, len(e.Thumbnails))
	for _, t := range e.Thumbnails {
		variants = append(variants, youtube.Thumbnail{URL: t.URL, Width: t.Width, Height: t.Height})
	}
	raw.Thumbnail = youtube.PickThumbnail(variants)
	return raw
}

func isLiveStatus(s string) bool {
	switch s {
	case "is_live", "was_live", "is_upcoming", "post_live":
		return true
	}
	return false
}

// Fetch downloads one video and converts it per the requested format.
func (c *YtDlpClient) Fetch(ctx context.Context, req FetchRequest) (string, error) {
	if strings.TrimSpace(req.URL) == "" {
		return "", fmt.Errorf("video URL is required")
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return "", fmt.Errorf("output directory is required")
	}
	if req.Basename == "" {
		return "", fmt.Errorf("output basename is required")
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory %s: %w", req.OutputDir, err)
	}

	args := c.fetchArgs(req)
	log.Debug().Str("url", req.URL).Strs("args", args).Msg("Starting yt-dlp download")

	if _, err := c.run(ctx, c.opts.BinaryPath, args, func(line string) {
		log.Trace().Str("url", req.URL).Msg(line)
	}); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrMediaFetchFailed, err)
	}

	want := filepath.Join(req.OutputDir, req.Basename+"."+req.Format.Extension())
	if _, err := os.Stat(want); err == nil {
		return want, nil
	}
	// yt-dlp may pick a different container when merging fails.
	matches, _ := filepath.Glob(filepath.Join(req.OutputDir, globEscape(req.Basename)+".*"))
	for _, m := range matches {
		if !strings.HasSuffix(m, ".part") {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: yt-dlp exited cleanly but %s was not written", model.ErrMediaFetchFailed, want)
}

func (c *YtDlpClient) fetchArgs(req FetchRequest) []string {
	args := []string{"--no-playlist", "--newline", "--no-progress"}
	switch req.Format {
	case model.FormatVideo:
		args = append(args, "-f", "bv*+ba/b", "--merge-output-format", "mp4")
	default:
		args = append(args, "-x", "--audio-format", "mp3", "--audio-quality", strconv.Itoa(c.opts.AudioBitrate)+"K")
	}
	args = append(args, "-o", filepath.Join(req.OutputDir, req.Basename+".%(ext)s"))
	args = append(args, c.cookieArgs()...)
	return append(args, req.URL)
}

// cookieArgs passes the cookie bundle through when it exists. A missing bundle
// only degrades reliability, so it is logged and skipped.
func (c *YtDlpClient) cookieArgs() []string {
	p := strings.TrimSpace(c.opts.CookiesPath)
	if p == "" {
		return nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		log.Warn().Err(err).Str("cookies_path", p).Msg("Cannot resolve cookies path, continuing without cookies")
		return nil
	}
	if _, err := os.Stat(abs); err != nil {
		log.Warn().Err(err).Str("cookies_path", abs).Msg("Cookies file not found, continuing without cookies")
		return nil
	}
	return []string{"--cookies", abs}
}

func globEscape(s string) string {
	r := strings.NewReplacer(`[`, `\[`, `]`, `\]`, `*`, `\*`, `?`, `\?`)
	return r.Replace(s)
}

func runCommand(ctx context.Context, binary string, args []string, onLine func(string)) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	if onLine == nil {
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return stdout.Bytes(), nil
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start yt-dlp: %w", err)
	}

	var errBuf limitedBuffer
	var wg sync.WaitGroup
	read := func(r io.Reader, keep bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if keep {
				errBuf.append(line)
			}
			onLine(line)
		}
	}

	wg.Add(2)
	go read(stdoutPipe, false)
	go read(stderrPipe, true)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, errBuf.String())
	}
	return nil, nil
}

// maxStderrKeep bounds the stderr tail carried in error messages.
const maxStderrKeep = 8192

// limitedBuffer keeps the last few KiB of stderr, whole lines only. yt-dlp
// prints its ERROR line last.
type limitedBuffer struct {
	mu    sync.Mutex
	lines []string
	size  int
}

func (l *limitedBuffer) append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(line) > maxStderrKeep {
		line = line[len(line)-maxStderrKeep:]
	}
	l.lines = append(l.lines, line)
	l.size += len(line) + 1
	for l.size > maxStderrKeep && len(l.lines) > 1 {
		l.size -= len(l.lines[0]) + 1
		l.lines = l.lines[1:]
	}
}

func (l *limitedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.TrimSpace(strings.Join(l.lines, "\n"))
}
