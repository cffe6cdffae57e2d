package download

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tomyanzhiyuan/ytmp3-scraper/common"
	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
)

// DedupChecker finds already-downloaded files by name. It never touches the network.
type DedupChecker struct {
	root      string
	ext       string
	threshold float64
}

func NewDedupChecker(root string, format model.OutputFormat, threshold float64) *DedupChecker {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.7
	}
	return &DedupChecker{root: root, ext: format.Extension(), threshold: threshold}
}

// Dir returns the directory files for channelName are written to.
func (d *DedupChecker) Dir(channelName string) string {
	if sub := common.SanitizeFilename(channelName); sub != "" {
		return filepath.Join(d.root, sub)
	}
	return d.root
}

// Exists reports whether a file for title is already present, and its path.
// An exact sanitized name wins; otherwise the first file whose stem contains
// the title, or shares enough of its words, matches.
func (d *DedupChecker) Exists(title, channelName string) (bool, string) {
	dir := d.Dir(channelName)
	name := common.SanitizeFilename(title)
	if name == "" {
		return false, ""
	}

	exact := filepath.Join(dir, name+"."+d.ext)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		return true, exact
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, ""
	}

	lowerName := strings.ToLower(name)
	titleWords := strings.Fields(lowerName)
	suffix := "." + d.ext
	for _, e := range entries {
		lowerFile := strings.ToLower(e.Name())
		if e.IsDir() || !strings.HasSuffix(lowerFile, suffix) {
			continue
		}
		stem := strings.TrimSuffix(lowerFile, suffix)

		if strings.Contains(stem, lowerName) || wordOverlap(titleWords, stem) >= d.threshold {
			path := filepath.Join(dir, e.Name())
			log.Debug().Str("title", title).Str("match", path).Msg("Found existing download")
			return true, path
		}
	}
	return false, ""
}

// wordOverlap is the fraction of titleWords that also appear in stem's words.
func wordOverlap(titleWords []string, stem string) float64 {
	if len(titleWords) == 0 {
		return 0
	}
	have := make(map[string]bool)
	for _, w := range strings.Fields(stem) {
		have[w] = true
	}
	shared := 0
	for _, w := range titleWords {
		if have[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(titleWords))
}
