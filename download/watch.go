package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// WatchOutputFiles calls onChange with a fresh ListOutputFiles result whenever
// files with extension ext appear, change or disappear under root. Bursts of
// events within settle are reported once. It blocks until ctx ends.
func WatchOutputFiles(ctx context.Context, root, ext string, settle time.Duration, onChange func([]string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	if err := watchTree(watcher, root); err != nil {
		return err
	}

	suffix := "." + strings.TrimPrefix(strings.ToLower(ext), ".")
	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New channel subdirectories are watched too.
			if event.Has(fsnotify.Create) && event.Name != root {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && filepath.Dir(event.Name) == filepath.Clean(root) {
					if err := watcher.Add(event.Name); err != nil {
						log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
					}
					continue
				}
			}
			if !strings.HasSuffix(strings.ToLower(event.Name), suffix) {
				continue
			}
			resetTimer(timer, settle)

		case <-timer.C:
			files, err := ListOutputFiles(root, ext)
			if err != nil {
				log.Error().Err(err).Str("root", root).Msg("Failed to list output files")
				continue
			}
			onChange(files)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				log.Warn().Msg("Watcher queue overflowed, rescanning")
				resetTimer(timer, settle)
				continue
			}
			log.Error().Err(err).Msg("File watcher error")
		}
	}
}

// watchTree adds root and its immediate subdirectories.
func watchTree(w *fsnotify.Watcher, root string) error {
	if err := w.Add(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.Add(filepath.Join(root, e.Name())); err != nil {
				log.Warn().Err(err).Str("dir", e.Name()).Msg("Failed to watch directory")
			}
		}
	}
	return nil
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
