package download

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ListOutputFiles returns files with extension ext in root and its immediate
// subdirectories, relative to root, most recently modified first. A missing
// root yields an empty list.
func ListOutputFiles(root, ext string) ([]string, error) {
	type file struct {
		rel     string
		modTime time.Time
	}
	suffix := "." + strings.TrimPrefix(strings.ToLower(ext), ".")

	top, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	var files []file
	add := func(rel string, e fs.DirEntry) {
		if !strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			return
		}
		info, err := e.Info()
		if err != nil {
			return
		}
		files = append(files, file{rel: rel, modTime: info.ModTime()})
	}

	for _, e := range top {
		if !e.IsDir() {
			add(e.Name(), e)
			continue
		}
		sub, err := os.ReadDir(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		for _, s := range sub {
			if !s.IsDir() {
				add(filepath.Join(e.Name(), s.Name()), s)
			}
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].rel < files[j].rel
		}
		return files[i].modTime.After(files[j].modTime)
	})

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.rel
	}
	return out, nil
}
