package logging

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// pruneLogDir removes the oldest *.log / *.log.gz files in logDir until the directory
// fits in maxBytes. The active log file is never removed.
func pruneLogDir(logDir string, maxBytes int64, activePath string) (int, error) {
	dir := strings.TrimSpace(logDir)
	if maxBytes <= 0 || dir == "" {
		return 0, nil
	}
	dir = filepath.Clean(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	active := strings.TrimSpace(activePath)
	if active != "" {
		active = filepath.Clean(active)
	}

	type rotatedFile struct {
		path    string
		size    int64
		modTime time.Time
	}

	var (
		candidates []rotatedFile
		total      int64
	)
	for _, entry := range entries {
		if entry.IsDir() || !isLogFileName(entry.Name()) {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil || !info.Mode().IsRegular() {
			continue
		}
		total += info.Size()
		path := filepath.Join(dir, entry.Name())
		if path == active {
			continue
		}
		candidates = append(candidates, rotatedFile{path: path, size: info.Size(), modTime: info.ModTime()})
	}
	if total <= maxBytes {
		return 0, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.Before(candidates[j].modTime)
	})

	removed := 0
	for _, f := range candidates {
		if total <= maxBytes {
			break
		}
		if errRemove := os.Remove(f.path); errRemove != nil {
			return removed, errRemove
		}
		total -= f.size
		removed++
	}
	return removed, nil
}

func isLogFileName(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".log") || strings.HasSuffix(lower, ".log.gz")
}
