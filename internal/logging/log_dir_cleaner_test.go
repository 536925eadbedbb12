package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPruneLogDir(t *testing.T) {
	tests := []struct {
		name        string
		files       map[string]int
		limit       int64
		wantRemoved int
		wantKept    []string
		wantGone    []string
	}{
		{
			name:        "under limit",
			files:       map[string]int{"a.log": 10, "main.log": 10},
			limit:       100,
			wantRemoved: 0,
			wantKept:    []string{"a.log", "main.log"},
		},
		{
			name:        "oldest first",
			files:       map[string]int{"old.log": 60, "mid.log.gz": 60, "main.log": 60},
			limit:       120,
			wantRemoved: 1,
			wantKept:    []string{"mid.log.gz", "main.log"},
			wantGone:    []string{"old.log"},
		},
		{
			name:        "active file survives",
			files:       map[string]int{"main.log": 200, "other.log": 50},
			limit:       100,
			wantRemoved: 1,
			wantKept:    []string{"main.log"},
			wantGone:    []string{"other.log"},
		},
		{
			name:        "non log files ignored",
			files:       map[string]int{"notes.txt": 500, "main.log": 10},
			limit:       100,
			wantRemoved: 0,
			wantKept:    []string{"notes.txt", "main.log"},
		},
	}

	// modification order follows this slice
	order := []string{"old.log", "a.log", "other.log", "mid.log.gz", "notes.txt", "main.log"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for i, name := range order {
				size, ok := tt.files[name]
				if !ok {
					continue
				}
				writeLogFile(t, filepath.Join(dir, name), size, time.Unix(int64(i+1), 0))
			}

			removed, err := pruneLogDir(dir, tt.limit, filepath.Join(dir, "main.log"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if removed != tt.wantRemoved {
				t.Fatalf("removed = %d, want %d", removed, tt.wantRemoved)
			}
			for _, name := range tt.wantKept {
				if _, errStat := os.Stat(filepath.Join(dir, name)); errStat != nil {
					t.Errorf("%s should remain: %v", name, errStat)
				}
			}
			for _, name := range tt.wantGone {
				if _, errStat := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(errStat) {
					t.Errorf("%s should be removed: %v", name, errStat)
				}
			}
		})
	}
}

func TestPruneLogDir_MissingDir(t *testing.T) {
	removed, err := pruneLogDir(filepath.Join(t.TempDir(), "absent"), 10, "")
	if err != nil || removed != 0 {
		t.Fatalf("pruneLogDir() = %d, %v", removed, err)
	}
}

func writeLogFile(t *testing.T, path string, size int, modTime time.Time) {
	t.Helper()

	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("set times: %v", err)
	}
}
