// Package envfile appends the access token to a dotenv file.
package envfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// FileName is the dotenv file name used when no explicit path is configured.
const FileName = ".env"

// DefaultPath returns the .env file one directory above the directory that holds the
// running executable, e.g. <project>/.env for <project>/bin/ctrader-auth. Binaries built
// into the temp directory by go run use the working directory instead.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	if resolved, errEval := filepath.EvalSymlinks(exe); errEval == nil {
		exe = resolved
	}
	wd, err := os.Getwd()
	if err != nil {
		return PathRelativeTo(exe), nil
	}
	return defaultPathFor(exe, os.TempDir(), wd), nil
}

func defaultPathFor(exe, tempDir, wd string) string {
	if isUnder(exe, tempDir) {
		return filepath.Join(wd, FileName)
	}
	return PathRelativeTo(exe)
}

func isUnder(path, dir string) bool {
	if dir == "" {
		return false
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// PathRelativeTo returns the .env path one directory above the directory of file.
func PathRelativeTo(file string) string {
	return filepath.Join(filepath.Dir(filepath.Dir(file)), FileName)
}

// HasKey reports whether the dotenv file at path already defines key.
// A missing file is not an error.
func HasKey(path, key string) (bool, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	_, ok := values[key]
	return ok, nil
}

// AppendToken appends a comment line and a KEY=value line to the dotenv file at path,
// creating it with mode 0600 when it does not exist.
func AppendToken(path, key, token string, now time.Time) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("env key is required")
	}
	if strings.ContainsAny(token, "\r\n") {
		return fmt.Errorf("token contains a line break")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	entry := fmt.Sprintf("\n# cTrader access token generated %s\n%s=%s\n", now.UTC().Format(time.RFC3339), key, token)
	if _, err = f.WriteString(entry); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
