package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/router-for-me/CTraderAuth/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestLogFormatter_Format(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.New(),
		Time:    time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "callback server stopped\n",
		Data: log.Fields{
			"port":    8000,
			"mode":    "interactive",
			"ignored": "x",
		},
	}

	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	want := "[2026-03-04 05:06:07] [warn ] callback server stopped mode=interactive port=8000\n"
	if string(out) != want {
		t.Fatalf("Format() = %q, want %q", string(out), want)
	}
}

func TestLogFormatter_WithError(t *testing.T) {
	entry := log.NewEntry(log.New()).WithError(errors.New("boom"))
	entry.Level = log.ErrorLevel
	entry.Message = "exchange failed"

	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.HasSuffix(string(out), "[error] exchange failed error=boom\n") {
		t.Fatalf("unexpected output %q", string(out))
	}
}

func TestConfigureLogOutput_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	cfg := &config.Config{LoggingToFile: true, LogDir: dir, Debug: true}

	if err := ConfigureLogOutput(cfg); err != nil {
		t.Fatalf("ConfigureLogOutput: %v", err)
	}
	t.Cleanup(func() {
		_ = ConfigureLogOutput(&config.Config{})
	})

	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("level = %v, want debug", log.GetLevel())
	}
	log.Info("written to file")

	data, err := os.ReadFile(filepath.Join(dir, "main.log"))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Fatalf("log file content %q", string(data))
	}
}
