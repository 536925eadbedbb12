package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setupCLIEnv points the command at a fake token endpoint through a YAML config file
// and returns the path of that file.
func setupCLIEnv(t *testing.T, tokenURL string) string {
	t.Helper()
	t.Setenv("CTRADER_CLIENT_ID", "client-1")
	t.Setenv("CTRADER_CLIENT_SECRET", "secret-1")
	t.Setenv("CTRADER_REDIRECT_URI", "")
	t.Setenv("CTRADER_PROXY_URL", "")
	t.Setenv("SSH_CONNECTION", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("token-url: %q\nprogress-interval: 1h\n", tokenURL)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestExecute_ManualSuccess(t *testing.T) {
	endpoint := newTokenEndpoint(t, http.StatusOK, `{"accessToken":"TOKEN1"}`)
	configPath := setupCLIEnv(t, endpoint.URL)
	envPath := filepath.Join(t.TempDir(), ".env")

	var out bytes.Buffer
	code := Execute(context.Background(),
		[]string{"--manual", "--config", configPath, "--env-file", envPath},
		strings.NewReader("CODE1\n"), &out)
	if code != 0 {
		t.Fatalf("exit code = %d, output:\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "TOKEN1") {
		t.Fatalf("token not printed:\n%s", out.String())
	}
	if got := endpoint.lastCode.Load(); got != "CODE1" {
		t.Fatalf("exchanged code = %v", got)
	}
	if _, err := os.Stat(envPath); !os.IsNotExist(err) {
		t.Fatalf("env file must not be written without confirmation: %v", err)
	}
}

func TestExecute_MissingCredential(t *testing.T) {
	endpoint := newTokenEndpoint(t, http.StatusOK, `{"accessToken":"TOKEN1"}`)
	configPath := setupCLIEnv(t, endpoint.URL)
	t.Setenv("CTRADER_CLIENT_ID", "")

	var out bytes.Buffer
	code := Execute(context.Background(), []string{"--manual", "--config", configPath}, strings.NewReader("CODE1\n"), &out)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "CTRADER_CLIENT_ID") {
		t.Fatalf("missing variable not named:\n%s", out.String())
	}
	if endpoint.hits.Load() != 0 {
		t.Fatal("no network call expected")
	}
}

func TestExecute_InteractiveTimeout(t *testing.T) {
	endpoint := newTokenEndpoint(t, http.StatusOK, `{"accessToken":"TOKEN1"}`)
	configPath := setupCLIEnv(t, endpoint.URL)
	redirect := fmt.Sprintf("http://localhost:%d/callback", freePort(t))

	var out bytes.Buffer
	start := time.Now()
	code := Execute(context.Background(),
		[]string{"--interactive", "--no-browser", "--timeout", "1s", "--redirect-uri", redirect, "--config", configPath},
		strings.NewReader(""), &out)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if time.Since(start) < time.Second {
		t.Fatal("returned before the timeout elapsed")
	}
	if !strings.Contains(out.String(), "timed out") {
		t.Fatalf("timeout not reported:\n%s", out.String())
	}
	if endpoint.hits.Load() != 0 {
		t.Fatal("no exchange call expected")
	}
}

func TestExecute_InteractiveSuccessSaves(t *testing.T) {
	endpoint := newTokenEndpoint(t, http.StatusOK, `{"accessToken":"TOKEN3","expiresIn":2628000}`)
	configPath := setupCLIEnv(t, endpoint.URL)
	port := freePort(t)
	envPath := filepath.Join(t.TempDir(), ".env")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		callback := fmt.Sprintf("http://localhost:%d/callback?code=CODE3", port)
		for ctx.Err() == nil {
			resp, err := http.Get(callback)
			if err == nil {
				_ = resp.Body.Close()
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}()

	var out bytes.Buffer
	code := Execute(ctx,
		[]string{"--interactive", "--no-browser", "--save", "--timeout", "5s",
			"--redirect-uri", fmt.Sprintf("http://localhost:%d/callback", port),
			"--config", configPath, "--env-file", envPath},
		strings.NewReader(""), &out)
	if code != 0 {
		t.Fatalf("exit code = %d, output:\n%s", code, out.String())
	}
	if got := endpoint.lastCode.Load(); got != "CODE3" {
		t.Fatalf("exchanged code = %v", got)
	}
	data, err := os.ReadFile(envPath)
	if err != nil {
		t.Fatalf("read env file: %v", err)
	}
	if !strings.Contains(string(data), "CTRADER_ACCESS_TOKEN=TOKEN3\n") {
		t.Fatalf("env file content %q", string(data))
	}
}

func TestExecute_ConflictingModes(t *testing.T) {
	endpoint := newTokenEndpoint(t, http.StatusOK, `{"accessToken":"TOKEN1"}`)
	configPath := setupCLIEnv(t, endpoint.URL)

	var out bytes.Buffer
	code := Execute(context.Background(), []string{"--interactive", "--manual", "--config", configPath}, strings.NewReader(""), &out)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if endpoint.hits.Load() != 0 {
		t.Fatal("no network call expected")
	}
}

func TestNewLinePrompt(t *testing.T) {
	var out bytes.Buffer
	prompt := newLinePrompt(context.Background(), strings.NewReader("  first \nsecond"), &out)

	for _, want := range []string{"first", "second", ""} {
		got, err := prompt("> ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("prompt() = %q, want %q", got, want)
		}
	}
	if !strings.HasPrefix(out.String(), "> ") {
		t.Fatalf("prompt text not written: %q", out.String())
	}
}

func TestNewLinePrompt_Cancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() {
		_ = pw.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	prompt := newLinePrompt(ctx, pr, &bytes.Buffer{})
	time.AfterFunc(50*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() {
		_, err := prompt("> ")
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("prompt error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt ignored cancellation")
	}
}

func TestExecute_InterruptedAtPrompt(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"mode menu", nil},
		{"code paste", []string{"--manual"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			endpoint := newTokenEndpoint(t, http.StatusOK, `{"accessToken":"TOKEN1"}`)
			configPath := setupCLIEnv(t, endpoint.URL)

			pr, pw := io.Pipe()
			defer func() {
				_ = pw.Close()
			}()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			time.AfterFunc(100*time.Millisecond, cancel)

			var out bytes.Buffer
			done := make(chan int, 1)
			go func() {
				done <- Execute(ctx, append(tc.args, "--config", configPath), pr, &out)
			}()

			select {
			case code := <-done:
				if code != 1 {
					t.Fatalf("exit code = %d, want 1", code)
				}
			case <-time.After(3 * time.Second):
				t.Fatal("command still blocked on stdin after interrupt")
			}
			if !strings.Contains(out.String(), "Interrupted") {
				t.Fatalf("interrupt not reported:\n%s", out.String())
			}
			if endpoint.hits.Load() != 0 {
				t.Fatal("no network call expected")
			}
		})
	}
}

func TestExecute_RejectsNonPositiveTimeout(t *testing.T) {
	for _, value := range []string{"0s", "-5s"} {
		t.Run(value, func(t *testing.T) {
			endpoint := newTokenEndpoint(t, http.StatusOK, `{"accessToken":"TOKEN1"}`)
			configPath := setupCLIEnv(t, endpoint.URL)

			var out bytes.Buffer
			code := Execute(context.Background(),
				[]string{"--interactive", "--no-browser", "--timeout", value, "--config", configPath},
				strings.NewReader(""), &out)
			if code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			if !strings.Contains(out.String(), "Invalid configuration") || !strings.Contains(out.String(), "--timeout") {
				t.Fatalf("invalid timeout not reported:\n%s", out.String())
			}
			if endpoint.hits.Load() != 0 {
				t.Fatal("no network call expected")
			}
		})
	}
}
