// Package config provides configuration management for the cTrader token helper.
// It merges the optional YAML configuration file, the process environment and the
// command-line overrides into a single immutable Config value that is passed to every
// component of the authorization flow.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by the helper.
const (
	EnvClientID     = "CTRADER_CLIENT_ID"
	EnvClientSecret = "CTRADER_CLIENT_SECRET"
	EnvRedirectURI  = "CTRADER_REDIRECT_URI"
	EnvProxyURL     = "CTRADER_PROXY_URL"
	EnvAccessToken  = "CTRADER_ACCESS_TOKEN"
)

// Defaults applied when neither the config file, the environment nor a flag sets a value.
const (
	DefaultRedirectURI      = "http://localhost:8000/callback"
	DefaultPort             = 8000
	DefaultCallbackTimeout  = 300 * time.Second
	DefaultProgressInterval = 10 * time.Second
	DefaultAuthURL          = "https://id.ctrader.com/my/settings/openapi/grantingaccess/"
	DefaultTokenURL         = "https://openapi.ctrader.com/apps/token"
	DefaultLogDir           = "logs"
)

// ErrMissingCredentials is returned by Load when the client id or secret is not set.
var ErrMissingCredentials = errors.New("missing cTrader API credentials")

// ErrInvalidValue is returned when a setting holds a value that cannot be used.
var ErrInvalidValue = errors.New("invalid configuration value")

// ValidateDuration rejects zero and negative durations for the named setting.
func ValidateDuration(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidValue, name, d)
	}
	return nil
}

// FileConfig mirrors the optional YAML configuration file.
type FileConfig struct {
	// Port is the local callback port used when the redirect URI does not carry one.
	Port int `yaml:"port"`

	// CallbackTimeout bounds how long interactive mode waits for the browser redirect.
	CallbackTimeout time.Duration `yaml:"callback-timeout"`

	// ProgressInterval controls how often a waiting notice is printed.
	ProgressInterval time.Duration `yaml:"progress-interval"`

	// ProxyURL is the URL of an optional proxy server used for the token exchange.
	ProxyURL string `yaml:"proxy-url"`

	// EnvFile is the dotenv file the access token is appended to.
	EnvFile string `yaml:"env-file"`

	// AuthURL overrides the provider's consent page.
	AuthURL string `yaml:"auth-url"`

	// TokenURL overrides the provider's token endpoint.
	TokenURL string `yaml:"token-url"`

	// Debug enables debug level logging.
	Debug bool `yaml:"debug"`

	// LoggingToFile writes logs to a rotating file instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// LogDir is the directory used when LoggingToFile is set.
	LogDir string `yaml:"log-dir"`

	// LogsMaxTotalSizeMB caps the size of LogDir; older rotated files are removed
	// first. Zero disables the cap.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb"`
}

// Overrides carries command-line values. Zero values mean "not set".
type Overrides struct {
	ConfigPath      string
	RedirectURI     string
	Port            int
	CallbackTimeout time.Duration
	EnvFile         string
	Debug           bool
	LoggingToFile   bool
}

// Config is the resolved configuration for a single run. It must not be modified after Load.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	Port             int
	CallbackTimeout  time.Duration
	ProgressInterval time.Duration

	ProxyURL string
	EnvFile  string
	AuthURL  string
	TokenURL string

	Debug         bool
	LoggingToFile      bool
	LogDir             string
	LogsMaxTotalSizeMB int
}

// LoadFile parses a YAML configuration file. A missing file is an error only when the
// path was given explicitly by the caller.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc FileConfig
	if len(strings.TrimSpace(string(data))) == 0 {
		return &fc, nil
	}
	if err = yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &fc, nil
}

// Load resolves the run configuration. Precedence is flags, then environment, then the
// YAML file, then defaults. Credentials are taken from the environment only.
//
// Parameters:
//   - lookupEnv: environment accessor, usually os.LookupEnv
//   - opts: command-line overrides
//
// Returns:
//   - *Config: the resolved configuration
//   - error: ErrMissingCredentials (wrapped) or a config file error
func Load(lookupEnv func(string) (string, bool), opts Overrides) (*Config, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	env := func(key string) string {
		if value, ok := lookupEnv(key); ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	cfg := &Config{
		ClientID:     env(EnvClientID),
		ClientSecret: env(EnvClientSecret),
	}
	var missing []string
	if cfg.ClientID == "" {
		missing = append(missing, EnvClientID)
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, EnvClientSecret)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s not set", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	fc := &FileConfig{}
	if opts.ConfigPath != "" {
		loaded, err := LoadFile(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		fc = loaded
	}

	// Zero means "not set" in both sources; only negative values are caught here.
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"callback-timeout", fc.CallbackTimeout},
		{"progress-interval", fc.ProgressInterval},
		{"--timeout", opts.CallbackTimeout},
	} {
		if d.value < 0 {
			return nil, ValidateDuration(d.name, d.value)
		}
	}

	cfg.RedirectURI = firstNonEmpty(opts.RedirectURI, env(EnvRedirectURI), DefaultRedirectURI)
	cfg.ProxyURL = firstNonEmpty(env(EnvProxyURL), fc.ProxyURL)
	cfg.EnvFile = firstNonEmpty(opts.EnvFile, fc.EnvFile)
	cfg.AuthURL = firstNonEmpty(fc.AuthURL, DefaultAuthURL)
	cfg.TokenURL = firstNonEmpty(fc.TokenURL, DefaultTokenURL)
	cfg.LogDir = firstNonEmpty(fc.LogDir, DefaultLogDir)

	cfg.Port = DefaultPort
	if fc.Port > 0 {
		cfg.Port = fc.Port
	}
	if opts.Port > 0 {
		cfg.Port = opts.Port
	}

	cfg.CallbackTimeout = DefaultCallbackTimeout
	if fc.CallbackTimeout > 0 {
		cfg.CallbackTimeout = fc.CallbackTimeout
	}
	if opts.CallbackTimeout > 0 {
		cfg.CallbackTimeout = opts.CallbackTimeout
	}

	cfg.ProgressInterval = DefaultProgressInterval
	if fc.ProgressInterval > 0 {
		cfg.ProgressInterval = fc.ProgressInterval
	}

	cfg.Debug = fc.Debug || opts.Debug
	cfg.LoggingToFile = fc.LoggingToFile || opts.LoggingToFile
	if fc.LogsMaxTotalSizeMB > 0 {
		cfg.LogsMaxTotalSizeMB = fc.LogsMaxTotalSizeMB
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
