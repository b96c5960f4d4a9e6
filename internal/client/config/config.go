package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Config holds runtime settings for the registrar client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the registration gRPC endpoint.
//   - AccessToken: bearer token sent with every call; its scopes decide
//     what the review tab asks for.
//   - DatabasePath: SQLite file holding declarations and the queue.
//   - Encrypt: seal stored values with a key derived from a passphrase.
//   - LocationIDs, PageSize: filter and page size of the tab searches.
//   - SyncInterval, PruneCertified: reconciler schedule and housekeeping.
//   - AdoptDeclared: store declared and validated server rows that are not
//     on the device yet.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - PollInterval, MaxAttempts, RetryBackoff, RetryMaxDelay, RequestTimeout:
//     submission queue policy.
//   - HTTPAddr: listen address of the local JSON API (serve command).
//   - LogLevel, LogFormat: structured logging.
type Config struct {
	ServerEndpointAddr  string        `env:"SERVER_ENDPOINT_ADDR"`
	AccessToken         string        `env:"ACCESS_TOKEN"`
	DatabasePath        string        `env:"DATABASE_PATH"`
	Encrypt             bool          `env:"ENCRYPT"`
	LocationIDs         []string      `env:"LOCATION_IDS" envSeparator:","`
	PageSize            int           `env:"PAGE_SIZE"`
	SyncInterval        time.Duration `env:"SYNC_INTERVAL"`
	PruneCertified      bool          `env:"PRUNE_CERTIFIED"`
	AdoptDeclared       bool          `env:"ADOPT_DECLARED"`
	OnlineCheckInterval time.Duration `env:"ONLINE_CHECK_INTERVAL"`
	PollInterval        time.Duration `env:"POLL_INTERVAL"`
	MaxAttempts         int           `env:"MAX_ATTEMPTS"`
	RetryBackoff        time.Duration `env:"RETRY_BACKOFF"`
	RetryMaxDelay       time.Duration `env:"RETRY_MAX_DELAY"`
	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT"`
	HTTPAddr            string        `env:"HTTP_ADDR"`
	LogLevel            string        `env:"LOG_LEVEL"`
	LogFormat           string        `env:"LOG_FORMAT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabasePath = "registrar.db"
	c.PageSize = 10
	c.SyncInterval = 30 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.PollInterval = time.Second
	c.MaxAttempts = 5
	c.RetryBackoff = 5 * time.Second
	c.RetryMaxDelay = 5 * time.Minute
	c.RequestTimeout = 30 * time.Second
	c.HTTPAddr = "127.0.0.1:8080"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Validate rejects settings the workers cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerEndpointAddr == "" {
		errs = append(errs, errors.New("server endpoint address is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page size must be positive, got %d", c.PageSize))
	}
	if c.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts))
	}
	for name, d := range map[string]time.Duration{
		"sync interval":         c.SyncInterval,
		"online check interval": c.OnlineCheckInterval,
		"poll interval":         c.PollInterval,
		"retry backoff":         c.RetryBackoff,
		"request timeout":       c.RequestTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.RetryMaxDelay < c.RetryBackoff {
		errs = append(errs, fmt.Errorf("retry max delay %s is below retry backoff %s", c.RetryMaxDelay, c.RetryBackoff))
	}
	return errors.Join(errs...)
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the JSON file at jsonPath (if not empty), REGISTRAR_* environment
// variables, and the flags of fs that were set on the command line. Later
// sources take precedence over earlier ones. fs may be nil.
func LoadConfig(jsonPath string, fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, jsonPath); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, fs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
