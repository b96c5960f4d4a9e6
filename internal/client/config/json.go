package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Sadman-Ilham/opencrvs-core/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. Pointer fields tell an
// absent key from a zero value.
type JsonConfig struct {
	ServerEndpointAddr  *string         `json:"server_endpoint_addr"`
	AccessToken         *string         `json:"access_token"`
	DatabasePath        *string         `json:"database_path"`
	Encrypt             *bool           `json:"encrypt"`
	LocationIDs         []string        `json:"location_ids"`
	PageSize            *int            `json:"page_size"`
	SyncInterval        *timex.Duration `json:"sync_interval"`
	PruneCertified      *bool           `json:"prune_certified"`
	AdoptDeclared       *bool           `json:"adopt_declared"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	PollInterval        *timex.Duration `json:"poll_interval"`
	MaxAttempts         *int            `json:"max_attempts"`
	RetryBackoff        *timex.Duration `json:"retry_backoff"`
	RetryMaxDelay       *timex.Duration `json:"retry_max_delay"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	HTTPAddr            *string         `json:"http_addr"`
	LogLevel            *string         `json:"log_level"`
	LogFormat           *string         `json:"log_format"`
}

// parseJson overlays Config with the keys present in the JSON file at path.
// An empty path leaves cfg untouched.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	set(&cfg.AccessToken, jc.AccessToken)
	set(&cfg.DatabasePath, jc.DatabasePath)
	set(&cfg.Encrypt, jc.Encrypt)
	if jc.LocationIDs != nil {
		cfg.LocationIDs = jc.LocationIDs
	}
	set(&cfg.PageSize, jc.PageSize)
	setDuration(&cfg.SyncInterval, jc.SyncInterval)
	set(&cfg.PruneCertified, jc.PruneCertified)
	set(&cfg.AdoptDeclared, jc.AdoptDeclared)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.PollInterval, jc.PollInterval)
	set(&cfg.MaxAttempts, jc.MaxAttempts)
	setDuration(&cfg.RetryBackoff, jc.RetryBackoff)
	setDuration(&cfg.RetryMaxDelay, jc.RetryMaxDelay)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	set(&cfg.HTTPAddr, jc.HTTPAddr)
	set(&cfg.LogLevel, jc.LogLevel)
	set(&cfg.LogFormat, jc.LogFormat)
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
