package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:50051", c.ServerEndpointAddr)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 5, c.MaxAttempts)
	assert.Equal(t, 5*time.Second, c.RetryBackoff)
	assert.Equal(t, 5*time.Minute, c.RetryMaxDelay)
	require.NoError(t, c.Validate())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "127.0.0.1:50051", cfg.ServerEndpointAddr)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"server_endpoint_addr": "json:1",
		"page_size":            20,
		"retry_backoff":        "2s",
	})
	t.Setenv("REGISTRAR_SERVER_ENDPOINT_ADDR", "env:2")
	t.Setenv("REGISTRAR_PAGE_SIZE", "30")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-a", "flag:3"}))

	cfg, err := LoadConfig(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "flag:3", cfg.ServerEndpointAddr, "flag beats env and json")
	assert.Equal(t, 30, cfg.PageSize, "env beats json")
	assert.Equal(t, 2*time.Second, cfg.RetryBackoff, "json beats defaults")
	assert.Equal(t, "registrar.db", cfg.DatabasePath)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("REGISTRAR_MAX_ATTEMPTS", "0")
	_, err := LoadConfig("", nil)
	require.Error(t, err)

	t.Setenv("REGISTRAR_MAX_ATTEMPTS", "three")
	_, err = LoadConfig("", nil)
	require.Error(t, err)
}

func TestValidate_RetryDelays(t *testing.T) {
	var c Config
	c.LoadDefaults()
	c.RetryMaxDelay = time.Second
	require.ErrorContains(t, c.Validate(), "retry max delay")
}
