package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeWith(t *testing.T, yaml string) *Config {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	SetDefaults(v)
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	cfg, err := Decode(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaultsDecodeAndValidate(t *testing.T) {
	cfg := decodeWith(t, "")

	assert.Equal(t, "127.0.0.1:8090", cfg.Server.Addr())
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 1, cfg.Queue.Queues["default"])
	assert.Equal(t, 3, cfg.Queue.MaxRetry)
	assert.Equal(t, 60, cfg.Payment.MaxAttempts)
	assert.Contains(t, cfg.CORS.AllowedMethods, "PATCH")
	assert.NoError(t, cfg.Validate())
}

func TestFileOverridesDefaults(t *testing.T) {
	cfg := decodeWith(t, `
gateway:
  base_url: https://shop.example.com/api
  timeout_ms: 1500
payment:
  poll_interval_ms: 500
`)
	assert.Equal(t, "https://shop.example.com/api", cfg.Gateway.BaseURL)
	assert.Equal(t, int64(1500), cfg.Gateway.Timeout().Milliseconds())
	assert.Equal(t, int64(500), cfg.Payment.PollInterval().Milliseconds())
	assert.Equal(t, "default", cfg.Storage.Namespace)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("STORAGE_NAMESPACE", "shopper-42")

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg, err := Decode(v)
	require.NoError(t, err)
	assert.Equal(t, "shopper-42", cfg.Storage.Namespace)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := decodeWith(t, `
gateway:
  base_url: /relative
storage:
  driver: redis
`)
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway.base_url")
	assert.Contains(t, err.Error(), "redis.enabled")

	cfg = decodeWith(t, "storage:\n  driver: mongo\n")
	assert.ErrorContains(t, cfg.Validate(), "unsupported storage.driver")
}
