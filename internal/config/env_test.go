package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cipherlink/cipherlink/internal/config"
)

func TestApplyEnvironment(t *testing.T) {
	t.Setenv(config.EnvHome, "/custom/home")
	t.Setenv(config.EnvSepoliaRPC, " https://sepolia.example ")
	t.Setenv(config.EnvLocalRPC, "http://127.0.0.1:9999")
	t.Setenv(config.EnvRelayerURL, "https://relayer.example")
	t.Setenv(config.EnvPreferredMarker, "Rabby")
	t.Setenv(config.EnvOutputFormat, "JSON")
	t.Setenv(config.EnvVerbose, "yes")
	t.Setenv(config.EnvLogLevel, "DEBUG")

	cfg := config.Defaults()
	config.ApplyEnvironment(cfg)

	assert.Equal(t, "/custom/home", cfg.Home)
	assert.Equal(t, "https://sepolia.example", cfg.Networks.Sepolia.RPC)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.Networks.Localhost.RPC)
	// the local RPC override also retargets metadata queries
	assert.Equal(t, "http://127.0.0.1:9999", cfg.Relayer.MetadataEndpoint)
	assert.Equal(t, "https://relayer.example", cfg.Relayer.URL)
	assert.Equal(t, "rabby", cfg.Wallet.PreferredMarker)
	assert.Equal(t, "json", cfg.Output.DefaultFormat)
	assert.True(t, cfg.Output.Verbose)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyEnvironmentEmptyValuesIgnored(t *testing.T) {
	t.Setenv(config.EnvHome, "")
	t.Setenv(config.EnvSepoliaRPC, "")

	cfg := config.Defaults()
	before := *cfg
	config.ApplyEnvironment(cfg)

	assert.Equal(t, before.Home, cfg.Home)
	assert.Equal(t, before.Networks.Sepolia.RPC, cfg.Networks.Sepolia.RPC)
}

func TestApplyEnvironmentNoColor(t *testing.T) {
	t.Setenv(config.EnvNoColor, "1")

	cfg := config.Defaults()
	config.ApplyEnvironment(cfg)
	assert.Equal(t, "never", cfg.Output.Color)
}
