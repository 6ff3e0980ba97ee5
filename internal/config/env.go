package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome            = "CIPHERLINK_HOME"
	EnvSepoliaRPC      = "CIPHERLINK_SEPOLIA_RPC"
	EnvLocalRPC        = "CIPHERLINK_LOCAL_RPC"
	EnvRelayerURL      = "CIPHERLINK_RELAYER_URL"
	EnvDevMnemonic     = "CIPHERLINK_DEV_MNEMONIC" // #nosec G101 -- const name, not a credential
	EnvPreferredMarker = "CIPHERLINK_PREFERRED_MARKER"
	EnvOutputFormat    = "CIPHERLINK_OUTPUT_FORMAT"
	EnvVerbose         = "CIPHERLINK_VERBOSE"
	EnvLogLevel        = "CIPHERLINK_LOG_LEVEL"
	EnvNoColor         = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the
// configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvSepoliaRPC); v != "" {
		cfg.Networks.Sepolia.RPC = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvLocalRPC); v != "" {
		cfg.Networks.Localhost.RPC = strings.TrimSpace(v)
		cfg.Relayer.MetadataEndpoint = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvRelayerURL); v != "" {
		cfg.Relayer.URL = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvDevMnemonic); v != "" {
		cfg.Wallet.DevMnemonic = v
	}

	if v := os.Getenv(EnvPreferredMarker); v != "" {
		cfg.Wallet.PreferredMarker = strings.ToLower(v)
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}
