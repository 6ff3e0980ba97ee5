// Package config provides configuration management for CipherLink.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Home      string          `yaml:"home"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Networks  NetworksConfig  `yaml:"networks"`
	Relayer   RelayerConfig   `yaml:"relayer"`
	Storage   StorageConfig   `yaml:"storage"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// WalletConfig defines wallet selection and dev-wallet settings.
type WalletConfig struct {
	// PreferredMarker sorts and reconciles providers whose display name
	// contains it.
	PreferredMarker string `yaml:"preferred_marker"`

	// DevMnemonic seeds the local dev wallet. Leave the default for
	// hardhat/anvil nodes.
	DevMnemonic string `yaml:"dev_mnemonic"`

	// DevAccounts is how many dev accounts to derive.
	DevAccounts int `yaml:"dev_accounts"`

	// SignaturePassphrase protects cached decryption signatures at
	// rest. Empty stores them unencrypted.
	SignaturePassphrase string `yaml:"signature_passphrase"`
}

// DiscoveryConfig defines provider discovery settings.
type DiscoveryConfig struct {
	// GraceWindowMS is how long after the request broadcast the
	// registry keeps waiting for announce responses.
	GraceWindowMS int `yaml:"grace_window_ms"`
}

// NetworksConfig defines per-network endpoints.
type NetworksConfig struct {
	Sepolia   NetworkConfig `yaml:"sepolia"`
	Localhost NetworkConfig `yaml:"localhost"`
}

// NetworkConfig defines one network endpoint.
type NetworkConfig struct {
	RPC string `yaml:"rpc"`
}

// RelayerConfig defines confidential-session construction settings.
type RelayerConfig struct {
	// URL overrides the relayer service endpoint. Empty uses the
	// bundle's default.
	URL string `yaml:"url,omitempty"`

	// BundleURL is the relayer bundle location.
	BundleURL string `yaml:"bundle_url"`

	// MetadataEndpoint is the local node queried for deployment
	// metadata on the development chain.
	MetadataEndpoint string `yaml:"metadata_endpoint"`
}

// StorageConfig defines connection persistence settings.
type StorageConfig struct {
	// File is the key-value store path. Empty uses store.json under
	// the home directory.
	File string `yaml:"file"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

// Load reads configuration from the specified file, overlaying the
// defaults.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, clerr.WithCause(clerr.ErrConfigNotFound, err)
		}
		return nil, clerr.Wrap(err, "reading config file")
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, clerr.WithCause(clerr.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return clerr.Wrap(err, "creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return clerr.Wrap(err, "encoding config")
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return clerr.Wrap(err, "writing config file")
	}
	return nil
}

// Path returns the config file path under home.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// StorePath returns the key-value store path, honoring an explicit
// override in the configuration.
func (c *Config) StorePath() string {
	if c.Storage.File != "" {
		return c.Storage.File
	}
	return filepath.Join(c.Home, "store.json")
}

// DefaultHome returns the default cipherlink home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cipherlink"
	}
	return filepath.Join(home, ".cipherlink")
}
