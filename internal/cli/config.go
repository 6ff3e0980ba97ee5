package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cipherlink/cipherlink/internal/config"
	"github.com/cipherlink/cipherlink/internal/output"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify CipherLink configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.cipherlink/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.

Example:
  cipherlink config init
  cipherlink config init --force`,
	RunE: runConfigInit,
}

// configShowCmd shows the current configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the current configuration settings.

Example:
  cipherlink config show
  cipherlink config show -o json`,
	RunE: runConfigShow,
}

// configGetCmd gets a specific configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value by its path.

The path uses dot notation to navigate the configuration tree.

Examples:
  cipherlink config get wallet.preferred_marker
  cipherlink config get networks.sepolia.rpc
  cipherlink config get logging.level`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value by its path.

The path uses dot notation to navigate the configuration tree.
The configuration file will be updated immediately.

Examples:
  cipherlink config set wallet.preferred_marker rabby
  cipherlink config set discovery.grace_window_ms 250
  cipherlink config set logging.level debug`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return clerr.WithSuggestion(
			clerr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	// Ensure directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Create default config
	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home

	// Write config file
	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - wallet.preferred_marker: Which provider brand to prefer")
	outln(w, "  - networks.sepolia.rpc: Your Sepolia RPC endpoint")
	outln(w, "  - relayer.metadata_endpoint: Local node for mock sessions")
	outln(w, "  - logging.level: Log level (off/error/info/debug)")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	format := formatter.Format()

	if format == output.FormatJSON {
		return displayConfigJSON(w, cfg)
	}

	return displayConfigText(w, cfg)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	path := args[0]

	value, err := getConfigValue(cfg, path)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	outln(w, value)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := args[0]
	value := args[1]

	// Validate the path exists
	if _, err := getConfigValue(cfg, path); err != nil {
		return err
	}

	// Load current config from file
	configPath := config.Path(cfg.Home)
	currentCfg, err := config.Load(configPath)
	if err != nil {
		// If file doesn't exist, start with defaults
		currentCfg = config.Defaults()
		currentCfg.Home = cfg.Home
	}

	// Update the value
	if err := setConfigValue(currentCfg, path, value); err != nil {
		return err
	}

	// Save updated config
	if err := config.Save(currentCfg, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Set %s = %s\n", path, value)

	return nil
}

// getConfigValue retrieves a value from the config using dot notation.
func getConfigValue(c *config.Config, path string) (string, error) {
	parts := strings.Split(path, ".")

	switch len(parts) {
	case 1:
		switch parts[0] {
		case "home":
			return c.Home, nil
		default:
			return "", clerr.WithDetails(
				clerr.ErrUnknownConfigKey,
				map[string]string{"key": parts[0]},
			)
		}
	case 2:
		switch parts[0] {
		case "wallet":
			return getWalletValue(c, parts[1])
		case "discovery":
			return getDiscoveryValue(c, parts[1])
		case "relayer":
			return getRelayerValue(c, parts[1])
		case "storage":
			return getStorageValue(c, parts[1])
		case "output":
			return getOutputValue(c, parts[1])
		case "logging":
			return getLoggingValue(c, parts[1])
		default:
			return "", clerr.WithDetails(
				clerr.ErrUnknownConfigKey,
				map[string]string{"section": parts[0]},
			)
		}
	case 3:
		switch parts[0] {
		case "networks":
			return getNetworkValue(c, parts[1], parts[2])
		default:
			return "", clerr.WithDetails(
				clerr.ErrUnknownConfigKey,
				map[string]string{"section": parts[0]},
			)
		}
	default:
		return "", clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"path": path},
		)
	}
}

func getWalletValue(c *config.Config, key string) (string, error) {
	switch key {
	case "preferred_marker":
		return c.Wallet.PreferredMarker, nil
	case "dev_mnemonic":
		return maskMnemonic(c.Wallet.DevMnemonic), nil
	case "dev_accounts":
		return strconv.Itoa(c.Wallet.DevAccounts), nil
	case "signature_passphrase":
		return maskSecret(c.Wallet.SignaturePassphrase), nil
	default:
		return "", clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "wallet", "key": key},
		)
	}
}

func getDiscoveryValue(c *config.Config, key string) (string, error) {
	switch key {
	case "grace_window_ms":
		return strconv.Itoa(c.Discovery.GraceWindowMS), nil
	default:
		return "", clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "discovery", "key": key},
		)
	}
}

func getRelayerValue(c *config.Config, key string) (string, error) {
	switch key {
	case "url":
		return c.Relayer.URL, nil
	case "bundle_url":
		return c.Relayer.BundleURL, nil
	case "metadata_endpoint":
		return c.Relayer.MetadataEndpoint, nil
	default:
		return "", clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "relayer", "key": key},
		)
	}
}

func getStorageValue(c *config.Config, key string) (string, error) {
	switch key {
	case "file":
		return c.StorePath(), nil
	default:
		return "", clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "storage", "key": key},
		)
	}
}

func getOutputValue(c *config.Config, key string) (string, error) {
	switch key {
	case "default_format":
		return c.Output.DefaultFormat, nil
	case "verbose":
		return fmt.Sprintf("%t", c.Output.Verbose), nil
	case "color":
		return c.Output.Color, nil
	default:
		return "", clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "output", "key": key},
		)
	}
}

func getLoggingValue(c *config.Config, key string) (string, error) {
	switch key {
	case "level":
		return c.Logging.Level, nil
	case "file":
		return c.Logging.File, nil
	case "format":
		return c.Logging.Format, nil
	default:
		return "", clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "logging", "key": key},
		)
	}
}

func getNetworkValue(c *config.Config, network, key string) (string, error) {
	if key != "rpc" {
		return "", clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "networks." + network, "key": key},
		)
	}

	switch network {
	case "sepolia":
		return c.Networks.Sepolia.RPC, nil
	case "localhost":
		return c.Networks.Localhost.RPC, nil
	default:
		return "", clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"network": network},
		)
	}
}

// setConfigValue sets a value in the config using dot notation.
func setConfigValue(c *config.Config, path, value string) error {
	parts := strings.Split(path, ".")

	switch len(parts) {
	case 1:
		switch parts[0] {
		case "home":
			c.Home = value
			return nil
		default:
			return clerr.WithDetails(
				clerr.ErrUnknownConfigKey,
				map[string]string{"key": parts[0]},
			)
		}
	case 2:
		switch parts[0] {
		case "wallet":
			return setWalletValue(c, parts[1], value)
		case "discovery":
			return setDiscoveryValue(c, parts[1], value)
		case "relayer":
			return setRelayerValue(c, parts[1], value)
		case "storage":
			return setStorageValue(c, parts[1], value)
		case "output":
			return setOutputValue(c, parts[1], value)
		case "logging":
			return setLoggingValue(c, parts[1], value)
		default:
			return clerr.WithDetails(
				clerr.ErrUnknownConfigKey,
				map[string]string{"section": parts[0]},
			)
		}
	case 3:
		switch parts[0] {
		case "networks":
			return setNetworkValue(c, parts[1], parts[2], value)
		default:
			return clerr.WithDetails(
				clerr.ErrUnknownConfigKey,
				map[string]string{"section": parts[0]},
			)
		}
	default:
		return clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"path": path},
		)
	}
}

func setWalletValue(c *config.Config, key, value string) error {
	switch key {
	case "preferred_marker":
		c.Wallet.PreferredMarker = strings.ToLower(value)
		return nil
	case "dev_mnemonic":
		c.Wallet.DevMnemonic = value
		return nil
	case "dev_accounts":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return clerr.WithDetails(
				clerr.ErrConfigInvalid,
				map[string]string{"value": value, "valid": "a positive integer"},
			)
		}
		c.Wallet.DevAccounts = n
		return nil
	case "signature_passphrase":
		c.Wallet.SignaturePassphrase = value
		return nil
	default:
		return clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "wallet", "key": key},
		)
	}
}

func setDiscoveryValue(c *config.Config, key, value string) error {
	switch key {
	case "grace_window_ms":
		ms, err := strconv.Atoi(value)
		if err != nil || ms < 0 {
			return clerr.WithDetails(
				clerr.ErrConfigInvalid,
				map[string]string{"value": value, "valid": "a non-negative integer"},
			)
		}
		c.Discovery.GraceWindowMS = ms
		return nil
	default:
		return clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "discovery", "key": key},
		)
	}
}

func setRelayerValue(c *config.Config, key, value string) error {
	switch key {
	case "url":
		c.Relayer.URL = value
		return nil
	case "bundle_url":
		c.Relayer.BundleURL = value
		return nil
	case "metadata_endpoint":
		c.Relayer.MetadataEndpoint = value
		return nil
	default:
		return clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "relayer", "key": key},
		)
	}
}

func setStorageValue(c *config.Config, key, value string) error {
	switch key {
	case "file":
		c.Storage.File = value
		return nil
	default:
		return clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "storage", "key": key},
		)
	}
}

func setOutputValue(c *config.Config, key, value string) error {
	switch key {
	case "default_format":
		if value != "text" && value != "json" && value != "auto" {
			return clerr.WithDetails(
				clerr.ErrConfigInvalid,
				map[string]string{"value": value, "valid": "text, json, or auto"},
			)
		}
		c.Output.DefaultFormat = value
		return nil
	case "verbose":
		c.Output.Verbose = value == "true"
		return nil
	case "color":
		if value != "auto" && value != "always" && value != "never" {
			return clerr.WithDetails(
				clerr.ErrConfigInvalid,
				map[string]string{"value": value, "valid": "auto, always, or never"},
			)
		}
		c.Output.Color = value
		return nil
	default:
		return clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "output", "key": key},
		)
	}
}

func setLoggingValue(c *config.Config, key, value string) error {
	switch key {
	case "level":
		c.Logging.Level = strings.ToLower(value)
		return nil
	case "file":
		c.Logging.File = value
		return nil
	case "format":
		if value != "json" && value != "console" {
			return clerr.WithDetails(
				clerr.ErrConfigInvalid,
				map[string]string{"value": value, "valid": "json or console"},
			)
		}
		c.Logging.Format = value
		return nil
	default:
		return clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "logging", "key": key},
		)
	}
}

func setNetworkValue(c *config.Config, network, key, value string) error {
	if key != "rpc" {
		return clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"section": "networks." + network, "key": key},
		)
	}

	switch network {
	case "sepolia":
		c.Networks.Sepolia.RPC = value
		return nil
	case "localhost":
		c.Networks.Localhost.RPC = value
		return nil
	default:
		return clerr.WithDetails(
			clerr.ErrUnknownConfigKey,
			map[string]string{"network": network},
		)
	}
}

// maskMnemonic hides all but the first two words of a mnemonic.
func maskMnemonic(mnemonic string) string {
	if mnemonic == "" {
		return "(not configured)"
	}
	words := strings.Fields(mnemonic)
	if len(words) <= 2 {
		return "***"
	}
	return words[0] + " " + words[1] + " ..."
}

// maskSecret hides a secret value entirely, only revealing presence.
func maskSecret(secret string) string {
	if secret == "" {
		return "(not configured)"
	}
	return "***"
}

// displayConfigText shows the config in text format.
func displayConfigText(w io.Writer, c *config.Config) error {
	outln(w, "Configuration:")
	outln(w)
	out(w, "  Home: %s\n", c.Home)
	outln(w)
	outln(w, "  Wallet:")
	out(w, "    preferred_marker: %s\n", c.Wallet.PreferredMarker)
	out(w, "    dev_mnemonic: %s\n", maskMnemonic(c.Wallet.DevMnemonic))
	out(w, "    dev_accounts: %d\n", c.Wallet.DevAccounts)
	out(w, "    signature_passphrase: %s\n", maskSecret(c.Wallet.SignaturePassphrase))
	outln(w)
	outln(w, "  Discovery:")
	out(w, "    grace_window_ms: %d\n", c.Discovery.GraceWindowMS)
	outln(w)
	outln(w, "  Networks:")
	out(w, "    sepolia.rpc: %s\n", c.Networks.Sepolia.RPC)
	out(w, "    localhost.rpc: %s\n", c.Networks.Localhost.RPC)
	outln(w)
	outln(w, "  Relayer:")
	url := c.Relayer.URL
	if url == "" {
		url = "(bundle default)"
	}
	out(w, "    url: %s\n", url)
	out(w, "    bundle_url: %s\n", c.Relayer.BundleURL)
	out(w, "    metadata_endpoint: %s\n", c.Relayer.MetadataEndpoint)
	outln(w)
	outln(w, "  Storage:")
	out(w, "    file: %s\n", c.StorePath())
	outln(w)
	outln(w, "  Output:")
	out(w, "    default_format: %s\n", c.Output.DefaultFormat)
	out(w, "    verbose: %t\n", c.Output.Verbose)
	out(w, "    color: %s\n", c.Output.Color)
	outln(w)
	outln(w, "  Logging:")
	out(w, "    level: %s\n", c.Logging.Level)
	out(w, "    file: %s\n", c.Logging.File)
	out(w, "    format: %s\n", c.Logging.Format)

	return nil
}

// displayConfigJSON shows the config in JSON format, masking secrets.
func displayConfigJSON(w io.Writer, c *config.Config) error {
	type networkJSON struct {
		RPC string `json:"rpc"`
	}
	type configJSON struct {
		Version int    `json:"version"`
		Home    string `json:"home"`
		Wallet  struct {
			PreferredMarker     string `json:"preferred_marker"`
			DevMnemonic         string `json:"dev_mnemonic"`
			DevAccounts         int    `json:"dev_accounts"`
			SignaturePassphrase string `json:"signature_passphrase"`
		} `json:"wallet"`
		Discovery struct {
			GraceWindowMS int `json:"grace_window_ms"`
		} `json:"discovery"`
		Networks struct {
			Sepolia   networkJSON `json:"sepolia"`
			Localhost networkJSON `json:"localhost"`
		} `json:"networks"`
		Relayer struct {
			URL              string `json:"url,omitempty"`
			BundleURL        string `json:"bundle_url"`
			MetadataEndpoint string `json:"metadata_endpoint"`
		} `json:"relayer"`
		Storage struct {
			File string `json:"file"`
		} `json:"storage"`
		Output struct {
			DefaultFormat string `json:"default_format"`
			Color         string `json:"color"`
			Verbose       bool   `json:"verbose"`
		} `json:"output"`
		Logging struct {
			Level  string `json:"level"`
			File   string `json:"file"`
			Format string `json:"format"`
		} `json:"logging"`
	}

	outCfg := configJSON{
		Version: c.Version,
		Home:    c.Home,
	}
	outCfg.Wallet.PreferredMarker = c.Wallet.PreferredMarker
	outCfg.Wallet.DevMnemonic = maskMnemonic(c.Wallet.DevMnemonic)
	outCfg.Wallet.DevAccounts = c.Wallet.DevAccounts
	outCfg.Wallet.SignaturePassphrase = maskSecret(c.Wallet.SignaturePassphrase)
	outCfg.Discovery.GraceWindowMS = c.Discovery.GraceWindowMS
	outCfg.Networks.Sepolia = networkJSON{RPC: c.Networks.Sepolia.RPC}
	outCfg.Networks.Localhost = networkJSON{RPC: c.Networks.Localhost.RPC}
	outCfg.Relayer.URL = c.Relayer.URL
	outCfg.Relayer.BundleURL = c.Relayer.BundleURL
	outCfg.Relayer.MetadataEndpoint = c.Relayer.MetadataEndpoint
	outCfg.Storage.File = c.StorePath()
	outCfg.Output.DefaultFormat = c.Output.DefaultFormat
	outCfg.Output.Color = c.Output.Color
	outCfg.Output.Verbose = c.Output.Verbose
	outCfg.Logging.Level = c.Logging.Level
	outCfg.Logging.File = c.Logging.File
	outCfg.Logging.Format = c.Logging.Format

	return writeJSON(w, outCfg)
}
