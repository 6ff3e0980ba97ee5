package config

import (
	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/devwallet"
	"github.com/cipherlink/cipherlink/internal/eip6963"
	"github.com/cipherlink/cipherlink/internal/fhevm"
)

// Defaults returns the default configuration.
func Defaults() *Config {
	sepolia, _ := chain.Lookup(chain.Sepolia)
	localhost, _ := chain.Lookup(chain.Localhost)

	return &Config{
		Version: 1,
		Home:    "~/.cipherlink",
		Wallet: WalletConfig{
			PreferredMarker: eip6963.DefaultPreferredMarker,
			DevMnemonic:     devwallet.DefaultMnemonic,
			DevAccounts:     3,
		},
		Discovery: DiscoveryConfig{
			GraceWindowMS: int(eip6963.DefaultGraceWindow.Milliseconds()),
		},
		Networks: NetworksConfig{
			Sepolia:   NetworkConfig{RPC: sepolia.RPCURL},
			Localhost: NetworkConfig{RPC: localhost.RPCURL},
		},
		Relayer: RelayerConfig{
			BundleURL:        fhevm.BundleURL,
			MetadataEndpoint: fhevm.DefaultMetadataEndpoint,
		},
		Storage: StorageConfig{
			File: "",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level:  "error",
			File:   "~/.cipherlink/cipherlink.log",
			Format: "console",
		},
	}
}
