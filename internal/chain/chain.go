// Package chain provides network identity definitions and common utilities
// for the EVM networks CipherLink operates against.
package chain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ID is a numeric EVM chain identifier.
type ID uint64

// Recognized chain identifiers.
const (
	// Sepolia is the Ethereum Sepolia test network.
	Sepolia ID = 11155111

	// Localhost is the local development node (hardhat).
	Localhost ID = 31337

	// GatewayChainID is the fixed confidential-computation gateway chain
	// used when constructing mock sessions against a local node.
	GatewayChainID ID = 55815
)

// Network describes a recognized network.
type Network struct {
	ChainID     ID     `json:"chain_id"`
	Name        string `json:"name"`
	RPCURL      string `json:"rpc_url"`
	ExplorerURL string `json:"explorer_url"`
}

// networks is the fixed registry of recognized networks. Session
// construction is only attempted against members of this set; unrecognized
// chain ids may still be connected to but are flagged as unsupported.
var networks = map[ID]Network{
	Sepolia: {
		ChainID:     Sepolia,
		Name:        "Sepolia",
		RPCURL:      "https://sepolia.infura.io/v3/",
		ExplorerURL: "https://sepolia.etherscan.io",
	},
	Localhost: {
		ChainID:     Localhost,
		Name:        "Localhost",
		RPCURL:      "http://127.0.0.1:8545",
		ExplorerURL: "http://localhost:8545",
	},
}

// String returns the decimal string form of the chain ID.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Hex returns the 0x-prefixed hexadecimal form of the chain ID, the
// encoding used on the provider wire (eth_chainId, wallet_switchEthereumChain).
func (id ID) Hex() string {
	return hexutil.EncodeUint64(uint64(id))
}

// Name returns the human-readable network name, or the decimal chain id
// for unrecognized networks.
func (id ID) Name() string {
	if n, ok := networks[id]; ok {
		return n.Name
	}
	return id.String()
}

// IsSupported returns true if the chain ID is in the fixed allow-list of
// recognized networks.
func IsSupported(id ID) bool {
	_, ok := networks[id]
	return ok
}

// Lookup returns the network metadata for a chain ID.
func Lookup(id ID) (Network, bool) {
	n, ok := networks[id]
	return n, ok
}

// Supported returns the recognized networks sorted by chain ID.
func Supported() []Network {
	out := make([]Network, 0, len(networks))
	for _, n := range networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// ParseHex parses a 0x-prefixed hexadecimal chain ID as reported by
// providers.
func ParseHex(s string) (ID, error) {
	v, err := hexutil.DecodeUint64(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing chain id %q: %w", s, err)
	}
	return ID(v), nil
}

// Parse parses a chain ID in either decimal or 0x-prefixed hex form, and
// also accepts recognized network names case-insensitively.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return ParseHex(s)
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return ID(v), nil
	}
	for id, n := range networks {
		if strings.EqualFold(n.Name, s) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unrecognized chain %q", s)
}
