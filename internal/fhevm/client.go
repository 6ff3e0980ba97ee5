package fhevm

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/eip1193"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// DefaultMetadataEndpoint is the local node queried for deployment
// metadata on the development chain.
const DefaultMetadataEndpoint = "http://127.0.0.1:8545"

// metadataMethod is the node RPC exposing the confidential-computation
// deployment addresses.
const metadataMethod = "fhevm_relayer_metadata"

// relayerMetadata is the node's deployment metadata response. All three
// addresses are required and must be well-formed.
type relayerMetadata struct {
	ACLAddress           string `json:"ACLAddress"`
	InputVerifierAddress string `json:"InputVerifierAddress"`
	KMSVerifierAddress   string `json:"KMSVerifierAddress"`
}

func (m relayerMetadata) valid() bool {
	return common.IsHexAddress(m.ACLAddress) &&
		common.IsHexAddress(m.InputVerifierAddress) &&
		common.IsHexAddress(m.KMSVerifierAddress)
}

// CreateOptions are the inputs to instance construction. Provider and
// ChainID are mandatory; Overrides selectively replaces fields of the
// relayer path's default configuration.
type CreateOptions struct {
	Provider  eip1193.Provider
	ChainID   chain.ID
	Overrides *InstanceConfig
}

// Client is the confidential-session factory. It owns the bundle
// loader singleton and the remembered provider/chain binding; it does
// not cache instances.
type Client struct {
	mu            sync.Mutex
	boundProvider eip1193.Provider
	boundChain    chain.ID

	loader           *Loader
	metadataEndpoint string
	logger           *zap.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithMetadataEndpoint overrides the local metadata RPC endpoint.
func WithMetadataEndpoint(endpoint string) ClientOption {
	return func(c *Client) { c.metadataEndpoint = endpoint }
}

// NewClient creates a factory around the given loader. A nil loader
// gets the default HTTP bundle loader.
func NewClient(loader *Loader, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loader == nil {
		loader = NewLoader(nil, logger)
	}

	c := &Client{
		loader:           loader,
		metadataEndpoint: DefaultMetadataEndpoint,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Loader exposes the bundle loader, mainly for status inspection.
func (c *Client) Loader() *Loader {
	return c.loader
}

// CreateInstance produces a session instance for the given provider and
// chain. The development chain takes the mock path; everything else
// loads the relayer bundle. Construction errors from the relayer
// factory propagate unchanged.
func (c *Client) CreateInstance(ctx context.Context, opts CreateOptions) (Instance, error) {
	if opts.Provider == nil {
		return nil, clerr.ErrNoProvider
	}
	if opts.ChainID == 0 {
		return nil, clerr.ErrNoChainID
	}

	c.mu.Lock()
	c.boundProvider = opts.Provider
	c.boundChain = opts.ChainID
	c.mu.Unlock()

	if opts.ChainID == chain.Localhost {
		return c.createMock(ctx)
	}
	return c.createRelayer(ctx, opts)
}

// Reset clears the remembered provider/chain binding and the bundle
// load singleton, forcing a fresh metadata or SDK fetch on the next
// construction. Called when the active connection is torn down.
func (c *Client) Reset() {
	c.mu.Lock()
	c.boundProvider = nil
	c.boundChain = 0
	c.mu.Unlock()
	c.loader.Reset()
}

// createMock queries the local node for deployment metadata and builds
// the mock backend from it. Any metadata failure, including a malformed
// address, surfaces as ErrMetadataUnavailable.
func (c *Client) createMock(ctx context.Context) (Instance, error) {
	meta, err := c.fetchMetadata(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("constructing mock session",
		zap.String("acl", meta.ACLAddress),
		zap.Uint64("gateway_chain_id", uint64(chain.GatewayChainID)))

	return newMockInstance(InstanceConfig{
		ACLAddress:           meta.ACLAddress,
		InputVerifierAddress: meta.InputVerifierAddress,
		KMSVerifierAddress:   meta.KMSVerifierAddress,
		ChainID:              chain.Localhost,
		GatewayChainID:       chain.GatewayChainID,
		NetworkRPC:           c.metadataEndpoint,
	}), nil
}

func (c *Client) fetchMetadata(ctx context.Context) (relayerMetadata, error) {
	var meta relayerMetadata

	rpcClient, err := rpc.DialContext(ctx, c.metadataEndpoint)
	if err != nil {
		return meta, clerr.WithCause(clerr.ErrMetadataUnavailable, err)
	}
	defer rpcClient.Close()

	if err := rpcClient.CallContext(ctx, &meta, metadataMethod); err != nil {
		return meta, clerr.WithCause(clerr.ErrMetadataUnavailable, err)
	}

	if !meta.valid() {
		return meta, clerr.WithDetails(clerr.ErrMetadataUnavailable,
			map[string]string{"reason": "metadata response is missing a well-formed ACL, input-verifier, or KMS-verifier address"})
	}

	return meta, nil
}

// createRelayer loads the bundle (at most once per process) and builds
// the configuration as defaults overlaid with the caller's network and
// overrides.
func (c *Client) createRelayer(ctx context.Context, opts CreateOptions) (Instance, error) {
	sdk, err := c.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	cfg := sdk.DefaultSepoliaConfig()
	cfg.ChainID = opts.ChainID
	if network, ok := chain.Lookup(opts.ChainID); ok {
		cfg.NetworkRPC = network.RPCURL
	}
	if opts.Overrides != nil {
		cfg = mergeConfig(cfg, *opts.Overrides)
	}

	return sdk.CreateInstance(ctx, cfg)
}

// mergeConfig overlays every non-zero field of override onto base.
func mergeConfig(base, override InstanceConfig) InstanceConfig {
	if override.ACLAddress != "" {
		base.ACLAddress = override.ACLAddress
	}
	if override.KMSVerifierAddress != "" {
		base.KMSVerifierAddress = override.KMSVerifierAddress
	}
	if override.InputVerifierAddress != "" {
		base.InputVerifierAddress = override.InputVerifierAddress
	}
	if override.VerifyingContractDecrypt != "" {
		base.VerifyingContractDecrypt = override.VerifyingContractDecrypt
	}
	if override.VerifyingContractInput != "" {
		base.VerifyingContractInput = override.VerifyingContractInput
	}
	if override.ChainID != 0 {
		base.ChainID = override.ChainID
	}
	if override.GatewayChainID != 0 {
		base.GatewayChainID = override.GatewayChainID
	}
	if override.RelayerURL != "" {
		base.RelayerURL = override.RelayerURL
	}
	if override.NetworkRPC != "" {
		base.NetworkRPC = override.NetworkRPC
	}
	return base
}
