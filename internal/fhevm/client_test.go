package fhevm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/eip1193/eip1193test"
	"github.com/cipherlink/cipherlink/internal/fhevm"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// newMetadataServer serves a node whose fhevm_relayer_metadata method
// returns the given object.
func newMetadataServer(t *testing.T, metadata any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "fhevm_relayer_metadata", req.Method)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  metadata,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func validMetadata() map[string]string {
	return map[string]string{
		"ACLAddress":           "0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D",
		"InputVerifierAddress": "0x901F8942346f7AB3a01F6D7613119Bca447Bb030",
		"KMSVerifierAddress":   "0x12B064FB845C1cc05e9493856a1D637a73e944bE",
	}
}

func newClient(t *testing.T, loader *fhevm.Loader, endpoint string) *fhevm.Client {
	t.Helper()
	return fhevm.NewClient(loader, zap.NewNop(), fhevm.WithMetadataEndpoint(endpoint))
}

func TestClient_RequiresProviderAndChain(t *testing.T) {
	t.Parallel()

	c := fhevm.NewClient(nil, zap.NewNop())

	_, err := c.CreateInstance(context.Background(), fhevm.CreateOptions{
		ChainID: chain.Sepolia,
	})
	assert.ErrorIs(t, err, clerr.ErrNoProvider)

	_, err = c.CreateInstance(context.Background(), fhevm.CreateOptions{
		Provider: eip1193test.New([]string{"0xabc"}, chain.Sepolia),
	})
	assert.ErrorIs(t, err, clerr.ErrNoChainID)
}

func TestClient_MockPath(t *testing.T) {
	t.Parallel()

	srv := newMetadataServer(t, validMetadata())
	c := newClient(t, nil, srv.URL)

	inst, err := c.CreateInstance(context.Background(), fhevm.CreateOptions{
		Provider: eip1193test.New([]string{"0xabc"}, chain.Localhost),
		ChainID:  chain.Localhost,
	})
	require.NoError(t, err)

	assert.Equal(t, chain.Localhost, inst.ChainID())
	assert.Equal(t, "0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D", inst.ACLAddress())
	assert.NotEmpty(t, inst.PublicKey())
}

func TestClient_MockPathMetadataValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		metadata any
	}{
		{name: "missing field", metadata: map[string]string{
			"ACLAddress":           "0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D",
			"InputVerifierAddress": "0x901F8942346f7AB3a01F6D7613119Bca447Bb030",
		}},
		{name: "malformed address", metadata: map[string]string{
			"ACLAddress":           "not-an-address",
			"InputVerifierAddress": "0x901F8942346f7AB3a01F6D7613119Bca447Bb030",
			"KMSVerifierAddress":   "0x12B064FB845C1cc05e9493856a1D637a73e944bE",
		}},
		{name: "missing hex prefix", metadata: map[string]string{
			"ACLAddress":           "50157CFfD6bBFA2DECe204a89ec419c23ef5755D",
			"InputVerifierAddress": "0x901F8942346f7AB3a01F6D7613119Bca447Bb030",
			"KMSVerifierAddress":   "0x12B064FB845C1cc05e9493856a1D637a73e944bE",
		}},
		{name: "not an object", metadata: "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newMetadataServer(t, tt.metadata)
			c := newClient(t, nil, srv.URL)

			_, err := c.CreateInstance(context.Background(), fhevm.CreateOptions{
				Provider: eip1193test.New([]string{"0xabc"}, chain.Localhost),
				ChainID:  chain.Localhost,
			})
			assert.ErrorIs(t, err, clerr.ErrMetadataUnavailable)
		})
	}
}

func TestClient_MockPathNodeUnreachable(t *testing.T) {
	t.Parallel()

	srv := newMetadataServer(t, validMetadata())
	srv.Close()
	c := newClient(t, nil, srv.URL)

	_, err := c.CreateInstance(context.Background(), fhevm.CreateOptions{
		Provider: eip1193test.New([]string{"0xabc"}, chain.Localhost),
		ChainID:  chain.Localhost,
	})
	assert.ErrorIs(t, err, clerr.ErrMetadataUnavailable)
}

func TestClient_RelayerPathMergesConfig(t *testing.T) {
	t.Parallel()

	loader := fhevm.NewLoader(func(context.Context) (fhevm.SDK, error) {
		return &fakeSDK{}, nil
	}, zap.NewNop())
	c := fhevm.NewClient(loader, zap.NewNop())

	inst, err := c.CreateInstance(context.Background(), fhevm.CreateOptions{
		Provider: eip1193test.New([]string{"0xabc"}, chain.Sepolia),
		ChainID:  chain.Sepolia,
		Overrides: &fhevm.InstanceConfig{
			ACLAddress: "0x0000000000000000000000000000000000000b22",
		},
	})
	require.NoError(t, err)

	// defaults come from the SDK, overrides win
	assert.Equal(t, chain.Sepolia, inst.ChainID())
	assert.Equal(t, "0x0000000000000000000000000000000000000b22", inst.ACLAddress())
}

func TestClient_RelayerPathPropagatesLoadFailure(t *testing.T) {
	t.Parallel()

	loader := fhevm.NewLoader(func(context.Context) (fhevm.SDK, error) {
		return nil, assert.AnError
	}, zap.NewNop())
	c := fhevm.NewClient(loader, zap.NewNop())

	_, err := c.CreateInstance(context.Background(), fhevm.CreateOptions{
		Provider: eip1193test.New([]string{"0xabc"}, chain.Sepolia),
		ChainID:  chain.Sepolia,
	})
	assert.ErrorIs(t, err, clerr.ErrSDKLoad)
}

func TestClient_RelayerPathPropagatesFactoryError(t *testing.T) {
	t.Parallel()

	loader := fhevm.NewLoader(func(context.Context) (fhevm.SDK, error) {
		return &fakeSDK{createErr: assert.AnError}, nil
	}, zap.NewNop())
	c := fhevm.NewClient(loader, zap.NewNop())

	_, err := c.CreateInstance(context.Background(), fhevm.CreateOptions{
		Provider: eip1193test.New([]string{"0xabc"}, chain.Sepolia),
		ChainID:  chain.Sepolia,
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestClient_ResetClearsLoaderState(t *testing.T) {
	t.Parallel()

	loader := fhevm.NewLoader(func(context.Context) (fhevm.SDK, error) {
		return nil, assert.AnError
	}, zap.NewNop())
	c := fhevm.NewClient(loader, zap.NewNop())

	_, err := c.CreateInstance(context.Background(), fhevm.CreateOptions{
		Provider: eip1193test.New([]string{"0xabc"}, chain.Sepolia),
		ChainID:  chain.Sepolia,
	})
	require.ErrorIs(t, err, clerr.ErrSDKLoad)
	require.Equal(t, fhevm.StatusError, loader.Status())

	c.Reset()
	assert.Equal(t, fhevm.StatusNotLoaded, loader.Status())
}
