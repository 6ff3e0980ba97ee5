package fhevm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cipherlink/cipherlink/internal/chain"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// newRelayerServer fakes the relayer REST surface.
func newRelayerServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/keyurl", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"publicKey": base64.StdEncoding.EncodeToString([]byte("relayer-public-key")),
		})
	})
	mux.HandleFunc("/v1/input-proof", func(w http.ResponseWriter, r *http.Request) {
		var req inputProofRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		handles := make([]string, len(req.Values))
		for i := range req.Values {
			handles[i] = base64.StdEncoding.EncodeToString([]byte{byte(i + 1)})
		}
		_ = json.NewEncoder(w).Encode(inputProofResponse{
			Handles:    handles,
			InputProof: base64.StdEncoding.EncodeToString([]byte("proof")),
		})
	})
	mux.HandleFunc("/v1/user-decrypt", func(w http.ResponseWriter, r *http.Request) {
		var req userDecryptRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		results := make(map[string]string, len(req.Handles))
		for _, h := range req.Handles {
			results[h] = base64.StdEncoding.EncodeToString([]byte("plain:" + h))
		}
		_ = json.NewEncoder(w).Encode(userDecryptResponse{Results: results})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRelayerInstance(t *testing.T) Instance {
	t.Helper()

	srv := newRelayerServer(t)
	sdk := newRelayerSDK()

	cfg := sdk.DefaultSepoliaConfig()
	cfg.RelayerURL = srv.URL

	inst, err := sdk.CreateInstance(context.Background(), cfg)
	require.NoError(t, err)
	return inst
}

func TestRelayerSDK_DefaultSepoliaConfig(t *testing.T) {
	t.Parallel()

	cfg := newRelayerSDK().DefaultSepoliaConfig()
	assert.Equal(t, chain.Sepolia, cfg.ChainID)
	assert.Equal(t, chain.GatewayChainID, cfg.GatewayChainID)
	assert.Equal(t, sepoliaACLAddress, cfg.ACLAddress)
	assert.Equal(t, sepoliaRelayerURL, cfg.RelayerURL)
}

func TestRelayerSDK_CreateInstanceValidation(t *testing.T) {
	t.Parallel()

	sdk := newRelayerSDK()

	_, err := sdk.CreateInstance(context.Background(), InstanceConfig{ChainID: chain.Sepolia})
	assert.ErrorIs(t, err, clerr.ErrInvalidInput)

	_, err = sdk.CreateInstance(context.Background(), InstanceConfig{RelayerURL: "https://relayer.example"})
	assert.ErrorIs(t, err, clerr.ErrNoChainID)
}

func TestRelayerInstance_FetchesPublicKey(t *testing.T) {
	t.Parallel()

	inst := newTestRelayerInstance(t)
	assert.Equal(t, []byte("relayer-public-key"), inst.PublicKey())
}

func TestRelayerInstance_InputProof(t *testing.T) {
	t.Parallel()

	inst := newTestRelayerInstance(t)

	bundle, err := inst.CreateEncryptedInput("0xcontract", "0xuser").
		Add64(1).
		AddBool(false).
		AddBytes([]byte("x")).
		Encrypt(context.Background())
	require.NoError(t, err)

	assert.Len(t, bundle.Handles, 3)
	assert.Equal(t, []byte("proof"), bundle.InputProof)
}

func TestRelayerInstance_UserDecrypt(t *testing.T) {
	t.Parallel()

	inst := newTestRelayerInstance(t)

	out, err := inst.UserDecrypt(context.Background(), DecryptRequest{
		Handles:     []string{"h1", "h2"},
		Signature:   "0xsig",
		UserAddress: "0xuser",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("plain:h1"), out["h1"])
	assert.Equal(t, []byte("plain:h2"), out["h2"])
}

func TestRelayerInstance_ServerErrorSurfacesAsNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	sdk := newRelayerSDK()
	cfg := sdk.DefaultSepoliaConfig()
	cfg.RelayerURL = srv.URL

	_, err := sdk.CreateInstance(context.Background(), cfg)
	assert.ErrorIs(t, err, clerr.ErrNetworkError)
}
