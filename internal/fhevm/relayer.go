package fhevm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cipherlink/cipherlink/internal/chain"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// Sepolia deployment defaults shipped with the relayer bundle.
const (
	sepoliaACLAddress           = "0x687820221192C5B662b25367F70076A37bc79b6c"
	sepoliaKMSVerifierAddress   = "0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC"
	sepoliaInputVerifierAddress = "0xbc91f3daD1A5F19F8390c400196e58073B6a0BC4"
	sepoliaVerifyingDecryptAddr = "0xb6E160B1ff80D67Bfe90A85eE06Ce0A2613607D1"
	sepoliaVerifyingInputAddr   = "0x7048C39f048125eDa9d678AEbaDfB22F7900a29F"
	sepoliaRelayerURL           = "https://relayer.testnet.zama.cloud"
)

// relayerSDK is the handle a successfully loaded bundle exposes.
type relayerSDK struct {
	httpClient *http.Client
	limiter    *chain.RateLimiter
}

// Compile-time interface check
var _ SDK = (*relayerSDK)(nil)

func newRelayerSDK() *relayerSDK {
	return &relayerSDK{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    chain.DefaultRateLimiter(),
	}
}

// DefaultSepoliaConfig returns the bundle's well-known Sepolia network
// configuration, used as the base for caller overrides.
func (s *relayerSDK) DefaultSepoliaConfig() InstanceConfig {
	return InstanceConfig{
		ACLAddress:               sepoliaACLAddress,
		KMSVerifierAddress:       sepoliaKMSVerifierAddress,
		InputVerifierAddress:     sepoliaInputVerifierAddress,
		VerifyingContractDecrypt: sepoliaVerifyingDecryptAddr,
		VerifyingContractInput:   sepoliaVerifyingInputAddr,
		ChainID:                  chain.Sepolia,
		GatewayChainID:           chain.GatewayChainID,
		RelayerURL:               sepoliaRelayerURL,
	}
}

// CreateInstance builds a relayer-backed instance from cfg.
func (s *relayerSDK) CreateInstance(ctx context.Context, cfg InstanceConfig) (Instance, error) {
	if cfg.RelayerURL == "" {
		return nil, clerr.WithDetails(clerr.ErrInvalidInput, map[string]string{"reason": "relayer URL is required"})
	}
	if cfg.ChainID == 0 {
		return nil, clerr.ErrNoChainID
	}

	inst := &relayerInstance{cfg: cfg, httpClient: s.httpClient, limiter: s.limiter}
	if err := inst.fetchPublicKey(ctx); err != nil {
		return nil, err
	}
	return inst, nil
}

// relayerInstance talks to the production relayer service.
type relayerInstance struct {
	cfg        InstanceConfig
	httpClient *http.Client
	limiter    *chain.RateLimiter
	publicKey  []byte
}

// Compile-time interface check
var _ Instance = (*relayerInstance)(nil)

func (r *relayerInstance) ChainID() chain.ID {
	return r.cfg.ChainID
}

func (r *relayerInstance) ACLAddress() string {
	return r.cfg.ACLAddress
}

func (r *relayerInstance) PublicKey() []byte {
	return append([]byte(nil), r.publicKey...)
}

func (r *relayerInstance) CreateEncryptedInput(contractAddress, userAddress string) EncryptedInput {
	return &relayerInput{
		instance: r,
		contract: contractAddress,
		user:     userAddress,
	}
}

func (r *relayerInstance) UserDecrypt(ctx context.Context, req DecryptRequest) (map[string][]byte, error) {
	payload := userDecryptRequest{
		Handles:           req.Handles,
		PublicKey:         req.PublicKey,
		Signature:         req.Signature,
		ContractAddresses: req.ContractAddresses,
		UserAddress:       req.UserAddress,
		StartTimestamp:    req.StartTimestamp,
		DurationDays:      req.DurationDays,
		ChainID:           uint64(r.cfg.ChainID),
		VerifyingContract: r.cfg.VerifyingContractDecrypt,
	}

	var resp userDecryptResponse
	if err := r.post(ctx, "/v1/user-decrypt", payload, &resp); err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(resp.Results))
	for handle, encoded := range resp.Results {
		plaintext, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, clerr.Wrap(err, "decoding decrypted payload")
		}
		out[handle] = plaintext
	}
	return out, nil
}

func (r *relayerInstance) fetchPublicKey(ctx context.Context) error {
	var resp struct {
		PublicKey string `json:"publicKey"`
	}
	if err := r.post(ctx, "/v1/keyurl", struct{}{}, &resp); err != nil {
		return err
	}

	key, err := base64.StdEncoding.DecodeString(resp.PublicKey)
	if err != nil {
		return clerr.Wrap(err, "decoding relayer public key")
	}
	r.publicKey = key
	return nil
}

func (r *relayerInstance) post(ctx context.Context, path string, payload, out any) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, r.cfg.RelayerURL); err != nil {
			return clerr.Wrap(err, "waiting for relayer rate limit")
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return clerr.Wrap(err, "encoding relayer request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.RelayerURL+path, bytes.NewReader(body))
	if err != nil {
		return clerr.Wrap(err, "building relayer request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return clerr.WithCause(clerr.ErrNetworkError, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return clerr.Wrap(err, "reading relayer response")
	}
	if resp.StatusCode != http.StatusOK {
		return clerr.WithDetails(clerr.ErrNetworkError,
			map[string]string{"status": resp.Status, "body": truncate(data, 200)})
	}

	if err := json.Unmarshal(data, out); err != nil {
		return clerr.Wrap(err, "decoding relayer response")
	}
	return nil
}

// relayerInput submits accumulated values for remote encryption.
type relayerInput struct {
	instance *relayerInstance
	contract string
	user     string
	values   []inputValue
}

type inputValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (in *relayerInput) Add64(v uint64) EncryptedInput {
	in.values = append(in.values, inputValue{Type: "uint64", Value: fmt.Sprintf("%d", v)})
	return in
}

func (in *relayerInput) AddBool(v bool) EncryptedInput {
	in.values = append(in.values, inputValue{Type: "bool", Value: fmt.Sprintf("%t", v)})
	return in
}

func (in *relayerInput) AddBytes(v []byte) EncryptedInput {
	in.values = append(in.values, inputValue{Type: "bytes", Value: base64.StdEncoding.EncodeToString(v)})
	return in
}

func (in *relayerInput) Encrypt(ctx context.Context) (*CiphertextBundle, error) {
	if len(in.values) == 0 {
		return nil, clerr.WithDetails(clerr.ErrInvalidInput, map[string]string{"reason": "encrypted input has no values"})
	}

	payload := inputProofRequest{
		ContractAddress: in.contract,
		UserAddress:     in.user,
		ChainID:         uint64(in.instance.cfg.ChainID),
		Values:          in.values,
	}

	var resp inputProofResponse
	if err := in.instance.post(ctx, "/v1/input-proof", payload, &resp); err != nil {
		return nil, err
	}

	bundle := &CiphertextBundle{Handles: make([][]byte, 0, len(resp.Handles))}
	for _, encoded := range resp.Handles {
		handle, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, clerr.Wrap(err, "decoding ciphertext handle")
		}
		bundle.Handles = append(bundle.Handles, handle)
	}

	proof, err := base64.StdEncoding.DecodeString(resp.InputProof)
	if err != nil {
		return nil, clerr.Wrap(err, "decoding input proof")
	}
	bundle.InputProof = proof
	return bundle, nil
}

type inputProofRequest struct {
	ContractAddress string       `json:"contractAddress"`
	UserAddress     string       `json:"userAddress"`
	ChainID         uint64       `json:"chainId"`
	Values          []inputValue `json:"values"`
}

type inputProofResponse struct {
	Handles    []string `json:"handles"`
	InputProof string   `json:"inputProof"`
}

type userDecryptRequest struct {
	Handles           []string `json:"handles"`
	PublicKey         string   `json:"publicKey"`
	Signature         string   `json:"signature"`
	ContractAddresses []string `json:"contractAddresses"`
	UserAddress       string   `json:"userAddress"`
	StartTimestamp    int64    `json:"startTimestamp"`
	DurationDays      int64    `json:"durationDays"`
	ChainID           uint64   `json:"chainId"`
	VerifyingContract string   `json:"verifyingContract"`
}

type userDecryptResponse struct {
	Results map[string]string `json:"results"`
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
