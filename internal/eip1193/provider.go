// Package eip1193 defines the capability surface of a wallet-like signing
// provider and helpers for the JSON values that cross it. The interface
// mirrors the EIP-1193 request/event convention so that browser-extension
// style wallets, node-backed providers, and in-process dev wallets are
// interchangeable to the connection layer.
package eip1193

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cipherlink/cipherlink/internal/chain"
)

// Request methods understood by providers.
const (
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodPersonalSign    = "personal_sign"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodSwitchChain     = "wallet_switchEthereumChain"

	// MethodRelayerMetadata is the custom method a local development node
	// exposes to describe its confidential-computation deployment.
	MethodRelayerMetadata = "fhevm_relayer_metadata"
)

// Provider notification events.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
)

// Well-known EIP-1193 provider error codes.
const (
	// CodeUserRejected is returned when the user declines a request.
	CodeUserRejected = 4001

	// CodeUnsupportedMethod is returned when the provider does not
	// implement the requested method.
	CodeUnsupportedMethod = 4200
)

// Handler receives the payload of a provider notification.
type Handler func(payload json.RawMessage)

// Provider is the capability handle a signing provider exposes.
//
// Request performs a provider RPC call and returns the raw JSON result.
// On subscribes to a provider notification and returns a release function
// that must be invoked on teardown; providers without notification support
// return an error from On, which callers are expected to tolerate.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	On(event string, fn Handler) (release func(), err error)
}

// RPCError is a structured provider error carrying an EIP-1193 error code.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrEventsUnsupported is returned from On by providers that cannot emit
// notifications. Connections to such providers work without live updates.
var ErrEventsUnsupported = errors.New("provider does not support event subscriptions")

// IsUserRejection reports whether err represents the user declining a
// provider request (EIP-1193 code 4001).
func IsUserRejection(err error) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == CodeUserRejected
	}
	return false
}

// DecodeAccounts decodes an eth_accounts / eth_requestAccounts result.
// Provider-reported order is preserved.
func DecodeAccounts(raw json.RawMessage) ([]string, error) {
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decoding accounts: %w", err)
	}
	return accounts, nil
}

// DecodeChainID decodes an eth_chainId result (0x-prefixed hex string).
func DecodeChainID(raw json.RawMessage) (chain.ID, error) {
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, fmt.Errorf("decoding chain id: %w", err)
	}
	return chain.ParseHex(hex)
}

// SwitchChainParam is the single parameter of wallet_switchEthereumChain.
type SwitchChainParam struct {
	ChainID string `json:"chainId"`
}

// NewSwitchChainParam builds the wallet_switchEthereumChain parameter for
// the target chain.
func NewSwitchChainParam(id chain.ID) SwitchChainParam {
	return SwitchChainParam{ChainID: id.Hex()}
}
