package eip1193

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/cipherlink/cipherlink/internal/chain"
)

// RPCProvider adapts a plain JSON-RPC node endpoint to the Provider
// interface. It is read-only in the permission sense: eth_requestAccounts
// degrades to eth_accounts because a node has no user to prompt, and it
// emits no notifications.
type RPCProvider struct {
	endpoint string
	client   *rpc.Client
	limiter  *chain.RateLimiter
}

// Compile-time interface check
var _ Provider = (*RPCProvider)(nil)

// DialRPC connects to a node endpoint and wraps it as a Provider.
// A nil limiter disables rate limiting.
func DialRPC(ctx context.Context, endpoint string, limiter *chain.RateLimiter) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}

	return &RPCProvider{
		endpoint: endpoint,
		client:   client,
		limiter:  limiter,
	}, nil
}

// Endpoint returns the node endpoint URL.
func (p *RPCProvider) Endpoint() string {
	return p.endpoint
}

// Request performs the provider call against the node.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, p.endpoint); err != nil {
			return nil, err
		}
	}

	switch method {
	case MethodRequestAccounts:
		// Nodes have no permission prompt; the unlocked account list is
		// the grant.
		method = MethodAccounts
	case MethodSwitchChain:
		return nil, &RPCError{
			Code:    CodeUnsupportedMethod,
			Message: "node endpoints cannot switch networks",
		}
	}

	var result json.RawMessage
	if err := p.client.CallContext(ctx, &result, method, params...); err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	return result, nil
}

// On always fails: node endpoints emit no provider notifications.
func (p *RPCProvider) On(_ string, _ Handler) (func(), error) {
	return nil, ErrEventsUnsupported
}

// Close releases the underlying RPC connection.
func (p *RPCProvider) Close() {
	p.client.Close()
}
