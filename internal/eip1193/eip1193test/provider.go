// Package eip1193test provides a scriptable in-memory provider for tests.
package eip1193test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/eip1193"
)

// FakeProvider is a scriptable eip1193.Provider. The zero value is not
// usable; construct with New.
type FakeProvider struct {
	mu       sync.Mutex
	accounts []string
	chainID  chain.ID

	// Errs maps a method name to the error its next invocation returns.
	Errs map[string]error

	// EventsSupported controls whether On succeeds.
	EventsSupported bool

	calls    []string
	nextSub  int
	handlers map[string]map[int]eip1193.Handler
}

// Compile-time interface check
var _ eip1193.Provider = (*FakeProvider)(nil)

// New creates a fake provider reporting the given accounts and chain.
func New(accounts []string, chainID chain.ID) *FakeProvider {
	return &FakeProvider{
		accounts:        accounts,
		chainID:         chainID,
		Errs:            make(map[string]error),
		EventsSupported: true,
		handlers:        make(map[string]map[int]eip1193.Handler),
	}
}

// SetAccounts replaces the reported account list.
func (p *FakeProvider) SetAccounts(accounts []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = accounts
}

// SetChainID replaces the reported chain id.
func (p *FakeProvider) SetChainID(id chain.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chainID = id
}

// Calls returns the methods requested so far, in order.
func (p *FakeProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// CallCount returns how many times a method was requested.
func (p *FakeProvider) CallCount(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == method {
			n++
		}
	}
	return n
}

// Request implements eip1193.Provider.
func (p *FakeProvider) Request(_ context.Context, method string, _ ...any) (json.RawMessage, error) {
	p.mu.Lock()
	p.calls = append(p.calls, method)
	err := p.Errs[method]
	accounts := append([]string(nil), p.accounts...)
	chainID := p.chainID
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	switch method {
	case eip1193.MethodAccounts, eip1193.MethodRequestAccounts:
		return mustMarshal(accounts), nil
	case eip1193.MethodChainID:
		return mustMarshal(chainID.Hex()), nil
	case eip1193.MethodSwitchChain:
		return json.RawMessage(`null`), nil
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}
}

// On implements eip1193.Provider.
func (p *FakeProvider) On(event string, fn eip1193.Handler) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.EventsSupported {
		return nil, eip1193.ErrEventsUnsupported
	}

	if p.handlers[event] == nil {
		p.handlers[event] = make(map[int]eip1193.Handler)
	}
	id := p.nextSub
	p.nextSub++
	p.handlers[event][id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.handlers[event], id)
	}, nil
}

// Emit delivers a provider notification to current subscribers.
func (p *FakeProvider) Emit(event string, payload any) {
	p.mu.Lock()
	handlers := make([]eip1193.Handler, 0, len(p.handlers[event]))
	for _, fn := range p.handlers[event] {
		handlers = append(handlers, fn)
	}
	p.mu.Unlock()

	raw := mustMarshal(payload)
	for _, fn := range handlers {
		fn(raw)
	}
}

// HandlerCount returns the number of live subscriptions for an event.
func (p *FakeProvider) HandlerCount(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers[event])
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
