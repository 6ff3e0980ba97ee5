// Package wallet owns the single active signing-provider connection. It
// implements the connect/disconnect/switch-network state machine, wires
// provider notifications into state transitions, persists the last
// successful connection, and reconciles it silently on startup.
package wallet

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/eip1193"
	"github.com/cipherlink/cipherlink/internal/eip6963"
	"github.com/cipherlink/cipherlink/internal/storage"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// ConnectionState is a snapshot of the active connection. Connected is
// true iff Account, ChainID, and Provider are all set.
type ConnectionState struct {
	Connected   bool
	Account     string
	ChainID     chain.ID
	ConnectorID string
	Provider    eip1193.Provider
}

// ConnectResult is the structured outcome of a Connect call. Err is set
// iff Success is false.
type ConnectResult struct {
	Success bool
	Account string
	ChainID chain.ID
	Err     error
}

// SwitchResult is the structured outcome of a SwitchNetwork call. On
// success ChainID echoes the requested target; the local connection
// state is only updated by the provider's chainChanged notification.
type SwitchResult struct {
	Success bool
	ChainID chain.ID
	Err     error
}

// SessionResetter tears down a confidential-session binding when the
// connection it was built on goes away.
type SessionResetter interface {
	Reset()
}

// Manager is the connection state machine. Construct with NewManager;
// the zero value is not usable.
type Manager struct {
	mu         sync.Mutex
	state      ConnectionState
	connecting bool
	lastErr    error
	releases   []func()
	reconciled bool

	store   *store
	events  *fanout
	ambient eip1193.Provider
	session SessionResetter
	logger  *zap.Logger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithAmbientProvider sets the well-known ambient provider handle used
// as the event-attachment fallback.
func WithAmbientProvider(p eip1193.Provider) ManagerOption {
	return func(m *Manager) { m.ambient = p }
}

// WithSessionResetter registers the session factory to reset on
// disconnect.
func WithSessionResetter(s SessionResetter) ManagerOption {
	return func(m *Manager) { m.session = s }
}

// NewManager creates a disconnected Manager persisting to kv.
func NewManager(kv storage.StringStorage, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		store:  &store{kv: kv, logger: logger},
		events: newFanout(logger),
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a snapshot of the current connection.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastConnectionError returns the error recorded by the most recent
// failed Connect, or nil.
func (m *Manager) LastConnectionError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Subscribe registers a lifecycle event handler and returns its release
// function. Handlers receive read-only snapshots; a panicking handler is
// logged and does not block delivery to others.
func (m *Manager) Subscribe(fn EventHandler) func() {
	return m.events.subscribe(fn)
}

// IsNetworkSupported reports whether id is a recognized network.
func (m *Manager) IsNetworkSupported(id chain.ID) bool {
	return chain.IsSupported(id)
}

// Connect establishes the active connection against the given provider.
// Calls are serialized by an in-flight guard: a concurrent call fails
// fast with ErrAlreadyConnecting instead of queuing. When
// requestPermission is set the provider may prompt its user and reject.
// Failure leaves any prior connection untouched.
func (m *Manager) Connect(ctx context.Context, detail eip6963.ProviderDetail, requestPermission bool) ConnectResult {
	m.mu.Lock()
	if m.connecting {
		m.mu.Unlock()
		return ConnectResult{Err: clerr.ErrAlreadyConnecting}
	}
	m.connecting = true
	m.mu.Unlock()

	res := m.connect(ctx, detail, requestPermission)

	m.mu.Lock()
	m.connecting = false
	if res.Err != nil {
		m.lastErr = res.Err
	} else {
		m.lastErr = nil
	}
	m.mu.Unlock()

	return res
}

func (m *Manager) connect(ctx context.Context, detail eip6963.ProviderDetail, requestPermission bool) ConnectResult {
	provider := detail.Provider
	if provider == nil {
		return ConnectResult{Err: clerr.ErrNoProvider}
	}

	if requestPermission {
		if _, err := provider.Request(ctx, eip1193.MethodRequestAccounts); err != nil {
			if eip1193.IsUserRejection(err) {
				return ConnectResult{Err: clerr.WithCause(clerr.ErrUserRejected, err)}
			}
			return ConnectResult{Err: clerr.Wrap(err, "requesting account access")}
		}
	}

	raw, err := provider.Request(ctx, eip1193.MethodAccounts)
	if err != nil {
		return ConnectResult{Err: clerr.Wrap(err, "querying accounts")}
	}
	accounts, err := eip1193.DecodeAccounts(raw)
	if err != nil {
		return ConnectResult{Err: clerr.Wrap(err, "decoding accounts")}
	}
	if len(accounts) == 0 {
		return ConnectResult{Err: clerr.ErrNoAccounts}
	}

	raw, err = provider.Request(ctx, eip1193.MethodChainID)
	if err != nil {
		return ConnectResult{Err: clerr.Wrap(err, "querying chain id")}
	}
	chainID, err := eip1193.DecodeChainID(raw)
	if err != nil {
		return ConnectResult{Err: clerr.Wrap(err, "decoding chain id")}
	}

	m.mu.Lock()
	m.releaseListenersLocked()
	m.state = ConnectionState{
		Connected:   true,
		Account:     accounts[0],
		ChainID:     chainID,
		ConnectorID: detail.Info.UUID,
		Provider:    provider,
	}
	m.store.save(detail.Info.UUID, accounts, chainID)
	m.attachListenersLocked(provider)
	m.mu.Unlock()

	m.logger.Info("wallet connected",
		zap.String("connector_id", detail.Info.UUID),
		zap.String("account", accounts[0]),
		zap.Uint64("chain_id", uint64(chainID)))

	m.emit(EventConnect)
	return ConnectResult{Success: true, Account: accounts[0], ChainID: chainID}
}

// Disconnect resets the connection to empty, releases provider
// listeners, clears persisted data, and resets the session binding. It
// is idempotent and callable from any state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	wasConnected := m.state.Connected
	m.releaseListenersLocked()
	m.state = ConnectionState{}
	m.mu.Unlock()

	m.store.clear()
	if m.session != nil {
		m.session.Reset()
	}

	if wasConnected {
		m.logger.Info("wallet disconnected")
	}
	m.emit(EventDisconnect)
}

// SwitchNetwork asks the active provider to switch chains. A user
// rejection (code 4001) maps to ErrUserRejected. On success the target
// id is echoed back without touching local state; the chainChanged
// notification is the authoritative update.
func (m *Manager) SwitchNetwork(ctx context.Context, target chain.ID) SwitchResult {
	m.mu.Lock()
	if !m.state.Connected {
		m.mu.Unlock()
		return SwitchResult{Err: clerr.ErrNotConnected}
	}
	provider := m.state.Provider
	m.mu.Unlock()

	_, err := provider.Request(ctx, eip1193.MethodSwitchChain, eip1193.NewSwitchChainParam(target))
	if err != nil {
		if eip1193.IsUserRejection(err) {
			return SwitchResult{Err: clerr.WithCause(clerr.ErrUserRejected, err)}
		}
		return SwitchResult{Err: clerr.Wrap(err, "switching network")}
	}

	return SwitchResult{Success: true, ChainID: target}
}

// emit snapshots the state and fans the event out.
func (m *Manager) emit(t EventType) {
	m.events.emit(Event{Type: t, State: m.State()})
}

// attachListenersLocked wires provider notifications into the state
// machine. Attachment failure falls back to the ambient handle when the
// active provider is that same handle; if both paths fail the
// connection stays usable without live updates.
func (m *Manager) attachListenersLocked(provider eip1193.Provider) {
	releases, err := m.subscribeProvider(provider)
	if err != nil && m.ambient != nil && m.ambient == provider {
		releases, err = m.subscribeProvider(m.ambient)
	}
	if err != nil {
		m.logger.Warn("provider does not support notifications, live updates disabled", zap.Error(err))
		return
	}
	m.releases = releases
}

func (m *Manager) subscribeProvider(provider eip1193.Provider) ([]func(), error) {
	subs := []struct {
		event string
		fn    eip1193.Handler
	}{
		{eip1193.EventAccountsChanged, m.onAccountsChanged},
		{eip1193.EventChainChanged, m.onChainChanged},
		{eip1193.EventConnect, m.onProviderConnect},
		{eip1193.EventDisconnect, m.onProviderDisconnect},
	}

	var releases []func()
	for _, sub := range subs {
		release, err := provider.On(sub.event, sub.fn)
		if err != nil {
			for _, fn := range releases {
				fn()
			}
			return nil, err
		}
		releases = append(releases, release)
	}
	return releases, nil
}

func (m *Manager) releaseListenersLocked() {
	for _, fn := range m.releases {
		fn()
	}
	m.releases = nil
}

// onAccountsChanged handles the provider's account notification: an
// empty list is a disconnect, a new primary account is a silent
// in-place refresh. The notification payload can lag the provider's
// real state, so a non-empty payload triggers a fresh account and
// chain query and the provider's current answer wins.
func (m *Manager) onAccountsChanged(raw json.RawMessage) {
	accounts, err := eip1193.DecodeAccounts(raw)
	if err != nil {
		m.logger.Warn("undecodable accountsChanged payload", zap.Error(err))
		return
	}

	if len(accounts) == 0 {
		m.Disconnect()
		return
	}

	m.mu.Lock()
	if !m.state.Connected {
		m.mu.Unlock()
		return
	}
	provider := m.state.Provider
	chainID := m.state.ChainID
	m.mu.Unlock()

	ctx := context.Background()
	if fresh, err := m.queryAccounts(ctx, provider); err != nil {
		m.logger.Warn("account refresh query failed, using notification payload", zap.Error(err))
	} else {
		accounts = fresh
	}
	if len(accounts) == 0 {
		m.Disconnect()
		return
	}
	if fresh, err := m.queryChainID(ctx, provider); err == nil {
		chainID = fresh
	}

	m.mu.Lock()
	if !m.state.Connected || (m.state.Account == accounts[0] && m.state.ChainID == chainID) {
		m.mu.Unlock()
		return
	}
	m.state.Account = accounts[0]
	m.state.ChainID = chainID
	m.store.save(m.state.ConnectorID, accounts, chainID)
	m.mu.Unlock()

	m.emit(EventAccountsChanged)
}

func (m *Manager) queryAccounts(ctx context.Context, provider eip1193.Provider) ([]string, error) {
	raw, err := provider.Request(ctx, eip1193.MethodAccounts)
	if err != nil {
		return nil, err
	}
	return eip1193.DecodeAccounts(raw)
}

func (m *Manager) queryChainID(ctx context.Context, provider eip1193.Provider) (chain.ID, error) {
	raw, err := provider.Request(ctx, eip1193.MethodChainID)
	if err != nil {
		return 0, err
	}
	return eip1193.DecodeChainID(raw)
}

// onChainChanged updates only the chain id in place and persists it.
// The rest of the connection is untouched.
func (m *Manager) onChainChanged(raw json.RawMessage) {
	chainID, err := eip1193.DecodeChainID(raw)
	if err != nil {
		m.logger.Warn("undecodable chainChanged payload", zap.Error(err))
		return
	}

	m.mu.Lock()
	if !m.state.Connected || m.state.ChainID == chainID {
		m.mu.Unlock()
		return
	}
	m.state.ChainID = chainID
	m.store.saveChainID(chainID)
	m.mu.Unlock()

	m.emit(EventChainChanged)
}

// onProviderConnect re-emits the provider's connect notification. The
// payload's chain id, when present, refreshes local state first.
func (m *Manager) onProviderConnect(raw json.RawMessage) {
	var payload struct {
		ChainID string `json:"chainId"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.ChainID != "" {
		if chainID, err := chain.ParseHex(payload.ChainID); err == nil {
			m.mu.Lock()
			if m.state.Connected && m.state.ChainID != chainID {
				m.state.ChainID = chainID
				m.store.saveChainID(chainID)
			}
			m.mu.Unlock()
		}
	}

	m.emit(EventConnect)
}

func (m *Manager) onProviderDisconnect(json.RawMessage) {
	m.Disconnect()
}
