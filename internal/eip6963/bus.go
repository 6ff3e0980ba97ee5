// Package eip6963 implements the provider announce/request broadcast
// protocol and the registry of discovered signing providers. The Bus stands
// in for the page-wide event target of the browser convention: providers
// announce themselves on it, and the registry asks attached providers to
// re-announce on startup.
package eip6963

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/eip1193"
)

// ProviderInfo identifies an announced provider.
type ProviderInfo struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	RDNS string `json:"rdns"`
}

// ProviderDetail pairs a provider identity with its capability handle.
type ProviderDetail struct {
	Info     ProviderInfo
	Provider eip1193.Provider
}

// AnnounceHandler receives provider announcements.
type AnnounceHandler func(ProviderDetail)

// RequestHandler is invoked when someone asks providers to announce.
type RequestHandler func()

// Bus is the process-wide announce/request broadcaster. Subscription
// release functions must be invoked on teardown. A handler panic is caught
// and logged so one misbehaving provider cannot block fan-out to others.
type Bus struct {
	mu           sync.RWMutex
	nextID       int
	announceSubs map[int]AnnounceHandler
	requestSubs  map[int]RequestHandler
	logger       *zap.Logger
}

// NewBus creates an empty broadcast bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		announceSubs: make(map[int]AnnounceHandler),
		requestSubs:  make(map[int]RequestHandler),
		logger:       logger,
	}
}

// SubscribeAnnounce registers a handler for provider announcements and
// returns its release function.
func (b *Bus) SubscribeAnnounce(fn AnnounceHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.announceSubs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.announceSubs, id)
	}
}

// SubscribeRequest registers a handler for announce requests and returns
// its release function. Providers subscribe here so they can re-announce
// when a late consumer asks.
func (b *Bus) SubscribeRequest(fn RequestHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.requestSubs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.requestSubs, id)
	}
}

// Announce broadcasts a provider announcement to all announce subscribers.
func (b *Bus) Announce(detail ProviderDetail) {
	for _, fn := range b.announceSnapshot() {
		b.dispatch(func() { fn(detail) })
	}
}

// RequestProviders broadcasts an announce request to all attached providers.
func (b *Bus) RequestProviders() {
	b.mu.RLock()
	handlers := make([]RequestHandler, 0, len(b.requestSubs))
	for _, fn := range b.requestSubs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		b.dispatch(fn)
	}
}

func (b *Bus) announceSnapshot() []AnnounceHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlers := make([]AnnounceHandler, 0, len(b.announceSubs))
	for _, fn := range b.announceSubs {
		handlers = append(handlers, fn)
	}
	return handlers
}

// dispatch runs a handler, isolating panics from the broadcast loop.
func (b *Bus) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("broadcast handler panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
