package wallet

import (
	"sync"

	"go.uber.org/zap"
)

// EventType identifies a connection lifecycle event.
type EventType string

// Connection lifecycle events delivered to subscribers.
const (
	EventConnect         EventType = "connect"
	EventDisconnect      EventType = "disconnect"
	EventAccountsChanged EventType = "accountsChanged"
	EventChainChanged    EventType = "chainChanged"
)

// Event carries a lifecycle transition and a snapshot of the connection
// state after it took effect. Handlers must treat the snapshot as
// read-only.
type Event struct {
	Type  EventType
	State ConnectionState
}

// EventHandler receives connection lifecycle events.
type EventHandler func(Event)

// fanout delivers events to subscribers, isolating each handler so one
// panicking subscriber cannot block delivery to the rest.
type fanout struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]EventHandler
	logger   *zap.Logger
}

func newFanout(logger *zap.Logger) *fanout {
	return &fanout{
		handlers: make(map[int]EventHandler),
		logger:   logger,
	}
}

// subscribe registers a handler and returns its release function.
// Releasing twice is harmless.
func (f *fanout) subscribe(fn EventHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.handlers[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

// emit delivers the event to every current subscriber.
func (f *fanout) emit(ev Event) {
	f.mu.Lock()
	handlers := make([]EventHandler, 0, len(f.handlers))
	for _, fn := range f.handlers {
		handlers = append(handlers, fn)
	}
	f.mu.Unlock()

	for _, fn := range handlers {
		f.dispatch(fn, ev)
	}
}

func (f *fanout) dispatch(fn EventHandler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("event handler panicked",
				zap.String("event", string(ev.Type)), zap.Any("panic", r))
		}
	}()
	fn(ev)
}
