package eip6963

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultGraceWindow is how long the registry keeps its loading flag up
// after broadcasting an announce request, so slow providers can respond.
const DefaultGraceWindow = 100 * time.Millisecond

// DefaultPreferredMarker is the wallet-brand marker that sorts matching
// providers to the front of the discovered list.
const DefaultPreferredMarker = "metamask"

// Registry maintains the set of providers discovered over the announce
// protocol. Records are keyed by UUID, created on first announce, updated
// in place on a changed re-announce, and live for the process session.
type Registry struct {
	bus    *Bus
	logger *zap.Logger
	marker string
	grace  time.Duration

	mu      sync.RWMutex
	records map[string]ProviderDetail
	loading bool
	epoch   int
	release func()
	settled chan struct{}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPreferredMarker overrides the preferred-wallet marker.
func WithPreferredMarker(marker string) RegistryOption {
	return func(r *Registry) { r.marker = strings.ToLower(marker) }
}

// WithGraceWindow overrides the post-request settle window.
func WithGraceWindow(d time.Duration) RegistryOption {
	return func(r *Registry) { r.grace = d }
}

// NewRegistry creates a registry bound to the given bus. The bus may be
// nil, in which case discovery settles immediately on an empty list.
func NewRegistry(bus *Bus, logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		bus:     bus,
		logger:  logger,
		marker:  DefaultPreferredMarker,
		grace:   DefaultGraceWindow,
		records: make(map[string]ProviderDetail),
		settled: closedChan(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins discovery: it subscribes to announcements, asks already
// attached providers to announce themselves, and clears the loading flag
// after the grace window. Calling Start again supersedes the previous run;
// effects from a superseded run are discarded via the epoch check.
func (r *Registry) Start() {
	r.mu.Lock()
	r.epoch++
	thisEpoch := r.epoch

	if r.release != nil {
		r.release()
		r.release = nil
	}

	if r.bus == nil {
		// No broadcast medium: absence of providers is a valid terminal
		// state, settle immediately.
		r.loading = false
		r.settled = closedChan()
		r.mu.Unlock()
		r.logger.Debug("discovery started without a broadcast bus")
		return
	}

	r.loading = true
	r.settled = make(chan struct{})
	r.mu.Unlock()

	release := r.bus.SubscribeAnnounce(func(detail ProviderDetail) {
		r.upsert(thisEpoch, detail)
	})

	r.mu.Lock()
	if thisEpoch != r.epoch {
		// Superseded while subscribing.
		r.mu.Unlock()
		release()
		return
	}
	r.release = release
	r.mu.Unlock()

	r.bus.RequestProviders()

	time.AfterFunc(r.grace, func() {
		r.clearLoading(thisEpoch)
	})
}

// Stop tears discovery down. Announcements delivered to the superseded
// subscription are discarded; in-flight grace timers become no-ops.
func (r *Registry) Stop() {
	r.mu.Lock()
	r.epoch++
	release := r.release
	r.release = nil
	if r.loading {
		r.loading = false
		close(r.settled)
	}
	r.mu.Unlock()

	if release != nil {
		release()
	}
}

// upsert records an announcement if it belongs to the current epoch.
func (r *Registry) upsert(epoch int, detail ProviderDetail) {
	if detail.Info.UUID == "" {
		r.logger.Debug("ignoring announcement without uuid", zap.String("name", detail.Info.Name))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if epoch != r.epoch {
		return
	}

	existing, ok := r.records[detail.Info.UUID]
	if ok &&
		existing.Info == detail.Info &&
		existing.Provider == detail.Provider {
		// Identical re-announce: keep the stored record for referential
		// stability.
		return
	}

	r.records[detail.Info.UUID] = detail
	if ok {
		r.logger.Debug("updated provider", zap.String("name", detail.Info.Name), zap.String("uuid", detail.Info.UUID))
	} else {
		r.logger.Debug("added provider", zap.String("name", detail.Info.Name), zap.String("uuid", detail.Info.UUID))
	}
}

func (r *Registry) clearLoading(epoch int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if epoch != r.epoch || !r.loading {
		return
	}
	r.loading = false
	close(r.settled)
}

// Loading reports whether the initial discovery pass is still in progress.
func (r *Registry) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// WaitSettled blocks until the current discovery pass settles or the
// context ends.
func (r *Registry) WaitSettled(ctx context.Context) error {
	r.mu.RLock()
	settled := r.settled
	r.mu.RUnlock()

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Find returns the provider record with the given UUID.
func (r *Registry) Find(uuid string) (ProviderDetail, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	detail, ok := r.records[uuid]
	return detail, ok
}

// Providers returns a sorted snapshot of discovered providers: names
// containing the preferred marker first, the rest alphabetically. The
// ordering is a presentation convenience, not an identity rule.
func (r *Registry) Providers() []ProviderDetail {
	r.mu.RLock()
	out := make([]ProviderDetail, 0, len(r.records))
	for _, detail := range r.records {
		out = append(out, detail)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		iPreferred := r.isPreferred(out[i].Info.Name)
		jPreferred := r.isPreferred(out[j].Info.Name)
		if iPreferred != jPreferred {
			return iPreferred
		}
		return strings.ToLower(out[i].Info.Name) < strings.ToLower(out[j].Info.Name)
	})
	return out
}

// PreferredMarker returns the configured wallet-brand marker (lowercase).
func (r *Registry) PreferredMarker() string {
	return r.marker
}

// isPreferred reports whether a provider name carries the preferred marker.
func (r *Registry) isPreferred(name string) bool {
	return strings.Contains(strings.ToLower(name), r.marker)
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
