package fhevm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/chain"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// BundleURL is the fixed production relayer bundle endpoint.
const BundleURL = "https://cdn.zama.ai/relayer-sdk-js/0.2.0/relayer-sdk-js.umd.cjs"

// bundleMarker must appear in the fetched bundle; its absence means the
// endpoint served something other than the relayer distribution.
const bundleMarker = "relayerSDK"

// LoadStatus tracks the relayer bundle singleton. Transitions are
// monotonic except error, which only an explicit Reset clears.
type LoadStatus string

// Bundle load states.
const (
	StatusNotLoaded LoadStatus = "not-loaded"
	StatusLoading   LoadStatus = "loading"
	StatusLoaded    LoadStatus = "loaded"
	StatusError     LoadStatus = "error"
)

// SDK is the handle exposed by a loaded relayer bundle: default network
// configuration plus the instance factory.
type SDK interface {
	DefaultSepoliaConfig() InstanceConfig
	CreateInstance(ctx context.Context, cfg InstanceConfig) (Instance, error)
}

// FetchFunc retrieves and validates the relayer bundle, returning its
// SDK handle. Injectable for tests.
type FetchFunc func(ctx context.Context) (SDK, error)

// Loader guards the process-wide relayer bundle load. Concurrent Load
// calls share a single in-flight fetch; a failed load latches to error
// until Reset.
type Loader struct {
	mu      sync.Mutex
	status  LoadStatus
	sdk     SDK
	loadErr error
	pending chan struct{}

	fetch  FetchFunc
	logger *zap.Logger
}

// NewLoader creates a loader in the not-loaded state. A nil fetch uses
// the HTTP bundle fetcher.
func NewLoader(fetch FetchFunc, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetch == nil {
		fetch = fetchBundle
	}
	return &Loader{status: StatusNotLoaded, fetch: fetch, logger: logger}
}

// Status returns the current load state.
func (l *Loader) Status() LoadStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Install pre-populates the SDK handle, the way an already-present
// global short-circuits loading. The next Load observes loaded.
func (l *Loader) Install(sdk SDK) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sdk = sdk
	l.status = StatusLoaded
	l.loadErr = nil
}

// Load returns the SDK handle, fetching the bundle at most once per
// process. Callers arriving during an in-flight fetch wait for it and
// share its outcome.
func (l *Loader) Load(ctx context.Context) (SDK, error) {
	for {
		l.mu.Lock()
		switch l.status {
		case StatusLoaded:
			sdk := l.sdk
			l.mu.Unlock()
			return sdk, nil

		case StatusError:
			err := l.loadErr
			l.mu.Unlock()
			return nil, err

		case StatusLoading:
			pending := l.pending
			l.mu.Unlock()
			select {
			case <-pending:
			case <-ctx.Done():
				return nil, clerr.Wrap(ctx.Err(), "waiting for bundle load")
			}

		case StatusNotLoaded:
			if l.sdk != nil {
				l.status = StatusLoaded
				sdk := l.sdk
				l.mu.Unlock()
				return sdk, nil
			}
			l.status = StatusLoading
			l.pending = make(chan struct{})
			pending := l.pending
			l.mu.Unlock()

			sdk, err := l.fetch(ctx)

			l.mu.Lock()
			if err != nil {
				l.status = StatusError
				l.loadErr = clerr.WithCause(clerr.ErrSDKLoad, err)
				l.logger.Error("relayer bundle load failed", zap.Error(err))
			} else {
				l.status = StatusLoaded
				l.sdk = sdk
				l.logger.Info("relayer bundle loaded")
			}
			close(pending)
			l.mu.Unlock()
		}
	}
}

// Reset returns the loader to not-loaded, clearing any latched error
// and handle. An in-flight fetch still completes but its result is
// superseded by the next Load.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = StatusNotLoaded
	l.sdk = nil
	l.loadErr = nil
}

// fetchBundle downloads the relayer bundle and verifies it carries the
// factory marker before handing out the SDK.
func fetchBundle(ctx context.Context) (SDK, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	body, err := chain.Retry(ctx, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, BundleURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, chain.WrapRetryable(err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("bundle endpoint returned %s", resp.Status)
			if resp.StatusCode >= http.StatusInternalServerError {
				return nil, chain.WrapRetryable(err)
			}
			return nil, err
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}

	if !bytes.Contains(body, []byte(bundleMarker)) {
		return nil, clerr.WithDetails(clerr.ErrSDKNotAvailable,
			map[string]string{"url": BundleURL, "reason": "bundle does not expose the relayer factory"})
	}

	return newRelayerSDK(), nil
}
