package wallet

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/eip1193"
	"github.com/cipherlink/cipherlink/internal/eip6963"
)

// ReconcileOutcome reports what the startup reconciliation did.
type ReconcileOutcome struct {
	// Reconnected is true when a silent reconnection succeeded.
	Reconnected bool

	// MatchTier records which matching tier selected the provider; 1 is
	// an exact connector id match, higher tiers are heuristic.
	MatchTier int
}

// Reconcile attempts a one-shot silent reconnection to the provider
// recorded by the last successful connect. It waits for discovery to
// settle, matches the persisted connector identity against the current
// providers with a tiered policy, verifies the persisted account is
// still available, and connects without a permission prompt. Every
// failure mode clears the persisted data and stops quietly; the caller
// just observes the normal disconnected state. Subsequent calls are
// no-ops.
func (m *Manager) Reconcile(ctx context.Context, reg *eip6963.Registry) ReconcileOutcome {
	m.mu.Lock()
	if m.reconciled {
		m.mu.Unlock()
		return ReconcileOutcome{}
	}
	m.reconciled = true
	m.mu.Unlock()

	if err := reg.WaitSettled(ctx); err != nil {
		m.logger.Warn("discovery did not settle before reconciliation", zap.Error(err))
		return ReconcileOutcome{}
	}

	data, ok := m.store.load()
	if !ok {
		return ReconcileOutcome{}
	}

	detail, tier, ok := matchProvider(reg.Providers(), reg.PreferredMarker(), data.LastConnectorID)
	if !ok {
		m.logger.Info("persisted provider no longer available",
			zap.String("connector_id", data.LastConnectorID))
		m.store.clear()
		return ReconcileOutcome{}
	}
	if tier > 1 {
		// A heuristic match can pick a different installed instance of
		// the same-branded wallet than the one originally used.
		m.logger.Warn("reconnecting to heuristically matched provider",
			zap.Int("match_tier", tier),
			zap.String("persisted_connector_id", data.LastConnectorID),
			zap.String("matched_connector_id", detail.Info.UUID))
	}

	raw, err := detail.Provider.Request(ctx, eip1193.MethodAccounts)
	if err != nil {
		m.logger.Info("reconciliation account query failed", zap.Error(err))
		m.store.clear()
		return ReconcileOutcome{}
	}
	accounts, err := eip1193.DecodeAccounts(raw)
	if err != nil || !containsAccount(accounts, data.LastAccounts[0]) {
		m.store.clear()
		return ReconcileOutcome{}
	}

	if res := m.Connect(ctx, detail, false); !res.Success {
		m.logger.Info("silent reconnection failed", zap.Error(res.Err))
		m.store.clear()
		return ReconcileOutcome{}
	}

	return ReconcileOutcome{Reconnected: true, MatchTier: tier}
}

// matchProvider applies the tiered reconnection policy, first match
// wins:
//
//  1. exact connector id match
//  2. marker in the provider name AND in the persisted connector id
//  3. marker in the provider name
func matchProvider(providers []eip6963.ProviderDetail, marker, lastConnectorID string) (eip6963.ProviderDetail, int, bool) {
	for _, d := range providers {
		if d.Info.UUID == lastConnectorID {
			return d, 1, true
		}
	}

	marker = strings.ToLower(marker)
	if marker == "" {
		return eip6963.ProviderDetail{}, 0, false
	}

	if strings.Contains(strings.ToLower(lastConnectorID), marker) {
		for _, d := range providers {
			if strings.Contains(strings.ToLower(d.Info.Name), marker) {
				return d, 2, true
			}
		}
	}

	for _, d := range providers {
		if strings.Contains(strings.ToLower(d.Info.Name), marker) {
			return d, 3, true
		}
	}

	return eip6963.ProviderDetail{}, 0, false
}

func containsAccount(accounts []string, account string) bool {
	for _, a := range accounts {
		if strings.EqualFold(a, account) {
			return true
		}
	}
	return false
}
