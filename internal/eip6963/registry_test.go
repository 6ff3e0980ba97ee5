package eip6963_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/eip1193/eip1193test"
	"github.com/cipherlink/cipherlink/internal/eip6963"
)

const testGrace = 20 * time.Millisecond

func newTestRegistry(t *testing.T, bus *eip6963.Bus) *eip6963.Registry {
	t.Helper()
	r := eip6963.NewRegistry(bus, zap.NewNop(), eip6963.WithGraceWindow(testGrace))
	t.Cleanup(r.Stop)
	return r
}

func detail(uuid, name string) eip6963.ProviderDetail {
	return eip6963.ProviderDetail{
		Info: eip6963.ProviderInfo{
			UUID: uuid,
			Name: name,
			Icon: "data:image/svg+xml;base64,",
			RDNS: "io." + uuid,
		},
		Provider: eip1193test.New([]string{"0xabc"}, chain.Localhost),
	}
}

func waitSettled(t *testing.T, r *eip6963.Registry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.WaitSettled(ctx))
}

func TestRegistry_DiscoversAnnouncedProviders(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())
	r := newTestRegistry(t, bus)
	r.Start()

	bus.Announce(detail("p-1", "Acme Wallet"))
	waitSettled(t, r)

	providers := r.Providers()
	require.Len(t, providers, 1)
	assert.Equal(t, "Acme Wallet", providers[0].Info.Name)
	assert.False(t, r.Loading())
}

func TestRegistry_RequestTriggersAttachedProviders(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())

	// A provider already attached to the bus re-announces on request, the
	// way extension wallets respond to the request broadcast.
	d := detail("p-1", "Acme Wallet")
	release := bus.SubscribeRequest(func() { bus.Announce(d) })
	defer release()

	r := newTestRegistry(t, bus)
	r.Start()
	waitSettled(t, r)

	require.Len(t, r.Providers(), 1)
}

func TestRegistry_UpsertDeduplicates(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())
	r := newTestRegistry(t, bus)
	r.Start()

	d := detail("p-1", "Acme Wallet")
	bus.Announce(d)
	bus.Announce(d) // identical re-announce is a no-op
	bus.Announce(d)

	waitSettled(t, r)
	require.Len(t, r.Providers(), 1)
}

func TestRegistry_ReannounceWithChangedFieldsReplaces(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())
	r := newTestRegistry(t, bus)
	r.Start()

	d := detail("p-1", "Acme Wallet")
	bus.Announce(d)

	renamed := d
	renamed.Info.Name = "Acme Wallet Pro"
	bus.Announce(renamed)

	waitSettled(t, r)
	providers := r.Providers()
	require.Len(t, providers, 1)
	assert.Equal(t, "Acme Wallet Pro", providers[0].Info.Name)
}

func TestRegistry_IgnoresAnnouncementWithoutUUID(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())
	r := newTestRegistry(t, bus)
	r.Start()

	bus.Announce(detail("", "Nameless"))
	waitSettled(t, r)
	assert.Empty(t, r.Providers())
}

func TestRegistry_EmptySettleIsTerminal(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())
	r := newTestRegistry(t, bus)
	r.Start()

	assert.True(t, r.Loading())
	waitSettled(t, r)
	assert.False(t, r.Loading())
	assert.Empty(t, r.Providers())
}

func TestRegistry_NilBusSettlesImmediately(t *testing.T) {
	t.Parallel()

	r := eip6963.NewRegistry(nil, zap.NewNop())
	r.Start()

	assert.False(t, r.Loading())
	waitSettled(t, r)
	assert.Empty(t, r.Providers())
}

func TestRegistry_Sorting(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())
	r := newTestRegistry(t, bus)
	r.Start()

	bus.Announce(detail("p-3", "Zebra Wallet"))
	bus.Announce(detail("p-1", "Acme Wallet"))
	bus.Announce(detail("p-2", "MetaMask"))

	waitSettled(t, r)
	providers := r.Providers()
	require.Len(t, providers, 3)
	assert.Equal(t, "MetaMask", providers[0].Info.Name)
	assert.Equal(t, "Acme Wallet", providers[1].Info.Name)
	assert.Equal(t, "Zebra Wallet", providers[2].Info.Name)
}

func TestRegistry_SortingCaseInsensitiveMarker(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())
	r := newTestRegistry(t, bus)
	r.Start()

	bus.Announce(detail("p-1", "Acme Wallet"))
	bus.Announce(detail("p-2", "METAMASK FLASK"))

	waitSettled(t, r)
	providers := r.Providers()
	require.Len(t, providers, 2)
	assert.Equal(t, "METAMASK FLASK", providers[0].Info.Name)
}

func TestRegistry_StopDiscardsLateAnnouncements(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())
	r := newTestRegistry(t, bus)
	r.Start()
	r.Stop()

	bus.Announce(detail("p-1", "Acme Wallet"))
	assert.Empty(t, r.Providers())
	assert.False(t, r.Loading())
}

func TestRegistry_RestartSupersedesPreviousRun(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())
	r := newTestRegistry(t, bus)

	// Rapid restart: only the latest run may mutate state.
	r.Start()
	r.Start()

	bus.Announce(detail("p-1", "Acme Wallet"))
	waitSettled(t, r)
	require.Len(t, r.Providers(), 1)
}

func TestRegistry_Find(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())
	r := newTestRegistry(t, bus)
	r.Start()

	bus.Announce(detail("p-1", "Acme Wallet"))
	waitSettled(t, r)

	found, ok := r.Find("p-1")
	require.True(t, ok)
	assert.Equal(t, "Acme Wallet", found.Info.Name)

	_, ok = r.Find("p-404")
	assert.False(t, ok)
}

func TestBus_HandlerPanicIsolated(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())

	release := bus.SubscribeAnnounce(func(eip6963.ProviderDetail) { panic("boom") })
	defer release()

	received := 0
	release2 := bus.SubscribeAnnounce(func(eip6963.ProviderDetail) { received++ })
	defer release2()

	bus.Announce(detail("p-1", "Acme Wallet"))
	assert.Equal(t, 1, received)
}

func TestBus_ReleaseStopsDelivery(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())

	received := 0
	release := bus.SubscribeAnnounce(func(eip6963.ProviderDetail) { received++ })
	bus.Announce(detail("p-1", "Acme Wallet"))
	release()
	bus.Announce(detail("p-2", "Other Wallet"))

	assert.Equal(t, 1, received)
}
