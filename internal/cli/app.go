package cli

import (
	"context"
	"time"

	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/devwallet"
	"github.com/cipherlink/cipherlink/internal/eip6963"
	"github.com/cipherlink/cipherlink/internal/fhevm"
	"github.com/cipherlink/cipherlink/internal/storage"
	"github.com/cipherlink/cipherlink/internal/wallet"
)

// App wires the session subsystems a command needs: persistent storage,
// provider discovery, the connection manager, and the
// confidential-session factory. Commands build one, use it, and close it.
type App struct {
	KV       *storage.FileStorage
	Bus      *eip6963.Bus
	Registry *eip6963.Registry
	Manager  *wallet.Manager
	Session  *fhevm.Client
	Dev      *devwallet.Wallet

	releases []func()
}

// newApp assembles the application from the global configuration.
func newApp() (*App, error) {
	kv := storage.NewFileStorage(cfg.StorePath(), logger)

	session := fhevm.NewClient(
		fhevm.NewLoader(nil, logger),
		logger,
		fhevm.WithMetadataEndpoint(cfg.Relayer.MetadataEndpoint),
	)

	manager := wallet.NewManager(kv, logger, wallet.WithSessionResetter(session))

	bus := eip6963.NewBus(logger)
	registry := eip6963.NewRegistry(bus, logger,
		eip6963.WithPreferredMarker(cfg.Wallet.PreferredMarker),
		eip6963.WithGraceWindow(time.Duration(cfg.Discovery.GraceWindowMS)*time.Millisecond),
	)

	dev, err := devwallet.New(
		cfg.Wallet.DevMnemonic,
		cfg.Wallet.DevAccounts,
		chain.Localhost,
		logger,
		devwallet.WithApproval(promptApproval),
		devwallet.WithGrantStore(kv),
	)
	if err != nil {
		return nil, err
	}

	return &App{
		KV:       kv,
		Bus:      bus,
		Registry: registry,
		Manager:  manager,
		Session:  session,
		Dev:      dev,
	}, nil
}

// Discover announces the dev wallet, starts discovery, and waits for
// the announcement window to settle.
func (a *App) Discover(ctx context.Context) error {
	a.releases = append(a.releases, a.Dev.Announce(a.Bus))
	a.Registry.Start()
	return a.Registry.WaitSettled(ctx)
}

// Close detaches announced providers and stops discovery.
func (a *App) Close() {
	for _, release := range a.releases {
		release()
	}
	a.releases = nil
	a.Registry.Stop()
}
