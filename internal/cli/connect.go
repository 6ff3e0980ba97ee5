package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/eip1193"
	"github.com/cipherlink/cipherlink/internal/eip6963"
	"github.com/cipherlink/cipherlink/internal/output"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// connectCmd establishes a wallet connection.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var connectCmd = &cobra.Command{
	Use:   "connect [provider]",
	Short: "Connect to a signing provider",
	Long: `Connect to a signing provider discovered on the announcement bus.

The provider may be selected by connector id, display name, or rdns.
Without an argument the first discovered provider is used; preferred
providers sort first. With --silent no permission prompt is issued and
the connection only succeeds if access was already granted.

With --rpc the discovery bus is bypassed and the connection goes
straight to a node endpoint. Node connections expose whatever accounts
the node unlocks and do not survive reconciliation in later runs.

Example:
  cipherlink connect
  cipherlink connect "CipherLink Dev Wallet"
  cipherlink connect --silent
  cipherlink connect --rpc http://127.0.0.1:8545`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConnect,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	connectSilent bool
	connectRPC    string
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().BoolVar(&connectSilent, "silent", false, "do not prompt for account access")
	connectCmd.Flags().StringVar(&connectRPC, "rpc", "", "connect through a node RPC endpoint instead of a discovered provider")
}

// ConnectResponse is the JSON shape of a successful connection.
type ConnectResponse struct {
	ConnectorID string `json:"connector_id"`
	Account     string `json:"account"`
	ChainID     uint64 `json:"chain_id"`
	Chain       string `json:"chain"`
}

func runConnect(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := contextWithTimeout(cmd, defaultTimeout)
	defer cancel()

	if connectRPC != "" {
		detail, release, err := dialNodeProvider(ctx, connectRPC)
		if err != nil {
			return err
		}
		defer release()
		return finishConnect(cmd, app, detail)
	}

	if err := app.Discover(ctx); err != nil {
		return clerr.Wrap(err, "waiting for provider discovery")
	}

	providers := app.Registry.Providers()
	if len(providers) == 0 {
		return clerr.WithSuggestion(clerr.ErrNoProvider,
			"no providers announced themselves; check that a wallet is running")
	}

	detail := providers[0]
	if len(args) == 1 {
		var ok bool
		detail, ok = resolveProvider(providers, args[0])
		if !ok {
			err := clerr.WithDetails(clerr.ErrProviderNotFound,
				map[string]string{"provider": args[0]})
			names := make([]string, 0, len(providers))
			for _, p := range providers {
				names = append(names, p.Info.Name)
			}
			if suggestion := suggestClosest(args[0], names); suggestion != "" {
				err = clerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", suggestion))
			}
			return err
		}
	}

	return finishConnect(cmd, app, detail)
}

// finishConnect runs the connection attempt and renders the result.
func finishConnect(cmd *cobra.Command, app *App, detail eip6963.ProviderDetail) error {
	ctx, cancel := contextWithTimeout(cmd, defaultTimeout)
	defer cancel()

	res := app.Manager.Connect(ctx, detail, !connectSilent)
	if res.Err != nil {
		return res.Err
	}

	w := cmd.OutOrStdout()
	state := app.Manager.State()
	response := ConnectResponse{
		ConnectorID: state.ConnectorID,
		Account:     res.Account,
		ChainID:     uint64(res.ChainID),
		Chain:       res.ChainID.Name(),
	}

	if formatter.Format() == output.FormatJSON {
		return writeJSON(w, response)
	}

	out(w, "Connected to %s\n", detail.Info.Name)
	out(w, "  Account: %s\n", response.Account)
	out(w, "  Chain:   %s (%d)\n", response.Chain, response.ChainID)
	return nil
}

// dialNodeProvider wraps a node RPC endpoint as a provider detail.
func dialNodeProvider(ctx context.Context, endpoint string) (eip6963.ProviderDetail, func(), error) {
	provider, err := eip1193.DialRPC(ctx, endpoint, chain.DefaultRateLimiter())
	if err != nil {
		return eip6963.ProviderDetail{}, nil, clerr.WithCause(clerr.ErrNoProvider, err)
	}

	detail := eip6963.ProviderDetail{
		Info: eip6963.ProviderInfo{
			UUID: uuid.NewSHA1(uuid.NameSpaceURL, []byte(endpoint)).String(),
			Name: "JSON-RPC Node",
			RDNS: "node.rpc",
		},
		Provider: provider,
	}
	return detail, provider.Close, nil
}
