package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cipherlink/cipherlink/internal/output"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// statusCmd shows the current connection state.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wallet connection status",
	Long: `Run discovery, attempt a silent reconnection to the last-used provider,
and report the resulting connection state.

Example:
  cipherlink status
  cipherlink status --qr
  cipherlink status -o json`,
	RunE: runStatus,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var statusQR bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusQR, "qr", false, "render the connected account as a QR code")
}

// StatusResponse is the JSON shape of the connection state.
type StatusResponse struct {
	Connected   bool   `json:"connected"`
	Account     string `json:"account,omitempty"`
	ChainID     uint64 `json:"chain_id,omitempty"`
	Chain       string `json:"chain,omitempty"`
	ConnectorID string `json:"connector_id,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := contextWithTimeout(cmd, defaultTimeout)
	defer cancel()

	if err := app.Discover(ctx); err != nil {
		return clerr.Wrap(err, "waiting for provider discovery")
	}
	outcome := app.Manager.Reconcile(ctx, app.Registry)
	if outcome.Reconnected && outcome.MatchTier > 1 {
		output.Warning(cmd.ErrOrStderr(),
			"reconnected by wallet-name match; the exact provider from the last session was not found")
	}

	state := app.Manager.State()
	response := StatusResponse{
		Connected:   state.Connected,
		Account:     state.Account,
		ChainID:     uint64(state.ChainID),
		ConnectorID: state.ConnectorID,
	}
	if state.Connected {
		response.Chain = state.ChainID.Name()
	}

	w := cmd.OutOrStdout()
	if formatter.Format() == output.FormatJSON {
		return writeJSON(w, response)
	}

	if !state.Connected {
		outln(w, "Not connected")
		output.Notice(w, "run 'cipherlink connect' to establish a session")
		return nil
	}

	outln(w, "Connected")
	out(w, "  Account:   %s\n", state.Account)
	out(w, "  Chain:     %s (%d)\n", response.Chain, response.ChainID)
	out(w, "  Connector: %s\n", state.ConnectorID)

	if statusQR {
		outln(w)
		return output.RenderAccountQR(os.Stdout, state.Account)
	}
	return nil
}
