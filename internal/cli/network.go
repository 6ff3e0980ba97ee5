package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/output"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// networkCmd is the parent command for network operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Inspect and switch networks",
}

// networkListCmd lists the supported networks.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supported networks",
	Long: `List the networks CipherLink can operate on.

Example:
  cipherlink network list`,
	RunE: runNetworkList,
}

// networkSwitchCmd asks the connected provider to switch chains.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var networkSwitchCmd = &cobra.Command{
	Use:   "switch <chain>",
	Short: "Switch the connected wallet to another network",
	Long: `Ask the connected signing provider to switch networks. The chain may
be given by name or decimal chain id. The local state only updates once
the provider confirms the switch.

Example:
  cipherlink network switch sepolia
  cipherlink network switch 31337`,
	Args: cobra.ExactArgs(1),
	RunE: runNetworkSwitch,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(networkCmd)
	networkCmd.AddCommand(networkListCmd)
	networkCmd.AddCommand(networkSwitchCmd)
}

// NetworkResponse is the JSON shape of a supported network.
type NetworkResponse struct {
	Name     string `json:"name"`
	ChainID  uint64 `json:"chain_id"`
	RPCURL   string `json:"rpc_url,omitempty"`
	Explorer string `json:"explorer_url,omitempty"`
}

func runNetworkList(cmd *cobra.Command, _ []string) error {
	networks := chain.Supported()
	w := cmd.OutOrStdout()

	if formatter.Format() == output.FormatJSON {
		responses := make([]NetworkResponse, 0, len(networks))
		for _, n := range networks {
			responses = append(responses, NetworkResponse{
				Name:     n.Name,
				ChainID:  uint64(n.ChainID),
				RPCURL:   n.RPCURL,
				Explorer: n.ExplorerURL,
			})
		}
		return writeJSON(w, responses)
	}

	table := output.NewTable("NAME", "CHAIN ID", "RPC")
	for _, n := range networks {
		table.AddRow(n.Name, strconv.FormatUint(uint64(n.ChainID), 10), n.RPCURL)
	}
	return table.Render(w)
}

// SwitchResponse is the JSON shape of a completed network switch.
type SwitchResponse struct {
	ChainID uint64 `json:"chain_id"`
	Chain   string `json:"chain"`
}

func runNetworkSwitch(cmd *cobra.Command, args []string) error {
	target, err := parseChainArg(args[0])
	if err != nil {
		return err
	}

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
	app.Manager.Reconcile(ctx, app.Registry)

	if !app.Manager.State().Connected {
		return clerr.WithSuggestion(clerr.ErrNotConnected,
			"run 'cipherlink connect' first")
	}

	res := app.Manager.SwitchNetwork(ctx, target)
	if res.Err != nil {
		return res.Err
	}

	w := cmd.OutOrStdout()
	if formatter.Format() == output.FormatJSON {
		return writeJSON(w, SwitchResponse{
			ChainID: uint64(res.ChainID),
			Chain:   res.ChainID.Name(),
		})
	}

	out(w, "Switched to %s (%d)\n", res.ChainID.Name(), uint64(res.ChainID))
	return nil
}

// parseChainArg resolves a chain by name or decimal id, suggesting the
// closest supported name for typos.
func parseChainArg(arg string) (chain.ID, error) {
	target, err := chain.Parse(arg)
	if err == nil {
		return target, nil
	}

	cerr := clerr.WithDetails(clerr.ErrUnsupportedChain,
		map[string]string{"chain": arg})

	names := make([]string, 0)
	for _, n := range chain.Supported() {
		names = append(names, n.Name)
	}
	if suggestion := suggestClosest(strings.ToLower(arg), names); suggestion != "" {
		return 0, clerr.WithSuggestion(cerr, fmt.Sprintf("did you mean %q?", suggestion))
	}
	return 0, cerr
}
