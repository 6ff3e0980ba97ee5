package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cipherlink/cipherlink/internal/eip6963"
	"github.com/cipherlink/cipherlink/internal/output"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// providersCmd lists the signing providers visible to discovery.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List discovered signing providers",
	Long: `Run provider discovery and list every signing provider that announced
itself within the grace window. Preferred providers sort first.

Example:
  cipherlink providers
  cipherlink providers -o json`,
	RunE: runProviders,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(providersCmd)
}

// ProviderResponse is the JSON shape of a discovered provider.
type ProviderResponse struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	RDNS      string `json:"rdns"`
	Preferred bool   `json:"preferred"`
}

func runProviders(cmd *cobra.Command, _ []string) error {
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

	providers := app.Registry.Providers()
	marker := strings.ToLower(app.Registry.PreferredMarker())

	w := cmd.OutOrStdout()
	if formatter.Format() == output.FormatJSON {
		responses := make([]ProviderResponse, 0, len(providers))
		for _, p := range providers {
			responses = append(responses, ProviderResponse{
				UUID:      p.Info.UUID,
				Name:      p.Info.Name,
				RDNS:      p.Info.RDNS,
				Preferred: isPreferredName(p.Info.Name, marker),
			})
		}
		return writeJSON(w, responses)
	}

	if len(providers) == 0 {
		outln(w, "No signing providers announced themselves.")
		return nil
	}

	table := output.NewTable("", "NAME", "RDNS", "UUID")
	for _, p := range providers {
		mark := ""
		if isPreferredName(p.Info.Name, marker) {
			mark = "*"
		}
		table.AddRow(mark, p.Info.Name, p.Info.RDNS, p.Info.UUID)
	}
	if err := table.Render(w); err != nil {
		return err
	}
	outln(w)
	out(w, "%d provider(s); * matches the preferred marker %q\n", len(providers), marker)
	return nil
}

// isPreferredName reports whether the provider name carries the
// preferred marker.
func isPreferredName(name, marker string) bool {
	return marker != "" && strings.Contains(strings.ToLower(name), marker)
}

// resolveProvider picks a provider by connector id, name, or rdns.
func resolveProvider(providers []eip6963.ProviderDetail, selector string) (eip6963.ProviderDetail, bool) {
	for _, p := range providers {
		if p.Info.UUID == selector ||
			strings.EqualFold(p.Info.Name, selector) ||
			strings.EqualFold(p.Info.RDNS, selector) {
			return p, true
		}
	}
	return eip6963.ProviderDetail{}, false
}
