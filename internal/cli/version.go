package cli

import (
	"github.com/spf13/cobra"

	"github.com/cipherlink/cipherlink/internal/output"
	"github.com/cipherlink/cipherlink/internal/version"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// BuildInfo carries version metadata injected at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var buildInfo BuildInfo

// SetBuildInfo records the build metadata printed by the version command.
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
}

// formatVersion renders build metadata in the standard one-line form.
func formatVersion(info BuildInfo) string {
	v := info.Version
	if v == "" {
		v = "dev"
	}
	commit := info.Commit
	if commit == "" {
		commit = "unknown"
	}
	date := info.Date
	if date == "" {
		date = "unknown"
	}
	return v + " (commit: " + commit + ", built: " + date + ")"
}

// versionCmd prints build metadata and optionally checks for updates.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show the cipherlink version, commit, and build date.

With --check the latest GitHub release is fetched and compared against
the running version.

Example:
  cipherlink version
  cipherlink version --check`,
	RunE: runVersion,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var versionCheck bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
}

// VersionResponse is the JSON shape of version information.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Latest  string `json:"latest,omitempty"`
	Newer   bool   `json:"update_available,omitempty"`
}

func runVersion(cmd *cobra.Command, _ []string) error {
	response := VersionResponse{
		Version: buildInfo.Version,
		Commit:  buildInfo.Commit,
		Date:    buildInfo.Date,
	}

	if versionCheck {
		ctx, cancel := contextWithTimeout(cmd, defaultTimeout)
		defer cancel()

		release, err := version.Latest(ctx)
		if err != nil {
			return clerr.WithCause(clerr.ErrNetworkError, err)
		}
		response.Latest = release.TagName
		response.Newer = version.IsNewer(buildInfo.Version, release.TagName)
	}

	w := cmd.OutOrStdout()
	if formatter.Format() == output.FormatJSON {
		return writeJSON(w, response)
	}

	outln(w, formatVersion(buildInfo))
	if versionCheck {
		if response.Newer {
			out(w, "A newer release is available: %s\n", response.Latest)
		} else {
			outln(w, "You are on the latest release.")
		}
	}
	return nil
}
