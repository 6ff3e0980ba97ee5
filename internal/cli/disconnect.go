package cli

import (
	"github.com/spf13/cobra"

	"github.com/cipherlink/cipherlink/internal/output"
)

// disconnectCmd tears down the wallet connection.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect the wallet",
	Long: `Clear the wallet connection and all persisted session data, including
cached decryption signatures. Safe to run when not connected.

Example:
  cipherlink disconnect`,
	RunE: runDisconnect,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(disconnectCmd)
}

func runDisconnect(cmd *cobra.Command, _ []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	app.Manager.Disconnect()

	return output.FormatSuccess(cmd.OutOrStdout(), "Wallet disconnected", formatter.Format())
}
