package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptApproval asks the user to grant account access to the dev
// wallet. Non-interactive runs (pipes, CI) auto-approve; the dev wallet
// only ever holds well-known test keys.
func promptApproval(accounts []string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // G115: Fd() returns uintptr, safe conversion for term.IsTerminal
		return true, nil
	}

	outln(os.Stderr, "The dev wallet is requesting account access:")
	for _, account := range accounts {
		out(os.Stderr, "  %s\n", account)
	}
	out(os.Stderr, "\nGrant access? [y/N]: ")

	var response string
	if _, err := fmt.Scanln(&response); err != nil {
		return false, nil
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}
