package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"
)

// defaultTimeout bounds a single command's provider and network calls.
const defaultTimeout = 30 * time.Second

// out is a helper for CLI output.
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func out(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func outln(w io.Writer, args ...interface{}) {
	fmt.Fprintln(w, args...)
}

// writeJSON encodes the value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// contextWithTimeout returns a timeout context rooted in the command context.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, d)
}

// suggestClosest returns the candidate nearest to the input by edit
// distance, or "" when nothing is close enough to be a plausible typo.
func suggestClosest(input string, candidates []string) string {
	minDist := math.MaxInt
	var suggestion string

	for _, candidate := range candidates {
		dist := levenshtein.ComputeDistance(input, candidate)
		if dist < minDist {
			minDist = dist
			suggestion = candidate
		}
	}

	if minDist > 3 {
		return ""
	}
	return suggestion
}

// truncateAddress shortens a hex address for table display.
func truncateAddress(addr string) string {
	if len(addr) <= 13 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-4:]
}
