package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/config"
	"github.com/cipherlink/cipherlink/internal/output"
)

// Hardhat's well-known first account for the default test mnemonic.
const devAccount0 = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// setupTest points the global CLI state at a temporary home and resets
// command flags. CLI tests mutate package globals and must not run in
// parallel.
func setupTest(t *testing.T) {
	t.Helper()

	cfg = config.Defaults()
	cfg.Home = t.TempDir()
	logger = zap.NewNop()
	formatter = output.NewFormatter(output.FormatText, io.Discard)

	connectSilent = false
	connectRPC = ""
	statusQR = false
	configForce = false
	versionCheck = false

	t.Cleanup(func() {
		cfg = nil
		logger = nil
		formatter = nil
	})
}

// useJSON switches the test formatter to JSON output.
func useJSON() {
	formatter = output.NewFormatter(output.FormatJSON, io.Discard)
}

// newTestCmd returns a command whose output is captured in the buffer.
func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

// newNodeServer serves a minimal JSON-RPC node exposing static accounts
// and chain id.
func newNodeServer(t *testing.T, accounts []string, chainID chain.ID) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result any
		switch req.Method {
		case "eth_accounts", "eth_requestAccounts":
			result = accounts
		case "eth_chainId":
			result = chainID.Hex()
		default:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": -32601, "message": "method not found"},
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}
