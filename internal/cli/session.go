package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/eip1193"
	"github.com/cipherlink/cipherlink/internal/fhevm"
	"github.com/cipherlink/cipherlink/internal/output"
	"github.com/cipherlink/cipherlink/internal/sigcache"
	"github.com/cipherlink/cipherlink/internal/wallet"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// sessionCmd is the parent command for confidential-session operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the confidential-computation session",
}

// sessionInitCmd creates a confidential-session instance.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sessionInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a confidential session",
	Long: `Create a confidential-computation session for the connected wallet.

On the local development chain the session is built from deployment
metadata exposed by the node. On every other chain the relayer SDK
bundle is fetched (once) and the production relayer backend is used.

Example:
  cipherlink session init`,
	RunE: runSessionInit,
}

// sessionResetCmd drops the session binding.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the confidential session",
	Long: `Drop the confidential-session binding and the loaded SDK bundle so the
next initialization starts clean.

Example:
  cipherlink session reset`,
	RunE: runSessionReset,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionInitCmd)
	sessionCmd.AddCommand(sessionResetCmd)
}

// SessionResponse is the JSON shape of an initialized session.
type SessionResponse struct {
	ChainID         uint64 `json:"chain_id"`
	Chain           string `json:"chain"`
	ACLAddress      string `json:"acl_address"`
	PublicKey       string `json:"public_key"`
	SignatureReused bool   `json:"signature_reused"`
}

func runSessionInit(cmd *cobra.Command, _ []string) error {
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

	state := app.Manager.State()
	if !state.Connected {
		return clerr.WithSuggestion(clerr.ErrNotConnected,
			"run 'cipherlink connect' first")
	}

	instance, err := app.Session.CreateInstance(ctx, fhevm.CreateOptions{
		Provider: state.Provider,
		ChainID:  state.ChainID,
	})
	if err != nil {
		return err
	}

	sig, reused, err := ensureDecryptionSignature(ctx, app, state, instance.ACLAddress())
	if err != nil {
		logger.Warn("decryption authorization unavailable", zap.Error(err))
		output.Warning(cmd.ErrOrStderr(), "decryption authorization could not be signed: %v", err)
	}

	response := SessionResponse{
		ChainID:         uint64(instance.ChainID()),
		Chain:           instance.ChainID().Name(),
		ACLAddress:      instance.ACLAddress(),
		PublicKey:       hexutil.Encode(instance.PublicKey()),
		SignatureReused: reused,
	}

	w := cmd.OutOrStdout()
	if formatter.Format() == output.FormatJSON {
		return writeJSON(w, response)
	}

	outln(w, "Confidential session ready")
	out(w, "  Chain:      %s (%d)\n", response.Chain, response.ChainID)
	out(w, "  ACL:        %s\n", response.ACLAddress)
	out(w, "  Public key: %s\n", truncateAddress(response.PublicKey))
	switch {
	case sig == nil:
		out(w, "  Decryption: not authorized\n")
	case reused:
		out(w, "  Decryption: cached authorization\n")
	default:
		out(w, "  Decryption: new authorization signed\n")
	}
	return nil
}

// decryptionValidityDays bounds how long a cached decryption
// authorization stays usable before a fresh wallet prompt is needed.
const decryptionValidityDays = 365

// ensureDecryptionSignature returns the decryption authorization for
// the connected account and the session's ACL contract. A cached,
// still-valid signature is reused; otherwise a fresh keypair is
// generated, authorized through the wallet's personal_sign prompt, and
// cached for later sessions.
func ensureDecryptionSignature(ctx context.Context, app *App, state wallet.ConnectionState, aclAddress string) (*sigcache.Signature, bool, error) {
	cache := sigcache.NewCache(app.KV, cfg.Wallet.SignaturePassphrase, logger)
	contracts := []string{aclAddress}

	if sig, ok := cache.Load(state.Account, contracts); ok {
		return sig, true, nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, false, clerr.Wrap(err, "generating decryption keypair")
	}
	publicKey := hexutil.Encode(crypto.FromECDSAPub(&key.PublicKey))
	start := time.Now().Unix()

	message := fmt.Sprintf(
		"cipherlink user decryption\npublic key: %s\ncontracts: %s\nvalid from %d for %d days",
		publicKey, strings.Join(contracts, ","), start, decryptionValidityDays)

	raw, err := state.Provider.Request(ctx, eip1193.MethodPersonalSign,
		hexutil.Encode([]byte(message)), state.Account)
	if err != nil {
		return nil, false, clerr.Wrap(err, "signing decryption authorization")
	}
	var signed string
	if err := json.Unmarshal(raw, &signed); err != nil {
		return nil, false, clerr.Wrap(err, "decoding signature")
	}

	sig := &sigcache.Signature{
		PublicKey:         publicKey,
		PrivateKey:        hexutil.Encode(crypto.FromECDSA(key)),
		Signature:         signed,
		UserAddress:       state.Account,
		ContractAddresses: contracts,
		StartTimestamp:    start,
		DurationDays:      decryptionValidityDays,
	}
	if err := cache.Save(sig); err != nil {
		return nil, false, err
	}
	return sig, false, nil
}

func runSessionReset(cmd *cobra.Command, _ []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	app.Session.Reset()

	return output.FormatSuccess(cmd.OutOrStdout(), "Session reset", formatter.Format())
}
