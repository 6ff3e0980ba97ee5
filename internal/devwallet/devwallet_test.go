package devwallet_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/devwallet"
	"github.com/cipherlink/cipherlink/internal/eip1193"
	"github.com/cipherlink/cipherlink/internal/eip6963"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// Hardhat's well-known first two accounts for the default test mnemonic.
const (
	hardhatAccount0 = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	hardhatAccount1 = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func newWallet(t *testing.T, opts ...devwallet.Option) *devwallet.Wallet {
	t.Helper()
	w, err := devwallet.New(devwallet.DefaultMnemonic, 2, chain.Localhost, zap.NewNop(), opts...)
	require.NoError(t, err)
	return w
}

func TestNew_DerivesHardhatAccounts(t *testing.T) {
	t.Parallel()

	w := newWallet(t)
	assert.Equal(t, []string{hardhatAccount0, hardhatAccount1}, w.Accounts())
}

func TestNew_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	_, err := devwallet.New("not a mnemonic", 1, chain.Localhost, zap.NewNop())
	assert.ErrorIs(t, err, clerr.ErrInvalidInput)

	_, err = devwallet.New(devwallet.DefaultMnemonic, 0, chain.Localhost, zap.NewNop())
	assert.ErrorIs(t, err, clerr.ErrInvalidInput)
}

func TestWallet_AccountsHiddenUntilApproved(t *testing.T) {
	t.Parallel()

	w := newWallet(t)
	ctx := context.Background()

	raw, err := w.Request(ctx, eip1193.MethodAccounts)
	require.NoError(t, err)
	accounts, err := eip1193.DecodeAccounts(raw)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	raw, err = w.Request(ctx, eip1193.MethodRequestAccounts)
	require.NoError(t, err)
	accounts, err = eip1193.DecodeAccounts(raw)
	require.NoError(t, err)
	assert.Equal(t, hardhatAccount0, accounts[0])

	// once granted, eth_accounts reports too
	raw, err = w.Request(ctx, eip1193.MethodAccounts)
	require.NoError(t, err)
	accounts, err = eip1193.DecodeAccounts(raw)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestWallet_ApprovalDenied(t *testing.T) {
	t.Parallel()

	denied := false
	w := newWallet(t, devwallet.WithApproval(func([]string) (bool, error) {
		denied = true
		return false, nil
	}))

	_, err := w.Request(context.Background(), eip1193.MethodRequestAccounts)
	require.True(t, denied)
	assert.True(t, eip1193.IsUserRejection(err))

	// the denial does not grant access
	raw, err := w.Request(context.Background(), eip1193.MethodAccounts)
	require.NoError(t, err)
	accounts, err := eip1193.DecodeAccounts(raw)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestWallet_ApprovalAskedOnce(t *testing.T) {
	t.Parallel()

	prompts := 0
	w := newWallet(t, devwallet.WithApproval(func([]string) (bool, error) {
		prompts++
		return true, nil
	}))

	ctx := context.Background()
	_, err := w.Request(ctx, eip1193.MethodRequestAccounts)
	require.NoError(t, err)
	_, err = w.Request(ctx, eip1193.MethodRequestAccounts)
	require.NoError(t, err)

	assert.Equal(t, 1, prompts)
}

func TestWallet_ChainIDAndSwitch(t *testing.T) {
	t.Parallel()

	w := newWallet(t)
	ctx := context.Background()

	raw, err := w.Request(ctx, eip1193.MethodChainID)
	require.NoError(t, err)
	id, err := eip1193.DecodeChainID(raw)
	require.NoError(t, err)
	assert.Equal(t, chain.Localhost, id)

	var notified chain.ID
	release, err := w.On(eip1193.EventChainChanged, func(payload json.RawMessage) {
		notified, _ = eip1193.DecodeChainID(payload)
	})
	require.NoError(t, err)
	defer release()

	_, err = w.Request(ctx, eip1193.MethodSwitchChain, eip1193.NewSwitchChainParam(chain.Sepolia))
	require.NoError(t, err)
	assert.Equal(t, chain.Sepolia, notified)

	raw, err = w.Request(ctx, eip1193.MethodChainID)
	require.NoError(t, err)
	id, err = eip1193.DecodeChainID(raw)
	require.NoError(t, err)
	assert.Equal(t, chain.Sepolia, id)
}

func TestWallet_PersonalSignRecoverable(t *testing.T) {
	t.Parallel()

	w := newWallet(t)
	ctx := context.Background()

	_, err := w.Request(ctx, eip1193.MethodRequestAccounts)
	require.NoError(t, err)

	raw, err := w.Request(ctx, "personal_sign", "hello", hardhatAccount0)
	require.NoError(t, err)

	var sigHex string
	require.NoError(t, json.Unmarshal(raw, &sigHex))
	sig, err := hexutil.Decode(sigHex)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	sig[crypto.RecoveryIDOffset] -= 27
	digest := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n5hello"))
	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, hardhatAccount0, crypto.PubkeyToAddress(*pub).Hex())
}

func TestWallet_PersonalSignRequiresApproval(t *testing.T) {
	t.Parallel()

	w := newWallet(t)
	_, err := w.Request(context.Background(), "personal_sign", "hello", hardhatAccount0)
	assert.True(t, eip1193.IsUserRejection(err))
}

func TestWallet_UnsupportedMethod(t *testing.T) {
	t.Parallel()

	w := newWallet(t)
	_, err := w.Request(context.Background(), "eth_sendTransaction")

	var rpcErr *eip1193.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, eip1193.CodeUnsupportedMethod, rpcErr.Code)
}

func TestWallet_AnnounceOnBus(t *testing.T) {
	t.Parallel()

	bus := eip6963.NewBus(zap.NewNop())
	r := eip6963.NewRegistry(bus, zap.NewNop(), eip6963.WithGraceWindow(10*time.Millisecond))
	t.Cleanup(r.Stop)

	w := newWallet(t)
	release := w.Announce(bus)
	defer release()

	r.Start()
	require.NoError(t, r.WaitSettled(context.Background()))

	found, ok := r.Find(w.Info().UUID)
	require.True(t, ok)
	assert.Equal(t, devwallet.WalletName, found.Info.Name)

	// detached wallets stop responding to requests
	release()
	r.Stop()
}
