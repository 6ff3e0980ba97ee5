// Package devwallet provides a deterministic in-process signing
// provider for development against a local node. It derives accounts
// from a BIP-39 mnemonic over the standard Ethereum path and speaks the
// same provider surface as an injected wallet, including announce
// participation in provider discovery.
package devwallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/eip1193"
	"github.com/cipherlink/cipherlink/internal/eip6963"
	"github.com/cipherlink/cipherlink/internal/storage"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// DefaultMnemonic is the well-known hardhat/anvil test mnemonic. Never
// fund it on a real network.
const DefaultMnemonic = "test test test test test test test test test test test junk"

// WalletName is the display name announced during discovery.
const WalletName = "CipherLink Dev Wallet"

// walletRDNS identifies the dev wallet in reverse-domain form.
const walletRDNS = "link.cipher.devwallet"

// ApprovalFunc decides whether an account-access request is granted.
// The CLI wires an interactive prompt here; tests script it.
type ApprovalFunc func(accounts []string) (bool, error)

// Wallet is a deterministic eip1193.Provider. Accounts are hidden until
// an account-access request is approved, matching injected-wallet
// behavior.
type Wallet struct {
	mu       sync.Mutex
	chainID  chain.ID
	keys     []*ecdsa.PrivateKey
	accounts []string
	approved bool

	nextSub  int
	handlers map[string]map[int]eip1193.Handler

	info    eip6963.ProviderInfo
	approve ApprovalFunc
	grants  storage.StringStorage
	logger  *zap.Logger
}

// Compile-time interface check
var _ eip1193.Provider = (*Wallet)(nil)

// Option customizes a Wallet.
type Option func(*Wallet)

// WithApproval sets the account-access approval hook. Without one,
// requests are auto-approved.
func WithApproval(fn ApprovalFunc) Option {
	return func(w *Wallet) { w.approve = fn }
}

// WithGrantStore persists the access grant, the way injected wallets
// remember connected sites across restarts.
func WithGrantStore(kv storage.StringStorage) Option {
	return func(w *Wallet) { w.grants = kv }
}

// grantKey records an approved account-access grant in the grant store.
const grantKey = "devwallet.approved"

// New derives accountCount accounts from the mnemonic over
// m/44'/60'/0'/0/i and returns a wallet bound to chainID.
func New(mnemonic string, accountCount int, chainID chain.ID, logger *zap.Logger, opts ...Option) (*Wallet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if accountCount < 1 {
		return nil, clerr.WithDetails(clerr.ErrInvalidInput, map[string]string{"reason": "at least one account is required"})
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, clerr.WithDetails(clerr.ErrInvalidInput, map[string]string{"reason": "invalid mnemonic phrase"})
	}

	seed := bip39.NewSeed(mnemonic, "")
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, clerr.Wrap(err, "deriving master key")
	}

	w := &Wallet{
		chainID:  chainID,
		handlers: make(map[string]map[int]eip1193.Handler),
		info: eip6963.ProviderInfo{
			// Deterministic so the connector id survives restarts and
			// silent reconnection can match it exactly.
			UUID: uuid.NewSHA1(uuid.NameSpaceURL, []byte(walletRDNS)).String(),
			Name: WalletName,
			Icon: "data:image/svg+xml;base64,",
			RDNS: walletRDNS,
		},
		logger: logger,
	}

	for i := 0; i < accountCount; i++ {
		key, err := deriveKey(master, uint32(i))
		if err != nil {
			return nil, err
		}
		w.keys = append(w.keys, key)
		w.accounts = append(w.accounts, crypto.PubkeyToAddress(key.PublicKey).Hex())
	}

	for _, opt := range opts {
		opt(w)
	}
	if w.grants != nil {
		if v, ok := w.grants.GetItem(grantKey); ok && v == "true" {
			w.approved = true
		}
	}
	return w, nil
}

// deriveKey walks m/44'/60'/0'/0/index.
func deriveKey(master *bip32.Key, index uint32) (*ecdsa.PrivateKey, error) {
	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + 60,
		bip32.FirstHardenedChild,
		0,
		index,
	}

	key := master
	for _, step := range path {
		child, err := key.NewChildKey(step)
		if err != nil {
			return nil, clerr.Wrap(err, "deriving child key")
		}
		key = child
	}

	priv, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, clerr.Wrap(err, "converting derived key")
	}
	return priv, nil
}

// Info returns the wallet's discovery identity.
func (w *Wallet) Info() eip6963.ProviderInfo {
	return w.info
}

// Detail returns the announce payload for discovery.
func (w *Wallet) Detail() eip6963.ProviderDetail {
	return eip6963.ProviderDetail{Info: w.info, Provider: w}
}

// Announce attaches the wallet to the discovery bus: it announces
// immediately and re-announces on every provider request. The returned
// release detaches it.
func (w *Wallet) Announce(bus *eip6963.Bus) func() {
	release := bus.SubscribeRequest(func() { bus.Announce(w.Detail()) })
	bus.Announce(w.Detail())
	return release
}

// Accounts returns the derived addresses regardless of approval state.
func (w *Wallet) Accounts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.accounts...)
}

// Request implements eip1193.Provider.
func (w *Wallet) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	switch method {
	case eip1193.MethodAccounts:
		return w.currentAccounts()
	case eip1193.MethodRequestAccounts:
		return w.requestAccounts()
	case eip1193.MethodChainID:
		w.mu.Lock()
		defer w.mu.Unlock()
		return json.Marshal(w.chainID.Hex())
	case eip1193.MethodSwitchChain:
		return w.switchChain(params)
	case eip1193.MethodPersonalSign:
		return w.personalSign(params)
	default:
		return nil, &eip1193.RPCError{
			Code:    eip1193.CodeUnsupportedMethod,
			Message: fmt.Sprintf("the dev wallet does not support %s", method),
		}
	}
}

// currentAccounts reports derived addresses only after approval, the
// way injected wallets hide accounts until access is granted.
func (w *Wallet) currentAccounts() (json.RawMessage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.approved {
		return json.RawMessage(`[]`), nil
	}
	return json.Marshal(w.accounts)
}

func (w *Wallet) requestAccounts() (json.RawMessage, error) {
	w.mu.Lock()
	approved := w.approved
	accounts := append([]string(nil), w.accounts...)
	approve := w.approve
	w.mu.Unlock()

	if !approved {
		if approve != nil {
			granted, err := approve(accounts)
			if err != nil {
				return nil, clerr.Wrap(err, "running approval prompt")
			}
			if !granted {
				return nil, &eip1193.RPCError{
					Code:    eip1193.CodeUserRejected,
					Message: "User rejected the request.",
				}
			}
		}
		w.mu.Lock()
		w.approved = true
		grants := w.grants
		w.mu.Unlock()
		if grants != nil {
			grants.SetItem(grantKey, "true")
		}
		w.logger.Info("dev wallet account access granted", zap.Int("accounts", len(accounts)))
	}

	return json.Marshal(accounts)
}

func (w *Wallet) switchChain(params []any) (json.RawMessage, error) {
	if len(params) == 0 {
		return nil, clerr.WithDetails(clerr.ErrInvalidInput, map[string]string{"reason": "switch chain needs a target parameter"})
	}

	encoded, err := json.Marshal(params[0])
	if err != nil {
		return nil, clerr.Wrap(err, "encoding switch parameter")
	}
	var param eip1193.SwitchChainParam
	if err := json.Unmarshal(encoded, &param); err != nil {
		return nil, clerr.Wrap(err, "decoding switch parameter")
	}

	target, err := chain.ParseHex(param.ChainID)
	if err != nil {
		return nil, clerr.Wrap(err, "parsing target chain id")
	}

	w.mu.Lock()
	changed := w.chainID != target
	w.chainID = target
	w.mu.Unlock()

	if changed {
		w.emit(eip1193.EventChainChanged, target.Hex())
	}
	return json.RawMessage(`null`), nil
}

// personalSign signs params[0] (hex or plain text) with the key behind
// params[1] using the standard signed-message envelope.
func (w *Wallet) personalSign(params []any) (json.RawMessage, error) {
	if len(params) < 2 {
		return nil, clerr.WithDetails(clerr.ErrInvalidInput, map[string]string{"reason": "personal_sign needs data and an address"})
	}
	data, ok := params[0].(string)
	if !ok {
		return nil, clerr.WithDetails(clerr.ErrInvalidInput, map[string]string{"reason": "personal_sign data must be a string"})
	}
	address, ok := params[1].(string)
	if !ok {
		return nil, clerr.WithDetails(clerr.ErrInvalidInput, map[string]string{"reason": "personal_sign address must be a string"})
	}

	key, err := w.keyFor(address)
	if err != nil {
		return nil, err
	}

	payload := []byte(data)
	if decoded, err := hexutil.Decode(data); err == nil {
		payload = decoded
	}

	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(payload), payload)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(msg)), key)
	if err != nil {
		return nil, clerr.Wrap(err, "signing message")
	}
	sig[crypto.RecoveryIDOffset] += 27

	return json.Marshal(hexutil.Encode(sig))
}

func (w *Wallet) keyFor(address string) (*ecdsa.PrivateKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.approved {
		return nil, &eip1193.RPCError{
			Code:    eip1193.CodeUserRejected,
			Message: "account access has not been granted",
		}
	}
	for i, a := range w.accounts {
		if strings.EqualFold(a, address) {
			return w.keys[i], nil
		}
	}
	return nil, clerr.WithDetails(clerr.ErrInvalidInput, map[string]string{"account": address})
}

// On implements eip1193.Provider with full event support.
func (w *Wallet) On(event string, fn eip1193.Handler) (func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.handlers[event] == nil {
		w.handlers[event] = make(map[int]eip1193.Handler)
	}
	id := w.nextSub
	w.nextSub++
	w.handlers[event][id] = fn

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.handlers[event], id)
	}, nil
}

func (w *Wallet) emit(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("encoding event payload", zap.String("event", event), zap.Error(err))
		return
	}

	w.mu.Lock()
	handlers := make([]eip1193.Handler, 0, len(w.handlers[event]))
	for _, fn := range w.handlers[event] {
		handlers = append(handlers, fn)
	}
	w.mu.Unlock()

	for _, fn := range handlers {
		fn(raw)
	}
}
