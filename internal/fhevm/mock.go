package fhevm

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cipherlink/cipherlink/internal/chain"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// mockInstance simulates the confidential backend against a local
// development node. Handles are derived deterministically and the
// plaintexts stay inside the instance, so encrypt/decrypt round-trips
// work without a relayer.
type mockInstance struct {
	cfg       InstanceConfig
	publicKey []byte

	mu         sync.Mutex
	nextInput  uint64
	plaintexts map[string][]byte
}

// Compile-time interface check
var _ Instance = (*mockInstance)(nil)

func newMockInstance(cfg InstanceConfig) *mockInstance {
	return &mockInstance{
		cfg:        cfg,
		publicKey:  crypto.Keccak256([]byte("mock-public-key"), []byte(cfg.ACLAddress)),
		plaintexts: make(map[string][]byte),
	}
}

func (m *mockInstance) ChainID() chain.ID {
	return m.cfg.ChainID
}

func (m *mockInstance) ACLAddress() string {
	return m.cfg.ACLAddress
}

func (m *mockInstance) PublicKey() []byte {
	return append([]byte(nil), m.publicKey...)
}

func (m *mockInstance) CreateEncryptedInput(contractAddress, userAddress string) EncryptedInput {
	return &mockInput{
		instance: m,
		contract: contractAddress,
		user:     userAddress,
	}
}

func (m *mockInstance) UserDecrypt(_ context.Context, req DecryptRequest) (map[string][]byte, error) {
	if req.Signature == "" || req.UserAddress == "" {
		return nil, clerr.WithDetails(clerr.ErrInvalidInput, map[string]string{"reason": "decrypt request needs a user address and signature"})
	}

	start := time.Unix(req.StartTimestamp, 0)
	end := start.Add(time.Duration(req.DurationDays) * 24 * time.Hour)
	if now := time.Now(); now.Before(start) || !now.Before(end) {
		return nil, clerr.ErrSignatureExpired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]byte, len(req.Handles))
	for _, handle := range req.Handles {
		plaintext, ok := m.plaintexts[handle]
		if !ok {
			return nil, clerr.WithDetails(clerr.ErrInvalidInput,
				map[string]string{"handle": handle})
		}
		out[handle] = append([]byte(nil), plaintext...)
	}
	return out, nil
}

// record stores a plaintext and returns its derived handle.
func (m *mockInstance) record(contract, user string, plaintext []byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, m.nextInput)
	m.nextInput++

	handle := crypto.Keccak256([]byte(contract), []byte(user), seq, plaintext)
	m.plaintexts[hexutil.Encode(handle)] = append([]byte(nil), plaintext...)
	return handle
}

// mockInput accumulates values for one contract/user pair.
type mockInput struct {
	instance *mockInstance
	contract string
	user     string
	values   [][]byte
}

func (in *mockInput) Add64(v uint64) EncryptedInput {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	in.values = append(in.values, buf)
	return in
}

func (in *mockInput) AddBool(v bool) EncryptedInput {
	b := byte(0)
	if v {
		b = 1
	}
	in.values = append(in.values, []byte{b})
	return in
}

func (in *mockInput) AddBytes(v []byte) EncryptedInput {
	in.values = append(in.values, append([]byte(nil), v...))
	return in
}

func (in *mockInput) Encrypt(_ context.Context) (*CiphertextBundle, error) {
	if len(in.values) == 0 {
		return nil, clerr.WithDetails(clerr.ErrInvalidInput, map[string]string{"reason": "encrypted input has no values"})
	}

	bundle := &CiphertextBundle{Handles: make([][]byte, 0, len(in.values))}
	for _, v := range in.values {
		bundle.Handles = append(bundle.Handles, in.instance.record(in.contract, in.user, v))
	}
	bundle.InputProof = crypto.Keccak256(append([]byte(in.contract), []byte(in.user)...))
	return bundle, nil
}
