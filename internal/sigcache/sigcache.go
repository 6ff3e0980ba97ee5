// Package sigcache stores per-connection decryption signatures. A
// signature authorizes user decryption of confidential payloads for a
// set of contracts over a bounded validity window; it is expensive to
// obtain (a wallet prompt), so successful signatures are cached in the
// shared key-value store, age-encrypted at rest.
package sigcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"time"

	"filippo.io/age"
	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/storage"
	clerr "github.com/cipherlink/cipherlink/pkg/errors"
)

// KeyPrefix namespaces every cached signature in the key-value store.
// The wallet layer clears this prefix wholesale on disconnect.
const KeyPrefix = "fhevm.decryptionSignature."

// Signature is a cached user-decryption authorization.
type Signature struct {
	PublicKey         string   `json:"publicKey"`
	PrivateKey        string   `json:"privateKey"`
	Signature         string   `json:"signature"`
	UserAddress       string   `json:"userAddress"`
	ContractAddresses []string `json:"contractAddresses"`
	StartTimestamp    int64    `json:"startTimestamp"`
	DurationDays      int64    `json:"durationDays"`
}

// ValidAt reports whether the signature's validity window covers t.
func (s *Signature) ValidAt(t time.Time) bool {
	start := time.Unix(s.StartTimestamp, 0)
	end := start.Add(time.Duration(s.DurationDays) * 24 * time.Hour)
	return !t.Before(start) && t.Before(end)
}

// Cache persists signatures keyed by (user, contract set).
type Cache struct {
	kv         storage.StringStorage
	passphrase string
	logger     *zap.Logger
	now        func() time.Time
}

// NewCache creates a signature cache over kv. The passphrase protects
// entries at rest; an empty passphrase stores entries unencrypted.
func NewCache(kv storage.StringStorage, passphrase string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{kv: kv, passphrase: passphrase, logger: logger, now: time.Now}
}

// Save stores a signature. Storage failures are swallowed per the
// storage contract; encryption failures are returned.
func (c *Cache) Save(sig *Signature) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return clerr.Wrap(err, "marshaling signature")
	}

	if c.passphrase != "" {
		encrypted, err := encrypt(data, c.passphrase)
		if err != nil {
			return clerr.Wrap(err, "encrypting signature")
		}
		data = []byte(base64.StdEncoding.EncodeToString(encrypted))
	}

	c.kv.SetItem(cacheKey(sig.UserAddress, sig.ContractAddresses), string(data))
	return nil
}

// Load returns the cached signature for (user, contracts) if present
// and still valid. Expired entries are removed on read.
func (c *Cache) Load(userAddress string, contractAddresses []string) (*Signature, bool) {
	key := cacheKey(userAddress, contractAddresses)
	raw, ok := c.kv.GetItem(key)
	if !ok {
		return nil, false
	}

	data := []byte(raw)
	if c.passphrase != "" {
		encrypted, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			c.logger.Warn("cached signature undecodable, dropping", zap.Error(err))
			c.kv.RemoveItem(key)
			return nil, false
		}
		data, err = decrypt(encrypted, c.passphrase)
		if err != nil {
			c.logger.Warn("cached signature undecryptable, dropping", zap.Error(err))
			c.kv.RemoveItem(key)
			return nil, false
		}
	}

	var sig Signature
	if err := json.Unmarshal(data, &sig); err != nil {
		c.logger.Warn("cached signature unreadable, dropping", zap.Error(err))
		c.kv.RemoveItem(key)
		return nil, false
	}

	if !sig.ValidAt(c.now()) {
		c.kv.RemoveItem(key)
		return nil, false
	}

	return &sig, true
}

// Clear removes every cached signature.
func (c *Cache) Clear() {
	storage.RemovePrefix(c.kv, KeyPrefix)
}

// cacheKey derives a stable key from the user address and the contract
// set. Contract order does not affect identity.
func cacheKey(userAddress string, contractAddresses []string) string {
	contracts := make([]string, len(contractAddresses))
	for i, a := range contractAddresses {
		contracts[i] = strings.ToLower(a)
	}
	sort.Strings(contracts)

	digest := sha256.Sum256([]byte(strings.Join(contracts, ",")))
	return KeyPrefix + strings.ToLower(userAddress) + ":" + hex.EncodeToString(digest[:8])
}

func encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decrypt(ciphertext []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, err
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
