package wallet

import (
	"encoding/json"
	"strconv"

	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/chain"
	"github.com/cipherlink/cipherlink/internal/sigcache"
	"github.com/cipherlink/cipherlink/internal/storage"
)

// Persistent storage keys describing the last successful connection.
const (
	keyConnected       = "wallet.connected"
	keyLastConnectorID = "wallet.lastConnectorId"
	keyLastAccounts    = "wallet.lastAccounts"
	keyLastChainID     = "wallet.lastChainId"
)

// PersistedData is the reconstructed record of the last successful
// connection, used to attempt silent reconnection on startup.
type PersistedData struct {
	Connected       bool
	LastConnectorID string
	LastAccounts    []string
	LastChainID     chain.ID
}

// store adapts StringStorage to the connection record. All writes are
// best-effort per the storage contract.
type store struct {
	kv     storage.StringStorage
	logger *zap.Logger
}

// save records a successful connection.
func (s *store) save(connectorID string, accounts []string, chainID chain.ID) {
	accountsJSON, err := json.Marshal(accounts)
	if err != nil {
		s.logger.Error("marshaling account list", zap.Error(err))
		return
	}

	s.kv.SetItem(keyConnected, "true")
	s.kv.SetItem(keyLastConnectorID, connectorID)
	s.kv.SetItem(keyLastAccounts, string(accountsJSON))
	s.kv.SetItem(keyLastChainID, strconv.FormatUint(uint64(chainID), 10))
}

// saveChainID updates only the chain id entry, used on chain-changed
// notifications.
func (s *store) saveChainID(chainID chain.ID) {
	s.kv.SetItem(keyLastChainID, strconv.FormatUint(uint64(chainID), 10))
}

// load reconstructs the persisted record. It reports ok only when the
// connected flag is set, a connector id is present, and at least one
// account was recorded; anything else reads as "no persisted data".
func (s *store) load() (PersistedData, bool) {
	connected, _ := s.kv.GetItem(keyConnected)
	if connected != "true" {
		return PersistedData{}, false
	}

	connectorID, _ := s.kv.GetItem(keyLastConnectorID)
	if connectorID == "" {
		return PersistedData{}, false
	}

	rawAccounts, _ := s.kv.GetItem(keyLastAccounts)
	var accounts []string
	if rawAccounts != "" {
		if err := json.Unmarshal([]byte(rawAccounts), &accounts); err != nil {
			s.logger.Warn("persisted account list unreadable", zap.Error(err))
			return PersistedData{}, false
		}
	}
	if len(accounts) == 0 {
		return PersistedData{}, false
	}

	var chainID chain.ID
	if rawChain, ok := s.kv.GetItem(keyLastChainID); ok {
		parsed, err := strconv.ParseUint(rawChain, 10, 64)
		if err != nil {
			s.logger.Warn("persisted chain id unreadable", zap.String("value", rawChain), zap.Error(err))
		} else {
			chainID = chain.ID(parsed)
		}
	}

	return PersistedData{
		Connected:       true,
		LastConnectorID: connectorID,
		LastAccounts:    accounts,
		LastChainID:     chainID,
	}, true
}

// clear removes every connection key plus the cached decryption
// signatures, which are bound to the connection being torn down.
func (s *store) clear() {
	s.kv.RemoveItem(keyConnected)
	s.kv.RemoveItem(keyLastConnectorID)
	s.kv.RemoveItem(keyLastAccounts)
	s.kv.RemoveItem(keyLastChainID)
	storage.RemovePrefix(s.kv, sigcache.KeyPrefix)
}
