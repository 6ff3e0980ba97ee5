// Package storage provides best-effort string key-value persistence for
// connection and signature-cache data. All operations swallow storage
// failures: callers always get an answer, and unavailability degrades to
// "no data" rather than an error.
package storage

// StringStorage is the key-value surface the persistence layer exposes.
// Implementations log failures and never surface them.
type StringStorage interface {
	// GetItem returns the value for key and whether it was present.
	GetItem(key string) (string, bool)

	// SetItem stores a value under key.
	SetItem(key, value string)

	// RemoveItem deletes a key. Removing an absent key is a no-op.
	RemoveItem(key string)

	// Keys returns a snapshot of the stored keys in unspecified order.
	Keys() []string
}

// RemovePrefix removes every key with the given prefix. It is a helper for
// wholesale clears of namespaced entries.
func RemovePrefix(s StringStorage, prefix string) {
	for _, key := range s.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			s.RemoveItem(key)
		}
	}
}
