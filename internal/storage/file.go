package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cipherlink/cipherlink/internal/fileutil"
)

const (
	// storeFilePermissions is the permission mode for the store file.
	storeFilePermissions = 0o600

	// storeDirPermissions is the permission mode for the store directory.
	storeDirPermissions = 0o700
)

// FileStorage persists the key-value map as a JSON file under the
// cipherlink home directory. Every mutation is flushed atomically; a
// corrupted file is quarantined and treated as empty.
type FileStorage struct {
	mu      sync.RWMutex
	path    string
	entries map[string]string
	logger  *zap.Logger
}

// Compile-time interface check
var _ StringStorage = (*FileStorage)(nil)

// NewFileStorage opens (or initializes) file-backed storage at path.
// Construction never fails: an unreadable file yields empty storage.
func NewFileStorage(path string, logger *zap.Logger) *FileStorage {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &FileStorage{
		path:    path,
		entries: make(map[string]string),
		logger:  logger,
	}
	s.load()
	return s
}

// Path returns the backing file path.
func (s *FileStorage) Path() string {
	return s.path
}

// GetItem returns the value for key and whether it was present.
func (s *FileStorage) GetItem(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// SetItem stores a value under key and flushes to disk.
func (s *FileStorage) SetItem(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	s.flushLocked()
}

// RemoveItem deletes a key and flushes to disk.
func (s *FileStorage) RemoveItem(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)
	s.flushLocked()
}

// Keys returns a snapshot of the stored keys.
func (s *FileStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// load reads the backing file into memory. Missing files yield empty
// storage; corrupt files are moved aside so the next flush starts clean.
func (s *FileStorage) load() {
	data, err := os.ReadFile(s.path) //nolint:gosec // G304: path is derived from validated config
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("reading storage file", zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		corruptPath := fmt.Sprintf("%s.corrupt.%d", s.path, time.Now().UTC().UnixNano())
		if renameErr := os.Rename(s.path, corruptPath); renameErr != nil {
			s.logger.Error("quarantining corrupt storage file", zap.String("path", s.path), zap.Error(renameErr))
		} else {
			s.logger.Error("storage file corrupt, moved aside",
				zap.String("path", s.path), zap.String("moved_to", corruptPath), zap.Error(err))
		}
		return
	}

	if entries != nil {
		s.entries = entries
	}
}

// flushLocked writes the current map to disk. Must be called with the
// write lock held. Failures are logged, never propagated.
func (s *FileStorage) flushLocked() {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, storeDirPermissions); err != nil {
		s.logger.Error("creating storage directory", zap.String("dir", dir), zap.Error(err))
		return
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		s.logger.Error("marshaling storage", zap.Error(err))
		return
	}

	if err := fileutil.WriteAtomic(s.path, data, storeFilePermissions); err != nil {
		s.logger.Error("writing storage file", zap.String("path", s.path), zap.Error(err))
	}
}
