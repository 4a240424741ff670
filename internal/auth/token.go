// Package auth persists the platform session token.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoToken is returned when no session token has been stored.
var ErrNoToken = errors.New("no stored session token")

// TokenStore persists a session token between runs.
type TokenStore interface {
	Store(token string) error
	Load() (string, error)
	Clear() error
}

// FileTokenStore keeps the token in a 0600 file, written atomically.
type FileTokenStore struct {
	path string
}

// DefaultTokenPath returns the platform token location under the user
// config directory.
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "datasync", "token"), nil
}

// NewFileTokenStore creates a file-backed token store. An empty path
// selects the default location.
func NewFileTokenStore(path string) (*FileTokenStore, error) {
	if path == "" {
		var err error
		path, err = DefaultTokenPath()
		if err != nil {
			return nil, err
		}
	}
	return &FileTokenStore{path: path}, nil
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Store writes the token atomically with owner-only permissions.
func (s *FileTokenStore) Store(token string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create token directory %s: %w", dir, err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename token file: %w", err)
	}
	return nil
}

// Load reads the stored token. Returns ErrNoToken when absent.
func (s *FileTokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Clear removes the stored token. Clearing an absent token is not an
// error.
func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// MemoryTokenStore holds the token in memory, for tests and embedded
// use.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Store(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Load() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
