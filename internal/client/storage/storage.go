// Package storage persists client state on the local filesystem: the
// session token and the catalog cache snapshot.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileTokenStore keeps the bearer token in a single file readable only by
// the current user.
type FileTokenStore struct {
	Path string
	mu   sync.Mutex
}

// NewFileTokenStore returns a store backed by path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{Path: path}
}

// Load returns the stored token, or "" when none has been saved.
func (s *FileTokenStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save replaces the stored token.
func (s *FileTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ensureDir(s.Path); err != nil {
		return err
	}
	if err := os.WriteFile(s.Path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing an absent token is not an error.
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// LoadJSON decodes the file at path into v. A missing file leaves v untouched
// and returns false.
func LoadJSON(path string, v any) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// SaveJSON writes v to path atomically.
func SaveJSON(path string, v any) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}
