// Package session remembers, on the client side, which contact codes were
// last sent to, so a later verify invocation can reuse it.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smileynet/dualotp/internal/otp"
)

// fileName is the session file inside the store directory.
const fileName = "session.json"

// ErrNoSession indicates no pending contact has been saved.
var ErrNoSession = errors.New("session: no pending contact (run send first)")

// Pending is a contact that codes were sent to and that has not been verified yet.
type Pending struct {
	Contact otp.ContactInfo `json:"contact"`
	BaseURL string          `json:"base_url"`
	SentAt  time.Time       `json:"sent_at"`
}

// FileStore persists the pending contact as a JSON file under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore that keeps its file under dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the session file location.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, fileName)
}

// Save writes p, replacing any earlier pending contact.
func (s *FileStore) Save(p Pending) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("session: creating directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshaling: %w", err)
	}

	path := s.Path()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("session: writing %s: %w", path, err)
	}
	return nil
}

// Load reads the pending contact. Returns ErrNoSession if none is saved.
func (s *FileStore) Load() (Pending, error) {
	path := s.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Pending{}, ErrNoSession
		}
		return Pending{}, fmt.Errorf("session: reading %s: %w", path, err)
	}

	var p Pending
	if err := json.Unmarshal(data, &p); err != nil {
		return Pending{}, fmt.Errorf("session: parsing %s: %w", path, err)
	}
	return p, nil
}

// Clear removes the pending contact. Missing files are not an error.
func (s *FileStore) Clear() error {
	path := s.Path()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: removing %s: %w", path, err)
	}
	return nil
}
