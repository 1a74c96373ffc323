package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	userIDDir      = ".automagik"
	userIDFile     = "user_id"
	optOutFileName = ".automagik-no-telemetry"
)

// FileStore persists the anonymous user id under ~/.automagik/user_id and
// records opt-out as the presence of ~/.automagik-no-telemetry, matching
// the layout shared by the other SDKs of this telemetry system.
type FileStore struct {
	home string
}

// NewFileStore creates a FileStore rooted at the user's home directory.
func NewFileStore() (*FileStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("identity: resolve home directory: %w", err)
	}
	return &FileStore{home: home}, nil
}

// NewFileStoreAt creates a FileStore rooted at an explicit directory.
func NewFileStoreAt(dir string) *FileStore {
	return &FileStore{home: dir}
}

func (s *FileStore) userIDPath() string {
	return filepath.Join(s.home, userIDDir, userIDFile)
}

// OptOutPath returns the opt-out marker file location.
func (s *FileStore) OptOutPath() string {
	return filepath.Join(s.home, optOutFileName)
}

// Load reads the persisted identity, creating and saving a fresh one when
// none exists. A failure to persist is not fatal: the process continues
// with the in-memory id.
func (s *FileStore) Load() (Identity, error) {
	if data, err := os.ReadFile(s.userIDPath()); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return Identity{UserID: id}, nil
		}
	}

	id := Identity{UserID: uuid.NewString()}
	_ = s.Save(id)
	return id, nil
}

// Save writes the identity file, creating its directory if needed.
func (s *FileStore) Save(id Identity) error {
	path := s.userIDPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("identity: create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(id.UserID), 0o600); err != nil {
		return fmt.Errorf("identity: write %s: %w", path, err)
	}
	return nil
}

// OptedOut reports whether the opt-out marker file exists.
func (s *FileStore) OptedOut() bool {
	_, err := os.Stat(s.OptOutPath())
	return err == nil
}

// SetOptOut creates or removes the opt-out marker file.
func (s *FileStore) SetOptOut(optOut bool) error {
	path := s.OptOutPath()
	if optOut {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("identity: create opt-out file: %w", err)
		}
		return f.Close()
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("identity: remove opt-out file: %w", err)
	}
	return nil
}
