// Package config stores named terminal profiles
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"termgrid/pkg/serial"
	"termgrid/pkg/terminal"
)

// ErrProfileNotFound is returned when a named profile does not exist
var ErrProfileNotFound = errors.New("profile not found")

// Profile is a saved terminal setup. Zero dimensions mean the terminal
// defaults. Serial is only set for profiles used with a serial port.
type Profile struct {
	Name        string               `json:"name"`
	Cols        int                  `json:"cols"`
	Rows        int                  `json:"rows"`
	Scrollback  int                  `json:"scrollback"`
	Charset     string               `json:"charset,omitempty"`
	Serial      *serial.SerialConfig `json:"serial,omitempty"`
	Description string               `json:"description,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	LastUsedAt  time.Time            `json:"last_used_at"`
}

// Validate checks if the profile is valid
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	if strings.ContainsAny(p.Name, "/\\") {
		return fmt.Errorf("profile name cannot contain path separators: %s", p.Name)
	}

	if err := p.Options().Validate(); err != nil {
		return fmt.Errorf("invalid terminal options: %w", err)
	}

	if _, err := serial.NewDecoder(p.Charset); err != nil {
		return fmt.Errorf("invalid charset: %w", err)
	}

	if p.Serial != nil {
		if err := p.Serial.Validate(); err != nil {
			return fmt.Errorf("invalid serial config: %w", err)
		}
	}

	return nil
}

// Options returns the terminal options described by the profile
func (p Profile) Options() terminal.Options {
	return terminal.Options{
		Cols:       p.Cols,
		Rows:       p.Rows,
		Scrollback: p.Scrollback,
	}
}

// profileStorage is the on-disk layout
type profileStorage struct {
	Profiles map[string]Profile `json:"profiles"`
	Version  string             `json:"version"`
}

const storageVersion = "1.0"

// FileProfileStore keeps profiles in a single JSON file
type FileProfileStore struct {
	dir  string
	file string
}

// NewFileProfileStore creates a store rooted at dir
func NewFileProfileStore(dir string) *FileProfileStore {
	return &FileProfileStore{
		dir:  dir,
		file: "profiles.json",
	}
}

// DefaultDir returns the per-user configuration directory for termgrid
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(base, "termgrid"), nil
}

// Path returns the full path of the profile file
func (s *FileProfileStore) Path() string {
	return filepath.Join(s.dir, s.file)
}

// Save stores p under its name. Saving over an existing profile keeps its
// creation time.
func (s *FileProfileStore) Save(p Profile) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.LastUsedAt = now

	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	storage, err := s.load()
	if err != nil {
		return fmt.Errorf("failed to load existing profiles: %w", err)
	}

	if existing, ok := storage.Profiles[p.Name]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	storage.Profiles[p.Name] = p

	if err := s.save(storage); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Load returns the named profile and records the access time
func (s *FileProfileStore) Load(name string) (Profile, error) {
	if name == "" {
		return Profile{}, fmt.Errorf("profile name cannot be empty")
	}

	storage, err := s.load()
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load profiles: %w", err)
	}

	p, ok := storage.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	p.LastUsedAt = time.Now()
	storage.Profiles[name] = p
	// The access time is informational; a read-only directory is fine
	_ = s.save(storage)

	return p, nil
}

// List returns every profile sorted by name
func (s *FileProfileStore) List() ([]Profile, error) {
	storage, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	profiles := make([]Profile, 0, len(storage.Profiles))
	for _, p := range storage.Profiles {
		profiles = append(profiles, p)
	}
	slices.SortFunc(profiles, func(a, b Profile) int {
		return strings.Compare(a.Name, b.Name)
	})
	return profiles, nil
}

// Delete removes the named profile
func (s *FileProfileStore) Delete(name string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	storage, err := s.load()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if _, ok := storage.Profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	delete(storage.Profiles, name)

	if err := s.save(storage); err != nil {
		return fmt.Errorf("failed to save profiles after deletion: %w", err)
	}
	return nil
}

// Exists reports whether a profile with the given name exists
func (s *FileProfileStore) Exists(name string) bool {
	if name == "" {
		return false
	}

	storage, err := s.load()
	if err != nil {
		return false
	}

	_, ok := storage.Profiles[name]
	return ok
}

// load reads the profile file; a missing file is an empty store
func (s *FileProfileStore) load() (profileStorage, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return profileStorage{Profiles: make(map[string]Profile), Version: storageVersion}, nil
		}
		return profileStorage{}, fmt.Errorf("failed to read profile file: %w", err)
	}

	var storage profileStorage
	if err := json.Unmarshal(data, &storage); err != nil {
		return profileStorage{}, fmt.Errorf("failed to parse profile file: %w", err)
	}

	if storage.Profiles == nil {
		storage.Profiles = make(map[string]Profile)
	}
	return storage, nil
}

// save writes through a temporary file and a rename
func (s *FileProfileStore) save(storage profileStorage) error {
	path := s.Path()

	data, err := json.MarshalIndent(storage, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary profile file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary profile file: %w", err)
	}
	return nil
}
