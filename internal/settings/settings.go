// Package settings persists the user-facing tip configuration.
//
// Two values live in the "tiplens" namespace: the list of tips the user has
// dismissed and a tri-state flag hiding easy tips. The flag is a pointer so
// "never answered" stays distinguishable from false.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
)

// EnvPath overrides the settings file location.
const EnvPath = "TIPLENS_SETTINGS"

// ErrPersist wraps failures to write settings back to storage.
var ErrPersist = errors.New("persist settings")

// Settings is the persisted configuration.
type Settings struct {
	HiddenTips    []string `toml:"hidden_tips"`
	HideBasicTips *bool    `toml:"hide_basic_tips,omitempty"`
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := Settings{HiddenTips: slices.Clone(s.HiddenTips)}
	if s.HideBasicTips != nil {
		v := *s.HideBasicTips
		out.HideBasicTips = &v
	}
	return out
}

// Bool returns a pointer to v, for HideBasicTips.
func Bool(v bool) *bool {
	return &v
}

// Storage reads and writes settings.
type Storage interface {
	Load() (Settings, error)
	Save(Settings) error
}

type file struct {
	Tiplens Settings `toml:"tiplens"`
}

// FileStore keeps settings in a TOML file under a [tiplens] table.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store for path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns $TIPLENS_SETTINGS, or settings.toml under the user
// config directory.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "tiplens", "settings.toml"), nil
}

// Path returns the file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the file. A missing file yields zero settings.
func (f *FileStore) Load() (Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var doc file
	if _, err := toml.DecodeFile(f.path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("%s: failed to parse TOML: %w", f.path, err)
	}
	return doc.Tiplens, nil
}

// Save writes s atomically.
func (f *FileStore) Save(s Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.save(s); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersist, f.path, err)
	}
	return nil
}

func (f *FileStore) save(s Settings) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	mode := os.FileMode(0o644)
	if info, err := os.Stat(f.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}

	s = s.Clone()
	sort.Strings(s.HiddenTips)
	if s.HiddenTips == nil {
		s.HiddenTips = []string{}
	}
	if err := toml.NewEncoder(tmp).Encode(file{Tiplens: s}); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// MemoryStore keeps settings in memory.
type MemoryStore struct {
	mu      sync.Mutex
	current Settings
	// SaveErr, when set, is returned from every Save.
	SaveErr error
	saves   int
}

// NewMemoryStore returns a store seeded with initial.
func NewMemoryStore(initial Settings) *MemoryStore {
	return &MemoryStore{current: initial.Clone()}
}

func (m *MemoryStore) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone(), nil
}

func (m *MemoryStore) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return fmt.Errorf("%w: %v", ErrPersist, m.SaveErr)
	}
	m.current = s.Clone()
	m.saves++
	return nil
}

// Saves counts successful writes.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Update applies fn to the stored settings and saves the result.
func Update(store Storage, fn func(*Settings)) error {
	current, err := store.Load()
	if err != nil {
		return err
	}
	fn(&current)
	return store.Save(current)
}
