package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSystem defines minimum operations required for storage.
// core.FileSystem implementations satisfy it.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
}

// Manager manages reading/writing the state file.
// Hosts run concurrently, so every access goes through mu.
type Manager struct {
	FilePath string
	Current  *State
	FS       FileSystem
	// MaxHistory caps the stored transactions. Zero keeps everything.
	MaxHistory int
	mu         sync.RWMutex
}

// NewManager creates a new state manager and loads the existing file.
// A missing file starts an empty state.
func NewManager(path string, fsys FileSystem) (*Manager, error) {
	mgr := &Manager{
		FilePath:   path,
		Current:    NewState(),
		FS:         fsys,
		MaxHistory: 500,
	}

	if err := mgr.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load state %s: %w", path, err)
	}
	return mgr, nil
}

// Load reads state file from abstract FS.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.FS.ReadFile(m.FilePath)
	if err != nil {
		return err
	}

	loaded := NewState()
	if err := json.Unmarshal(data, loaded); err != nil {
		return err
	}
	if loaded.Hosts == nil { // Eski dosyalarda hosts alanı olmayabilir
		loaded.Hosts = make(map[string]HostEntry)
	}
	m.Current = loaded
	return nil
}

// Save writes current state to abstract FS.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	m.Current.LastRun = time.Now()

	data, err := json.MarshalIndent(m.Current, "", "  ")
	if err != nil {
		return err
	}

	// Dizin yoksa oluştur
	if err := m.FS.MkdirAll(filepath.Dir(m.FilePath), 0755); err != nil {
		return err
	}
	return m.FS.WriteFile(m.FilePath, data, 0644)
}

// Host returns the last recorded outcome for host.
func (m *Manager) Host(host string) (HostEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.Current.Hosts[host]
	return e, ok
}
