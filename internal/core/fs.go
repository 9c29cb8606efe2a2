package core

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileSystem is the subset of file operations fleetprov needs on a host.
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(name string) error
}

// RealFS is the local filesystem.
type RealFS struct{}

func (f *RealFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }
func (f *RealFS) ReadFile(name string) ([]byte, error)  { return os.ReadFile(name) }
func (f *RealFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}
func (f *RealFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (f *RealFS) Remove(name string) error                     { return os.Remove(name) }

// MemFS is an in-memory FileSystem, used by mock transports.
type MemFS struct {
	Files map[string]string
}

func NewMemFS() *MemFS {
	return &MemFS{Files: make(map[string]string)}
}

func (m *MemFS) Stat(name string) (fs.FileInfo, error) {
	if content, ok := m.Files[name]; ok {
		return &memFileInfo{name: name, size: int64(len(content))}, nil
	}
	return nil, os.ErrNotExist
}

func (m *MemFS) ReadFile(name string) ([]byte, error) {
	if content, ok := m.Files[name]; ok {
		return []byte(content), nil
	}
	return nil, os.ErrNotExist
}

func (m *MemFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	m.Files[name] = string(data)
	return nil
}

func (m *MemFS) MkdirAll(path string, perm os.FileMode) error { return nil }

func (m *MemFS) Remove(name string) error {
	delete(m.Files, name)
	return nil
}

type memFileInfo struct {
	name string
	size int64
}

func (m *memFileInfo) Name() string       { return filepath.Base(m.name) }
func (m *memFileInfo) Size() int64        { return m.size }
func (m *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (m *memFileInfo) ModTime() time.Time { return time.Time{} }
func (m *memFileInfo) IsDir() bool        { return false }
func (m *memFileInfo) Sys() interface{}   { return nil }
