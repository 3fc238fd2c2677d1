package session

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CredentialStore persists the one opaque bearer credential across restarts.
// Implementations: File (durable), Memory (tests and credential-less runs).
type CredentialStore interface {
	Load() (string, error)
	Save(raw string) error
	Erase() error
}

// Memory keeps the credential for the lifetime of the process.
type Memory struct {
	mu  sync.Mutex
	raw string
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw, nil
}

func (m *Memory) Save(raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = raw
	return nil
}

func (m *Memory) Erase() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = ""
	return nil
}

// File stores the credential as a single 0600 file.
type File struct {
	path string
}

func NewFile(path string) *File { return &File{path: path} }

func (f *File) Load() (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *File) Save(raw string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.path, []byte(raw+"\n"), 0o600)
}

func (f *File) Erase() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
