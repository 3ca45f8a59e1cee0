package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileStore keeps settings in a YAML file.
type FileStore struct {
	filePath string
}

// NewFileStore creates a YAML backed store.
func NewFileStore(filePath string) *FileStore {
	return &FileStore{filePath: filePath}
}

// Load reads the settings file. Keys missing from the file keep their defaults.
func (f *FileStore) Load(_ context.Context) (Settings, error) {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Settings{}, ErrNotFound
		}
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}

	s := Defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings yaml: %w", err)
	}
	return s, nil
}

// Save writes the settings atomically (temp file + rename).
func (f *FileStore) Save(_ context.Context, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write settings: %w", writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close settings: %w", closeErr)
	}

	if err := os.Rename(tmpPath, f.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}

// MemoryStore keeps settings in memory. Used when no persistence is configured.
type MemoryStore struct {
	s     Settings
	saved bool
}

func (m *MemoryStore) Load(context.Context) (Settings, error) {
	if !m.saved {
		return Settings{}, ErrNotFound
	}
	return m.s, nil
}

func (m *MemoryStore) Save(_ context.Context, s Settings) error {
	m.s, m.saved = s, true
	return nil
}
