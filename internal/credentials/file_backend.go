package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const sessionFile = "session.json"

// FileBackend keeps all keys in a single JSON document on the local filesystem.
type FileBackend struct {
	mu      sync.Mutex
	baseDir string
}

// NewFileBackend creates a file backed key/value store.
// If baseDir is empty, uses ~/.smartcampus/
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".smartcampus")
	}

	// Create directory with 0700 permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("file backend initialized")

	return &FileBackend{baseDir: baseDir}, nil
}

// Path returns the location of the session document.
func (b *FileBackend) Path() string {
	return filepath.Join(b.baseDir, sessionFile)
}

func (b *FileBackend) Get(key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	values, err := b.load()
	if err != nil {
		return "", false, err
	}

	value, ok := values[key]
	return value, ok, nil
}

func (b *FileBackend) Set(key, value string) error {
	return b.Update(map[string]string{key: value})
}

func (b *FileBackend) Delete(key string) error {
	return b.Update(nil, key)
}

// Update applies all changes with a single write of the session document.
func (b *FileBackend) Update(set map[string]string, remove ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	values, err := b.load()
	if err != nil {
		return err
	}

	changed := false
	for key, value := range set {
		if current, ok := values[key]; !ok || current != value {
			values[key] = value
			changed = true
		}
	}
	for _, key := range remove {
		if _, ok := values[key]; ok {
			delete(values, key)
			changed = true
		}
	}

	if !changed {
		return nil
	}

	return b.save(values)
}

// load reads the session document. A missing file is an empty store.
func (b *FileBackend) load() (map[string]string, error) {
	data, err := os.ReadFile(b.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}

	return values, nil
}

// save writes the session document atomically. Each write goes through its own
// temp file so concurrent processes never share one.
func (b *FileBackend) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}

	tmp, err := os.CreateTemp(b.baseDir, "session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write session file: %w", err)
	}

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to set session file permissions: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write session file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, b.Path()); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save session file: %w", err)
	}

	return nil
}
