package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MemoryStore keeps documents in memory. With a directory configured every
// Save is also written to <dir>/<key>.json and documents are seeded from
// there on creation.
type MemoryStore struct {
	mu          sync.Mutex
	docs        map[string][]byte
	quarantined map[string][][]byte
	dir         string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string][]byte{}, quarantined: map[string][][]byte{}}
}

// NewFileStore loads any existing <key>.json files from dir and persists
// subsequent saves there.
func NewFileStore(dir string) (*MemoryStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s := NewMemoryStore()
	s.dir = dir

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		s.docs[strings.TrimSuffix(name, ".json")] = body
	}
	return s, nil
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.docs[key]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return append([]byte(nil), body...), nil
}

func (s *MemoryStore) Save(_ context.Context, key string, body []byte) error {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return errors.New("invalid document key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		if err := writeFileAtomic(filepath.Join(s.dir, key+".json"), body); err != nil {
			return fmt.Errorf("save document %s: %w", key, err)
		}
	}
	s.docs[key] = append([]byte(nil), body...)
	return nil
}

func (s *MemoryStore) Quarantine(_ context.Context, key string, body []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quarantined[key] = append(s.quarantined[key], append([]byte(nil), body...))
	if s.dir != "" {
		safe := strings.NewReplacer("/", "_", `\`, "_").Replace(key)
		name := fmt.Sprintf("%s.corrupt-%d", safe, len(s.quarantined[key]))
		if err := writeFileAtomic(filepath.Join(s.dir, name), body); err != nil {
			return fmt.Errorf("quarantine document %s: %w", key, err)
		}
	}
	return nil
}

// Quarantined returns the bodies quarantined under key.
func (s *MemoryStore) Quarantined(key string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.quarantined[key]...)
}

func writeFileAtomic(path string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
