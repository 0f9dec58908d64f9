package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileCache persists the lookup table as one local JSON file. Writes rewrite
// the whole file through a tmp rename; gauge creations are rare enough that
// this stays cheap.
type FileCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path, entries: make(map[string]string)}
}

func (c *FileCache) Load(_ context.Context) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read lookup cache: %w", err)
	}

	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse lookup cache: %w", err)
	}
	c.entries = entries

	out := make(map[string]string, len(entries))
	for key, pool := range entries {
		out[key] = pool
	}
	return out, nil
}

func (c *FileCache) Put(_ context.Context, key, pool string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = pool

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create lookup cache dir: %w", err)
		}
	}
	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("marshal lookup cache: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write lookup cache tmp: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("rename lookup cache: %w", err)
	}
	return nil
}

var _ Cache = (*FileCache)(nil)
