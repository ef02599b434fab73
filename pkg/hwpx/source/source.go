// Package source provides storage backends for the merge engine: a
// directory of containers, an in-memory map, a SQLite table and a cached
// template file.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx"
)

// Extension is appended to keys by the directory provider.
const Extension = ".hwpx"

// Dir serves sources stored as <root>/<key>.hwpx
type Dir struct {
	root string
}

// NewDir creates a directory provider
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Fetch reads the container for key
func (d *Dir) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := d.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, hwpx.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read source %s: %w", key, err)
	}
	return data, nil
}

// path resolves a key inside the root, refusing keys that escape it
func (d *Dir) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid source key %q", key)
	}
	if !strings.HasSuffix(strings.ToLower(key), Extension) {
		key += Extension
	}
	return filepath.Join(d.root, key), nil
}

// Memory serves sources held in memory. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemory creates a provider over a copy of docs
func NewMemory(docs map[string][]byte) *Memory {
	m := &Memory{docs: make(map[string][]byte, len(docs))}
	for k, v := range docs {
		m.docs[k] = v
	}
	return m
}

// Put stores a container under key
func (m *Memory) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = data
}

// Fetch returns the container stored under key
func (m *Memory) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.docs[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, hwpx.ErrNotFound)
	}
	return data, nil
}
