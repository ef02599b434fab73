package source

import (
	"context"
	"fmt"
	"os"

	"github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx"
)

// TemplateFile serves a template container from a local path. The bytes
// are cached when a cache is given, so repeated merges skip the disk.
type TemplateFile struct {
	path  string
	cache *hwpx.ByteCache
}

// NewTemplateFile creates a template provider. cache may be nil.
func NewTemplateFile(path string, cache *hwpx.ByteCache) *TemplateFile {
	return &TemplateFile{path: path, cache: cache}
}

// TemplateFromConfig creates a template provider with a cache sized by the
// configuration
func TemplateFromConfig(config *hwpx.Config) (*TemplateFile, error) {
	if config.TemplatePath == "" {
		return nil, fmt.Errorf("template path is not configured")
	}
	var cache *hwpx.ByteCache
	if config.TemplateCacheSize > 0 {
		cache = hwpx.NewByteCache(hwpx.CacheConfig{
			MaxSize: config.TemplateCacheSize,
			TTL:     config.TemplateCacheTTL,
		})
	}
	return NewTemplateFile(config.TemplatePath, cache), nil
}

// Template returns the template bytes
func (t *TemplateFile) Template(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.cache == nil {
		return t.read()
	}
	return t.cache.GetOrLoad(t.path, t.read)
}

func (t *TemplateFile) read() ([]byte, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	return data, nil
}
