package hwpx

import (
	"context"
)

// SourceProvider returns the raw container bytes of a source document.
// Unknown keys yield an error wrapping ErrNotFound.
type SourceProvider interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// TemplateProvider returns the fixed base container.
type TemplateProvider interface {
	Template(ctx context.Context) ([]byte, error)
}

// SourceProviderFunc adapts a function to SourceProvider
type SourceProviderFunc func(ctx context.Context, key string) ([]byte, error)

// Fetch calls f
func (f SourceProviderFunc) Fetch(ctx context.Context, key string) ([]byte, error) {
	return f(ctx, key)
}

// TemplateBytes serves a template held in memory
type TemplateBytes []byte

// Template returns the bytes
func (t TemplateBytes) Template(_ context.Context) ([]byte, error) {
	return t, nil
}
