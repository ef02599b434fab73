package hwpx

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Engine merges source documents onto a template.
// Use New() to create an engine. An Engine holds no per-merge state and is
// safe for concurrent use.
type Engine struct {
	config    *Config
	sources   SourceProvider
	templates TemplateProvider
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithConfig replaces the default configuration. Unset fields keep their
// defaults.
func WithConfig(config *Config) Option {
	return func(e *Engine) {
		e.config = NewConfigWithDefaults(config)
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the clock that seeds paragraph ids
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates a merge engine reading sources and the template from the
// given providers.
func New(sources SourceProvider, templates TemplateProvider, opts ...Option) (*Engine, error) {
	if sources == nil {
		return nil, errors.New("source provider is required")
	}
	if templates == nil {
		return nil, errors.New("template provider is required")
	}

	e := &Engine{
		config:    DefaultConfig(),
		sources:   sources,
		templates: templates,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return e, nil
}

// Config returns a copy of the engine configuration
func (e *Engine) Config() Config {
	return *e.config
}
