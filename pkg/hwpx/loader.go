package hwpx

import (
	"context"
	"errors"
	"sync"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

// SourceDocument is one loaded container. Merging copies subtrees out of
// it and never mutates it.
type SourceDocument struct {
	Key       string
	Header    *etree.Document
	Section   *etree.Document
	Manifest  *Manifest
	Container *Container
}

// Raw returns the container bytes exactly as fetched
func (d *SourceDocument) Raw() []byte {
	return d.Container.Bytes()
}

// ParseSourceDocument opens a container and parses the streams the merge
// needs. A missing manifest is tolerated; header and section are required.
func ParseSourceDocument(key string, data []byte) (*SourceDocument, error) {
	container, err := OpenContainer(data)
	if err != nil {
		return nil, NewFormatError(key, "", "not a zip container", err)
	}

	header, err := parseRequiredStream(key, container, HeaderPath, "head")
	if err != nil {
		return nil, err
	}

	section, err := parseRequiredStream(key, container, SectionPath, "sec")
	if err != nil {
		return nil, err
	}

	manifest := emptyManifest()
	if container.HasPart(ManifestPath) {
		data, err := container.GetPart(ManifestPath)
		if err != nil {
			return nil, NewFormatError(key, ManifestPath, "unreadable", err)
		}
		manifest, err = parseManifest(data)
		if err != nil {
			return nil, NewFormatError(key, ManifestPath, "malformed", err)
		}
	}

	return &SourceDocument{
		Key:       key,
		Header:    header,
		Section:   section,
		Manifest:  manifest,
		Container: container,
	}, nil
}

func parseRequiredStream(key string, container *Container, part, root string) (*etree.Document, error) {
	if !container.HasPart(part) {
		return nil, NewFormatError(key, part, "required stream missing", nil)
	}
	data, err := container.GetPart(part)
	if err != nil {
		return nil, NewFormatError(key, part, "unreadable", err)
	}
	doc, err := hxml.Parse(data)
	if err != nil {
		return nil, NewFormatError(key, part, "malformed", err)
	}
	if !hxml.Is(doc.Root(), root) {
		return nil, NewFormatError(key, part, "unexpected root element "+doc.Root().Tag, nil)
	}
	return doc, nil
}

// sourceLoader fetches and parses sources for one merge. Each key is
// loaded at most once; distinct keys load concurrently.
type sourceLoader struct {
	provider    SourceProvider
	concurrency int
	logger      *zap.Logger

	group singleflight.Group
	mu    sync.Mutex
	docs  map[string]*SourceDocument
}

func newSourceLoader(provider SourceProvider, concurrency int, logger *zap.Logger) *sourceLoader {
	return &sourceLoader{
		provider:    provider,
		concurrency: concurrency,
		logger:      logger,
		docs:        make(map[string]*SourceDocument),
	}
}

// loadAll loads every distinct key. The first failure cancels the rest.
func (l *sourceLoader) loadAll(ctx context.Context, keys []string) (map[string]*SourceDocument, error) {
	g, gctx := errgroup.WithContext(ctx)
	if l.concurrency > 0 {
		g.SetLimit(l.concurrency)
	}

	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		key := key
		g.Go(func() error {
			_, err := l.load(gctx, key)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]*SourceDocument, len(l.docs))
	for k, v := range l.docs {
		out[k] = v
	}
	return out, nil
}

// load returns the cached document for key or fetches it, sharing one
// fetch between concurrent callers
func (l *sourceLoader) load(ctx context.Context, key string) (*SourceDocument, error) {
	l.mu.Lock()
	if doc, ok := l.docs[key]; ok {
		l.mu.Unlock()
		return doc, nil
	}
	l.mu.Unlock()

	v, err, shared := l.group.Do(key, func() (interface{}, error) {
		data, err := l.provider.Fetch(ctx, key)
		if err != nil {
			return nil, NewLoadError(key, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, NewLoadError(key, err)
		}

		doc, err := ParseSourceDocument(key, data)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.docs[key] = doc
		l.mu.Unlock()
		return doc, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			l.logger.Warn("source not found", zap.String("source", key))
		}
		return nil, err
	}

	l.logger.Debug("source loaded", zap.String("source", key), zap.Bool("shared", shared))
	return v.(*SourceDocument), nil
}
