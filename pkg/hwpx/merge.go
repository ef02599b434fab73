package hwpx

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

// templateKey identifies the template in errors and logs
const templateKey = "template"

// SourceRef is one entry of a merge request
type SourceRef struct {
	// Key identifies the source for the SourceProvider.
	Key string
	// Fragment is optional pre-extracted content. When empty or unusable
	// the full section body of the source is merged.
	Fragment string
	// OrderKey is carried through to the result for the caller.
	OrderKey string
}

// MergeRequest lists the sources in output order
type MergeRequest struct {
	Sources    []SourceRef
	OutputName string
}

// Result is a merged container
type Result struct {
	Name  string
	Bytes []byte
	// Digest is the hex BLAKE3-256 of Bytes.
	Digest string
	RunID  string
	Blocks []Block
	// Warnings lists the non-fatal conditions met while merging, such as
	// ResourceMissingError and DegradedError values.
	Warnings []error
	// Mirrored is set when the single source was returned untouched.
	Mirrored bool
}

// Merge assembles the requested sources onto the template. Either a
// complete, verified container is returned or an error; partial output is
// never returned.
func (e *Engine) Merge(ctx context.Context, req MergeRequest) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = RecoverError(r)
		}
	}()

	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.config.Mirror {
		if len(req.Sources) == 1 {
			return e.mirror(ctx, req, runID, logger)
		}
		logger.Debug("mirror mode disabled", zap.Int("sources", len(req.Sources)))
	}

	state, err := e.newMergeState(ctx, logger)
	if err != nil {
		return nil, err
	}

	docs, err := e.loadSources(ctx, req.Sources, logger)
	if err != nil {
		return nil, err
	}

	for i, ref := range req.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state.mergeSource(i, ref, docs[ref.Key])
	}

	data, err := state.finish()
	if err != nil {
		return nil, err
	}

	digest := blake3.Sum256(data)
	result = &Result{
		Name:     req.OutputName,
		Bytes:    data,
		Digest:   hex.EncodeToString(digest[:]),
		RunID:    runID,
		Blocks:   state.blocks,
		Warnings: state.warnings,
	}

	logger.Info("merge complete",
		zap.String("output", req.OutputName),
		zap.Int("sources", len(req.Sources)),
		zap.Int("resources", len(state.packer.Resources())),
		zap.Int("warnings", len(state.warnings)),
		zap.Int("bytes", len(data)))
	return result, nil
}

// mirror returns the only source exactly as stored. No parsing or
// verification takes place.
func (e *Engine) mirror(ctx context.Context, req MergeRequest, runID string, logger *zap.Logger) (*Result, error) {
	ref := req.Sources[0]
	data, err := e.sources.Fetch(ctx, ref.Key)
	if err != nil {
		return nil, NewLoadError(ref.Key, err)
	}

	digest := blake3.Sum256(data)
	logger.Info("mirrored single source", sourceFields(0, ref)...)
	return &Result{
		Name:     req.OutputName,
		Bytes:    data,
		Digest:   hex.EncodeToString(digest[:]),
		RunID:    runID,
		Blocks:   []Block{{Index: 0, Key: ref.Key, OrderKey: ref.OrderKey}},
		Mirrored: true,
	}, nil
}

// loadSources fetches every distinct source under the configured timeout
func (e *Engine) loadSources(ctx context.Context, refs []SourceRef, logger *zap.Logger) (map[string]*SourceDocument, error) {
	if len(refs) == 0 {
		return map[string]*SourceDocument{}, nil
	}

	if e.config.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.LoadTimeout)
		defer cancel()
	}

	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = ref.Key
	}

	loader := newSourceLoader(e.sources, e.config.LoadConcurrency, logger)
	docs, err := loader.loadAll(ctx, keys)
	if err != nil {
		return nil, err
	}
	logger.Debug("sources loaded", zap.Int("requested", len(refs)), zap.Int("distinct", len(docs)))
	return docs, nil
}

// mergeState is everything one merge call mutates. It is never shared
// between calls.
type mergeState struct {
	config *Config
	logger *zap.Logger

	template *Container
	header   *etree.Document
	section  *etree.Document
	manifest *Manifest
	setup    *pageSetup

	remap     *Remapper
	registry  *Registry
	counter   *paragraphCounter
	assembler *contentAssembler
	packer    *resourcePacker

	blocks   []Block
	warnings []error
}

// newMergeState loads the template and prepares it for merging: the page
// setup is detached and the template body cleared
func (e *Engine) newMergeState(ctx context.Context, logger *zap.Logger) (*mergeState, error) {
	data, err := e.templates.Template(ctx)
	if err != nil {
		return nil, NewLoadError(templateKey, err)
	}

	template, err := OpenContainer(data)
	if err != nil {
		return nil, NewFormatError(templateKey, "", "not a zip container", err)
	}
	header, err := parseRequiredStream(templateKey, template, HeaderPath, "head")
	if err != nil {
		return nil, err
	}
	section, err := parseRequiredStream(templateKey, template, SectionPath, "sec")
	if err != nil {
		return nil, err
	}
	if !template.HasPart(ManifestPath) {
		return nil, NewFormatError(templateKey, ManifestPath, "required stream missing", nil)
	}
	manifestData, err := template.GetPart(ManifestPath)
	if err != nil {
		return nil, NewFormatError(templateKey, ManifestPath, "unreadable", err)
	}
	manifest, err := parseManifest(manifestData)
	if err != nil {
		return nil, NewFormatError(templateKey, ManifestPath, "malformed", err)
	}

	body := section.Root()
	setup, err := detachPageSetup(body)
	if err != nil {
		return nil, NewFormatError(templateKey, SectionPath, err.Error(), nil)
	}
	hxml.RemoveChildren(body)

	remap := NewRemapper(e.config.Sentinels, RefMatchMode(e.config.RefMatch))
	registry := NewRegistry(header)
	counter := newParagraphCounter(e.now())

	return &mergeState{
		config:    e.config,
		logger:    logger,
		template:  template,
		header:    header,
		section:   section,
		manifest:  manifest,
		setup:     setup,
		remap:     remap,
		registry:  registry,
		counter:   counter,
		assembler: newContentAssembler(body, counter, remap, logger),
		packer:    newResourcePacker(registry, manifest, template.ListParts(), remap, logger),
	}, nil
}

// mergeSource merges the definitions, resources and content of one source
func (s *mergeState) mergeSource(index int, ref SourceRef, src *SourceDocument) {
	prefix := s.config.Prefix(index)
	logger := s.logger.With(sourceFields(index, ref)...)

	stats := s.registry.MergeDefinitions(src.Header, prefix, s.remap, logger)

	missing := s.packer.pack(src, prefix)
	s.warnings = append(s.warnings, missing...)

	block, err := s.assembler.importSource(index, ref, src, prefix)
	if err != nil {
		s.warnings = append(s.warnings, err)
	}
	s.blocks = append(s.blocks, block)

	logger.Debug("source merged",
		zap.String("prefix", prefix),
		zap.Int("definitions", stats.Total()),
		zap.Int("missing_resources", len(missing)),
		zap.Int("paragraphs", block.Paragraphs))
}

// finish finalizes the header, puts the page setup back, verifies the
// result and writes the container
func (s *mergeState) finish() ([]byte, error) {
	finalizeHeader(s.header.Root())
	s.setup.reinject(s.section.Root(), s.counter.Next)

	header, err := hxml.Serialize(s.header)
	if err != nil {
		return nil, WithContext(err, "serializing header", nil)
	}
	section, err := hxml.Serialize(s.section)
	if err != nil {
		return nil, WithContext(err, "serializing section", nil)
	}
	manifest, err := s.manifest.Bytes()
	if err != nil {
		return nil, WithContext(err, "serializing manifest", nil)
	}

	out := &packageWriter{
		template: s.template,
		streams: map[string][]byte{
			HeaderPath:   header,
			SectionPath:  section,
			ManifestPath: manifest,
		},
		resources: s.packer.Resources(),
	}

	err = verifyIntegrity(outputStreams{
		Header:   header,
		Section:  section,
		Manifest: manifest,
		Files:    out.entryNames(),
	})
	if err != nil {
		s.logger.Error("merged document failed verification", zap.Error(err))
		return nil, err
	}

	data, err := out.write()
	if err != nil {
		return nil, fmt.Errorf("failed to write container: %w", err)
	}
	return data, nil
}
