package hwpx

import (
	"errors"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

// paragraphCounter hands out paragraph ids for one merge. It is seeded from
// the wall clock so ids are unique within a run and, in practice, across
// runs.
type paragraphCounter struct {
	next uint64
}

func newParagraphCounter(now time.Time) *paragraphCounter {
	// The consumer reads ids as signed 32-bit; keep the seed well below 2^31.
	return &paragraphCounter{next: uint64(now.UnixMilli()) % (1 << 30)}
}

// Next returns a fresh paragraph id
func (c *paragraphCounter) Next() string {
	id := c.next
	c.next++
	return strconv.FormatUint(id, 10)
}

var errEmptyFragment = errors.New("fragment holds no elements")

// Block describes the content one source contributed
type Block struct {
	Index            int
	Key              string
	OrderKey         string
	Prefix           string
	Paragraphs       int
	FirstParagraphID string
	Degraded         bool
}

// contentAssembler appends source content to the target section
type contentAssembler struct {
	section *etree.Element
	counter *paragraphCounter
	remap   *Remapper
	logger  *zap.Logger
}

func newContentAssembler(section *etree.Element, counter *paragraphCounter, remap *Remapper, logger *zap.Logger) *contentAssembler {
	return &contentAssembler{
		section: section,
		counter: counter,
		remap:   remap,
		logger:  logger,
	}
}

// importSource appends the content of one source. A fragment that cannot
// be used degrades to the full body; the returned error reports that and
// is never fatal.
func (a *contentAssembler) importSource(index int, ref SourceRef, src *SourceDocument, prefix string) (Block, error) {
	block := Block{
		Index:    index,
		Key:      ref.Key,
		OrderKey: ref.OrderKey,
		Prefix:   prefix,
	}
	logger := a.logger.With(sourceFields(index, ref)...)

	nodes, degraded := a.sourceNodes(ref, src)
	if degraded != nil {
		block.Degraded = true
		logger.Warn("fragment unusable, merging full body", zap.Error(degraded.Cause))
	}

	decls := make(map[string]string)
	hxml.CollectNamespaceDecls(src.Section.Root(), decls)

	stripped := 0
	for _, node := range nodes {
		if hxml.Is(node, sectionPropsTag) || isColumnControl(node) {
			stripped++
			continue
		}

		imported := node.Copy()
		stripped += stripPageSetup(imported)

		hxml.Walk(imported, func(n *etree.Element) bool {
			if hxml.Is(n, paragraphTag) {
				id := a.counter.Next()
				hxml.SetAttr(n, "id", id)
				if block.FirstParagraphID == "" {
					block.FirstParagraphID = id
				}
				block.Paragraphs++
			}
			return true
		})

		a.remap.Apply(imported, prefix)
		hxml.CollectNamespaceDecls(imported, decls)
		hxml.StripNamespaceDecls(imported)
		a.section.AddChild(imported)
	}
	warnNamespaceConflicts(logger, a.section, decls)
	hxml.DeclareNamespaces(a.section, decls)

	logger.Debug("merged content",
		zap.Int("paragraphs", block.Paragraphs),
		zap.Int("page_setups_stripped", stripped))

	if degraded != nil {
		return block, degraded
	}
	return block, nil
}

// sourceNodes returns the top-level nodes to import: the parsed fragment
// when one is given and usable, the section body otherwise
func (a *contentAssembler) sourceNodes(ref SourceRef, src *SourceDocument) ([]*etree.Element, *DegradedError) {
	body := src.Section.Root().ChildElements()
	if ref.Fragment == "" {
		return body, nil
	}

	nodes, err := hxml.ParseFragment(ref.Fragment)
	if err != nil {
		return body, &DegradedError{Key: ref.Key, Cause: err}
	}
	if len(nodes) == 0 {
		return body, &DegradedError{Key: ref.Key, Cause: errEmptyFragment}
	}
	return nodes, nil
}
