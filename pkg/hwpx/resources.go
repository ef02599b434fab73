package hwpx

import (
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

// BinaryResource is a payload relocated into the merged container
type BinaryResource struct {
	ID        string
	Path      string
	Data      []byte
	MediaType string
}

// resourcePacker relocates binary payloads of sources into the target
// container under collision-free paths and keeps the header and manifest
// in step with the written files.
type resourcePacker struct {
	registry *Registry
	manifest *Manifest
	remap    *Remapper
	logger   *zap.Logger

	// taken holds normalized paths already present in the output
	taken     map[string]bool
	resources []BinaryResource
}

func newResourcePacker(registry *Registry, manifest *Manifest, existing []string, remap *Remapper, logger *zap.Logger) *resourcePacker {
	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		taken[normalizePartPath(name)] = true
	}
	return &resourcePacker{
		registry: registry,
		manifest: manifest,
		remap:    remap,
		logger:   logger,
		taken:    taken,
	}
}

// Resources returns every payload packed so far, in packing order
func (p *resourcePacker) Resources() []BinaryResource {
	return p.resources
}

// pack copies the binary payloads of one source. Items whose payload cannot
// be found are skipped and returned as ResourceMissingError values.
func (p *resourcePacker) pack(src *SourceDocument, prefix string) []error {
	items := p.headerItems(src)
	if len(items) == 0 {
		return p.packManifestItems(src, prefix)
	}

	var missing []error
	for _, def := range items {
		id, _ := hxml.AttrValue(def, "id")
		if id == "" || p.remap.IsSentinel(id) {
			continue
		}
		newID := p.remap.Namespaced(prefix, id)
		if p.registry.Has(CategoryBinaryItem, newID) {
			continue
		}

		payload, data, err := resolvePayload(src, def)
		if err != nil {
			missing = append(missing, err)
			p.logger.Warn("binary payload missing, item dropped",
				zap.String("source", src.Key),
				zap.String("item", id),
				zap.Error(err))
			continue
		}

		imported, ok := p.registry.Import(CategoryBinaryItem, def, nil, prefix, p.remap)
		if !ok {
			continue
		}

		res := p.add(newID, payload, def, data)
		// href is set last: the suffix matcher treats it as a reference.
		hxml.SetAttr(imported, "href", res.Path)
	}
	return missing
}

// packManifestItems handles sources that declare their payloads only in the
// manifest. No header definition is created for them.
func (p *resourcePacker) packManifestItems(src *SourceDocument, prefix string) []error {
	var missing []error
	for _, item := range src.Manifest.BinaryItems() {
		if item.ID == "" || p.remap.IsSentinel(item.ID) {
			continue
		}
		newID := p.remap.Namespaced(prefix, item.ID)
		if _, exists := p.manifest.Lookup(newID); exists {
			continue
		}

		data, err := readPayload(src, item.Href)
		if err != nil {
			missing = append(missing, &ResourceMissingError{Key: src.Key, ItemID: item.ID, Path: item.Href})
			p.logger.Warn("binary payload missing, item dropped",
				zap.String("source", src.Key),
				zap.Stringer("item", item))
			continue
		}
		p.add(newID, item.Href, nil, data)
	}
	return missing
}

// add allocates a path for a payload, records it, and appends its manifest
// entry
func (p *resourcePacker) add(newID, sourcePath string, def *etree.Element, data []byte) BinaryResource {
	ext := path.Ext(sourcePath)
	if ext == "" && def != nil {
		if format, ok := hxml.AttrValue(def, "format"); ok && format != "" {
			ext = "." + strings.ToLower(format)
		}
	}

	res := BinaryResource{
		ID:        newID,
		Path:      p.allocatePath(newID, ext),
		Data:      data,
		MediaType: mediaTypeFor(ext),
	}
	p.resources = append(p.resources, res)
	p.manifest.Add(ManifestItem{ID: res.ID, Href: res.Path, MediaType: res.MediaType})

	p.logger.Debug("packed binary resource",
		zap.String("id", res.ID),
		zap.String("path", res.Path),
		zap.Int("bytes", len(data)))
	return res
}

// allocatePath returns BinData/<id><ext>, adding a numeric suffix while the
// name collides case-insensitively with an existing part
func (p *resourcePacker) allocatePath(id, ext string) string {
	base := BinDataDir + id
	candidate := base + ext
	for n := 1; p.taken[normalizePartPath(candidate)]; n++ {
		candidate = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	p.taken[normalizePartPath(candidate)] = true
	return candidate
}

// headerItems returns the binary item definitions of a source header
func (p *resourcePacker) headerItems(src *SourceDocument) []*etree.Element {
	list := p.registry.findList(src.Header.Root(), CategoryBinaryItem)
	return hxml.Children(list, CategoryBinaryItem.ItemName())
}

// resolvePayload locates the payload of a header binary item by trying its
// href, then the manifest entry with the same id, then BinData/<id>.<format>
func resolvePayload(src *SourceDocument, def *etree.Element) (string, []byte, error) {
	id, _ := hxml.AttrValue(def, "id")

	var candidates []string
	if href, ok := hxml.AttrValue(def, "href"); ok && href != "" {
		candidates = append(candidates, href)
	}
	if item, ok := src.Manifest.Lookup(id); ok && item.Href != "" {
		candidates = append(candidates, item.Href)
	}
	if format, ok := hxml.AttrValue(def, "format"); ok && format != "" {
		candidates = append(candidates, BinDataDir+id+"."+format)
	}

	for _, candidate := range candidates {
		if data, err := readPayload(src, candidate); err == nil {
			return candidate, data, nil
		}
	}

	missing := &ResourceMissingError{Key: src.Key, ItemID: id}
	if len(candidates) > 0 {
		missing.Path = candidates[0]
	}
	return "", nil, missing
}

func readPayload(src *SourceDocument, name string) ([]byte, error) {
	if !src.Container.HasPart(name) {
		return nil, fmt.Errorf("part %s not found", name)
	}
	return src.Container.GetPart(name)
}
