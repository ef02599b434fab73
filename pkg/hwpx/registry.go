package hwpx

import (
	"github.com/beevik/etree"
	"go.uber.org/zap"

	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

// Category is one kind of shared, referenceable header definition.
// The declaration order of the refList categories is the order the
// consuming application expects them in.
type Category int

const (
	CategoryFont Category = iota
	CategoryBorderFill
	CategoryCharProperty
	CategoryTab
	CategoryNumbering
	CategoryBullet
	CategoryParaProperty
	CategoryStyle
	CategoryMemoProperty
	CategoryTrackChange
	CategoryTrackChangeAuthor
	CategoryBinaryItem
	CategoryEquationItem

	categoryCount
)

type categoryInfo struct {
	name string
	// list is the local name of the element holding the definitions
	list string
	// item is the local name of one definition
	item string
	// inRefList is false for resource lists, which sit directly under head
	inRefList bool
}

var categories = [categoryCount]categoryInfo{
	CategoryFont:              {"font", "fontfaces", "font", true},
	CategoryBorderFill:        {"border-fill", "borderFills", "borderFill", true},
	CategoryCharProperty:      {"char-property", "charProperties", "charPr", true},
	CategoryTab:               {"tab", "tabProperties", "tabPr", true},
	CategoryNumbering:         {"numbering", "numberings", "numbering", true},
	CategoryBullet:            {"bullet", "bullets", "bullet", true},
	CategoryParaProperty:      {"para-property", "paraProperties", "paraPr", true},
	CategoryStyle:             {"style", "styles", "style", true},
	CategoryMemoProperty:      {"memo-property", "memoProperties", "memoPr", true},
	CategoryTrackChange:       {"track-change", "trackChanges", "trackChange", true},
	CategoryTrackChangeAuthor: {"track-change-author", "trackChangeAuthors", "trackChangeAuthor", true},
	CategoryBinaryItem:        {"binary-item", "binDataList", "binItem", false},
	CategoryEquationItem:      {"equation-item", "eqItemList", "eqItem", false},
}

// Categories returns every category in consumer priority order
func Categories() []Category {
	out := make([]Category, 0, categoryCount)
	for c := Category(0); c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

func (c Category) String() string {
	if c < 0 || c >= categoryCount {
		return "unknown"
	}
	return categories[c].name
}

// ListName is the local name of the element holding this category
func (c Category) ListName() string {
	return categories[c].list
}

// ItemName is the local name of one definition of this category
func (c Category) ItemName() string {
	return categories[c].item
}

// fontface groups fonts per language; font ids are only unique inside one
const fontfaceTag = "fontface"

// Registry owns the definition lists of the merged header. It is seeded
// from the template and only appended to.
type Registry struct {
	head    *etree.Element
	refList *etree.Element
	lists   [categoryCount]*etree.Element
	ids     [categoryCount]map[string]bool
}

// MergeStats counts what one source contributed per category
type MergeStats struct {
	Added   [categoryCount]int
	Skipped [categoryCount]int
}

// Total returns the number of imported definitions
func (s MergeStats) Total() int {
	n := 0
	for _, v := range s.Added {
		n += v
	}
	return n
}

// NewRegistry indexes the definitions already present in a template header
func NewRegistry(header *etree.Document) *Registry {
	r := &Registry{head: header.Root()}
	r.refList = hxml.Child(r.head, "refList")

	for c := Category(0); c < categoryCount; c++ {
		r.ids[c] = make(map[string]bool)
		list := r.findList(r.head, c)
		if list == nil {
			continue
		}
		r.lists[c] = list
		eachDefinition(list, c, func(key string, _ *etree.Element, _ *etree.Element) {
			r.ids[c][key] = true
		})
	}
	return r
}

// Has reports whether a definition key is already allocated. Font keys are
// "<lang>/<id>".
func (r *Registry) Has(c Category, key string) bool {
	return r.ids[c][key]
}

// Count returns the number of definitions of a category
func (r *Registry) Count(c Category) int {
	return len(r.ids[c])
}

// MergeDefinitions imports every definition of a source header except
// binary items, which the resource packer imports once their payload is
// known to exist.
func (r *Registry) MergeDefinitions(src *etree.Document, prefix string, remap *Remapper, logger *zap.Logger) MergeStats {
	var stats MergeStats
	srcHead := src.Root()

	decls := make(map[string]string)
	hxml.CollectNamespaceDecls(srcHead, decls)
	warnNamespaceConflicts(logger.With(zap.String("prefix", prefix)), r.head, decls)
	hxml.DeclareNamespaces(r.head, decls)

	for c := Category(0); c < categoryCount; c++ {
		if c == CategoryBinaryItem {
			continue
		}
		srcList := r.findList(srcHead, c)
		if srcList == nil {
			continue
		}
		eachDefinition(srcList, c, func(_ string, def *etree.Element, face *etree.Element) {
			if id, ok := hxml.AttrValue(def, "id"); !ok || id == "" {
				logger.Debug("definition without id skipped",
					zap.String("prefix", prefix),
					zap.Stringer("category", c))
				stats.Skipped[c]++
				return
			}
			if _, added := r.Import(c, def, face, prefix, remap); added {
				stats.Added[c]++
			} else {
				stats.Skipped[c]++
			}
		})
	}

	logger.Debug("merged definitions",
		zap.String("prefix", prefix),
		zap.Int("added", stats.Total()))
	return stats
}

// Import copies one source definition into the merged header under its
// namespaced id. face is the enclosing fontface for fonts and nil
// otherwise. It returns the imported copy, or nil and false when the
// namespaced id is already allocated. Definitions without an id or whose
// id is a sentinel are never imported; references holding a sentinel stay
// unchanged and resolve against the template.
func (r *Registry) Import(c Category, def, face *etree.Element, prefix string, remap *Remapper) (*etree.Element, bool) {
	id, ok := hxml.AttrValue(def, "id")
	if !ok || id == "" || remap.IsSentinel(id) {
		return nil, false
	}
	newID := remap.Namespaced(prefix, id)

	key := newID
	var lang string
	if c == CategoryFont {
		lang, _ = hxml.AttrValue(face, "lang")
		key = lang + "/" + newID
	}
	if r.ids[c][key] {
		return nil, false
	}

	imported := def.Copy()
	hxml.SetAttr(imported, "id", newID)
	remap.Apply(imported, prefix)
	hxml.StripNamespaceDecls(imported)

	parent := r.list(c)
	if c == CategoryFont {
		parent = r.fontface(lang, face)
	}
	parent.AddChild(imported)
	r.ids[c][key] = true
	return imported, true
}

// list returns the target list of a category, creating it when the
// template has none
func (r *Registry) list(c Category) *etree.Element {
	if r.lists[c] != nil {
		return r.lists[c]
	}

	parent := r.head
	if categories[c].inRefList {
		if r.refList == nil {
			r.refList = hxml.NewElement(r.head.Space, "refList")
			r.head.AddChild(r.refList)
		}
		parent = r.refList
	}

	list := hxml.NewElement(parent.Space, categories[c].list)
	list.CreateAttr("itemCnt", "0")
	parent.AddChild(list)
	r.lists[c] = list
	return list
}

// fontface returns the target face for a language, creating an empty copy
// of the source face when the template lacks it
func (r *Registry) fontface(lang string, srcFace *etree.Element) *etree.Element {
	faces := r.list(CategoryFont)
	for _, face := range hxml.Children(faces, fontfaceTag) {
		if v, _ := hxml.AttrValue(face, "lang"); v == lang {
			return face
		}
	}

	face := srcFace.Copy()
	hxml.RemoveChildren(face)
	hxml.StripNamespaceDecls(face)
	faces.AddChild(face)
	return face
}

// findList locates the list element of a category under a header root
func (r *Registry) findList(head *etree.Element, c Category) *etree.Element {
	if categories[c].inRefList {
		return hxml.Child(hxml.Child(head, "refList"), categories[c].list)
	}
	return hxml.Child(head, categories[c].list)
}

// eachDefinition calls fn for every definition in a list with its registry
// key and, for fonts, its enclosing face
func eachDefinition(list *etree.Element, c Category, fn func(key string, def, face *etree.Element)) {
	if c == CategoryFont {
		for _, face := range hxml.Children(list, fontfaceTag) {
			lang, _ := hxml.AttrValue(face, "lang")
			for _, font := range hxml.Children(face, categories[c].item) {
				id, _ := hxml.AttrValue(font, "id")
				fn(lang+"/"+id, font, face)
			}
		}
		return
	}
	for _, def := range hxml.Children(list, categories[c].item) {
		id, _ := hxml.AttrValue(def, "id")
		fn(id, def, nil)
	}
}

// warnNamespaceConflicts logs every prefix the target root binds to another
// URI. The target's binding is kept.
func warnNamespaceConflicts(logger *zap.Logger, root *etree.Element, decls map[string]string) {
	for _, c := range hxml.NamespaceConflicts(root, decls) {
		logger.Warn("namespace prefix bound to a different URI",
			zap.String("element", root.Tag),
			zap.String("namespace", c.Prefix),
			zap.String("declared", c.Declared),
			zap.String("incoming", c.Incoming))
	}
}
