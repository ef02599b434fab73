package hwpx

import (
	"strings"

	"github.com/beevik/etree"

	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

// RefMatchMode selects how reference-bearing attributes are recognized
type RefMatchMode string

const (
	// RefMatchAllowList matches only attribute names known to carry references.
	RefMatchAllowList RefMatchMode = "allowlist"
	// RefMatchSuffix matches any attribute ending in "idref" or "ref"
	// (case-insensitive) plus styleId, parentId and next.
	RefMatchSuffix RefMatchMode = "suffix"
)

// referenceAttrs carry a definition id on any element.
var referenceAttrs = map[string]bool{
	"charPrIDRef":       true,
	"paraPrIDRef":       true,
	"styleIDRef":        true,
	"nextStyleIDRef":    true,
	"borderFillIDRef":   true,
	"tabPrIDRef":        true,
	"numberingIDRef":    true,
	"bulletIDRef":       true,
	"binaryItemIDRef":   true,
	"memoShapeIDRef":    true,
	"outlineShapeIDRef": true,
	"trackChangeIDRef":  true,
	"equationItemIDRef": true,
	"styleId":           true,
	"parentId":          true,
}

// elementReferenceAttrs carry references only on specific elements.
var elementReferenceAttrs = map[string]map[string]bool{
	// heading points at a numbering or bullet depending on its type
	"heading": {"idRef": true},
	// fontRef points at one font per language face
	"fontRef": {
		"hangul":   true,
		"latin":    true,
		"hanja":    true,
		"japanese": true,
		"other":    true,
		"symbol":   true,
		"user":     true,
	},
	"style":       {"next": true},
	"trackChange": {"authorID": true},
	"insertBegin": {"TcId": true},
	"insertEnd":   {"TcId": true},
	"deleteBegin": {"TcId": true},
	"deleteEnd":   {"TcId": true},
}

// Remapper rewrites reference attributes of imported subtrees into a
// source's namespace, leaving sentinel values alone.
type Remapper struct {
	sentinels map[string]struct{}
	mode      RefMatchMode
}

// NewRemapper creates a remapper for the given sentinel values and match mode
func NewRemapper(sentinels []string, mode RefMatchMode) *Remapper {
	set := make(map[string]struct{}, len(sentinels))
	for _, s := range sentinels {
		set[s] = struct{}{}
	}
	if mode == "" {
		mode = RefMatchAllowList
	}
	return &Remapper{sentinels: set, mode: mode}
}

// IsSentinel reports whether value means "no reference"
func (r *Remapper) IsSentinel(value string) bool {
	_, ok := r.sentinels[value]
	return ok
}

// IsReference reports whether the attribute key on the element with the
// given local name carries a definition reference
func (r *Remapper) IsReference(element, key string) bool {
	if r.mode == RefMatchSuffix {
		lower := strings.ToLower(key)
		return strings.HasSuffix(lower, "idref") ||
			strings.HasSuffix(lower, "ref") ||
			lower == "styleid" || lower == "parentid" || lower == "next"
	}
	if referenceAttrs[key] {
		return true
	}
	return elementReferenceAttrs[element][key]
}

// Namespaced returns the id of a source definition in the merged document
func (r *Remapper) Namespaced(prefix, id string) string {
	return prefix + id
}

// Apply rewrites every reference attribute in the subtree rooted at e and
// returns the number of rewritten attributes.
func (r *Remapper) Apply(e *etree.Element, prefix string) int {
	rewritten := 0
	hxml.Walk(e, func(n *etree.Element) bool {
		for i := range n.Attr {
			a := &n.Attr[i]
			if hxml.IsNamespaceDecl(*a) || !r.IsReference(n.Tag, a.Key) {
				continue
			}
			if r.IsSentinel(a.Value) {
				continue
			}
			a.Value = r.Namespaced(prefix, a.Value)
			rewritten++
		}
		return true
	})
	return rewritten
}
