package xml

import (
	"sort"

	"github.com/beevik/etree"
)

// AttrValue returns the value of the attribute with the given local name.
// Namespace declarations are never matched.
func AttrValue(e *etree.Element, local string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, a := range e.Attr {
		if IsNamespaceDecl(a) {
			continue
		}
		if a.Key == local {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets the attribute with the given local name, keeping its prefix
// when it already exists and creating an unprefixed attribute otherwise.
func SetAttr(e *etree.Element, local, value string) {
	for i := range e.Attr {
		if IsNamespaceDecl(e.Attr[i]) {
			continue
		}
		if e.Attr[i].Key == local {
			e.Attr[i].Value = value
			return
		}
	}
	e.CreateAttr(local, value)
}

// IsNamespaceDecl reports whether a is an xmlns or xmlns:prefix declaration.
func IsNamespaceDecl(a etree.Attr) bool {
	return a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns")
}

// NamespaceDecls returns the prefix to URI declarations made on e itself.
// The default namespace is keyed by the empty prefix.
func NamespaceDecls(e *etree.Element) map[string]string {
	decls := make(map[string]string)
	if e == nil {
		return decls
	}
	for _, a := range e.Attr {
		switch {
		case a.Space == "xmlns":
			decls[a.Key] = a.Value
		case a.Space == "" && a.Key == "xmlns":
			decls[""] = a.Value
		}
	}
	return decls
}

// CollectNamespaceDecls gathers declarations from e and all its descendants.
// The first declaration of a prefix wins.
func CollectNamespaceDecls(e *etree.Element, into map[string]string) {
	Walk(e, func(n *etree.Element) bool {
		for prefix, uri := range NamespaceDecls(n) {
			if _, ok := into[prefix]; !ok {
				into[prefix] = uri
			}
		}
		return true
	})
}

// StripNamespaceDecls removes namespace declaration attributes from e and
// all its descendants. Imported subtrees rely on the target root for them.
func StripNamespaceDecls(e *etree.Element) int {
	removed := 0
	Walk(e, func(n *etree.Element) bool {
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			if IsNamespaceDecl(a) {
				removed++
				continue
			}
			kept = append(kept, a)
		}
		n.Attr = kept
		return true
	})
	return removed
}

// DeclareNamespaces adds the declarations in decls that root does not
// already declare. Existing declarations are never overwritten.
func DeclareNamespaces(root *etree.Element, decls map[string]string) int {
	existing := NamespaceDecls(root)
	prefixes := make([]string, 0, len(decls))
	for prefix := range decls {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	added := 0
	for _, prefix := range prefixes {
		uri := decls[prefix]
		if _, ok := existing[prefix]; ok {
			continue
		}
		if prefix == "" {
			root.CreateAttr("xmlns", uri)
		} else {
			root.CreateAttr("xmlns:"+prefix, uri)
		}
		added++
	}
	return added
}

// NamespaceConflict is a prefix that decls binds to a different URI than
// the root already does
type NamespaceConflict struct {
	Prefix   string
	Declared string
	Incoming string
}

// NamespaceConflicts returns the conflicting prefixes of decls, sorted
func NamespaceConflicts(root *etree.Element, decls map[string]string) []NamespaceConflict {
	existing := NamespaceDecls(root)
	var conflicts []NamespaceConflict
	for prefix, uri := range decls {
		if declared, ok := existing[prefix]; ok && declared != uri {
			conflicts = append(conflicts, NamespaceConflict{Prefix: prefix, Declared: declared, Incoming: uri})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Prefix < conflicts[j].Prefix
	})
	return conflicts
}
