package xml

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Parse parses a complete XML stream.
func Parse(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("failed to parse XML: no root element")
	}
	return doc, nil
}

// ParseFragment parses a sequence of sibling elements that has no single
// root, such as a pre-extracted run of paragraphs. A leading XML
// declaration is tolerated. The returned elements are detached.
func ParseFragment(fragment string) ([]*etree.Element, error) {
	fragment = strings.TrimSpace(fragment)
	if strings.HasPrefix(fragment, "<?xml") {
		end := strings.Index(fragment, "?>")
		if end < 0 {
			return nil, fmt.Errorf("failed to parse fragment: unterminated declaration")
		}
		fragment = fragment[end+2:]
	}
	if fragment == "" {
		return nil, fmt.Errorf("failed to parse fragment: empty")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString("<fragment>" + fragment + "</fragment>"); err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	wrapper := doc.Root()
	children := wrapper.ChildElements()
	for _, child := range children {
		wrapper.RemoveChild(child)
	}
	return children, nil
}

// Serialize writes a document back to bytes. The XML declaration is
// emitted when the parsed document carried one.
func Serialize(doc *etree.Document) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize XML: %w", err)
	}
	return buf.Bytes(), nil
}

// Is reports whether e has the given local name.
func Is(e *etree.Element, local string) bool {
	return e != nil && e.Tag == local
}

// Walk visits e and its descendants in document order. Returning false from
// fn skips the children of the visited element.
func Walk(e *etree.Element, fn func(*etree.Element) bool) {
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	// Copy: fn may detach children while we iterate.
	for _, child := range e.ChildElements() {
		Walk(child, fn)
	}
}

// FindAll returns every descendant of e (e excluded) with the given local
// name, in document order, regardless of prefix.
func FindAll(e *etree.Element, local string) []*etree.Element {
	var found []*etree.Element
	if e == nil {
		return found
	}
	for _, child := range e.ChildElements() {
		Walk(child, func(n *etree.Element) bool {
			if n.Tag == local {
				found = append(found, n)
			}
			return true
		})
	}
	return found
}

// FindFirst returns the first descendant of e with the given local name.
func FindFirst(e *etree.Element, local string) *etree.Element {
	if e == nil {
		return nil
	}
	for _, child := range e.ChildElements() {
		if child.Tag == local {
			return child
		}
		if found := FindFirst(child, local); found != nil {
			return found
		}
	}
	return nil
}

// Children returns the direct child elements of e with the given local name.
func Children(e *etree.Element, local string) []*etree.Element {
	var out []*etree.Element
	if e == nil {
		return out
	}
	for _, child := range e.ChildElements() {
		if child.Tag == local {
			out = append(out, child)
		}
	}
	return out
}

// Child returns the first direct child element of e with the given local name.
func Child(e *etree.Element, local string) *etree.Element {
	if e == nil {
		return nil
	}
	for _, child := range e.ChildElements() {
		if child.Tag == local {
			return child
		}
	}
	return nil
}

// FirstElement returns the first child element of e, or nil.
func FirstElement(e *etree.Element) *etree.Element {
	if e == nil {
		return nil
	}
	for _, tok := range e.Child {
		if child, ok := tok.(*etree.Element); ok {
			return child
		}
	}
	return nil
}

// NextElement returns the element sibling following e, or nil.
func NextElement(e *etree.Element) *etree.Element {
	parent := e.Parent()
	if parent == nil {
		return nil
	}
	seen := false
	for _, tok := range parent.Child {
		child, ok := tok.(*etree.Element)
		if !ok {
			continue
		}
		if seen {
			return child
		}
		if child == e {
			seen = true
		}
	}
	return nil
}

// Detach removes e from its parent. It is a no-op for detached elements.
func Detach(e *etree.Element) {
	if parent := e.Parent(); parent != nil {
		parent.RemoveChild(e)
	}
}

// RemoveChildren removes every child token of e, leaving it empty.
func RemoveChildren(e *etree.Element) {
	for len(e.Child) > 0 {
		e.RemoveChildAt(len(e.Child) - 1)
	}
}

// NewElement creates a detached element with the given prefix and local name.
func NewElement(space, local string) *etree.Element {
	if space == "" {
		return etree.NewElement(local)
	}
	return etree.NewElement(space + ":" + local)
}
