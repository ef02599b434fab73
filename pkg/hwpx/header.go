package hwpx

import (
	"sort"
	"strconv"

	"github.com/beevik/etree"

	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

const (
	itemCountAttr = "itemCnt"
	fontCountAttr = "fontCnt"
)

// finalizeHeader puts the merged header into the order the consumer
// expects and rewrites every declared count. It runs once, after all
// definitions have been imported.
func finalizeHeader(head *etree.Element) {
	if refList := hxml.Child(head, "refList"); refList != nil {
		reorderChildren(refList, refListRank)
	}
	reorderChildren(head, headRank)
	updateCounts(head)
}

// refListRank orders refList children by category; unknown lists go last
func refListRank(e *etree.Element) int {
	for c := Category(0); c < categoryCount; c++ {
		if categories[c].inRefList && hxml.Is(e, categories[c].list) {
			return int(c)
		}
	}
	return int(categoryCount)
}

// headRank puts beginNum first, refList second and resource lists last
func headRank(e *etree.Element) int {
	switch {
	case hxml.Is(e, "beginNum"):
		return 0
	case hxml.Is(e, "refList"):
		return 1
	case hxml.Is(e, CategoryBinaryItem.ListName()):
		return 3
	case hxml.Is(e, CategoryEquationItem.ListName()):
		return 4
	default:
		return 2
	}
}

// reorderChildren stable-sorts the child elements of parent by rank.
// Elements trade slots with each other, so text and comments between them
// stay where they were.
func reorderChildren(parent *etree.Element, rank func(*etree.Element) int) {
	var slots []int
	var elems []*etree.Element
	for i, tok := range parent.Child {
		if el, ok := tok.(*etree.Element); ok {
			slots = append(slots, i)
			elems = append(elems, el)
		}
	}

	sorted := make([]*etree.Element, len(elems))
	copy(sorted, elems)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank(sorted[i]) < rank(sorted[j])
	})

	changed := false
	for i := range elems {
		if elems[i] != sorted[i] {
			changed = true
			break
		}
	}
	if !changed {
		return
	}

	for _, el := range elems {
		parent.RemoveChild(el)
	}
	// Ascending slot order restores every original position.
	for i, slot := range slots {
		parent.InsertChildAt(slot, sorted[i])
	}
}

// updateCounts sets itemCnt on every definition list and fontCnt on every
// font face to the real number of child elements
func updateCounts(head *etree.Element) {
	setCount := func(list *etree.Element, attr, item string) {
		if list == nil {
			return
		}
		hxml.SetAttr(list, attr, strconv.Itoa(len(hxml.Children(list, item))))
	}

	refList := hxml.Child(head, "refList")
	for c := Category(0); c < categoryCount; c++ {
		info := categories[c]
		parent := head
		if info.inRefList {
			parent = refList
		}
		for _, list := range hxml.Children(parent, info.list) {
			if c == CategoryFont {
				setCount(list, itemCountAttr, fontfaceTag)
				for _, face := range hxml.Children(list, fontfaceTag) {
					setCount(face, fontCountAttr, info.item)
				}
				continue
			}
			setCount(list, itemCountAttr, info.item)
		}
	}

	// Lists this package does not know still get an honest count.
	for _, parent := range []*etree.Element{head, refList} {
		if parent == nil {
			continue
		}
		for _, list := range parent.ChildElements() {
			if _, ok := hxml.AttrValue(list, itemCountAttr); !ok || isKnownList(list) {
				continue
			}
			hxml.SetAttr(list, itemCountAttr, strconv.Itoa(len(list.ChildElements())))
		}
	}
}

func isKnownList(e *etree.Element) bool {
	for c := Category(0); c < categoryCount; c++ {
		if hxml.Is(e, categories[c].list) {
			return true
		}
	}
	return false
}
