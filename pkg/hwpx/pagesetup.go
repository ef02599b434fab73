package hwpx

import (
	"errors"

	"github.com/beevik/etree"

	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

const (
	sectionPropsTag = "secPr"
	columnCtrlTag   = "ctrl"
	columnPropsTag  = "colPr"
	paragraphTag    = "p"
	runTag          = "run"
)

var errNoPageSetup = errors.New("template section has no page setup")

// pageSetup is the template's section properties block together with the
// column control that accompanies it in the same run.
type pageSetup struct {
	nodes []*etree.Element
}

// isColumnControl reports a ctrl element holding only column properties
func isColumnControl(e *etree.Element) bool {
	if !hxml.Is(e, columnCtrlTag) {
		return false
	}
	children := e.ChildElements()
	if len(children) == 0 {
		return false
	}
	for _, child := range children {
		if !hxml.Is(child, columnPropsTag) {
			return false
		}
	}
	return true
}

// pageSetupBlock returns a secPr together with its companion column
// control, when the next sibling is one
func pageSetupBlock(secPr *etree.Element) []*etree.Element {
	block := []*etree.Element{secPr}
	if next := hxml.NextElement(secPr); next != nil && isColumnControl(next) {
		block = append(block, next)
	}
	return block
}

// detachPageSetup removes the first page setup block from the template
// section and returns it
func detachPageSetup(section *etree.Element) (*pageSetup, error) {
	secPr := hxml.FindFirst(section, sectionPropsTag)
	if secPr == nil {
		return nil, errNoPageSetup
	}

	ps := &pageSetup{nodes: pageSetupBlock(secPr)}
	for _, n := range ps.nodes {
		hxml.Detach(n)
	}
	return ps, nil
}

// stripPageSetup removes every page setup block below e and returns the
// number of secPr blocks removed. Malformed inputs can carry several copies.
func stripPageSetup(e *etree.Element) int {
	secPrs := hxml.FindAll(e, sectionPropsTag)

	for _, secPr := range secPrs {
		for _, n := range pageSetupBlock(secPr) {
			hxml.Detach(n)
		}
	}
	return len(secPrs)
}

// reinject attaches the page setup at the front of the first run of the
// first paragraph, synthesizing the paragraph or run when missing
func (ps *pageSetup) reinject(section *etree.Element, nextParagraphID func() string) {
	space := ps.nodes[0].Space

	first := hxml.FirstElement(section)
	if !hxml.Is(first, paragraphTag) {
		first = newEmptyParagraph(space, nextParagraphID())
		section.InsertChildAt(0, first)
	}

	run := hxml.FirstElement(first)
	if !hxml.Is(run, runTag) {
		run = newEmptyRun(space)
		first.InsertChildAt(0, run)
	}

	for i, n := range ps.nodes {
		run.InsertChildAt(i, n)
	}
}

func newEmptyParagraph(space, id string) *etree.Element {
	p := hxml.NewElement(space, paragraphTag)
	p.CreateAttr("id", id)
	p.CreateAttr("paraPrIDRef", "0")
	p.CreateAttr("styleIDRef", "0")
	p.CreateAttr("pageBreak", "0")
	p.CreateAttr("columnBreak", "0")
	p.CreateAttr("merged", "0")
	p.AddChild(newEmptyRun(space))
	return p
}

func newEmptyRun(space string) *etree.Element {
	run := hxml.NewElement(space, runTag)
	run.CreateAttr("charPrIDRef", "0")
	return run
}
