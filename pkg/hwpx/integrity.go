package hwpx

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// The verifier re-reads the serialized streams with an independent parser,
// so it checks what is actually written rather than the in-memory tree.
var (
	countedExpr   = xpath.MustCompile(`//*[@itemCnt or @fontCnt]`)
	paragraphExpr = xpath.MustCompile(`//*[local-name()='p']`)
	secPrExpr     = xpath.MustCompile(`//*[local-name()='secPr']`)
	binItemExpr   = xpath.MustCompile(`//*[local-name()='binDataList']/*[local-name()='binItem']`)
	manifestExpr  = xpath.MustCompile(`//*[local-name()='manifest']/*[local-name()='item']`)
	refListsExpr  = xpath.MustCompile(`/*[local-name()='head']/*[local-name()='refList']/*[@itemCnt]`)
	headListsExpr = xpath.MustCompile(`/*[local-name()='head']/*[@itemCnt]`)
)

// Integrity check names
const (
	CheckCounts        = "counts"
	CheckParagraphIDs  = "paragraph-ids"
	CheckPageSetup     = "page-setup"
	CheckBinaryItems   = "binary-items"
	CheckManifestFiles = "manifest-files"
)

// outputStreams is the serialized output of one merge, plus the names of
// every file the written container will hold
type outputStreams struct {
	Header   []byte
	Section  []byte
	Manifest []byte
	Files    map[string]bool
}

// verifyIntegrity checks the structural invariants of a merged document
// and returns an IntegrityError listing every violation
func verifyIntegrity(out outputStreams) error {
	header, err := xmlquery.Parse(bytes.NewReader(out.Header))
	if err != nil {
		return &IntegrityError{Issues: []IntegrityIssue{{Check: CheckCounts, Message: fmt.Sprintf("header unreadable: %v", err)}}}
	}
	section, err := xmlquery.Parse(bytes.NewReader(out.Section))
	if err != nil {
		return &IntegrityError{Issues: []IntegrityIssue{{Check: CheckParagraphIDs, Message: fmt.Sprintf("section unreadable: %v", err)}}}
	}
	manifest, err := xmlquery.Parse(bytes.NewReader(out.Manifest))
	if err != nil {
		return &IntegrityError{Issues: []IntegrityIssue{{Check: CheckManifestFiles, Message: fmt.Sprintf("manifest unreadable: %v", err)}}}
	}

	files := make(map[string]bool, len(out.Files))
	for name := range out.Files {
		files[normalizePartPath(name)] = true
	}

	var issues []IntegrityIssue
	issues = append(issues, checkCounts(header)...)
	issues = append(issues, checkParagraphIDs(section)...)
	issues = append(issues, checkPageSetup(section)...)
	issues = append(issues, checkBinaryItems(header, manifest, files)...)
	issues = append(issues, checkManifestFiles(manifest, files)...)

	if len(issues) > 0 {
		return &IntegrityError{Issues: issues}
	}
	return nil
}

func checkCounts(header *xmlquery.Node) []IntegrityIssue {
	var issues []IntegrityIssue
	for _, n := range xmlquery.QuerySelectorAll(header, countedExpr) {
		for _, attr := range []string{itemCountAttr, fontCountAttr} {
			declared := n.SelectAttr(attr)
			if declared == "" {
				continue
			}
			actual := countItems(n)
			if declared != strconv.Itoa(actual) {
				issues = append(issues, IntegrityIssue{
					Check:   CheckCounts,
					Message: fmt.Sprintf("%s declares %s=%s but holds %d", n.Data, attr, declared, actual),
				})
			}
		}
	}
	return issues
}

// countItems counts the children a list's count attribute refers to: the
// category items for known lists, every child element otherwise
func countItems(list *xmlquery.Node) int {
	item := ""
	if list.Data == fontfaceTag {
		item = CategoryFont.ItemName()
	} else if list.Data == CategoryFont.ListName() {
		item = fontfaceTag
	} else {
		for c := Category(0); c < categoryCount; c++ {
			if list.Data == categories[c].list {
				item = categories[c].item
				break
			}
		}
	}

	n := 0
	for child := list.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		if item == "" || child.Data == item {
			n++
		}
	}
	return n
}

func checkParagraphIDs(section *xmlquery.Node) []IntegrityIssue {
	var issues []IntegrityIssue
	seen := make(map[string]int)
	for _, p := range xmlquery.QuerySelectorAll(section, paragraphExpr) {
		id := p.SelectAttr("id")
		if id == "" {
			issues = append(issues, IntegrityIssue{Check: CheckParagraphIDs, Message: "paragraph without id"})
			continue
		}
		seen[id]++
		if seen[id] == 2 {
			issues = append(issues, IntegrityIssue{
				Check:   CheckParagraphIDs,
				Message: fmt.Sprintf("paragraph id %s is not unique", id),
			})
		}
	}
	return issues
}

func checkPageSetup(section *xmlquery.Node) []IntegrityIssue {
	secPrs := xmlquery.QuerySelectorAll(section, secPrExpr)
	if len(secPrs) != 1 {
		return []IntegrityIssue{{
			Check:   CheckPageSetup,
			Message: fmt.Sprintf("expected exactly one page setup, found %d", len(secPrs)),
		}}
	}

	secPr := secPrs[0]
	run := secPr.Parent
	if run == nil || run.Data != runTag || firstElementChild(run) != secPr {
		return []IntegrityIssue{{Check: CheckPageSetup, Message: "page setup is not the first element of its run"}}
	}
	para := run.Parent
	if para == nil || para.Data != paragraphTag || firstElementChild(para) != run {
		return []IntegrityIssue{{Check: CheckPageSetup, Message: "page setup is not in the first run of its paragraph"}}
	}
	root := para.Parent
	if root == nil || firstElementChild(root) != para || root.Parent == nil || root.Parent.Type != xmlquery.DocumentNode {
		return []IntegrityIssue{{Check: CheckPageSetup, Message: "page setup is not in the first paragraph"}}
	}
	return nil
}

func checkBinaryItems(header, manifest *xmlquery.Node, files map[string]bool) []IntegrityIssue {
	entries := make(map[string][]string)
	for _, item := range xmlquery.QuerySelectorAll(manifest, manifestExpr) {
		id := item.SelectAttr("id")
		entries[id] = append(entries[id], item.SelectAttr("href"))
	}

	var issues []IntegrityIssue
	for _, bin := range xmlquery.QuerySelectorAll(header, binItemExpr) {
		id := bin.SelectAttr("id")
		hrefs := entries[id]
		switch {
		case len(hrefs) == 0:
			issues = append(issues, IntegrityIssue{
				Check:   CheckBinaryItems,
				Message: fmt.Sprintf("binary item %s has no manifest entry", id),
			})
		case len(hrefs) > 1:
			issues = append(issues, IntegrityIssue{
				Check:   CheckBinaryItems,
				Message: fmt.Sprintf("binary item %s has %d manifest entries", id, len(hrefs)),
			})
		case !files[normalizePartPath(hrefs[0])]:
			issues = append(issues, IntegrityIssue{
				Check:   CheckBinaryItems,
				Message: fmt.Sprintf("binary item %s has no file at %s", id, hrefs[0]),
			})
		}
	}
	return issues
}

func checkManifestFiles(manifest *xmlquery.Node, files map[string]bool) []IntegrityIssue {
	prefix := strings.ToLower(BinDataDir)
	var issues []IntegrityIssue
	for _, item := range xmlquery.QuerySelectorAll(manifest, manifestExpr) {
		href := normalizePartPath(item.SelectAttr("href"))
		if !strings.HasPrefix(href, prefix) || files[href] {
			continue
		}
		issues = append(issues, IntegrityIssue{
			Check:   CheckManifestFiles,
			Message: fmt.Sprintf("manifest item %s points at missing file %s", item.SelectAttr("id"), item.SelectAttr("href")),
		})
	}
	return issues
}

func firstElementChild(n *xmlquery.Node) *xmlquery.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}

// ListCount is the declared and actual size of one header list
type ListCount struct {
	Name     string
	Declared int
	Actual   int
}

// HeaderCounts reports the declared and actual item counts of every list in
// a serialized header
func HeaderCounts(data []byte) ([]ListCount, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	lists := xmlquery.QuerySelectorAll(doc, refListsExpr)
	lists = append(lists, xmlquery.QuerySelectorAll(doc, headListsExpr)...)

	var counts []ListCount
	for _, n := range lists {
		declared, err := strconv.Atoi(n.SelectAttr(itemCountAttr))
		if err != nil {
			declared = -1
		}
		counts = append(counts, ListCount{Name: n.Data, Declared: declared, Actual: countItems(n)})
	}
	return counts, nil
}
