// Package hwpxtest builds small HWPX containers in memory for tests.
//
// These helpers are exposed for the tests of this module and of its
// callers. They should not be used in production code.
package hwpxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
)

// Namespace URIs used by the generated streams.
const (
	NSHead    = "http://www.hancom.co.kr/hwpml/2011/head"
	NSPara    = "http://www.hancom.co.kr/hwpml/2011/paragraph"
	NSSection = "http://www.hancom.co.kr/hwpml/2011/section"
	NSCore    = "http://www.hancom.co.kr/hwpml/2011/core"
	NSOPF     = "http://www.idpf.org/2007/opf/"
)

// File is an extra zip entry.
type File struct {
	Name string
	Data []byte
}

// Item is a manifest entry.
type Item struct {
	ID        string
	Href      string
	MediaType string
}

// Container describes a container to build. Empty stream fields are
// omitted from the archive, which lets tests build malformed inputs.
type Container struct {
	Header   string
	Section  string
	Manifest string
	// SectionName overrides the section stream path.
	SectionName string
	Files       []File
}

// Bytes writes the container as a zip archive with the mimetype entry
// first and stored.
func (c Container) Bytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	mt, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return nil, err
	}
	if _, err := mt.Write([]byte("application/hwp+zip")); err != nil {
		return nil, err
	}

	entries := []File{
		{Name: "version.xml", Data: []byte(`<?xml version="1.0" encoding="UTF-8"?><hv:HCFVersion xmlns:hv="http://www.hancom.co.kr/hwpml/2011/version" major="5" minor="1"/>`)},
		{Name: "META-INF/container.xml", Data: []byte(`<?xml version="1.0" encoding="UTF-8"?><ocf:container xmlns:ocf="urn:oasis:names:tc:opendocument:xmlns:container"><ocf:rootfiles><ocf:rootfile full-path="Contents/content.hpf" media-type="application/hwpml-package+xml"/></ocf:rootfiles></ocf:container>`)},
	}
	if c.Header != "" {
		entries = append(entries, File{Name: "Contents/header.xml", Data: []byte(c.Header)})
	}
	if c.Section != "" {
		name := c.SectionName
		if name == "" {
			name = "Contents/section0.xml"
		}
		entries = append(entries, File{Name: name, Data: []byte(c.Section)})
	}
	if c.Manifest != "" {
		entries = append(entries, File{Name: "Contents/content.hpf", Data: []byte(c.Manifest)})
	}
	entries = append(entries, c.Files...)

	for _, f := range entries {
		fw, err := w.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", f.Name, err)
		}
		if _, err := fw.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustBytes is Bytes for tests.
func MustBytes(t testing.TB, c Container) []byte {
	t.Helper()
	data, err := c.Bytes()
	if err != nil {
		t.Fatalf("failed to build container: %v", err)
	}
	return data
}

// Header wraps refList content (category lists) in a header stream.
// Extra top-level sections such as binDataList are appended after refList.
func Header(refList string, extra ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<hh:head xmlns:hh="` + NSHead + `" xmlns:hc="` + NSCore + `" version="1.4" secCnt="1">` +
		`<hh:beginNum page="1" footnote="1" endnote="1" pic="1" tbl="1" equation="1"/>` +
		`<hh:refList>` + refList + `</hh:refList>` +
		strings.Join(extra, "") +
		`</hh:head>`
}

// EmptyRefList returns every category list with no children.
func EmptyRefList() string {
	return `<hh:fontfaces itemCnt="0"/>` +
		`<hh:borderFills itemCnt="0"/>` +
		`<hh:charProperties itemCnt="0"/>` +
		`<hh:tabProperties itemCnt="0"/>` +
		`<hh:numberings itemCnt="0"/>` +
		`<hh:bullets itemCnt="0"/>` +
		`<hh:paraProperties itemCnt="0"/>` +
		`<hh:styles itemCnt="0"/>` +
		`<hh:memoProperties itemCnt="0"/>` +
		`<hh:trackChanges itemCnt="0"/>` +
		`<hh:trackChangeAuthors itemCnt="0"/>`
}

// Section wraps paragraphs in a section stream.
func Section(paragraphs ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<hs:sec xmlns:hs="` + NSSection + `" xmlns:hp="` + NSPara + `" xmlns:hc="` + NSCore + `">` +
		strings.Join(paragraphs, "") +
		`</hs:sec>`
}

// Paragraph builds a paragraph element.
func Paragraph(id, paraPr, style string, runs ...string) string {
	return fmt.Sprintf(`<hp:p id="%s" paraPrIDRef="%s" styleIDRef="%s" pageBreak="0" columnBreak="0" merged="0">%s</hp:p>`,
		id, paraPr, style, strings.Join(runs, ""))
}

// TextRun builds a run holding text.
func TextRun(charPr, text string) string {
	return fmt.Sprintf(`<hp:run charPrIDRef="%s"><hp:t>%s</hp:t></hp:run>`, charPr, text)
}

// PictureRun builds a run holding a picture referencing a binary item.
func PictureRun(charPr, binaryItem string) string {
	return fmt.Sprintf(`<hp:run charPrIDRef="%s"><hp:pic id="1" zOrder="0"><hc:img binaryItemIDRef="%s" bright="0" contrast="0" effect="REAL_PIC" alpha="0"/></hp:pic></hp:run>`,
		charPr, binaryItem)
}

// PageSetup builds a section-properties block with its column control.
func PageSetup() string {
	return `<hp:secPr id="" textDirection="HORIZONTAL" spaceColumns="1134" tabStop="8000" outlineShapeIDRef="1" memoShapeIDRef="0">` +
		`<hp:pagePr landscape="WIDELY" width="59528" height="84186" gutterType="LEFT_ONLY">` +
		`<hp:margin header="4252" footer="4252" gutter="0" left="8504" right="8504" top="5668" bottom="4252"/>` +
		`</hp:pagePr></hp:secPr>` +
		`<hp:ctrl><hp:colPr id="" type="NEWSPAPER" layout="LEFT" colCount="1" sameSz="1" sameGap="0"/></hp:ctrl>`
}

// Manifest builds a content.hpf stream listing the header, the first
// section, and the given items.
func Manifest(items ...Item) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<opf:package xmlns:opf="` + NSOPF + `" version="" unique-identifier="" id="">`)
	b.WriteString(`<opf:metadata><opf:title/></opf:metadata><opf:manifest>`)
	b.WriteString(`<opf:item id="header" href="Contents/header.xml" media-type="application/xml"/>`)
	b.WriteString(`<opf:item id="section0" href="Contents/section0.xml" media-type="application/xml"/>`)
	for _, it := range items {
		fmt.Fprintf(&b, `<opf:item id="%s" href="%s" media-type="%s" isEmbeded="1"/>`, it.ID, it.Href, it.MediaType)
	}
	b.WriteString(`</opf:manifest><opf:spine><opf:itemref idref="header" linear="yes"/><opf:itemref idref="section0" linear="yes"/></opf:spine></opf:package>`)
	return b.String()
}

// Template returns a template container with empty category lists and a
// single paragraph carrying the page setup.
func Template() Container {
	return Container{
		Header: Header(EmptyRefList()),
		Section: Section(
			Paragraph("0", "0", "0",
				`<hp:run charPrIDRef="0">`+PageSetup()+`</hp:run>`,
				TextRun("0", "template body"),
			),
		),
		Manifest: Manifest(),
	}
}

// ReadPart returns the contents of one zip entry.
func ReadPart(data []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("part %s not found", name)
}

// MustReadPart is ReadPart for tests.
func MustReadPart(t testing.TB, data []byte, name string) string {
	t.Helper()
	part, err := ReadPart(data, name)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(part)
}

// ListParts returns the entry names of a zip archive in archive order.
func ListParts(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}
