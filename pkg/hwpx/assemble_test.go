package hwpx

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/hwpxtest"
	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

// tableParagraph nests a paragraph inside a table cell
func tableParagraph(id, text string) string {
	return hwpxtest.Paragraph(id, "2", "0",
		`<hp:run charPrIDRef="3"><hp:tbl borderFillIDRef="1"><hp:tr><hp:tc><hp:subList>`+
			hwpxtest.Paragraph(id, "1", "0", hwpxtest.TextRun("3", text))+
			`</hp:subList></hp:tc></hp:tr></hp:tbl></hp:run>`)
}

func assemblerSource(t *testing.T, section string) *SourceDocument {
	t.Helper()
	doc, err := ParseSourceDocument("q-1", hwpxtest.MustBytes(t, hwpxtest.Container{
		Header:   hwpxtest.Header(hwpxtest.EmptyRefList()),
		Section:  section,
		Manifest: hwpxtest.Manifest(),
	}))
	require.NoError(t, err)
	return doc
}

func newTestAssembler(t *testing.T, logger *zap.Logger) (*contentAssembler, *etree.Element) {
	t.Helper()
	target := mustParse(t, hwpxtest.Section()).Root()
	counter := newParagraphCounter(time.UnixMilli(1000))
	remap := NewRemapper(DefaultSentinels, RefMatchAllowList)
	return newContentAssembler(target, counter, remap, logger), target
}

func TestParagraphCounter(t *testing.T) {
	c := newParagraphCounter(time.UnixMilli(3<<30 + 42))
	assert.Equal(t, "42", c.Next())
	assert.Equal(t, "43", c.Next())

	c = newParagraphCounter(time.UnixMilli(1<<30 - 1))
	assert.Equal(t, "1073741823", c.Next())
	assert.Equal(t, "1073741824", c.Next())
}

func TestImportSource_Body(t *testing.T) {
	a, target := newTestAssembler(t, zap.NewNop())
	src := assemblerSource(t, hwpxtest.Section(
		hwpxtest.Paragraph("7", "1", "0", hwpxtest.TextRun("2", "first")),
		tableParagraph("7", "cell"),
	))

	block, err := a.importSource(0, SourceRef{Key: "q-1", OrderKey: "01"}, src, "q1_")
	require.NoError(t, err)

	assert.Equal(t, Block{
		Index:            0,
		Key:              "q-1",
		OrderKey:         "01",
		Prefix:           "q1_",
		Paragraphs:       3,
		FirstParagraphID: "1000",
	}, block)

	assert.Len(t, target.ChildElements(), 2)
	assert.Equal(t, []string{"1000", "1001", "1002"}, attrs(target, "p", "id"), "ids in document order, nested included")
	assert.Equal(t, []string{"q1_1", "q1_2", "q1_1"}, attrs(target, "p", "paraPrIDRef"))
	assert.Equal(t, []string{"0", "0", "0"}, attrs(target, "p", "styleIDRef"), "sentinels are kept")
	assert.Equal(t, []string{"q1_2", "q1_3", "q1_3"}, attrs(target, "run", "charPrIDRef"))
	assert.Equal(t, []string{"q1_1"}, attrs(target, "tbl", "borderFillIDRef"))

	// The source tree is left untouched.
	assert.Equal(t, []string{"7", "7", "7"}, attrs(src.Section.Root(), "p", "id"))
}

func TestImportSource_StripsPageSetup(t *testing.T) {
	a, target := newTestAssembler(t, zap.NewNop())
	src := assemblerSource(t, hwpxtest.Section(
		hwpxtest.Paragraph("1", "0", "0",
			`<hp:run charPrIDRef="0">`+hwpxtest.PageSetup()+`<hp:t>kept</hp:t></hp:run>`),
		hwpxtest.Paragraph("2", "0", "0", hwpxtest.TextRun("0", "second")),
	))

	_, err := a.importSource(0, SourceRef{Key: "q-1"}, src, "q1_")
	require.NoError(t, err)

	assert.Empty(t, hxml.FindAll(target, "secPr"))
	assert.Empty(t, hxml.FindAll(target, "colPr"))
	assert.Len(t, hxml.FindAll(target, "t"), 2)
}

func TestImportSource_Fragment(t *testing.T) {
	a, target := newTestAssembler(t, zap.NewNop())
	src := assemblerSource(t, hwpxtest.Section(
		hwpxtest.Paragraph("1", "0", "0", hwpxtest.TextRun("0", "whole body")),
	))
	fragment := `<?xml version="1.0"?>` +
		hwpxtest.PageSetup() +
		hwpxtest.Paragraph("9", "4", "0", hwpxtest.PictureRun("0", "5"))

	block, err := a.importSource(1, SourceRef{Key: "q-1", Fragment: fragment}, src, "q2_")
	require.NoError(t, err)

	assert.False(t, block.Degraded)
	assert.Equal(t, 1, block.Paragraphs)
	assert.Equal(t, []string{"p"}, localNames(target.ChildElements()), "top-level page setup is dropped")
	assert.Equal(t, []string{"q2_4"}, attrs(target, "p", "paraPrIDRef"))
	assert.Equal(t, []string{"q2_5"}, attrs(target, "img", "binaryItemIDRef"))
	assert.Empty(t, hxml.FindAll(target, "t"))
}

func TestImportSource_DegradedFragment(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		cause    error
	}{
		{name: "malformed", fragment: `<hp:p id=1><hp:run/></hp:p>`},
		{name: "whitespace", fragment: "  \n "},
		{name: "text only", fragment: "just text", cause: errEmptyFragment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			a, target := newTestAssembler(t, zap.New(core))
			src := assemblerSource(t, hwpxtest.Section(
				hwpxtest.Paragraph("1", "0", "0", hwpxtest.TextRun("0", "whole body")),
			))

			block, err := a.importSource(0, SourceRef{Key: "q-1", Fragment: tt.fragment}, src, "q1_")

			var degraded *DegradedError
			require.ErrorAs(t, err, &degraded)
			assert.Equal(t, "q-1", degraded.Key)
			if tt.cause != nil {
				assert.True(t, errors.Is(err, tt.cause))
			}
			assert.True(t, block.Degraded)
			assert.Equal(t, 1, block.Paragraphs)
			assert.Equal(t, "whole body", hxml.FindFirst(target, "t").Text())

			entries := logs.FilterMessage("fragment unusable, merging full body").All()
			require.Len(t, entries, 1)
			assert.Equal(t, "q-1", entries[0].ContextMap()["source"])
		})
	}
}

func TestImportSource_Namespaces(t *testing.T) {
	a, target := newTestAssembler(t, zap.NewNop())
	section := strings.Replace(hwpxtest.Section(
		hwpxtest.Paragraph("1", "0", "0",
			`<hp:run charPrIDRef="0" xmlns:hm="urn:master"><hm:masterRef ref="1"/></hp:run>`),
	), `<hs:sec `, `<hs:sec xmlns:ha="urn:app" `, 1)
	src := assemblerSource(t, section)

	_, err := a.importSource(0, SourceRef{Key: "q-1"}, src, "q1_")
	require.NoError(t, err)

	decls := hxml.NamespaceDecls(target)
	assert.Equal(t, "urn:master", decls["hm"])
	assert.Equal(t, "urn:app", decls["ha"])
	assert.Equal(t, hwpxtest.NSPara, decls["hp"])

	hxml.Walk(hxml.FirstElement(target), func(e *etree.Element) bool {
		assert.Empty(t, hxml.NamespaceDecls(e), e.FullTag())
		return true
	})
}

func TestImportSource_SequentialSources(t *testing.T) {
	a, target := newTestAssembler(t, zap.NewNop())
	src := assemblerSource(t, hwpxtest.Section(
		hwpxtest.Paragraph("1", "1", "0", hwpxtest.TextRun("0", "a")),
	))

	first, err := a.importSource(0, SourceRef{Key: "q-1"}, src, "q1_")
	require.NoError(t, err)
	second, err := a.importSource(1, SourceRef{Key: "q-1"}, src, "q2_")
	require.NoError(t, err)

	assert.Equal(t, "1000", first.FirstParagraphID)
	assert.Equal(t, "1001", second.FirstParagraphID)
	assert.Equal(t, []string{"q1_1", "q2_1"}, attrs(target, "p", "paraPrIDRef"))
}

func TestImportSource_NamespaceConflict(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	a, target := newTestAssembler(t, zap.New(core))
	section := strings.Replace(hwpxtest.Section(
		hwpxtest.Paragraph("1", "0", "0", hwpxtest.TextRun("0", "newer schema")),
	), `xmlns:hp="`+hwpxtest.NSPara+`"`, `xmlns:hp="urn:hwpml:2016:paragraph"`, 1)
	src := assemblerSource(t, section)

	_, err := a.importSource(0, SourceRef{Key: "q-1"}, src, "q1_")
	require.NoError(t, err)

	assert.Equal(t, hwpxtest.NSPara, hxml.NamespaceDecls(target)["hp"], "the section keeps its binding")

	entries := logs.FilterMessage("namespace prefix bound to a different URI").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "hp", fields["namespace"])
	assert.Equal(t, hwpxtest.NSPara, fields["declared"])
	assert.Equal(t, "urn:hwpml:2016:paragraph", fields["incoming"])
	assert.Equal(t, "q-1", fields["source"])
}
