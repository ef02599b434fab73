package hwpx

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

func TestFinalizeHeader_Order(t *testing.T) {
	doc := mustParse(t, `<hh:head xmlns:hh="urn:h">`+
		`<hh:binDataList itemCnt="0"/>`+
		`<hh:compatibleDocument/>`+
		`<hh:refList>`+
		`<hh:styles itemCnt="0"/><hh:customList itemCnt="9"><a/></hh:customList><hh:fontfaces/><hh:paraProperties/><hh:borderFills/>`+
		`</hh:refList>`+
		`<hh:eqItemList/>`+
		`<hh:beginNum page="1"/>`+
		`<hh:docOption/>`+
		`</hh:head>`)

	finalizeHeader(doc.Root())

	head := doc.Root()
	want := []string{"beginNum", "refList", "compatibleDocument", "docOption", "binDataList", "eqItemList"}
	if diff := cmp.Diff(want, localNames(head.ChildElements())); diff != "" {
		t.Errorf("head order mismatch (-want +got):\n%s", diff)
	}

	refList := hxml.Child(head, "refList")
	want = []string{"fontfaces", "borderFills", "paraProperties", "styles", "customList"}
	if diff := cmp.Diff(want, localNames(refList.ChildElements())); diff != "" {
		t.Errorf("refList order mismatch (-want +got):\n%s", diff)
	}
}

func TestFinalizeHeader_KeepsWhitespaceSlots(t *testing.T) {
	doc := mustParse(t, "<head>\n  <refList/>\n  <beginNum/>\n</head>")

	finalizeHeader(doc.Root())

	out, err := hxml.Serialize(doc)
	require.NoError(t, err)
	assert.Equal(t, "<head>\n  <beginNum/>\n  <refList/>\n</head>", string(out))
}

func TestFinalizeHeader_Counts(t *testing.T) {
	doc := mustParse(t, `<hh:head xmlns:hh="urn:h"><hh:refList>`+
		`<hh:fontfaces itemCnt="7">`+
		`<hh:fontface lang="HANGUL" fontCnt="9"><hh:font id="0"/><hh:font id="q1_0"/></hh:fontface>`+
		`<hh:fontface lang="LATIN" fontCnt="0"><hh:font id="0"/></hh:fontface>`+
		`</hh:fontfaces>`+
		`<hh:charProperties itemCnt="1"><hh:charPr id="0"/><hh:charPr id="q1_0"/><hh:charPr id="q2_0"/></hh:charProperties>`+
		`<hh:styles><hh:style id="0"/></hh:styles>`+
		`<hh:extraList itemCnt="5"><hh:x/><hh:y/></hh:extraList>`+
		`</hh:refList>`+
		`<hh:binDataList itemCnt="3"/>`+
		`</hh:head>`)

	finalizeHeader(doc.Root())

	head := doc.Root()
	get := func(local, attr string) []string { return attrs(head, local, attr) }
	assert.Equal(t, []string{"2"}, get("fontfaces", "itemCnt"))
	assert.Equal(t, []string{"2", "1"}, get("fontface", "fontCnt"))
	assert.Equal(t, []string{"3"}, get("charProperties", "itemCnt"))
	assert.Equal(t, []string{"1"}, get("styles", "itemCnt"), "missing counts are added")
	assert.Equal(t, []string{"2"}, get("extraList", "itemCnt"))
	assert.Equal(t, []string{"0"}, get("binDataList", "itemCnt"))
}

func TestReorderChildren_Stable(t *testing.T) {
	doc := mustParse(t, `<r><b n="1"/><a n="1"/><b n="2"/><a n="2"/><c/></r>`)
	rank := func(e *etree.Element) int {
		if e.Tag == "a" {
			return 0
		}
		return 1
	}

	reorderChildren(doc.Root(), rank)

	var got []string
	for _, e := range doc.Root().ChildElements() {
		n, _ := hxml.AttrValue(e, "n")
		got = append(got, e.Tag+n)
	}
	assert.Equal(t, []string{"a1", "a2", "b1", "b2", "c"}, got)
}
