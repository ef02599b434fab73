package hwpx

import (
	"testing"

	"github.com/stretchr/testify/assert"

	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

func TestRemapper_IsReference(t *testing.T) {
	allow := NewRemapper(DefaultSentinels, RefMatchAllowList)
	suffix := NewRemapper(DefaultSentinels, RefMatchSuffix)

	tests := []struct {
		element   string
		key       string
		allowList bool
		suffix    bool
	}{
		{"p", "paraPrIDRef", true, true},
		{"run", "charPrIDRef", true, true},
		{"img", "binaryItemIDRef", true, true},
		{"style", "next", true, true},
		{"p", "next", false, true},
		{"heading", "idRef", true, true},
		{"fontRef", "hangul", true, false},
		{"style", "langID", false, false},
		{"binItem", "href", false, true},
		{"p", "id", false, false},
		{"hyperlink", "xref", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.element+"/"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.allowList, allow.IsReference(tt.element, tt.key), "allow-list")
			assert.Equal(t, tt.suffix, suffix.IsReference(tt.element, tt.key), "suffix")
		})
	}
}

func TestRemapper_Apply(t *testing.T) {
	doc := mustParse(t, `<hp:p xmlns:hp="urn:p" id="7" paraPrIDRef="1" styleIDRef="0">`+
		`<hp:run charPrIDRef="4294967295"><hp:t>x</hp:t></hp:run>`+
		`<hp:run charPrIDRef="3"><hp:pic><hc:img xmlns:hc="urn:c" binaryItemIDRef="image1"/></hp:pic></hp:run>`+
		`</hp:p>`)
	remap := NewRemapper(DefaultSentinels, RefMatchAllowList)

	n := remap.Apply(doc.Root(), "q2_")

	root := doc.Root()
	assert.Equal(t, 3, n)
	id, _ := hxml.AttrValue(root, "id")
	assert.Equal(t, "7", id, "paragraph ids are not references")
	para, _ := hxml.AttrValue(root, "paraPrIDRef")
	assert.Equal(t, "q2_1", para)
	style, _ := hxml.AttrValue(root, "styleIDRef")
	assert.Equal(t, "0", style, "sentinel left alone")
	assert.Equal(t, []string{"4294967295", "q2_3"}, attrs(root, "run", "charPrIDRef"))
	assert.Equal(t, []string{"q2_image1"}, attrs(root, "img", "binaryItemIDRef"))

	decls := hxml.NamespaceDecls(hxml.FindFirst(root, "img"))
	assert.Equal(t, "urn:c", decls["hc"], "namespace declarations are never rewritten")
}

func TestRemapper_SentinelsNeverPrefixed(t *testing.T) {
	remap := NewRemapper(DefaultSentinels, RefMatchSuffix)
	for _, v := range DefaultSentinels {
		doc := mustParse(t, `<style id="1" nextStyleIDRef="`+v+`" parentId="`+v+`" next="`+v+`"/>`)
		remap.Apply(doc.Root(), "q1_")
		for _, a := range doc.Root().Attr {
			if a.Key == "id" {
				continue
			}
			assert.Equal(t, v, a.Value, "%s must stay %q", a.Key, v)
		}
	}
}

func TestRemapper_CustomSentinels(t *testing.T) {
	remap := NewRemapper([]string{"none"}, "")
	assert.True(t, remap.IsSentinel("none"))
	assert.False(t, remap.IsSentinel("0"))

	doc := mustParse(t, `<p paraPrIDRef="0" styleIDRef="none"/>`)
	remap.Apply(doc.Root(), "q1_")
	para, _ := hxml.AttrValue(doc.Root(), "paraPrIDRef")
	style, _ := hxml.AttrValue(doc.Root(), "styleIDRef")
	assert.Equal(t, "q1_0", para)
	assert.Equal(t, "none", style)
}
