package hwpx

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/hwpxtest"
	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

// packFixture is a template header and manifest with a packer over them
type packFixture struct {
	header   *etree.Document
	manifest *Manifest
	packer   *resourcePacker
}

func newPackFixture(t *testing.T, mode RefMatchMode, existing []string, logger *zap.Logger) *packFixture {
	t.Helper()
	header := mustParse(t, hwpxtest.Header(hwpxtest.EmptyRefList(), `<hh:binDataList itemCnt="0"/>`))
	manifest, err := parseManifest([]byte(hwpxtest.Manifest()))
	require.NoError(t, err)

	registry := NewRegistry(header)
	remap := NewRemapper(DefaultSentinels, mode)
	return &packFixture{
		header:   header,
		manifest: manifest,
		packer:   newResourcePacker(registry, manifest, existing, remap, logger),
	}
}

func binSource(t *testing.T, binItems string, items []hwpxtest.Item, files ...hwpxtest.File) *SourceDocument {
	t.Helper()
	var extra []string
	if binItems != "" {
		extra = append(extra, `<hh:binDataList>`+binItems+`</hh:binDataList>`)
	}
	doc, err := ParseSourceDocument("q-1", hwpxtest.MustBytes(t, hwpxtest.Container{
		Header:   hwpxtest.Header(hwpxtest.EmptyRefList(), extra...),
		Section:  hwpxtest.Section(hwpxtest.Paragraph("1", "0", "0", hwpxtest.PictureRun("0", "5"))),
		Manifest: hwpxtest.Manifest(items...),
		Files:    files,
	}))
	require.NoError(t, err)
	return doc
}

func TestResourcePacker_ResolvesPayload(t *testing.T) {
	tests := []struct {
		name     string
		binItem  string
		items    []hwpxtest.Item
		file     string
		wantPath string
		wantType string
	}{
		{
			name:     "href",
			binItem:  `<hh:binItem id="5" format="png" href="BinData/image5.png"/>`,
			file:     "BinData/image5.png",
			wantPath: "BinData/q1_5.png",
			wantType: "image/png",
		},
		{
			name:     "href with different case",
			binItem:  `<hh:binItem id="5" format="png" href="bindata/IMAGE5.png"/>`,
			file:     "BinData/image5.png",
			wantPath: "BinData/q1_5.png",
			wantType: "image/png",
		},
		{
			name:     "manifest entry",
			binItem:  `<hh:binItem id="5" format="jpg"/>`,
			items:    []hwpxtest.Item{{ID: "5", Href: "BinData/photo.jpeg", MediaType: "image/jpeg"}},
			file:     "BinData/photo.jpeg",
			wantPath: "BinData/q1_5.jpeg",
			wantType: "image/jpeg",
		},
		{
			name:     "id and format",
			binItem:  `<hh:binItem id="5" format="gif"/>`,
			file:     "BinData/5.gif",
			wantPath: "BinData/q1_5.gif",
			wantType: "image/gif",
		},
		{
			name:     "stale href falls through",
			binItem:  `<hh:binItem id="5" format="bmp" href="BinData/gone.bmp"/>`,
			file:     "BinData/5.bmp",
			wantPath: "BinData/q1_5.bmp",
			wantType: "image/bmp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newPackFixture(t, RefMatchAllowList, nil, zap.NewNop())
			src := binSource(t, tt.binItem, tt.items, hwpxtest.File{Name: tt.file, Data: []byte("payload")})

			missing := fx.packer.pack(src, "q1_")
			assert.Empty(t, missing)

			resources := fx.packer.Resources()
			require.Len(t, resources, 1)
			assert.Equal(t, BinaryResource{ID: "q1_5", Path: tt.wantPath, Data: []byte("payload"), MediaType: tt.wantType}, resources[0])

			item, ok := fx.manifest.Lookup("q1_5")
			require.True(t, ok)
			assert.Equal(t, tt.wantPath, item.Href)
			assert.Equal(t, tt.wantType, item.MediaType)

			head := fx.header.Root()
			assert.Equal(t, []string{"q1_5"}, attrs(head, "binItem", "id"))
			assert.Equal(t, []string{tt.wantPath}, attrs(head, "binItem", "href"))
		})
	}
}

func TestResourcePacker_MissingPayload(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	fx := newPackFixture(t, RefMatchAllowList, nil, zap.New(core))
	src := binSource(t,
		`<hh:binItem id="4" format="png" href="BinData/4.png"/>`+
			`<hh:binItem id="5" format="png" href="BinData/5.png"/>`,
		nil,
		hwpxtest.File{Name: "BinData/4.png", Data: []byte("four")},
	)

	missing := fx.packer.pack(src, "q1_")

	require.Len(t, missing, 1)
	var missingErr *ResourceMissingError
	require.ErrorAs(t, missing[0], &missingErr)
	assert.Equal(t, &ResourceMissingError{Key: "q-1", ItemID: "5", Path: "BinData/5.png"}, missingErr)

	assert.Equal(t, []string{"q1_4"}, attrs(fx.header.Root(), "binItem", "id"), "no definition without payload")
	_, ok := fx.manifest.Lookup("q1_5")
	assert.False(t, ok, "no manifest entry without payload")
	assert.Len(t, fx.packer.Resources(), 1)
	assert.Equal(t, 1, logs.FilterMessage("binary payload missing, item dropped").Len())
}

func TestResourcePacker_PathCollision(t *testing.T) {
	fx := newPackFixture(t, RefMatchAllowList, []string{"bindata/Q1_5.PNG", "BinData/q1_5_1.png"}, zap.NewNop())
	src := binSource(t, `<hh:binItem id="5" format="png" href="BinData/5.png"/>`, nil,
		hwpxtest.File{Name: "BinData/5.png", Data: []byte("x")})

	assert.Empty(t, fx.packer.pack(src, "q1_"))

	resources := fx.packer.Resources()
	require.Len(t, resources, 1)
	assert.Equal(t, "BinData/q1_5_2.png", resources[0].Path)
}

func TestResourcePacker_SuffixModeKeepsHref(t *testing.T) {
	fx := newPackFixture(t, RefMatchSuffix, nil, zap.NewNop())
	src := binSource(t, `<hh:binItem id="5" format="png" href="BinData/5.png"/>`, nil,
		hwpxtest.File{Name: "BinData/5.png", Data: []byte("x")})

	assert.Empty(t, fx.packer.pack(src, "q1_"))
	assert.Equal(t, []string{"BinData/q1_5.png"}, attrs(fx.header.Root(), "binItem", "href"))
}

func TestResourcePacker_ManifestOnlySource(t *testing.T) {
	fx := newPackFixture(t, RefMatchAllowList, nil, zap.NewNop())
	src := binSource(t, "",
		[]hwpxtest.Item{
			{ID: "image1", Href: "BinData/image1.png", MediaType: "image/png"},
			{ID: "image2", Href: "BinData/image2.png", MediaType: "image/png"},
		},
		hwpxtest.File{Name: "BinData/image1.png", Data: []byte("one")},
	)

	missing := fx.packer.pack(src, "q2_")

	require.Len(t, missing, 1)
	assert.True(t, IsResourceMissingError(missing[0]))

	item, ok := fx.manifest.Lookup("q2_image1")
	require.True(t, ok)
	assert.Equal(t, "BinData/q2_image1.png", item.Href)
	_, ok = fx.manifest.Lookup("q2_image2")
	assert.False(t, ok)
	assert.Empty(t, hxml.FindAll(fx.header.Root(), "binItem"))
}

func TestResourcePacker_SameSourceTwice(t *testing.T) {
	fx := newPackFixture(t, RefMatchAllowList, nil, zap.NewNop())
	src := binSource(t, `<hh:binItem id="5" format="png" href="BinData/5.png"/>`, nil,
		hwpxtest.File{Name: "BinData/5.png", Data: []byte("x")})

	assert.Empty(t, fx.packer.pack(src, "q1_"))
	assert.Empty(t, fx.packer.pack(src, "q2_"))
	assert.Empty(t, fx.packer.pack(src, "q2_"), "an allocated id is not packed again")

	var paths []string
	for _, res := range fx.packer.Resources() {
		paths = append(paths, res.Path)
	}
	assert.Equal(t, []string{"BinData/q1_5.png", "BinData/q2_5.png"}, paths)
}

func TestResourcePacker_SkipsSentinelIDs(t *testing.T) {
	fx := newPackFixture(t, RefMatchAllowList, nil, zap.NewNop())
	src := binSource(t,
		`<hh:binItem id="0" format="png" href="BinData/0.png"/><hh:binItem id="5" format="png" href="BinData/5.png"/>`, nil,
		hwpxtest.File{Name: "BinData/0.png", Data: []byte("zero")},
		hwpxtest.File{Name: "BinData/5.png", Data: []byte("five")})

	assert.Empty(t, fx.packer.pack(src, "q1_"))
	require.Len(t, fx.packer.Resources(), 1)
	assert.Equal(t, "q1_5", fx.packer.Resources()[0].ID)
	assert.Equal(t, []string{"q1_5"}, attrs(fx.header.Root(), "binItem", "id"))

	manifestOnly := binSource(t, "", []hwpxtest.Item{{ID: "-1", Href: "BinData/x.png", MediaType: "image/png"}},
		hwpxtest.File{Name: "BinData/x.png", Data: []byte("x")})
	assert.Empty(t, fx.packer.pack(manifestOnly, "q2_"))
	assert.Len(t, fx.packer.Resources(), 1)
}
