package hwpx

import (
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"

	hxml "github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/xml"
)

// ManifestItem is one entry of the package manifest
type ManifestItem struct {
	ID        string
	Href      string
	MediaType string
}

// Manifest is the parsed package manifest (Contents/content.hpf). Unknown
// content such as metadata and spine is preserved on write.
type Manifest struct {
	doc  *etree.Document
	list *etree.Element
}

// parseManifest parses a manifest stream. The manifest list is created
// when the package element has none.
func parseManifest(data []byte) (*Manifest, error) {
	doc, err := hxml.Parse(data)
	if err != nil {
		return nil, err
	}

	root := doc.Root()
	list := hxml.Child(root, "manifest")
	if list == nil {
		list = hxml.NewElement(root.Space, "manifest")
		root.AddChild(list)
	}

	return &Manifest{doc: doc, list: list}, nil
}

// emptyManifest stands in for sources that carry no manifest
func emptyManifest() *Manifest {
	doc := etree.NewDocument()
	root := doc.CreateElement("package")
	list := root.CreateElement("manifest")
	return &Manifest{doc: doc, list: list}
}

// Items returns the manifest entries in document order
func (m *Manifest) Items() []ManifestItem {
	var items []ManifestItem
	for _, el := range hxml.Children(m.list, "item") {
		items = append(items, itemFromElement(el))
	}
	return items
}

// Lookup finds an entry by id
func (m *Manifest) Lookup(id string) (ManifestItem, bool) {
	for _, el := range hxml.Children(m.list, "item") {
		if v, _ := hxml.AttrValue(el, "id"); v == id {
			return itemFromElement(el), true
		}
	}
	return ManifestItem{}, false
}

// LookupHref finds an entry by normalized href
func (m *Manifest) LookupHref(href string) (ManifestItem, bool) {
	want := normalizePartPath(href)
	for _, el := range hxml.Children(m.list, "item") {
		if v, _ := hxml.AttrValue(el, "href"); normalizePartPath(v) == want {
			return itemFromElement(el), true
		}
	}
	return ManifestItem{}, false
}

// BinaryItems returns the entries whose payload lives under BinData/
func (m *Manifest) BinaryItems() []ManifestItem {
	prefix := strings.ToLower(BinDataDir)
	var items []ManifestItem
	for _, item := range m.Items() {
		if strings.HasPrefix(normalizePartPath(item.Href), prefix) {
			items = append(items, item)
		}
	}
	return items
}

// Add appends an entry, reusing the prefix of the manifest list
func (m *Manifest) Add(item ManifestItem) {
	el := hxml.NewElement(m.list.Space, "item")
	el.CreateAttr("id", item.ID)
	el.CreateAttr("href", item.Href)
	el.CreateAttr("media-type", item.MediaType)
	el.CreateAttr("isEmbeded", "1")
	m.list.AddChild(el)
}

// Bytes serializes the manifest
func (m *Manifest) Bytes() ([]byte, error) {
	return hxml.Serialize(m.doc)
}

func itemFromElement(el *etree.Element) ManifestItem {
	id, _ := hxml.AttrValue(el, "id")
	href, _ := hxml.AttrValue(el, "href")
	mediaType, _ := hxml.AttrValue(el, "media-type")
	return ManifestItem{ID: id, Href: href, MediaType: mediaType}
}

// mediaTypeFor infers a payload media type from its extension
func mediaTypeFor(name string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// String is used in log output
func (i ManifestItem) String() string {
	return fmt.Sprintf("%s(%s)", i.ID, i.Href)
}
