package hwpx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// Well-known part names of an HWPX container.
const (
	MimetypePath = "mimetype"
	HeaderPath   = "Contents/header.xml"
	SectionPath  = "Contents/section0.xml"
	ManifestPath = "Contents/content.hpf"
	BinDataDir   = "BinData/"
	MimeType     = "application/hwp+zip"
)

// Container handles reading the parts of an HWPX zip package
type Container struct {
	reader *zip.Reader
	raw    []byte
	Parts  map[string]*zip.File
	// folded maps normalized part names to the first matching entry so
	// lookups tolerate case and slash variants.
	folded map[string]*zip.File
}

// OpenContainer indexes the parts of a zip package held in memory
func OpenContainer(data []byte) (*Container, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read zip file: %w", err)
	}

	c := &Container{
		reader: zipReader,
		raw:    data,
		Parts:  make(map[string]*zip.File),
		folded: make(map[string]*zip.File),
	}

	// Index all parts by name
	for _, file := range zipReader.File {
		c.Parts[file.Name] = file
		key := normalizePartPath(file.Name)
		if _, ok := c.folded[key]; !ok {
			c.folded[key] = file
		}
	}

	return c, nil
}

// Lookup finds a part by exact name, falling back to a case and slash
// insensitive match.
func (c *Container) Lookup(name string) (*zip.File, bool) {
	if file, ok := c.Parts[name]; ok {
		return file, true
	}
	file, ok := c.folded[normalizePartPath(name)]
	return file, ok
}

// HasPart reports whether the container holds the named part
func (c *Container) HasPart(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// GetPart retrieves the content of a specific part
func (c *Container) GetPart(name string) ([]byte, error) {
	file, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read part %s: %w", name, err)
	}

	return content, nil
}

// ListParts returns the part names in archive order
func (c *Container) ListParts() []string {
	parts := make([]string, 0, len(c.reader.File))
	for _, file := range c.reader.File {
		parts = append(parts, file.Name)
	}
	return parts
}

// Files returns the zip entries in archive order
func (c *Container) Files() []*zip.File {
	return c.reader.File
}

// Bytes returns the original container bytes
func (c *Container) Bytes() []byte {
	return c.raw
}

// normalizePartPath folds a part path for tolerant comparison: backslashes
// become slashes, leading "./" and "/" are trimmed, and case is folded.
func normalizePartPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for {
		switch {
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case strings.HasPrefix(p, "/"):
			p = p[1:]
		default:
			return strings.ToLower(path.Clean(p))
		}
	}
}
