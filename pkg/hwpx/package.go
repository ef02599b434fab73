package hwpx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// packageWriter writes the merged container: the template's entries with
// the rewritten streams swapped in, followed by the packed resources.
type packageWriter struct {
	template *Container
	// streams maps canonical part names to their new content
	streams   map[string][]byte
	resources []BinaryResource
}

// replacement returns the canonical name of the stream that replaces the
// named template entry, if any
func (p *packageWriter) replacement(name string) (string, bool) {
	key := normalizePartPath(name)
	for canonical := range p.streams {
		if normalizePartPath(canonical) == key {
			return canonical, true
		}
	}
	return "", false
}

// entryNames returns the names of every entry the written container holds
func (p *packageWriter) entryNames() map[string]bool {
	names := map[string]bool{MimetypePath: true}
	for _, file := range p.template.Files() {
		if canonical, ok := p.replacement(file.Name); ok {
			names[canonical] = true
			continue
		}
		names[file.Name] = true
	}
	for canonical := range p.streams {
		names[canonical] = true
	}
	for _, res := range p.resources {
		names[res.Path] = true
	}
	return names
}

func (p *packageWriter) write() ([]byte, error) {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	// The mimetype entry must come first and be stored uncompressed.
	mimetype := []byte(MimeType)
	if p.template.HasPart(MimetypePath) {
		data, err := p.template.GetPart(MimetypePath)
		if err != nil {
			return nil, err
		}
		mimetype = data
	}
	if err := writeEntry(w, MimetypePath, mimetype, zip.Store); err != nil {
		return nil, err
	}

	written := make(map[string]bool)
	for _, file := range p.template.Files() {
		if normalizePartPath(file.Name) == MimetypePath {
			continue
		}

		canonical, replaced := p.replacement(file.Name)
		if !replaced {
			if err := w.Copy(file); err != nil {
				return nil, fmt.Errorf("failed to copy %s: %w", file.Name, err)
			}
			continue
		}

		// Only the first of several case variants of a stream survives.
		if written[canonical] {
			continue
		}
		if err := writeEntry(w, canonical, p.streams[canonical], zip.Deflate); err != nil {
			return nil, err
		}
		written[canonical] = true
	}

	for _, canonical := range []string{HeaderPath, SectionPath, ManifestPath} {
		if data, ok := p.streams[canonical]; ok && !written[canonical] {
			if err := writeEntry(w, canonical, data, zip.Deflate); err != nil {
				return nil, err
			}
		}
	}

	for _, res := range p.resources {
		if err := writeEntry(w, res.Path, res.Data, zip.Store); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEntry(w *zip.Writer, name string, data []byte, method uint16) error {
	fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := io.Copy(fw, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
