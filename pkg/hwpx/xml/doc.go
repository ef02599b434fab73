// Package xml provides namespace-insensitive tree helpers for HWPX streams.
//
// HWPX containers store their content as several XML streams (header,
// sections, manifest). Producers disagree on namespace prefixes: one tool
// writes "hp:p", another writes "hp10:p", and pre-extracted fragments often
// carry no namespace declarations at all. Every lookup in this package is
// therefore done by local name only.
//
// # Structure Organization
//
//   - tree.go: parsing, serialization, and the local-name visitor (Walk, FindAll, FindFirst, Children)
//   - attrs.go: attribute helpers and namespace declaration handling
//
// # Usage
//
// The package wraps github.com/beevik/etree. Elements are plain etree
// elements, so callers may mix these helpers with the etree API:
//
//	doc, err := xml.Parse(headerBytes)
//	if err != nil {
//	    return err
//	}
//	for _, pr := range xml.FindAll(doc.Root(), "paraPr") {
//	    id, _ := xml.AttrValue(pr, "id")
//	    fmt.Println(id)
//	}
package xml
