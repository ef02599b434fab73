// Package hwpx merges zip-packaged HWPX documents onto a template.
//
// Each source is a complete container holding one question: a header
// stream with shared definitions (fonts, character and paragraph
// properties, styles, border fills, numberings, binary items), a section
// stream with the content, a package manifest and the binary payloads.
// The engine combines any number of sources into one container built on
// a fixed template.
//
// Basic Usage:
//
//	engine, err := hwpx.New(source.NewDir("questions"), source.NewTemplateFile("template.hwpx", nil))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := engine.Merge(ctx, hwpx.MergeRequest{
//	    Sources: []hwpx.SourceRef{
//	        {Key: "q-1001"},
//	        {Key: "q-1002", Fragment: extracted},
//	    },
//	    OutputName: "exam.hwpx",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	os.WriteFile(result.Name, result.Bytes, 0644)
//
// Identifiers:
//
// Every definition a source brings is imported under a per-source prefix
// ("q1_", "q2_", ...), and every reference to it inside the imported
// header and content is rewritten the same way. Sentinel values such as
// "0" and "4294967295" mean "no reference" and are never rewritten.
// Paragraphs get fresh ids from one counter per merge.
//
// Output:
//
// The merged header lists are sorted in the order the consuming
// application expects and their itemCnt attributes match their contents.
// The template page setup appears exactly once, at the front of the first
// paragraph. Binary payloads are copied under BinData/ with collision-free
// names and listed in the manifest. The result is verified before it is
// returned; an IntegrityError means no bytes were produced.
package hwpx
