// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package sourcemap

import "unicode/utf8"

// PreviewSize is how many sources a Report lists.
const PreviewSize = 5

// Report summarizes a Document without touching storage.
type Report struct {
	Version        int
	File           string
	SourceRoot     string
	SourceCount    int
	ContentCount   int
	Preview        []PreviewEntry
	Remaining      int // sources not listed in Preview
	NameCount      int
	MappingsLength int
	Notices        []string
}

// PreviewEntry shows one source by its resolved path.
type PreviewEntry struct {
	Path       string
	HasContent bool
}

// Analyze builds the report for doc.
func Analyze(doc *Document) *Report {
	report := &Report{
		Version:        doc.Version,
		File:           doc.File,
		SourceRoot:     doc.SourceRoot,
		SourceCount:    len(doc.Sources),
		ContentCount:   doc.ContentCount(),
		NameCount:      len(doc.Names),
		MappingsLength: utf8.RuneCountInString(doc.Mappings),
		Notices:        doc.Notices,
	}
	n := min(PreviewSize, len(doc.Sources))
	report.Preview = make([]PreviewEntry, 0, n)
	for i := 0; i < n; i++ {
		source := doc.Source(i)
		report.Preview = append(report.Preview, PreviewEntry{Path: source.RelativePath, HasContent: source.HasContent})
	}
	report.Remaining = len(doc.Sources) - n
	return report
}
