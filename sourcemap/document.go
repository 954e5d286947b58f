// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies

// Package sourcemap reads version 3 source maps and rebuilds the original
// source tree they embed.
//
// The flow is Parse (or New on an already decoded value) → Analyze for a
// summary and/or Extractor.Extract to write sources under an output root.
// Every source path goes through Resolve first, which confines it below the
// output root whatever the map contains.
package sourcemap

import (
	"fmt"
	"math"
)

// ExpectedVersion is the only source map revision in use today.
const ExpectedVersion = 3

// Document is a validated source map. It is not modified after New returns.
type Document struct {
	Version        int // 0 when absent
	File           string
	SourceRoot     string
	Sources        []string
	SourcesContent []*string // parallel to Sources, may be shorter
	Names          []string
	Mappings       string

	// Notices collects non-fatal findings of the validator, in field order.
	Notices []string
}

// Content returns the inline text of source i. ok is false when the map
// carries nothing at that index.
func (d *Document) Content(i int) (content string, ok bool) {
	if i < 0 || i >= len(d.SourcesContent) || d.SourcesContent[i] == nil {
		return "", false
	}
	return *d.SourcesContent[i], true
}

// ContentCount is the number of sources with inline text.
func (d *Document) ContentCount() int {
	n := 0
	for i := range d.Sources {
		if _, ok := d.Content(i); ok {
			n++
		}
	}
	return n
}

// ResolvedSource is one entry of Sources after path resolution.
type ResolvedSource struct {
	Index        int
	RawPath      string
	RelativePath string
	HasContent   bool
	Content      string
}

// Source resolves entry i.
func (d *Document) Source(i int) ResolvedSource {
	content, ok := d.Content(i)
	return ResolvedSource{
		Index:        i,
		RawPath:      d.Sources[i],
		RelativePath: Resolve(d.SourceRoot, d.Sources[i], i),
		HasContent:   ok,
		Content:      content,
	}
}

// fieldRule is one row of the defaulting policy: how a top-level key is read
// and what happens when it is absent or of the wrong kind.
type fieldRule struct {
	key      string
	required bool
	// apply stores value into doc. A non-nil error means the value has the
	// wrong kind; required fields then fail, optional ones keep their zero
	// value and record a notice.
	apply func(doc *Document, value any) error
}

var fieldRules = []fieldRule{
	{key: "version", apply: applyVersion},
	{key: "file", apply: func(doc *Document, value any) error { return applyString(&doc.File, value) }},
	{key: "sourceRoot", apply: func(doc *Document, value any) error { return applyString(&doc.SourceRoot, value) }},
	{key: "sources", required: true, apply: applySources},
	{key: "sourcesContent", apply: applySourcesContent},
	{key: "names", apply: applyNames},
	{key: "mappings", apply: func(doc *Document, value any) error { return applyString(&doc.Mappings, value) }},
}

// New validates a decoded JSON value (maps, slices and scalars as produced by
// encoding/json) and builds a Document from it.
func New(value any) (*Document, error) {
	object, ok := value.(map[string]any)
	if !ok {
		return nil, &FormatError{Reason: "not an object"}
	}
	doc := &Document{}
	for _, rule := range fieldRules {
		raw, present := object[rule.key]
		if !present || raw == nil {
			if rule.required {
				return nil, errSources
			}
			continue
		}
		if err := rule.apply(doc, raw); err != nil {
			if rule.required {
				return nil, errSources
			}
			doc.Notices = append(doc.Notices, fmt.Sprintf("ignoring %q: %v", rule.key, err))
		}
	}
	return doc, nil
}

var errSources = &FormatError{Reason: "sources missing or not an array"}

func applyVersion(doc *Document, value any) error {
	number, ok := value.(float64)
	if !ok || number != math.Trunc(number) || number < math.MinInt32 || number > math.MaxInt32 {
		return fmt.Errorf("expected an integer, got %s", kindOf(value))
	}
	doc.Version = int(number)
	if doc.Version != ExpectedVersion {
		doc.Notices = append(doc.Notices, fmt.Sprintf("unexpected version %d, reading as version %d", doc.Version, ExpectedVersion))
	}
	return nil
}

func applyString(target *string, value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected a string, got %s", kindOf(value))
	}
	*target = s
	return nil
}

func applySources(doc *Document, value any) error {
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("expected an array, got %s", kindOf(value))
	}
	sources := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return fmt.Errorf("entry %d: expected a string, got %s", i, kindOf(item))
		}
		sources[i] = s
	}
	doc.Sources = sources
	return nil
}

// applySourcesContent keeps individual entries lenient: anything but a string
// counts as missing content for that index.
func applySourcesContent(doc *Document, value any) error {
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("expected an array, got %s", kindOf(value))
	}
	contents := make([]*string, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			contents[i] = &v
		case nil:
		default:
			doc.Notices = append(doc.Notices, fmt.Sprintf("sourcesContent[%d]: expected a string or null, got %s", i, kindOf(item)))
		}
	}
	doc.SourcesContent = contents
	return nil
}

func applyNames(doc *Document, value any) error {
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("expected an array, got %s", kindOf(value))
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		s, _ := item.(string)
		names = append(names, s)
	}
	doc.Names = names
	return nil
}

func kindOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
