// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package sourcemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	doc, err := Parse([]byte(`{
		"version": 3,
		"file": "main.js",
		"sourceRoot": "",
		"sources": ["webpack://app/src/a.js", "../b.js", "c.js", "d.js", "e.js", "f.js", "g.js"],
		"sourcesContent": ["A", null, "C"],
		"names": ["a", "b"],
		"mappings": "AAAA,CAAC"
	}`))
	require.NoError(t, err)

	report := Analyze(doc)
	assert.Equal(t, 3, report.Version)
	assert.Equal(t, "main.js", report.File)
	assert.Equal(t, "", report.SourceRoot)
	assert.Equal(t, 7, report.SourceCount)
	assert.Equal(t, 2, report.ContentCount)
	assert.Equal(t, 2, report.NameCount)
	assert.Equal(t, 9, report.MappingsLength)
	assert.Equal(t, 2, report.Remaining)
	assert.Equal(t, []PreviewEntry{
		{Path: "src/a.js", HasContent: true},
		{Path: "b.js", HasContent: false},
		{Path: "c.js", HasContent: true},
		{Path: "d.js", HasContent: false},
		{Path: "e.js", HasContent: false},
	}, report.Preview)
}

func TestAnalyze_Defaults(t *testing.T) {
	doc, err := Parse([]byte(`{"sources":[]}`))
	require.NoError(t, err)

	report := Analyze(doc)
	assert.Equal(t, 0, report.Version)
	assert.Equal(t, "", report.File)
	assert.Equal(t, 0, report.SourceCount)
	assert.Equal(t, 0, report.ContentCount)
	assert.Empty(t, report.Preview)
	assert.Equal(t, 0, report.Remaining)
	assert.Equal(t, 0, report.MappingsLength)
}

func TestAnalyze_ContentCountBounded(t *testing.T) {
	inputs := []string{
		`{"sources":["a"],"sourcesContent":["A","B","C"]}`,
		`{"sources":[],"sourcesContent":["A"]}`,
		`{"sources":["a","b"],"sourcesContent":[null,null]}`,
	}
	for _, input := range inputs {
		doc, err := Parse([]byte(input))
		require.NoError(t, err)
		report := Analyze(doc)
		assert.Equal(t, len(doc.Sources), report.SourceCount, input)
		assert.LessOrEqual(t, report.ContentCount, report.SourceCount, input)
	}
}
