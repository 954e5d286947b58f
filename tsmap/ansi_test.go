// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package tsmap

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"tsmap-recover.safepic.fr/sourcemap"
)

func TestPrinter_Report(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, true)

	printer.Report(&sourcemap.Report{
		Version:      3,
		File:         "main.js",
		SourceRoot:   "/src",
		SourceCount:  7,
		ContentCount: 6,
		Preview: []sourcemap.PreviewEntry{
			{Path: "a.ts", HasContent: true},
			{Path: "b.ts", HasContent: false},
		},
		Remaining:      5,
		NameCount:      2,
		MappingsLength: 12,
		Notices:        []string{"unexpected version 4"},
	})

	expect := "=== Sourcemap Analysis ===\n" +
		"Version: 3\n" +
		"File: main.js\n" +
		"Source Root: /src\n" +
		"Number of sources: 7\n" +
		"Number of source contents: 6\n" +
		"\nFirst 2 source files:\n" +
		"  ✓ a.ts\n" +
		"  ✗ b.ts\n" +
		"  ... and 5 more\n" +
		"Number of names: 2\n" +
		"Mappings length: 12 characters\n" +
		"Notice: unexpected version 4\n" +
		"==============================\n"
	assert.Equal(t, expect, buf.String())
}

func TestPrinter_ReportUnknownFields(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Report(&sourcemap.Report{})

	assert.Contains(t, buf.String(), "Version: unknown\n")
	assert.Contains(t, buf.String(), "File: unknown\n")
	assert.NotContains(t, buf.String(), "source files:")
}

func TestPrinter_Outcomes(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, true)

	printer.Outcome("out", sourcemap.Outcome{Source: "webpack://app/src/a.ts", Path: "src/a.ts", Status: sourcemap.StatusWritten})
	printer.Outcome("out", sourcemap.Outcome{Source: "b.ts", Path: "b.ts", Status: sourcemap.StatusSkipped, Reason: sourcemap.ReasonNoContent})
	printer.Outcome("out", sourcemap.Outcome{Source: "c.ts", Path: "c.ts", Status: sourcemap.StatusFailed, Reason: "write c.ts: denied"})
	printer.Summary(sourcemap.Summary{Written: 1, Skipped: 1, Failed: 1})
	printer.Error(errors.New("boom"))

	expect := "Written: " + filepath.Join("out", "src", "a.ts") + "\n" +
		"Skipped (no content available): b.ts\n" +
		"Failed: c.ts (c.ts): write c.ts: denied\n" +
		"\nSummary: 1 written, 1 skipped, 1 failed\n" +
		"Error: boom\n"
	assert.Equal(t, expect, buf.String())
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "src", "a.ts"), outputPath("out", "src/a.ts"))
	assert.Equal(t, filepath.FromSlash("/tmp/out/src/a.ts"), outputPath("file:///tmp/out", "src/a.ts"))
	assert.Equal(t, "mem://localhost/out/src/a.ts", outputPath("mem://localhost/out", "src/a.ts"))
}
