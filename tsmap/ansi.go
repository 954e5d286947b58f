// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package tsmap

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/muesli/termenv"

	"tsmap-recover.safepic.fr/sourcemap"
)

// Printer writes the human readable report and per-source lines. Colors
// follow the terminal profile of the writer and are dropped off-TTY.
type Printer struct {
	out *termenv.Output
}

// NewPrinter returns a Printer on w.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	var options []termenv.OutputOption
	if noColor {
		options = append(options, termenv.WithProfile(termenv.Ascii))
	}
	return &Printer{out: termenv.NewOutput(w, options...)}
}

func (p *Printer) color(s string, c termenv.Color) string {
	return p.out.String(s).Foreground(c).String()
}

func (p *Printer) printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

// Report prints the analysis of a source map.
func (p *Printer) Report(report *sourcemap.Report) {
	p.printf("%s\n", p.color("=== Sourcemap Analysis ===", termenv.ANSICyan))
	version := "unknown"
	if report.Version != 0 {
		version = fmt.Sprint(report.Version)
	}
	file := report.File
	if file == "" {
		file = "unknown"
	}
	p.printf("Version: %s\n", version)
	p.printf("File: %s\n", file)
	p.printf("Source Root: %s\n", report.SourceRoot)
	p.printf("Number of sources: %d\n", report.SourceCount)
	p.printf("Number of source contents: %d\n", report.ContentCount)
	if len(report.Preview) > 0 {
		p.printf("\nFirst %d source files:\n", len(report.Preview))
		for _, entry := range report.Preview {
			mark := p.color("✗", termenv.ANSIRed)
			if entry.HasContent {
				mark = p.color("✓", termenv.ANSIGreen)
			}
			p.printf("  %s %s\n", mark, entry.Path)
		}
		if report.Remaining > 0 {
			p.printf("  ... and %d more\n", report.Remaining)
		}
	}
	p.printf("Number of names: %d\n", report.NameCount)
	p.printf("Mappings length: %d characters\n", report.MappingsLength)
	for _, notice := range report.Notices {
		p.printf("%s %s\n", p.color("Notice:", termenv.ANSIYellow), notice)
	}
	p.printf("%s\n", strings.Repeat("=", 30))
}

// Outcome prints one extraction result. root, a local path or an output URL,
// prefixes written paths.
func (p *Printer) Outcome(root string, outcome sourcemap.Outcome) {
	switch outcome.Status {
	case sourcemap.StatusWritten:
		p.printf("%s: %s\n", p.color("Written", termenv.ANSIGreen), outputPath(root, outcome.Path))
	case sourcemap.StatusSkipped:
		p.printf("%s (%s): %s\n", p.color("Skipped", termenv.ANSIYellow), outcome.Reason, outcome.Source)
	case sourcemap.StatusFailed:
		p.printf("%s: %s (%s): %s\n", p.color("Failed", termenv.ANSIRed), outcome.Source, outcome.Path, outcome.Reason)
	}
}

// Summary prints the totals of a run.
func (p *Printer) Summary(summary sourcemap.Summary) {
	p.printf("\n%s: %d written, %d skipped, %d failed\n", p.color("Summary", termenv.ANSICyan), summary.Written, summary.Skipped, summary.Failed)
}

// Error prints a fatal error.
func (p *Printer) Error(err error) {
	p.printf("%s %v\n", p.color("Error:", termenv.ANSIRed), err)
}

// Line prints a plain line.
func (p *Printer) Line(format string, a ...any) {
	p.printf(format+"\n", a...)
}

func outputPath(root, rel string) string {
	if strings.Contains(root, "://") && !strings.HasPrefix(root, "file://") {
		return strings.TrimRight(root, "/") + "/" + rel
	}
	return filepath.Join(displayRoot(root), filepath.FromSlash(rel))
}
