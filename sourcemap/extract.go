// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package sourcemap

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
)

// Status is the result kind of one source.
type Status int

const (
	StatusWritten Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusWritten:
		return "Written"
	case StatusSkipped:
		return "Skipped"
	case StatusFailed:
		return "Failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ReasonNoContent is the skip reason for sources without inline text.
const ReasonNoContent = "no content available"

// Outcome records what happened to Sources[Index].
type Outcome struct {
	Index    int
	Source   string // raw entry of "sources"
	Path     string // resolved relative path
	Location string // storage URL, set when a write was attempted
	Status   Status
	Reason   string // skip or failure reason
}

// Summary counts outcomes per status.
type Summary struct {
	Written int
	Skipped int
	Failed  int
}

// Summarize counts outcomes.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case StatusWritten:
			s.Written++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// TotalFailure reports a run where every attempted write failed.
func (s Summary) TotalFailure() bool {
	return s.Failed > 0 && s.Written == 0
}

type Option func(*Extractor)

// WithConcurrency sets how many sources are written at the same time.
// Sources below the same top-level entry are written by one worker, in input
// order, so the resulting tree and outcomes do not depend on n.
func WithConcurrency(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger receiving per-source records.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Extractor writes the inline sources of a Document to a Store.
type Extractor struct {
	store       Store
	concurrency int
	logger      *slog.Logger
}

// NewExtractor creates an Extractor writing to store.
func NewExtractor(store Store, options ...Option) *Extractor {
	e := &Extractor{
		store:       store,
		concurrency: 1,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Extract writes every source of doc that has content below rootURL (see
// RootURL) and returns one outcome per entry of doc.Sources, in order.
// Failures are recorded per source and never stop the run.
func (e *Extractor) Extract(ctx context.Context, doc *Document, rootURL string) []Outcome {
	outcomes := make([]Outcome, len(doc.Sources))
	var pending []int
	for i := range doc.Sources {
		source := doc.Source(i)
		outcomes[i] = Outcome{Index: i, Source: source.RawPath, Path: source.RelativePath}
		if !source.HasContent {
			outcomes[i].Status = StatusSkipped
			outcomes[i].Reason = ReasonNoContent
			e.logger.Debug("skipping source", "source", source.RawPath, "reason", ReasonNoContent)
			continue
		}
		pending = append(pending, i)
	}

	if e.concurrency <= 1 {
		for _, i := range pending {
			e.write(ctx, doc, rootURL, &outcomes[i])
		}
		return outcomes
	}

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for _, indexes := range groupByTopLevel(outcomes, pending) {
		wg.Add(1)
		go func(indexes []int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			for _, i := range indexes {
				e.write(ctx, doc, rootURL, &outcomes[i])
			}
		}(indexes)
	}
	wg.Wait()
	return outcomes
}

// groupByTopLevel splits pending into groups sharing the first segment of
// their resolved path, each in input order. Two paths that can collide (equal,
// or one being a directory of the other) always share that segment, so
// running groups in parallel leaves the same tree as a serial run.
func groupByTopLevel(outcomes []Outcome, pending []int) [][]int {
	groups := make(map[string]int)
	var result [][]int
	for _, i := range pending {
		top, _, _ := strings.Cut(outcomes[i].Path, "/")
		g, ok := groups[top]
		if !ok {
			g = len(result)
			groups[top] = g
			result = append(result, nil)
		}
		result[g] = append(result[g], i)
	}
	return result
}

func (e *Extractor) write(ctx context.Context, doc *Document, rootURL string, outcome *Outcome) {
	content, _ := doc.Content(outcome.Index)
	outcome.Location = joinURL(rootURL, outcome.Path)

	dir := joinURL(rootURL, path.Dir(outcome.Path))
	if err := e.store.MkdirAll(ctx, dir); err != nil {
		e.fail(outcome, fmt.Sprintf("create directory %s: %v", dir, err))
		return
	}
	if err := e.store.WriteFile(ctx, outcome.Location, []byte(content)); err != nil {
		e.fail(outcome, fmt.Sprintf("write %s: %v", outcome.Location, err))
		return
	}
	outcome.Status = StatusWritten
	e.logger.Debug("wrote source", "source", outcome.Source, "location", outcome.Location, "bytes", len(content))
}

func (e *Extractor) fail(outcome *Outcome, reason string) {
	outcome.Status = StatusFailed
	outcome.Reason = reason
	e.logger.Warn("source not written", "source", outcome.Source, "path", outcome.Path, "reason", reason)
}
