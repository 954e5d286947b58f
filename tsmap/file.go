// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package tsmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/viant/afs"

	"tsmap-recover.safepic.fr/sourcemap"
)

// RunExtract implements "tsmap-recover extract": fetch one source map,
// print its analysis and write its sources. It returns the exit code.
func RunExtract(args []string) int {
	return withDefaultEnv(func(env *Env) int {
		return runExtract(context.Background(), args, env, false)
	})
}

// RunAnalyze implements "tsmap-recover analyze", extract without writing.
func RunAnalyze(args []string) int {
	return withDefaultEnv(func(env *Env) int {
		return runExtract(context.Background(), args, env, true)
	})
}

func runExtract(ctx context.Context, args []string, env *Env, analyzeOnly bool) int {
	name := "tsmap-recover extract"
	if analyzeOnly {
		name = "tsmap-recover analyze"
	}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	flagged := DefaultConfig("extracted_sources")
	flagged.AddFlags(fs)
	var mapLocation string
	fs.StringVarP(&mapLocation, "map", "m", "", "Path or URL of the .map file (or pass it as argument, - for stdin)")
	if !analyzeOnly {
		fs.BoolVarP(&flagged.Analyze, "analyze", "a", false, "Analyze the sourcemap structure without extracting")
		fs.BoolVar(&flagged.Clean, "clean", false, "Empty a non-empty output directory before extracting (asks first)")
		fs.BoolVarP(&flagged.Yes, "yes", "y", false, "Do not ask for confirmation with --clean")
	}
	fs.Usage = func() {
		fmt.Fprintf(env.Stderr, "Usage: %s [flags] <url|file|->\n\n", name)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ExitOK
		}
		return ExitFatal
	}
	if mapLocation == "" && fs.NArg() > 0 {
		mapLocation = fs.Arg(0)
	}
	if strings.TrimSpace(mapLocation) == "" {
		fs.Usage()
		return ExitFatal
	}

	cfg, err := Resolve(fs, flagged, env.Getenv)
	if err != nil {
		fmt.Fprintf(env.Stderr, "Error: %v\n", err)
		return ExitFatal
	}
	if analyzeOnly {
		cfg.Analyze = true
	}
	logger, err := NewLogger(env.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(env.Stderr, "Error: %v\n", err)
		return ExitFatal
	}
	printer := NewPrinter(env.Stdout, cfg.NoColor)

	doc, err := loadDocument(ctx, env, cfg, logger, mapLocation)
	if err != nil {
		printer.Error(err)
		return ExitFatal
	}

	printer.Report(sourcemap.Analyze(doc))
	if cfg.Analyze {
		return ExitOK
	}

	rootURL, err := sourcemap.RootURL(cfg.Output)
	if err != nil {
		printer.Error(err)
		return ExitFatal
	}
	if cfg.Clean {
		proceed, err := cleanOutput(ctx, afs.New(), rootURL, cfg.Yes, env.Stdin, printer)
		if err != nil {
			printer.Error(err)
			return ExitFatal
		}
		if !proceed {
			printer.Line("Operation cancelled by user.")
			return ExitOK
		}
	}

	if len(doc.Sources) > 0 {
		printer.Line("\nFound %d source files to extract", len(doc.Sources))
	}
	extractor := sourcemap.NewExtractor(sourcemap.NewStore(nil),
		sourcemap.WithConcurrency(cfg.Concurrency),
		sourcemap.WithLogger(logger))
	outcomes := extractor.Extract(ctx, doc, rootURL)
	for _, outcome := range outcomes {
		printer.Outcome(rootURL, outcome)
	}
	summary := sourcemap.Summarize(outcomes)
	printer.Summary(summary)
	return exitCode(summary, logger)
}

// loadDocument fetches and validates the map at location. Payloads that are
// not JSON are reported as fetch errors.
func loadDocument(ctx context.Context, env *Env, cfg *Config, logger *slog.Logger, location string) (*sourcemap.Document, error) {
	var raw []byte
	if location == "-" {
		data, err := io.ReadAll(env.Stdin)
		if err != nil {
			return nil, &FetchError{Location: "stdin", Op: "read", Err: err}
		}
		raw = data
	} else {
		loader, err := env.NewLoader(cfg.FetchConfig(), logger)
		if err != nil {
			return nil, err
		}
		logger.Info("downloading sourcemap", "location", location)
		if raw, err = loader.Fetch(ctx, location); err != nil {
			return nil, err
		}
	}

	doc, err := sourcemap.Parse(raw)
	if err != nil {
		var decodeErr *sourcemap.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, &FetchError{Location: location, Op: "decode", Err: err}
		}
		return nil, err
	}
	for _, notice := range doc.Notices {
		logger.Warn("sourcemap notice", "location", location, "notice", notice)
	}
	return doc, nil
}

// exitCode applies the exit status policy: failure only when at least one
// source failed and none was written.
func exitCode(summary sourcemap.Summary, logger *slog.Logger) int {
	if summary.TotalFailure() {
		logger.Error("no source could be written", "failed", summary.Failed)
		return ExitExtractFailed
	}
	if summary.Written == 0 {
		logger.Warn("sourcemap carries no source content, nothing written", "skipped", summary.Skipped)
	}
	return ExitOK
}
