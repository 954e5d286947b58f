// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package tsmap

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"
	"golang.org/x/net/html"

	"tsmap-recover.safepic.fr/sourcemap"
)

var (
	reSourceMapInline  = regexp.MustCompile(`(?m)//[#@]\s*sourceMappingURL=(data:application/json(?:;charset=[^;,]+)?;base64,[A-Za-z0-9+/=]+)`)
	reSourceMapComment = regexp.MustCompile(`(?m)//[#@]\s*sourceMappingURL\s*=\s*(\S+)\s*$`)
	reScriptSrc        = regexp.MustCompile(`(?i)<script[^>]+src\s*=\s*['"]([^'"]+)['"]`)
)

// RunCrawl implements "tsmap-recover crawl": fetch a page, follow its
// scripts to their source maps and recover every map found.
func RunCrawl(args []string) int {
	return withDefaultEnv(func(env *Env) int {
		return runCrawl(context.Background(), args, env)
	})
}

func runCrawl(ctx context.Context, args []string, env *Env) int {
	fs := pflag.NewFlagSet("tsmap-recover crawl", pflag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	flagged := DefaultConfig("recovered")
	flagged.AddFlags(fs)
	var rootLocation string
	fs.StringVar(&rootLocation, "url", "", "Root page URL to crawl (or pass it as argument)")
	fs.BoolVar(&flagged.SaveJS, "save-js", false, "Save downloaded .js files alongside recovered sources")
	fs.BoolVar(&flagged.SaveMap, "save-map", false, "Save downloaded .map files alongside recovered sources")
	fs.IntVar(&flagged.CacheSize, "cache-size", flagged.CacheSize, "Number of map URLs remembered to avoid recovering a map twice")
	fs.Usage = func() {
		fmt.Fprintf(env.Stderr, "Usage: tsmap-recover crawl [flags] <url>\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ExitOK
		}
		return ExitFatal
	}
	if rootLocation == "" && fs.NArg() > 0 {
		rootLocation = fs.Arg(0)
	}
	if strings.TrimSpace(rootLocation) == "" {
		fmt.Fprintln(env.Stderr, "Missing -url")
		fs.Usage()
		return ExitFatal
	}

	cfg, err := Resolve(fs, flagged, env.Getenv)
	if err != nil {
		fmt.Fprintf(env.Stderr, "Error: %v\n", err)
		return ExitFatal
	}
	logger, err := NewLogger(env.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(env.Stderr, "Error: %v\n", err)
		return ExitFatal
	}
	printer := NewPrinter(env.Stdout, cfg.NoColor)

	rootURL, err := url.Parse(rootLocation)
	if err != nil || rootURL.Host == "" {
		printer.Error(fmt.Errorf("invalid url %q", rootLocation))
		return ExitFatal
	}
	loader, err := env.NewLoader(cfg.FetchConfig(), logger)
	if err != nil {
		printer.Error(err)
		return ExitFatal
	}
	crawler, err := newCrawler(cfg, loader, logger)
	if err != nil {
		printer.Error(err)
		return ExitFatal
	}

	printer.Line("Fetching: %s", rootURL.String())
	body, err := loader.Fetch(ctx, rootURL.String())
	if err != nil {
		printer.Error(err)
		return ExitFatal
	}
	scripts := parseScriptsHTML(string(body), rootURL)
	if len(scripts) == 0 {
		printer.Line("No external script src found on page.")
	}

	results := crawler.run(ctx, scripts)
	var total sourcemap.Summary
	maps := 0
	for _, r := range results {
		switch {
		case r.err != nil:
			printer.Line("%s: %v", r.script, r.err)
		case r.mapURL == "":
			printer.Line("No sourcemap for %s", r.script)
		case r.duplicate:
			printer.Line("Already recovered %s", r.mapURL)
		default:
			maps++
			printer.Line("Recovered %s: %d written, %d skipped, %d failed", r.mapURL, r.summary.Written, r.summary.Skipped, r.summary.Failed)
			for _, outcome := range r.outcomes {
				if outcome.Status == sourcemap.StatusFailed {
					printer.Outcome(r.outDir, outcome)
				}
			}
			total.Written += r.summary.Written
			total.Skipped += r.summary.Skipped
			total.Failed += r.summary.Failed
		}
	}
	printer.Line("\nDone. Scripts processed: %d. Maps recovered: %d", len(scripts), maps)
	printer.Summary(total)
	return exitCode(total, logger)
}

type crawler struct {
	cfg    *Config
	loader Loader
	logger *slog.Logger
	store  sourcemap.Store
	seen   *lru.Cache[string, struct{}]
}

func newCrawler(cfg *Config, loader Loader, logger *slog.Logger) (*crawler, error) {
	seen, err := lru.New[string, struct{}](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &crawler{
		cfg:    cfg,
		loader: loader,
		logger: logger,
		store:  sourcemap.NewStore(nil),
		seen:   seen,
	}, nil
}

// scriptResult is what happened to one script of the page.
type scriptResult struct {
	script    string
	mapURL    string // empty when no map was found
	duplicate bool
	outDir    string
	outcomes  []sourcemap.Outcome
	summary   sourcemap.Summary
	err       error
}

// run processes scripts on a bounded worker pool. Results keep the order
// of scripts.
func (c *crawler) run(ctx context.Context, scripts []*url.URL) []scriptResult {
	results := make([]scriptResult, len(scripts))
	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, s := range scripts {
		wg.Add(1)
		go func(i int, scriptURL *url.URL) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = c.processScript(ctx, scriptURL)
		}(i, s)
	}
	wg.Wait()
	return results
}

// processScript locates the map of one script, in order: inline data URL,
// sourceMappingURL comment, <script>.map.
func (c *crawler) processScript(ctx context.Context, scriptURL *url.URL) scriptResult {
	result := scriptResult{script: scriptURL.String()}
	c.logger.Info("processing script", "script", scriptURL.String())

	jsBytes, err := c.loader.Fetch(ctx, scriptURL.String())
	if err != nil {
		result.err = fmt.Errorf("failed to fetch script: %w", err)
		return result
	}
	jsText := string(jsBytes)
	hostPath := hostPathForURL(scriptURL)

	if c.cfg.SaveJS {
		jsName := path.Base(scriptURL.Path)
		if jsName == "" || jsName == "/" || jsName == "." {
			jsName = "script.js"
		}
		if err := c.save(ctx, hostPath, jsName, jsBytes); err != nil {
			c.logger.Warn("could not save script", "script", scriptURL.String(), "err", err)
		}
	}

	var candidates []string
	if m := reSourceMapInline.FindStringSubmatch(jsText); len(m) > 1 {
		candidates = append(candidates, m[1])
	} else if m := reSourceMapComment.FindStringSubmatch(jsText); len(m) > 1 {
		ref := strings.Trim(strings.TrimSpace(m[1]), "\"'")
		// A page must not make the crawler read local files.
		if mapURL, err := scriptURL.Parse(ref); err == nil && (mapURL.Scheme == "http" || mapURL.Scheme == "https") {
			candidates = append(candidates, mapURL.String())
		}
	}
	candidates = append(candidates, scriptURL.ResolveReference(&url.URL{Path: scriptURL.Path + ".map"}).String())

	for _, candidate := range candidates {
		key := candidate
		if strings.HasPrefix(candidate, "data:") {
			key = scriptURL.String() + "#inline"
		}
		if c.seen.Contains(key) {
			result.mapURL = displayLocation(key)
			result.duplicate = true
			return result
		}
		data, err := c.loader.Fetch(ctx, candidate)
		if err != nil {
			c.logger.Debug("no sourcemap at candidate", "script", scriptURL.String(), "candidate", displayLocation(candidate), "err", err)
			continue
		}
		result.mapURL = displayLocation(key)
		// Two scripts of a page may race on the same map, and a CDN may
		// serve one map under several URLs.
		if found, _ := c.seen.ContainsOrAdd(key, struct{}{}); found {
			result.duplicate = true
			return result
		}
		if found, _ := c.seen.ContainsOrAdd(contentKey(data), struct{}{}); found {
			result.duplicate = true
			return result
		}
		c.extractMap(ctx, &result, data, hostPath, key)
		return result
	}
	return result
}

// extractMap parses one map and extracts it below the output directory of
// the script.
func (c *crawler) extractMap(ctx context.Context, result *scriptResult, data []byte, hostPath, mapKey string) {
	doc, err := sourcemap.Parse(data)
	if err != nil {
		result.err = fmt.Errorf("error processing map %s: %w", result.mapURL, err)
		return
	}
	for _, notice := range doc.Notices {
		c.logger.Warn("sourcemap notice", "map", result.mapURL, "notice", notice)
	}
	if c.cfg.SaveMap {
		mapName := "sourcemap.json"
		if !strings.HasSuffix(mapKey, "#inline") {
			if u, err := url.Parse(mapKey); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
				mapName = path.Base(u.Path)
			}
		}
		if err := c.save(ctx, hostPath, mapName, data); err != nil {
			c.logger.Warn("could not save map", "map", result.mapURL, "err", err)
		}
	}

	result.outDir = filepath.Join(c.cfg.Output, filepath.FromSlash(hostPath))
	rootURL, err := sourcemap.RootURL(result.outDir)
	if err != nil {
		result.err = err
		return
	}
	extractor := sourcemap.NewExtractor(c.store, sourcemap.WithLogger(c.logger))
	result.outcomes = extractor.Extract(ctx, doc, rootURL)
	result.summary = sourcemap.Summarize(result.outcomes)
}

// save writes an auxiliary download next to the recovered sources.
func (c *crawler) save(ctx context.Context, hostPath, name string, data []byte) error {
	rootURL, err := sourcemap.RootURL(filepath.Join(c.cfg.Output, filepath.FromSlash(hostPath)))
	if err != nil {
		return err
	}
	if err := c.store.MkdirAll(ctx, rootURL); err != nil {
		return err
	}
	return c.store.WriteFile(ctx, rootURL+"/"+sourcemap.Resolve("", name, 0), data)
}

// parseScriptsHTML returns the resolved, deduplicated <script src> URLs of a
// page, falling back to a regular expression when the page does not parse.
func parseScriptsHTML(src string, base *url.URL) []*url.URL {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return parseScriptsRegex(src, base)
	}
	var out []*url.URL
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "script") {
			for _, a := range n.Attr {
				if strings.EqualFold(a.Key, "src") && strings.TrimSpace(a.Val) != "" {
					if u, err := url.Parse(strings.TrimSpace(a.Val)); err == nil {
						out = append(out, base.ResolveReference(u))
					}
					break
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return dedupeURLs(out)
}

func parseScriptsRegex(src string, base *url.URL) []*url.URL {
	var out []*url.URL
	for _, m := range reScriptSrc.FindAllStringSubmatch(src, -1) {
		if u, err := url.Parse(m[1]); err == nil {
			out = append(out, base.ResolveReference(u))
		}
	}
	return dedupeURLs(out)
}

// contentKey identifies a map by its bytes.
func contentKey(data []byte) string {
	sum := blake3.Sum256(data)
	return "blake3:" + hex.EncodeToString(sum[:])
}

// displayLocation shortens data URLs for messages.
func displayLocation(location string) string {
	if strings.HasPrefix(location, "data:") {
		return "inline data URL"
	}
	return location
}
