// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package tsmap

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitExtractFailed = 1 // sources failed and none was written
	ExitFatal         = 2 // usage, fetch or format error
)

// Env is the process environment a command runs in.
type Env struct {
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	Getenv    func(string) string
	NewLoader func(FetchConfig, *slog.Logger) (Loader, error)
}

// DefaultEnv wires the real process streams and fetcher, after loading the
// .env file of the working directory.
func DefaultEnv() (*Env, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	return &Env{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
		NewLoader: func(cfg FetchConfig, logger *slog.Logger) (Loader, error) {
			return NewFetcher(cfg, logger)
		},
	}, nil
}

// withDefaultEnv runs command in the process environment.
func withDefaultEnv(command func(env *Env) int) int {
	env, err := DefaultEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitFatal
	}
	return command(env)
}

// cleanOutput empties the directory at rootURL after confirmation. It
// returns false when the user declines. Missing or empty directories need no
// confirmation.
func cleanOutput(ctx context.Context, fs afs.Service, rootURL string, assumeYes bool, in io.Reader, printer *Printer) (bool, error) {
	exists, err := fs.Exists(ctx, rootURL)
	if err != nil || !exists {
		return err == nil, err
	}
	objects, err := fs.List(ctx, rootURL)
	if err != nil {
		return false, err
	}
	var entries []string
	for i, object := range objects {
		// afs lists the directory itself first.
		if i == 0 && object.IsDir() && (strings.TrimRight(object.URL(), "/") == rootURL || object.Name() == path.Base(rootURL)) {
			continue
		}
		entries = append(entries, object.URL())
	}
	if len(entries) == 0 {
		return true, nil
	}
	dir := displayRoot(rootURL)
	if !assumeYes {
		printer.Line("\nWarning: The output directory '%s' is not empty.", dir)
		printer.Line("Do you want to continue and delete existing contents? (y/N): ")
		answer, _ := bufio.NewReader(in).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
		default:
			return false, nil
		}
	}
	printer.Line("Cleaning directory '%s'...", dir)
	for _, entry := range entries {
		if err := fs.Delete(ctx, entry); err != nil {
			return false, fmt.Errorf("cleaning %s: %w", dir, err)
		}
	}
	return true, nil
}

// displayRoot shows file:// roots as local paths.
func displayRoot(rootURL string) string {
	if local, ok := strings.CutPrefix(rootURL, "file://"); ok {
		if len(local) > 2 && local[0] == '/' && local[2] == ':' {
			local = local[1:] // /C:/out
		}
		return filepath.FromSlash(local)
	}
	return rootURL
}

// hostPathForURL is the directory, relative to the crawl output, receiving
// what was recovered for scriptURL: <host>/<script directory>.
func hostPathForURL(scriptURL *url.URL) string {
	dir := strings.Trim(path.Dir(path.Clean("/"+scriptURL.Path)), "/")
	host := strings.Trim(strings.ReplaceAll(scriptURL.Hostname(), "..", ""), "/")
	if host == "" {
		host = "unknown_host"
	}
	if dir == "" {
		return host
	}
	return host + "/" + dir
}

// dedupeURLs keeps the first occurrence of every http(s) URL.
func dedupeURLs(in []*url.URL) []*url.URL {
	seen := make(map[string]bool)
	var out []*url.URL
	for _, u := range in {
		if u == nil || (u.Scheme != "http" && u.Scheme != "https") || seen[u.String()] {
			continue
		}
		seen[u.String()] = true
		out = append(out, u)
	}
	return out
}
