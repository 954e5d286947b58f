// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package tsmap

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/viant/afs"
)

const defaultUserAgent = "tsmap-recover/1.0"

// FetchConfig is everything the fetcher needs to reach a remote document.
type FetchConfig struct {
	Proxy     string // empty uses the environment (HTTP_PROXY, HTTPS_PROXY)
	Insecure  bool   // skip TLS verification, for intercepting proxies
	UserAgent string
	Timeout   time.Duration
}

// FetchError reports a document that could not be retrieved or is not JSON.
type FetchError struct {
	Location string
	Op       string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Location, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Loader retrieves raw documents.
type Loader interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Fetcher loads documents over HTTP(S), from data: URLs, local paths and
// any other location afs understands.
type Fetcher struct {
	client    *http.Client
	userAgent string
	fs        afs.Service
	logger    *slog.Logger
}

// NewFetcher builds a Fetcher with its own HTTP client.
func NewFetcher(cfg FetchConfig, logger *slog.Logger) (*Fetcher, error) {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil || proxyURL.Scheme == "" || proxyURL.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q", cfg.Proxy)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		transport.ForceAttemptHTTP2 = false
		transport.TLSHandshakeTimeout = 30 * time.Second
		logger.Info("using proxy", "proxy", proxyURL.Redacted())
	}
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		logger.Warn("TLS verification disabled")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout, Transport: transport},
		userAgent: userAgent,
		fs:        afs.New(),
		logger:    logger,
	}, nil
}

// Fetch returns the bytes at location.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	switch {
	case strings.HasPrefix(location, "data:"):
		data, err := decodeDataURL(location)
		if err != nil {
			return nil, &FetchError{Location: "data URL", Op: "decode", Err: err}
		}
		return data, nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return f.fetchHTTP(ctx, location)
	default:
		fileURL, err := localURL(location)
		if err != nil {
			return nil, &FetchError{Location: location, Op: "read", Err: err}
		}
		data, err := f.fs.DownloadWithURL(ctx, fileURL)
		if err != nil {
			return nil, &FetchError{Location: location, Op: "read", Err: err}
		}
		return data, nil
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &FetchError{Location: location, Op: "fetch", Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	f.logger.Debug("fetching", "url", location)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Location: location, Op: "fetch", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Location: location, Op: "fetch", Err: fmt.Errorf("HTTP %s", resp.Status)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Location: location, Op: "read body", Err: err}
	}
	return body, nil
}

// decodeDataURL handles data:[<mediatype>][;base64],<data>.
func decodeDataURL(location string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(location, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("missing ',' in data URL")
	}
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// localURL turns a path into a file:// URL; URLs are kept.
func localURL(location string) (string, error) {
	if strings.Contains(location, "://") {
		return location, nil
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", err
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	return "file://" + abs, nil
}
