// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package tsmap

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetcher_HTTP(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/app.js.map":
			userAgent = r.Header.Get("User-Agent")
			_, _ = w.Write([]byte(`{"version":3,"sources":[]}`))
		case "/moved":
			http.Redirect(w, r, "/app.js.map", http.StatusFound)
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher, err := NewFetcher(FetchConfig{UserAgent: "test-agent", Timeout: 5 * time.Second}, discardLogger())
	require.NoError(t, err)

	testCases := []struct {
		description string
		path        string
		expect      string
		expectErr   bool
	}{
		{description: "ok", path: "/app.js.map", expect: `{"version":3,"sources":[]}`},
		{description: "redirect followed", path: "/moved", expect: `{"version":3,"sources":[]}`},
		{description: "not found", path: "/missing.map", expectErr: true},
		{description: "server error", path: "/boom", expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			data, err := fetcher.Fetch(context.Background(), server.URL+testCase.path)
			if testCase.expectErr {
				var fetchErr *FetchError
				require.True(t, errors.As(err, &fetchErr), "got %v", err)
				assert.Equal(t, server.URL+testCase.path, fetchErr.Location)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, string(data))
		})
	}
	assert.Equal(t, "test-agent", userAgent)
}

func TestFetcher_Local(t *testing.T) {
	dir := t.TempDir()
	location := filepath.Join(dir, "app.js.map")
	require.NoError(t, os.WriteFile(location, []byte(`{"sources":["a.js"]}`), 0o644))

	fetcher, err := NewFetcher(FetchConfig{}, discardLogger())
	require.NoError(t, err)

	data, err := fetcher.Fetch(context.Background(), location)
	require.NoError(t, err)
	assert.Equal(t, `{"sources":["a.js"]}`, string(data))

	_, err = fetcher.Fetch(context.Background(), filepath.Join(dir, "missing.map"))
	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestFetcher_DataURL(t *testing.T) {
	fetcher, err := NewFetcher(FetchConfig{}, discardLogger())
	require.NoError(t, err)

	payload := `{"sources":["a.js"],"sourcesContent":["x"]}`
	data, err := fetcher.Fetch(context.Background(), "data:application/json;charset=utf-8;base64,"+base64.StdEncoding.EncodeToString([]byte(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	data, err = fetcher.Fetch(context.Background(), "data:application/json,%7B%22sources%22%3A%5B%5D%7D")
	require.NoError(t, err)
	assert.Equal(t, `{"sources":[]}`, string(data))

	_, err = fetcher.Fetch(context.Background(), "data:application/json;base64")
	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestNewFetcher_InvalidProxy(t *testing.T) {
	_, err := NewFetcher(FetchConfig{Proxy: "not a url"}, discardLogger())
	assert.Error(t, err)

	_, err = NewFetcher(FetchConfig{Proxy: "http://127.0.0.1:8080", Insecure: true}, discardLogger())
	assert.NoError(t, err)
}
