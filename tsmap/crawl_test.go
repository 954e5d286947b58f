// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package tsmap

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCrawl(t *testing.T) {
	inlineMap := base64.StdEncoding.EncodeToString([]byte(`{"version":3,"sources":["webpack://app/src/inline.ts"],"sourcesContent":["inline"]}`))
	var appMapHits atomic.Int32
	pages := map[string]string{
		"/": `<html><head>
			<script src="/static/js/app.js"></script>
			<script src="/static/js/vendor.js"></script>
			<script src="/static/js/app.js"></script>
			<script src="/inline.js"></script>
			<script src="/plain.js"></script>
			<script src="/nomap.js"></script>
			<script src="/mirror.js"></script>
			<script src="file:///etc/passwd"></script>
			<script>console.log("inline script without src")</script>
		</head></html>`,
		"/static/js/app.js":     "console.log(1);\n//# sourceMappingURL=app.js.map\n",
		"/static/js/vendor.js":  "console.log(2);\n//# sourceMappingURL=/static/js/app.js.map\n",
		"/static/js/app.js.map": `{"version":3,"sources":["webpack://app/src/main.ts","../../escape.ts"],"sourcesContent":["main","escape"]}`,
		"/inline.js":            "x();\n//# sourceMappingURL=data:application/json;charset=utf-8;base64," + inlineMap + "\n",
		"/plain.js":             "y();\n",
		"/plain.js.map":         `{"sources":["lib/plain.ts"],"sourcesContent":["plain"]}`,
		"/nomap.js":             "z();\n",
		"/mirror.js":            "w();\n//# sourceMappingURL=/cdn/app.js.map\n",
	}
	pages["/cdn/app.js.map"] = pages["/static/js/app.js.map"]
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/static/js/app.js.map" {
			appMapHits.Add(1)
		}
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	out := filepath.Join(t.TempDir(), "recovered")
	fetcher, err := NewFetcher(FetchConfig{Timeout: 5 * time.Second}, discardLogger())
	require.NoError(t, err)
	io := newTestIO(fetcher, "")

	code := runCrawl(context.Background(), []string{"-o", out, "--concurrency", "1", "--save-map", "--save-js", server.URL + "/"}, io.env)

	require.Equal(t, ExitOK, code, io.stdout.String()+io.stderr.String())
	serverURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	host := serverURL.Hostname()

	expectFiles := map[string]string{
		filepath.Join(host, "static", "js", "src", "main.ts"): "main",
		filepath.Join(host, "static", "js", "escape.ts"):      "escape",
		filepath.Join(host, "static", "js", "app.js.map"):     pages["/static/js/app.js.map"],
		filepath.Join(host, "src", "inline.ts"):               "inline",
		filepath.Join(host, "lib", "plain.ts"):                "plain",
		filepath.Join(host, "plain.js.map"):                   pages["/plain.js.map"],
		filepath.Join(host, "static", "js", "app.js"):         pages["/static/js/app.js"],
	}
	for rel, content := range expectFiles {
		data, err := os.ReadFile(filepath.Join(out, rel))
		if assert.NoError(t, err, rel) {
			assert.Equal(t, content, string(data), rel)
		}
	}
	assert.FileExists(t, filepath.Join(out, host, "nomap.js"))

	output := io.stdout.String()
	assert.Contains(t, output, "Already recovered "+server.URL+"/static/js/app.js.map")
	assert.Contains(t, output, "No sourcemap for "+server.URL+"/nomap.js")
	assert.Contains(t, output, "Already recovered "+server.URL+"/cdn/app.js.map")
	assert.Contains(t, output, "Done. Scripts processed: 6. Maps recovered: 3")
	assert.Contains(t, output, "Summary: 4 written, 0 skipped, 0 failed")
	assert.NotContains(t, output, "passwd")
	assert.Equal(t, int32(1), appMapHits.Load())
}

func TestRunCrawl_RootFailure(t *testing.T) {
	io := newTestIO(stubLoader{}, "")
	code := runCrawl(context.Background(), []string{"-o", t.TempDir(), "https://example.com/"}, io.env)
	assert.Equal(t, ExitFatal, code)

	io = newTestIO(stubLoader{}, "")
	assert.Equal(t, ExitFatal, runCrawl(context.Background(), nil, io.env))
	assert.Contains(t, io.stderr.String(), "Missing -url")

	io = newTestIO(stubLoader{}, "")
	assert.Equal(t, ExitFatal, runCrawl(context.Background(), []string{"not-a-url"}, io.env))
}

func TestParseScriptsHTML(t *testing.T) {
	base, err := url.Parse("https://example.com/app/index.html")
	require.NoError(t, err)

	scripts := parseScriptsHTML(`<script src="main.js"></script><SCRIPT SRC="/abs.js"></SCRIPT><script src="https://cdn.example.org/lib.js"></script><script src="main.js"></script><script src="javascript:alert(1)"></script>`, base)

	var actual []string
	for _, s := range scripts {
		actual = append(actual, s.String())
	}
	assert.Equal(t, []string{
		"https://example.com/app/main.js",
		"https://example.com/abs.js",
		"https://cdn.example.org/lib.js",
	}, actual)

	regexScripts := parseScriptsRegex(`<script type="module" src='/m.js'></script>`, base)
	require.Len(t, regexScripts, 1)
	assert.Equal(t, "https://example.com/m.js", regexScripts[0].String())
}

func TestHostPathForURL(t *testing.T) {
	testCases := map[string]string{
		"https://example.com/app.js":              "example.com",
		"https://example.com/static/js/app.js":    "example.com/static/js",
		"https://example.com:8443/a/b/c.js?v=1":   "example.com/a/b",
		"https://example.com/static/../../x/y.js": "example.com/x",
		"https://example.com/":                    "example.com",
	}
	for raw, expect := range testCases {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, expect, hostPathForURL(u), raw)
	}
}
