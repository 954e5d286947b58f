// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package sourcemap

import (
	"fmt"
	"strings"
)

// Scheme prefixes that carry a namespace segment before the real path,
// e.g. webpack://my-app/src/x.js.
var namespacedSchemes = []string{"webpack://"}

// Scheme prefixes followed directly by a path.
var plainSchemes = []string{"file://", "vscode://"}

// Resolve turns a raw entry of "sources" into a slash-separated relative
// path that cannot leave the directory it is joined to. index is the
// position of the entry in "sources" and names the placeholder used when
// nothing is left of the path.
func Resolve(sourceRoot, raw string, index int) string {
	p := stripScheme(raw)
	p = strings.ReplaceAll(p, "\\", "/")
	p = joinRoot(strings.ReplaceAll(sourceRoot, "\\", "/"), p)
	p = strings.TrimLeft(p, "/")
	p = confine(p)
	if p == "" {
		return fmt.Sprintf("unnamed_source_%d", index)
	}
	return p
}

// stripScheme removes a known URL scheme. For namespaced schemes the segment
// up to the next '/' goes too; without any '/' the remainder is only a
// namespace and nothing is left.
func stripScheme(p string) string {
	for _, scheme := range namespacedSchemes {
		if rest, ok := strings.CutPrefix(p, scheme); ok {
			if i := strings.IndexByte(rest, '/'); i >= 0 {
				return rest[i+1:]
			}
			return ""
		}
	}
	for _, scheme := range plainSchemes {
		if rest, ok := strings.CutPrefix(p, scheme); ok {
			return rest
		}
	}
	return p
}

func joinRoot(root, p string) string {
	if root == "" || strings.HasPrefix(p, root) {
		return p
	}
	return strings.TrimRight(root, "/") + "/" + strings.TrimLeft(p, "/")
}

// confine resolves "." and ".." segments against an empty root. A ".." that
// would climb above the root is dropped, as are empty segments and a leading
// drive letter.
func confine(p string) string {
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		switch {
		case seg == "" || seg == ".":
		case seg == "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		case i == 0 && isDriveLetter(seg):
		default:
			out = append(out, seg)
		}
	}
	return strings.Join(out, "/")
}

func isDriveLetter(seg string) bool {
	if len(seg) != 2 || seg[1] != ':' {
		return false
	}
	c := seg[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
