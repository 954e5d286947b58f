// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package sourcemap

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/jsonc"
)

var (
	utf8BOM = []byte("\xef\xbb\xbf")
	// Producers may prepend this line to keep the map from being evaluated
	// as script.
	xssiGuard = []byte(")]}'")
)

// Decode turns raw bytes into a generic JSON value. Strict JSON is tried
// first; on failure the payload is read once more as JSONC, since some
// toolchains leave comments or trailing commas in generated maps.
func Decode(raw []byte) (any, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if trimmed := bytes.TrimLeft(raw, " \t\r\n"); bytes.HasPrefix(trimmed, xssiGuard) {
		raw = trimmed[len(xssiGuard):]
		if i := bytes.IndexByte(raw, '\n'); i >= 0 {
			raw = raw[i+1:]
		} else {
			raw = nil
		}
	}

	var value any
	err := json.Unmarshal(raw, &value)
	if err == nil {
		return value, nil
	}
	if lenientErr := json.Unmarshal(jsonc.ToJSON(raw), &value); lenientErr == nil {
		return value, nil
	}
	return nil, &DecodeError{Err: err}
}

// Parse decodes raw and validates the result.
func Parse(raw []byte) (*Document, error) {
	value, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return New(value)
}
