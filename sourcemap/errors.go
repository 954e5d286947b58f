// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package sourcemap

import "fmt"

// FormatError reports a decoded document that is not a usable source map.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "invalid source map: " + e.Reason
}

// DecodeError reports a payload that is not JSON, even after JSONC
// normalization.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("not a JSON document: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
