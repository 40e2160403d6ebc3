// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package bytesutil

import (
	"bytes"
)

// CutCString slices s around the first NUL byte, returning the string
// before the terminator and everything after it.  The found result
// reports whether a terminator appears in s; if it does not, the
// string is unterminated (truncated) and CutCString returns s, nil,
// false.
//
// CutCString never looks past len(s) and returns slices of the
// original slice s, not copies.
func CutCString(s []byte) (str []byte, rest []byte, ok bool) {
	if i := bytes.IndexByte(s, 0); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, nil, false
}

// AppendCString appends str and a NUL terminator to b.
func AppendCString(b []byte, str string) []byte {
	b = append(b, str...)
	return append(b, 0)
}
