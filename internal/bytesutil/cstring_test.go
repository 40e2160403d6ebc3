// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package bytesutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCutCString(t *testing.T) {
	for _, testcase := range []struct {
		input string
		str   string
		rest  string
		ok    bool
	}{
		{"", "", "", false},
		{"abc", "abc", "", false},
		{"abc\x00", "abc", "", true},
		{"\x00", "", "", true},
		{"key\x00value\x00", "key", "value\x00", true},
		{"\x00\x00", "", "\x00", true},
	} {
		input := []byte(testcase.input)
		var str, rest []byte
		var ok bool
		allocs := testing.AllocsPerRun(1, func() {
			str, rest, ok = CutCString(input)
		})
		require.Zero(t, allocs)
		require.Equal(t, testcase.ok, ok, testcase.input)
		require.Equal(t, testcase.str, string(str), testcase.input)
		require.Equal(t, testcase.rest, string(rest), testcase.input)
	}
}

func TestAppendCString(t *testing.T) {
	b := AppendCString(nil, "pic")
	b = AppendCString(b, "")
	require.Equal(t, []byte("pic\x00\x00"), b)
}
