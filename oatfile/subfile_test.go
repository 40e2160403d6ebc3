// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oatfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableEntry(t *testing.T) {
	for _, loc := range []string{"a", "ab", "abc", "abcd", "/system/framework/core.jar"} {
		e := tableEntry{
			location:    []byte(loc),
			fingerprint: 0xdeadbeef,
			offset:      0x1000,
			size:        17,
		}
		b := appendEntry(nil, e)
		require.Len(t, b, int(entrySize(len(loc))), loc)
		require.Zero(t, len(b)%tableAlign)

		b = append(b, 0xff)
		decoded, rest, err := decodeEntry(b)
		require.NoError(t, err)
		require.Equal(t, e, decoded)
		require.Equal(t, []byte{0xff}, rest)
	}
}

func TestDecodeEntry_Truncated(t *testing.T) {
	b := appendEntry(nil, tableEntry{location: []byte("core.jar")})
	for n := 0; n < len(b); n++ {
		_, _, err := decodeEntry(b[:n])
		require.ErrorIs(t, err, ErrCorrupt, "len %d", n)
	}
}

func TestAlign(t *testing.T) {
	require.Equal(t, uint64(0), align(0, 4))
	require.Equal(t, uint64(4), align(1, 4))
	require.Equal(t, uint64(4), align(4, 4))
	require.Equal(t, uint64(8192), align(4097, 4096))
}
