// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ondisk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestU32View(t *testing.T) {
	const fieldCount = 12
	buf := make([]byte, fieldCount*4)
	v := U32View(buf)

	for i := 0; i < fieldCount; i++ {
		v.Set(i*4, uint32(i*2))
	}
	for i := 0; i < fieldCount; i++ {
		require.Equal(t, uint32(i*2), v.Get(i*4))
	}

	// little-endian on the wire, independent of the host
	v.Set(4, 0x11223344)
	require.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, buf[4:8])

	v.SetInt32(8, -4096)
	require.Equal(t, int32(-4096), v.GetInt32(8))
	require.Equal(t, uint32(0xfffff000), v.Get(8))
}

func TestU32View_OutOfRange(t *testing.T) {
	v := U32View(make([]byte, 8))

	require.Panics(t, func() { v.Get(8) })
	require.Panics(t, func() { v.Get(-4) })
	require.Panics(t, func() { v.Set(2, 1) })
	require.Panics(t, func() { v.Set(6, 1) })
	require.NotPanics(t, func() { v.Set(4, 1) })
}

func TestAppendUint32(t *testing.T) {
	b := AppendUint32([]byte{0xff}, 0x01020304)
	require.Equal(t, []byte{0xff, 0x04, 0x03, 0x02, 0x01}, b)
}
