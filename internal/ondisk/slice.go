// Copyright 2021 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package ondisk provides typed little-endian views over byte buffers
// that are, or will become, part of a file.
package ondisk

import (
	"encoding/binary"
	"fmt"
)

// U32View is a view into a byte buffer as a sequence of little-endian
// 32-bit fields addressed by byte offset.  Offsets must be 4-byte
// aligned and fall inside the buffer; anything else is a programming
// error in the caller's layout and panics.
type U32View []byte

func (v U32View) check(off int) {
	if off < 0 || off%4 != 0 || off+4 > len(v) {
		panic(fmt.Sprintf("invariant broken: field offset %d out of range (len %d)", off, len(v)))
	}
}

// Get returns the uint32 stored at byte offset off.
func (v U32View) Get(off int) uint32 {
	v.check(off)
	return binary.LittleEndian.Uint32(v[off : off+4])
}

// Set stores value at byte offset off.
func (v U32View) Set(off int, value uint32) {
	v.check(off)
	binary.LittleEndian.PutUint32(v[off:off+4], value)
}

// GetInt32 returns the int32 stored at byte offset off.
func (v U32View) GetInt32(off int) int32 {
	return int32(v.Get(off))
}

// SetInt32 stores value at byte offset off in two's complement.
func (v U32View) SetInt32(off int, value int32) {
	v.Set(off, uint32(value))
}

// AppendUint32 appends value to b in little-endian order.
func AppendUint32(b []byte, value uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, value)
}
