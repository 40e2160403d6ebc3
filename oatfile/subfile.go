// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oatfile

import (
	"encoding/binary"
	"fmt"

	"github.com/dgryski/go-farm"

	"github.com/bpowers/oat/internal/ondisk"
)

const (
	tableAlign = 4
	// fingerprint + data offset + data size
	entryTrailerSize = 3 * 4
)

// SubFile is one compiled input carried by a container.  Location is
// the path the input was compiled from.
type SubFile struct {
	Location string
	Data     []byte
}

// Fingerprint is the checksum recorded for the sub-file's data.
func (sf SubFile) Fingerprint() uint32 {
	return farm.Fingerprint32(sf.Data)
}

type tableEntry struct {
	location    []byte
	fingerprint uint32
	offset      uint32
	size        uint32
}

func align(n, to uint64) uint64 {
	return (n + to - 1) / to * to
}

func entrySize(locationLen int) uint64 {
	return 4 + align(uint64(locationLen), tableAlign) + entryTrailerSize
}

func tableSize(subFiles []SubFile) uint64 {
	var size uint64
	for _, sf := range subFiles {
		size += entrySize(len(sf.Location))
	}
	return size
}

// appendEntry encodes e onto b, which must start 4-byte aligned in the
// file.
func appendEntry(b []byte, e tableEntry) []byte {
	b = ondisk.AppendUint32(b, uint32(len(e.location)))
	b = append(b, e.location...)
	for len(b)%tableAlign != 0 {
		b = append(b, 0)
	}
	b = ondisk.AppendUint32(b, e.fingerprint)
	b = ondisk.AppendUint32(b, e.offset)
	b = ondisk.AppendUint32(b, e.size)
	return b
}

// decodeEntry splits one entry off the front of table.  The returned
// location aliases table.
func decodeEntry(table []byte) (e tableEntry, rest []byte, err error) {
	if len(table) < 4 {
		return tableEntry{}, nil, fmt.Errorf("%w: sub-file table truncated", ErrCorrupt)
	}
	locLen := uint64(binary.LittleEndian.Uint32(table[:4]))
	end := entrySize(int(locLen))
	if locLen > uint64(len(table)) || end > uint64(len(table)) {
		return tableEntry{}, nil, fmt.Errorf("%w: sub-file location of %d bytes overruns table", ErrCorrupt, locLen)
	}
	trailer := ondisk.U32View(table[end-entryTrailerSize : end])
	e = tableEntry{
		location:    table[4 : 4+locLen],
		fingerprint: trailer.Get(0),
		offset:      trailer.Get(4),
		size:        trailer.Get(8),
	}
	return e, table[end:], nil
}
