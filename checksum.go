// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oat

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"hash/adler32"
)

// checksumSeed is the Adler-32 of empty input.
const checksumSeed = 1

// keyValueStoreData marks the position of the raw key/value bytes in
// checksumCoverage.
const keyValueStoreData = -1

// checksumCoverage lists, in order, the fields the header checksum is
// computed over.  This order is part of the format version and is
// independent of the physical field order.  Magic, version, the
// checksum itself, the sub-file table offset and the image patch delta
// are not covered.
var checksumCoverage = [...]int{
	offInstructionSet,
	offInstructionSetFeatures,
	offSubFileCount,
	offImageOatChecksum,
	offImageOatDataBegin,
	offKeyValueStoreSize,
	keyValueStoreData, // only when non-empty
	offExecutableOffset,
	offTrampolines + 4*int(InterpreterToInterpreterBridge),
	offTrampolines + 4*int(InterpreterToCompiledCodeBridge),
	offTrampolines + 4*int(JniDlsymLookup),
	offTrampolines + 4*int(QuickGenericJniTrampoline),
	offTrampolines + 4*int(QuickImtConflictTrampoline),
	offTrampolines + 4*int(QuickResolutionTrampoline),
	offTrampolines + 4*int(QuickToInterpreterBridge),
}

// adler32Update continues an Adler-32 computation whose running value
// is sum over p.
func adler32Update(sum uint32, p []byte) uint32 {
	d := adler32.New()
	// hash/adler32's marshaled state is "adl\x01" followed by the
	// big-endian running value.
	var state [8]byte
	copy(state[:4], "adl\x01")
	binary.BigEndian.PutUint32(state[4:], sum)
	if err := d.(encoding.BinaryUnmarshaler).UnmarshalBinary(state[:]); err != nil {
		panic(fmt.Sprintf("invariant broken: adler32 state restore: %s", err))
	}
	_, _ = d.Write(p)
	return d.Sum32()
}

// checksumData returns the covered bytes in coverage order.
func (h *Header) checksumData() []byte {
	data := make([]byte, 0, 4*len(checksumCoverage)+len(h.kv))
	for _, off := range checksumCoverage {
		if off == keyValueStoreData {
			data = append(data, h.kv...)
			continue
		}
		data = append(data, h.buf[off:off+4]...)
	}
	return data
}

// ExtendChecksum folds p into the stored checksum.  Container
// assemblers use it to cover data that follows the header.
func (h *Header) ExtendChecksum(p []byte) {
	h.mustBeValid()
	if len(p) == 0 {
		return
	}
	h.fields.Set(offChecksum, adler32Update(h.fields.Get(offChecksum), p))
}

// UpdateChecksumWithHeaderData folds the covered header fields into the
// stored checksum, continuing from its current value.
func (h *Header) UpdateChecksumWithHeaderData() {
	h.ExtendChecksum(h.checksumData())
}

// ComputeHeaderChecksum returns the checksum of the covered fields
// computed from the seed.  It does not modify the header.
func (h *Header) ComputeHeaderChecksum() uint32 {
	h.mustBeValid()
	return adler32Update(checksumSeed, h.checksumData())
}

// RecomputeChecksum replaces the stored checksum with
// ComputeHeaderChecksum.  It is the last step of assembly, after every
// offset has been assigned.
func (h *Header) RecomputeChecksum() {
	h.fields.Set(offChecksum, h.ComputeHeaderChecksum())
}

// VerifyChecksum reports whether the stored checksum matches the
// covered fields.  Containers whose checksum was extended over trailing
// data will not verify here.
func (h *Header) VerifyChecksum() bool {
	return h.Checksum() == h.ComputeHeaderChecksum()
}
