// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oat

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/bpowers/oat/internal/ondisk"
)

// PageSize is the alignment unit for offsets that become mapping
// boundaries.  It is a property of the format, not of the host.
const PageSize = 4096

var (
	// Magic identifies an OAT header.
	Magic = [4]byte{'o', 'a', 't', '\n'}
	// Version is the format revision.  Last change: Math.pow() intrinsic.
	Version = [4]byte{'1', '3', '8', 0}
)

// byte offsets of the fixed fields
const (
	offMagic                  = 0
	offVersion                = 4
	offChecksum               = 8
	offInstructionSet         = 12
	offInstructionSetFeatures = 16
	offSubFileCount           = 20
	offSubFileTableOffset     = 24
	offExecutableOffset       = 28
	offTrampolines            = 32 // NumTrampolines consecutive fields
	offImagePatchDelta        = 60
	offImageOatChecksum       = 64
	offImageOatDataBegin      = 68
	offKeyValueStoreSize      = 72

	// FixedSize is the size in bytes of the header without its
	// key/value store.
	FixedSize = 76
)

// Header is an OAT header backed by a byte buffer: FixedSize bytes of
// fields followed by the flattened key/value store.
type Header struct {
	buf    []byte
	fields ondisk.U32View
	kv     []byte

	validated atomic.Bool
}

// Create builds a new header sized exactly for props.  All offsets are
// zero ("not yet assigned") and the checksum holds the Adler-32 seed.
// The returned header has already been validated.
//
// Create is only called by trusted assembly code: an unrecognized
// instruction set panics.
func Create(isa InstructionSet, features Features, subFileCount uint32, props []KeyValue) *Header {
	if !isa.IsValid() {
		panic(fmt.Sprintf("invariant broken: cannot create header for instruction set %s", isa))
	}
	kvSize := flattenedSize(props)
	if uint64(kvSize) > math.MaxUint32-FixedSize {
		panic(fmt.Sprintf("invariant broken: key/value store of %d bytes too large", kvSize))
	}

	var bitmap uint32
	if features != nil {
		bitmap = features.AsBitmap()
	}

	buf := make([]byte, FixedSize, FixedSize+kvSize)
	copy(buf[offMagic:offMagic+4], Magic[:])
	copy(buf[offVersion:offVersion+4], Version[:])
	fields := ondisk.U32View(buf[:FixedSize])
	fields.Set(offChecksum, checksumSeed)
	fields.Set(offInstructionSet, uint32(isa))
	fields.Set(offInstructionSetFeatures, bitmap)
	fields.Set(offSubFileCount, subFileCount)
	fields.Set(offKeyValueStoreSize, uint32(kvSize))

	buf = appendFlattened(buf, props)
	if len(buf) != cap(buf) {
		panic(fmt.Sprintf("invariant broken: flattened header is %d bytes, expected %d", len(buf), cap(buf)))
	}

	h := newHeader(buf)
	if err := h.Validate(); err != nil {
		panic(fmt.Sprintf("invariant broken: freshly created header invalid: %s", err))
	}
	return h
}

// FromBytes wraps buf, which typically points into a mapped container,
// as a Header without copying it.  The caller must run Validate (or
// IsValid) before using any other accessor.
//
// A key/value size larger than the bytes remaining in buf is not an
// error here: the store is clamped to buf and lookups treat it as
// truncated.
func FromBytes(buf []byte) (*Header, error) {
	if len(buf) < FixedSize {
		return nil, fmt.Errorf("%w: %d < %d", ErrShortHeader, len(buf), FixedSize)
	}
	return newHeader(buf), nil
}

func newHeader(buf []byte) *Header {
	fields := ondisk.U32View(buf[:FixedSize:FixedSize])
	end := uint64(FixedSize) + uint64(fields.Get(offKeyValueStoreSize))
	if end > uint64(len(buf)) {
		end = uint64(len(buf))
	}
	return &Header{
		buf:    buf,
		fields: fields,
		// cap-limit the store so nothing can reslice past its end
		kv: buf[FixedSize:end:end],
	}
}

func (h *Header) mustBeValid() {
	if !h.validated.Load() {
		panic("invariant broken: header used before it was validated")
	}
}

// Bytes returns the header's fields and key/value store.  The returned
// slice aliases the header; writes to it bypass every invariant the
// accessors enforce.
func (h *Header) Bytes() []byte {
	return h.buf[:FixedSize+len(h.kv)]
}

// HeaderSize is the size of the fixed fields plus the declared size of
// the key/value store.
func (h *Header) HeaderSize() int {
	return FixedSize + int(h.fields.Get(offKeyValueStoreSize))
}

// Magic returns the header's magic bytes.
func (h *Header) Magic() [4]byte {
	h.mustBeValid()
	return h.rawMagic()
}

// Version returns the header's version bytes.
func (h *Header) Version() [4]byte {
	h.mustBeValid()
	return h.rawVersion()
}

func (h *Header) rawMagic() (m [4]byte) {
	copy(m[:], h.buf[offMagic:offMagic+4])
	return
}

func (h *Header) rawVersion() (v [4]byte) {
	copy(v[:], h.buf[offVersion:offVersion+4])
	return
}

// Checksum returns the stored Adler-32 checksum.
func (h *Header) Checksum() uint32 {
	h.mustBeValid()
	return h.fields.Get(offChecksum)
}

func (h *Header) InstructionSet() InstructionSet {
	h.mustBeValid()
	return InstructionSet(h.fields.Get(offInstructionSet))
}

func (h *Header) InstructionSetFeaturesBitmap() uint32 {
	h.mustBeValid()
	return h.fields.Get(offInstructionSetFeatures)
}

// SubFileCount is the number of compiled sub-files in the container.
func (h *Header) SubFileCount() uint32 {
	h.mustBeValid()
	return h.fields.Get(offSubFileCount)
}

// SubFileTableOffset returns the offset of the sub-file table from the
// start of the header, or 0 if it has not been assigned.
func (h *Header) SubFileTableOffset() uint32 {
	h.mustBeValid()
	off := h.fields.Get(offSubFileTableOffset)
	if off != 0 && off <= FixedSize {
		panic(fmt.Sprintf("invariant broken: sub-file table offset %d inside fixed header", off))
	}
	return off
}

// SetSubFileTableOffset records the sub-file table offset.  It may be
// called once, with an offset past the fixed header.
func (h *Header) SetSubFileTableOffset(off uint32) {
	if off <= FixedSize {
		panic(fmt.Sprintf("invariant broken: sub-file table offset %d must be > %d", off, FixedSize))
	}
	h.mustBeValid()
	if cur := h.fields.Get(offSubFileTableOffset); cur != 0 {
		panic(fmt.Sprintf("invariant broken: sub-file table offset already set to %d (new %d)", cur, off))
	}
	h.fields.Set(offSubFileTableOffset, off)
}

// ExecutableOffset returns the page-aligned offset of the executable
// region, or 0 if it has not been assigned.
func (h *Header) ExecutableOffset() uint32 {
	h.mustBeValid()
	off := h.fields.Get(offExecutableOffset)
	if !isPageAligned(off) {
		panic(fmt.Sprintf("invariant broken: executable offset %d not page-aligned", off))
	}
	if off != 0 && off <= FixedSize {
		panic(fmt.Sprintf("invariant broken: executable offset %d inside fixed header", off))
	}
	return off
}

// SetExecutableOffset records the executable region's offset.  It may
// be called once, with a page-aligned offset past the fixed header that
// does not exceed any trampoline offset already recorded.
func (h *Header) SetExecutableOffset(off uint32) {
	if !isPageAligned(off) {
		panic(fmt.Sprintf("invariant broken: executable offset %d not page-aligned", off))
	}
	if off <= FixedSize {
		panic(fmt.Sprintf("invariant broken: executable offset %d must be > %d", off, FixedSize))
	}
	h.mustBeValid()
	if cur := h.fields.Get(offExecutableOffset); cur != 0 {
		panic(fmt.Sprintf("invariant broken: executable offset already set to %d (new %d)", cur, off))
	}
	if ceil := h.trampolineCeiling(-1); ceil != 0 && off > ceil {
		panic(fmt.Sprintf("invariant broken: executable offset %d beyond trampoline at %d", off, ceil))
	}
	h.fields.Set(offExecutableOffset, off)
}

func isPageAligned(v uint32) bool {
	return v%PageSize == 0
}
