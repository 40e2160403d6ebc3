// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oat

import (
	"fmt"
)

// ImagePatchDelta is how far the associated boot image has been moved
// from the address it was built for.
func (h *Header) ImagePatchDelta() int32 {
	h.mustBeValid()
	return h.fields.GetInt32(offImagePatchDelta)
}

// SetImagePatchDelta overwrites the patch delta, which must be
// page-aligned.
func (h *Header) SetImagePatchDelta(delta int32) {
	h.mustBeValid()
	if !isPageAligned(uint32(delta)) {
		panic(fmt.Sprintf("invariant broken: image patch delta %d not page-aligned", delta))
	}
	h.fields.SetInt32(offImagePatchDelta, delta)
}

// ImageFileLocationOatChecksum is the checksum of the container the
// associated boot image was compiled against.
func (h *Header) ImageFileLocationOatChecksum() uint32 {
	h.mustBeValid()
	return h.fields.Get(offImageOatChecksum)
}

// SetImageFileLocationOatChecksum may be called any number of times as
// the dependency is re-resolved.
func (h *Header) SetImageFileLocationOatChecksum(checksum uint32) {
	h.mustBeValid()
	h.fields.Set(offImageOatChecksum, checksum)
}

// ImageFileLocationOatDataBegin is the load address of the container
// the associated boot image was compiled against.
func (h *Header) ImageFileLocationOatDataBegin() uint32 {
	h.mustBeValid()
	return h.fields.Get(offImageOatDataBegin)
}

// SetImageFileLocationOatDataBegin records a page-aligned load address.
// It may be called any number of times.
func (h *Header) SetImageFileLocationOatDataBegin(begin uint32) {
	h.mustBeValid()
	if !isPageAligned(begin) {
		panic(fmt.Sprintf("invariant broken: image oat data begin %#x not page-aligned", begin))
	}
	h.fields.Set(offImageOatDataBegin, begin)
}

// Relocate adjusts for the boot image being mapped delta bytes away
// from where it was previously expected: delta is added to the image
// patch delta and, if set, to the image oat data begin.  Both wrap on
// overflow, so relocating by delta and then -delta is exact, except
// when the first step moves the data begin to 0: it then reads as
// unset and the second step leaves it there.
//
// The image oat data begin is covered by the checksum and Relocate
// leaves the stored checksum alone; callers that need a verifiable
// header call RecomputeChecksum afterwards.
func (h *Header) Relocate(delta int32) {
	h.mustBeValid()
	if !isPageAligned(uint32(delta)) {
		panic(fmt.Sprintf("invariant broken: relocation delta %d not page-aligned", delta))
	}
	h.fields.SetInt32(offImagePatchDelta, h.fields.GetInt32(offImagePatchDelta)+delta)
	if begin := h.fields.Get(offImageOatDataBegin); begin != 0 {
		h.fields.Set(offImageOatDataBegin, begin+uint32(delta))
	}
}
