// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oat

import (
	"errors"
	"fmt"
)

var (
	ErrShortHeader                = errors.New("oat header too short")
	ErrInvalidMagic               = errors.New("invalid oat magic")
	ErrInvalidVersion             = errors.New("invalid oat version")
	ErrMisalignedExecutableOffset = errors.New("executable offset not page-aligned")
	ErrMisalignedImagePatchDelta  = errors.New("image patch delta not page-aligned")
	ErrInvalidInstructionSet      = errors.New("invalid instruction set")
	ErrInconsistentLayout         = errors.New("inconsistent header layout")
)

// check runs the validity checks in order and returns the first
// failure.
func (h *Header) check() error {
	if m := h.rawMagic(); m != Magic {
		return fmt.Errorf("%w, expected %#x, got %#x", ErrInvalidMagic, Magic[:], m[:])
	}
	if v := h.rawVersion(); v != Version {
		return fmt.Errorf("%w, expected %#x, got %#x", ErrInvalidVersion, Version[:], v[:])
	}
	if off := h.fields.Get(offExecutableOffset); !isPageAligned(off) {
		return fmt.Errorf("%w: %d", ErrMisalignedExecutableOffset, off)
	}
	if delta := h.fields.GetInt32(offImagePatchDelta); !isPageAligned(uint32(delta)) {
		return fmt.Errorf("%w: %d", ErrMisalignedImagePatchDelta, delta)
	}
	if isa := InstructionSet(h.fields.Get(offInstructionSet)); !isa.IsValid() {
		return fmt.Errorf("%w, %d", ErrInvalidInstructionSet, uint32(isa))
	}
	return nil
}

// Validate checks magic, version, executable offset and image patch
// delta alignment, and instruction set, in that order.  The returned
// error wraps one of the Err* sentinels.  Success unlocks the other
// accessors.
func (h *Header) Validate() error {
	if err := h.check(); err != nil {
		h.validated.Store(false)
		return err
	}
	h.validated.Store(true)
	return nil
}

// IsValid is Validate reduced to a boolean.
func (h *Header) IsValid() bool {
	return h.Validate() == nil
}

// ValidationErrorMessage describes the first failed check, or returns
// "" if the header is valid.  It does not unlock the accessors.
func (h *Header) ValidationErrorMessage() string {
	if err := h.check(); err != nil {
		return err.Error()
	}
	return ""
}

// CheckLayout reports whether the recorded offsets are ordered the way
// the setters require.  Unlike the accessors it returns an error rather
// than panicking, so headers read from storage should pass it before
// their offsets are used.
func (h *Header) CheckLayout() error {
	h.mustBeValid()
	if off := h.fields.Get(offSubFileTableOffset); off != 0 && off <= FixedSize {
		return fmt.Errorf("%w: sub-file table offset %d inside fixed header", ErrInconsistentLayout, off)
	}
	floor := h.fields.Get(offExecutableOffset)
	below := "executable offset"
	for _, t := range Trampolines() {
		off := h.fields.Get(trampolineField(t))
		if off == 0 {
			continue
		}
		if off < floor {
			return fmt.Errorf("%w: %s offset %d below %s %d", ErrInconsistentLayout, t, off, below, floor)
		}
		floor, below = off, t.String()
	}
	return nil
}
