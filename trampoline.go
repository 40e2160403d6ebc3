// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oat

import (
	"fmt"
)

// Trampoline names one of the fixed code sequences whose offset the
// header records.  Trampolines are declared in chain order: the
// container lays their code out sequentially, so non-zero offsets never
// decrease along the chain.
type Trampoline int

const (
	InterpreterToInterpreterBridge Trampoline = iota
	InterpreterToCompiledCodeBridge
	JniDlsymLookup
	QuickGenericJniTrampoline
	QuickImtConflictTrampoline
	QuickResolutionTrampoline
	QuickToInterpreterBridge

	NumTrampolines = int(QuickToInterpreterBridge) + 1
)

var trampolineNames = [NumTrampolines]string{
	"interpreter-to-interpreter-bridge",
	"interpreter-to-compiled-code-bridge",
	"jni-dlsym-lookup",
	"quick-generic-jni-trampoline",
	"quick-imt-conflict-trampoline",
	"quick-resolution-trampoline",
	"quick-to-interpreter-bridge",
}

func (t Trampoline) valid() bool {
	return t >= 0 && int(t) < NumTrampolines
}

func (t Trampoline) String() string {
	if !t.valid() {
		return fmt.Sprintf("Trampoline(%d)", int(t))
	}
	return trampolineNames[t]
}

// ParseTrampoline returns the trampoline whose String form is s.
func ParseTrampoline(s string) (Trampoline, error) {
	for i, name := range trampolineNames {
		if name == s {
			return Trampoline(i), nil
		}
	}
	return -1, fmt.Errorf("unknown trampoline %q", s)
}

// Trampolines returns every trampoline in chain order.
func Trampolines() []Trampoline {
	ts := make([]Trampoline, NumTrampolines)
	for i := range ts {
		ts[i] = Trampoline(i)
	}
	return ts
}

func trampolineField(t Trampoline) int {
	if !t.valid() {
		panic(fmt.Sprintf("invariant broken: unknown trampoline %d", int(t)))
	}
	return offTrampolines + 4*int(t)
}

// trampolineFloor is the smallest offset t may hold if non-zero: the
// executable offset or the largest non-zero offset earlier in the chain.
func (h *Header) trampolineFloor(t Trampoline) uint32 {
	floor := h.fields.Get(offExecutableOffset)
	for prev := Trampoline(0); prev < t; prev++ {
		if off := h.fields.Get(trampolineField(prev)); off > floor {
			floor = off
		}
	}
	return floor
}

// trampolineCeiling is the smallest non-zero offset later in the chain
// than index after, or 0 if there is none.
func (h *Header) trampolineCeiling(after Trampoline) uint32 {
	var ceil uint32
	for next := after + 1; int(next) < NumTrampolines; next++ {
		if off := h.fields.Get(trampolineField(next)); off != 0 && (ceil == 0 || off < ceil) {
			ceil = off
		}
	}
	return ceil
}

// TrampolineOffset returns the offset of t's code from the start of the
// header, or 0 if the container does not carry it.
func (h *Header) TrampolineOffset(t Trampoline) uint32 {
	h.mustBeValid()
	off := h.fields.Get(trampolineField(t))
	if off != 0 {
		if floor := h.trampolineFloor(t); off < floor {
			panic(fmt.Sprintf("invariant broken: %s offset %d below %d", t, off, floor))
		}
	}
	return off
}

// SetTrampolineOffset records t's offset.  Each trampoline may be set
// once.  A non-zero offset must not be below the executable offset or
// any earlier trampoline, nor above any later trampoline already set;
// violations indicate a broken assembler and panic.
func (h *Header) SetTrampolineOffset(t Trampoline, off uint32) {
	field := trampolineField(t)
	if off != 0 {
		if floor := h.trampolineFloor(t); off < floor {
			panic(fmt.Sprintf("invariant broken: %s offset %d below %d", t, off, floor))
		}
		if ceil := h.trampolineCeiling(t); ceil != 0 && off > ceil {
			panic(fmt.Sprintf("invariant broken: %s offset %d above later trampoline at %d", t, off, ceil))
		}
	}
	h.mustBeValid()
	if cur := h.fields.Get(field); cur != 0 {
		panic(fmt.Sprintf("invariant broken: %s offset already set to %d (new %d)", t, cur, off))
	}
	h.fields.Set(field, off)
}

func (h *Header) InterpreterToInterpreterBridgeOffset() uint32 {
	return h.TrampolineOffset(InterpreterToInterpreterBridge)
}

func (h *Header) SetInterpreterToInterpreterBridgeOffset(off uint32) {
	h.SetTrampolineOffset(InterpreterToInterpreterBridge, off)
}

func (h *Header) InterpreterToCompiledCodeBridgeOffset() uint32 {
	return h.TrampolineOffset(InterpreterToCompiledCodeBridge)
}

func (h *Header) SetInterpreterToCompiledCodeBridgeOffset(off uint32) {
	h.SetTrampolineOffset(InterpreterToCompiledCodeBridge, off)
}

func (h *Header) JniDlsymLookupOffset() uint32 {
	return h.TrampolineOffset(JniDlsymLookup)
}

func (h *Header) SetJniDlsymLookupOffset(off uint32) {
	h.SetTrampolineOffset(JniDlsymLookup, off)
}

func (h *Header) QuickGenericJniTrampolineOffset() uint32 {
	return h.TrampolineOffset(QuickGenericJniTrampoline)
}

func (h *Header) SetQuickGenericJniTrampolineOffset(off uint32) {
	h.SetTrampolineOffset(QuickGenericJniTrampoline, off)
}

func (h *Header) QuickImtConflictTrampolineOffset() uint32 {
	return h.TrampolineOffset(QuickImtConflictTrampoline)
}

func (h *Header) SetQuickImtConflictTrampolineOffset(off uint32) {
	h.SetTrampolineOffset(QuickImtConflictTrampoline, off)
}

func (h *Header) QuickResolutionTrampolineOffset() uint32 {
	return h.TrampolineOffset(QuickResolutionTrampoline)
}

func (h *Header) SetQuickResolutionTrampolineOffset(off uint32) {
	h.SetTrampolineOffset(QuickResolutionTrampoline, off)
}

func (h *Header) QuickToInterpreterBridgeOffset() uint32 {
	return h.TrampolineOffset(QuickToInterpreterBridge)
}

func (h *Header) SetQuickToInterpreterBridgeOffset(off uint32) {
	h.SetTrampolineOffset(QuickToInterpreterBridge, off)
}
