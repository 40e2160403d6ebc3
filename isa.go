// Copyright 2023 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package oat

import (
	"fmt"
	"runtime"
	"strings"
)

// InstructionSet identifies the target architecture of the compiled
// code in a container.  The numeric values are part of the file format.
type InstructionSet uint32

const (
	InstructionSetNone InstructionSet = iota
	InstructionSetArm
	InstructionSetArm64
	InstructionSetThumb2
	InstructionSetX86
	InstructionSetX86_64
	InstructionSetMips
	InstructionSetMips64
)

// IsValid reports whether isa is a recognized architecture.  None is
// not.
func (isa InstructionSet) IsValid() bool {
	switch isa {
	case InstructionSetArm, InstructionSetArm64, InstructionSetThumb2,
		InstructionSetX86, InstructionSetX86_64,
		InstructionSetMips, InstructionSetMips64:
		return true
	default:
		return false
	}
}

func (isa InstructionSet) String() string {
	switch isa {
	case InstructionSetNone:
		return "none"
	case InstructionSetArm:
		return "arm"
	case InstructionSetArm64:
		return "arm64"
	case InstructionSetThumb2:
		return "thumb2"
	case InstructionSetX86:
		return "x86"
	case InstructionSetX86_64:
		return "x86_64"
	case InstructionSetMips:
		return "mips"
	case InstructionSetMips64:
		return "mips64"
	default:
		return fmt.Sprintf("InstructionSet(%d)", uint32(isa))
	}
}

// ParseInstructionSet parses an architecture name.  Both the names
// produced by String and GOARCH spellings are accepted.
func ParseInstructionSet(s string) (InstructionSet, error) {
	switch strings.ToLower(s) {
	case "arm":
		return InstructionSetArm, nil
	case "arm64", "aarch64":
		return InstructionSetArm64, nil
	case "thumb2":
		return InstructionSetThumb2, nil
	case "x86", "386", "i386":
		return InstructionSetX86, nil
	case "x86_64", "x86-64", "amd64":
		return InstructionSetX86_64, nil
	case "mips", "mipsle":
		return InstructionSetMips, nil
	case "mips64", "mips64le":
		return InstructionSetMips64, nil
	default:
		return InstructionSetNone, fmt.Errorf("unsupported instruction set: %q (supported: arm, arm64, thumb2, x86, x86_64, mips, mips64)", s)
	}
}

// RuntimeInstructionSet returns the instruction set of the running
// process, or InstructionSetNone if it has no OAT equivalent.
func RuntimeInstructionSet() InstructionSet {
	isa, err := ParseInstructionSet(runtime.GOARCH)
	if err != nil {
		return InstructionSetNone
	}
	return isa
}

// Features describes the capabilities of a target beyond its
// instruction set.  Only the bitmap form is stored in the header.
type Features interface {
	AsBitmap() uint32
}

// FeatureBitmap is a Features that is already in bitmap form.
type FeatureBitmap uint32

func (b FeatureBitmap) AsBitmap() uint32 {
	return uint32(b)
}
