// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analysis

import (
	"fmt"

	"strngr/internal/image"
)

// AccessKind classifies the abstract content of an argument register
// at a call site.
type AccessKind uint8

const (
	// AccessNever marks a slot no instruction assigned.
	AccessNever AccessKind = iota

	// AccessStack marks a value pointing into the stack frame.
	AccessStack

	// AccessRegister marks a value taken from an unknown register.
	AccessRegister

	// AccessConstant marks a known 32-bit constant, held
	// sign-extended.
	AccessConstant

	// AccessString marks a constant that resolved to a C string in
	// a segment.
	AccessString

	// AccessOther marks an indeterminate value.
	AccessOther
)

// An Access is the abstract value of one argument register. Const is
// meaningful for AccessConstant; Addr and Len (excluding the NUL) for
// AccessString.
type Access struct {
	Kind  AccessKind
	Const int64
	Addr  uint64
	Len   int
}

func (a Access) String() string {
	switch a.Kind {
	case AccessNever:
		return "never"
	case AccessStack:
		return "stack"
	case AccessRegister:
		return "register"
	case AccessConstant:
		return fmt.Sprintf("constant(%#x)", a.Const)
	case AccessString:
		return fmt.Sprintf("string(%#x, %d)", a.Addr, a.Len)
	}
	return "other"
}

// WrappingAdd adds v to a constant access with 32-bit wraparound.
// Every other kind is returned unchanged.
func (a Access) WrappingAdd(v int32) Access {
	if a.Kind == AccessConstant {
		a.Const = int64(int32(a.Const) + v)
	}
	return a
}

// MapConstant applies f to a constant access. Every other kind is
// returned unchanged; no information is invented for stack, register,
// or string values.
func (a Access) MapConstant(f func(int64) int64) Access {
	if a.Kind == AccessConstant {
		a.Const = f(a.Const)
	}
	return a
}

// ZCondBranchAnalysis describes a block that ends by branching on the
// zero-ness of a helper call's return value: the callee, the abstract
// arguments handed to it, and the successor taken when the tested
// value is zero ("equal").
type ZCondBranchAnalysis struct {
	Function    uint64
	Arguments   []Access
	Destination uint64
}

// An Evaluator is a block that can attempt the zero-conditional
// branch analysis on itself. Blocks of unmodelled architectures
// simply don't implement it.
type Evaluator interface {
	// ZCondArguments recovers the call argument state behind a
	// zero-conditional branch at the block's tail. It returns
	// (nil, nil) when the block does not match the pattern; errors
	// are reserved for failed segment reads.
	ZCondArguments(n int, segs *image.Segments, endian image.Endian) (*ZCondBranchAnalysis, error)
}
