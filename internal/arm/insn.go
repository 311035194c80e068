// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arm decodes ARM and Thumb basic blocks into a uniform
// instruction stream and implements the zero-conditional branch
// evaluator over that stream.
package arm

// Reg is an ARM core register.
type Reg uint8

const (
	R0 Reg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	SP
	LR
	PC

	// RegNone marks an absent register operand (e.g. no index
	// register in a memory operand).
	RegNone Reg = 0xff
)

// RegSet is a bit set of core registers.
type RegSet uint16

func (s RegSet) Has(r Reg) bool {
	return r <= PC && s&(1<<r) != 0
}

func (s RegSet) Add(r Reg) RegSet {
	if r > PC {
		return s
	}
	return s | 1<<r
}

func (s RegSet) Remove(r Reg) RegSet {
	if r > PC {
		return s
	}
	return s &^ (1 << r)
}

// Cond is an instruction's condition code. Conditions other than AL,
// EQ, and NE take no part in the analysis and are folded together.
type Cond uint8

const (
	CondAL Cond = iota
	CondEQ
	CondNE
	CondOther
)

// Op identifies an instruction's base opcode. Only the opcodes the
// evaluator interprets are distinguished; everything else is
// OpUnknown and contributes nothing but its register write set.
type Op uint8

const (
	OpUnknown Op = iota
	OpADD
	OpB
	OpBL
	OpBLX
	OpBX
	OpCBNZ
	OpCBZ
	OpCMP
	OpLDR
	OpMOV
	OpMOVT
	OpMOVW
)

// An Arg is one instruction operand: a Reg, an Imm, or a Mem.
// Branch targets are held as absolute addresses in Imm.
type Arg interface {
	isArg()
}

// Imm is an immediate operand. Branch and call targets are stored
// resolved to absolute addresses.
type Imm int64

func (Imm) isArg() {}
func (Reg) isArg() {}

// Mem is a register-offset memory operand. Index is RegNone when no
// index register participates.
type Mem struct {
	Base  Reg
	Index Reg
	Disp  int32
}

func (Mem) isArg() {}

// An Inst is one decoded instruction with its operands and
// conservative register read/write sets.
type Inst struct {
	Addr   uint64
	Len    int
	Op     Op
	Cond   Cond
	Args   []Arg
	Reads  RegSet
	Writes RegSet
}

// IsCall reports whether the instruction is a branch-with-link.
func (i *Inst) IsCall() bool {
	return i.Op == OpBL || i.Op == OpBLX
}

func regArg(args []Arg, i int) (Reg, bool) {
	if i >= len(args) {
		return 0, false
	}
	r, ok := args[i].(Reg)
	return r, ok
}

func immArg(args []Arg, i int) (int64, bool) {
	if i < 0 || i >= len(args) {
		return 0, false
	}
	v, ok := args[i].(Imm)
	return int64(v), ok
}

// effects derives the read and write sets of an instruction from its
// opcode and operand shapes. This deliberately over-approximates:
// the backward taint pass needs "which registers could this write
// have come from", not precise operand semantics.
func effects(op Op, args []Arg) (reads, writes RegSet) {
	addRegs := func(s RegSet, from int) RegSet {
		for _, a := range args[min(from, len(args)):] {
			switch a := a.(type) {
			case Reg:
				s = s.Add(a)
			case Mem:
				s = s.Add(a.Base)
				if a.Index != RegNone {
					s = s.Add(a.Index)
				}
			}
		}
		return s
	}

	switch op {
	case OpMOV, OpMOVW, OpLDR:
		if d, ok := regArg(args, 0); ok {
			writes = writes.Add(d)
		}
		reads = addRegs(reads, 1)
	case OpMOVT, OpADD:
		// Destination doubles as a source.
		if d, ok := regArg(args, 0); ok {
			writes = writes.Add(d)
			reads = reads.Add(d)
		}
		reads = addRegs(reads, 1)
	case OpCMP, OpCBZ, OpCBNZ, OpB, OpBX:
		reads = addRegs(reads, 0)
	case OpBL, OpBLX:
		writes = writes.Add(LR)
		reads = addRegs(reads, 0)
	default:
		// Unknown instruction: assume the first register operand
		// is a read-modify-write destination and everything else
		// is read.
		if d, ok := regArg(args, 0); ok {
			writes = writes.Add(d)
		}
		reads = addRegs(reads, 0)
	}
	return
}
