// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm

import (
	"reflect"
	"testing"

	"strngr/internal/analysis"
	"strngr/internal/image"
)

func ti(addr uint64, length int, op Op, cond Cond, args ...Arg) Inst {
	inst := Inst{Addr: addr, Len: length, Op: op, Cond: cond, Args: args}
	inst.Reads, inst.Writes = effects(op, args)
	return inst
}

func testSegs() *image.Segments {
	strs := append([]byte("hello\x00abc\x00"), make([]byte, 0x40-10)...)
	return image.NewSegments([]image.Segment{
		// Literal pool for ARM-mode PC-relative loads.
		{Start: 0x1010, End: 0x1020, Name: ".text",
			Bytes: []byte{0x00, 0x30, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{Start: 0x3000, End: 0x3040, Name: ".rodata", Bytes: strs},
	})
}

func access(kind analysis.AccessKind) analysis.Access {
	return analysis.Access{Kind: kind}
}

func constant(v int64) analysis.Access {
	return analysis.Access{Kind: analysis.AccessConstant, Const: v}
}

// A CBZ on the result of a call whose R1 was loaded from the literal
// pool: the classic strcmp shape.
func TestZCondCBZ(t *testing.T) {
	b := &Block{
		start: 0x1000,
		end:   0x1010,
		dests: []uint64{0x1100, 0x1200},
		insts: []Inst{
			ti(0x1000, 4, OpLDR, CondAL, R1, Mem{Base: PC, Index: RegNone, Disp: 8}),
			ti(0x1004, 4, OpMOV, CondAL, R0, R4),
			ti(0x1008, 4, OpBL, CondAL, Imm(0x2000)),
			ti(0x100c, 4, OpCBZ, CondAL, R0, Imm(0x1100)),
		},
	}

	info, err := b.ZCondArguments(3, testSegs(), image.Little)
	if err != nil {
		t.Fatal(err)
	}
	if info == nil {
		t.Fatal("no analysis")
	}
	if info.Function != 0x2000 {
		t.Errorf("function: want 0x2000, got %#x", info.Function)
	}
	if info.Destination != 0x1100 {
		t.Errorf("destination: want 0x1100, got %#x", info.Destination)
	}
	want := []analysis.Access{
		access(analysis.AccessRegister), // R0 copied from unknown R4
		constant(0x3000),                // R1 via the literal pool
		access(analysis.AccessNever),
	}
	if !reflect.DeepEqual(want, info.Arguments) {
		t.Errorf("arguments: want %v, got %v", want, info.Arguments)
	}
}

// CMP/BNE: the "equal" successor is the one the branch does not name.
func TestZCondCmpBranch(t *testing.T) {
	b := &Block{
		start: 0x1000,
		end:   0x100c,
		dests: []uint64{0x1300, 0x1400},
		insts: []Inst{
			ti(0x1000, 4, OpBL, CondAL, Imm(0x2000)),
			ti(0x1004, 4, OpCMP, CondAL, R0, Imm(0)),
			ti(0x1008, 4, OpB, CondNE, Imm(0x1300)),
		},
	}

	info, err := b.ZCondArguments(3, testSegs(), image.Little)
	if err != nil {
		t.Fatal(err)
	}
	if info == nil {
		t.Fatal("no analysis")
	}
	if info.Destination != 0x1400 {
		t.Errorf("destination: want 0x1400, got %#x", info.Destination)
	}

	// The reversed operand order is accepted too, and BEQ takes its
	// own target.
	b.insts[1] = ti(0x1004, 4, OpCMP, CondAL, Imm(0), R0)
	b.insts[2] = ti(0x1008, 4, OpB, CondEQ, Imm(0x1300))
	info, err = b.ZCondArguments(3, testSegs(), image.Little)
	if err != nil || info == nil {
		t.Fatalf("reversed operands: (%v, %v)", info, err)
	}
	if info.Destination != 0x1300 {
		t.Errorf("BEQ destination: want 0x1300, got %#x", info.Destination)
	}
}

// Thumb PC-relative load: PC reads as the instruction address plus 4;
// bit 1 is cleared after the displacement is added.
func TestZCondThumbPCRelative(t *testing.T) {
	segs := image.NewSegments([]image.Segment{
		{Start: 0x8010, End: 0x8020, Name: ".text",
			Bytes: []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{Start: 0x4000, End: 0x4020, Name: ".rodata",
			Bytes: append([]byte("abc\x00"), make([]byte, 0x1c)...)},
	})

	b := &Block{
		start: 0x8000,
		end:   0x800c,
		thumb: true,
		dests: []uint64{0x8100, 0x8200},
		insts: []Inst{
			ti(0x8000, 4, OpMOV, CondAL, R0, R5),
			// (0x8004 + 4 + 0x10) &^ 2 = 0x8018
			ti(0x8004, 2, OpLDR, CondAL, R1, Mem{Base: PC, Index: RegNone, Disp: 0x10}),
			ti(0x8006, 4, OpBL, CondAL, Imm(0x9000)),
			ti(0x800a, 2, OpCBZ, CondAL, R0, Imm(0x8100)),
		},
	}

	info, err := b.ZCondArguments(3, segs, image.Big)
	if err != nil {
		t.Fatal(err)
	}
	if info == nil {
		t.Fatal("no analysis")
	}
	if want := constant(0x4000); info.Arguments[1] != want {
		t.Errorf("R1: want %v, got %v", want, info.Arguments[1])
	}
}

// CBNZ picks the successor that is not its own target; with no other
// successor there is nothing to analyse.
func TestZCondCBNZDestination(t *testing.T) {
	b := &Block{
		start: 0x1000,
		end:   0x1008,
		dests: []uint64{0x1100, 0x1200},
		insts: []Inst{
			ti(0x1000, 4, OpBL, CondAL, Imm(0x2000)),
			ti(0x1004, 4, OpCBNZ, CondAL, R0, Imm(0x1100)),
		},
	}
	info, err := b.ZCondArguments(3, testSegs(), image.Little)
	if err != nil || info == nil {
		t.Fatalf("got (%v, %v)", info, err)
	}
	if info.Destination != 0x1200 {
		t.Errorf("destination: want 0x1200, got %#x", info.Destination)
	}

	b.dests = []uint64{0x1100}
	info, err = b.ZCondArguments(3, testSegs(), image.Little)
	if err != nil || info != nil {
		t.Errorf("no alternate successor: want (nil, nil), got (%v, %v)", info, err)
	}
}

// The taint walk must follow the tested value through intermediate
// moves back to R0, and give up when it drains elsewhere.
func TestZCondTaint(t *testing.T) {
	mk := func(mid Inst) *Block {
		return &Block{
			start: 0x1000,
			end:   0x1010,
			dests: []uint64{0x1100, 0x1200},
			insts: []Inst{
				ti(0x1000, 4, OpBL, CondAL, Imm(0x2000)),
				mid,
				ti(0x1008, 4, OpCBZ, CondAL, R4, Imm(0x1100)),
			},
		}
	}

	// MOV R4, R0 moves the taint onto R0, reaching the call.
	info, err := mk(ti(0x1004, 4, OpMOV, CondAL, R4, R0)).ZCondArguments(3, testSegs(), image.Little)
	if err != nil || info == nil {
		t.Fatalf("taint through move: got (%v, %v)", info, err)
	}

	// MOV R4, R5 drains it into R5; the call result is not what is
	// being tested.
	info, err = mk(ti(0x1004, 4, OpMOV, CondAL, R4, R5)).ZCondArguments(3, testSegs(), image.Little)
	if err != nil || info != nil {
		t.Errorf("unrelated value: want (nil, nil), got (%v, %v)", info, err)
	}
}

// MOVW/MOVT build a 32-bit constant; MOVT leaves anything that is
// not a constant exactly as it was.
func TestZCondMovtLattice(t *testing.T) {
	b := &Block{
		start: 0x1000,
		end:   0x1020,
		dests: []uint64{0x1100, 0x1200},
		insts: []Inst{
			ti(0x1000, 4, OpMOVW, CondAL, R1, Imm(0x5678)),
			ti(0x1004, 4, OpMOVT, CondAL, R1, Imm(0x1234)),
			ti(0x1008, 4, OpMOV, CondAL, R2, SP),
			ti(0x100c, 4, OpMOVT, CondAL, R2, Imm(5)),
			ti(0x1010, 4, OpMOVT, CondAL, R3, Imm(5)),
			ti(0x1014, 4, OpMOV, CondAL, R0, R6),
			ti(0x1018, 4, OpBL, CondAL, Imm(0x2000)),
			ti(0x101c, 4, OpCBZ, CondAL, R0, Imm(0x1100)),
		},
	}

	info, err := b.ZCondArguments(4, testSegs(), image.Little)
	if err != nil || info == nil {
		t.Fatalf("got (%v, %v)", info, err)
	}
	want := []analysis.Access{
		access(analysis.AccessRegister),
		constant(0x12345678),
		access(analysis.AccessStack), // MOVT must not corrupt a stack value
		access(analysis.AccessOther), // MOVT with no prior assignment
	}
	if !reflect.DeepEqual(want, info.Arguments) {
		t.Errorf("arguments: want %v, got %v", want, info.Arguments)
	}
}

// Unmodelled instructions clobber what they write.
func TestZCondClobber(t *testing.T) {
	clobber := Inst{Addr: 0x1004, Len: 4, Op: OpUnknown, Writes: RegSet(0).Add(R1)}
	b := &Block{
		start: 0x1000,
		end:   0x1014,
		dests: []uint64{0x1100, 0x1200},
		insts: []Inst{
			ti(0x1000, 4, OpMOV, CondAL, R1, Imm(7)),
			clobber,
			ti(0x1008, 4, OpMOV, CondAL, R0, R4),
			ti(0x100c, 4, OpBL, CondAL, Imm(0x2000)),
			ti(0x1010, 4, OpCBZ, CondAL, R0, Imm(0x1100)),
		},
	}
	info, err := b.ZCondArguments(3, testSegs(), image.Little)
	if err != nil || info == nil {
		t.Fatalf("got (%v, %v)", info, err)
	}
	if info.Arguments[1].Kind != analysis.AccessOther {
		t.Errorf("R1: want other, got %v", info.Arguments[1])
	}
}

// Blocks that do not end in a zero-conditional pattern yield nothing.
func TestZCondNoMatch(t *testing.T) {
	blocks := []*Block{
		{start: 0x1000, insts: nil},
		{start: 0x1000, dests: []uint64{0x1100}, insts: []Inst{
			ti(0x1000, 4, OpB, CondAL, Imm(0x1100)),
		}},
		{start: 0x1000, dests: []uint64{0x1100, 0x1200}, insts: []Inst{
			// Conditional branch without a preceding CMP #0.
			ti(0x1000, 4, OpMOV, CondAL, R0, Imm(1)),
			ti(0x1004, 4, OpB, CondNE, Imm(0x1100)),
		}},
		{start: 0x1000, dests: []uint64{0x1100, 0x1200}, insts: []Inst{
			// No call before the pattern.
			ti(0x1000, 4, OpMOV, CondAL, R0, Imm(1)),
			ti(0x1004, 4, OpCBZ, CondAL, R0, Imm(0x1100)),
		}},
	}
	for i, b := range blocks {
		info, err := b.ZCondArguments(3, testSegs(), image.Little)
		if err != nil || info != nil {
			t.Errorf("block %d: want (nil, nil), got (%v, %v)", i, info, err)
		}
	}
}
