// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm

import (
	"reflect"
	"testing"

	"strngr/internal/image"
)

func TestSplitOp(t *testing.T) {
	tests := []struct {
		name string
		op   Op
		cond Cond
	}{
		{"ADD", OpADD, CondAL},
		{"ADD.S", OpADD, CondAL},
		{"ADD.S.EQ", OpADD, CondEQ},
		{"B.NE", OpB, CondNE},
		{"BL", OpBL, CondAL},
		{"MOV.GT", OpMOV, CondOther},
		{"LDRB", OpUnknown, CondAL},
	}
	for _, test := range tests {
		op, cond := splitOp(test.name)
		if op != test.op || cond != test.cond {
			t.Errorf("splitOp(%q) = (%v, %v), want (%v, %v)", test.name, op, cond, test.op, test.cond)
		}
	}
}

func TestDecodeThumb16(t *testing.T) {
	le := func(hws ...uint16) []byte {
		var out []byte
		for _, hw := range hws {
			out = append(out, byte(hw), byte(hw>>8))
		}
		return out
	}

	tests := []struct {
		name string
		data []byte
		want Inst
	}{
		{
			"MOV R0, #1",
			le(0x2001),
			ti(0x8000, 2, OpMOV, CondAL, R0, Imm(1)),
		},
		{
			"CMP R0, #0",
			le(0x2800),
			ti(0x8000, 2, OpCMP, CondAL, R0, Imm(0)),
		},
		{
			"MOV R1, R0 (special data)",
			le(0x4601),
			ti(0x8000, 2, OpMOV, CondAL, R1, R0),
		},
		{
			"ADD R1, PC",
			le(0x4479),
			ti(0x8000, 2, OpADD, CondAL, R1, PC),
		},
		{
			"LDR R1, [PC, #16]",
			le(0x4904),
			ti(0x8000, 2, OpLDR, CondAL, R1, Mem{Base: PC, Index: RegNone, Disp: 16}),
		},
		{
			"LDR R2, [SP, #8]",
			le(0x9a02),
			ti(0x8000, 2, OpLDR, CondAL, R2, Mem{Base: SP, Index: RegNone, Disp: 8}),
		},
		{
			"ADD R1, SP, #8",
			le(0xa902),
			ti(0x8000, 2, OpADD, CondAL, R1, SP, Imm(8)),
		},
		{
			"CBZ R0, 0x800a",
			le(0xb118),
			ti(0x8000, 2, OpCBZ, CondAL, R0, Imm(0x800a)),
		},
		{
			"BX LR",
			le(0x4770),
			ti(0x8000, 2, OpBX, CondAL, LR),
		},
		{
			"BEQ 0x8008",
			le(0xd002),
			ti(0x8000, 2, OpB, CondEQ, Imm(0x8008)),
		},
		{
			"B 0x7ffe (backwards)",
			le(0xe7fd),
			ti(0x8000, 2, OpB, CondAL, Imm(0x7ffe)),
		},
	}
	for _, test := range tests {
		got := decodeThumb(test.data, 0x8000, image.Little)
		if len(got) != 1 || !reflect.DeepEqual(got[0], test.want) {
			t.Errorf("%s: got %+v, want %+v", test.name, got, test.want)
		}
	}
}

func TestDecodeThumb32(t *testing.T) {
	le := func(hws ...uint16) []byte {
		var out []byte
		for _, hw := range hws {
			out = append(out, byte(hw), byte(hw>>8))
		}
		return out
	}

	tests := []struct {
		name string
		data []byte
		want Inst
	}{
		{
			"MOVW R3, #0x1234",
			le(0xf241, 0x2334),
			ti(0x8000, 4, OpMOVW, CondAL, R3, Imm(0x1234)),
		},
		{
			"MOVT R3, #0x5678",
			le(0xf2c5, 0x6378),
			ti(0x8000, 4, OpMOVT, CondAL, R3, Imm(0x5678)),
		},
		{
			"BL 0x8008",
			le(0xf000, 0xf802),
			ti(0x8000, 4, OpBL, CondAL, Imm(0x8008)),
		},
		{
			"LDR.W R1, [PC, #0x40]",
			le(0xf8df, 0x1040),
			ti(0x8000, 4, OpLDR, CondAL, R1, Mem{Base: PC, Index: RegNone, Disp: 0x40}),
		},
	}
	for _, test := range tests {
		got := decodeThumb(test.data, 0x8000, image.Little)
		if len(got) != 1 || !reflect.DeepEqual(got[0], test.want) {
			t.Errorf("%s: got %+v, want %+v", test.name, got, test.want)
		}
	}
}

// Undecodable halfwords must not desynchronise the stream.
func TestDecodeThumbOpaque(t *testing.T) {
	data := []byte{
		0x01, 0x20, // MOV R0, #1
		0xef, 0xf3, 0x00, 0x80, // MRS R0, APSR (32-bit, unmodelled)
		0x02, 0x20, // MOV R0, #2
	}
	got := decodeThumb(data, 0x8000, image.Little)
	if len(got) != 3 {
		t.Fatalf("want 3 instructions, got %d: %+v", len(got), got)
	}
	if got[1].Op != OpUnknown || got[1].Len != 4 {
		t.Errorf("middle instruction: %+v", got[1])
	}
	if got[2].Addr != 0x8006 || got[2].Op != OpMOV {
		t.Errorf("resynchronised instruction: %+v", got[2])
	}
}
