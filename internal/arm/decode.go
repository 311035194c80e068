// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm

import (
	"encoding/binary"
	"strings"

	"golang.org/x/arch/arm/armasm"

	"strngr/internal/image"
)

// decodeARM decodes ARM-mode (4-byte) instructions. Words the
// decoder rejects become opaque instructions so the stream stays
// aligned.
func decodeARM(data []byte, addr uint64, endian image.Endian) []Inst {
	bo := endian.ByteOrder()
	var out []Inst
	for len(data) >= 4 {
		word := bo.Uint32(data)
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], word)

		inst, err := armasm.Decode(buf[:], armasm.ModeARM)
		if err != nil || inst.Op == 0 {
			out = append(out, Inst{Addr: addr, Len: 4, Op: OpUnknown})
		} else {
			out = append(out, mapARMInst(inst, addr))
		}
		data = data[4:]
		addr += 4
	}
	return out
}

// mapARMInst converts an armasm instruction to the analysis form:
// base op split from condition, PC-relative targets made absolute,
// and read/write sets derived from the operand shapes.
func mapARMInst(inst armasm.Inst, addr uint64) Inst {
	op, cond := splitOp(inst.Op.String())

	var args []Arg
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		args = append(args, mapARMArg(a, addr))
	}

	out := Inst{
		Addr: addr,
		Len:  4,
		Op:   op,
		Cond: cond,
		Args: args,
	}
	out.Reads, out.Writes = effects(op, args)
	return out
}

// splitOp separates an armasm op name like "ADD.S.EQ" into the base
// opcode and its condition. Set-flags and width suffixes are
// discarded; conditions other than EQ/NE fold to CondOther.
func splitOp(name string) (Op, Cond) {
	parts := strings.Split(name, ".")
	op := opNames[parts[0]]
	cond := CondAL
	for _, p := range parts[1:] {
		switch p {
		case "S", "W":
			// Set-flags / wide suffix; not a condition.
		case "EQ":
			cond = CondEQ
		case "NE":
			cond = CondNE
		case "AL":
			cond = CondAL
		default:
			cond = CondOther
		}
	}
	return op, cond
}

var opNames = map[string]Op{
	"ADD":  OpADD,
	"B":    OpB,
	"BL":   OpBL,
	"BLX":  OpBLX,
	"BX":   OpBX,
	"CBNZ": OpCBNZ,
	"CBZ":  OpCBZ,
	"CMP":  OpCMP,
	"LDR":  OpLDR,
	"MOV":  OpMOV,
	"MOVT": OpMOVT,
	"MOVW": OpMOVW,
}

func mapARMArg(a armasm.Arg, addr uint64) Arg {
	switch a := a.(type) {
	case armasm.Reg:
		return mapARMReg(a)
	case armasm.Imm:
		return Imm(int64(uint32(a)))
	case armasm.ImmAlt:
		return Imm(int64(uint32(a.Imm())))
	case armasm.PCRel:
		// In ARM mode the PC reads two instructions ahead.
		return Imm(int64(addr) + 8 + int64(a))
	case armasm.Mem:
		m := Mem{Base: mapARMReg(a.Base), Index: RegNone}
		if a.Sign != 0 {
			m.Index = mapARMReg(a.Index)
		} else {
			m.Disp = int32(a.Offset)
		}
		return m
	}
	return nil
}

func mapARMReg(r armasm.Reg) Reg {
	if r < armasm.R0 || r > armasm.R15 {
		return RegNone
	}
	return Reg(r - armasm.R0)
}
