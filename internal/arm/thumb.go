// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm

import "strngr/internal/image"

// decodeThumb decodes a Thumb/Thumb-2 instruction stream. Only the
// encodings the evaluator interprets are decoded to named opcodes;
// everything else becomes an opaque instruction of the correct
// length with a best-effort write set, which is all the taint pass
// needs from it.
func decodeThumb(data []byte, addr uint64, endian image.Endian) []Inst {
	bo := endian.ByteOrder()
	var out []Inst
	for len(data) >= 2 {
		hw := bo.Uint16(data)
		if isThumb32(hw) && len(data) >= 4 {
			hw2 := bo.Uint16(data[2:])
			out = append(out, decodeThumb32(hw, hw2, addr))
			data = data[4:]
			addr += 4
			continue
		}
		out = append(out, decodeThumb16(hw, addr))
		data = data[2:]
		addr += 2
	}
	return out
}

// isThumb32 reports whether hw is the first halfword of a 32-bit
// encoding.
func isThumb32(hw uint16) bool {
	return hw>>11 >= 0x1d
}

func thumbInst(addr uint64, length int, op Op, cond Cond, args ...Arg) Inst {
	inst := Inst{Addr: addr, Len: length, Op: op, Cond: cond, Args: args}
	inst.Reads, inst.Writes = effects(op, args)
	return inst
}

// opaque16 is an undecoded 16-bit instruction with explicit effects.
func opaque16(addr uint64, reads, writes RegSet) Inst {
	return Inst{Addr: addr, Len: 2, Op: OpUnknown, Cond: CondAL, Reads: reads, Writes: writes}
}

func decodeThumb16(hw uint16, addr uint64) Inst {
	switch hw >> 11 {
	case 0x00, 0x01, 0x02: // LSL/LSR/ASR Rd, Rm, #imm5
		rd, rm := Reg(hw&7), Reg(hw>>3&7)
		return opaque16(addr, RegSet(0).Add(rm), RegSet(0).Add(rd))
	case 0x03: // ADD/SUB register and 3-bit immediate forms
		rd, rn := Reg(hw&7), Reg(hw>>3&7)
		switch hw >> 9 & 3 {
		case 0: // ADD Rd, Rn, Rm
			return thumbInst(addr, 2, OpADD, CondAL, rd, rn, Reg(hw>>6&7))
		case 2: // ADD Rd, Rn, #imm3
			return thumbInst(addr, 2, OpADD, CondAL, rd, rn, Imm(hw>>6&7))
		case 1: // SUB Rd, Rn, Rm
			return opaque16(addr, RegSet(0).Add(rn).Add(Reg(hw>>6&7)), RegSet(0).Add(rd))
		default: // SUB Rd, Rn, #imm3
			return opaque16(addr, RegSet(0).Add(rn), RegSet(0).Add(rd))
		}
	case 0x04: // MOV Rd, #imm8
		return thumbInst(addr, 2, OpMOV, CondAL, Reg(hw>>8&7), Imm(hw&0xff))
	case 0x05: // CMP Rn, #imm8
		return thumbInst(addr, 2, OpCMP, CondAL, Reg(hw>>8&7), Imm(hw&0xff))
	case 0x06: // ADD Rdn, #imm8
		return thumbInst(addr, 2, OpADD, CondAL, Reg(hw>>8&7), Imm(hw&0xff))
	case 0x07: // SUB Rdn, #imm8
		rdn := Reg(hw >> 8 & 7)
		return opaque16(addr, RegSet(0).Add(rdn), RegSet(0).Add(rdn))
	case 0x08:
		switch {
		case hw>>10&1 == 0: // data processing, register
			rdn, rm := Reg(hw&7), Reg(hw>>3&7)
			if hw>>6&0xf == 0xa { // CMP Rn, Rm
				return thumbInst(addr, 2, OpCMP, CondAL, rdn, rm)
			}
			return opaque16(addr, RegSet(0).Add(rdn).Add(rm), RegSet(0).Add(rdn))
		default: // special data and branch exchange
			rm := Reg(hw >> 3 & 0xf)
			rdn := Reg(hw&7 | hw>>4&8)
			switch hw >> 8 & 3 {
			case 0: // ADD Rdn, Rm (high registers)
				return thumbInst(addr, 2, OpADD, CondAL, rdn, rm)
			case 1: // CMP Rn, Rm
				return thumbInst(addr, 2, OpCMP, CondAL, rdn, rm)
			case 2: // MOV Rd, Rm
				return thumbInst(addr, 2, OpMOV, CondAL, rdn, rm)
			default: // BX/BLX Rm
				if hw>>7&1 == 0 {
					return thumbInst(addr, 2, OpBX, CondAL, rm)
				}
				return thumbInst(addr, 2, OpBLX, CondAL, rm)
			}
		}
	case 0x09: // LDR Rt, [PC, #imm8<<2]
		return thumbInst(addr, 2, OpLDR, CondAL,
			Reg(hw>>8&7), Mem{Base: PC, Index: RegNone, Disp: int32(hw&0xff) << 2})
	case 0x0a, 0x0b: // load/store, register offset
		rt, rn, rm := Reg(hw&7), Reg(hw>>3&7), Reg(hw>>6&7)
		switch hw >> 9 & 7 {
		case 4: // LDR Rt, [Rn, Rm]
			return thumbInst(addr, 2, OpLDR, CondAL, rt, Mem{Base: rn, Index: rm})
		case 3, 5, 6, 7: // other loads
			return opaque16(addr, RegSet(0).Add(rn).Add(rm), RegSet(0).Add(rt))
		default: // stores
			return opaque16(addr, RegSet(0).Add(rt).Add(rn).Add(rm), 0)
		}
	case 0x0d: // LDR Rt, [Rn, #imm5<<2]
		return thumbInst(addr, 2, OpLDR, CondAL,
			Reg(hw&7), Mem{Base: Reg(hw >> 3 & 7), Index: RegNone, Disp: int32(hw>>6&0x1f) << 2})
	case 0x0c: // STR Rt, [Rn, #imm5<<2]
		return opaque16(addr, RegSet(0).Add(Reg(hw&7)).Add(Reg(hw>>3&7)), 0)
	case 0x0e, 0x0f: // byte load/store
		rt, rn := Reg(hw&7), Reg(hw>>3&7)
		if hw>>11&1 == 1 {
			return opaque16(addr, RegSet(0).Add(rn), RegSet(0).Add(rt))
		}
		return opaque16(addr, RegSet(0).Add(rt).Add(rn), 0)
	case 0x10, 0x11: // halfword load/store
		rt, rn := Reg(hw&7), Reg(hw>>3&7)
		if hw>>11&1 == 1 {
			return opaque16(addr, RegSet(0).Add(rn), RegSet(0).Add(rt))
		}
		return opaque16(addr, RegSet(0).Add(rt).Add(rn), 0)
	case 0x12: // STR Rt, [SP, #imm8<<2]
		return opaque16(addr, RegSet(0).Add(Reg(hw>>8&7)).Add(SP), 0)
	case 0x13: // LDR Rt, [SP, #imm8<<2]
		return thumbInst(addr, 2, OpLDR, CondAL,
			Reg(hw>>8&7), Mem{Base: SP, Index: RegNone, Disp: int32(hw&0xff) << 2})
	case 0x14: // ADR Rd, label
		return opaque16(addr, RegSet(0).Add(PC), RegSet(0).Add(Reg(hw>>8&7)))
	case 0x15: // ADD Rd, SP, #imm8<<2
		return thumbInst(addr, 2, OpADD, CondAL, Reg(hw>>8&7), SP, Imm(int64(hw&0xff)<<2))
	case 0x16, 0x17: // misc 16-bit
		return decodeThumb16Misc(hw, addr)
	case 0x18: // STM
		return opaque16(addr, regList(hw&0xff).Add(Reg(hw>>8&7)), 0)
	case 0x19: // LDM
		rn := Reg(hw >> 8 & 7)
		return opaque16(addr, RegSet(0).Add(rn), regList(hw&0xff).Add(rn))
	case 0x1a, 0x1b: // B<c> label / UDF / SVC
		cc := hw >> 8 & 0xf
		if cc == 0xe || cc == 0xf {
			return opaque16(addr, 0, 0)
		}
		target := int64(addr) + 4 + int64(int8(hw&0xff))*2
		return thumbInst(addr, 2, OpB, thumbCond(cc), Imm(target))
	case 0x1c: // B label (unconditional)
		off := int64(hw&0x7ff) << 1
		if off&0x800 != 0 {
			off -= 0x1000
		}
		return thumbInst(addr, 2, OpB, CondAL, Imm(int64(addr)+4+off))
	}
	return opaque16(addr, 0, 0)
}

func decodeThumb16Misc(hw uint16, addr uint64) Inst {
	switch {
	case hw&0xf500 == 0xb100: // CBZ/CBNZ Rn, label
		op := OpCBZ
		if hw>>11&1 == 1 {
			op = OpCBNZ
		}
		off := uint64(hw>>9&1)<<6 | uint64(hw>>3&0x1f)<<1
		return thumbInst(addr, 2, op, CondAL, Reg(hw&7), Imm(addr+4+off))
	case hw&0xff00 == 0xb000: // ADD/SUB SP, #imm
		return opaque16(addr, RegSet(0).Add(SP), RegSet(0).Add(SP))
	case hw&0xfe00 == 0xb400: // PUSH
		reads := regList(hw & 0xff).Add(SP)
		if hw>>8&1 == 1 {
			reads = reads.Add(LR)
		}
		return opaque16(addr, reads, RegSet(0).Add(SP))
	case hw&0xfe00 == 0xbc00: // POP
		writes := regList(hw & 0xff).Add(SP)
		if hw>>8&1 == 1 {
			writes = writes.Add(PC)
		}
		return opaque16(addr, RegSet(0).Add(SP), writes)
	}
	return opaque16(addr, 0, 0)
}

func thumbCond(cc uint16) Cond {
	switch cc {
	case 0:
		return CondEQ
	case 1:
		return CondNE
	}
	return CondOther
}

func regList(bits uint16) RegSet {
	return RegSet(bits & 0xff)
}

func decodeThumb32(hw, hw2 uint16, addr uint64) Inst {
	opaque := Inst{Addr: addr, Len: 4, Op: OpUnknown, Cond: CondAL}

	if hw&0xf800 == 0xf000 && hw2&0x8000 != 0 {
		// Branches and branches with link.
		return decodeThumb32Branch(hw, hw2, addr)
	}

	switch {
	case hw&0xfbf0 == 0xf240 && hw2&0x8000 == 0: // MOVW Rd, #imm16
		imm := int64(hw&0xf)<<12 | int64(hw>>10&1)<<11 | int64(hw2>>12&7)<<8 | int64(hw2&0xff)
		return thumbInst(addr, 4, OpMOVW, CondAL, Reg(hw2>>8&0xf), Imm(imm))
	case hw&0xfbf0 == 0xf2c0 && hw2&0x8000 == 0: // MOVT Rd, #imm16
		imm := int64(hw&0xf)<<12 | int64(hw>>10&1)<<11 | int64(hw2>>12&7)<<8 | int64(hw2&0xff)
		return thumbInst(addr, 4, OpMOVT, CondAL, Reg(hw2>>8&0xf), Imm(imm))
	case hw&0xfbef == 0xf04f && hw2&0x8000 == 0: // MOV.W Rd, #const
		return thumbInst(addr, 4, OpMOV, CondAL, Reg(hw2>>8&0xf),
			Imm(expandImm(hw, hw2)))
	case hw&0xfbe0 == 0xf100 && hw2&0x8000 == 0: // ADD.W Rd, Rn, #const
		return thumbInst(addr, 4, OpADD, CondAL, Reg(hw2>>8&0xf), Reg(hw&0xf),
			Imm(expandImm(hw, hw2)))
	case hw&0xfbf0 == 0xf200 && hw2&0x8000 == 0: // ADDW Rd, Rn, #imm12
		imm := int64(hw>>10&1)<<11 | int64(hw2>>12&7)<<8 | int64(hw2&0xff)
		return thumbInst(addr, 4, OpADD, CondAL, Reg(hw2>>8&0xf), Reg(hw&0xf), Imm(imm))
	case hw&0xfbf0 == 0xf1b0 && hw2&0x8f00 == 0x0f00: // CMP.W Rn, #const
		return thumbInst(addr, 4, OpCMP, CondAL, Reg(hw&0xf), Imm(expandImm(hw, hw2)))
	case hw&0xff7f == 0xf85f: // LDR.W Rt, [PC, #±imm12]
		disp := int32(hw2 & 0xfff)
		if hw&0x80 == 0 {
			disp = -disp
		}
		return thumbInst(addr, 4, OpLDR, CondAL, Reg(hw2>>12&0xf),
			Mem{Base: PC, Index: RegNone, Disp: disp})
	case hw&0xfff0 == 0xf8d0: // LDR.W Rt, [Rn, #imm12]
		return thumbInst(addr, 4, OpLDR, CondAL, Reg(hw2>>12&0xf),
			Mem{Base: Reg(hw & 0xf), Index: RegNone, Disp: int32(hw2 & 0xfff)})
	case hw&0xfff0 == 0xf850:
		rt, rn := Reg(hw2>>12&0xf), Reg(hw&0xf)
		if hw2&0x0fc0 == 0 { // LDR.W Rt, [Rn, Rm, LSL #n]
			return thumbInst(addr, 4, OpLDR, CondAL, rt, Mem{Base: rn, Index: Reg(hw2 & 0xf)})
		}
		if hw2&0x0800 != 0 { // LDR Rt, [Rn, #±imm8]
			disp := int32(hw2 & 0xff)
			if hw2&0x200 == 0 {
				disp = -disp
			}
			return thumbInst(addr, 4, OpLDR, CondAL, rt, Mem{Base: rn, Index: RegNone, Disp: disp})
		}
		return opaque
	}
	return opaque
}

func decodeThumb32Branch(hw, hw2 uint16, addr uint64) Inst {
	s := int64(hw >> 10 & 1)
	j1 := int64(hw2 >> 13 & 1)
	j2 := int64(hw2 >> 11 & 1)
	imm11 := int64(hw2 & 0x7ff)

	if hw2&0x4000 != 0 {
		// BL / BLX: I1:I2 are J1/J2 xored with S.
		i1 := 1 &^ (j1 ^ s)
		i2 := 1 &^ (j2 ^ s)
		imm10 := int64(hw & 0x3ff)
		off := s<<24 | i1<<23 | i2<<22 | imm10<<12 | imm11<<1
		if s == 1 {
			off -= 1 << 25
		}
		if hw2&0x1000 != 0 { // BL
			return thumbInst(addr, 4, OpBL, CondAL, Imm(int64(addr)+4+off))
		}
		// BLX: the target is ARM code; the base PC is word-aligned.
		base := (int64(addr) + 4) &^ 3
		return thumbInst(addr, 4, OpBLX, CondAL, Imm(base+off))
	}

	if hw2&0x1000 != 0 { // B.W (unconditional)
		i1 := 1 &^ (j1 ^ s)
		i2 := 1 &^ (j2 ^ s)
		imm10 := int64(hw & 0x3ff)
		off := s<<24 | i1<<23 | i2<<22 | imm10<<12 | imm11<<1
		if s == 1 {
			off -= 1 << 25
		}
		return thumbInst(addr, 4, OpB, CondAL, Imm(int64(addr)+4+off))
	}

	// B<c>.W
	cc := hw >> 6 & 0xf
	if cc >= 0xe {
		return Inst{Addr: addr, Len: 4, Op: OpUnknown, Cond: CondAL}
	}
	imm6 := int64(hw & 0x3f)
	off := s<<20 | j2<<19 | j1<<18 | imm6<<12 | imm11<<1
	if s == 1 {
		off -= 1 << 21
	}
	return thumbInst(addr, 4, OpB, thumbCond(cc), Imm(int64(addr)+4+off))
}

// expandImm decodes the Thumb-2 modified immediate constant in
// i:imm3:imm8.
func expandImm(hw, hw2 uint16) int64 {
	imm12 := uint32(hw>>10&1)<<11 | uint32(hw2>>12&7)<<8 | uint32(hw2&0xff)
	imm8 := imm12 & 0xff
	if imm12>>10 == 0 {
		switch imm12 >> 8 & 3 {
		case 0:
			return int64(imm8)
		case 1:
			return int64(int32(imm8<<16 | imm8))
		case 2:
			return int64(int32(imm8<<24 | imm8<<8))
		default:
			return int64(int32(imm8<<24 | imm8<<16 | imm8<<8 | imm8))
		}
	}
	rot := imm12 >> 7
	val := imm8 | 0x80
	return int64(int32(val>>rot | val<<(32-rot)))
}
