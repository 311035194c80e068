// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm

import (
	"strngr/internal/analysis"
	"strngr/internal/image"
)

// argSlot maps an argument-carrying register to its call slot.
func argSlot(r Reg) (int, bool) {
	if r <= R4 {
		return int(r), true
	}
	return 0, false
}

// pcOf returns the value the PC register reads as at inst: two
// instructions ahead of the instruction's own address.
func pcOf(inst *Inst, thumb bool) int32 {
	if thumb {
		return int32(inst.Addr) + 4
	}
	return int32(inst.Addr) + 8
}

// ZCondArguments recognises a zero-conditional branch at the block's
// tail, locates the helper call whose return value it tests, and
// recovers the abstract contents of the call's first n argument
// registers. It returns (nil, nil) when the block doesn't match;
// only a failed segment read is an error.
func (b *Block) ZCondArguments(n int, segs *image.Segments, endian image.Endian) (*analysis.ZCondBranchAnalysis, error) {
	if len(b.insts) == 0 {
		return nil, nil
	}

	testedReg, dest, tail, ok := b.matchZCondTail()
	if !ok {
		return nil, nil
	}

	// Walk backwards from the branch pattern to the call that
	// produced the tested value. Taint tracking here is coarse on
	// purpose: an instruction writing a tainted register replaces
	// that taint with everything the instruction reads, which is
	// enough to decide whether the value came through R0.
	taint := RegSet(0).Add(testedReg)
	callIdx := -1
	var callee uint64
	for i := tail - 1; i >= 0; i-- {
		inst := &b.insts[i]
		if inst.IsCall() {
			imm, ok := immArg(inst.Args, 0)
			if ok && taint.Has(R0) {
				callIdx = i
				callee = uint64(imm)
			}
			break
		}
		if taint&inst.Writes != 0 {
			taint = taint&^inst.Writes | inst.Reads
		}
	}
	if callIdx < 0 {
		return nil, nil
	}

	vals, err := b.evalPrefix(callIdx, segs, endian)
	if err != nil {
		return nil, err
	}

	args := make([]analysis.Access, n)
	for r, v := range vals {
		if slot, ok := argSlot(r); ok && slot < n {
			args[slot] = v
		}
	}

	return &analysis.ZCondBranchAnalysis{
		Function:    callee,
		Arguments:   args,
		Destination: dest,
	}, nil
}

// matchZCondTail recognises the two tail shapes: CBZ/CBNZ, and a
// CMP #0 followed by a conditional B/BX. It returns the tested
// register, the successor taken on "equal to zero", and the index of
// the pattern's first instruction.
func (b *Block) matchZCondTail() (testedReg Reg, dest uint64, tail int, ok bool) {
	last := len(b.insts) - 1
	cond := &b.insts[last]

	switch {
	case (cond.Op == OpCBZ || cond.Op == OpCBNZ) && cond.Cond == CondAL:
		reg, rok := regArg(cond.Args, 0)
		if !rok {
			return 0, 0, 0, false
		}
		if cond.Op == OpCBZ {
			imm, iok := immArg(cond.Args, 1)
			if !iok {
				return 0, 0, 0, false
			}
			dest = uint64(imm)
		} else {
			d, dok := b.equalSuccessor(cond.Args)
			if !dok {
				return 0, 0, 0, false
			}
			dest = d
		}
		return reg, dest, last, true

	case (cond.Op == OpB || cond.Op == OpBX) && (cond.Cond == CondEQ || cond.Cond == CondNE):
		if last == 0 {
			return 0, 0, 0, false
		}
		if cond.Cond == CondEQ {
			imm, iok := immArg(cond.Args, 0)
			if !iok {
				return 0, 0, 0, false
			}
			dest = uint64(imm)
		} else {
			d, dok := b.equalSuccessor(cond.Args)
			if !dok {
				return 0, 0, 0, false
			}
			dest = d
		}

		comp := &b.insts[last-1]
		if comp.Op != OpCMP || comp.Cond != CondAL {
			return 0, 0, 0, false
		}
		// Accept either operand order.
		if r, rok := regArg(comp.Args, 0); rok {
			if v, iok := immArg(comp.Args, 1); iok && v == 0 {
				return r, dest, last - 1, true
			}
		}
		if v, iok := immArg(comp.Args, 0); iok && v == 0 {
			if r, rok := regArg(comp.Args, 1); rok {
				return r, dest, last - 1, true
			}
		}
		return 0, 0, 0, false
	}
	return 0, 0, 0, false
}

// equalSuccessor picks the successor taken when a branch-on-nonzero
// falls through: the first successor that is not the branch's own
// target, or, when the target is not an immediate, the first
// successor outright.
func (b *Block) equalSuccessor(args []Arg) (uint64, bool) {
	if imm, ok := immArg(args, len(args)-1); ok {
		target := uint64(imm)
		for _, d := range b.dests {
			if d != target {
				return d, true
			}
		}
		return 0, false
	}
	if len(b.dests) == 0 {
		return 0, false
	}
	return b.dests[0], true
}

// evalPrefix abstractly interprets the instructions before the call
// at callIdx, tracking per-register Access values through the five
// modelled opcodes. Memory is never followed; PC-relative loads are
// resolved against the segment store.
func (b *Block) evalPrefix(callIdx int, segs *image.Segments, endian image.Endian) (map[Reg]analysis.Access, error) {
	vals := make(map[Reg]analysis.Access)

	constant := func(v int32) analysis.Access {
		return analysis.Access{Kind: analysis.AccessConstant, Const: int64(v)}
	}
	other := analysis.Access{Kind: analysis.AccessOther}
	stack := analysis.Access{Kind: analysis.AccessStack}
	register := analysis.Access{Kind: analysis.AccessRegister}

	loadWord := func(addr int32) (analysis.Access, error) {
		v, err := segs.Int32(uint64(int64(addr)), endian)
		if err != nil {
			return analysis.Access{}, err
		}
		return constant(v), nil
	}

	for i := 0; i < callIdx; i++ {
		inst := &b.insts[i]
		switch inst.Op {
		case OpADD:
			target, ok := regArg(inst.Args, 0)
			if !ok {
				continue
			}
			switch src := argAt(inst.Args, 1).(type) {
			case Imm:
				if v, ok := vals[target]; ok {
					vals[target] = v.WrappingAdd(int32(src))
				} else {
					vals[target] = other
				}
			case Reg:
				switch src {
				case PC:
					if v, ok := vals[target]; ok {
						v = v.WrappingAdd(pcOf(inst, b.thumb))
						if b.thumb {
							v = v.MapConstant(func(c int64) int64 { return c &^ 2 })
						}
						vals[target] = v
					} else {
						vals[target] = other
					}
				case SP:
					vals[target] = stack
				default:
					vals[target] = other
				}
			default:
				vals[target] = other
			}

		case OpLDR:
			target, ok := regArg(inst.Args, 0)
			if !ok {
				continue
			}
			switch src := argAt(inst.Args, 1).(type) {
			case Reg:
				if v, ok := vals[src]; ok {
					vals[target] = v
				} else {
					vals[target] = register
				}
			case Imm:
				v, err := loadWord(int32(src))
				if err != nil {
					return nil, err
				}
				vals[target] = v
			case Mem:
				if src.Index != RegNone {
					continue
				}
				switch src.Base {
				case PC:
					addr := pcOf(inst, b.thumb) + src.Disp
					if b.thumb {
						addr &^= 2
					}
					v, err := loadWord(addr)
					if err != nil {
						return nil, err
					}
					vals[target] = v
				case SP:
					vals[target] = stack
				default:
					if v, ok := vals[src.Base]; ok {
						vals[target] = v.WrappingAdd(src.Disp)
					} else {
						vals[target] = register
					}
				}
			}

		case OpMOV:
			target, ok := regArg(inst.Args, 0)
			if !ok {
				continue
			}
			switch src := argAt(inst.Args, 1).(type) {
			case Reg:
				switch src {
				case PC:
					addr := pcOf(inst, b.thumb)
					if b.thumb {
						addr &^= 2
					}
					vals[target] = constant(addr)
				case SP:
					vals[target] = stack
				default:
					if v, ok := vals[src]; ok {
						vals[target] = v
					} else {
						vals[target] = register
					}
				}
			case Imm:
				vals[target] = constant(int32(src))
			}

		case OpMOVW:
			target, ok := regArg(inst.Args, 0)
			if !ok {
				continue
			}
			if imm, ok := immArg(inst.Args, 1); ok {
				vals[target] = constant(int32(imm))
			} else {
				vals[target] = other
			}

		case OpMOVT:
			target, ok := regArg(inst.Args, 0)
			if !ok {
				continue
			}
			imm, ok := immArg(inst.Args, 1)
			if !ok {
				vals[target] = other
				continue
			}
			if v, ok := vals[target]; ok {
				vals[target] = v.MapConstant(func(c int64) int64 {
					return int64(int32(c)&0xffff | int32(imm)<<16)
				})
			} else {
				vals[target] = other
			}

		default:
			for r := R0; r <= PC; r++ {
				if inst.Writes.Has(r) {
					vals[r] = other
				}
			}
		}
	}
	return vals, nil
}

func argAt(args []Arg, i int) Arg {
	if i >= len(args) {
		return nil
	}
	return args[i]
}
