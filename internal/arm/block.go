// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arm

import (
	"strngr/internal/image"
)

// A Block is a decoded ARM or Thumb basic block.
type Block struct {
	start, end uint64
	thumb      bool
	dests      []uint64
	insts      []Inst
}

// NewBlock decodes the block at [start, end) from data. thumb selects
// the decode mode; endian is the image byte order.
func NewBlock(start, end uint64, dests []uint64, thumb bool, data []byte, endian image.Endian) *Block {
	var insts []Inst
	if thumb {
		insts = decodeThumb(data, start, endian)
	} else {
		insts = decodeARM(data, start, endian)
	}
	return &Block{
		start: start,
		end:   end,
		thumb: thumb,
		dests: dests,
		insts: insts,
	}
}

func (b *Block) StartAddr() uint64 { return b.start }
func (b *Block) EndAddr() uint64   { return b.end }
func (b *Block) Dests() []uint64   { return b.dests }

// BaseScore is the block's instruction count.
func (b *Block) BaseScore() float64 {
	return float64(len(b.insts))
}
