// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package image models a loaded program: its segments, functions, and
// per-function control-flow graphs, plus the dominator and
// reachability computations the scoring passes depend on.
package image

// A Block is one basic block of a function's control-flow graph.
// Concrete block types are architecture-specific; the image layer
// needs only addresses, successor edges, and a size measure.
type Block interface {
	// StartAddr returns the address of the block's first
	// instruction. Blocks are keyed by this address.
	StartAddr() uint64

	// EndAddr returns the address one past the block's last byte.
	EndAddr() uint64

	// Dests returns the successor block start addresses. Edges may
	// point outside the enclosing function's block map; graph
	// traversals skip such edges but analyses see them raw.
	Dests() []uint64

	// BaseScore is the block's intrinsic weight, its instruction
	// count.
	BaseScore() float64
}

// Image is a loaded program ready for analysis. It is read-only once
// constructed.
type Image struct {
	Arch      Arch
	Bits      Bits
	Endian    Endian
	Segments  *Segments
	Functions map[uint64]*Function
}
