// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package image

// A Function is a named address range with a block map. The entry
// block starts at StartAddr.
type Function struct {
	Name               string
	StartAddr, EndAddr uint64
	Blocks             map[uint64]Block
}

// Dominates records one node's position in a function's dominator
// tree: its immediate dominator and every node it dominates.
type Dominates struct {
	// Parent is the node's immediate dominator. HasParent is false
	// for the entry block.
	Parent    uint64
	HasParent bool

	// Dominates lists the nodes this node dominates. Entries may
	// repeat; consumers use only counts and sums.
	Dominates []uint64
}

// ImmediateDominators computes the immediate dominator of every block
// reachable from the function entry.
//
// This implements the iterative algorithm of Cooper, Harvey, and
// Kennedy, "A Simple, Fast Dominance Algorithm", 2001, with one
// deviation: nodes are processed in forward DFS order rather than
// reverse post-order, and the intersect walk compares DFS indices.
// Edges leaving the block map are ignored.
func (f *Function) ImmediateDominators() map[uint64]uint64 {
	// A DFS from the entry yields the node ordering and, for each
	// node, its predecessors.
	preds := make(map[uint64][]uint64)
	seen := make(map[uint64]bool)
	ordering := make([]uint64, 0, len(f.Blocks))
	stack := []uint64{f.StartAddr}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[v] {
			continue
		}
		b, ok := f.Blocks[v]
		if !ok {
			continue
		}
		seen[v] = true
		ordering = append(ordering, v)
		for _, d := range b.Dests() {
			if _, ok := f.Blocks[d]; !ok {
				continue
			}
			stack = append(stack, d)
			preds[d] = append(preds[d], v)
		}
	}

	idx := make(map[uint64]int, len(ordering))
	for i, v := range ordering {
		idx[v] = i
	}

	idoms := make(map[uint64]uint64, len(ordering))
	idoms[f.StartAddr] = f.StartAddr

	for changed := true; changed; {
		changed = false
		for _, b := range ordering[1:] {
			bpreds := preds[b]

			first := uint64(0)
			found := false
			for _, p := range bpreds {
				if _, ok := idoms[p]; ok {
					first = p
					found = true
					break
				}
			}
			if !found {
				continue
			}

			newIdom := first
			for _, p := range bpreds {
				if p == first {
					continue
				}
				if _, ok := idoms[p]; ok {
					newIdom = intersect(idoms, ordering, idx, p, newIdom)
				}
			}

			if old, ok := idoms[b]; !ok || old != newIdom {
				idoms[b] = newIdom
				changed = true
			}
		}
	}

	return idoms
}

// intersect finds the common dominator of b1 and b2 by walking both
// fingers toward the entry. DFS indices grow away from the entry, so
// the deeper finger is the one with the larger index.
func intersect(idoms map[uint64]uint64, ordering []uint64, idx map[uint64]int, b1, b2 uint64) uint64 {
	f1, f2 := idx[b1], idx[b2]
	for f1 != f2 {
		for f1 > f2 {
			f1 = idx[idoms[ordering[f1]]]
		}
		for f2 > f1 {
			f2 = idx[idoms[ordering[f2]]]
		}
	}
	return ordering[f1]
}

// Dominators computes the full dominator records for the function:
// for each reachable node, its immediate dominator and the list of
// nodes it dominates.
func (f *Function) Dominators() map[uint64]*Dominates {
	idoms := f.ImmediateDominators()
	dominators := make(map[uint64]*Dominates, len(idoms))

	record := func(n uint64) *Dominates {
		d := dominators[n]
		if d == nil {
			d = &Dominates{}
			if n != f.StartAddr {
				d.Parent = idoms[n]
				d.HasParent = true
			}
			dominators[n] = d
		}
		return d
	}

	for c, p := range idoms {
		// Walk the dominator chain from c's immediate dominator
		// up to the entry, crediting c to every ancestor.
		pDom := p
		for {
			npDom := idoms[pDom]
			ent := record(pDom)
			ent.Dominates = append(ent.Dominates, c)
			if pDom == npDom {
				break
			}
			pDom = npDom
		}
		record(c)
	}
	return dominators
}

// Reachable returns the set of blocks reachable from startAddr by a
// forward DFS over successor edges. Edges leaving the block map are
// skipped; startAddr itself is always included.
func (f *Function) Reachable(startAddr uint64) map[uint64]bool {
	reachable := make(map[uint64]bool)
	stack := []uint64{startAddr}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reachable[v] {
			continue
		}
		b, ok := f.Blocks[v]
		if !ok && v != startAddr {
			continue
		}
		reachable[v] = true
		if ok {
			stack = append(stack, b.Dests()...)
		}
	}
	return reachable
}
