// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analysis

import (
	"strngr/internal/image"
)

// ComputeScoring assigns a score to every block of f. Blocks without
// a retained comparison score zero. A block with one scores its
// instruction count, plus a coverage bonus when the branch target's
// dominator subtree is entered only through this block: the summed
// instruction count of the dominated nodes, scaled by the fraction
// of the target's reachable subgraph they represent.
func ComputeScoring(f *image.Function, comparisons map[uint64]*BlockAnalysis) map[uint64]float64 {
	dominators := f.Dominators()

	// A comparison block qualifies when its taken destination has a
	// dominator record rooted at the block itself (or at nothing).
	// Some destinations are not reachable from the entry and have
	// no record at all.
	uniquelyReachable := make(map[uint64]*image.Dominates)
	for _, sa := range sortedKeys(f.Blocks) {
		v, ok := comparisons[sa]
		if !ok {
			continue
		}
		doms, ok := dominators[v.Destination]
		if !ok {
			continue
		}
		if !doms.HasParent || doms.Parent == sa {
			uniquelyReachable[sa] = doms
			delete(dominators, v.Destination)
		}
	}

	baseScores := make(map[uint64]float64, len(f.Blocks))
	for k, b := range f.Blocks {
		baseScores[k] = b.BaseScore()
	}

	scores := make(map[uint64]float64, len(baseScores))
	for k, score := range baseScores {
		doms, ok := uniquelyReachable[k]
		if !ok {
			scores[k] = 0
			continue
		}
		if len(doms.Dominates) == 0 {
			scores[k] = score
			continue
		}
		coverage := 0.0
		for _, d := range doms.Dominates {
			coverage += baseScores[d]
		}
		dest := comparisons[k].Destination
		reachable := len(f.Reachable(dest))
		scale := float64(len(doms.Dominates)) / float64(reachable)
		scores[k] = score + scale*coverage
	}
	return scores
}
