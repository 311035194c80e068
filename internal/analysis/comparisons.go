// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analysis

import (
	"bytes"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"strngr/internal/image"
)

// argCount is how many argument registers the evaluator recovers.
// Comparison helpers of interest (strcmp, strncmp, memcmp) take at
// most three arguments.
const argCount = 3

// singleCalleeBonus scales a function's score when every retained
// comparison in it calls the same helper.
const singleCalleeBonus = 1.2

// A BlockAnalysis is a retained string comparison: the helper called,
// the successor taken on equality, and the string literals passed.
type BlockAnalysis struct {
	Function        uint64
	Destination     uint64
	StringArguments [][]byte
}

// ComparisonAnalyses aggregates the retained comparisons of a whole
// image: a score per helper callee and the per-block analyses keyed
// by block start address.
type ComparisonAnalyses struct {
	FunctionScores map[uint64]float64
	BlockAnalyses  map[uint64]*BlockAnalysis
}

// analyseBlock runs the zero-conditional evaluator on a block and
// promotes constant arguments that point at C strings.
func analyseBlock(img *image.Image, b image.Block) (*ZCondBranchAnalysis, error) {
	ev, ok := b.(Evaluator)
	if !ok {
		return nil, nil
	}
	info, err := ev.ZCondArguments(argCount, img.Segments, img.Endian)
	if err != nil || info == nil {
		return nil, err
	}
	for i, arg := range info.Arguments {
		if arg.Kind != AccessConstant {
			continue
		}
		addr := uint64(arg.Const)
		if s, err := img.Segments.CString(addr, 0); err == nil && s != nil {
			info.Arguments[i] = Access{Kind: AccessString, Addr: addr, Len: len(s)}
		}
	}
	return info, nil
}

// StaticDataComparisons scans every block of every function for
// comparisons of static string data: a helper call whose result is
// branched on, passed at least one string literal and at least one
// non-constant argument.
func StaticDataComparisons(img *image.Image) (*ComparisonAnalyses, error) {
	scores := make(map[uint64]float64)
	cstringBlocks := make(map[uint64]*BlockAnalysis)

	for _, fa := range sortedKeys(img.Functions) {
		f := img.Functions[fa]
		fscores := make(map[uint64]float64)

		for _, ba := range sortedKeys(f.Blocks) {
			b := f.Blocks[ba]
			info, err := analyseBlock(img, b)
			if err != nil {
				return nil, err
			}
			if info == nil {
				continue
			}

			var strs [][]byte
			nregs, nstack := 0, 0
			for _, arg := range info.Arguments {
				if arg.Kind == AccessNever {
					break
				}
				switch arg.Kind {
				case AccessStack:
					nstack++
				case AccessRegister:
					nregs++
				case AccessString:
					s, err := img.Segments.CString(arg.Addr, arg.Len+1)
					if err != nil {
						return nil, err
					}
					strs = append(strs, s)
				}
			}

			if len(strs) == 0 || nregs+nstack < 1 || !allComparable(strs) {
				continue
			}

			fscores[info.Function] += 1.0
			cstringBlocks[b.StartAddr()] = &BlockAnalysis{
				Function:        info.Function,
				Destination:     info.Destination,
				StringArguments: strs,
			}
		}

		if len(fscores) == 1 {
			for k := range fscores {
				fscores[k] *= singleCalleeBonus
			}
		}
		for k, v := range fscores {
			scores[k] += v
		}
	}

	return &ComparisonAnalyses{
		FunctionScores: scores,
		BlockAnalyses:  cstringBlocks,
	}, nil
}

// allComparable rejects strings that look like printf-family format
// strings: a string is out only when it contains both a '%' and a
// TAB.
func allComparable(strs [][]byte) bool {
	for _, s := range strs {
		if bytes.ContainsRune(s, '%') && bytes.ContainsRune(s, '\t') {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	ks := maps.Keys(m)
	slices.Sort(ks)
	return ks
}
