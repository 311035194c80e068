// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package analysis ranks the functions of a loaded image by how much
// of their control flow is gated on comparisons of static string
// data.
package analysis

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/aclements/go-moremath/stats"

	"strngr/internal/image"
	"strngr/internal/topk"
)

// FunctionScores is one ranked function: its summed score and the
// per-block contributions.
type FunctionScores struct {
	Name     string
	MaxScore float64
	Scores   map[uint64]float64
}

// Run analyses img and writes the ranked report for the count
// highest-scoring functions to w.
func Run(img *image.Image, count int, w io.Writer) error {
	cmps, err := StaticDataComparisons(img)
	if err != nil {
		return err
	}

	top := topk.New(count, func(a, b *FunctionScores) bool {
		return a.MaxScore < b.MaxScore
	})

	for _, fa := range sortedKeys(img.Functions) {
		f := img.Functions[fa]
		scores := ComputeScoring(f, cmps.BlockAnalyses)

		maxScore := 0.0
		for _, s := range scores {
			maxScore += s
		}

		top.Insert(&FunctionScores{
			Name:     f.Name,
			MaxScore: maxScore,
			Scores:   scores,
		})
	}

	ranked := top.Items()
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].MaxScore < ranked[j].MaxScore
	})

	for _, fs := range ranked {
		fmt.Fprintf(w, "[f] %s %.2f:\n", fs.Name, fs.MaxScore)
		for _, block := range blocksByScore(fs.Scores) {
			info, ok := cmps.BlockAnalyses[block]
			if !ok {
				continue
			}
			via := calleeName(img, info.Function)
			for _, arg := range info.StringArguments {
				fmt.Fprintf(w, "\t%-16s : %6.2f : via %s\n",
					escapeASCII(arg), fs.Scores[block], via)
			}
		}
		fmt.Fprintln(w)
	}

	if len(ranked) > 0 {
		sample := stats.Sample{Xs: make([]float64, len(ranked))}
		for i, fs := range ranked {
			sample.Xs[i] = fs.MaxScore
		}
		fmt.Fprintf(w, "%d functions; score mean %.2f, median %.2f, p90 %.2f\n",
			len(ranked), sample.Mean(), sample.Quantile(0.5), sample.Quantile(0.9))
	}

	return nil
}

// blocksByScore returns block addresses in ascending score order,
// with address order breaking ties.
func blocksByScore(scores map[uint64]float64) []uint64 {
	blocks := sortedKeys(scores)
	sort.SliceStable(blocks, func(i, j int) bool {
		return scores[blocks[i]] < scores[blocks[j]]
	})
	return blocks
}

func calleeName(img *image.Image, addr uint64) string {
	if f, ok := img.Functions[addr]; ok {
		return f.Name
	}
	return fmt.Sprintf("%#x", addr)
}

// escapeASCII renders a string argument with non-printable bytes
// escaped.
func escapeASCII(b []byte) string {
	q := strconv.Quote(string(b))
	return q[1 : len(q)-1]
}
