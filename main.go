// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command strngr ranks the functions of a stripped binary by the
// likelihood that they contain logic gated on string comparisons.
//
// It drives an external disassembler to recover segments, functions,
// and basic blocks, then looks for blocks that branch on the result
// of a helper call taking string-literal arguments. Functions are
// scored by how much of their control flow such branches dominate.
//
// Usage: strngr [-ida path] [-ida-args args] [-n count] binary
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"strngr/internal/analysis"
	"strngr/internal/loader"
)

var (
	idaPath = flag.String("ida", "idal", "use IDA binary at `path`")
	idaArgs = flag.String("ida-args", "", "extra arguments for the disassembler")
	count   int
)

func init() {
	flag.IntVar(&count, "count", 100, "number of functions to display")
	flag.IntVar(&count, "n", 100, "shorthand for -count")
}

func main() {
	log.SetPrefix("strngr: ")
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] binary\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	l, err := loader.NewIDA(*idaPath, *idaArgs)
	if err != nil {
		log.Fatal(err)
	}

	img, err := l.Load(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	if err := analysis.Run(img, count, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
