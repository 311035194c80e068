// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analysis

import (
	"strings"
	"testing"

	"strngr/internal/image"
)

func TestRunReport(t *testing.T) {
	// One function whose entry block compares "hello" and gates
	// the rest of the function.
	cmp := &testBlock{
		start: 0x1000, end: 0x1010, dests: []uint64{0x1100, 0x1200}, score: 4,
		info: &ZCondBranchAnalysis{Function: 0x2000, Arguments: strArg(0x3000), Destination: 0x1100},
	}
	tail := &testBlock{start: 0x1100, end: 0x1110, score: 3}
	other := &testBlock{start: 0x1200, end: 0x1210, score: 2}

	img := testImage(cmp, tail, other)
	img.Functions[0x2000] = &image.Function{
		Name: "strcmp", StartAddr: 0x2000, EndAddr: 0x2010,
		Blocks: map[uint64]image.Block{
			0x2000: &testBlock{start: 0x2000, end: 0x2010, score: 1},
		},
	}

	var out strings.Builder
	if err := Run(img, 10, &out); err != nil {
		t.Fatal(err)
	}
	report := out.String()

	if !strings.Contains(report, "[f] check") {
		t.Errorf("missing function header:\n%s", report)
	}
	if !strings.Contains(report, "via strcmp") {
		t.Errorf("missing callee annotation:\n%s", report)
	}
	if !strings.Contains(report, "hello") {
		t.Errorf("missing string argument:\n%s", report)
	}
	if !strings.Contains(report, "functions; score mean") {
		t.Errorf("missing summary footer:\n%s", report)
	}
}

func TestEscapeASCII(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte("hello"), "hello"},
		{[]byte("a\tb"), `a\tb`},
		{[]byte{0x01, 'x'}, `\x01x`},
	}
	for _, test := range tests {
		if got := escapeASCII(test.in); got != test.want {
			t.Errorf("escapeASCII(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}
