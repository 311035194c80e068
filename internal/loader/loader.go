// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loader turns a binary on disk into an image ready for
// analysis, using an external disassembler to recover segments,
// functions, and basic blocks.
package loader

import (
	"fmt"

	"strngr/internal/image"
)

// A Loader produces a typed image from a path to a binary.
type Loader interface {
	Load(path string) (*image.Image, error)
}

// LoadError wraps a failure of the external loader pipeline.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
