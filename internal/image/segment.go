// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package image

import (
	"fmt"
	"sort"
)

// cstringWindow is how many bytes CString scans when the caller does
// not know the string's length.
const cstringWindow = 16

// RangeNotFoundError indicates an address range covered by no segment.
type RangeNotFoundError struct {
	Start, End uint64
}

func (e *RangeNotFoundError) Error() string {
	return fmt.Sprintf("range %#x-%#x not found in any segment", e.Start, e.End)
}

// UninitialisedRangeError indicates an address range that falls
// within a segment but beyond its initialised bytes (e.g. .bss).
type UninitialisedRangeError struct {
	Start, End uint64
}

func (e *UninitialisedRangeError) Error() string {
	return fmt.Sprintf("range %#x-%#x contains uninitialised data", e.Start, e.End)
}

// A Segment is a contiguous address range of the program image. Bytes
// may be shorter than the range; the tail is uninitialised.
type Segment struct {
	Start, End uint64
	Name       string
	Bytes      []byte
}

// Segments is an ordered, non-overlapping collection of segments
// supporting typed reads against program addresses.
type Segments struct {
	segs []Segment
}

// NewSegments constructs a Segments store. The segments are sorted by
// start address; the loader guarantees they do not overlap.
func NewSegments(segs []Segment) *Segments {
	sort.Slice(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
	return &Segments{segs}
}

// Segment returns the segment wholly containing [start, end).
func (s *Segments) Segment(start, end uint64) (*Segment, error) {
	lower, upper := 0, len(s.segs)
	for lower < upper {
		mid := lower + (upper-lower)/2
		seg := &s.segs[mid]
		if seg.Start <= start && end <= seg.End {
			return seg, nil
		}
		if start >= seg.End {
			lower = mid + 1
		} else if end <= seg.Start {
			upper = mid
		} else {
			break
		}
	}
	return nil, &RangeNotFoundError{start, end}
}

// Bytes returns the initialised bytes in [start, end).
func (s *Segments) Bytes(start, end uint64) ([]byte, error) {
	seg, err := s.Segment(start, end)
	if err != nil {
		return nil, err
	}
	lo, hi := start-seg.Start, end-seg.Start
	if uint64(len(seg.Bytes)) < hi {
		return nil, &UninitialisedRangeError{start, end}
	}
	return seg.Bytes[lo:hi], nil
}

// Int16 reads a 16-bit integer at addr.
func (s *Segments) Int16(addr uint64, e Endian) (int16, error) {
	b, err := s.Bytes(addr, addr+2)
	if err != nil {
		return 0, err
	}
	return int16(e.ByteOrder().Uint16(b)), nil
}

// Int32 reads a 32-bit integer at addr.
func (s *Segments) Int32(addr uint64, e Endian) (int32, error) {
	b, err := s.Bytes(addr, addr+4)
	if err != nil {
		return 0, err
	}
	return int32(e.ByteOrder().Uint32(b)), nil
}

// Int64 reads a 64-bit integer at addr.
func (s *Segments) Int64(addr uint64, e Endian) (int64, error) {
	b, err := s.Bytes(addr, addr+8)
	if err != nil {
		return 0, err
	}
	return int64(e.ByteOrder().Uint64(b)), nil
}

// CString scans forward from addr for a NUL-terminated string of
// printable ASCII (alphanumeric, punctuation, or whitespace). limit
// bounds the scan; limit <= 0 uses the default window. The returned
// slice excludes the terminator. A non-string byte before the NUL
// yields (nil, nil); scanning past the segment's initialised bytes is
// an error.
func (s *Segments) CString(addr uint64, limit int) ([]byte, error) {
	seg, err := s.Segment(addr, addr+1)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = cstringWindow
	}
	lo := addr - seg.Start
	hi := lo + uint64(limit)
	if uint64(len(seg.Bytes)) < hi {
		return nil, &UninitialisedRangeError{addr, addr}
	}

	b := seg.Bytes[lo:hi]
	for i, c := range b {
		switch {
		case isCStringByte(c):
			continue
		case c == 0:
			return b[:i], nil
		}
		break
	}
	return nil, nil
}

func isCStringByte(c byte) bool {
	switch {
	case '0' <= c && c <= '9', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		return true
	case '!' <= c && c <= '/', ':' <= c && c <= '@', '[' <= c && c <= '`', '{' <= c && c <= '~':
		return true
	case c == ' ', c == '\t', c == '\n', c == '\v', c == '\f', c == '\r':
		return true
	}
	return false
}
