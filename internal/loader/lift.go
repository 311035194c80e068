// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"encoding/base64"
	"fmt"

	"strngr/internal/arm"
	"strngr/internal/image"
)

// rawImage mirrors the JSON emitted by the export script.
type rawImage struct {
	Arch      string        `json:"arch"`
	Bits      string        `json:"bits"`
	Endian    string        `json:"endian"`
	Segments  []rawSegment  `json:"segments"`
	Functions []rawFunction `json:"functions"`
}

type rawSegment struct {
	StartAddr uint64 `json:"start_addr"`
	EndAddr   uint64 `json:"end_addr"`
	Name      string `json:"name"`
	Bytes     string `json:"bytes"`
}

type rawFunction struct {
	Name      string     `json:"name"`
	StartAddr uint64     `json:"start_addr"`
	EndAddr   uint64     `json:"end_addr"`
	Blocks    []rawBlock `json:"blocks"`
}

type rawBlock struct {
	StartAddr uint64   `json:"start_addr"`
	EndAddr   uint64   `json:"end_addr"`
	TReg      bool     `json:"t_reg"`
	Dests     []uint64 `json:"dests"`
}

// liftImage converts the raw export into a typed image, decoding
// every block of every function.
func liftImage(raw *rawImage) (*image.Image, error) {
	arch, err := parseArch(raw.Arch)
	if err != nil {
		return nil, err
	}
	bits, err := parseBits(raw.Bits)
	if err != nil {
		return nil, err
	}
	endian, err := parseEndian(raw.Endian)
	if err != nil {
		return nil, err
	}

	segs := make([]image.Segment, len(raw.Segments))
	for i, rs := range raw.Segments {
		b, err := base64.StdEncoding.DecodeString(rs.Bytes)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", rs.Name, err)
		}
		segs[i] = image.Segment{
			Start: rs.StartAddr,
			End:   rs.EndAddr,
			Name:  rs.Name,
			Bytes: b,
		}
	}

	img := &image.Image{
		Arch:      arch,
		Bits:      bits,
		Endian:    endian,
		Segments:  image.NewSegments(segs),
		Functions: make(map[uint64]*image.Function),
	}

	if arch != image.ArchArm {
		return nil, &image.UnsupportedArchError{Arch: arch}
	}

	for _, rf := range raw.Functions {
		f, err := liftFunction(img, &rf)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", rf.Name, err)
		}
		img.Functions[f.StartAddr] = f
	}
	return img, nil
}

func liftFunction(img *image.Image, rf *rawFunction) (*image.Function, error) {
	blocks := make(map[uint64]image.Block, len(rf.Blocks))
	for _, rb := range rf.Blocks {
		data, err := img.Segments.Bytes(rb.StartAddr, rb.EndAddr)
		if err != nil {
			return nil, err
		}
		blocks[rb.StartAddr] = arm.NewBlock(rb.StartAddr, rb.EndAddr, rb.Dests, rb.TReg, data, img.Endian)
	}
	return &image.Function{
		Name:      rf.Name,
		StartAddr: rf.StartAddr,
		EndAddr:   rf.EndAddr,
		Blocks:    blocks,
	}, nil
}

func parseArch(s string) (image.Arch, error) {
	switch s {
	case "Arm":
		return image.ArchArm, nil
	case "Mips":
		return image.ArchMips, nil
	case "NotSupported":
		return image.ArchNotSupported, nil
	}
	return 0, fmt.Errorf("unknown architecture %q", s)
}

func parseBits(s string) (image.Bits, error) {
	switch s {
	case "Bits32":
		return image.Bits32, nil
	case "Bits64":
		return image.Bits64, nil
	}
	return 0, fmt.Errorf("unknown bit width %q", s)
}

func parseEndian(s string) (image.Endian, error) {
	switch s {
	case "Little":
		return image.Little, nil
	case "Big":
		return image.Big, nil
	}
	return 0, fmt.Errorf("unknown endianness %q", s)
}
