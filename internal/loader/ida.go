// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/kballard/go-shellquote"

	"strngr/internal/image"
)

// exportScript is the IDAPython program run in batch mode to dump
// segments and function flow charts as JSON. The %s is the output
// path.
const exportScript = `
from idaapi import *
from idautils import *

import base64
import json

def get_meta():
    info = idaapi.get_inf_structure()

    try:
        cpuname = info.procname.lower()
    except:
        cpuname = info.procName.lower()

    try:
        is_be = idaapi.cvar.inf.is_be()
    except:
        is_be = idaapi.cvar.inf.mf

    meta = dict()
    meta['bits'] = 'Bits64' if info.is_64bit() else 'Bits32'
    meta['endian'] = 'Big' if is_be else 'Little'

    if cpuname.startswith('arm'):
        meta['arch'] = 'Arm'
    elif cpuname.startswith('mips'):
        meta['arch'] = 'Mips'
    else:
        meta['arch'] = 'NotSupported'

    return meta


autoWait()

img = get_meta()
img['segments'] = []
img['functions'] = []

for ea in Segments():
    seg = dict()
    seg['name'] = SegName(ea)
    seg['start_addr'] = SegStart(ea)
    seg['end_addr'] = SegEnd(ea)

    # Uninitialised segments (e.g. .bss) have no bytes to fetch.
    try:
        seg['bytes'] = base64.b64encode(GetManyBytes(SegStart(ea), SegEnd(ea) - SegStart(ea)))
    except:
        seg['bytes'] = ''

    img['segments'].append(seg)

    for fn_ea in Functions(SegStart(ea), SegEnd(ea)):
        fn = get_func(fn_ea)

        out = dict()
        out['name'] = GetFunctionName(fn_ea)
        out['start_addr'] = fn.startEA
        out['end_addr'] = fn.endEA
        out['blocks'] = []

        for fb in FlowChart(fn):
            block = dict()
            block['start_addr'] = fb.startEA
            block['end_addr'] = fb.endEA
            block['t_reg'] = GetReg(fb.startEA, 'T') == 1
            block['dests'] = [succ.startEA for succ in fb.succs()]
            out['blocks'].append(block)

        img['functions'].append(out)


with open('%s', 'w+') as f:
    json.dump(img, f)
Exit(0)
`

// IDA loads binaries by running IDA in batch mode with an export
// script and lifting the resulting JSON dump.
type IDA struct {
	path      string
	extraArgs []string
}

// NewIDA returns a loader invoking the IDA binary at path. extraArgs
// is split shell-style and passed through on the command line.
func NewIDA(path, extraArgs string) (*IDA, error) {
	split, err := shellquote.Split(extraArgs)
	if err != nil {
		return nil, fmt.Errorf("parsing disassembler arguments: %w", err)
	}
	return &IDA{path: path, extraArgs: split}, nil
}

func (l *IDA) Load(path string) (*image.Image, error) {
	img, err := l.load(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return img, nil
}

func (l *IDA) load(path string) (*image.Image, error) {
	out, err := os.CreateTemp("", "strngr-*.json")
	if err != nil {
		return nil, err
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	script, err := os.CreateTemp("", "strngr-*.py")
	if err != nil {
		return nil, err
	}
	defer os.Remove(script.Name())
	if _, err := fmt.Fprintf(script, exportScript, outPath); err != nil {
		script.Close()
		return nil, err
	}
	if err := script.Close(); err != nil {
		return nil, err
	}

	args := append([]string{}, l.extraArgs...)
	args = append(args, "-A", "-S"+script.Name(), path)
	cmd := exec.Command(l.path, args...)
	if msg, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s: %v: %s", l.path, err, msg)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, err
	}

	var raw rawImage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing export: %w", err)
	}
	return liftImage(&raw)
}
