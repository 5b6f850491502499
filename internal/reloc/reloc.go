// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reloc computes and applies PC-relative and absolute patches into
// already-emitted byte streams. It knows nothing about labels; callers
// supply the target offset once it is known, by whatever means.
package reloc

import (
	"encoding/binary"
	"fmt"
)

// Kind tags the width of a relocation field and how many bytes of the
// instruction follow it. The trailing count lets an x86-64 RIP-relative
// encoder fold the instruction-end adjustment into PatchLoc.End before a
// PatchLoc is ever constructed; the engine itself never looks past End.
type Kind struct {
	size     uint8
	trailing uint8
}

// Byte is a one-byte relocation field (trailing t bytes follow it in the instruction).
func Byte(t uint8) Kind { return Kind{size: 1, trailing: t} }

// Word is a two-byte relocation field.
func Word(t uint8) Kind { return Kind{size: 2, trailing: t} }

// DWord is a four-byte relocation field.
func DWord(t uint8) Kind { return Kind{size: 4, trailing: t} }

// QWord is an eight-byte relocation field.
func QWord(t uint8) Kind { return Kind{size: 8, trailing: t} }

// Size returns the field width in bytes: one of 1, 2, 4, 8.
func (k Kind) Size() int { return int(k.size) }

// Trailing returns the recorded trailing-byte count.
func (k Kind) Trailing() uint8 { return k.trailing }

// PatchLoc identifies a patch site: the field occupies
// [End-Kind.Size(), End) of the logical code stream.
type PatchLoc struct {
	End  uint64
	Kind Kind
}

// Start returns the offset of the first byte of the relocation field.
func (p PatchLoc) Start() uint64 { return p.End - uint64(p.Kind.size) }

// DisplacementOverflowError reports a Byte relocation whose computed
// displacement does not fit in a signed 8-bit field. It is only ever
// produced by a checked Engine; the default (unchecked) Engine truncates
// silently, matching the runtime this module is modeled on.
type DisplacementOverflowError struct {
	Loc          PatchLoc
	Displacement int64
}

func (e DisplacementOverflowError) Error() string {
	return fmt.Sprintf("reloc: displacement %d at offset %d does not fit in a signed byte", e.Displacement, e.Loc.End)
}

// Engine owns the deferred relocation queues and the shared displacement
// math used by every resolution policy (immediate backward, drained
// forward, deferred global/dynamic).
type Engine struct {
	// Checked enables bounds checking on Byte relocations. Default false,
	// matching the source behavior of silently truncating out-of-range
	// displacements.
	Checked bool

	globalRelocs  []globalReloc
	dynamicRelocs []dynamicReloc
}

type globalReloc struct {
	Loc  PatchLoc
	Name string
}

type dynamicReloc struct {
	Loc PatchLoc
	ID  int
}

// NewEngine returns an Engine with empty queues.
func NewEngine(checked bool) *Engine {
	return &Engine{Checked: checked}
}

// EnqueueGlobal records a patch site to be resolved against a global label
// at commit (or alter-scope exit) time.
func (e *Engine) EnqueueGlobal(loc PatchLoc, name string) {
	e.globalRelocs = append(e.globalRelocs, globalReloc{loc, name})
}

// EnqueueDynamic records a patch site to be resolved against a dynamic
// label at commit (or alter-scope exit) time.
func (e *Engine) EnqueueDynamic(loc PatchLoc, id int) {
	e.dynamicRelocs = append(e.dynamicRelocs, dynamicReloc{loc, id})
}

// ResolveGlobal drains the global-relocation queue, looking up each target
// with lookup and patching buf. buf holds the bytes covering the absolute
// range [bufBase, bufBase+len(buf)); every queued patch site must fall
// inside that range, which holds by construction since every commit (or
// alter exit) drains the whole queue before any further emission can move
// the patch sites out of the current staging/committed window. The queue
// is always left empty afterward, even on error, matching "staging is
// discarded on fatal error."
func (e *Engine) ResolveGlobal(buf []byte, bufBase uint64, lookup func(name string) (uint64, bool)) error {
	relocs := e.globalRelocs
	e.globalRelocs = nil
	for _, r := range relocs {
		target, ok := lookup(r.Name)
		if !ok {
			return UnknownGlobalLabelError{Name: r.Name}
		}
		if err := e.WriteDisplacement(buf, bufBase, r.Loc, target); err != nil {
			return err
		}
	}
	return nil
}

// ResolveDynamic drains the dynamic-relocation queue analogously to ResolveGlobal.
func (e *Engine) ResolveDynamic(buf []byte, bufBase uint64, lookup func(id int) (uint64, bool)) error {
	relocs := e.dynamicRelocs
	e.dynamicRelocs = nil
	for _, r := range relocs {
		target, ok := lookup(r.ID)
		if !ok {
			return UnknownDynamicLabelError{ID: r.ID}
		}
		if err := e.WriteDisplacement(buf, bufBase, r.Loc, target); err != nil {
			return err
		}
	}
	return nil
}

// field locates the relocation field of loc within buf, where buf[0]
// corresponds to absolute offset bufBase.
func field(buf []byte, bufBase uint64, loc PatchLoc) []byte {
	localEnd := loc.End - bufBase
	localStart := localEnd - uint64(loc.Kind.size)
	return buf[localStart:localEnd]
}

// WriteDisplacement computes target-loc.End (the PC-relative displacement,
// per the x86-64 convention that RIP points past the relocation field) and
// stores it, little-endian signed, into the field loc identifies within
// buf. bufBase is the absolute offset of buf[0] — the staging region's
// asmoffset, or zero for a committed buffer.
func (e *Engine) WriteDisplacement(buf []byte, bufBase uint64, loc PatchLoc, target uint64) error {
	d := int64(target) - int64(loc.End)
	f := field(buf, bufBase, loc)
	switch loc.Kind.size {
	case 1:
		if e.Checked && (d < -128 || d > 127) {
			return DisplacementOverflowError{Loc: loc, Displacement: d}
		}
		f[0] = byte(int8(d))
	case 2:
		binary.LittleEndian.PutUint16(f, uint16(int16(d)))
	case 4:
		binary.LittleEndian.PutUint32(f, uint32(int32(d)))
	case 8:
		binary.LittleEndian.PutUint64(f, uint64(d))
	default:
		panic(fmt.Sprintf("reloc: invalid relocation size %d", loc.Kind.size))
	}
	return nil
}

// WriteAbsolute stores value directly (not as a PC-relative displacement)
// into the field loc identifies within buf. It is used for bare
// relocations against an already-known runtime address, where there is no
// label to resolve and no displacement to compute.
func (e *Engine) WriteAbsolute(buf []byte, bufBase uint64, loc PatchLoc, value uint64) error {
	f := field(buf, bufBase, loc)
	switch loc.Kind.size {
	case 1:
		if e.Checked && value > 0xFF {
			return DisplacementOverflowError{Loc: loc, Displacement: int64(value)}
		}
		f[0] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(f, uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(f, uint32(value))
	case 8:
		binary.LittleEndian.PutUint64(f, value)
	default:
		panic(fmt.Sprintf("reloc: invalid relocation size %d", loc.Kind.size))
	}
	return nil
}

// UnknownGlobalLabelError reports a global relocation whose target label
// was never defined by commit time.
type UnknownGlobalLabelError struct{ Name string }

func (e UnknownGlobalLabelError) Error() string {
	return fmt.Sprintf("reloc: unknown global label %q", e.Name)
}

// UnknownDynamicLabelError reports a dynamic relocation whose slot was
// never filled by commit time.
type UnknownDynamicLabelError struct{ ID int }

func (e UnknownDynamicLabelError) Error() string {
	return fmt.Sprintf("reloc: unknown dynamic label %d", e.ID)
}

// PendingGlobal reports how many global relocations remain queued.
func (e *Engine) PendingGlobal() int { return len(e.globalRelocs) }

// PendingDynamic reports how many dynamic relocations remain queued.
func (e *Engine) PendingDynamic() int { return len(e.dynamicRelocs) }
