// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package x64asm

import (
	"github.com/gojit/x64asm/internal/pagebuffer"
	"github.com/gojit/x64asm/internal/reloc"
)

// AssemblyModifier is the cursor handed to the fn passed to Alter: a
// DynasmLabelApi whose Push/Extend/label operations act directly on the
// already-committed, temporarily-writable buffer instead of the staging
// area. It shares the parent Assembler's label table and relocation
// engine, so labels and relocations defined during an alter scope observe
// and are observed by the rest of the program.
type AssemblyModifier struct {
	assembler *Assembler
	session   *pagebuffer.AlterSession
	cursor    uint64
}

var _ DynasmLabelApi = (*AssemblyModifier)(nil)

// Offset returns the modifier's current cursor position.
func (m *AssemblyModifier) Offset() AssemblyOffset { return AssemblyOffset(m.cursor) }

// Goto repositions the cursor, without bounds checking; Push/Extend past
// the end of the committed buffer panic with IndexOutOfRangeError.
func (m *AssemblyModifier) Goto(offset AssemblyOffset) { m.cursor = uint64(offset) }

// Check panics if the cursor is past offset, catching an alter block that
// overran its intended edit region.
func (m *AssemblyModifier) Check(offset AssemblyOffset) {
	if m.cursor > uint64(offset) {
		panic(IndexOutOfRangeError{Offset: m.cursor, Len: uint64(offset)})
	}
}

// CheckExact panics unless the cursor is exactly offset.
func (m *AssemblyModifier) CheckExact(offset AssemblyOffset) {
	if m.cursor != uint64(offset) {
		panic(IndexOutOfRangeError{Offset: m.cursor, Len: uint64(offset)})
	}
}

// Push overwrites the byte at the cursor and advances it.
func (m *AssemblyModifier) Push(value byte) {
	buf := m.session.Bytes()
	if m.cursor >= uint64(len(buf)) {
		panic(IndexOutOfRangeError{Offset: m.cursor, Len: uint64(len(buf))})
	}
	buf[m.cursor] = value
	m.cursor++
}

// Extend overwrites len(bytes) bytes starting at the cursor and advances it.
func (m *AssemblyModifier) Extend(bytes []byte) {
	for _, b := range bytes {
		m.Push(b)
	}
}

// Align advances the cursor, overwriting with fill, until it is a multiple
// of multiple.
func (m *AssemblyModifier) Align(multiple int) {
	if multiple <= 0 {
		return
	}
	for m.cursor%uint64(multiple) != 0 {
		m.Push(0x90)
	}
}

// GlobalLabel defines name at the cursor in the shared label table.
func (m *AssemblyModifier) GlobalLabel(name string) {
	if err := m.assembler.labels.DefineGlobal(name, m.cursor); err != nil {
		panic(err)
	}
}

// LocalLabel defines name at the cursor, immediately patching every
// forward reference waiting on it into the committed buffer.
func (m *AssemblyModifier) LocalLabel(name string) {
	pending := m.assembler.labels.DefineLocal(name, m.cursor)
	buf := m.session.Bytes()
	for _, loc := range pending {
		if err := m.assembler.relocs.WriteDisplacement(buf, 0, loc, m.cursor); err != nil {
			panic(err)
		}
	}
}

// DynamicLabel defines the label identified by id at the cursor.
func (m *AssemblyModifier) DynamicLabel(id DynamicLabel) {
	if err := m.assembler.labels.DefineDynamic(id.id, m.cursor); err != nil {
		panic(err)
	}
}

// GlobalReloc enqueues a patch site at the cursor, resolved when Alter's
// fn returns.
func (m *AssemblyModifier) GlobalReloc(name string, kind RelocationKind) {
	loc := reloc.PatchLoc{End: m.cursor, Kind: kind}
	m.assembler.relocs.EnqueueGlobal(loc, name)
}

// DynamicReloc enqueues a patch site at the cursor, resolved when Alter's
// fn returns.
func (m *AssemblyModifier) DynamicReloc(id DynamicLabel, kind RelocationKind) {
	loc := reloc.PatchLoc{End: m.cursor, Kind: kind}
	m.assembler.relocs.EnqueueDynamic(loc, id.id)
}

// ForwardReloc records a patch site at the cursor, resolved the next time
// name is defined with LocalLabel.
func (m *AssemblyModifier) ForwardReloc(name string, kind RelocationKind) {
	loc := reloc.PatchLoc{End: m.cursor, Kind: kind}
	m.assembler.labels.EnqueueForwardLocal(name, loc)
}

// BackwardReloc immediately patches a reference to the most recent
// definition of name.
func (m *AssemblyModifier) BackwardReloc(name string, kind RelocationKind) {
	target, ok := m.assembler.labels.LookupLocalBackward(name)
	if !ok {
		panic(UndefinedLocalLabelError{Name: name})
	}
	loc := reloc.PatchLoc{End: m.cursor, Kind: kind}
	buf := m.session.Bytes()
	if err := m.assembler.relocs.WriteDisplacement(buf, 0, loc, target); err != nil {
		panic(err)
	}
}

// BareReloc immediately patches an absolute relocation at the cursor.
func (m *AssemblyModifier) BareReloc(target uint64, kind RelocationKind) {
	loc := reloc.PatchLoc{End: m.cursor, Kind: kind}
	buf := m.session.Bytes()
	if err := m.assembler.relocs.WriteAbsolute(buf, 0, loc, target); err != nil {
		panic(err)
	}
}

// UncommittedModifier is the cursor handed to the fn passed to
// AlterUncommitted: a plain DynasmApi overwriting the staging area
// directly. It carries no access to the label table or relocation engine —
// labels and relocations may only be emitted through the normal
// Assembler methods, which append rather than overwrite.
type UncommittedModifier struct {
	base   *baseAssembler
	cursor uint64
}

var _ DynasmApi = (*UncommittedModifier)(nil)

// Offset returns the modifier's current cursor position, counted from the
// first staged byte rather than from the start of the code stream.
func (m *UncommittedModifier) Offset() AssemblyOffset { return AssemblyOffset(m.cursor) }

// Goto repositions the cursor within the staging area; offset counts from
// the first staged byte, not from the start of the code stream.
func (m *UncommittedModifier) Goto(offset AssemblyOffset) { m.cursor = uint64(offset) }

// Push overwrites the staging byte at the cursor and advances it.
func (m *UncommittedModifier) Push(value byte) {
	if m.cursor >= uint64(len(m.base.staging)) {
		panic(IndexOutOfRangeError{Offset: m.cursor, Len: uint64(len(m.base.staging))})
	}
	m.base.staging[m.cursor] = value
	m.cursor++
}

// Extend overwrites len(bytes) staging bytes starting at the cursor and
// advances it.
func (m *UncommittedModifier) Extend(bytes []byte) {
	for _, b := range bytes {
		m.Push(b)
	}
}
