// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package x64asm is the runtime core of a dynamic x86-64 machine-code
// assembler. An encoder (not part of this package) translates mnemonics
// into byte streams and calls into the emission interface below; this
// package resolves symbolic label references, manages the writable/
// executable lifecycle of the backing pages, and exposes handles through
// which assembled code can be invoked while further code is still being
// produced.
package x64asm

import "github.com/gojit/x64asm/internal/reloc"

// AssemblyOffset is a nonnegative byte offset from the start of the
// logical code region. It is monotone non-decreasing during emission and
// stable across commits.
type AssemblyOffset uint64

// DynamicLabel is an opaque handle to an integer-indexed label, suitable
// for generated code where names are synthesized rather than known at
// encoder-authoring time.
type DynamicLabel struct{ id int }

// RelocationKind tags the width of a relocation field and the number of
// instruction bytes that follow it. Construct one with Byte, Word, DWord,
// or QWord.
type RelocationKind = reloc.Kind

// Byte is a one-byte relocation field; t is the number of instruction
// bytes emitted after the field.
func Byte(t uint8) RelocationKind { return reloc.Byte(t) }

// Word is a two-byte relocation field.
func Word(t uint8) RelocationKind { return reloc.Word(t) }

// DWord is a four-byte relocation field.
func DWord(t uint8) RelocationKind { return reloc.DWord(t) }

// QWord is an eight-byte relocation field.
func QWord(t uint8) RelocationKind { return reloc.QWord(t) }

// DynasmApi is the byte-sink half of the emission interface consumed by an
// instruction encoder.
type DynasmApi interface {
	Offset() AssemblyOffset
	Push(value byte)
	Extend(bytes []byte)
}

// DynasmLabelApi is the label-sink half of the emission interface. Both
// Assembler and AssemblyModifier implement it, sharing the relocation
// displacement math; they differ only in whether Push/Extend write to the
// staging area or directly into the committed buffer.
type DynasmLabelApi interface {
	DynasmApi

	Align(multiple int)
	GlobalLabel(name string)
	LocalLabel(name string)
	DynamicLabel(id DynamicLabel)
	GlobalReloc(name string, kind RelocationKind)
	ForwardReloc(name string, kind RelocationKind)
	BackwardReloc(name string, kind RelocationKind)
	DynamicReloc(id DynamicLabel, kind RelocationKind)
	BareReloc(target uint64, kind RelocationKind)
}
