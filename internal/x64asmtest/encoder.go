// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package x64asmtest is a minimal, deliberately narrow x86-64 instruction
// encoder used only by this module's own tests and its demo command. A
// real encoder (the mnemonic-to-bytes translation dynasm-rs's macro layer
// performs) is out of scope for the assembler core; this package exists
// only to produce realistic byte sequences to exercise the core against,
// the way wagon's native_compile_test.go stubs a mockInstructionBuilder
// rather than linking a real one.
package x64asmtest

import "github.com/gojit/x64asm"

// MovEaxImm32 emits `mov eax, imm32` (B8 id).
func MovEaxImm32(api x64asm.DynasmApi, imm32 uint32) {
	api.Push(0xB8)
	api.Extend(leU32(imm32))
}

// AddEaxImm32 emits `add eax, imm32` (05 id).
func AddEaxImm32(api x64asm.DynasmApi, imm32 uint32) {
	api.Push(0x05)
	api.Extend(leU32(imm32))
}

// Ret emits `ret` (C3).
func Ret(api x64asm.DynasmApi) { api.Push(0xC3) }

// Nop emits a single `nop` (90).
func Nop(api x64asm.DynasmApi) { api.Push(0x90) }

// JmpRel32Forward emits `jmp rel32` (E9 id) targeting a local label not
// yet defined, via api.ForwardReloc. The 4-byte placeholder is pushed
// here, before the relocation is registered, matching the convention
// that a relocation field must already exist in the stream at the
// moment its PatchLoc is constructed.
func JmpRel32Forward(api x64asm.DynasmLabelApi, label string) {
	api.Push(0xE9)
	api.Extend([]byte{0, 0, 0, 0})
	api.ForwardReloc(label, x64asm.DWord(0))
}

// JmpRel32Backward emits `jmp rel32` (E9 id) targeting a local label
// already defined.
func JmpRel32Backward(api x64asm.DynasmLabelApi, label string) {
	api.Push(0xE9)
	api.Extend([]byte{0, 0, 0, 0})
	api.BackwardReloc(label, x64asm.DWord(0))
}

// JmpRel8Backward emits `jmp rel8` (EB cb) targeting a local label
// already defined.
func JmpRel8Backward(api x64asm.DynasmLabelApi, label string) {
	api.Push(0xEB)
	api.Push(0)
	api.BackwardReloc(label, x64asm.Byte(0))
}

// CallRel32Global emits `call rel32` (E8 id) targeting a global label,
// resolved at the next commit.
func CallRel32Global(api x64asm.DynasmLabelApi, name string) {
	api.Push(0xE8)
	api.Extend([]byte{0, 0, 0, 0})
	api.GlobalReloc(name, x64asm.DWord(0))
}

func leU32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
