// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command x64asmdemo assembles a tiny x86-64 function with the core
// runtime, optionally rewrites it in place with Alter, and prints the
// resulting bytes. It hand-encodes the handful of instructions it needs
// rather than pulling in a full instruction encoder, which is out of
// scope for this module.
package main

import (
	"encoding/hex"
	"flag"
	"log"
	"os"

	"github.com/gojit/x64asm"
	"github.com/gojit/x64asm/internal/x64asmtest"
)

func main() {
	log.SetPrefix("x64asmdemo: ")
	log.SetFlags(0)

	addend := flag.Uint("addend", 4, "value added to the mov'd constant before ret")
	rewrite := flag.Uint("rewrite-addend", 0, "if nonzero, Alter the committed function to add this value instead")
	flag.Parse()

	a, err := x64asm.New()
	if err != nil {
		log.Fatalf("x64asm.New: %v", err)
	}

	a.GlobalLabel("entry")
	x64asmtest.MovEaxImm32(a, 0)
	x64asmtest.AddEaxImm32(a, uint32(*addend))
	x64asmtest.Ret(a)
	a.Commit()

	if *rewrite != 0 {
		a.Alter(func(m *x64asm.AssemblyModifier) {
			m.Goto(6) // past `mov eax, imm32`, at the add's imm32 field
			m.Extend([]byte{0, 0, 0, 0})
			m.BareReloc(uint64(*rewrite), x64asm.DWord(0))
		})
	}

	ex := a.Reader()
	defer ex.Close()

	os.Stdout.WriteString(hex.EncodeToString(ex.Bytes()) + "\n")
}
