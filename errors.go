// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package x64asm

import (
	"fmt"

	"github.com/gojit/x64asm/internal/label"
	"github.com/gojit/x64asm/internal/reloc"
)

// All fatal conditions described in spec.md §7 are raised by panicking
// with one of the typed values below, never with a bare string or
// os.Exit, so a host that wraps Assembler calls in a recover'd goroutine
// can still identify the failure with errors.As. The one exception is a
// page-protection flip failure after construction, which terminates the
// process through log.Fatalf (see internal/pagebuffer).

// DuplicateGlobalLabelError reports a second definition of a global label.
type DuplicateGlobalLabelError = label.DuplicateGlobalLabelError

// DuplicateDynamicLabelError reports a second definition of a dynamic label.
type DuplicateDynamicLabelError = label.DuplicateDynamicLabelError

// UndefinedLocalLabelError reports a backward reference to a local label
// that was never defined.
type UndefinedLocalLabelError = label.UndefinedLocalLabelError

// UnresolvedGlobalLabelError reports a global relocation whose target was
// never defined by commit time.
type UnresolvedGlobalLabelError = reloc.UnknownGlobalLabelError

// UnresolvedDynamicLabelError reports a dynamic relocation whose slot was
// never filled by commit time.
type UnresolvedDynamicLabelError = reloc.UnknownDynamicLabelError

// DisplacementOverflowError reports an out-of-range Byte displacement
// under a checked Engine.
type DisplacementOverflowError = reloc.DisplacementOverflowError

// UnresolvedLocalLabelError reports that one or more local labels had
// outstanding forward references at commit time.
type UnresolvedLocalLabelError struct{ Names []string }

func (e UnresolvedLocalLabelError) Error() string {
	return fmt.Sprintf("x64asm: unresolved local label(s) at commit: %v", e.Names)
}

// IndexOutOfRangeError reports a modifier write outside the buffer it
// overwrites (the committed buffer for AssemblyModifier, the staging area
// for UncommittedModifier). AssemblyModifier.Check and CheckExact also
// raise it for a cursor that is not at the expected offset, with Len set
// to that offset.
type IndexOutOfRangeError struct {
	Offset, Len uint64
}

func (e IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("x64asm: offset %d is out of range for a buffer of length %d", e.Offset, e.Len)
}
