// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package label implements the four label namespaces of the assembler:
// global (define-once, string-keyed), local (shadowing, string-keyed, with
// a pending-forward-reference queue), and dynamic (dense, integer-keyed,
// assign-once). It holds no knowledge of relocations beyond queuing the
// PatchLoc values callers hand it; patching is the caller's job.
package label

import (
	"fmt"

	"github.com/gojit/x64asm/internal/reloc"
)

// DuplicateGlobalLabelError reports a second definition of a global label.
type DuplicateGlobalLabelError struct{ Name string }

func (e DuplicateGlobalLabelError) Error() string {
	return fmt.Sprintf("label: duplicate global label %q", e.Name)
}

// DuplicateDynamicLabelError reports a second definition of a dynamic label slot.
type DuplicateDynamicLabelError struct{ ID int }

func (e DuplicateDynamicLabelError) Error() string {
	return fmt.Sprintf("label: duplicate dynamic label %d", e.ID)
}

// UndefinedLocalLabelError reports a backward reference to a local label
// that has never been defined.
type UndefinedLocalLabelError struct{ Name string }

func (e UndefinedLocalLabelError) Error() string {
	return fmt.Sprintf("label: unknown local label %q", e.Name)
}

// Table holds the four label namespaces for the lifetime of an Assembler.
type Table struct {
	global map[string]uint64
	local  map[string]uint64
	// dynamic[i] is nil until DefineDynamic(i, ...) is called.
	dynamic        []*uint64
	pendingForward map[string][]reloc.PatchLoc
}

// New returns an empty Table.
func New() *Table {
	return &Table{
		global:         make(map[string]uint64),
		local:          make(map[string]uint64),
		pendingForward: make(map[string][]reloc.PatchLoc),
	}
}

// DefineGlobal records offset as the unique definition of name. Returns
// DuplicateGlobalLabelError if name was already defined.
func (t *Table) DefineGlobal(name string, offset uint64) error {
	if _, ok := t.global[name]; ok {
		return DuplicateGlobalLabelError{Name: name}
	}
	t.global[name] = offset
	return nil
}

// LookupGlobal returns the offset of name and whether it is defined.
func (t *Table) LookupGlobal(name string) (uint64, bool) {
	offset, ok := t.global[name]
	return offset, ok
}

// DefineLocal sets name -> offset, shadowing any previous local definition,
// and returns the pending forward references that were waiting on this
// definition (now removed from the table; the caller is responsible for
// patching each of them against offset).
func (t *Table) DefineLocal(name string, offset uint64) []reloc.PatchLoc {
	pending := t.pendingForward[name]
	delete(t.pendingForward, name)
	t.local[name] = offset
	return pending
}

// LookupLocalBackward returns the most recent definition of name.
func (t *Table) LookupLocalBackward(name string) (uint64, bool) {
	offset, ok := t.local[name]
	return offset, ok
}

// EnqueueForwardLocal appends loc to the pending list for name, to be
// drained by the next DefineLocal(name, ...).
func (t *Table) EnqueueForwardLocal(name string, loc reloc.PatchLoc) {
	t.pendingForward[name] = append(t.pendingForward[name], loc)
}

// AllocateDynamic reserves and returns a fresh dynamic label id.
func (t *Table) AllocateDynamic() int {
	id := len(t.dynamic)
	t.dynamic = append(t.dynamic, nil)
	return id
}

// DefineDynamic assigns offset to the slot reserved for id. Returns
// DuplicateDynamicLabelError if the slot is already filled.
func (t *Table) DefineDynamic(id int, offset uint64) error {
	if t.dynamic[id] != nil {
		return DuplicateDynamicLabelError{ID: id}
	}
	v := offset
	t.dynamic[id] = &v
	return nil
}

// LookupDynamic returns the offset assigned to id and whether it is defined.
func (t *Table) LookupDynamic(id int) (uint64, bool) {
	if id < 0 || id >= len(t.dynamic) || t.dynamic[id] == nil {
		return 0, false
	}
	return *t.dynamic[id], true
}

// PendingLocalNames returns the names with outstanding forward references,
// for the commit-time "every local pending list must be empty" check.
func (t *Table) PendingLocalNames() []string {
	if len(t.pendingForward) == 0 {
		return nil
	}
	names := make([]string, 0, len(t.pendingForward))
	for name := range t.pendingForward {
		names = append(names, name)
	}
	return names
}
