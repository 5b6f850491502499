// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package x64asm

import (
	"errors"

	"github.com/gojit/x64asm/internal/label"
	"github.com/gojit/x64asm/internal/pagebuffer"
	"github.com/gojit/x64asm/internal/reloc"
)

// ErrFinalizeContended is returned by (*Assembler).Finalize when a live
// reader currently holds the executable buffer. The Assembler is left
// fully valid to keep using; the caller may retry later.
var ErrFinalizeContended = errors.New("x64asm: finalize contended by a live reader")

// Assembler is the top-level orchestrator: it owns the staging/committed
// byte sink, the four label namespaces, and the relocation engine, and
// exposes the public contract documented in the package doc.
//
// An Assembler is single-owner: every mutating method requires the caller
// to hold exclusive access to the Assembler value itself. Concurrency only
// arises between the Assembler and readers of the executable buffer (see
// Reader).
type Assembler struct {
	base   *baseAssembler
	labels *label.Table
	relocs *reloc.Engine
}

var _ DynasmLabelApi = (*Assembler)(nil)

// New allocates a one-page executable buffer and returns an empty
// Assembler. It fails only if the initial OS page mapping fails.
func New() (*Assembler, error) {
	base, err := newBaseAssembler()
	if err != nil {
		return nil, err
	}
	return &Assembler{
		base:   base,
		labels: label.New(),
		relocs: reloc.NewEngine(false),
	}, nil
}

// NewChecked is like New but returns an Assembler whose relocation engine
// rejects out-of-range Byte displacements with DisplacementOverflowError
// instead of silently truncating them.
func NewChecked() (*Assembler, error) {
	a, err := New()
	if err != nil {
		return nil, err
	}
	a.relocs.Checked = true
	return a, nil
}

// Offset returns the current logical end of the code stream.
func (a *Assembler) Offset() AssemblyOffset { return AssemblyOffset(a.base.offset()) }

// Push appends a single byte to the staging area.
func (a *Assembler) Push(value byte) { a.base.push(value) }

// Extend appends bytes to the staging area.
func (a *Assembler) Extend(bytes []byte) { a.base.extend(bytes) }

// Align pads the staging area with 0x90 (x86-64 NOP) until
// Offset()%multiple == 0.
func (a *Assembler) Align(multiple int) { a.base.align(multiple, 0x90) }

// NewDynamicLabel allocates a fresh dynamic label id and returns its handle.
func (a *Assembler) NewDynamicLabel() DynamicLabel {
	return DynamicLabel{id: a.labels.AllocateDynamic()}
}

// GlobalLabel defines name at the current offset. Panics with
// DuplicateGlobalLabelError if name is already defined.
func (a *Assembler) GlobalLabel(name string) {
	if err := a.labels.DefineGlobal(name, uint64(a.Offset())); err != nil {
		panic(err)
	}
}

// LocalLabel defines name at the current offset, shadowing any previous
// definition, and immediately patches every forward reference that was
// waiting on it.
func (a *Assembler) LocalLabel(name string) {
	offset := uint64(a.Offset())
	pending := a.labels.DefineLocal(name, offset)
	base := a.base.asmoffset()
	for _, loc := range pending {
		if err := a.relocs.WriteDisplacement(a.base.staging, base, loc, offset); err != nil {
			panic(err)
		}
	}
}

// DynamicLabel defines the label identified by id at the current offset.
// Panics with DuplicateDynamicLabelError if id is already defined.
func (a *Assembler) DynamicLabel(id DynamicLabel) {
	if err := a.labels.DefineDynamic(id.id, uint64(a.Offset())); err != nil {
		panic(err)
	}
}

// GlobalReloc enqueues a patch site at the current offset to be resolved
// against name at the next commit.
func (a *Assembler) GlobalReloc(name string, kind RelocationKind) {
	loc := reloc.PatchLoc{End: uint64(a.Offset()), Kind: kind}
	a.relocs.EnqueueGlobal(loc, name)
}

// DynamicReloc enqueues a patch site at the current offset to be resolved
// against id at the next commit.
func (a *Assembler) DynamicReloc(id DynamicLabel, kind RelocationKind) {
	loc := reloc.PatchLoc{End: uint64(a.Offset()), Kind: kind}
	a.relocs.EnqueueDynamic(loc, id.id)
}

// ForwardReloc records a patch site at the current offset to be resolved
// the next time name is defined with LocalLabel. A forward reference
// surviving past the next commit is fatal (see Commit).
func (a *Assembler) ForwardReloc(name string, kind RelocationKind) {
	loc := reloc.PatchLoc{End: uint64(a.Offset()), Kind: kind}
	a.labels.EnqueueForwardLocal(name, loc)
}

// BackwardReloc immediately patches a reference to the most recent
// definition of name. Panics with UndefinedLocalLabelError if name has
// never been defined.
func (a *Assembler) BackwardReloc(name string, kind RelocationKind) {
	target, ok := a.labels.LookupLocalBackward(name)
	if !ok {
		panic(UndefinedLocalLabelError{Name: name})
	}
	loc := reloc.PatchLoc{End: uint64(a.Offset()), Kind: kind}
	base := a.base.asmoffset()
	if err := a.relocs.WriteDisplacement(a.base.staging, base, loc, target); err != nil {
		panic(err)
	}
}

// BareReloc immediately patches an absolute relocation against a
// already-known runtime address, e.g. an embedded pointer immediate. It is
// not PC-relative: the field receives target verbatim.
func (a *Assembler) BareReloc(target uint64, kind RelocationKind) {
	loc := reloc.PatchLoc{End: uint64(a.Offset()), Kind: kind}
	base := a.base.asmoffset()
	if err := a.relocs.WriteAbsolute(a.base.staging, base, loc, target); err != nil {
		panic(err)
	}
}

// commit resolves deferred relocations and transfers staging into the
// executable buffer. On any fatal condition the staging bytes are
// discarded (matching "no partial commit") and the error is returned
// uncommitted; previously committed bytes remain valid.
func (a *Assembler) commit() error {
	base := a.base.asmoffset()

	err := a.relocs.ResolveGlobal(a.base.staging, base, a.labels.LookupGlobal)
	// Always drain the dynamic queue too, so none of its patch sites
	// outlive the staging bytes they point into.
	if derr := a.relocs.ResolveDynamic(a.base.staging, base, a.labels.LookupDynamic); err == nil {
		err = derr
	}
	if err == nil {
		if pending := a.labels.PendingLocalNames(); len(pending) > 0 {
			err = UnresolvedLocalLabelError{Names: pending}
		}
	}
	if err != nil {
		a.base.staging = nil
		return err
	}
	return a.base.commit()
}

// Commit resolves all deferred relocations, then commits staging to
// executable pages. Panics on any unresolved reference.
func (a *Assembler) Commit() {
	if err := a.commit(); err != nil {
		panic(err)
	}
}

// Finalize commits, then transfers sole ownership of the executable
// buffer to the caller. If a reader currently holds the buffer, it
// returns ErrFinalizeContended without waiting and without committing,
// and leaves the Assembler fully valid to keep using.
func (a *Assembler) Finalize() (*ExecutableBuffer, error) {
	if !a.base.buf.TryAcquireExclusive() {
		return nil, ErrFinalizeContended
	}
	a.base.buf.ReleaseExclusive()

	a.Commit()

	buf := a.base.buf
	a.base.buf = nil
	return &ExecutableBuffer{buf: buf}, nil
}

// Reader returns a shared handle onto the currently committed, executable
// bytes. Any number of readers may be live at once; a live reader blocks
// Commit and Alter from proceeding until it is closed, and makes Finalize
// return ErrFinalizeContended.
func (a *Assembler) Reader() *Executor {
	return &Executor{ex: a.base.buf.Reader()}
}

// Alter commits, then hands a scoped AssemblyModifier to fn, allowing
// in-place edits of the committed buffer. On return, relocations emitted
// during fn are resolved against the committed buffer and the buffer is
// restored to executable. fn may call the full DynasmLabelApi; a panic
// from fn (e.g. a duplicate label) propagates to the caller after the
// buffer is safely restored to executable.
func (a *Assembler) Alter(fn func(*AssemblyModifier)) {
	if err := a.commit(); err != nil {
		panic(err)
	}

	session := a.base.buf.BeginAlter()
	defer session.End()

	m := &AssemblyModifier{assembler: a, session: session}
	fn(m)

	buf := session.Bytes()
	if err := a.relocs.ResolveGlobal(buf, 0, a.labels.LookupGlobal); err != nil {
		panic(err)
	}
	if err := a.relocs.ResolveDynamic(buf, 0, a.labels.LookupDynamic); err != nil {
		panic(err)
	}
	if pending := a.labels.PendingLocalNames(); len(pending) > 0 {
		panic(UnresolvedLocalLabelError{Names: pending})
	}
}

// AlterUncommitted hands fn a direct, labels-disabled overwrite cursor
// over the staging area. No relocations may be emitted in this mode.
func (a *Assembler) AlterUncommitted(fn func(*UncommittedModifier)) {
	fn(&UncommittedModifier{base: a.base})
}

// ExecutableBuffer is the caller-owned result of a successful Finalize: a
// self-contained handle onto the assembled executable bytes, independent
// of the Assembler that produced it.
type ExecutableBuffer struct {
	buf *pagebuffer.Buffer
}

// Len returns the number of committed bytes.
func (e *ExecutableBuffer) Len() int { return e.buf.Len() }

// Reader returns a shared handle onto the executable bytes, exactly like
// Assembler.Reader.
func (e *ExecutableBuffer) Reader() *Executor { return &Executor{ex: e.buf.Reader()} }

// Executor is a read-only snapshot handle onto an executable buffer's
// committed bytes. The committed prefix observed through it is immutable
// between acquisition and Close.
type Executor struct {
	ex *pagebuffer.Executor
}

// Bytes returns the committed bytes as of the moment the Executor was
// acquired. The slice is only valid until Close.
func (e *Executor) Bytes() []byte { return e.ex.Bytes() }

// Close releases the shared lock, allowing a pending Commit or Alter to
// proceed.
func (e *Executor) Close() { e.ex.Close() }
