// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pagebuffer owns the OS-mapped, page-granular region backing an
// Assembler's executable code. The region is writable xor executable,
// never both (the W^X discipline), and is guarded by a reader/writer lock
// so that invocation can proceed concurrently with further assembly.
package pagebuffer

import (
	"fmt"
	"log"
	"sync"
)

const pageSize = 4096

func roundUpToPage(n int) int {
	if n <= 0 {
		return pageSize
	}
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// region is the platform-specific backing for a mapped block of memory.
// Implementations live in platform_*.go, one per supported OS family.
type region interface {
	bytes() []byte
	len() int
	protect(writable bool) error
	unmap() error
}

// fatalProtectionFlip terminates the process on a post-construction
// protection-flip failure. Per spec, the Assembler's invariants cannot be
// restored once a page is stuck in the wrong mode, so a clean abort is the
// only safe option.
func fatalProtectionFlip(op string, err error) {
	log.Fatalf("pagebuffer: %s protection flip failed irrecoverably: %v", op, err)
}

// Buffer is a contiguous region of OS pages that can be flipped between
// writable and executable protection, and resized by remapping.
type Buffer struct {
	mu       sync.RWMutex
	region   region
	length   int // bytes committed so far
	writable bool
}

// New allocates a Buffer of at least one page, initially empty and executable.
func New() (*Buffer, error) {
	r, err := mapRegion(pageSize)
	if err != nil {
		return nil, fmt.Errorf("pagebuffer: allocate: %w", err)
	}
	b := &Buffer{region: r, writable: true}
	b.makeExecutableLocked()
	return b, nil
}

// Len reports the number of committed bytes.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.length
}

// Cap reports the capacity of the backing region in bytes.
func (b *Buffer) Cap() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.region.len()
}

func (b *Buffer) makeWritableLocked() {
	if b.writable {
		return
	}
	if err := b.region.protect(true); err != nil {
		fatalProtectionFlip("writable", err)
	}
	b.writable = true
}

func (b *Buffer) makeExecutableLocked() {
	if err := b.region.protect(false); err != nil {
		fatalProtectionFlip("executable", err)
	}
	b.writable = false
}

// growLocked grows the region to at least newCapacity bytes, rounded up to
// a page multiple, preserving the committed prefix. Callers must hold the
// exclusive lock; since no reader can be holding a shared lock concurrently,
// the old region can be released immediately after the copy.
func (b *Buffer) growLocked(newCapacity int) error {
	newCapacity = roundUpToPage(newCapacity)
	if newCapacity <= b.region.len() {
		return nil
	}
	next, err := mapRegion(newCapacity)
	if err != nil {
		return fmt.Errorf("pagebuffer: grow to %d bytes: %w", newCapacity, err)
	}
	copy(next.bytes(), b.region.bytes()[:b.length])
	old := b.region
	b.region = next
	b.writable = true // the freshly mapped region starts RW
	if err := old.unmap(); err != nil {
		fatalProtectionFlip("unmap", err)
	}
	return nil
}

// Commit grows the region if necessary, flips it writable, copies data
// into [offset, offset+len(data)), flips it back to executable, and
// records the new committed length. It must be called with the exclusive
// lock not already held.
func (b *Buffer) Commit(offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	end := int(offset) + len(data)
	if end > b.region.len() {
		if err := b.growLocked(end); err != nil {
			return err
		}
	}
	b.makeWritableLocked()
	copy(b.region.bytes()[offset:end], data)
	b.length = end
	b.makeExecutableLocked()
	return nil
}

// Executor is a read-only snapshot handle onto the Buffer's committed,
// executable bytes, held for as long as the shared lock is not released.
type Executor struct {
	buf    *Buffer
	length int
}

// Reader acquires the shared lock and returns a snapshot of the bytes
// committed as of this moment. The Buffer cannot flip writable or grow
// until the returned Executor is closed.
func (b *Buffer) Reader() *Executor {
	b.mu.RLock()
	return &Executor{buf: b, length: b.length}
}

// Bytes returns the committed region as of the moment Reader was called.
// The slice is only valid until Close.
func (e *Executor) Bytes() []byte {
	return e.buf.region.bytes()[:e.length]
}

// Close releases the shared lock.
func (e *Executor) Close() {
	e.buf.mu.RUnlock()
}

// AlterSession is a scoped exclusive handle allowing in-place overwrites of
// the already-committed region.
type AlterSession struct {
	buf *Buffer
}

// BeginAlter acquires the exclusive lock and makes the committed region
// writable in place.
func (b *Buffer) BeginAlter() *AlterSession {
	b.mu.Lock()
	b.makeWritableLocked()
	return &AlterSession{buf: b}
}

// Bytes returns the committed region, writable for the duration of the
// alter session.
func (s *AlterSession) Bytes() []byte {
	return s.buf.region.bytes()[:s.buf.length]
}

// End flips the region back to executable and releases the exclusive lock.
func (s *AlterSession) End() {
	s.buf.makeExecutableLocked()
	s.buf.mu.Unlock()
}

// TryAcquireExclusive attempts, without blocking, to take the exclusive
// lock. Used by Assembler.Finalize, which must fail fast rather than wait
// for readers to drop.
func (b *Buffer) TryAcquireExclusive() bool {
	return b.mu.TryLock()
}

// ReleaseExclusive releases a lock taken via TryAcquireExclusive.
func (b *Buffer) ReleaseExclusive() {
	b.mu.Unlock()
}
