// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package x64asm

import "github.com/gojit/x64asm/internal/pagebuffer"

// baseAssembler is an append-only byte sink layered over a pagebuffer.Buffer.
// It accumulates bytes in a staging slice since the last commit and
// transfers them into the executable buffer on Commit.
type baseAssembler struct {
	buf     *pagebuffer.Buffer
	staging []byte
}

func newBaseAssembler() (*baseAssembler, error) {
	buf, err := pagebuffer.New()
	if err != nil {
		return nil, err
	}
	return &baseAssembler{buf: buf}, nil
}

// asmoffset is the offset of the first byte of the staging region within
// the logical code stream: the current committed length.
func (b *baseAssembler) asmoffset() uint64 {
	return uint64(b.buf.Len())
}

// offset is the total logical length, committed plus staged.
func (b *baseAssembler) offset() uint64 {
	return b.asmoffset() + uint64(len(b.staging))
}

func (b *baseAssembler) push(value byte) {
	b.staging = append(b.staging, value)
}

func (b *baseAssembler) extend(bytes []byte) {
	b.staging = append(b.staging, bytes...)
}

// align pads the staging buffer with fill until offset()%multiple == 0.
func (b *baseAssembler) align(multiple int, fill byte) {
	if multiple <= 0 {
		return
	}
	for b.offset()%uint64(multiple) != 0 {
		b.push(fill)
	}
}

// commit transfers the staging bytes into the pagebuffer at asmoffset and
// clears staging. The pagebuffer handles growing and the write/executable
// protection flip.
func (b *baseAssembler) commit() error {
	if err := b.buf.Commit(b.asmoffset(), b.staging); err != nil {
		return err
	}
	b.staging = nil
	return nil
}
