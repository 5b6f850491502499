// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux || darwin

package pagebuffer

import (
	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// unixRegion wraps an anonymous mmap-go mapping. Protection flips go
// straight through golang.org/x/sys/unix.Mprotect against the same
// mapping, never through a second mapping of the pages.
type unixRegion struct {
	m mmap.MMap
}

func mapRegion(capacity int) (region, error) {
	m, err := mmap.MapRegion(nil, roundUpToPage(capacity), mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, err
	}
	return &unixRegion{m: m}, nil
}

func (r *unixRegion) bytes() []byte { return []byte(r.m) }
func (r *unixRegion) len() int      { return len(r.m) }

func (r *unixRegion) protect(writable bool) error {
	prot := unix.PROT_READ | unix.PROT_EXEC
	if writable {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}
	return unix.Mprotect([]byte(r.m), prot)
}

func (r *unixRegion) unmap() error {
	return r.m.Unmap()
}
