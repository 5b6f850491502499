// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux && !darwin

package pagebuffer

import "errors"

// ErrUnsupportedPlatform is returned by New on platforms this package does
// not yet implement page-protection primitives for.
var ErrUnsupportedPlatform = errors.New("pagebuffer: unsupported platform")

func mapRegion(capacity int) (region, error) {
	return nil, ErrUnsupportedPlatform
}
