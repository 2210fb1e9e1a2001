// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package btt

import "fmt"

// ErrInvalidArg reports an out-of-range or otherwise malformed argument
// supplied to an entry point, e.g. an external LBA >= NLba.
type ErrInvalidArg struct {
	Src string
	Arg interface{}
}

func (e *ErrInvalidArg) Error() string {
	return fmt.Sprintf("%s: invalid argument %v", e.Src, e.Arg)
}

// ErrIO wraps a failure returned by a Namespace callback (nsread, nswrite,
// nsmap or nssync). The original error is preserved in More.
type ErrIO struct {
	Src  string
	Off  int64
	More error
}

func (e *ErrIO) Error() string {
	return fmt.Sprintf("%s: I/O error at offset %#x: %v", e.Src, e.Off, e.More)
}

func (e *ErrIO) Unwrap() error { return e.More }

// ErrPoisoned reports that a read targeted a map entry with the ERROR flag
// set.
type ErrPoisoned struct {
	Lba uint64
}

func (e *ErrPoisoned) Error() string {
	return fmt.Sprintf("lba %d: block is poisoned (set_error)", e.Lba)
}

// ErrArenaError reports that an arena's info-block flags, or its flog,
// indicate the arena itself is in an error state; no further writes into
// that arena are permitted.
type ErrArenaError struct {
	Arena int
	Flags uint32
}

func (e *ErrArenaError) Error() string {
	return fmt.Sprintf("arena %d: in error state (flags %#x)", e.Arena, e.Flags)
}

// ErrLayout reports that the on-media layout (an info block, a flog pair)
// failed validation in a way that cannot be explained by "no layout
// written yet".
type ErrLayout struct {
	Src string
	Off int64
}

func (e *ErrLayout) Error() string {
	return fmt.Sprintf("%s: invalid on-media layout at offset %#x", e.Src, e.Off)
}

// ErrInconsistent is returned by Check when an arena's map/flog bitmap
// walk finds a duplicate or unreferenced internal LBA. It is informational,
// not a fault: the arena's data is not known to be corrupt, merely that the
// free/used bookkeeping disagrees with itself.
type ErrInconsistent struct {
	Arena       int
	Duplicates  []int64
	Unreferenced []int64
}

func (e *ErrInconsistent) Error() string {
	return fmt.Sprintf("arena %d: inconsistent (duplicates=%v unreferenced=%v)",
		e.Arena, e.Duplicates, e.Unreferenced)
}
