// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// A memory-only implementation of Namespace, for tests and for exercising
// the crash-injection harness without touching a real file.

package btt

import (
	"fmt"

	"github.com/cznic/mathutil"
)

const (
	memNsPgBits = 12
	memNsPgSize = 1 << memNsPgBits
	memNsPgMask = memNsPgSize - 1
)

var _ Namespace = (*MemNamespace)(nil)

type memNsPage [memNsPgSize]byte

// MemNamespace is a memory-backed Namespace, modeled on lldb's MemFiler. It
// is page-sparse (an untouched page reads as zeros without being
// allocated), fixed at a size chosen at construction time, and safe to
// snapshot for crash-injection tests via Clone.
type MemNamespace struct {
	size int64
	m    map[int64]*memNsPage
}

// NewMemNamespace returns a MemNamespace of the given size, reading as all
// zeros until written.
func NewMemNamespace(size int64) *MemNamespace {
	return &MemNamespace{size: size, m: map[int64]*memNsPage{}}
}

// Size implements Namespace.
func (f *MemNamespace) Size() int64 { return f.size }

// ReadAt implements Namespace.
func (f *MemNamespace) ReadAt(lane int, b []byte, off int64) error {
	if off < 0 || off+int64(len(b)) > f.size {
		return fmt.Errorf("memns: ReadAt out of range off=%d len=%d size=%d", off, len(b), f.size)
	}

	pgI := off >> memNsPgBits
	pgO := int(off & memNsPgMask)
	rem := len(b)
	for rem != 0 {
		pg := f.m[pgI]
		nc := mathutil.Min(rem, memNsPgSize-pgO)
		if pg == nil {
			for i := 0; i < nc; i++ {
				b[i] = 0
			}
		} else {
			copy(b[:nc], pg[pgO:])
		}
		b = b[nc:]
		rem -= nc
		pgI++
		pgO = 0
	}
	return nil
}

// WriteAt implements Namespace. It is durable immediately: MemNamespace
// has no concept of a write cache to lose on "crash", which is why the
// in-process crash tests (crash_test.go) simulate a crash by stopping
// partway through Write's steps rather than by killing a process.
func (f *MemNamespace) WriteAt(lane int, b []byte, off int64) error {
	if off < 0 || off+int64(len(b)) > f.size {
		return fmt.Errorf("memns: WriteAt out of range off=%d len=%d size=%d", off, len(b), f.size)
	}

	pgI := off >> memNsPgBits
	pgO := int(off & memNsPgMask)
	rem := len(b)
	for rem != 0 {
		pg := f.m[pgI]
		if pg == nil {
			pg = &memNsPage{}
			f.m[pgI] = pg
		}
		nc := copy(pg[pgO:], b)
		b = b[nc:]
		rem -= nc
		pgI++
		pgO = 0
	}
	return nil
}

// MapAt implements Namespace by copying into a freshly allocated buffer;
// there is no real backing store to alias in memory.
func (f *MemNamespace) MapAt(lane int, off int64, length int) ([]byte, error) {
	if off < 0 || off >= f.size {
		return nil, fmt.Errorf("memns: MapAt out of range off=%d size=%d", off, f.size)
	}

	n := mathutil.Min(length, int(f.size-off))
	b := make([]byte, n)
	if err := f.ReadAt(0, b, off); err != nil {
		return nil, err
	}
	return b, nil
}

// SyncAt implements Namespace by writing the mapped slice back, since
// MapAt never aliased the real storage.
func (f *MemNamespace) SyncAt(lane int, b []byte, off int64) error {
	return f.WriteAt(lane, b, off)
}

// Clone returns a deep copy: writes made to either copy afterwards are not
// seen by the other.
func (f *MemNamespace) Clone() *MemNamespace {
	c := NewMemNamespace(f.size)
	for k, v := range f.m {
		pg := *v
		c.m[k] = &pg
	}
	return c
}
