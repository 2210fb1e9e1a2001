// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// An os.File backed Namespace, modeled on lldb's OSFiler/SimpleFileFiler.

package btt

import (
	"fmt"
	"os"

	"github.com/cznic/fileutil"
)

var _ Namespace = (*FileNamespace)(nil)

// FileNamespace is an os.File backed Namespace. Unlike the lldb Filer
// family it has no structural-transaction support of its own: the BTT
// core is itself what gives this file single-block write atomicity.
type FileNamespace struct {
	f    *os.File
	size int64
}

// OpenFileNamespace opens an existing file (as created by
// CreateFileNamespace) for use as a BTT namespace; the namespace size is
// the file's current size.
func OpenFileNamespace(path string) (*FileNamespace, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &FileNamespace{f: f, size: fi.Size()}, nil
}

// CreateFileNamespace creates a new file of the given size, punching holes
// across its data region first so that any stale content left by a prior
// tenant of the underlying blocks can't leak into arena 0 before the first
// write_layout. Most filesystems implement PunchHole by simply guaranteeing
// the range reads as zero, which is exactly what a fresh BTT namespace
// needs before it has a layout.
func CreateFileNamespace(path string, size int64) (*FileNamespace, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}

	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}

	if err := fileutil.PunchHole(f, 0, size); err != nil {
		// PunchHole avoids stale bytes hanging around on filesystems
		// that don't actually zero-fill a Truncate-extended region.
		// If it fails, creation fails: the new file is closed and
		// removed and the error is returned.
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("btt: punch hole on new namespace %s: %w", path, err)
	}

	return &FileNamespace{f: f, size: size}, nil
}

// Size implements Namespace.
func (f *FileNamespace) Size() int64 { return f.size }

// Close releases the underlying file descriptor.
func (f *FileNamespace) Close() error { return f.f.Close() }

// ReadAt implements Namespace.
func (f *FileNamespace) ReadAt(lane int, b []byte, off int64) error {
	_, err := f.f.ReadAt(b, off)
	return err
}

// WriteAt implements Namespace. The namespace callback contract requires
// the write be durable on return, so every WriteAt is followed by a Sync.
func (f *FileNamespace) WriteAt(lane int, b []byte, off int64) error {
	if _, err := f.f.WriteAt(b, off); err != nil {
		return err
	}
	return f.f.Sync()
}

// MapAt implements Namespace. A real mmap-backed namespace would alias the
// page cache directly here; this one copies via ReadAt, which keeps the
// Namespace usable on platforms/filesystems where mmap isn't available and
// keeps the core's SyncAt contract trivial to satisfy (WriteAt already is
// durable, so SyncAt on a FileNamespace is a write-back of the copy).
func (f *FileNamespace) MapAt(lane int, off int64, length int) ([]byte, error) {
	n := length
	if off+int64(n) > f.size {
		n = int(f.size - off)
	}
	if n <= 0 {
		return nil, fmt.Errorf("btt: MapAt out of range off=%d size=%d", off, f.size)
	}

	b := make([]byte, n)
	if err := f.ReadAt(lane, b, off); err != nil {
		return nil, err
	}
	return b, nil
}

// SyncAt implements Namespace by writing the (copied) mapped range back
// durably.
func (f *FileNamespace) SyncAt(lane int, b []byte, off int64) error {
	return f.WriteAt(lane, b, off)
}
