// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// An abstraction of the byte-addressable persistent storage the BTT core
// lays its arenas on top of. In contrast to a file stream, a Namespace is
// not sequentially accessed: every operation is addressed by an absolute
// offset from the start of the namespace.

package btt

// A Namespace is a []byte-like model of the storage a BTT is built on: a
// file, a region of persistent memory, or anything else that can satisfy
// positional reads, durable positional writes, and (optionally) direct
// mapping. It plays the same role for this package that lldb.Filer plays
// for lldb: the seam between the core algorithm and the underlying medium.
//
// A Namespace is not safe for concurrent use by itself; the lane argument
// passed to every method exists so an implementation backed by, say, a
// pool of file descriptors or per-lane I/O queues can dispatch without
// additional locking. Implementations that have no use for per-lane
// dispatch are free to ignore it.
type Namespace interface {
	// ReadAt reads len(b) bytes starting at namespace offset off. It
	// behaves like io.ReaderAt: it returns a non-nil error if it could
	// not fill b completely.
	ReadAt(lane int, b []byte, off int64) error

	// WriteAt writes b to namespace offset off. The write must be
	// durable by the time WriteAt returns: a crash immediately after a
	// successful return must not lose the write.
	WriteAt(lane int, b []byte, off int64) error

	// MapAt returns a direct-access window of up to length bytes
	// starting at off, aliasing the namespace's own backing storage
	// where possible. The returned slice may be shorter than length
	// but must be non-empty on success. Writes through the returned
	// slice are not guaranteed durable until SyncAt is called on the
	// same range.
	MapAt(lane int, off int64, length int) ([]byte, error)

	// SyncAt flushes a range previously written through a slice
	// returned by MapAt, making it durable.
	SyncAt(lane int, b []byte, off int64) error

	// Size returns the total addressable size of the namespace.
	Size() int64
}
