// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Map-entry lock/read/write/abort (spec §4.3).

package btt

import "encoding/binary"

// mapLockIndex hashes a pre-map LBA onto one of nfree map locks. Distinct
// external LBAs that collide on the same bucket serialize against each
// other but remain semantically independent (spec §5).
func mapLockIndex(premapLba uint64, nfree int) int {
	return int(premapLba % uint64(nfree))
}

// mapLock acquires the bucket mutex for premapLba and returns the current
// on-media entry. The caller must follow up with exactly one of
// mapUnlock or mapAbort.
func mapLock(ns Namespace, lane int, a *arena, premapLba uint64) (entry uint32, unlock func(), err error) {
	idx := mapLockIndex(premapLba, len(a.mapLocks))
	a.mapLocks[idx].Lock()

	var buf [mapEntrySize]byte
	off := a.mapEntryOffset(premapLba)
	if err := ns.ReadAt(lane, buf[:], off); err != nil {
		a.mapLocks[idx].Unlock()
		return 0, nil, &ErrIO{Src: "mapLock", Off: off, More: err}
	}

	return binary.LittleEndian.Uint32(buf[:]), func() { a.mapLocks[idx].Unlock() }, nil
}

// mapUnlock writes the new entry and releases the lock acquired by
// mapLock.
func mapUnlock(ns Namespace, lane int, a *arena, premapLba uint64, entry uint32, unlock func()) error {
	defer unlock()

	var buf [mapEntrySize]byte
	binary.LittleEndian.PutUint32(buf[:], entry)
	off := a.mapEntryOffset(premapLba)
	if err := ns.WriteAt(lane, buf[:], off); err != nil {
		return &ErrIO{Src: "mapUnlock", Off: off, More: err}
	}
	return nil
}

// mapAbort releases the lock acquired by mapLock without writing anything.
func mapAbort(unlock func()) { unlock() }
