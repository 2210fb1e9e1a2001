// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Read: the reader side of the RTT publish/recheck protocol (spec §4.4,
// §4.9).

package btt

import "encoding/binary"

// Read fills buf (which must be exactly the BTT's external block size)
// with the current contents of external LBA lba, using lane for any
// namespace dispatch. Reading a block that has never been written, or any
// block of a namespace with no layout at all yet, yields all zeros.
func Read(h *Handle, lane int, lba uint64, buf []byte) error {
	if err := h.checkLane(lane); err != nil {
		return err
	}
	if lba >= h.nlba {
		return &ErrInvalidArg{Src: "Read", Arg: lba}
	}
	if !h.laidout {
		zero(buf)
		return nil
	}

	_, a, premapLba, err := h.lbaToArena(lba)
	if err != nil {
		return err
	}
	// An arena-error flag only blocks writes (spec §7: "reads may still
	// succeed"); a poisoned individual block is caught below via the
	// map entry's own ERROR bit instead.

	var entryBuf [mapEntrySize]byte
	entryOff := a.mapEntryOffset(premapLba)

	for {
		if err := h.ns.ReadAt(lane, entryBuf[:], entryOff); err != nil {
			return &ErrIO{Src: "Read: map", Off: entryOff, More: err}
		}
		entry := binary.LittleEndian.Uint32(entryBuf[:])

		if entry&mapEntryError != 0 {
			return &ErrPoisoned{Lba: lba}
		}
		if entry&mapEntryZero != 0 {
			zero(buf)
			return nil
		}

		postMapLba := entry & mapEntryLbaMask

		// Publish the block we're about to read so a concurrent
		// writer knows not to recycle it into the free pool, then
		// make sure the map entry didn't change underneath us
		// between the first read and the publish: if it did, a
		// writer may already have committed past us and we must
		// retry against the new entry instead (spec §4.4).
		rttPublish(a, lane, postMapLba)

		if err := h.ns.ReadAt(lane, entryBuf[:], entryOff); err != nil {
			rttIdleLane(a, lane)
			return &ErrIO{Src: "Read: map recheck", Off: entryOff, More: err}
		}
		if binary.LittleEndian.Uint32(entryBuf[:]) != entry {
			rttIdleLane(a, lane)
			continue
		}

		dataOff := a.dataoff + int64(postMapLba)*int64(a.internalLbasize)
		err := h.ns.ReadAt(lane, buf, dataOff)
		rttIdleLane(a, lane)
		if err != nil {
			return &ErrIO{Src: "Read: data", Off: dataOff, More: err}
		}
		return nil
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
