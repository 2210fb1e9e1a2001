// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The per-lane free-block allocator and its two-slot sequence-number
// commit protocol (spec §4.2).

package btt

import "encoding/binary"

// nextSeq returns the successor of a 2-bit cyclic sequence number:
// 1 -> 2 -> 3 -> 1. It must never be called with 0 (the "never written"
// value).
func nextSeq(seq uint32) uint32 {
	if seq == 3 {
		return 1
	}
	return seq + 1
}

// decodeFlogEntry reads the four little-endian u32 fields of one flog
// entry (lba, old_map, new_map, seq) from buf.
func decodeFlogEntry(buf []byte) (lba, oldMap, newMap, seq uint32) {
	lba = binary.LittleEndian.Uint32(buf[0:4])
	oldMap = binary.LittleEndian.Uint32(buf[4:8])
	newMap = binary.LittleEndian.Uint32(buf[8:12])
	seq = binary.LittleEndian.Uint32(buf[12:16])
	return
}

// readFlogPair loads one lane's flog slot pair at flogOff, recovering any
// interrupted operation by completing the map update it implies. It
// populates rt in place and reports the arena-error bit that should be
// OR'd into the arena's flags if the pair itself is self-inconsistent.
func readFlogPair(ns Namespace, lane int, a *arena, flogOff int64, rt *flogRuntime) (arenaError bool, err error) {
	rt.slotOff[0] = flogOff
	rt.slotOff[1] = flogOff + flogEntrySize

	var buf [2 * flogEntrySize]byte
	if err := ns.ReadAt(lane, buf[:], flogOff); err != nil {
		return false, &ErrIO{Src: "readFlogPair", Off: flogOff, More: err}
	}

	lba0, old0, new0, seq0 := decodeFlogEntry(buf[0:flogEntrySize])
	lba1, old1, new1, seq1 := decodeFlogEntry(buf[flogEntrySize:])

	var lba, oldMap, newMap, seq uint32
	switch {
	case seq0 == seq1:
		// Covers the 0/0 case (no flog ever written) and any other
		// collision; both are layout-consistency errors per spec §4.2.
		return true, nil
	case seq0 == 0:
		lba, oldMap, newMap, seq = lba1, old1, new1, seq1
		rt.next = 0
	case seq1 == 0:
		lba, oldMap, newMap, seq = lba0, old0, new0, seq0
		rt.next = 1
	case nextSeq(seq0) == seq1:
		lba, oldMap, newMap, seq = lba1, old1, new1, seq1
		rt.next = 0
	default:
		lba, oldMap, newMap, seq = lba0, old0, new0, seq0
		rt.next = 1
	}

	rt.lba, rt.oldMap, rt.newMap, rt.seq = lba, oldMap, newMap, seq

	if oldMap == newMap {
		// Initial state: nothing to recover.
		return false, nil
	}

	mapOff := a.mapEntryOffset(uint64(lba))
	var entryBuf [mapEntrySize]byte
	if err := ns.ReadAt(lane, entryBuf[:], mapOff); err != nil {
		return false, &ErrIO{Src: "readFlogPair: map", Off: mapOff, More: err}
	}
	entry := binary.LittleEndian.Uint32(entryBuf[:])

	if newMap != entry && oldMap == entry {
		// The prior write's flog commit succeeded but its map update
		// didn't land; finish it now.
		binary.LittleEndian.PutUint32(entryBuf[:], newMap)
		if err := ns.WriteAt(lane, entryBuf[:], mapOff); err != nil {
			return false, &ErrIO{Src: "readFlogPair: recover map", Off: mapOff, More: err}
		}
	}
	// A third value means a later writer already reallocated premapLba
	// and will repair the map on its own next allocation; leave as-is.

	return false, nil
}

// readFlogs loads every lane's flog slot pair for arena a, starting at
// a.flogoff, and returns the combined arena-error flag.
func readFlogs(ns Namespace, lane int, a *arena, nfree uint32) (arenaError bool, err error) {
	a.flogs = make([]flogRuntime, nfree)
	off := a.flogoff
	for i := range a.flogs {
		bad, err := readFlogPair(ns, lane, a, off, &a.flogs[i])
		if err != nil {
			return false, err
		}
		if bad {
			arenaError = true
		}
		off += flogSlotAlign
	}
	return arenaError, nil
}

// flogUpdate commits a new (lba, oldMap, newMap) transition for lane in
// two durable steps per spec §4.2/§4.9: the three data fields first, the
// bumped sequence number second (the commit point). A crash between the
// two steps leaves the slot with a stale, inactive sequence number, so
// the old slot stays authoritative until read_flog_pair's recovery step
// runs on reopen.
func flogUpdate(ns Namespace, lane int, a *arena, lba, oldMap, newMap uint32) error {
	rt := &a.flogs[lane]
	newSeq := nextSeq(rt.seq)
	off := rt.slotOff[rt.next]

	var head [12]byte
	binary.LittleEndian.PutUint32(head[0:4], lba)
	binary.LittleEndian.PutUint32(head[4:8], oldMap)
	binary.LittleEndian.PutUint32(head[8:12], newMap)
	if err := ns.WriteAt(lane, head[:], off); err != nil {
		return &ErrIO{Src: "flogUpdate: data", Off: off, More: err}
	}

	var seqBuf [4]byte
	binary.LittleEndian.PutUint32(seqBuf[:], newSeq)
	if err := ns.WriteAt(lane, seqBuf[:], off+12); err != nil {
		return &ErrIO{Src: "flogUpdate: seq", Off: off + 12, More: err}
	}

	rt.next = 1 - rt.next
	rt.lba, rt.oldMap, rt.newMap, rt.seq = lba, oldMap, newMap, newSeq
	return nil
}
