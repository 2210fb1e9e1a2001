// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Check: an offline consistency checker. At any quiescent point (no
// concurrent Write in flight) every internal LBA of an arena is owned by
// exactly one of two things — some external LBA's map entry, or one
// lane's free-pool flog slot — and together they tile internalNlba
// exactly once each. Check verifies that invariant arena by arena.

package btt

import (
	"encoding/binary"

	"github.com/cznic/sortutil"
)

// Check walks every arena of h and reports any internal LBA that is
// referenced by more than one map entry or free-pool slot (Duplicates) or
// by none at all (Unreferenced) as an ErrInconsistent. It takes the same
// lock Write's lazy format uses, so it cannot run concurrently with the
// first Write on a fresh Handle (spec §3's exclusivity decision).
//
// A namespace with no layout yet has nothing to check and Check returns
// nil immediately.
func Check(h *Handle) error {
	h.layoutMu.Lock()
	defer h.layoutMu.Unlock()

	if !h.laidout {
		return nil
	}

	for ai, a := range h.arenas {
		if err := checkArena(h.ns, ai, a); err != nil {
			return err
		}
	}
	return nil
}

func checkArena(ns Namespace, arenaIdx int, a *arena) error {
	counts := make([]int, a.internalNlba)

	var buf [mapEntrySize]byte
	for lba := uint64(0); lba < a.externalNlba; lba++ {
		off := a.mapEntryOffset(lba)
		if err := ns.ReadAt(0, buf[:], off); err != nil {
			return &ErrIO{Src: "Check: map", Off: off, More: err}
		}
		idx := binary.LittleEndian.Uint32(buf[:]) & mapEntryLbaMask
		if idx >= uint32(a.internalNlba) {
			return &ErrLayout{Src: "Check: map entry out of range", Off: off}
		}
		counts[idx]++
	}

	for _, rt := range a.flogs {
		idx := rt.oldMap & mapEntryLbaMask
		if idx >= uint32(a.internalNlba) {
			return &ErrLayout{Src: "Check: flog free entry out of range", Off: a.flogoff}
		}
		counts[idx]++
	}

	var dup, unref []int64
	for idx, c := range counts {
		switch {
		case c == 0:
			unref = append(unref, int64(idx))
		case c > 1:
			dup = append(dup, int64(idx))
		}
	}

	if len(dup) == 0 && len(unref) == 0 {
		return nil
	}

	sortutil.Int64Slice(dup).Sort()
	sortutil.Int64Slice(unref).Sort()
	return &ErrInconsistent{Arena: arenaIdx, Duplicates: dup, Unreferenced: unref}
}
