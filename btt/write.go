// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Write: the free-block swap, durable flog commit, and map update that
// together give Write all-or-nothing semantics across a crash (spec §4,
// §7).

package btt

// Write stores buf (which must be exactly the BTT's external block size)
// at external LBA lba, using lane for namespace dispatch and as the index
// of the free-block slot this call draws from. Concurrent Write calls on
// different lanes proceed independently except where they target external
// LBAs that hash to the same map lock bucket (spec §5); concurrent Write
// calls on the same lane are the caller's responsibility to serialize,
// since a lane owns exactly one free block at a time.
//
// The namespace is formatted with a fresh layout lazily, on the first
// Write (or SetError) call any Handle ever makes (spec §7, Scenario 1);
// Read and SetZero never trigger that format themselves.
func Write(h *Handle, lane int, lba uint64, buf []byte) error {
	if err := h.checkLane(lane); err != nil {
		return err
	}
	if lba >= h.nlba {
		return &ErrInvalidArg{Src: "Write", Arg: lba}
	}
	if uint32(len(buf)) != h.lbasize {
		return &ErrInvalidArg{Src: "Write", Arg: len(buf)}
	}

	if err := h.ensureLayout(lane); err != nil {
		return err
	}

	ai, a, premapLba, err := h.lbaToArena(lba)
	if err != nil {
		return err
	}
	if a.inError() {
		return &ErrArenaError{Arena: ai, Flags: a.flags}
	}

	rt := &a.flogs[lane]
	freeEntry := rt.oldMap & mapEntryLbaMask

	// The lane exclusively owns freeEntry; drain any reader still
	// publishing it in the RTT from a previous cycle before reusing it.
	rttDrain(a, h.maxlane, freeEntry)

	dataOff := a.dataoff + int64(freeEntry)*int64(a.internalLbasize)
	if err := h.ns.WriteAt(lane, buf, dataOff); err != nil {
		return &ErrIO{Src: "Write: data", Off: dataOff, More: err}
	}

	oldEntry, unlock, err := mapLock(h.ns, lane, a, premapLba)
	if err != nil {
		return err
	}

	if err := flogUpdate(h.ns, lane, a, uint32(premapLba), oldEntry, freeEntry); err != nil {
		mapAbort(unlock)
		return err
	}

	if err := mapUnlock(h.ns, lane, a, premapLba, freeEntry, unlock); err != nil {
		return err
	}

	return nil
}
