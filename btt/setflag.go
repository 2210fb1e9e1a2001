// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// SetZero and SetError: in-place map entry flag changes that don't move
// any data (spec §4.6).

package btt

// SetZero marks external LBA lba as reading back all zeros, without
// touching whatever block it currently maps to. On a namespace with no
// layout yet, every block already reads as zero, so SetZero is a no-op
// rather than forcing a format.
func SetZero(h *Handle, lane int, lba uint64) error {
	if err := h.checkLane(lane); err != nil {
		return err
	}
	if lba >= h.nlba {
		return &ErrInvalidArg{Src: "SetZero", Arg: lba}
	}
	if !h.laidout {
		return nil
	}
	return h.setMapFlag(lane, lba, mapEntryZero)
}

// SetError marks external LBA lba as poisoned: subsequent Reads of it
// fail with ErrPoisoned until the block is next Written. Unlike SetZero,
// poisoning a namespace with no layout yet is meaningful state that must
// survive a reopen, so SetError forces the lazy format to happen now.
func SetError(h *Handle, lane int, lba uint64) error {
	if err := h.checkLane(lane); err != nil {
		return err
	}
	if lba >= h.nlba {
		return &ErrInvalidArg{Src: "SetError", Arg: lba}
	}
	if err := h.ensureLayout(lane); err != nil {
		return err
	}
	return h.setMapFlag(lane, lba, mapEntryError)
}

// setMapFlag is map_entry_setf: it ORs flag into lba's map entry,
// leaving the post-map LBA bits and any other flag bit already set
// untouched. In particular, SetZero after SetError does not clear
// ERROR: once poisoned, only a full Write can un-poison a block.
func (h *Handle) setMapFlag(lane int, lba uint64, flag uint32) error {
	ai, a, premapLba, err := h.lbaToArena(lba)
	if err != nil {
		return err
	}
	if a.inError() {
		return &ErrArenaError{Arena: ai, Flags: a.flags}
	}

	entry, unlock, err := mapLock(h.ns, lane, a, premapLba)
	if err != nil {
		return err
	}

	if flag == mapEntryZero && entry&mapEntryZero != 0 {
		mapAbort(unlock)
		return nil
	}

	newEntry := entry | flag
	return mapUnlock(h.ns, lane, a, premapLba, newEntry, unlock)
}
