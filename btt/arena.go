// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package btt

import (
	"sync"
	"sync/atomic"
)

// flogRuntime is the per-lane, per-arena runtime state described in spec
// §3: the last durably observed flog entry, the two on-media offsets of
// its slot pair, and which slot to write next.
type flogRuntime struct {
	lba           uint32
	oldMap        uint32
	newMap        uint32
	seq           uint32
	slotOff       [2]int64
	next          int // which of slotOff to write on the next flogUpdate
}

// arena is the run-time state for one self-describing region of the
// namespace: its geometry (read-only after load), its per-lane flog
// runtime, its RTT cells, and its map locks.
type arena struct {
	flags uint32 // info flags; bit 0 is the arena-error bit (infoFlagErrorMask)

	externalNlba uint64
	internalNlba uint64
	internalLbasize uint32

	startoff int64 // absolute offset of this arena's info block
	dataoff  int64
	mapoff   int64
	flogoff  int64
	nextoff  int64

	flogs     []flogRuntime
	rtt       []atomic.Uint32
	mapLocks  []sync.Mutex
}

func (a *arena) inError() bool {
	return a.flags&infoFlagErrorMask != 0
}

// mapEntryOffset returns the absolute namespace offset of the map entry
// for the given arena-relative (pre-map) external LBA.
func (a *arena) mapEntryOffset(premapLba uint64) int64 {
	return a.mapoff + int64(premapLba)*mapEntrySize
}

// flogSlotAlign is the stride between consecutive flog pairs within the
// flog region: two entries, rounded to flogPairAlign.
const flogSlotAlign = ((2*flogEntrySize + flogPairAlign - 1) / flogPairAlign) * flogPairAlign

// loadArena reads the info block at startoff, validates it, and builds the
// full run-time state for it (flog runtime with recovery, RTT, map
// locks). It returns the arena and its decoded info block, whose nextoff
// lets the caller walk to the following arena. If startoff holds no valid
// info block, it returns nil, nil, nil.
func loadArena(ns Namespace, lane int, startoff int64) (*arena, *infoBlock, error) {
	buf := make([]byte, infoWireSize)
	if err := ns.ReadAt(lane, buf, startoff); err != nil {
		return nil, nil, &ErrIO{Src: "loadArena: info", Off: startoff, More: err}
	}

	info, ok := unmarshalInfo(buf)
	if !ok {
		return nil, nil, nil
	}

	a := &arena{
		flags:           info.flags,
		externalNlba:    uint64(info.externalNlba),
		internalNlba:    uint64(info.internalNlba),
		internalLbasize: info.internalLbasize,
		startoff:        startoff,
		dataoff:         startoff + int64(info.dataoff),
		mapoff:          startoff + int64(info.mapoff),
		flogoff:         startoff + int64(info.flogoff),
	}
	if info.nextoff != 0 {
		a.nextoff = startoff + int64(info.nextoff)
	}

	arenaError, err := readFlogs(ns, lane, a, info.nfree)
	if err != nil {
		return nil, nil, err
	}
	if arenaError {
		a.flags |= infoFlagErrorMask
	}

	buildRTT(a, info.nfree)
	a.mapLocks = make([]sync.Mutex, info.nfree)

	return a, info, nil
}
