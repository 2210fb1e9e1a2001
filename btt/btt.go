// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package btt implements a Block Translation Table: a software layer that
// turns a byte-addressable Namespace without atomic sector writes into a
// set of fixed-size logical blocks that are guaranteed to read back either
// fully old or fully new after any single write, even across a crash
// between the write call and its completion.
//
// A Handle owns the namespace's layout (written lazily, on first use) and
// the run-time state — per-arena flog, read-tracking table and map locks —
// needed to make Read, Write, SetZero and SetError individually atomic and
// safe for concurrent use across up to NLane(h) lanes.
package btt

import (
	"sync"

	"github.com/cznic/mathutil"
)

// Handle is an open BTT namespace. The zero Handle is not usable; obtain
// one from Init.
type Handle struct {
	ns     Namespace
	rawsize int64
	lbasize uint32
	parentUUID [infoUUIDLen]byte
	maxlane int

	layoutMu sync.Mutex
	laidout  bool

	nfree  uint32
	narena int
	nlba   uint64
	arenas []*arena
}

// Init opens (or, on first use, formats) a BTT of external block size
// lbasize bytes over ns, identified by parentUUID (the caller's namespace
// identity, carried in every arena's info block and cross-checked between
// arenas on reopen). maxlane bounds the number of concurrent callers: lane
// arguments passed to Read/Write/SetZero/SetError must be in
// [0, NLane(h)).
//
// Init reads whatever layout already exists; it does not itself write a
// fresh layout; that happens lazily on the first Write or SetError, matching the
// reference implementation's btt_write (spec §7, Scenario 1).
func Init(rawsize int64, lbasize uint32, parentUUID [16]byte, maxlane int, ns Namespace) (*Handle, error) {
	if rawsize <= 0 || rawsize > ns.Size() {
		return nil, &ErrInvalidArg{Src: "Init", Arg: rawsize}
	}
	if lbasize == 0 {
		return nil, &ErrInvalidArg{Src: "Init", Arg: lbasize}
	}
	if maxlane <= 0 {
		return nil, &ErrInvalidArg{Src: "Init", Arg: maxlane}
	}

	h := &Handle{
		ns:         ns,
		rawsize:    rawsize,
		lbasize:    lbasize,
		parentUUID: parentUUID,
		maxlane:    maxlane,
	}

	if err := h.readLayout(0); err != nil {
		return nil, err
	}
	h.maxlane = mathutil.Min(maxlane, int(h.nfree))
	if h.maxlane == 0 {
		h.maxlane = 1
	}
	return h, nil
}

// Fini releases a Handle. It performs no I/O of its own: every state
// change the core makes is already durable by the time the call that made
// it returns, per the Namespace contract.
func Fini(h *Handle) {
	h.arenas = nil
}

// NLane returns the number of concurrent lanes h was opened with, clamped
// to the smallest nfree across its arenas.
func NLane(h *Handle) int { return h.maxlane }

// NLba returns the number of external logical blocks addressable through
// h.
func NLba(h *Handle) uint64 { return h.nlba }

// ensureLayout writes a fresh layout on first use, synchronized on
// h.layoutMu so concurrent lanes racing into it write the layout only
// once. Write and SetError call it before touching the map, since both
// need durable state even on an unformatted Handle; Read and SetZero
// instead treat an unformatted Handle as all-zeros and never call this.
func (h *Handle) ensureLayout(lane int) error {
	h.layoutMu.Lock()
	defer h.layoutMu.Unlock()
	if h.laidout {
		return nil
	}
	return h.writeLayout(lane)
}

// lbaToArena resolves an external LBA to its arena index, the arena
// itself, and the LBA's offset within that arena (the pre-map LBA
// read.go/write.go then run through the map).
func (h *Handle) lbaToArena(lba uint64) (int, *arena, uint64, error) {
	for i, a := range h.arenas {
		if lba < a.externalNlba {
			return i, a, lba, nil
		}
		lba -= a.externalNlba
	}
	return 0, nil, 0, &ErrInvalidArg{Src: "lbaToArena", Arg: lba}
}

func (h *Handle) checkLane(lane int) error {
	if lane < 0 || lane >= h.maxlane {
		return &ErrInvalidArg{Src: "lane", Arg: lane}
	}
	return nil
}
