// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The read-tracking table: a per-lane, single-writer published post-map
// LBA that lets a writer avoid reallocating a block a reader is still
// fetching from (spec §4.4).
//
// Publish and scan are plain atomic.Uint32 Store/Load. The Go memory
// model gives atomic operations on the same variable a total, sequentially
// consistent order (as tef-crow's roundabout log relies on for its
// publish/scan protocol), which is exactly the acquire/release-plus-fence
// requirement spec §4.9 calls out: a reader's Store is visible to a
// writer's Load before that writer decides the block is free to reuse.

package btt

import "sync/atomic"

// rttIdle is the sentinel value published in an RTT cell when the lane is
// not currently reading: it carries the ERROR flag bit, which a real
// post-map LBA (read out of the map without its flag bits, per spec §4.2)
// can never have set, so it can never collide with a genuine in-flight
// read.
const rttIdle = mapEntryError

// buildRTT allocates and idles every lane's RTT cell for an arena.
func buildRTT(a *arena, nfree uint32) {
	a.rtt = make([]atomic.Uint32, nfree)
	for i := range a.rtt {
		a.rtt[i].Store(rttIdle)
	}
}

// rttPublish advertises that lane is about to read postMapLba.
func rttPublish(a *arena, lane int, postMapLba uint32) {
	a.rtt[lane].Store(postMapLba)
}

// rttIdleLane clears lane's RTT cell once its read is done.
func rttIdleLane(a *arena, lane int) {
	a.rtt[lane].Store(rttIdle)
}

// rttDrain spins until no lane's RTT cell names freeEntry, i.e. until it
// is safe for a writer to reuse that internal LBA.
func rttDrain(a *arena, nlane int, freeEntry uint32) {
	for i := 0; i < nlane; i++ {
		for a.rtt[i].Load() == freeEntry {
			// busy-wait: readers publish-then-read-then-consume
			// in bounded time (spec §5).
		}
	}
}
