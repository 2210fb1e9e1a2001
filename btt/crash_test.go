// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Crash-injection tests covering spec scenarios 6 and 7: a process kill
// partway through flog_update's two-step commit must never leave a block
// readable as a mixture of old and new content.

package btt

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func newTestHandle(t *testing.T, ns Namespace) *Handle {
	t.Helper()
	old, oldFree := maxArenaSize, defaultNFree
	maxArenaSize = 1 << 20
	defaultNFree = 4
	t.Cleanup(func() { maxArenaSize, defaultNFree = old, oldFree })

	var uuid [16]byte
	copy(uuid[:], "test-parent-uuid")
	h, err := Init(ns.Size(), 512, uuid, 4, ns)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return h
}

func fill(b byte, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

// TestCrashAfterFlogStep1 is spec scenario 6: the data fields of the
// flog's inactive slot are written and durable, but the slot's seq field
// is not, so the slot stays inactive. Reopening must see the pre-write
// value, and Check must still find the arena consistent.
func TestCrashAfterFlogStep1(t *testing.T) {
	mem := NewMemNamespace(1 << 20)
	h := newTestHandle(t, mem)

	dataA := fill(0x11, 512)
	if err := Write(h, 0, 0, dataA); err != nil {
		t.Fatalf("initial Write: %v", err)
	}

	ai, a, premapLba, err := h.lbaToArena(0)
	if err != nil {
		t.Fatalf("lbaToArena: %v", err)
	}
	_ = ai

	rt := &a.flogs[0]
	freeEntry := rt.oldMap & mapEntryLbaMask
	dataOff := a.dataoff + int64(freeEntry)*int64(a.internalLbasize)

	dataB := fill(0x22, 512)
	if err := mem.WriteAt(0, dataB, dataOff); err != nil {
		t.Fatalf("write replacement data: %v", err)
	}

	oldEntry, unlock, err := mapLock(mem, 0, a, premapLba)
	if err != nil {
		t.Fatalf("mapLock: %v", err)
	}
	// flogUpdate's step 1 only: write (lba, old_map, new_map), never
	// write the bumped seq that would make the slot active.
	off := rt.slotOff[rt.next]
	var head [12]byte
	binary.LittleEndian.PutUint32(head[0:4], uint32(premapLba))
	binary.LittleEndian.PutUint32(head[4:8], oldEntry)
	binary.LittleEndian.PutUint32(head[8:12], freeEntry)
	if err := mem.WriteAt(0, head[:], off); err != nil {
		t.Fatalf("write flog head: %v", err)
	}
	mapAbort(unlock) // crash: never reaches flog step 2 or map_unlock

	h2, err := Init(mem.Size(), 512, h.parentUUID, 4, mem)
	if err != nil {
		t.Fatalf("reopen Init: %v", err)
	}

	got := make([]byte, 512)
	if err := Read(h2, 0, 0, got); err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if !bytes.Equal(got, dataA) {
		t.Fatalf("read after crash-at-step-1 = %x..., want pre-write value %x...", got[:4], dataA[:4])
	}

	if err := Check(h2); err != nil {
		t.Fatalf("Check after crash-at-step-1: %v", err)
	}
}

// TestCrashAfterFlogStep2 is spec scenario 7: the flog's inactive slot is
// fully committed (both steps durable, making it the active slot) but the
// map entry was never rewritten to match. Reopening must recover by
// completing the map update, so the read observes the *new* value.
func TestCrashAfterFlogStep2(t *testing.T) {
	mem := NewMemNamespace(1 << 20)
	h := newTestHandle(t, mem)

	dataA := fill(0x11, 512)
	if err := Write(h, 0, 0, dataA); err != nil {
		t.Fatalf("initial Write: %v", err)
	}

	_, a, premapLba, err := h.lbaToArena(0)
	if err != nil {
		t.Fatalf("lbaToArena: %v", err)
	}

	rt := &a.flogs[0]
	freeEntry := rt.oldMap & mapEntryLbaMask
	dataOff := a.dataoff + int64(freeEntry)*int64(a.internalLbasize)

	dataB := fill(0x22, 512)
	if err := mem.WriteAt(0, dataB, dataOff); err != nil {
		t.Fatalf("write replacement data: %v", err)
	}

	oldEntry, unlock, err := mapLock(mem, 0, a, premapLba)
	if err != nil {
		t.Fatalf("mapLock: %v", err)
	}
	if err := flogUpdate(mem, 0, a, uint32(premapLba), oldEntry, freeEntry); err != nil {
		t.Fatalf("flogUpdate: %v", err)
	}
	mapAbort(unlock) // crash: flog fully committed, map never rewritten

	h2, err := Init(mem.Size(), 512, h.parentUUID, 4, mem)
	if err != nil {
		t.Fatalf("reopen Init: %v", err)
	}

	got := make([]byte, 512)
	if err := Read(h2, 0, 0, got); err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if !bytes.Equal(got, dataB) {
		t.Fatalf("read after crash-at-step-2 = %x..., want recovered new value %x...", got[:4], dataB[:4])
	}

	if err := Check(h2); err != nil {
		t.Fatalf("Check after crash-at-step-2: %v", err)
	}
}
