// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package btt

import "testing"

func TestCheckFreshLayoutConsistent(t *testing.T) {
	h, _ := smallHandle(t, 1<<20)
	if err := Check(h); err != nil {
		t.Fatalf("Check on a never-written namespace: %v", err)
	}
	if err := Write(h, 0, 0, fill(1, 512)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Check(h); err != nil {
		t.Fatalf("Check after one write: %v", err)
	}
}

func TestCheckDetectsDuplicateInternalLba(t *testing.T) {
	h, ns := smallHandle(t, 1<<20)
	if err := Write(h, 0, 0, fill(1, 512)); err != nil {
		t.Fatalf("write: %v", err)
	}

	a := h.arenas[0]
	// Corrupt the map so external LBA 1's entry collides with LBA 0's
	// internal block, manufacturing a duplicate.
	var buf [4]byte
	if err := ns.ReadAt(0, buf[:], a.mapEntryOffset(0)); err != nil {
		t.Fatalf("read map(0): %v", err)
	}
	if err := ns.WriteAt(0, buf[:], a.mapEntryOffset(1)); err != nil {
		t.Fatalf("corrupt map(1): %v", err)
	}

	err := Check(h)
	inconsistent, ok := err.(*ErrInconsistent)
	if !ok {
		t.Fatalf("Check = %v, want *ErrInconsistent", err)
	}
	if len(inconsistent.Duplicates) == 0 {
		t.Fatalf("expected at least one duplicate, got none: %+v", inconsistent)
	}
}
