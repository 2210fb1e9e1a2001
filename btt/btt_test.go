// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// End-to-end scenarios straight out of the design doc's worked examples.

package btt

import (
	"bytes"
	"sync"
	"testing"
)

func smallHandle(t *testing.T, size int64) (*Handle, *MemNamespace) {
	t.Helper()
	old, oldFree := maxArenaSize, defaultNFree
	maxArenaSize = 1 << 24
	defaultNFree = 4
	t.Cleanup(func() { maxArenaSize, defaultNFree = old, oldFree })

	ns := NewMemNamespace(size)
	var uuid [16]byte
	copy(uuid[:], "scenario-uuid...")
	h, err := Init(size, 512, uuid, 4, ns)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return h, ns
}

// Scenario 1: fresh namespace reads as zero.
func TestScenarioFreshReadsZero(t *testing.T) {
	h, _ := smallHandle(t, 1<<20)
	buf := fill(0xAA, 512)
	if err := Read(h, 0, 0, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, make([]byte, 512)) {
		t.Fatalf("fresh read not all zero: %x...", buf[:8])
	}
}

// Scenario 2: write, read back, overwrite, read back.
func TestScenarioWriteThenRead(t *testing.T) {
	h, _ := smallHandle(t, 1<<20)
	A := fill(0x11, 512)
	B := fill(0x22, 512)

	if err := Write(h, 0, 0, A); err != nil {
		t.Fatalf("write A: %v", err)
	}
	got := make([]byte, 512)
	if err := Read(h, 0, 0, got); err != nil {
		t.Fatalf("read after A: %v", err)
	}
	if !bytes.Equal(got, A) {
		t.Fatalf("read after write A mismatch")
	}

	if err := Write(h, 0, 0, B); err != nil {
		t.Fatalf("write B: %v", err)
	}
	if err := Read(h, 0, 0, got); err != nil {
		t.Fatalf("read after B: %v", err)
	}
	if !bytes.Equal(got, B) {
		t.Fatalf("read after write B mismatch")
	}
}

// Scenario 3: set_zero reverts a written block to all zeros.
func TestScenarioSetZero(t *testing.T) {
	h, _ := smallHandle(t, 1<<20)
	A := fill(0x11, 512)
	if err := Write(h, 0, 0, A); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := SetZero(h, 0, 0); err != nil {
		t.Fatalf("SetZero: %v", err)
	}
	got := make([]byte, 512)
	if err := Read(h, 0, 0, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, make([]byte, 512)) {
		t.Fatalf("read after SetZero not all zero")
	}
}

// Scenario 4: set_error poisons one LBA without affecting others.
func TestScenarioSetError(t *testing.T) {
	h, _ := smallHandle(t, 1<<20)
	if err := SetError(h, 0, 1); err != nil {
		t.Fatalf("SetError: %v", err)
	}

	buf := make([]byte, 512)
	err := Read(h, 0, 1, buf)
	if _, ok := err.(*ErrPoisoned); !ok {
		t.Fatalf("Read(1) after SetError = %v, want *ErrPoisoned", err)
	}

	if err := Read(h, 0, 0, buf); err != nil {
		t.Fatalf("Read(0) should be unaffected by SetError(1): %v", err)
	}
}

// SetZero after SetError must not clear ERROR: setMapFlag ORs the new
// flag into the entry (spec §4.7) rather than replacing whichever flag
// bit was already set, so a poisoned block stays poisoned until Write.
func TestSetZeroDoesNotClearSetError(t *testing.T) {
	h, _ := smallHandle(t, 1<<20)
	if err := SetError(h, 0, 1); err != nil {
		t.Fatalf("SetError: %v", err)
	}
	if err := SetZero(h, 0, 1); err != nil {
		t.Fatalf("SetZero: %v", err)
	}

	buf := make([]byte, 512)
	err := Read(h, 0, 1, buf)
	if _, ok := err.(*ErrPoisoned); !ok {
		t.Fatalf("Read(1) after SetError+SetZero = %v, want *ErrPoisoned", err)
	}
}

// Scenario 5: two lanes writing distinct LBAs concurrently converge.
func TestScenarioConcurrentLanes(t *testing.T) {
	h, _ := smallHandle(t, 1<<20)
	A := fill(0x33, 512)
	B := fill(0x44, 512)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = Write(h, 0, 0, A) }()
	go func() { defer wg.Done(); errs[1] = Write(h, 1, 1, B) }()
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatalf("concurrent write: %v", err)
		}
	}

	got := make([]byte, 512)
	if err := Read(h, 0, 0, got); err != nil || !bytes.Equal(got, A) {
		t.Fatalf("read(0) = %v, %x..., want %x...", err, got[:4], A[:4])
	}
	if err := Read(h, 0, 1, got); err != nil || !bytes.Equal(got, B) {
		t.Fatalf("read(1) = %v, %x..., want %x...", err, got[:4], B[:4])
	}
}

// P5: out-of-range LBAs fail with ErrInvalidArg on every entry point.
func TestRangeChecks(t *testing.T) {
	h, _ := smallHandle(t, 1<<20)
	n := NLba(h)

	buf := make([]byte, 512)
	if err := Read(h, 0, n, buf); err == nil {
		t.Fatalf("Read(nlba) should fail")
	}
	if err := Write(h, 0, n, buf); err == nil {
		t.Fatalf("Write(nlba) should fail")
	}
	if err := SetZero(h, 0, n); err == nil {
		t.Fatalf("SetZero(nlba) should fail")
	}
	if err := SetError(h, 0, n); err == nil {
		t.Fatalf("SetError(nlba) should fail")
	}
}

// P7: reopening an idle namespace twice in a row yields identical state.
func TestReopenIdempotent(t *testing.T) {
	h, ns := smallHandle(t, 1<<20)
	if err := Write(h, 0, 5, fill(0x55, 512)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var uuid [16]byte
	copy(uuid[:], "scenario-uuid...")
	h2, err := Init(ns.Size(), 512, uuid, 4, ns)
	if err != nil {
		t.Fatalf("reopen 1: %v", err)
	}
	h3, err := Init(ns.Size(), 512, uuid, 4, ns)
	if err != nil {
		t.Fatalf("reopen 2: %v", err)
	}
	if h2.nlba != h3.nlba || h2.narena != h3.narena || h2.nfree != h3.nfree {
		t.Fatalf("reopen state diverged: %+v vs %+v", h2, h3)
	}
	got2 := make([]byte, 512)
	got3 := make([]byte, 512)
	Read(h2, 0, 5, got2)
	Read(h3, 0, 5, got3)
	if !bytes.Equal(got2, got3) {
		t.Fatalf("reopen reads diverged")
	}
}

// P8/P9: after a workload of writes and set_* calls, Check finds the
// arena's map/flog bookkeeping consistent.
func TestCheckAfterWorkload(t *testing.T) {
	h, _ := smallHandle(t, 1<<20)
	for i := uint64(0); i < 20; i++ {
		if err := Write(h, 0, i, fill(byte(i), 512)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	for i := uint64(0); i < 20; i++ {
		if err := Write(h, 0, i, fill(byte(i+1), 512)); err != nil {
			t.Fatalf("rewrite %d: %v", i, err)
		}
	}
	if err := SetZero(h, 0, 3); err != nil {
		t.Fatalf("SetZero: %v", err)
	}
	if err := SetError(h, 0, 7); err != nil {
		t.Fatalf("SetError: %v", err)
	}

	if err := Check(h); err != nil {
		t.Fatalf("Check: %v", err)
	}
}
