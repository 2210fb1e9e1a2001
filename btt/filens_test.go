// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package btt

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestFileNamespaceCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ns.btt")

	ns, err := CreateFileNamespace(path, 1<<20)
	if err != nil {
		t.Fatalf("CreateFileNamespace: %v", err)
	}
	data := fill(0x77, 512)
	if err := ns.WriteAt(0, data, 4096); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := ns.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ns2, err := OpenFileNamespace(path)
	if err != nil {
		t.Fatalf("OpenFileNamespace: %v", err)
	}
	defer ns2.Close()

	if ns2.Size() != 1<<20 {
		t.Fatalf("Size = %d, want %d", ns2.Size(), 1<<20)
	}
	got := make([]byte, 512)
	if err := ns2.ReadAt(0, got, 4096); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("read back mismatch")
	}
}

func TestFileNamespaceCreateRefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ns.btt")
	if _, err := CreateFileNamespace(path, 4096); err != nil {
		t.Fatalf("first CreateFileNamespace: %v", err)
	}
	if _, err := CreateFileNamespace(path, 4096); err == nil {
		t.Fatalf("second CreateFileNamespace on the same path should fail")
	}
}

func TestFileNamespaceMapAtSyncAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ns.btt")
	ns, err := CreateFileNamespace(path, 1<<16)
	if err != nil {
		t.Fatalf("CreateFileNamespace: %v", err)
	}
	defer func() {
		ns.Close()
		os.Remove(path)
	}()

	mapped, err := ns.MapAt(0, 256, 32)
	if err != nil {
		t.Fatalf("MapAt: %v", err)
	}
	for i := range mapped {
		mapped[i] = byte(i + 1)
	}
	if err := ns.SyncAt(0, mapped, 256); err != nil {
		t.Fatalf("SyncAt: %v", err)
	}

	got := make([]byte, 32)
	if err := ns.ReadAt(0, got, 256); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, mapped) {
		t.Fatalf("SyncAt did not persist the mapped write")
	}
}
