// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package btt

import "testing"

func TestChecksumRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = byte(i * 7)
	}
	putChecksum(buf, 32)
	if !verifyChecksum(buf, 32) {
		t.Fatalf("checksum did not verify after putChecksum")
	}

	buf[0] ^= 0xff
	if verifyChecksum(buf, 32) {
		t.Fatalf("checksum verified after corrupting a data byte")
	}
}

func TestChecksumFieldTreatedAsZero(t *testing.T) {
	a := make([]byte, 32)
	b := make([]byte, 32)
	for i := range a {
		a[i] = byte(i)
		b[i] = byte(i)
	}
	// Poison the checksum field of a before computing, leave b's at zero:
	// the checksum pass must ignore both equally.
	a[8], a[9], a[10], a[11] = 1, 2, 3, 4
	if checksum(a, 8) != checksum(b, 8) {
		t.Fatalf("checksum depended on the bytes at the skip offset")
	}
}
