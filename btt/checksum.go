// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package btt

import "encoding/binary"

// checksum computes a running Fletcher64 checksum over buf, treating the
// 8 bytes at byte offset skip as zero (this is where the checksum field
// itself lives within buf). It is grounded on the original implementation's
// util_checksum: two 32-bit accumulators, lo32 summing little-endian u32
// words and hi32 summing the running lo32 total.
//
// len(buf) must be a multiple of 4.
func checksum(buf []byte, skip int) uint64 {
	var lo32, hi32 uint32
	for off := 0; off < len(buf); off += 4 {
		if off == skip || off == skip+4 {
			hi32 += lo32
			continue
		}
		lo32 += binary.LittleEndian.Uint32(buf[off : off+4])
		hi32 += lo32
	}
	return uint64(hi32)<<32 | uint64(lo32)
}

// verifyChecksum reports whether the 8-byte little-endian value stored at
// buf[skip:skip+8] equals the checksum of buf with that field zeroed.
func verifyChecksum(buf []byte, skip int) bool {
	want := binary.LittleEndian.Uint64(buf[skip : skip+8])
	return checksum(buf, skip) == want
}

// putChecksum computes the checksum of buf (with the field at skip treated
// as zero) and stores it little-endian at buf[skip:skip+8].
func putChecksum(buf []byte, skip int) {
	binary.LittleEndian.PutUint64(buf[skip:skip+8], checksum(buf, skip))
}
