// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// On-media layout: info block encode/decode, read_layout and write_layout.

package btt

import (
	"encoding/binary"
	"math"
)

const (
	// mapEntryLbaMask, mapEntryZero and mapEntryError carve up a 32-bit
	// map entry: bits 29..0 are the post-map LBA, bit 30 is ZERO, bit 31
	// is ERROR.
	mapEntryLbaMask uint32 = 0x3FFFFFFF
	mapEntryZero    uint32 = 1 << 30
	mapEntryError   uint32 = 1 << 31

	mapEntrySize = 4
	flogEntrySize = 16 // lba, old_map, new_map, seq: four little-endian u32

	infoMajorVersion = 1
	infoMinorVersion = 1

	infoSigLen   = 16
	infoUUIDLen  = 16
	infoSig      = "BTT_ARENA_INFO"

	bttAlignment           = 4096 // map/flog region sizes are rounded up to this
	flogPairAlign          = 64   // size of one (active, inactive) flog slot pair is rounded up to this
	internalLbaAlignment   = 64   // alignment of internal_lbasize
	minInternalLba         = 512  // BTT_MIN_LBA
	minNamespaceSize int64 = 1 << 16 // BTT_MIN_SIZE
)

// maxArenaSize is BTT_MAX_ARENA: the largest single arena write_layout will
// create before starting a new one. It is a var, not a const, so tests can
// shrink it to exercise multi-arena geometry without allocating gigabytes.
var maxArenaSize int64 = 512 << 30 // 512 GiB

// defaultNFree is BTT_DEFAULT_NFREE: the number of free-block slots assumed
// before any arena's info block has been read. It is a var for the same
// reason as maxArenaSize — the spec's own worked scenarios use nfree=4.
var defaultNFree uint32 = 256

func roundupInt64(n, align int64) int64 {
	return (n + align - 1) / align * align
}

// infoBlock is the in-memory, host-order form of an arena's info block. Its
// wire form is produced/consumed by marshal/unmarshalInfo.
type infoBlock struct {
	flags            uint32
	major, minor     uint16
	externalLbasize  uint32
	externalNlba     uint32
	internalLbasize  uint32
	internalNlba     uint32
	nfree            uint32
	infosize         uint32
	nextoff          uint64
	dataoff          uint64
	mapoff           uint64
	flogoff          uint64
	infooff          uint64
	checksum         uint64
	parentUUID       [infoUUIDLen]byte
}

// infoFlag bits, matching the map entry's high bits in spirit though they
// occupy a separate field: the ERROR bit here poisons an entire arena, not
// a single block.
const infoFlagErrorMask uint32 = 0x1

func marshalInfo(info *infoBlock) []byte {
	buf := make([]byte, infoWireSize)
	copy(buf[0:infoSigLen], infoSig)
	off := infoSigLen
	binary.LittleEndian.PutUint32(buf[off:], info.flags)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], info.major)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], info.minor)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], info.externalLbasize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], info.externalNlba)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], info.internalLbasize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], info.internalNlba)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], info.nfree)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], info.infosize)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], info.nextoff)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], info.dataoff)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], info.mapoff)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], info.flogoff)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], info.infooff)
	off += 8
	checksumOff := off
	binary.LittleEndian.PutUint64(buf[off:], 0) // zeroed for the checksum pass
	off += 8
	copy(buf[off:off+infoUUIDLen], info.parentUUID[:])

	putChecksum(buf, checksumOff)
	info.checksum = binary.LittleEndian.Uint64(buf[checksumOff:])
	return buf
}

// infoWireSize is the marshaled size of an infoBlock: it need not be a
// round power of two, unlike the map/flog regions which are explicitly
// rounded to bttAlignment.
var infoWireSize = infoSigLen + 4 + 2 + 2 + 4*6 + 8*6 + infoUUIDLen

func unmarshalInfo(buf []byte) (*infoBlock, bool) {
	if len(buf) < infoWireSize {
		return nil, false
	}

	if string(buf[0:len(infoSig)]) != infoSig {
		return nil, false
	}
	for _, b := range buf[len(infoSig):infoSigLen] {
		if b != 0 {
			return nil, false
		}
	}

	info := &infoBlock{}
	off := infoSigLen
	info.flags = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	info.major = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	if info.major == 0 {
		return nil, false
	}
	info.minor = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	info.externalLbasize = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	info.externalNlba = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	info.internalLbasize = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	info.internalNlba = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	info.nfree = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	info.infosize = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	info.nextoff = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	info.dataoff = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	info.mapoff = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	info.flogoff = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	info.infooff = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	checksumOff := off
	info.checksum = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	copy(info.parentUUID[:], buf[off:off+infoUUIDLen])

	if !verifyChecksum(buf, checksumOff) {
		return nil, false
	}

	return info, true
}

// arenaGeometry is the result of sizing a single arena out of a span of
// rawsize bytes, shared by write_layout (which commits it to media) and
// read_layout's "no layout yet" fallback (which only needs the counts).
type arenaGeometry struct {
	rawsize         int64
	internalLbasize uint32
	internalNlba    uint64
	externalNlba    uint64
	flogSize        int64
	mapSize         int64
	dataoff         int64
	mapoff          int64
	flogoff         int64
	infooff         int64
	nextoff         int64
}

// sizeArena computes the geometry of one arena of up to maxArenaSize bytes
// carved out of rawsize bytes starting at the current layout cursor. It
// mirrors write_layout's per-arena loop body in the original.
func sizeArena(rawsize int64, lbasize uint32, nfree uint32, hasMore bool) arenaGeometry {
	arenaRawsize := rawsize
	if arenaRawsize > maxArenaSize {
		arenaRawsize = maxArenaSize
	}

	internalLbasize := lbasize
	if internalLbasize < minInternalLba {
		internalLbasize = minInternalLba
	}
	internalLbasize = uint32(roundupInt64(int64(internalLbasize), internalLbaAlignment))

	flogSize := roundupInt64(int64(nfree)*roundupInt64(2*flogEntrySize, flogPairAlign), bttAlignment)

	arenaDatasize := arenaRawsize - 2*int64(infoWireSize) - flogSize
	internalNlba := uint64((arenaDatasize - bttAlignment) / (int64(internalLbasize) + mapEntrySize))
	externalNlba := internalNlba - uint64(nfree)

	mapSize := roundupInt64(int64(externalNlba)*mapEntrySize, bttAlignment)

	infooff := arenaRawsize - int64(infoWireSize)
	flogoff := infooff - flogSize
	mapoff := flogoff - mapSize
	dataoff := int64(infoWireSize)

	var nextoff int64
	if hasMore {
		nextoff = arenaRawsize
	}

	return arenaGeometry{
		rawsize:         arenaRawsize,
		internalLbasize: internalLbasize,
		internalNlba:    internalNlba,
		externalNlba:    externalNlba,
		flogSize:        flogSize,
		mapSize:         mapSize,
		dataoff:         dataoff,
		mapoff:          mapoff,
		flogoff:         flogoff,
		infooff:         infooff,
		nextoff:         nextoff,
	}
}

// planLayout walks rawsize dividing it into arenas the way write_layout
// does; read_layout's no-layout fallback uses the same plan for its counts.
func planLayout(rawsize int64, lbasize uint32, nfree uint32) []arenaGeometry {
	var arenas []arenaGeometry
	remaining := rawsize
	for remaining >= minNamespaceSize {
		arenaSize := remaining
		if arenaSize > maxArenaSize {
			arenaSize = maxArenaSize
		}
		remaining -= arenaSize
		hasMore := remaining >= minNamespaceSize
		arenas = append(arenas, sizeArena(arenaSize, lbasize, nfree, hasMore))
	}
	return arenas
}

// readLayout is read_layout: it walks the namespace arena by arena,
// validating each info block, and either populates h with the arenas it
// found or — if arena 0 has no valid info block at all — falls back to
// planLayout to compute the geometry a write_layout call would produce,
// leaving h.laidout false. A mix of "arena 0 has a layout" and "arena 1
// doesn't" is treated as corruption, not as "no layout", since
// write_layout always commits every arena before returning.
func (h *Handle) readLayout(lane int) error {
	h.nfree = defaultNFree

	narena := 0
	smallestNfree := uint32(math.MaxUint32)
	rawsize := h.rawsize
	arenaOff := int64(0)
	var totalNlba uint64
	var arenas []*arena
	var infos []*infoBlock

	for rawsize >= minNamespaceSize {
		narena++
		a, info, err := loadArena(h.ns, lane, arenaOff)
		if err != nil {
			return err
		}
		if info == nil {
			if narena > 1 {
				return &ErrLayout{Src: "read_layout: missing arena info", Off: arenaOff}
			}
			plan := planLayout(h.rawsize, h.lbasize, h.nfree)
			var nlba uint64
			for _, g := range plan {
				nlba += g.externalNlba
			}
			h.narena = len(plan)
			h.nlba = nlba
			h.laidout = false
			return nil
		}

		if info.nfree < smallestNfree {
			smallestNfree = info.nfree
		}
		totalNlba += uint64(info.externalNlba)
		arenas = append(arenas, a)
		infos = append(infos, info)

		nextoff := int64(info.nextoff)
		if nextoff == 0 {
			break
		}
		arenaOff += nextoff
		rawsize -= nextoff
	}

	for i := 1; i < len(infos); i++ {
		if infos[i].externalLbasize != infos[0].externalLbasize {
			return &ErrLayout{Src: "read_layout: arena external_lbasize mismatch", Off: arenas[i].startoff}
		}
		if infos[i].parentUUID != infos[0].parentUUID {
			return &ErrLayout{Src: "read_layout: arena parent_uuid mismatch", Off: arenas[i].startoff}
		}
	}

	h.narena = narena
	h.nlba = totalNlba
	if smallestNfree < h.nfree {
		h.nfree = smallestNfree
	}
	h.arenas = arenas
	h.laidout = true
	return nil
}

// writeLayout is write_layout: it partitions h.rawsize into arenas via
// planLayout, commits each arena's identity map, initial flog pairs and
// checksummed info block (two copies), then reloads every arena through
// loadArena so h ends up in exactly the state a subsequent readLayout
// would have produced.
func (h *Handle) writeLayout(lane int) error {
	plan := planLayout(h.rawsize, h.lbasize, h.nfree)
	if len(plan) == 0 {
		return &ErrInvalidArg{Src: "write_layout", Arg: h.rawsize}
	}

	arenaOff := int64(0)
	var totalNlba uint64
	for _, g := range plan {
		if err := writeArena(h.ns, lane, arenaOff, g, h.lbasize, h.nfree, h.parentUUID); err != nil {
			return err
		}
		totalNlba += g.externalNlba
		arenaOff += g.rawsize
	}

	arenas := make([]*arena, 0, len(plan))
	off := int64(0)
	for range plan {
		a, info, err := loadArena(h.ns, lane, off)
		if err != nil {
			return err
		}
		if info == nil {
			return &ErrLayout{Src: "write_layout: reload", Off: off}
		}
		arenas = append(arenas, a)
		if info.nextoff == 0 {
			break
		}
		off += int64(info.nextoff)
	}

	h.narena = len(plan)
	h.nlba = totalNlba
	h.arenas = arenas
	h.laidout = true
	return nil
}

// writeArena commits one arena's on-media layout at startoff: the
// identity map (every entry ZERO-flagged, since no external LBA has
// been written to yet), nfree initial flog pairs (one active slot naming
// a distinct free internal LBA beyond externalNlba, one all-zero
// partner), and two checksummed copies of the info block.
func writeArena(ns Namespace, lane int, startoff int64, g arenaGeometry, lbasize uint32, nfree uint32, parentUUID [infoUUIDLen]byte) error {
	const mapChunkEntries = 4096
	chunk := make([]byte, mapChunkEntries*mapEntrySize)
	lba := uint64(0)
	for lba < g.externalNlba {
		n := g.externalNlba - lba
		if n > mapChunkEntries {
			n = mapChunkEntries
		}
		buf := chunk[:n*mapEntrySize]
		for i := uint64(0); i < n; i++ {
			binary.LittleEndian.PutUint32(buf[i*mapEntrySize:], uint32(lba+i)|mapEntryZero)
		}
		off := startoff + g.mapoff + int64(lba)*mapEntrySize
		mapped, err := ns.MapAt(lane, off, len(buf))
		if err != nil {
			return &ErrIO{Src: "writeArena: map", Off: off, More: err}
		}
		copy(mapped, buf)
		if err := ns.SyncAt(lane, mapped, off); err != nil {
			return &ErrIO{Src: "writeArena: map sync", Off: off, More: err}
		}
		lba += n
	}

	for i := uint32(0); i < nfree; i++ {
		freeLba := uint32(g.externalNlba) + i
		var pair [2 * flogEntrySize]byte
		binary.LittleEndian.PutUint32(pair[0:4], 0)
		binary.LittleEndian.PutUint32(pair[4:8], (freeLba)|mapEntryZero)
		binary.LittleEndian.PutUint32(pair[8:12], (freeLba)|mapEntryZero)
		binary.LittleEndian.PutUint32(pair[12:16], 1)
		// partner slot left all-zero: seq 0 marks it as never written.
		off := startoff + g.flogoff + int64(i)*flogSlotAlign
		if err := ns.WriteAt(lane, pair[:], off); err != nil {
			return &ErrIO{Src: "writeArena: flog", Off: off, More: err}
		}
	}

	info := &infoBlock{
		flags:           0,
		major:           infoMajorVersion,
		minor:           infoMinorVersion,
		externalLbasize: lbasize,
		externalNlba:    uint32(g.externalNlba),
		internalLbasize: g.internalLbasize,
		internalNlba:    uint32(g.internalNlba),
		nfree:           nfree,
		infosize:        uint32(infoWireSize),
		nextoff:         uint64(g.nextoff),
		dataoff:         uint64(g.dataoff),
		mapoff:          uint64(g.mapoff),
		flogoff:         uint64(g.flogoff),
		infooff:         uint64(g.infooff),
		parentUUID:      parentUUID,
	}
	buf := marshalInfo(info)

	if err := ns.WriteAt(lane, buf, startoff); err != nil {
		return &ErrIO{Src: "writeArena: info (primary)", Off: startoff, More: err}
	}
	if err := ns.WriteAt(lane, buf, startoff+g.infooff); err != nil {
		return &ErrIO{Src: "writeArena: info (backup)", Off: startoff + g.infooff, More: err}
	}
	return nil
}
