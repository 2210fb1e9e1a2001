// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package btt implements a Block Translation Table: single-block
// power-fail write atomicity layered on top of an otherwise non-atomic
// byte-addressable persistent namespace (a file, a region of persistent
// memory, or anything else a Namespace can be built on).
//
// A namespace is partitioned into one or more self-describing arenas.
// Each arena holds a data region, a map (one 32-bit entry per external
// LBA) and a flog (nfree free-block slot pairs). A single Handle manages
// all arenas; callers are given a bounded number of lanes and must call
// every entry point with a lane index unique among currently active
// callers.
//
// Reads and writes never observe a torn block: a write either completes
// in full or not at all across a crash, and a concurrent read either
// returns the block's previous complete value or its new complete value.
// The module does not provide multi-block atomicity, transactions across
// LBAs, compression, deduplication, snapshotting, encryption, scrubbing,
// wear-leveling, or dynamic resizing.
package btt
