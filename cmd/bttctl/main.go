// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Bttctl is a small command line front end for the btt package: it can
// format a namespace file, read or write one external block, and run the
// consistency checker.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/cznic/btt/btt"
	"github.com/google/uuid"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: bttctl -f file [-size n] [-lbasize n] [-lanes n] cmd [args]

commands:
  format              create file and format it as a fresh BTT namespace
  read lba             read one external block to stdout (hex)
  write lba             write one external block of lbasize bytes from stdin
  check               run the consistency checker
`)
	os.Exit(2)
}

var (
	oFile    = flag.String("f", "", "namespace file")
	oSize    = flag.Int64("size", 16<<20, "namespace size in bytes (format only)")
	oLbasize = flag.Int("lbasize", 512, "external block size")
	oNlane   = flag.Int("lanes", 4, "lane count")
	oUUID    = flag.String("uuid", "6e455bc4-6e41-4e73-8b5c-7a6c1a0bd001", "parent UUID identifying this namespace")
)

func parentUUID() [16]byte {
	id, err := uuid.Parse(*oUUID)
	if err != nil {
		log.Fatalf("invalid -uuid %q: %v", *oUUID, err)
	}
	var b [16]byte
	copy(b[:], id[:])
	return b
}

func main() {
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()

	if *oFile == "" || flag.NArg() < 1 {
		usage()
	}

	switch cmd := flag.Arg(0); cmd {
	case "format":
		doFormat()
	case "read":
		doRead(flag.Args()[1:])
	case "write":
		doWrite(flag.Args()[1:])
	case "check":
		doCheck()
	default:
		log.Fatalf("unknown command %q", cmd)
	}
}

func doFormat() {
	ns, err := btt.CreateFileNamespace(*oFile, *oSize)
	if err != nil {
		log.Fatal(err)
	}
	defer ns.Close()

	h, err := btt.Init(*oSize, uint32(*oLbasize), parentUUID(), *oNlane, ns)
	if err != nil {
		log.Fatal(err)
	}
	// Force the layout to be written now rather than on first use, so a
	// freshly formatted namespace is immediately inspectable.
	if err := btt.Write(h, 0, 0, make([]byte, *oLbasize)); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("formatted %s: %d external blocks of %d bytes\n", *oFile, btt.NLba(h), *oLbasize)
}

func openNamespace() (*btt.FileNamespace, *btt.Handle) {
	ns, err := btt.OpenFileNamespace(*oFile)
	if err != nil {
		log.Fatal(err)
	}
	h, err := btt.Init(ns.Size(), uint32(*oLbasize), parentUUID(), *oNlane, ns)
	if err != nil {
		log.Fatal(err)
	}
	return ns, h
}

func doRead(args []string) {
	if len(args) != 1 {
		usage()
	}
	lba := parseLba(args[0])

	ns, h := openNamespace()
	defer ns.Close()

	buf := make([]byte, *oLbasize)
	if err := btt.Read(h, 0, lba, buf); err != nil {
		log.Fatal(err)
	}
	fmt.Println(hex.EncodeToString(buf))
}

func doWrite(args []string) {
	if len(args) != 1 {
		usage()
	}
	lba := parseLba(args[0])

	ns, h := openNamespace()
	defer ns.Close()

	buf := make([]byte, *oLbasize)
	if _, err := io.ReadFull(os.Stdin, buf); err != nil {
		log.Fatalf("reading %d bytes from stdin: %v", len(buf), err)
	}
	if err := btt.Write(h, 0, lba, buf); err != nil {
		log.Fatal(err)
	}
}

func doCheck() {
	ns, h := openNamespace()
	defer ns.Close()

	if err := btt.Check(h); err != nil {
		log.Fatal(err)
	}
	fmt.Println("consistent")
}

func parseLba(s string) uint64 {
	var lba uint64
	if _, err := fmt.Sscanf(s, "%d", &lba); err != nil {
		log.Fatalf("invalid lba %q: %v", s, err)
	}
	return lba
}
