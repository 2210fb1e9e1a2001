// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Btt crash test.
package main

import (
	"flag"
	"log"
	"log/syslog"
	"math/rand"
	"os"
	"time"

	"github.com/cznic/btt/btt"
	"github.com/google/uuid"
)

var (
	oFile    = flag.String("f", "crash-test.ns", "crash test namespace file")
	oSize    = flag.Int64("size", 16<<20, "namespace size in bytes")
	oLbasize = flag.Int("lbasize", 512, "external block size")
	oNlane   = flag.Int("lanes", 4, "lane count")
)

var parentUUID = func() [16]byte {
	id := uuid.MustParse("c1a55e7e-4b77-4c0d-9d0a-5a5b5c1a55e7")
	var b [16]byte
	copy(b[:], id[:])
	return b
}()

// dummie runs as the child process: it opens the namespace and hammers a
// single lane with sequential writes until killed by the master.
func dummie() {
	log.SetFlags(log.Flags() | log.Lshortfile)

	ns, err := btt.OpenFileNamespace(*oFile)
	if err != nil {
		log.Fatal(err)
	}

	h, err := btt.Init(*oSize, uint32(*oLbasize), parentUUID, *oNlane, ns)
	if err != nil {
		log.Fatal(err)
	}

	nlba := btt.NLba(h)
	buf := make([]byte, *oLbasize)
	c := time.After(time.Minute)
	for i := 0; ; i++ {
		select {
		case <-c:
			log.Fatal("timeout")
		default:
		}

		lba := uint64(i) % nlba
		for j := range buf {
			buf[j] = byte(i)
		}
		if err := btt.Write(h, 0, lba, buf); err != nil {
			log.Fatal(err)
		}
	}
}

func main() {
	slg, err := syslog.NewLogger(syslog.LOG_USER|syslog.LOG_DEBUG, log.Lshortfile)
	if err != nil {
		log.Fatal(err)
	}

	oTest := flag.Bool("test", false, "run as a crash test dummie")
	flag.Parse()
	if *oTest {
		dummie() // does/should not return
		panic("unreachable")
	}

	slg.Print("Master started")
	ncrash := 1
	for {
		os.Remove(*oFile)
		ns, err := btt.CreateFileNamespace(*oFile, *oSize)
		if err != nil {
			slg.Fatal(err)
		}
		if err := ns.Close(); err != nil {
			slg.Fatal(err)
		}

		lifespan := time.Duration(1+rand.Intn(3)) * time.Second
		proc, err := os.StartProcess(
			os.Args[0],
			[]string{os.Args[0], "-test", "-f", *oFile, "-size", flag.Lookup("size").Value.String()},
			&os.ProcAttr{Files: []*os.File{os.Stdin, os.Stdout, os.Stderr}},
		)
		if err != nil {
			slg.Fatal(err)
		}

		<-time.After(lifespan)
		if err := proc.Kill(); err != nil {
			slg.Fatal(err)
		}
		proc.Wait()

		t0 := time.Now()
		ns2, err := btt.OpenFileNamespace(*oFile)
		if err != nil {
			slg.Fatal(err)
		}

		h, err := btt.Init(*oSize, uint32(*oLbasize), parentUUID, *oNlane, ns2)
		if err != nil {
			slg.Fatal(err)
		}
		opened := time.Since(t0)

		if err := btt.Check(h); err != nil {
			slg.Fatal(err)
		}

		buf := make([]byte, *oLbasize)
		nlba := btt.NLba(h)
		checked := 0
		for lba := uint64(0); lba < nlba && lba < 4096; lba++ {
			if err := btt.Read(h, 0, lba, buf); err != nil {
				slg.Fatal(err)
			}
			checked++
		}

		btt.Fini(h)
		if err := ns2.Close(); err != nil {
			slg.Fatal(err)
		}

		log.Printf("#%d: lived %s, nlba %d, checked %d blocks, reopened in %s",
			ncrash, lifespan, nlba, checked, opened)
		ncrash++
	}
}
