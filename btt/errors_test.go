// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package btt

import (
	"errors"
	"testing"
)

func TestErrIOUnwrap(t *testing.T) {
	sentinel := errors.New("disk exploded")
	err := &ErrIO{Src: "test", Off: 0, More: sentinel}
	if !errors.Is(err, sentinel) {
		t.Fatalf("errors.Is did not see through ErrIO.Unwrap")
	}
}

func TestErrorMessagesMentionKeyFields(t *testing.T) {
	cases := []error{
		&ErrInvalidArg{Src: "Read", Arg: 99},
		&ErrPoisoned{Lba: 5},
		&ErrArenaError{Arena: 2, Flags: 1},
		&ErrLayout{Src: "read_layout", Off: 4096},
		&ErrInconsistent{Arena: 0, Duplicates: []int64{3}, Unreferenced: []int64{9}},
	}
	for _, err := range cases {
		if err.Error() == "" {
			t.Errorf("%T produced an empty message", err)
		}
	}
}
