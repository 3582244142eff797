/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import (
	"bytes"
	"testing"
)

func TestMarkerRoundTripGrain(t *testing.T) {
	m := &Marker{Val: 256, Size: 37}
	copy(m.Payload[:], []byte("compressed grain payload goes here"))

	buf, err := m.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != MarkerSize {
		t.Fatalf("marshaled marker is %d bytes, want %d", len(buf), MarkerSize)
	}

	got := new(Marker)
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatal(err)
	}
	if got.Val != m.Val || got.Size != m.Size {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
	if !bytes.Equal(got.Payload[:m.Size], m.Payload[:m.Size]) {
		t.Fatal("payload mismatch after round trip")
	}
	if !got.IsGrain() {
		t.Fatal("expected IsGrain to be true")
	}
}

func TestMarkerRoundTripMeta(t *testing.T) {
	m := &Marker{Val: 4, Type: MarkerGT}

	buf, err := m.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	got := new(Marker)
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatal(err)
	}
	if got.IsGrain() {
		t.Fatal("expected IsGrain to be false for a meta marker")
	}
	if got.Type != MarkerGT {
		t.Fatalf("got type %d, want %d", got.Type, MarkerGT)
	}
}

func TestMarkerGrainSectors(t *testing.T) {
	cases := []struct {
		size int64
		want int64
	}{
		{0, 1},
		{500, 1},
		{512, 2},
		{1000, 2},
		{1024, 3},
	}
	for _, c := range cases {
		m := &Marker{Size: uint32(c.size)}
		if got := m.GrainSectors(); got != c.want {
			t.Errorf("GrainSectors(Size=%d) = %d, want %d", c.size, got, c.want)
		}
	}
}
