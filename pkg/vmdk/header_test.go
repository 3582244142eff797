/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	h := &Header{
		MagicNumber:        Magic,
		Version:            1,
		Flags:              FlagNLDetectValid | FlagMarkersPresent,
		Capacity:           204800,
		GrainSize:          GrainSectors,
		DescriptorOffset:   1,
		DescriptorSize:     20,
		NumGTEsPerGT:       NumGTEsPerGT,
		RGDOffset:          0,
		GDOffset:           KnownGDOffset(12345),
		OverHead:           128,
		UncleanShutdown:    false,
		SingleEndLineChar:  '\n',
		NonEndLineChar:     ' ',
		DoubleEndLineChar1: '\r',
		DoubleEndLineChar2: '\n',
		CompressAlgorithm:  CompressionDeflate,
	}

	buf, err := h.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != HeaderSize {
		t.Fatalf("marshaled header is %d bytes, want %d", len(buf), HeaderSize)
	}

	got := new(Header)
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatal(err)
	}

	if *got != *h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestHeaderSentinelGDOffset(t *testing.T) {
	h := &Header{MagicNumber: Magic, GDOffset: InFooterGDOffset()}
	buf, err := h.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	got := new(Header)
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatal(err)
	}
	if !got.GDOffset.InFooter() {
		t.Fatal("expected GDOffset to round-trip as the footer sentinel")
	}
	if _, ok := got.GDOffset.Sector(); ok {
		t.Fatal("Sector() should not resolve while InFooter")
	}
}

func TestHasValidMagic(t *testing.T) {
	h := &Header{MagicNumber: Magic}
	if !h.HasValidMagic() {
		t.Fatal("expected valid magic")
	}
	h.MagicNumber = 0
	if h.HasValidMagic() {
		t.Fatal("expected invalid magic to be rejected")
	}
}

func TestNewlineMismatches(t *testing.T) {
	h := &Header{
		SingleEndLineChar:  '\n',
		NonEndLineChar:     ' ',
		DoubleEndLineChar1: '\r',
		DoubleEndLineChar2: '\n',
	}
	if got := h.NewlineMismatches(); len(got) != 0 {
		t.Fatalf("expected no mismatches, got %v", got)
	}

	h.SingleEndLineChar = 'x'
	if got := h.NewlineMismatches(); len(got) != 1 {
		t.Fatalf("expected exactly one mismatch, got %v", got)
	}
}

func TestUnmarshalBinaryWrongSize(t *testing.T) {
	h := new(Header)
	if err := h.UnmarshalBinary(make([]byte, HeaderSize-1)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}
