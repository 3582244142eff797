/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
)

// memFile adapts a byte slice into an io.ReadWriteSeeker with Truncate,
// standing in for an *os.File in tests that never run the Go toolchain
// against real disk files.
type memFile struct {
	buf []byte
	pos int64
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	}
	m.pos = abs
	return abs, nil
}

func (m *memFile) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Truncate(size int64) error {
	if size <= int64(len(m.buf)) {
		m.buf = m.buf[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

func randomSparseImage(t *testing.T, size int64) []byte {
	t.Helper()
	buf := make([]byte, size)
	r := rand.New(rand.NewSource(1))
	// Fill every third grain with data; leave the rest zero to exercise
	// the writer/extractor's hole handling.
	for g := int64(0); g*GrainBytes < size; g += 3 {
		start := g * GrainBytes
		end := start + GrainBytes
		if end > size {
			end = size
		}
		r.Read(buf[start:end])
	}
	return buf
}

func TestWriteThenExtractRandomAccessRoundTrip(t *testing.T) {
	// Span more than one grain table so the grain directory has multiple
	// entries to resolve.
	const capacitySectors = (NumGTEsPerGT + 20) * GrainSectors
	raw := randomSparseImage(t, capacitySectors*SectorSize)

	dst := &memFile{}
	opts := WriteOptions{CapacitySectors: capacitySectors}
	if err := WriteStreamOptimized(dst, bytes.NewReader(raw), opts, nil); err != nil {
		t.Fatalf("WriteStreamOptimized: %v", err)
	}

	out := &memFile{}
	if err := ExtractRandomAccess(dst, int64(len(dst.buf)), out, true, nil); err != nil {
		t.Fatalf("ExtractRandomAccess: %v", err)
	}

	if !bytes.Equal(out.buf, raw) {
		t.Fatalf("round trip mismatch: extracted %d bytes, source %d bytes", len(out.buf), len(raw))
	}
}

func TestWriteThenExtractStreamRoundTrip(t *testing.T) {
	const capacitySectors = 40 * GrainSectors
	raw := randomSparseImage(t, capacitySectors*SectorSize)

	dst := &memFile{}
	opts := WriteOptions{CapacitySectors: capacitySectors, DeflateStrength: 9}
	if err := WriteStreamOptimized(dst, bytes.NewReader(raw), opts, nil); err != nil {
		t.Fatalf("WriteStreamOptimized: %v", err)
	}

	out := &memFile{}
	if err := ExtractStream(bytes.NewReader(dst.buf), out, nil); err != nil {
		t.Fatalf("ExtractStream: %v", err)
	}

	if !bytes.Equal(out.buf, raw) {
		t.Fatalf("round trip mismatch: extracted %d bytes, source %d bytes", len(out.buf), len(raw))
	}
}

func TestWriteRejectsNonPositiveCapacity(t *testing.T) {
	var dst bytes.Buffer
	err := WriteStreamOptimized(&dst, bytes.NewReader(nil), WriteOptions{}, nil)
	if err == nil {
		t.Fatal("expected an error for zero capacity")
	}
}

func TestWriteCapacityNotMultipleOfGrainSize(t *testing.T) {
	const capacitySectors = GrainSectors + 7
	raw := randomSparseImage(t, capacitySectors*SectorSize)

	dst := &memFile{}
	opts := WriteOptions{CapacitySectors: capacitySectors}
	if err := WriteStreamOptimized(dst, bytes.NewReader(raw), opts, nil); err != nil {
		t.Fatalf("WriteStreamOptimized: %v", err)
	}

	out := &memFile{}
	if err := ExtractRandomAccess(dst, int64(len(dst.buf)), out, true, nil); err != nil {
		t.Fatalf("ExtractRandomAccess: %v", err)
	}
	if !bytes.Equal(out.buf, raw) {
		t.Fatal("round trip mismatch for a non-grain-aligned capacity")
	}
}

func TestInspectFindsFooterWhenHeaderSentinel(t *testing.T) {
	const capacitySectors = GrainSectors * 4
	raw := randomSparseImage(t, capacitySectors*SectorSize)

	dst := &memFile{}
	opts := WriteOptions{CapacitySectors: capacitySectors}
	if err := WriteStreamOptimized(dst, bytes.NewReader(raw), opts, nil); err != nil {
		t.Fatalf("WriteStreamOptimized: %v", err)
	}

	// Simulate a writer that never backpatched the leading header (as the
	// sentinel mechanism is designed to tolerate): restore the leading
	// header's gdOffset to the "look in the footer" sentinel.
	head := new(Header)
	if err := head.UnmarshalBinary(dst.buf[:HeaderSize]); err != nil {
		t.Fatal(err)
	}
	head.GDOffset = InFooterGDOffset()
	sentinelBytes, err := head.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	copy(dst.buf[:HeaderSize], sentinelBytes)

	resolved, err := Inspect(dst, int64(len(dst.buf)), true, nil)
	if err != nil {
		t.Fatalf("Inspect with sentinel header: %v", err)
	}
	if resolved.GDOffset.InFooter() {
		t.Fatal("expected Inspect to resolve the grain directory offset via the footer")
	}
	if int64(resolved.Capacity) != capacitySectors {
		t.Fatalf("resolved capacity = %d, want %d", resolved.Capacity, capacitySectors)
	}

	out := &memFile{}
	if err := ExtractRandomAccess(dst, int64(len(dst.buf)), out, true, nil); err != nil {
		t.Fatalf("ExtractRandomAccess with sentinel header: %v", err)
	}
	if !bytes.Equal(out.buf, raw) {
		t.Fatal("round trip mismatch when the grain directory offset must be resolved via the footer")
	}
}

func TestBackpatchedHeaderMatchesFooter(t *testing.T) {
	const capacitySectors = GrainSectors * 4
	raw := randomSparseImage(t, capacitySectors*SectorSize)

	dst := &memFile{}
	opts := WriteOptions{CapacitySectors: capacitySectors}
	if err := WriteStreamOptimized(dst, bytes.NewReader(raw), opts, nil); err != nil {
		t.Fatalf("WriteStreamOptimized: %v", err)
	}

	head := new(Header)
	if err := head.UnmarshalBinary(dst.buf[:HeaderSize]); err != nil {
		t.Fatal(err)
	}
	if head.GDOffset.InFooter() {
		t.Fatal("expected the header at offset 0 to be backpatched with a resolved grain directory offset")
	}

	resolved, err := Inspect(dst, int64(len(dst.buf)), true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.GDOffset != head.GDOffset {
		t.Fatalf("footer-resolved gdOffset %s disagrees with backpatched header gdOffset %s", resolved.GDOffset, head.GDOffset)
	}
	if resolved.Capacity != head.Capacity {
		t.Fatalf("footer-resolved capacity %d disagrees with backpatched header capacity %d", resolved.Capacity, head.Capacity)
	}
}
