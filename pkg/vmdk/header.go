/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the exact on-disk size of a SparseExtentHeader. Both a
// Header and a Marker must serialize to exactly this many bytes.
const HeaderSize = 512

// GDOffset is a tagged value for SparseExtentHeader.GDOffset: either a
// known grain directory sector, or a signal that the real offset lives in
// the trailing footer copy of the header. The sentinel is only ever
// visible at the wire-format boundary (Header.MarshalBinary/UnmarshalBinary);
// everywhere else in the package this tagged form is used instead.
type GDOffset struct {
	sector   int64
	inFooter bool
}

// KnownGDOffset returns a GDOffset referring to a resolved sector.
func KnownGDOffset(sector int64) GDOffset {
	return GDOffset{sector: sector}
}

// InFooterGDOffset returns the "look in the footer" GDOffset.
func InFooterGDOffset() GDOffset {
	return GDOffset{inFooter: true}
}

// InFooter reports whether the real grain directory offset must be
// resolved from the footer.
func (g GDOffset) InFooter() bool {
	return g.inFooter
}

// Sector returns the resolved sector and true, or (0, false) if the value
// is still the "look in the footer" sentinel.
func (g GDOffset) Sector() (int64, bool) {
	if g.inFooter {
		return 0, false
	}
	return g.sector, true
}

func (g GDOffset) String() string {
	if g.inFooter {
		return "<in footer>"
	}
	return fmt.Sprintf("%d", g.sector)
}

// Header is the in-memory form of a VMDK SparseExtentHeader (also reused
// verbatim as the footer's embedded header). Field order matches the
// on-disk layout exactly; see MarshalBinary for byte offsets.
type Header struct {
	MagicNumber        uint32
	Version            uint32
	Flags              uint32
	Capacity           uint64 // sectors
	GrainSize          uint64 // sectors
	DescriptorOffset   uint64 // sectors
	DescriptorSize     uint64 // sectors
	NumGTEsPerGT       uint32
	RGDOffset          uint64 // sectors; 0 if absent
	GDOffset           GDOffset
	OverHead           uint64 // sectors
	UncleanShutdown    bool
	SingleEndLineChar  byte
	NonEndLineChar     byte
	DoubleEndLineChar1 byte
	DoubleEndLineChar2 byte
	CompressAlgorithm  uint16
}

// MarshalBinary encodes h as the exact 512-byte little-endian wire form.
// It never fails; the error return exists to satisfy
// encoding.BinaryMarshaler.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)

	binary.LittleEndian.PutUint32(buf[0:4], h.MagicNumber)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Flags)
	binary.LittleEndian.PutUint64(buf[12:20], h.Capacity)
	binary.LittleEndian.PutUint64(buf[20:28], h.GrainSize)
	binary.LittleEndian.PutUint64(buf[28:36], h.DescriptorOffset)
	binary.LittleEndian.PutUint64(buf[36:44], h.DescriptorSize)
	binary.LittleEndian.PutUint32(buf[44:48], h.NumGTEsPerGT)
	binary.LittleEndian.PutUint64(buf[48:56], h.RGDOffset)

	if sector, ok := h.GDOffset.Sector(); ok {
		binary.LittleEndian.PutUint64(buf[56:64], uint64(sector))
	} else {
		binary.LittleEndian.PutUint64(buf[56:64], sentinelGDOffset)
	}

	binary.LittleEndian.PutUint64(buf[64:72], h.OverHead)
	if h.UncleanShutdown {
		buf[72] = 1
	}
	buf[73] = h.SingleEndLineChar
	buf[74] = h.NonEndLineChar
	buf[75] = h.DoubleEndLineChar1
	buf[76] = h.DoubleEndLineChar2
	binary.LittleEndian.PutUint16(buf[77:79], h.CompressAlgorithm)
	// buf[79:512] is the zero pad.

	return buf, nil
}

// UnmarshalBinary decodes a Header from an exact 512-byte buffer. It does
// not validate the magic number; callers decide what to do with a
// mismatch.
func (h *Header) UnmarshalBinary(buf []byte) error {
	if len(buf) != HeaderSize {
		return fmt.Errorf("vmdk: header buffer must be %d bytes, got %d", HeaderSize, len(buf))
	}

	h.MagicNumber = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	h.Flags = binary.LittleEndian.Uint32(buf[8:12])
	h.Capacity = binary.LittleEndian.Uint64(buf[12:20])
	h.GrainSize = binary.LittleEndian.Uint64(buf[20:28])
	h.DescriptorOffset = binary.LittleEndian.Uint64(buf[28:36])
	h.DescriptorSize = binary.LittleEndian.Uint64(buf[36:44])
	h.NumGTEsPerGT = binary.LittleEndian.Uint32(buf[44:48])
	h.RGDOffset = binary.LittleEndian.Uint64(buf[48:56])

	raw := binary.LittleEndian.Uint64(buf[56:64])
	if raw == sentinelGDOffset {
		h.GDOffset = InFooterGDOffset()
	} else {
		h.GDOffset = KnownGDOffset(int64(raw))
	}

	h.OverHead = binary.LittleEndian.Uint64(buf[64:72])
	h.UncleanShutdown = buf[72] != 0
	h.SingleEndLineChar = buf[73]
	h.NonEndLineChar = buf[74]
	h.DoubleEndLineChar1 = buf[75]
	h.DoubleEndLineChar2 = buf[76]
	h.CompressAlgorithm = binary.LittleEndian.Uint16(buf[77:79])

	return nil
}

// HasValidMagic reports whether h.MagicNumber matches the VMDK magic.
func (h *Header) HasValidMagic() bool {
	return h.MagicNumber == Magic
}

// NewlineMismatches reports which of the four NL-detect bytes don't match
// the values the format requires, one diagnostic string per mismatch. An
// empty slice means the check passed.
func (h *Header) NewlineMismatches() []string {
	var mismatches []string
	if h.SingleEndLineChar != '\n' {
		mismatches = append(mismatches, fmt.Sprintf("singleEndLineChar: got 0x%02x, want 0x0a", h.SingleEndLineChar))
	}
	if h.NonEndLineChar != ' ' {
		mismatches = append(mismatches, fmt.Sprintf("nonEndLineChar: got 0x%02x, want 0x20", h.NonEndLineChar))
	}
	if h.DoubleEndLineChar1 != '\r' {
		mismatches = append(mismatches, fmt.Sprintf("doubleEndLineChar1: got 0x%02x, want 0x0d", h.DoubleEndLineChar1))
	}
	if h.DoubleEndLineChar2 != '\n' {
		mismatches = append(mismatches, fmt.Sprintf("doubleEndLineChar2: got 0x%02x, want 0x0a", h.DoubleEndLineChar2))
	}
	return mismatches
}
