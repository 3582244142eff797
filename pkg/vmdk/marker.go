/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import (
	"encoding/binary"
	"fmt"
)

// MarkerSize is the exact on-disk size of a Marker record.
const MarkerSize = 512

// markerTailSize is the number of bytes after Val/Size that either hold
// the first 500 bytes of a grain's compressed payload (when Size > 0) or
// a 4-byte Type plus padding (when Size == 0).
const markerTailSize = MarkerSize - 8 - 4

// Marker is the 512-byte record that either prefixes a compressed grain
// (Size > 0) or announces a meta record (Size == 0, Type one of the
// Marker* constants).
type Marker struct {
	// Val is the grain's logical sector when Size > 0, or the
	// length-in-sectors of trailing table/directory/header data when
	// Size == 0 and Type is GT/GD/footer. Unused for EOS.
	Val uint64

	// Size is the compressed payload length in bytes, or 0 for a
	// meta-record marker.
	Size uint32

	// Type is only meaningful when Size == 0.
	Type uint32

	// Payload holds the first min(Size, 500) bytes of a grain's
	// compressed payload. Only populated/meaningful when Size > 0.
	Payload [500]byte
}

// MarshalBinary encodes m as the exact 512-byte little-endian wire form.
func (m *Marker) MarshalBinary() ([]byte, error) {
	buf := make([]byte, MarkerSize)
	binary.LittleEndian.PutUint64(buf[0:8], m.Val)
	binary.LittleEndian.PutUint32(buf[8:12], m.Size)
	if m.Size == 0 {
		binary.LittleEndian.PutUint32(buf[12:16], m.Type)
	} else {
		copy(buf[12:12+markerTailSize], m.Payload[:])
	}
	return buf, nil
}

// UnmarshalBinary decodes a Marker from an exact 512-byte buffer.
func (m *Marker) UnmarshalBinary(buf []byte) error {
	if len(buf) != MarkerSize {
		return fmt.Errorf("vmdk: marker buffer must be %d bytes, got %d", MarkerSize, len(buf))
	}
	m.Val = binary.LittleEndian.Uint64(buf[0:8])
	m.Size = binary.LittleEndian.Uint32(buf[8:12])
	m.Type = 0
	if m.Size == 0 {
		m.Type = binary.LittleEndian.Uint32(buf[12:16])
	} else {
		copy(m.Payload[:], buf[12:12+markerTailSize])
	}
	return nil
}

// IsGrain reports whether m announces a grain (as opposed to a meta
// record).
func (m *Marker) IsGrain() bool {
	return m.Size > 0
}

// GrainSectors returns the number of sectors this marker's grain payload
// occupies on disk: ceil((12+Size)/SectorSize).
func (m *Marker) GrainSectors() int64 {
	return RoundUpSectors(12 + int64(m.Size))
}
