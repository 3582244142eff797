/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import (
	"encoding/binary"
	"fmt"
	"io"
)

// readAt reads exactly len(buf) bytes from src at the given byte offset.
// Unlike io.ReaderAt.ReadAt, src only needs to support Seek+Read, matching
// the "positioned reads against a seekable byte source" requirement of the
// core.
func readAt(src io.ReadSeeker, offset int64, buf []byte) error {
	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to %d: %w", offset, err)
	}
	if _, err := io.ReadFull(src, buf); err != nil {
		return fmt.Errorf("read %d bytes at %d: %w", len(buf), offset, err)
	}
	return nil
}

// writeAt writes buf to dst at the given byte offset, failing on a short
// write.
func writeAt(dst io.WriteSeeker, offset int64, buf []byte) error {
	if _, err := dst.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to %d: %w", offset, err)
	}
	n, err := dst.Write(buf)
	if err != nil {
		return fmt.Errorf("write %d bytes at %d: %w", len(buf), offset, err)
	}
	if n != len(buf) {
		return fmt.Errorf("write %d bytes at %d: %w (wrote %d)", len(buf), offset, ErrShortWrite, n)
	}
	return nil
}

// readMarkerAt decodes a Marker from the 512 bytes at the given byte
// offset.
func readMarkerAt(src io.ReadSeeker, offset int64) (*Marker, error) {
	buf := make([]byte, MarkerSize)
	if err := readAt(src, offset, buf); err != nil {
		return nil, err
	}
	m := new(Marker)
	if err := m.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return m, nil
}

// readGrainPayload returns the full compressed payload for a grain whose
// marker was just decoded at markerSector: the up-to-500 bytes embedded in
// the marker record itself, plus whatever followed directly after it when
// m.Size exceeds that.
func readGrainPayload(src io.ReadSeeker, markerSector int64, m *Marker) ([]byte, error) {
	size := int64(m.Size)
	if size <= markerTailSize {
		return append([]byte(nil), m.Payload[:size]...), nil
	}

	extra := size - markerTailSize
	buf := make([]byte, extra)
	if err := readAt(src, markerSector*SectorSize+MarkerSize, buf); err != nil {
		return nil, fmt.Errorf("read grain overflow payload: %w", err)
	}

	payload := make([]byte, size)
	copy(payload, m.Payload[:])
	copy(payload[markerTailSize:], buf)
	return payload, nil
}

// readEntryAt reads one little-endian 32-bit grain table / grain directory
// entry. tableSector is the sector the table/directory starts at; index is
// the zero-based entry index within it.
func readEntryAt(src io.ReadSeeker, tableSector int64, index int64) (uint32, error) {
	const itemsPerSector = SectorSize / gtEntrySize
	sector := tableSector + index/itemsPerSector
	within := (index % itemsPerSector) * gtEntrySize

	buf := make([]byte, SectorSize)
	if err := readAt(src, sector*SectorSize, buf); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(buf[within : within+4]), nil
}
