/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import (
	"fmt"
	"io"

	"github.com/glennmatthews/vmdktool/pkg/elog"
)

// ResolvedHeader is the result of Inspect: a Header with its GDOffset
// resolved via the footer when footer search was allowed (it is still
// InFooter when the header carries the sentinel and footer search was not
// allowed), its descriptor bytes, and the derived streamOptimized flag
// that isn't part of the on-disk header.
type ResolvedHeader struct {
	Header

	// Descriptor holds the raw descriptor bytes as read from disk.
	Descriptor []byte

	// StreamOptimized is true when the descriptor declares
	// createType="streamOptimized".
	StreamOptimized bool
}

// minInspectableSize is the minimum input size Inspect requires: a header
// plus one sector for the first descriptor sector.
const minInspectableSize = HeaderSize + SectorSize

// Inspect reads the 512-byte header at offset 0 of src,
// verifies the magic number, reports (but does not fail on) newline-detect
// mismatches, reads the descriptor, and — if the header's GDOffset is the
// "in footer" sentinel and allowFooterSearch is set — locates and parses
// the trailing footer to resolve it.
//
// inputSize must be the total size of src; it's needed to locate the
// footer and is otherwise not validated against the header's own fields.
func Inspect(src io.ReadSeeker, inputSize int64, allowFooterSearch bool, log elog.View) (*ResolvedHeader, error) {
	log = elog.OrNop(log)

	if inputSize < minInspectableSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, have %d", ErrFileTooSmall, minInspectableSize, inputSize)
	}

	hdr, err := readHeaderRecord(src, 0)
	if err != nil {
		return nil, err
	}

	for _, msg := range hdr.NewlineMismatches() {
		log.Warnf("newline check failed: %s", msg)
	}

	descriptor, err := readDescriptor(src, hdr)
	if err != nil {
		return nil, err
	}

	resolved := &ResolvedHeader{
		Header:          *hdr,
		Descriptor:      descriptor,
		StreamOptimized: isStreamOptimized(descriptor),
	}

	if hdr.GDOffset.InFooter() && allowFooterSearch {
		footer, err := findFooter(src, inputSize, log)
		if err != nil {
			return nil, err
		}
		resolved.GDOffset = footer.GDOffset
		resolved.Capacity = footer.Capacity
	}

	return resolved, nil
}

// readHeaderRecord reads and decodes the 512-byte header at the given
// byte offset, failing with ErrBadMagic if it doesn't announce itself as
// a VMDK header.
func readHeaderRecord(src io.ReadSeeker, offset int64) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if err := readAt(src, offset, buf); err != nil {
		return nil, err
	}

	hdr := new(Header)
	if err := hdr.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	if !hdr.HasValidMagic() {
		return nil, fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrBadMagic, hdr.MagicNumber, uint32(Magic))
	}
	return hdr, nil
}

// readDescriptor reads hdr's descriptor block.
func readDescriptor(src io.ReadSeeker, hdr *Header) ([]byte, error) {
	offset := int64(hdr.DescriptorOffset) * SectorSize
	size := int64(hdr.DescriptorSize) * SectorSize

	buf := make([]byte, size)
	if err := readAt(src, offset, buf); err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return buf, nil
}

// findFooter locates and parses the footer marker + embedded header near
// the end of the file. The trailing layout is [footer marker][header
// copy][EOS marker], three sectors, so the footer marker sector is
// (inputSize - sizeof(Header) - 2*512) / 512.
func findFooter(src io.ReadSeeker, inputSize int64, log elog.View) (*Header, error) {
	footerSector := (inputSize - HeaderSize - 2*SectorSize) / SectorSize

	marker, err := readMarkerAt(src, footerSector*SectorSize)
	if err != nil {
		return nil, fmt.Errorf("%w: read footer marker: %v", ErrBadFooter, err)
	}
	if marker.Size != 0 || marker.Type != MarkerFooter {
		return nil, fmt.Errorf("%w: no footer marker at sector %d", ErrBadFooter, footerSector)
	}

	embeddedOffset := (footerSector + 1) * SectorSize
	footer, err := readHeaderRecord(src, embeddedOffset)
	if err != nil {
		return nil, fmt.Errorf("%w: parse embedded footer header: %v", ErrBadFooter, err)
	}

	log.Debugf("resolved grain directory via footer at sector %d: gdOffset=%s", footerSector, footer.GDOffset)

	return footer, nil
}

// TableKind selects which structure DumpTable interprets the sectors at a
// given offset as.
type TableKind int

const (
	// TableKindGrainTable dumps NumGTEsPerGT entries.
	TableKindGrainTable TableKind = iota
	// TableKindGrainDirectory dumps dirblks(header) sectors of entries.
	TableKindGrainDirectory
)

// dirblks computes the number of sectors needed to hold one 32-bit entry
// per grain table, per the spec's resolution of the open question in the
// original dirblks(): "sectors needed to hold
// ceil(ceil(capacity_bytes/grain_bytes)/numGTEsPerGT) 32-bit entries,
// rounded up, with a defensive extra sector."
func dirblks(h *Header) int64 {
	capacityBytes := int64(h.Capacity) * SectorSize
	grainBytes := int64(h.GrainSize) * SectorSize
	if grainBytes == 0 {
		grainBytes = GrainBytes
	}
	numGTEsPerGT := int64(h.NumGTEsPerGT)
	if numGTEsPerGT == 0 {
		numGTEsPerGT = NumGTEsPerGT
	}

	grains := (capacityBytes + grainBytes - 1) / grainBytes
	tables := (grains + numGTEsPerGT - 1) / numGTEsPerGT
	entryBytes := tables * gtEntrySize

	sectors := RoundUpSectors(entryBytes)
	// Defensive extra sector: always one more than the rounded-up count,
	// rather than silently trusting the exact division.
	sectors++
	return sectors
}

// sectorsForTable returns the number of sectors DumpTable should read for
// the given kind.
func sectorsForTable(kind TableKind, h *Header) int64 {
	switch kind {
	case TableKindGrainDirectory:
		return dirblks(h)
	default:
		numGTEsPerGT := int64(h.NumGTEsPerGT)
		if numGTEsPerGT == 0 {
			numGTEsPerGT = NumGTEsPerGT
		}
		return numGTEsPerGT * gtEntrySize / SectorSize
	}
}

// DumpTable reads and returns the little-endian 32-bit entries of the
// grain table or grain directory starting at startSector.
func DumpTable(src io.ReadSeeker, startSector int64, kind TableKind, h *Header) ([]uint32, error) {
	sectors := sectorsForTable(kind, h)
	buf := make([]byte, sectors*SectorSize)
	if err := readAt(src, startSector*SectorSize, buf); err != nil {
		return nil, fmt.Errorf("dump table at sector %d: %w", startSector, err)
	}

	entries := make([]uint32, len(buf)/gtEntrySize)
	for i := range entries {
		entries[i] = leUint32(buf[i*gtEntrySize:])
	}
	return entries, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
