/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import (
	"fmt"
	"io"

	"github.com/glennmatthews/vmdktool/pkg/elog"
	"github.com/glennmatthews/vmdktool/pkg/vio"
)

// WriteOptions configures WriteStreamOptimized.
type WriteOptions struct {
	// CapacitySectors is the logical disk capacity to record, in 512-byte
	// sectors. The caller is responsible for deriving this (stat of a
	// regular file, or an explicit override for a non-seekable source)
	// since src is read strictly forward and its length can't always be
	// known in advance.
	CapacitySectors int64

	// DeflateStrength is the zlib compression level, 0-9, used as given;
	// 0 stores grains without compression inside the zlib framing.
	DeflateStrength int
}

// WriteStreamOptimized reads opts.CapacitySectors*SectorSize bytes (zero
// padded past EOF) from src and writes a stream-optimized sparse VMDK to
// dst. If dst is an io.Seeker (directly or via io.WriteSeeker), the header
// at offset 0 is backpatched in place once the grain directory offset and
// final capacity are known; otherwise dst is written strictly forward and
// only the footer carries the resolved header, exactly as the format's
// footer-fallback sentinel is designed to permit.
func WriteStreamOptimized(dst io.Writer, src io.Reader, opts WriteOptions, log elog.View) error {
	log = elog.OrNop(log)

	if opts.CapacitySectors <= 0 {
		return fmt.Errorf("vmdk: CapacitySectors must be positive, got %d", opts.CapacitySectors)
	}
	strength := opts.DeflateStrength

	ws, err := vio.WriteSeeker(dst)
	if err != nil {
		return fmt.Errorf("vmdk: wrap output: %w", err)
	}

	w := &writer{
		dst:      ws,
		src:      io.LimitReader(src, opts.CapacitySectors*SectorSize),
		capacity: opts.CapacitySectors,
		strength: strength,
		log:      log,
	}
	return w.run()
}

type writer struct {
	dst      io.WriteSeeker
	src      io.Reader
	capacity int64
	strength int

	cursor  int64 // next byte offset to write at
	grainAt int64 // byte offset grain data begins
	gdEntries []uint32
	gtEntries []uint32
	gdStart   int64

	log elog.View
}

func (w *writer) run() error {
	numGrains := (w.capacity*SectorSize + GrainBytes - 1) / GrainBytes

	descriptorSectors := RoundUpSectors(int64(len(buildDescriptor(w.capacity))))
	overHead := writerOverheadSectors
	if over := HeaderSize/SectorSize + 1 + descriptorSectors; over > int64(overHead) {
		overHead = int(over)
	}

	placeholder := &Header{
		MagicNumber:        Magic,
		Version:            3,
		Flags:              FlagNLDetectValid | FlagGrainsCompressed | FlagMarkersPresent,
		Capacity:           uint64(w.capacity),
		GrainSize:          GrainSectors,
		DescriptorOffset:   HeaderSize / SectorSize,
		DescriptorSize:     uint64(descriptorSectors),
		NumGTEsPerGT:       NumGTEsPerGT,
		GDOffset:           InFooterGDOffset(),
		OverHead:           uint64(overHead),
		SingleEndLineChar:  '\n',
		NonEndLineChar:     ' ',
		DoubleEndLineChar1: '\r',
		DoubleEndLineChar2: '\n',
		CompressAlgorithm:  CompressionDeflate,
	}

	if err := w.writeHeaderAndDescriptor(0, placeholder); err != nil {
		return fmt.Errorf("write placeholder header: %w", err)
	}

	w.grainAt = int64(overHead) * SectorSize
	if err := w.seekTo(w.grainAt); err != nil {
		return fmt.Errorf("seek to grain data: %w", err)
	}
	w.cursor = w.grainAt

	progress := w.log.NewProgress("writing grains", "%", numGrains)
	defer func() { progress.Finish(true) }()

	buf := make([]byte, GrainBytes)
	for i := int64(0); i < numGrains; i++ {
		n, err := io.ReadFull(w.src, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("read grain %d: %w", i, err)
		}
		for j := n; j < len(buf); j++ {
			buf[j] = 0
		}

		gte, err := w.writeGrain(i, buf)
		if err != nil {
			return fmt.Errorf("write grain %d: %w", i, err)
		}
		w.gtEntries = append(w.gtEntries, gte)

		if len(w.gtEntries) == NumGTEsPerGT || i == numGrains-1 {
			if err := w.flushGrainTable(); err != nil {
				return fmt.Errorf("flush grain table: %w", err)
			}
		}
		progress.Increment(1)
	}

	if err := w.flushGrainDirectory(); err != nil {
		return fmt.Errorf("flush grain directory: %w", err)
	}

	final := *placeholder
	final.GDOffset = KnownGDOffset(w.gdStart)

	if err := w.writeFooter(&final); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}

	if err := w.backpatchHeader(&final); err != nil {
		w.log.Warnf("could not backpatch header at offset 0 (non-seekable output): %v", err)
	}

	return nil
}

// writeGrain compresses grain (unless it's entirely zero, in which case it
// is omitted from the stream) and returns its grain table entry: the
// sector the marker starts at, or 0 if the grain was all-zero.
func (w *writer) writeGrain(logicalGrain int64, grain []byte) (uint32, error) {
	allZero := true
	for _, b := range grain {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return 0, nil
	}

	compressed, err := compressGrain(grain, w.strength)
	if err != nil {
		return 0, err
	}

	sector := w.cursor / SectorSize

	marker := &Marker{
		Val:  uint64(logicalGrain * GrainSectors),
		Size: uint32(len(compressed)),
	}
	n := copy(marker.Payload[:], compressed)

	markerBuf, err := marker.MarshalBinary()
	if err != nil {
		return 0, err
	}
	if err := w.write(markerBuf); err != nil {
		return 0, err
	}
	written := int64(MarkerSize)
	if n < len(compressed) {
		if err := w.write(compressed[n:]); err != nil {
			return 0, err
		}
		written += int64(len(compressed) - n)
	}
	if pad := SectorAlign(int64(12+len(compressed))) - written; pad > 0 {
		if err := w.write(make([]byte, pad)); err != nil {
			return 0, err
		}
	}

	return uint32(sector), nil
}

// flushGrainTable writes a GT meta-marker followed by the accumulated
// grain table entries (zero-padded to a full table), then records the
// table's start sector in the grain directory and resets the accumulator.
func (w *writer) flushGrainTable() error {
	entries := make([]uint32, NumGTEsPerGT)
	copy(entries, w.gtEntries)
	w.gtEntries = w.gtEntries[:0]

	meta := &Marker{Val: uint64(GTSectors), Type: MarkerGT}
	metaBuf, err := meta.MarshalBinary()
	if err != nil {
		return err
	}

	gtSector := (w.cursor + MarkerSize) / SectorSize

	if err := w.write(metaBuf); err != nil {
		return err
	}
	if err := w.write(encodeEntries(entries)); err != nil {
		return err
	}

	w.gdEntries = append(w.gdEntries, uint32(gtSector))
	return nil
}

// flushGrainDirectory writes a GD meta-marker followed by the accumulated
// grain directory entries, recording its start sector as the resolved
// grain directory offset.
func (w *writer) flushGrainDirectory() error {
	dirSectors := RoundUpSectors(int64(len(w.gdEntries)) * gtEntrySize)
	entries := make([]uint32, dirSectors*SectorSize/gtEntrySize)
	copy(entries, w.gdEntries)

	meta := &Marker{Val: uint64(dirSectors), Type: MarkerGD}
	metaBuf, err := meta.MarshalBinary()
	if err != nil {
		return err
	}

	w.gdStart = (w.cursor + MarkerSize) / SectorSize

	if err := w.write(metaBuf); err != nil {
		return err
	}
	return w.write(encodeEntries(entries))
}

// writeFooter writes the footer marker followed by the embedded header
// (with its GDOffset and capacity resolved), then the EOS marker.
func (w *writer) writeFooter(resolved *Header) error {
	footerMeta := &Marker{Val: uint64(HeaderSize / SectorSize), Type: MarkerFooter}
	metaBuf, err := footerMeta.MarshalBinary()
	if err != nil {
		return err
	}
	if err := w.write(metaBuf); err != nil {
		return err
	}

	hdrBuf, err := resolved.MarshalBinary()
	if err != nil {
		return err
	}
	if err := w.write(hdrBuf); err != nil {
		return err
	}

	eos := &Marker{Type: MarkerEOS}
	eosBuf, err := eos.MarshalBinary()
	if err != nil {
		return err
	}
	return w.write(eosBuf)
}

// backpatchHeader rewrites the header and descriptor at offset 0 with
// resolved values. The descriptor's capacity line is unchanged, but it is
// re-rendered with a freshly generated CID. This mirrors the original vmdktool's behavior of
// mutating and rewriting the same header structure at both the footer and
// sector 0; it is a real seek-backwards and is only possible when dst is
// seekable.
func (w *writer) backpatchHeader(resolved *Header) error {
	return w.writeHeaderAndDescriptor(0, resolved)
}

func (w *writer) writeHeaderAndDescriptor(at int64, h *Header) error {
	if err := w.seekTo(at); err != nil {
		return err
	}
	hdrBuf, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	if err := w.write(hdrBuf); err != nil {
		return err
	}

	descriptor := buildDescriptor(int64(h.Capacity))
	padded := make([]byte, h.DescriptorSize*SectorSize)
	copy(padded, descriptor)
	return w.write(padded)
}

func (w *writer) seekTo(offset int64) error {
	n, err := w.dst.Seek(offset, io.SeekStart)
	if err != nil {
		return err
	}
	w.cursor = n
	return nil
}

func (w *writer) write(buf []byte) error {
	n, err := w.dst.Write(buf)
	w.cursor += int64(n)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return ErrShortWrite
	}
	return nil
}

func encodeEntries(entries []uint32) []byte {
	buf := make([]byte, len(entries)*gtEntrySize)
	for i, e := range entries {
		buf[i*4] = byte(e)
		buf[i*4+1] = byte(e >> 8)
		buf[i*4+2] = byte(e >> 16)
		buf[i*4+3] = byte(e >> 24)
	}
	return buf
}
