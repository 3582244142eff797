/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import (
	"fmt"
	"io"
	"io/ioutil"

	"github.com/glennmatthews/vmdktool/pkg/elog"
)

// ExtractStream reconstructs a raw image from a stream-optimized VMDK by
// walking its markers strictly in order, never seeking backwards on src.
// dst must be seekable so grains can land at their logical offset even
// when preceded by unallocated (all-zero, marker-less) runs, but is itself
// only ever seeked forward, matching §4.5's streaming design.
func ExtractStream(src io.Reader, dst io.WriteSeeker, log elog.View) error {
	log = elog.OrNop(log)

	hdrBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(src, hdrBuf); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	hdr := new(Header)
	if err := hdr.UnmarshalBinary(hdrBuf); err != nil {
		return err
	}
	if !hdr.HasValidMagic() {
		return fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrBadMagic, hdr.MagicNumber, uint32(Magic))
	}
	for _, msg := range hdr.NewlineMismatches() {
		log.Warnf("newline check failed: %s", msg)
	}
	if hdr.CompressAlgorithm != CompressionDeflate {
		return fmt.Errorf("%w: compressAlgorithm %d", ErrUnsupportedCompression, hdr.CompressAlgorithm)
	}

	descSize := int64(hdr.DescriptorSize) * SectorSize
	descBuf := make([]byte, descSize)
	if _, err := io.ReadFull(src, descBuf); err != nil {
		return fmt.Errorf("read descriptor: %w", err)
	}
	if !isStreamOptimized(descBuf) {
		return fmt.Errorf("%w: descriptor lacks %s", ErrNotStreamOptimized, streamOptimizedMarker)
	}

	consumed := HeaderSize + descSize
	overHead := int64(hdr.OverHead) * SectorSize
	if pad := overHead - consumed; pad > 0 {
		if _, err := io.CopyN(ioutil.Discard, src, pad); err != nil {
			return fmt.Errorf("skip to grain data: %w", err)
		}
	}

	capacity := int64(hdr.Capacity)
	grainSectors := int64(hdr.GrainSize)
	if grainSectors == 0 {
		grainSectors = GrainSectors
	}
	grainBytes := grainSectors * SectorSize

	var dstPos int64
	var sawEOS bool
	markerSector := overHead / SectorSize

	for {
		marker, ok, err := readNextMarker(src)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		if marker.IsGrain() {
			payload, err := readGrainOverflow(src, marker)
			if err != nil {
				return err
			}

			length := grainByteLength(int64(marker.Val), capacity)
			grain, err := decompressGrain(payload, grainBytes)
			if err != nil {
				return fmt.Errorf("grain at logical sector %d: %w", marker.Val, err)
			}

			target := int64(marker.Val) * SectorSize
			if target < dstPos {
				return fmt.Errorf("%w: grain at logical sector %d is out of order", ErrCorruptGrain, marker.Val)
			}
			if _, err := dst.Seek(target-dstPos, io.SeekCurrent); err != nil {
				return fmt.Errorf("seek to logical offset %d: %w", target, err)
			}
			if _, err := dst.Write(grain[:length]); err != nil {
				return fmt.Errorf("write grain at offset %d: %w", target, err)
			}
			dstPos = target + length

			markerSector += marker.GrainSectors()
			continue
		}

		switch marker.Type {
		case MarkerGT, MarkerGD:
			if _, err := io.CopyN(ioutil.Discard, src, int64(marker.Val)*SectorSize); err != nil {
				return fmt.Errorf("skip table/directory payload: %w", err)
			}
			markerSector += 1 + int64(marker.Val)

		case MarkerFooter:
			footerBuf := make([]byte, int64(marker.Val)*SectorSize)
			if _, err := io.ReadFull(src, footerBuf); err != nil {
				log.Warnf("read embedded footer header: %v", err)
				break
			}
			footer := new(Header)
			if len(footerBuf) < HeaderSize || footer.UnmarshalBinary(footerBuf[:HeaderSize]) != nil || !footer.HasValidMagic() {
				log.Warnf("embedded footer header at sector %d is missing or invalid; ignoring it", markerSector+1)
			} else if footer.Capacity != hdr.Capacity {
				log.Warnf("footer capacity %d disagrees with header capacity %d", footer.Capacity, hdr.Capacity)
			}
			markerSector += 1 + int64(marker.Val)

		case MarkerEOS:
			sawEOS = true
			markerSector++

		default:
			log.Warnf("unrecognized meta-marker type %d at sector %d; skipping", marker.Type, markerSector)
			markerSector++
		}

		if sawEOS {
			break
		}
	}

	if !sawEOS {
		log.Warnf("stream ended without an end-of-stream marker; image may reflect an unclean shutdown")
	}

	if extra, err := io.Copy(ioutil.Discard, src); err == nil && extra > 0 {
		log.Warnf("%d bytes of trailing data after end-of-stream marker ignored", extra)
	}

	return setsize(dst, capacity*SectorSize)
}

// readNextMarker reads one 512-byte marker record from src, returning
// ok=false at a clean EOF (no partial record pending).
func readNextMarker(src io.Reader) (*Marker, bool, error) {
	buf := make([]byte, MarkerSize)
	n, err := io.ReadFull(src, buf)
	if err == io.EOF && n == 0 {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read marker: %w", err)
	}
	m := new(Marker)
	if err := m.UnmarshalBinary(buf); err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// readGrainOverflow returns a grain marker's full compressed payload: the
// portion embedded in the marker record plus whatever immediately follows
// it on src when Size exceeds the embedded capacity.
func readGrainOverflow(src io.Reader, m *Marker) ([]byte, error) {
	size := int64(m.Size)
	if size <= markerTailSize {
		return append([]byte(nil), m.Payload[:size]...), nil
	}

	extra := size - markerTailSize
	buf := make([]byte, extra)
	if _, err := io.ReadFull(src, buf); err != nil {
		return nil, fmt.Errorf("read grain overflow payload: %w", err)
	}

	pad := SectorAlign(12+size) - (MarkerSize + extra)
	if pad > 0 {
		if _, err := io.CopyN(ioutil.Discard, src, pad); err != nil {
			return nil, fmt.Errorf("skip grain padding: %w", err)
		}
	}

	payload := make([]byte, size)
	copy(payload, m.Payload[:])
	copy(payload[markerTailSize:], buf)
	return payload, nil
}
