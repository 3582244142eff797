/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import (
	"fmt"
	"io"

	"github.com/glennmatthews/vmdktool/pkg/elog"
)

// ExtractRandomAccess reconstructs a raw image from a stream-optimized
// VMDK by resolving the grain directory and grain tables and reading only
// the grains that are actually needed, seeking freely on both src and dst.
// It requires the header's grain directory offset to be resolvable,
// either directly or (when allowFooterSearch is set) via the trailing
// footer.
func ExtractRandomAccess(src io.ReadSeeker, inputSize int64, dst io.WriteSeeker, allowFooterSearch bool, log elog.View) error {
	log = elog.OrNop(log)

	resolved, err := Inspect(src, inputSize, allowFooterSearch, log)
	if err != nil {
		return err
	}

	gdSector, ok := resolved.GDOffset.Sector()
	if !ok {
		return fmt.Errorf("%w: grain directory offset unresolved (footer search %v)", ErrBadFooter, allowFooterSearch)
	}

	grainSectors := int64(resolved.GrainSize)
	if grainSectors == 0 {
		grainSectors = GrainSectors
	}
	numGTEsPerGT := int64(resolved.NumGTEsPerGT)
	if numGTEsPerGT == 0 {
		numGTEsPerGT = NumGTEsPerGT
	}
	capacity := int64(resolved.Capacity)
	grainBytes := grainSectors * SectorSize
	numGrains := (capacity*SectorSize + grainBytes - 1) / grainBytes

	progress := log.NewProgress("extracting grains", "%", numGrains)
	defer func() { progress.Finish(true) }()

	var curTable int64 = -1
	var gtSector uint32

	for i := int64(0); i < numGrains; i++ {
		tableIndex := i / numGTEsPerGT
		entryIndex := i % numGTEsPerGT

		if tableIndex != curTable {
			entry, err := readEntryAt(src, gdSector, tableIndex)
			if err != nil {
				return fmt.Errorf("read grain directory entry %d: %w", tableIndex, err)
			}
			gtSector = entry
			curTable = tableIndex
		}

		logicalOffset := i * grainBytes
		length := grainByteLength(i*grainSectors, capacity)

		if gtSector == 0 {
			progress.Increment(1)
			continue // unallocated grain table: whole range stays a hole.
		}

		gte, err := readEntryAt(src, int64(gtSector), entryIndex)
		if err != nil {
			return fmt.Errorf("read grain table entry %d/%d: %w", tableIndex, entryIndex, err)
		}
		if gte <= 1 {
			progress.Increment(1)
			continue // 0 = absent, 1 = known-zero (SPARSE_GT_ZERO): both are holes in dst.
		}

		marker, err := readMarkerAt(src, int64(gte)*SectorSize)
		if err != nil {
			return fmt.Errorf("read grain marker at sector %d: %w", gte, err)
		}
		if !marker.IsGrain() {
			return fmt.Errorf("%w: grain table entry %d/%d points at a non-grain marker", ErrCorruptGrain, tableIndex, entryIndex)
		}
		if int64(marker.Val) != i*grainSectors {
			return fmt.Errorf("%w: grain marker at sector %d claims logical sector %d, want %d", ErrCorruptGrain, gte, marker.Val, i*grainSectors)
		}

		payload, err := readGrainPayload(src, int64(gte), marker)
		if err != nil {
			return err
		}
		grain, err := decompressGrain(payload, grainBytes)
		if err != nil {
			return fmt.Errorf("grain at logical sector %d: %w", i*grainSectors, err)
		}

		if err := writeAt(dst, logicalOffset, grain[:length]); err != nil {
			return fmt.Errorf("write grain at offset %d: %w", logicalOffset, err)
		}
		progress.Increment(1)
	}

	return setsize(dst, capacity*SectorSize)
}
