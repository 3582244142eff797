/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import "io"

// grainByteLength returns the number of valid bytes the grain at the
// given logical sector actually holds: GrainBytes, except for the last
// grain of a disk whose capacity isn't a whole multiple of GrainSectors,
// which is truncated to what's left.
func grainByteLength(logicalSector int64, capacitySectors int64) int64 {
	remaining := (capacitySectors - logicalSector) * SectorSize
	if remaining < GrainBytes {
		return remaining
	}
	return GrainBytes
}

// setsize ensures dst is exactly sizeBytes long, once every grain has been
// written: a NUL byte is written one past the end of the intended size —
// never touching real content — to force allocation up to that point,
// then dst is truncated back down to exactly sizeBytes. This both shrinks
// an over-extended destination and sparse-extends one that ended on a run
// of unallocated (all-zero) grains. Destinations that don't support
// truncation (a pipe, wrapped through vio.WriteSeeker) are left as-is.
func setsize(dst io.WriteSeeker, sizeBytes int64) error {
	t, ok := dst.(interface{ Truncate(int64) error })
	if !ok {
		return nil
	}

	if _, err := dst.Seek(sizeBytes, io.SeekStart); err != nil {
		return err
	}
	if _, err := dst.Write([]byte{0}); err != nil {
		return err
	}

	return t.Truncate(sizeBytes)
}
