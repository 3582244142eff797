/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import "errors"

// Sentinel errors surfaced at the package boundary. Use errors.Is to test
// for these; they are always wrapped with additional context via
// fmt.Errorf("...: %w", ...).
var (
	// ErrBadMagic is returned when a header's magic number doesn't match
	// the expected VMDK magic.
	ErrBadMagic = errors.New("vmdk: bad magic number")

	// ErrBadFooter is returned when footer discovery fails to find a
	// footer marker at the expected sector.
	ErrBadFooter = errors.New("vmdk: footer marker not found")

	// ErrFileTooSmall is returned when an input is below the minimum
	// size required for the requested operation.
	ErrFileTooSmall = errors.New("vmdk: file too small")

	// ErrNotStreamOptimized is returned when a streaming extract is
	// requested against an input whose descriptor lacks
	// createType="streamOptimized".
	ErrNotStreamOptimized = errors.New("vmdk: not a stream-optimized image")

	// ErrUnsupportedCompression is returned by ExtractStream when a
	// header names a compressAlgorithm other than DEFLATE.
	ErrUnsupportedCompression = errors.New("vmdk: unsupported compression algorithm")

	// ErrCorruptGrain is returned when a decoded grain marker fails an
	// invariant: a zero size where a grain was expected, a mismatched
	// logical sector, or an inflate that over/underflows.
	ErrCorruptGrain = errors.New("vmdk: corrupt grain")

	// ErrShortWrite is returned when an underlying write returns fewer
	// bytes than requested without an accompanying error.
	ErrShortWrite = errors.New("vmdk: short write")
)
