/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// compressGrain deflates a full grain at the given strength (0-9) and
// returns the RFC 1950 (zlib-framed) compressed bytes. VMDK's
// compressAlgorithm=1 is commonly assumed to be raw DEFLATE, but the zlib
// wrapper is what VMware tooling actually produces and expects.
func compressGrain(grain []byte, strength int) ([]byte, error) {
	var buf bytes.Buffer

	w, err := zlib.NewWriterLevel(&buf, strength)
	if err != nil {
		return nil, fmt.Errorf("vmdk: init deflate at level %d: %w", strength, err)
	}
	if _, err := w.Write(grain); err != nil {
		return nil, fmt.Errorf("vmdk: deflate grain: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("vmdk: finish deflate grain: %w", err)
	}

	return buf.Bytes(), nil
}

// decompressGrain inflates exactly len(compressed) bytes of zlib-framed
// input into a buffer of exactly wantBytes bytes, per §4.4/§9: both "input
// consumed" and "output produced == grainSize*SectorSize" must hold or the
// grain is corrupt.
func decompressGrain(compressed []byte, wantBytes int64) ([]byte, error) {
	br := bytes.NewReader(compressed)
	zr, err := zlib.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: init inflate: %v", ErrCorruptGrain, err)
	}
	defer zr.Close()

	out := make([]byte, wantBytes)
	n, err := io.ReadFull(zr, out)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("%w: inflate: %v", ErrCorruptGrain, err)
	}
	if int64(n) != wantBytes {
		return nil, fmt.Errorf("%w: inflate produced %d bytes, want %d", ErrCorruptGrain, n, wantBytes)
	}

	// Confirm the stream ends exactly at the grain boundary: any further
	// decompressed byte means the data overflows the grain. Reading on to
	// the end of the stream also consumes the trailing checksum, after
	// which no compressed input may remain.
	var extra [1]byte
	if m, _ := zr.Read(extra[:]); m != 0 {
		return nil, fmt.Errorf("%w: inflate produced more than %d bytes", ErrCorruptGrain, wantBytes)
	}
	if br.Len() != 0 {
		return nil, fmt.Errorf("%w: inflate left %d bytes of input unread", ErrCorruptGrain, br.Len())
	}

	return out, nil
}
