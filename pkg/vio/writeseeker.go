/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package vio provides small io helpers used by the conversion core: an
// infinite reader of zero bytes, and a WriteSeeker adapter that lets a
// forward-only sink (a pipe, stdout) stand in for a seekable one by
// synthesizing "seeks" as writes of zero bytes.
package vio

import (
	"errors"
	"io"
)

type zeroesReader struct{}

// Read always fills p with zero bytes and never returns an error.
func (rdr *zeroesReader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return
	}
	p[0] = 0
	for bp := 1; bp < len(p); bp *= 2 {
		copy(p[bp:], p[:bp])
	}
	return len(p), nil
}

// Zeroes is an inexhaustible source of zero bytes.
var Zeroes = io.Reader(&zeroesReader{})

type writeSeeker struct {
	w io.Writer
	s io.Seeker
	k int64
}

func (ws *writeSeeker) Write(p []byte) (n int, err error) {
	n, err = ws.w.Write(p)
	if ws.s == nil {
		ws.k += int64(n)
	}
	return
}

// Seek supports forward SeekCurrent/SeekStart moves against a
// non-seekable sink by writing zero bytes to cover the gap, and rejects
// backward moves there. SeekEnd is rejected outright, even when a real
// Seeker is underneath.
func (ws *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekCurrent:
		if ws.s == nil {
			if offset < 0 {
				return 0, errors.New("vio: cannot seek backwards on a non-seekable writer")
			}
			k, err := io.CopyN(ws.w, Zeroes, offset)
			ws.k += k
			return ws.k, err
		}
		return ws.s.Seek(offset, whence)
	case io.SeekStart:
		if ws.s == nil {
			return ws.Seek(offset-ws.k, io.SeekCurrent)
		}
		n, err := ws.s.Seek(offset+ws.k, whence)
		return n - ws.k, err
	case io.SeekEnd:
		return 0, errors.New("vio: SeekEnd is not supported")
	default:
		return 0, errors.New("vio: invalid whence")
	}
}

// WriteSeeker wraps w as an io.WriteSeeker. If w already implements
// io.Seeker, SeekCurrent/SeekStart are delegated to it (SeekStart offsets
// counting from w's position when it was wrapped); otherwise
// SeekCurrent/SeekStart moves forward by writing zero bytes, and backward
// moves fail. SeekEnd fails in both cases.
func WriteSeeker(w io.Writer) (io.WriteSeeker, error) {
	ws := new(writeSeeker)
	ws.w = w

	if s, ok := w.(io.Seeker); ok {
		ws.s = s
		k, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		ws.k = k
	}

	return ws, nil
}
