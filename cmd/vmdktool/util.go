/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/glennmatthews/vmdktool/pkg/vmdk"
)

// openInput opens path for reading and stats it, mapping failures onto
// the documented exit codes. Only regular files are supported; vmdktool's
// original character-device allowance (for raw tape/disk devices on BSD)
// doesn't have a portable Go equivalent and is out of scope here.
func openInput(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		SetError(err, exitOpenInput)
		return nil, 0, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		SetError(fmt.Errorf("stat %s: %w", path, err), exitStatInput)
		return nil, 0, err
	}
	if !st.Mode().IsRegular() {
		f.Close()
		err := fmt.Errorf("%s: file type not supported", path)
		SetError(err, exitUnsupportedFile)
		return nil, 0, err
	}

	return f, st.Size(), nil
}

// inspectInput opens and validates path as a VMDK, resolving its grain
// directory offset via the footer when needed. It returns the input's
// size alongside the file and resolved header since callers doing a
// random-access extraction need it again.
func inspectInput(path string) (*os.File, *vmdk.ResolvedHeader, int64, error) {
	f, size, err := openInput(path)
	if err != nil {
		return nil, nil, 0, err
	}

	if size < vmdk.HeaderSize+vmdk.SectorSize {
		f.Close()
		err := fmt.Errorf("%s: file too small (must be at least %d bytes)", path, vmdk.HeaderSize+vmdk.SectorSize)
		SetError(err, exitInputTooSmall)
		return nil, nil, 0, err
	}

	resolved, err := vmdk.Inspect(f, size, true, log)
	if err != nil {
		f.Close()
		code := exitBadMagic
		if errors.Is(err, vmdk.ErrBadFooter) {
			code = exitFooterNotFound
		}
		SetError(err, code)
		return nil, nil, 0, err
	}

	return f, resolved, size, nil
}

// createOutput creates path for writing, truncating any existing file,
// mapping an open failure onto code.
func createOutput(path string, code int) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		SetError(err, code)
		return nil, err
	}
	return f, nil
}
