/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"fmt"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"

	"github.com/glennmatthews/vmdktool/pkg/vmdk"
)

var (
	flagWriteOutput      string
	flagWriteCapacity    string
	flagWriteDeflate     int
	flagWriteDiagnostics bool
)

func init() {
	writeCmd.Flags().StringVarP(&flagWriteOutput, "output", "o", "", "VMDK output path (required)")
	writeCmd.Flags().StringVarP(&flagWriteCapacity, "capacity", "c", "", "logical disk capacity (e.g. 10G); defaults to the input's own size")
	writeCmd.Flags().IntVarP(&flagWriteDeflate, "deflate", "z", vmdk.DeflateDefaultStrength, "DEFLATE compression level, 0-9")
	writeCmd.Flags().BoolVarP(&flagWriteDiagnostics, "diagnostics", "D", false, "check the input's first sector for a boot signature")
	writeCmd.MarkFlagRequired("output")
}

var writeCmd = &cobra.Command{
	Use:     "write RAW",
	Aliases: []string{"create"},
	Short:   "Build a stream-optimized VMDK from a raw disk image",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagWriteDeflate < 0 || flagWriteDeflate > 9 {
			return fmt.Errorf("--deflate must be between 0 and 9")
		}

		f, size, err := openInput(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		if size < vmdk.SectorSize {
			err := fmt.Errorf("%s: file too small (must be at least %d bytes)", args[0], vmdk.SectorSize)
			SetError(err, exitInputTooSmallWrite)
			return err
		}

		if flagWriteDiagnostics {
			warnIfNotBootable(f)
		}

		capacitySectors := vmdk.RoundUpSectors(size)
		if flagWriteCapacity != "" {
			bytes, err := bytefmt.ToBytes(flagWriteCapacity)
			if err != nil {
				return fmt.Errorf("--capacity: %w", err)
			}
			capacitySectors = vmdk.RoundUpSectors(int64(bytes))
		}

		out, err := createOutput(flagWriteOutput, exitOpenWriteOutput)
		if err != nil {
			return err
		}
		defer out.Close()

		opts := vmdk.WriteOptions{
			CapacitySectors: capacitySectors,
			DeflateStrength: flagWriteDeflate,
		}
		return vmdk.WriteStreamOptimized(out, f, opts, log)
	},
}

// warnIfNotBootable reads the first sector and warns (diagnostic only,
// never fatal) when it isn't terminated by the 0x55 0xAA boot signature.
func warnIfNotBootable(f interface {
	ReadAt(p []byte, off int64) (int, error)
}) {
	block := make([]byte, vmdk.SectorSize)
	if _, err := f.ReadAt(block, 0); err != nil {
		return
	}
	if block[510] != 0x55 || block[511] != 0xaa {
		log.Warnf("input does not carry a 0x55 0xAA boot signature; not a bootable filesystem")
	}
}
