/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/glennmatthews/vmdktool/pkg/vmdk"
)

var (
	flagExtractOutput string
	flagExtractStream bool
)

func init() {
	extractCmd.Flags().StringVarP(&flagExtractOutput, "output", "o", "", "raw output path (required)")
	extractCmd.Flags().BoolVarP(&flagExtractStream, "stream", "s", false, "decode by walking the marker stream in order, instead of resolving the grain directory")
	extractCmd.MarkFlagRequired("output")
}

var extractCmd = &cobra.Command{
	Use:     "extract VMDK",
	Aliases: []string{"x"},
	Short:   "Reconstruct a raw image from a stream-optimized VMDK",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagExtractStream {
			return extractStream(args[0])
		}
		return extractRandom(args[0])
	},
}

func extractRandom(path string) error {
	f, _, size, err := inspectInput(path)
	if err != nil {
		return err
	}
	defer f.Close()

	out, err := createOutput(flagExtractOutput, exitOpenRandomOutput)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := vmdk.ExtractRandomAccess(f, size, out, true, log); err != nil {
		SetError(err, exitBadMagic)
		return err
	}
	return nil
}

func extractStream(path string) error {
	f, resolved, _, err := inspectInput(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if !resolved.StreamOptimized {
		err := errors.New("this file is not stream-optimized")
		SetError(err, exitNotStreamOptimized)
		return err
	}

	out, err := createOutput(flagExtractOutput, exitOpenStreamOutput)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if err := vmdk.ExtractStream(f, out, log); err != nil {
		SetError(err, exitOpenStreamOutput)
		return err
	}
	return nil
}
