/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sisatech/tablewriter"
	"github.com/spf13/cobra"

	"github.com/glennmatthews/vmdktool/pkg/vmdk"
)

var flagInfoDiagnostics bool

func init() {
	infoCmd.Flags().BoolVarP(&flagInfoDiagnostics, "diagnostics", "D", false, "also dump the grain directory table")
}

var infoCmd = &cobra.Command{
	Use:   "info VMDK",
	Short: "Print a stream-optimized VMDK's header, newline-detect check, and descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, resolved, _, err := inspectInput(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		printHeader(&resolved.Header)

		if mismatches := resolved.Header.NewlineMismatches(); len(mismatches) == 0 {
			fmt.Println("NL detection test: passed")
		} else {
			fmt.Println("NL detection test: FAILED")
			for _, m := range mismatches {
				fmt.Printf("  %s\n", m)
			}
		}

		fmt.Println()
		fmt.Println("Descriptor file:")
		for _, line := range strings.Split(strings.TrimRight(string(resolved.Descriptor), "\x00"), "\n") {
			fmt.Printf("  %s\n", strings.TrimRight(line, "\r"))
		}

		if flagInfoDiagnostics {
			gdSector, ok := resolved.GDOffset.Sector()
			if !ok {
				log.Warnf("grain directory offset still unresolved; skipping table dump")
				return nil
			}
			entries, err := vmdk.DumpTable(f, gdSector, vmdk.TableKindGrainDirectory, &resolved.Header)
			if err != nil {
				return err
			}
			fmt.Println()
			fmt.Println("Grain directory:")
			printTable(entries)
		}

		return nil
	},
}

func printHeader(h *vmdk.Header) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator(" ")

	table.Append([]string{"Version:", fmt.Sprintf("%d", h.Version)})
	table.Append([]string{"Capacity (sectors):", fmt.Sprintf("%d", h.Capacity)})
	table.Append([]string{"Grain size (sectors):", fmt.Sprintf("%d", h.GrainSize)})
	table.Append([]string{"Descriptor offset (sector):", fmt.Sprintf("%d", h.DescriptorOffset)})
	table.Append([]string{"Descriptor size (sectors):", fmt.Sprintf("%d", h.DescriptorSize)})
	table.Append([]string{"Grain table entries:", fmt.Sprintf("%d", h.NumGTEsPerGT)})
	table.Append([]string{"Grain directory offset (sector):", h.GDOffset.String()})
	table.Append([]string{"Overhead (sectors):", fmt.Sprintf("%d", h.OverHead)})
	table.Append([]string{"Unclean shutdown:", fmt.Sprintf("%v", h.UncleanShutdown)})
	table.Append([]string{"Compressed:", fmt.Sprintf("%v", h.CompressAlgorithm == vmdk.CompressionDeflate)})
	table.Render()
}

func printTable(entries []uint32) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"index", "sector"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i, e := range entries {
		if e == 0 {
			continue
		}
		table.Append([]string{fmt.Sprintf("%d", i), fmt.Sprintf("%d", e)})
	}
	table.Render()
}
