/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glennmatthews/vmdktool/pkg/vmdk"
)

var flagTableSector int64

func init() {
	tableCmd.Flags().Int64VarP(&flagTableSector, "sector", "t", 0, "sector the grain table starts at (required)")
}

var tableCmd = &cobra.Command{
	Use:   "table VMDK",
	Short: "Dump the raw grain-table entries located at an arbitrary sector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagTableSector <= 0 {
			return fmt.Errorf("--sector must be a positive sector number")
		}

		f, resolved, _, err := inspectInput(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		entries, err := vmdk.DumpTable(f, flagTableSector, vmdk.TableKindGrainTable, &resolved.Header)
		if err != nil {
			return err
		}
		printTable(entries)
		return nil
	},
}
