/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vmdktool version %s\nRef: %s\nReleased: %s\n", release, commit, date)
	},
}
