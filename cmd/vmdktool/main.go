/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import "os"

var (
	release = "0.0.0"
	commit  = ""
	date    = "Thu, 01 Jan 1970 00:00:00 +0000"
)

func main() {
	commandInit()

	err := rootCmd.Execute()

	if errorStatusMessage != nil {
		logError(errorStatusMessage)
		os.Exit(errorStatusCode)
	}
	if err != nil {
		os.Exit(1)
	}
}
