/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/glennmatthews/vmdktool/pkg/elog"
	"github.com/glennmatthews/vmdktool/pkg/vconfig"
)

var log elog.View

var (
	flagVerbose bool
	flagDebug   bool
	flagNoColor bool
	flagConfig  string
)

// Exit codes mirror the original tool's main(): each stage of opening and
// validating an input file has its own code, so a script driving vmdktool
// can tell "no such file" from "not a VMDK" from "footer not found"
// without scraping stderr.
const (
	exitOpenInput          = 2
	exitStatInput          = 3
	exitUnsupportedFile    = 4
	exitInputTooSmall      = 5
	exitBadMagic           = 6
	exitInputTooSmallWrite = 7
	exitFooterNotFound     = 8
	exitOpenRandomOutput   = 9
	exitNotStreamOptimized = 10
	exitOpenStreamOutput   = 11
	exitOpenWriteOutput    = 12
)

// Each command may set a status code and message for main() to report on
// exit, the same two-variable pattern the teacher's CLI layer uses so that
// RunE can return a generic error to cobra while still controlling the
// process's exit code precisely.
var (
	errorStatusCode    int
	errorStatusMessage error
)

// SetError records the error and exit code main() should report after
// cobra finishes executing the command tree.
func SetError(err error, code int) {
	errorStatusCode = code
	errorStatusMessage = err
}

func logError(err error) {
	fmt.Fprintf(os.Stderr, "vmdktool: %v\n", err)
}

func commandInit() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug output (implies --verbose)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized log output")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a vmdktool.yaml config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := vconfig.Load(flagConfig)
		if err != nil {
			return err
		}
		f := cmd.Flags()
		if !f.Changed("no-color") {
			flagNoColor = cfg.DisableColors
		}
		if !f.Changed("verbose") && !f.Changed("debug") {
			flagVerbose, flagDebug = cfg.Verbose, cfg.Debug
		}
		if !f.Changed("deflate") {
			flagWriteDeflate = cfg.DeflateStrength
		}

		logger := &elog.CLI{DisableColors: flagNoColor}
		logrus.SetFormatter(logger)
		logrus.SetLevel(logrus.TraceLevel)

		if flagDebug {
			logger.IsDebug = true
			logger.IsVerbose = true
		} else if flagVerbose {
			logger.IsVerbose = true
		}
		log = logger
		return nil
	}

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "vmdktool",
	Short: "Convert between raw disk images and stream-optimized sparse VMDKs",
	Long: `vmdktool converts a raw block-device image to VMware's stream-optimized
sparse VMDK format, and back again, either by resolving the grain
directory for random access or by walking the marker stream strictly in
order.`,
}
