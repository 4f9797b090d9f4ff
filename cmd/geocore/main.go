// Command geocore is a diagnostic/demo CLI exercising each core
// component for manual inspection. It is not a parsing front-end: it
// accepts already-decoded JSON control points, grid arrays, and
// coordinate-system descriptions from the caller, consistent with
// spec.md's Non-goals (no NADCON/NTv2/GRIB decoding, no EPSG resolution).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arxgeo/geocore/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "geocore",
	Short: "geocore - geodetic coordinate transformation engine",
	Long: `geocore exercises the core of a geodetic coordinate transformation
engine: least-squares affine fitting, datum-shift grid interpolation,
projective transform composition, and the authority object cache.

It is a diagnostic surface over already-decoded inputs, not a grid-file
or authority-database parser.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	logLevel := os.Getenv("GEOCORE_LOG_LEVEL")
	switch strings.ToLower(logLevel) {
	case "debug":
		logger.SetLevel(logger.DEBUG)
	case "warn", "warning":
		logger.SetLevel(logger.WARN)
	case "error":
		logger.SetLevel(logger.ERROR)
	default:
		logger.SetLevel(logger.INFO)
	}

	rootCmd.AddCommand(fitCmd, gridCmd, pipelineCmd, cacheCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
