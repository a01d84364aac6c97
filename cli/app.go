// Package cli contains the axisfit command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"github.com/ulyxes/axisfit/config"
	"github.com/ulyxes/axisfit/pointcloud"
)

const (
	flagSeparator  = "sep"
	flagTolerance  = "tol"
	flagVTolerance = "vtol"
	flagWithID     = "withid"
	flagPrintCoo   = "print-coo"
	flagElevations = "elev"
	flagEllipse    = "ellipse"
	flagSeed       = "seed"
	flagConfig     = "config"
	flagInliersOut = "inliers-out"
	flagJSON       = "json"
	flagDebug      = "debug"
	flagLogFile    = "log-file"

	// testInput selects the generated point cloud instead of a file.
	testInput = "test"
)

// NewApp returns the axisfit application writing its report to out and
// errors to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "axisfit",
		Usage:           "fit circles or ellipses to horizontal sections of a point cloud and the axis through their centers",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Commands: []*cli.Command{
			{
				Name:      "fit",
				Usage:     "fit sections at the given elevations",
				ArgsUsage: "<file|" + testInput + ">",
				UsageText: "axisfit fit [options] <file|" + testInput + ">",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    flagSeparator,
						Aliases: []string{"s"},
						Value:   pointcloud.DefaultSeparator,
						Usage:   "field separator of delimited input files",
					},
					&cli.Float64Flag{
						Name:    flagTolerance,
						Aliases: []string{"t"},
						Value:   config.DefaultRansacTolerance,
						Usage:   "largest distance of a supporting point from a candidate shape",
					},
					&cli.Float64Flag{
						Name:    flagVTolerance,
						Aliases: []string{"v"},
						Value:   config.DefaultVerticalTolerance,
						Usage:   "half height of a section",
					},
					&cli.BoolFlag{
						Name:    flagWithID,
						Aliases: []string{"i"},
						Usage:   "delimited input starts with a point id column",
					},
					&cli.BoolFlag{
						Name:    flagPrintCoo,
						Aliases: []string{"p"},
						Usage:   "print the filtered coordinates and their distances, too",
					},
					&cli.Float64SliceFlag{
						Name:    flagElevations,
						Aliases: []string{"e"},
						Value:   cli.NewFloat64Slice(0),
						Usage:   "elevations of the sections, repeat or separate with commas",
					},
					&cli.BoolFlag{
						Name:  flagEllipse,
						Usage: "fit ellipses instead of circles",
					},
					&cli.Int64Flag{
						Name:  flagSeed,
						Value: config.DefaultSeed,
						Usage: "seed of the random sampling",
					},
					&cli.StringFlag{
						Name:    flagConfig,
						Aliases: []string{"c"},
						Usage:   "load configuration from `FILE`, flags take precedence",
					},
					&cli.StringFlag{
						Name:  flagInliersOut,
						Usage: "write the inliers of every section to `FILE` (.pcd, .las or delimited)",
					},
					&cli.BoolFlag{
						Name:  flagJSON,
						Usage: "print the report as JSON",
					},
					&cli.BoolFlag{
						Name:  flagDebug,
						Usage: "enable debug logging",
					},
					&cli.StringFlag{
						Name:  flagLogFile,
						Usage: "also append logs as JSON lines to `FILE`, rotated by size",
					},
				},
				Action: FitAction,
			},
		},
	}
}
