package cli

import (
	"io"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
	goutils "go.viam.com/utils"

	"github.com/ulyxes/axisfit/axis"
	"github.com/ulyxes/axisfit/config"
	"github.com/ulyxes/axisfit/logging"
	"github.com/ulyxes/axisfit/pointcloud"
	"github.com/ulyxes/axisfit/section"
)

// FitAction is the corresponding Action for 'fit'.
func FitAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.Errorf("expected one input, a point cloud file or %q, got %d", testInput, c.NArg())
	}
	cfg, err := configFromContext(c)
	if err != nil {
		return err
	}

	logger, closeLogger := newLogger(c)
	defer closeLogger()

	input := c.Args().First()
	cloud, err := loadCloud(input, cfg, logger)
	if err != nil {
		return err
	}
	logger.Debugw("point cloud loaded", "input", input, "points", cloud.Size())

	results, err := section.NewProcessor(*cfg, logger.Sublogger("section")).Process(c.Context, cloud)
	if err != nil {
		return err
	}
	rep := newReport(results, logger)
	if input == testInput {
		rep.Synthetic = true
	}

	if out := c.String(flagInliersOut); out != "" {
		if err := writeInliers(results, out, cfg); err != nil {
			return err
		}
		logger.Infow("inliers written", "file", out)
	}

	if c.Bool(flagJSON) {
		return rep.writeJSON(c.App.Writer)
	}
	rep.writeText(c.App.Writer, c.Bool(flagPrintCoo))
	return nil
}

// newLogger logs warnings, or everything with --debug, to stderr and the
// optional log file.
func newLogger(c *cli.Context) (logging.Logger, func()) {
	var logger logging.Logger
	var file io.Closer
	if fn := c.String(flagLogFile); fn != "" {
		logger, file = logging.NewFileAppendedLogger("axisfit", fn)
	} else {
		logger = logging.NewLogger("axisfit")
	}
	if c.Bool(flagDebug) {
		logger.SetLevel(zapcore.DebugLevel)
	} else {
		logger.SetLevel(zapcore.WarnLevel)
	}
	return logger, func() {
		goutils.UncheckedErrorFunc(logger.Sync)
		if file != nil {
			goutils.UncheckedErrorFunc(file.Close)
		}
	}
}

// configFromContext reads the configuration file, if any, and lets the flags
// that were set override it.
func configFromContext(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		read, err := config.Read(path)
		if err != nil {
			return nil, err
		}
		cfg = *read
	}

	if c.IsSet(flagSeparator) {
		cfg.Separator = c.String(flagSeparator)
	}
	if c.IsSet(flagTolerance) {
		cfg.RansacTolerance = c.Float64(flagTolerance)
	}
	if c.IsSet(flagVTolerance) {
		cfg.VerticalTolerance = c.Float64(flagVTolerance)
	}
	if c.IsSet(flagWithID) {
		cfg.WithID = c.Bool(flagWithID)
	}
	if c.IsSet(flagElevations) {
		cfg.Elevations = c.Float64Slice(flagElevations)
	}
	if c.IsSet(flagEllipse) {
		cfg.FitEllipse = c.Bool(flagEllipse)
	}
	if c.IsSet(flagSeed) {
		cfg.Seed = c.Int64(flagSeed)
	}

	if err := cfg.Validate("flags"); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}
	return &cfg, nil
}

func loadCloud(input string, cfg *config.Config, logger logging.Logger) (pointcloud.PointCloud, error) {
	if input == testInput {
		opts := section.SyntheticOptions{Elevations: cfg.Elevations, Ellipse: cfg.FitEllipse}
		return section.SyntheticCloud(opts, rand.New(rand.NewSource(cfg.Seed))) //nolint:gosec
	}
	return pointcloud.NewFromFile(input, cfg.CSVOptions(), logger.Sublogger("pointcloud"))
}

// writeInliers stores the inliers of all fitted sections, placed at their
// section elevation.
func writeInliers(results []section.Result, fn string, cfg *config.Config) error {
	var positions []r3.Vector
	for _, r := range results {
		if !r.OK() {
			continue
		}
		for _, p := range r.Inliers {
			positions = append(positions, r3.Vector{X: p.X, Y: p.Y, Z: r.Elevation})
		}
	}
	cloud, err := pointcloud.FromPositions(positions)
	if err != nil {
		return err
	}
	return pointcloud.WriteToFile(cloud, fn, cfg.CSVOptions())
}

// reconstructAxis fits the axis when enough sections succeeded. A failure is
// logged and leaves the report without an axis.
func reconstructAxis(results []section.Result, logger logging.Logger) *axis.Result {
	centers := section.Centers(results)
	if len(centers) < axis.MinCenters {
		logger.Debugw("too few sections for an axis", "centers", len(centers))
		return nil
	}
	res, err := axis.Reconstruct(centers)
	if err != nil {
		logger.Warnw("axis fit failed", "error", err)
		return nil
	}
	return &res
}
