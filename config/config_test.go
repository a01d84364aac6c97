package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/multierr"
	"go.viam.com/test"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate("default"), test.ShouldBeNil)
	test.That(t, cfg.Elevations, test.ShouldResemble, []float64{0})
	test.That(t, cfg.VerticalTolerance, test.ShouldEqual, 0.025)
	test.That(t, cfg.RansacTolerance, test.ShouldEqual, 0.025)
	test.That(t, cfg.FitEllipse, test.ShouldBeFalse)
	test.That(t, cfg.CSVOptions().Separator, test.ShouldEqual, ";")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Elevations = nil
	err := cfg.Validate("run")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "elevations")

	cfg = Default()
	cfg.Elevations = []float64{1, math.NaN()}
	cfg.VerticalTolerance = 0
	cfg.RansacTolerance = -1
	cfg.Separator = "ab"
	err = cfg.Validate("run")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, len(multierr.Errors(err)), test.ShouldEqual, 4)
	test.That(t, err.Error(), test.ShouldContainSubstring, "run.elevations.1")
	test.That(t, err.Error(), test.ShouldContainSubstring, "vertical_tolerance")
	test.That(t, err.Error(), test.ShouldContainSubstring, "ransac_tolerance")
	test.That(t, err.Error(), test.ShouldContainSubstring, "separator")
}

func TestFromReader(t *testing.T) {
	cfg, err := FromReader("inline", strings.NewReader(`{"elevations": [1.5, 2.5, 3.5], "fit_ellipse": true, "with_id": true}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, "inline")
	test.That(t, cfg.Elevations, test.ShouldResemble, []float64{1.5, 2.5, 3.5})
	test.That(t, cfg.FitEllipse, test.ShouldBeTrue)
	test.That(t, cfg.WithID, test.ShouldBeTrue)
	// defaults survive
	test.That(t, cfg.VerticalTolerance, test.ShouldEqual, DefaultVerticalTolerance)
	test.That(t, cfg.Seed, test.ShouldEqual, int64(DefaultSeed))

	_, err = FromReader("broken", strings.NewReader(`{"elevations": [1,`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to decode")

	_, err = FromReader("invalid", strings.NewReader(`{"ransac_tolerance": 0}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid config")
}

func TestRead(t *testing.T) {
	t.Setenv("AXISFIT_TEST_VTOL", "0.05")
	fn := filepath.Join(t.TempDir(), "pier.json")
	content := `{"elevations": [10], "vertical_tolerance": ${AXISFIT_TEST_VTOL}, "separator": ","}`
	test.That(t, os.WriteFile(fn, []byte(content), 0o600), test.ShouldBeNil)

	cfg, err := Read(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.VerticalTolerance, test.ShouldEqual, 0.05)
	test.That(t, cfg.Separator, test.ShouldEqual, ",")
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, fn)

	_, err = Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
