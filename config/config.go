// Package config defines the configuration of a section fitting run and reads
// it from JSON files.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/ulyxes/axisfit/pointcloud"
)

// Default values of a Config.
const (
	DefaultVerticalTolerance = 0.025
	DefaultRansacTolerance   = 0.025
	DefaultSeed              = 1
)

// A Config describes which sections to fit and how.
type Config struct {
	// Elevations to cut horizontal sections at.
	Elevations []float64 `json:"elevations"`
	// VerticalTolerance is the half height of a section.
	VerticalTolerance float64 `json:"vertical_tolerance"`
	// RansacTolerance is the largest distance from a candidate shape for a point to support it.
	RansacTolerance float64 `json:"ransac_tolerance"`
	// FitEllipse fits ellipses instead of circles.
	FitEllipse bool `json:"fit_ellipse"`
	// Seed of the random source driving the sampling.
	Seed int64 `json:"seed"`

	// Separator and WithID describe delimited input files.
	Separator string `json:"separator"`
	WithID    bool   `json:"with_id"`

	ConfigFilePath string `json:"-"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Elevations:        []float64{0},
		VerticalTolerance: DefaultVerticalTolerance,
		RansacTolerance:   DefaultRansacTolerance,
		Seed:              DefaultSeed,
		Separator:         pointcloud.DefaultSeparator,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var err error
	if len(cfg.Elevations) == 0 {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "elevations"))
	}
	for idx, h := range cfg.Elevations {
		if math.IsNaN(h) || math.IsInf(h, 0) {
			err = multierr.Append(err, utils.NewConfigValidationError(
				fmt.Sprintf("%s.%s.%d", path, "elevations", idx), errors.Errorf("elevation %v is not finite", h)))
		}
	}
	if !(cfg.VerticalTolerance > 0) {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.Errorf("vertical_tolerance must be positive, got %v", cfg.VerticalTolerance)))
	}
	if !(cfg.RansacTolerance > 0) {
		err = multierr.Append(err, utils.NewConfigValidationError(path,
			errors.Errorf("ransac_tolerance must be positive, got %v", cfg.RansacTolerance)))
	}
	if serr := cfg.CSVOptions().Validate(); serr != nil {
		err = multierr.Append(err, utils.NewConfigValidationError(path, serr))
	}
	return err
}

// CSVOptions returns the options for reading delimited input files.
func (cfg *Config) CSVOptions() pointcloud.CSVOptions {
	return pointcloud.CSVOptions{Separator: cfg.Separator, WithID: cfg.WithID}
}

// Read reads a config from the given file. Environment variables in the file
// are expanded first.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from. Fields
// missing from the input keep their default.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := Default()
	cfg.ConfigFilePath = originalPath
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", originalPath)
	}
	return &cfg, nil
}
