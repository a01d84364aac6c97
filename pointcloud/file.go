package pointcloud

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/ulyxes/axisfit/logging"
)

// NewFromFile returns a pointcloud read in from the given file, choosing the
// reader by extension. Delimited coordinate lists are read with opts.
func NewFromFile(fn string, opts CSVOptions, logger logging.Logger) (PointCloud, error) {
	if logger == nil {
		logger = logging.NewBlankLogger("pointcloud")
	}
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".las":
		return NewFromLASFile(fn, logger)
	case ".pcd":
		f, err := os.Open(filepath.Clean(fn))
		if err != nil {
			return nil, err
		}
		defer utils.UncheckedErrorFunc(f.Close)
		cloud, err := ReadPCD(f)
		return cloud, errors.Wrapf(err, "reading %q", fn)
	case ".csv", ".txt", ".xyz", ".dat", ".coo":
		f, err := os.Open(filepath.Clean(fn))
		if err != nil {
			return nil, err
		}
		defer utils.UncheckedErrorFunc(f.Close)
		cloud, err := ReadCSV(f, opts)
		return cloud, errors.Wrapf(err, "reading %q", fn)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// WriteToFile writes the cloud to fn in the format given by its extension:
// binary PCD, LAS or a delimited coordinate list.
func WriteToFile(cloud PointCloud, fn string, opts CSVOptions) (err error) {
	ext := strings.ToLower(filepath.Ext(fn))
	switch ext {
	case ".las":
		return WriteToLASFile(cloud, fn)
	case ".pcd", ".csv", ".txt", ".xyz", ".dat", ".coo":
	default:
		return errors.Errorf("do not know how to write file %q", fn)
	}

	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	w := bufio.NewWriter(f)
	if ext == ".pcd" {
		err = ToPCD(cloud, w, PCDBinary)
	} else {
		err = WriteCSV(cloud, w, opts)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}
