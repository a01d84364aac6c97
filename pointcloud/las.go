package pointcloud

import (
	"bytes"
	"encoding/binary"
	"image/color"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/ulyxes/axisfit/logging"
)

// pointValueDataTag names the VLR holding the point values (ids), eight little
// endian bytes per point.
const pointValueDataTag = "axisfit|pv"

// NewFromLASFile returns a point cloud from reading a LAS file. Points outside
// of the precisely representable range are reported and skipped.
func NewFromLASFile(fn string, logger logging.Logger) (PointCloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", fn)
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	var valueData []byte
	for _, d := range lf.VlrData {
		if d.Description == pointValueDataTag {
			valueData = d.BinaryData
			break
		}
	}
	if valueData != nil && len(valueData) < 8*lf.Header.NumberPoints {
		logger.Warnw("ignoring truncated point values", "file", fn, "bytes", len(valueData))
		valueData = nil
	}

	pc := NewWithPrealloc(lf.Header.NumberPoints)
	skipped := 0
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, errors.Wrapf(err, "reading point %d of %q", i, fn)
		}
		data := p.PointData()
		v := r3.Vector{X: data.X, Y: data.Y, Z: data.Z}
		if err := validatePoint(v); err != nil {
			logger.Debugw("skipping LAS point", "index", i, "error", err)
			skipped++
			continue
		}

		var dd Data
		if rgb := p.RgbData(); rgb != nil {
			dd = NewColoredData(color.NRGBA{uint8(rgb.Red / 256), uint8(rgb.Green / 256), uint8(rgb.Blue / 256), 255})
		}
		if valueData != nil {
			if dd == nil {
				dd = NewBasicData()
			}
			dd.SetValue(int(binary.LittleEndian.Uint64(valueData[i*8 : (i*8)+8])))
		}
		if err := pc.Set(v, dd); err != nil {
			return nil, err
		}
	}
	if skipped > 0 {
		logger.Warnw("skipped LAS points outside of the precise float range", "file", fn, "count", skipped)
	}
	return pc, nil
}

// WriteToLASFile writes the point cloud out to a LAS file.
func WriteToLASFile(cloud PointCloud, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return errors.Wrapf(err, "creating %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	meta := cloud.MetaData()
	pointFormatID := 0
	if meta.HasColor {
		pointFormatID = 2
	}
	if err := lf.AddHeader(lidario.LasHeader{PointFormatID: byte(pointFormatID)}); err != nil {
		return err
	}

	var values bytes.Buffer
	var lastErr error
	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		pr0 := &lidario.PointRecord0{
			X: pos.X,
			Y: pos.Y,
			Z: pos.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3) | (0 << 6) | (0 << 7),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: 0,
			},
			PointSourceID: 1,
		}
		var lp lidario.LasPointer = pr0
		if meta.HasColor {
			red, green, blue := 255, 255, 255
			if d != nil && d.HasColor() {
				r, g, b := d.RGB255()
				red, green, blue = int(r), int(g), int(b)
			}
			lp = &lidario.PointRecord2{
				PointRecord0: pr0,
				RGB: &lidario.RgbData{
					Red:   uint16(red * 256),
					Green: uint16(green * 256),
					Blue:  uint16(blue * 256),
				},
			}
		}
		if meta.HasValue {
			var v int
			if d != nil && d.HasValue() {
				v = d.Value()
			}
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v))
			values.Write(b[:])
		}
		if lerr := lf.AddLasPoint(lp); lerr != nil {
			lastErr = lerr
			return false
		}
		return true
	})
	if lastErr != nil {
		return lastErr
	}

	if meta.HasValue {
		return lf.AddVLR(lidario.VLR{
			Description:             pointValueDataTag,
			BinaryData:              values.Bytes(),
			RecordLengthAfterHeader: values.Len(),
		})
	}
	return nil
}
