// Package axis reconstructs the center axis of a structure from the centers
// of its horizontal sections.
package axis

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/ulyxes/axisfit/utils"
)

// MinCenters is the number of section centers needed for an axis.
const MinCenters = 3

var (
	// ErrAxisUnderdetermined is returned when the centers do not determine a line.
	ErrAxisUnderdetermined = errors.New("axis underdetermined")
	// ErrDecompositionFailed is returned when the singular value decomposition fails.
	ErrDecompositionFailed = errors.New("singular value decomposition failed")
)

// Line is the 3D line Origin + t*Direction with a unit Direction.
type Line struct {
	Origin    r3.Vector
	Direction r3.Vector
}

// At returns the point of the line at parameter t.
func (l Line) At(t float64) r3.Vector {
	return l.Origin.Add(l.Direction.Mul(t))
}

// Distance returns the perpendicular distance of p from the line.
func (l Line) Distance(p r3.Vector) float64 {
	return p.Sub(l.Origin).Cross(l.Direction).Norm()
}

// Distances returns the perpendicular distance of every point from the line.
func (l Line) Distances(points []r3.Vector) []float64 {
	dist := make([]float64, len(points))
	for i, p := range points {
		dist[i] = l.Distance(p)
	}
	return dist
}

// Tilt returns the angle between the line and the vertical in gon.
func (l Line) Tilt() float64 {
	d := l.upward()
	return utils.RadToGon(math.Atan(math.Hypot(d.X, d.Y) / d.Z))
}

// Azimuth returns the direction the line leans towards in gon, clockwise
// from north (+y), in [0, 400).
func (l Line) Azimuth() float64 {
	d := l.upward()
	if d.X == 0 && d.Y == 0 {
		return 0
	}
	return utils.ModAngGon(utils.RadToGon(math.Atan2(d.X, d.Y)))
}

func (l Line) upward() r3.Vector {
	if l.Direction.Z < 0 {
		return l.Direction.Mul(-1)
	}
	return l.Direction
}

func (l Line) String() string {
	return fmt.Sprintf(" x = %12.3f + %12.6f * t\n y = %12.3f + %12.6f * t\n z = %12.3f + %12.6f * t",
		l.Origin.X, l.Direction.X, l.Origin.Y, l.Direction.Y, l.Origin.Z, l.Direction.Z)
}

// FitLine fits a line through the points by total least squares. The origin is
// the centroid and the direction, pointing upwards, is the right singular
// vector of the largest singular value of the centered points.
func FitLine(points []r3.Vector) (Line, []float64, error) {
	if len(points) < 2 {
		return Line{}, nil, errors.Wrapf(ErrAxisUnderdetermined, "%d points", len(points))
	}

	var centroid r3.Vector
	for _, p := range points {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1 / float64(len(points)))

	data := mat.NewDense(len(points), 3, nil)
	for i, p := range points {
		d := p.Sub(centroid)
		data.SetRow(i, []float64{d.X, d.Y, d.Z})
	}

	var svd mat.SVD
	if ok := svd.Factorize(data, mat.SVDThin); !ok {
		return Line{}, nil, ErrDecompositionFailed
	}
	values := svd.Values(nil)
	if values[0] == 0 || !utils.AllFinite(values...) {
		return Line{}, nil, errors.Wrap(ErrAxisUnderdetermined, "points coincide")
	}
	var v mat.Dense
	svd.VTo(&v)

	dir := r3.Vector{X: v.At(0, 0), Y: v.At(1, 0), Z: v.At(2, 0)}.Normalize()
	l := Line{Origin: centroid, Direction: dir}
	l.Direction = l.upward()
	return l, values, nil
}

// Result is a reconstructed axis.
type Result struct {
	Line Line
	// Tilt from the vertical and its direction, in gon.
	Tilt    float64
	Azimuth float64
	// Residuals are the distances of the centers from the line, in input order.
	Residuals []float64
	RMS       float64
	// SingularValues of the centered centers, descending.
	SingularValues []float64
}

// Reconstruct fits the axis through at least MinCenters section centers.
func Reconstruct(centers []r3.Vector) (Result, error) {
	if len(centers) < MinCenters {
		return Result{}, errors.Wrapf(ErrAxisUnderdetermined, "%d centers, need %d", len(centers), MinCenters)
	}
	line, values, err := FitLine(centers)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Line:           line,
		Tilt:           line.Tilt(),
		Azimuth:        line.Azimuth(),
		Residuals:      line.Distances(centers),
		SingularValues: values,
	}
	res.RMS = utils.RootMeanSquare(res.Residuals)
	return res, nil
}
