// Package conic fits circles and general conics (ellipses) to planar point sets
// and measures exact point to ellipse distances.
//
// All fits are closed form: circles through the normal equations of the
// algebraic (Kasa) formulation, ellipses through the eigenvector belonging to
// the smallest eigenvalue of the scatter matrix of the conic design matrix.
package conic

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/ulyxes/axisfit/utils"
)

var (
	// ErrInsufficientPoints is returned when a fit receives fewer points than it needs.
	ErrInsufficientPoints = errors.New("too few points for fit")

	// ErrDegenerateFit is returned when the points do not determine a real circle or ellipse,
	// e.g. collinear samples or a parabolic/hyperbolic conic.
	ErrDegenerateFit = errors.New("degenerate fit")
)

const (
	// MinCirclePoints is the minimal sample for a circle.
	MinCirclePoints = 3
	// MinEllipsePoints is the minimal sample for a general conic.
	MinEllipsePoints = 5
)

// Shape is a fitted section outline, either a Circle or an Ellipse.
type Shape interface {
	fmt.Stringer
	// Position returns the center of the shape.
	Position() r2.Point
	// Distance returns the signed distance of p from the outline, negative inside.
	Distance(p r2.Point) float64
	// Distances returns the signed distance of every point from the outline.
	Distances(points []r2.Point) []float64
	// RootMeanSquare returns the rms of the fit residuals.
	RootMeanSquare() float64
	// Ellipse returns the shape as an ellipse.
	Ellipse() Ellipse
}

// Circle is a fitted circle.
type Circle struct {
	Center r2.Point
	Radius float64
	RMS    float64
}

// Position returns the circle center.
func (c Circle) Position() r2.Point {
	return c.Center
}

// Distance returns |p - center| - radius.
func (c Circle) Distance(p r2.Point) float64 {
	return p.Sub(c.Center).Norm() - c.Radius
}

// Distances is DistCircle on the receiver.
func (c Circle) Distances(points []r2.Point) []float64 {
	return DistCircle(c, points)
}

// RootMeanSquare returns the rms of the radial residuals.
func (c Circle) RootMeanSquare() float64 {
	return c.RMS
}

// Ellipse returns the circle as a degenerate ellipse with equal semi axes.
func (c Circle) Ellipse() Ellipse {
	return Ellipse{Center: c.Center, SemiMajor: c.Radius, SemiMinor: c.Radius, RMS: c.RMS}
}

func (c Circle) String() string {
	return fmt.Sprintf("circle center=(%.3f, %.3f) r=%.3f rms=%.3f", c.Center.X, c.Center.Y, c.Radius, c.RMS)
}

// Ellipse is a fitted ellipse. SemiMajor >= SemiMinor and Phi, the direction
// of the major axis measured from the x axis, is in [0, π).
type Ellipse struct {
	Center    r2.Point
	SemiMajor float64
	SemiMinor float64
	Phi       float64
	RMS       float64
}

// Position returns the ellipse center.
func (e Ellipse) Position() r2.Point {
	return e.Center
}

// Distance returns the signed distance from the ellipse boundary.
func (e Ellipse) Distance(p r2.Point) float64 {
	sin, cos := math.Sincos(e.Phi)
	return e.distance(p, sin, cos)
}

func (e Ellipse) distance(p r2.Point, sin, cos float64) float64 {
	w := p.Sub(e.Center)
	xt := w.X*cos + w.Y*sin
	yt := -w.X*sin + w.Y*cos
	return PointEllipseDistance(e.SemiMajor, e.SemiMinor, xt, yt)
}

// Distances is DistEllipse on the receiver.
func (e Ellipse) Distances(points []r2.Point) []float64 {
	return DistEllipse(e, points)
}

// RootMeanSquare returns the rms of the boundary distances.
func (e Ellipse) RootMeanSquare() float64 {
	return e.RMS
}

// Ellipse returns the receiver.
func (e Ellipse) Ellipse() Ellipse {
	return e
}

func (e Ellipse) String() string {
	return fmt.Sprintf("ellipse center=(%.3f, %.3f) a=%.3f b=%.3f phi=%.4f° rms=%.3f",
		e.Center.X, e.Center.Y, e.SemiMajor, e.SemiMinor, utils.RadToDeg(e.Phi), e.RMS)
}

// normalize shifts the points to their centroid and scales them to unit mean
// distance so the design matrices stay well conditioned for survey scale
// coordinates. Geometry fitted in the normalized frame is mapped back with
// origin + scale*v.
func normalize(points []r2.Point) ([]r2.Point, r2.Point, float64, error) {
	var origin r2.Point
	for _, p := range points {
		origin = origin.Add(p)
	}
	origin = origin.Mul(1 / float64(len(points)))

	var scale float64
	for _, p := range points {
		scale += p.Sub(origin).Norm()
	}
	scale /= float64(len(points))
	if scale == 0 || !utils.AllFinite(scale, origin.X, origin.Y) {
		return nil, r2.Point{}, 0, errors.Wrap(ErrDegenerateFit, "points are coincident or not finite")
	}

	shifted := make([]r2.Point, len(points))
	for i, p := range points {
		shifted[i] = p.Sub(origin).Mul(1 / scale)
	}
	return shifted, origin, scale, nil
}
