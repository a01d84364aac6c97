package conic

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ulyxes/axisfit/utils"
)

// discriminantTolerance bounds B²-4AC relative to A²+B²+C² below which a conic
// is treated as parabolic rather than elliptic.
const discriminantTolerance = 1e-12

// Coefficients of the general conic Ax² + Bxy + Cy² + Dx + Ey + F = 0.
type Coefficients struct {
	A, B, C, D, E, F float64
}

// Discriminant returns B²-4AC; the conic is an ellipse only when it is negative.
func (c Coefficients) Discriminant() float64 {
	return c.B*c.B - 4*c.A*c.C
}

// Normalized returns the coefficients scaled to unit euclidean norm.
func (c Coefficients) Normalized() Coefficients {
	v := []float64{c.A, c.B, c.C, c.D, c.E, c.F}
	norm := floats.Norm(v, 2)
	if norm == 0 {
		return c
	}
	floats.Scale(1/norm, v)
	return Coefficients{v[0], v[1], v[2], v[3], v[4], v[5]}
}

func (c Coefficients) String() string {
	return fmt.Sprintf("%gx² + %gxy + %gy² + %gx + %gy + %g = 0", c.A, c.B, c.C, c.D, c.E, c.F)
}

// Geometry converts the implicit coefficients to center, semi axes and rotation.
// The RMS of the returned ellipse is left zero.
func (c Coefficients) Geometry() (Ellipse, error) {
	A, B, C, D, E, F := c.A, c.B, c.C, c.D, c.E, c.F
	disc := c.Discriminant()
	if !(disc < -discriminantTolerance*(A*A+B*B+C*C)) {
		return Ellipse{}, errors.Wrapf(ErrDegenerateFit, "conic is not an ellipse (B²-4AC = %g)", disc)
	}

	num := 2 * (A*E*E + C*D*D - B*D*E + disc*F)
	root := math.Sqrt((A-C)*(A-C) + B*B)
	ap := math.Abs(-math.Sqrt(math.Abs(num*((A+C)+root))) / disc)
	bp := math.Abs(-math.Sqrt(math.Abs(num*((A+C)-root))) / disc)
	x0 := (2*C*D - B*E) / disc
	y0 := (2*A*E - B*D) / disc
	phi := math.Atan2(-B, C-A) / 2

	if ap < bp {
		ap, bp = bp, ap
		phi -= math.Pi / 2
	}
	for phi < 0 {
		phi += math.Pi
	}
	for phi >= math.Pi {
		phi -= math.Pi
	}

	if ap == 0 || bp == 0 || !utils.AllFinite(x0, y0, ap, bp, phi) {
		return Ellipse{}, errors.Wrapf(ErrDegenerateFit, "conic %v has no real ellipse", c)
	}
	return Ellipse{Center: r2.Point{X: x0, Y: y0}, SemiMajor: ap, SemiMinor: bp, Phi: phi}, nil
}

// FitConic returns the unit-norm conic coefficients minimizing the algebraic
// distance of the points, i.e. the eigenvector for the smallest eigenvalue of
// the scatter matrix MᵗM of the design rows [x², xy, y², x, y, 1].
func FitConic(points []r2.Point) (Coefficients, error) {
	if len(points) < MinEllipsePoints {
		return Coefficients{}, errors.Wrapf(ErrInsufficientPoints, "conic needs %d points, got %d", MinEllipsePoints, len(points))
	}
	design := mat.NewDense(len(points), 6, nil)
	for i, p := range points {
		design.SetRow(i, []float64{p.X * p.X, p.X * p.Y, p.Y * p.Y, p.X, p.Y, 1})
	}

	var scatter mat.SymDense
	scatter.SymOuterK(1, design.T())

	var eigen mat.EigenSym
	if ok := eigen.Factorize(&scatter, true); !ok {
		return Coefficients{}, errors.Wrap(ErrDegenerateFit, "eigen decomposition of the scatter matrix failed")
	}
	values := eigen.Values(nil)
	var vectors mat.Dense
	eigen.VectorsTo(&vectors)

	// Do not rely on the ordering of the decomposition.
	smallest := floats.MinIdx(values)
	v := mat.Col(nil, smallest, &vectors)
	return Coefficients{v[0], v[1], v[2], v[3], v[4], v[5]}.Normalized(), nil
}

// FitEllipse fits an ellipse to at least five points. The rms is computed
// from the exact boundary distances of all input points.
func FitEllipse(points []r2.Point) (Ellipse, error) {
	if len(points) < MinEllipsePoints {
		return Ellipse{}, errors.Wrapf(ErrInsufficientPoints, "ellipse needs %d points, got %d", MinEllipsePoints, len(points))
	}
	local, origin, scale, err := normalize(points)
	if err != nil {
		return Ellipse{}, err
	}
	coeffs, err := FitConic(local)
	if err != nil {
		return Ellipse{}, err
	}
	e, err := coeffs.Geometry()
	if err != nil {
		return Ellipse{}, err
	}

	e.Center = origin.Add(e.Center.Mul(scale))
	e.SemiMajor *= scale
	e.SemiMinor *= scale
	e.RMS = RMSEllipse(e, points)
	return e, nil
}
