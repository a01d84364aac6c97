package conic

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/ulyxes/axisfit/utils"
)

// FitCircle fits a circle through the points by least squares.
// Linearizes: x*a1 + y*a2 + a3 = -(x^2+y^2), where center = (-a1/2, -a2/2)
// and r^2 = x0^2 + y0^2 - a3, and solves the normal equations.
func FitCircle(points []r2.Point) (Circle, error) {
	if len(points) < MinCirclePoints {
		return Circle{}, errors.Wrapf(ErrInsufficientPoints, "circle needs %d points, got %d", MinCirclePoints, len(points))
	}
	local, origin, scale, err := normalize(points)
	if err != nil {
		return Circle{}, err
	}

	n := len(local)
	a := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for i, p := range local {
		a.Set(i, 0, p.X)
		a.Set(i, 1, p.Y)
		a.Set(i, 2, 1)
		b.SetVec(i, -(p.X*p.X + p.Y*p.Y))
	}

	var normal mat.Dense
	normal.Mul(a.T(), a)
	var rhs mat.VecDense
	rhs.MulVec(a.T(), b)

	var par mat.VecDense
	if err := par.SolveVec(&normal, &rhs); err != nil {
		return Circle{}, errors.Wrapf(ErrDegenerateFit, "circle normal equations: %v", err)
	}

	x0 := -0.5 * par.AtVec(0)
	y0 := -0.5 * par.AtVec(1)
	rSquared := x0*x0 + y0*y0 - par.AtVec(2)
	if rSquared <= 0 || !utils.AllFinite(x0, y0, rSquared) {
		return Circle{}, errors.Wrapf(ErrDegenerateFit, "circle radius radicand %g", rSquared)
	}

	c := Circle{
		Center: origin.Add(r2.Point{X: x0, Y: y0}.Mul(scale)),
		Radius: math.Sqrt(rSquared) * scale,
	}
	c.RMS = utils.RootMeanSquare(DistCircle(c, points))
	return c, nil
}

// DistCircle returns the signed radial distance of each point from the circle.
func DistCircle(c Circle, points []r2.Point) []float64 {
	dist := make([]float64, len(points))
	for i, p := range points {
		dist[i] = c.Distance(p)
	}
	return dist
}
