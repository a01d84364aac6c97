package conic

import (
	"math"

	"github.com/golang/geo/r2"
)

// GeneratePoints returns n points on the boundary of e at parameter values
// evenly spaced over [tmin, tmax], both ends included. Circles can be generated
// through Circle.Ellipse.
func GeneratePoints(e Ellipse, n int, tmin, tmax float64) []r2.Point {
	points := make([]r2.Point, n)
	sinPhi, cosPhi := math.Sincos(e.Phi)
	for i := range points {
		t := tmin
		if n > 1 {
			t = tmin + (tmax-tmin)*float64(i)/float64(n-1)
		}
		sin, cos := math.Sincos(t)
		points[i] = r2.Point{
			X: e.Center.X + e.SemiMajor*cos*cosPhi - e.SemiMinor*sin*sinPhi,
			Y: e.Center.Y + e.SemiMajor*cos*sinPhi + e.SemiMinor*sin*cosPhi,
		}
	}
	return points
}
