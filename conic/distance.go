package conic

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/ulyxes/axisfit/utils"
)

// circleTolerance is the relative difference of the squared semi axes below
// which an ellipse is measured as a circle.
const circleTolerance = 1e-9

// PointEllipseDistance returns the signed distance of (xp, yp) from the
// boundary of the origin centered, axis aligned ellipse with semi axes a (along
// x) and b (along y). Points inside the ellipse get a negative distance.
//
// The closest boundary point comes from the closed form solution of the
// quartic through its resolvent cubic (see https://iquilezles.org/articles/ellipsedist/),
// so the cost is constant and nothing is allocated.
func PointEllipseDistance(a, b, xp, yp float64) float64 {
	xp, yp = math.Abs(xp), math.Abs(yp)
	inside := utils.Square(xp/a)+utils.Square(yp/b) < 1

	if math.Abs(b*b-a*a) <= circleTolerance*math.Max(a*a, b*b) {
		return math.Hypot(xp, yp) - (a+b)/2
	}

	if xp > yp {
		a, b = b, a
		xp, yp = yp, xp
	}
	l := b*b - a*a
	m := a * xp / l
	m2 := m * m
	n := b * yp / l
	n2 := n * n
	c := (m2 + n2 - 1) / 3
	c3 := c * c * c
	q := c3 + m2*n2*2
	d := c3 + m2*n2
	g := m + m*n2

	var co float64
	if d < 0 {
		p := math.Acos(clamp(q/c3, -1, 1)) / 3
		s := math.Cos(p)
		t := math.Sin(p) * math.Sqrt(3)
		rx := math.Sqrt(-c*(s+t+2) + m2)
		ry := math.Sqrt(-c*(s-t+2) + m2)
		co = (ry + utils.Sign(l)*rx + math.Abs(g)/(rx*ry) - m) / 2
	} else {
		h := 2 * m * n * math.Sqrt(d)
		s := utils.SignedCubeRoot(q + h)
		u := utils.SignedCubeRoot(q - h)
		rx := -s - u - c*4 + 2*m2
		ry := (s - u) * math.Sqrt(3)
		rm := math.Hypot(rx, ry)
		co = (ry/math.Sqrt(rm-rx) + 2*g/rm - m) / 2
	}
	co = clamp(co, -1, 1)
	si := math.Sqrt(1 - co*co)

	dist := math.Hypot(a*co-xp, b*si-yp)
	if inside {
		return -dist
	}
	return dist
}

// DistEllipse returns the signed distance of each point from the ellipse. The
// points are moved to the ellipse frame (translated by -center, rotated by -phi)
// before measuring.
func DistEllipse(e Ellipse, points []r2.Point) []float64 {
	sin, cos := math.Sincos(e.Phi)
	dist := make([]float64, len(points))
	for i, p := range points {
		dist[i] = e.distance(p, sin, cos)
	}
	return dist
}

// RMSEllipse returns the root mean square of the boundary distances.
func RMSEllipse(e Ellipse, points []r2.Point) float64 {
	return utils.RootMeanSquare(DistEllipse(e, points))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
