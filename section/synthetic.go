package section

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/ulyxes/axisfit/conic"
	"github.com/ulyxes/axisfit/pointcloud"
)

// SyntheticShape is the outline the synthetic test cloud is sampled from.
// Circles use its center and semi-major axis.
var SyntheticShape = conic.Ellipse{
	Center:    r2.Point{X: 4, Y: -3.5},
	SemiMajor: 7,
	SemiMinor: 3,
	Phi:       math.Pi / 4,
}

// SyntheticOptions describes a generated test cloud.
type SyntheticOptions struct {
	Elevations []float64
	Ellipse    bool
	// Points per section, 10 when zero.
	Points int
	// Noise is the standard deviation of the coordinate noise, 0.01 when zero.
	Noise float64
	// Lean shifts the section centers horizontally per unit of elevation.
	Lean r2.Point
}

// SyntheticCloud samples SyntheticShape at every elevation. Circles cover the
// full turn, ellipses a quarter arc. The last tenth of the points of each
// section are displaced by up to half of the semi-major axis.
func SyntheticCloud(opts SyntheticOptions, rng *rand.Rand) (pointcloud.PointCloud, error) {
	n := opts.Points
	if n <= 0 {
		n = 10
	}
	noise := opts.Noise
	if noise <= 0 {
		noise = 0.01
	}
	elevations := opts.Elevations
	if len(elevations) == 0 {
		elevations = []float64{0}
	}

	a := SyntheticShape.SemiMajor
	cloud := pointcloud.NewWithPrealloc(n * len(elevations))
	for _, h := range elevations {
		shape := SyntheticShape
		shape.Center = shape.Center.Add(opts.Lean.Mul(h))
		var points []r2.Point
		if opts.Ellipse {
			points = conic.GeneratePoints(shape, n, 0, math.Pi/2)
		} else {
			c := conic.Circle{Center: shape.Center, Radius: a}
			points = conic.GeneratePoints(c.Ellipse(), n, 0, 2*math.Pi*float64(n-1)/float64(n))
		}

		outliers := n / 10
		for i, p := range points {
			p.X += noise*rng.NormFloat64() - noise/2
			p.Y += noise*rng.NormFloat64() - noise/2
			if i >= n-outliers {
				p.X += rng.Float64()*a - a/2
				p.Y += rng.Float64()*a - a/2
			}
			if err := cloud.Set(r3.Vector{X: p.X, Y: p.Y, Z: h}, nil); err != nil {
				return nil, err
			}
		}
	}
	return cloud, nil
}
