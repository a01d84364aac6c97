// Package ransac finds the circle or ellipse with the largest support in a
// planar point set contaminated by outliers.
package ransac

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ulyxes/axisfit/conic"
)

const (
	// DefaultSeed seeds the sampling source when the caller passes none.
	DefaultSeed = 1
	// TrialsPerPoint is the number of minimal samples drawn per input point.
	TrialsPerPoint = 5
)

// ErrNoConsensus is returned when no trial produced a usable model.
var ErrNoConsensus = errors.New("no consensus")

// Shuffler randomizes sample selection. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Result is the best supported model found.
type Result struct {
	// Inliers are the input points within tolerance of Model, in input order.
	Inliers []r2.Point
	// Support is len(Inliers).
	Support int
	// Model is the minimal sample fit that produced the support.
	Model conic.Shape
	// Trials is the number of samples drawn before returning.
	Trials int
}

// fitFunc fits a model to a minimal sample.
type fitFunc func(sample []r2.Point) (conic.Shape, error)

// Circle runs RANSAC with three point circle samples.
func Circle(points []r2.Point, tolerance float64, rng Shuffler) (Result, error) {
	return consensus(points, tolerance, rng, conic.MinCirclePoints, func(sample []r2.Point) (conic.Shape, error) {
		c, err := conic.FitCircle(sample)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Ellipse runs RANSAC with five point conic samples.
func Ellipse(points []r2.Point, tolerance float64, rng Shuffler) (Result, error) {
	return consensus(points, tolerance, rng, conic.MinEllipsePoints, func(sample []r2.Point) (conic.Shape, error) {
		e, err := conic.FitEllipse(sample)
		if err != nil {
			return nil, err
		}
		return e, nil
	})
}

// consensus draws TrialsPerPoint*n samples of sampleSize points and keeps the
// model with the most points closer than tolerance. Only a strictly larger
// support replaces the best model, so among equal supports the first wins.
// Degenerate samples are skipped.
func consensus(points []r2.Point, tolerance float64, rng Shuffler, sampleSize int, fit fitFunc) (Result, error) {
	n := len(points)
	if n < sampleSize {
		return Result{}, errors.Wrapf(conic.ErrInsufficientPoints, "ransac needs %d points, got %d", sampleSize, n)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(DefaultSeed)) //nolint:gosec
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	sample := make([]r2.Point, sampleSize)

	var (
		best     Result
		bestDist []float64
		trials   int
	)
	for trials < TrialsPerPoint*n {
		trials++
		rng.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		for k := range sample {
			sample[k] = points[indices[k]]
		}

		model, err := fit(sample)
		if err != nil {
			continue
		}
		dist := model.Distances(points)
		support := lo.CountBy(dist, func(d float64) bool {
			return math.Abs(d) < tolerance
		})
		if support > best.Support {
			best.Support = support
			best.Model = model
			bestDist = dist
			if support == n {
				break
			}
		}
	}
	if best.Model == nil {
		return Result{}, errors.Wrapf(ErrNoConsensus, "%d trials over %d points", trials, n)
	}

	best.Trials = trials
	best.Inliers = lo.Filter(points, func(_ r2.Point, i int) bool {
		return math.Abs(bestDist[i]) < tolerance
	})
	return best, nil
}
