package ransac

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/ulyxes/axisfit/conic"
)

func noisy(points []r2.Point, sigma float64, rng *rand.Rand) []r2.Point {
	out := make([]r2.Point, len(points))
	for i, p := range points {
		out[i] = r2.Point{X: p.X + sigma*rng.NormFloat64(), Y: p.Y + sigma*rng.NormFloat64()}
	}
	return out
}

// scatter returns n points in the box [-half, half]² around center that are
// at least clearance away from shape.
func scatter(shape conic.Shape, center r2.Point, half, clearance float64, n int, rng *rand.Rand) []r2.Point {
	var out []r2.Point
	for len(out) < n {
		p := r2.Point{X: center.X + half*(2*rng.Float64()-1), Y: center.Y + half*(2*rng.Float64()-1)}
		if math.Abs(shape.Distance(p)) > clearance {
			out = append(out, p)
		}
	}
	return out
}

func contains(points []r2.Point, p r2.Point) bool {
	for _, q := range points {
		if q == p {
			return true
		}
	}
	return false
}

type countingShuffler struct {
	*rand.Rand
	calls int
}

func (s *countingShuffler) Shuffle(n int, swap func(i, j int)) {
	s.calls++
	s.Rand.Shuffle(n, swap)
}

// scriptedShuffler applies the swaps listed for each call, none once exhausted.
type scriptedShuffler struct {
	swaps [][][2]int
	calls int
}

func (s *scriptedShuffler) Shuffle(_ int, swap func(i, j int)) {
	if s.calls < len(s.swaps) {
		for _, ij := range s.swaps[s.calls] {
			swap(ij[0], ij[1])
		}
	}
	s.calls++
}

func TestCircleRobustness(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	truth := conic.Circle{Center: r2.Point{X: 100, Y: 200}, Radius: 3}
	inliers := noisy(conic.GeneratePoints(truth.Ellipse(), 100, 0, 2*math.Pi*99/100), 0.005, rng)
	outliers := scatter(truth, truth.Center, 6, 0.5, 10, rng)
	points := append(append([]r2.Point{}, inliers...), outliers...)
	rng.Shuffle(len(points), func(i, j int) { points[i], points[j] = points[j], points[i] })

	res, err := Circle(points, 0.025, rand.New(rand.NewSource(DefaultSeed)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Support, test.ShouldEqual, len(res.Inliers))
	test.That(t, res.Support, test.ShouldBeBetweenOrEqual, 90, 100)
	for _, o := range outliers {
		test.That(t, contains(res.Inliers, o), test.ShouldBeFalse)
	}

	c, err := conic.FitCircle(res.Inliers)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Center.X, test.ShouldAlmostEqual, 100.0, 0.01)
	test.That(t, c.Center.Y, test.ShouldAlmostEqual, 200.0, 0.01)
	test.That(t, c.Radius, test.ShouldAlmostEqual, 3.0, 0.01)
}

func TestCircleConcreteScenario(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	truth := conic.Circle{Center: r2.Point{X: 4, Y: -3.5}, Radius: 7}
	points := noisy(conic.GeneratePoints(truth.Ellipse(), 10, 0, 2*math.Pi*9/10), 0.01, rng)
	// the outlier lies on the ray of the first point, 7 units further out
	outlier := r2.Point{X: 4 + 14, Y: -3.5}
	points = append(points, outlier)

	res, err := Circle(points, 0.025, rand.New(rand.NewSource(DefaultSeed)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, contains(res.Inliers, outlier), test.ShouldBeFalse)
	test.That(t, res.Support, test.ShouldBeBetweenOrEqual, 5, 10)

	c, err := conic.FitCircle(res.Inliers)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Radius, test.ShouldBeBetweenOrEqual, 6.95, 7.05)
}

func TestEllipseRobustness(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	truth := conic.Ellipse{Center: r2.Point{X: -20, Y: 15}, SemiMajor: 5, SemiMinor: 3, Phi: 0.5}
	inliers := noisy(conic.GeneratePoints(truth, 60, 0, 2*math.Pi*59/60), 0.002, rng)
	outliers := scatter(truth, truth.Center, 8, 0.5, 6, rng)
	points := append(append([]r2.Point{}, inliers...), outliers...)

	res, err := Ellipse(points, 0.025, rand.New(rand.NewSource(DefaultSeed)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Support, test.ShouldBeBetweenOrEqual, 50, 60)
	for _, o := range outliers {
		test.That(t, contains(res.Inliers, o), test.ShouldBeFalse)
	}

	e, err := conic.FitEllipse(res.Inliers)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.Center.X, test.ShouldAlmostEqual, -20.0, 0.01)
	test.That(t, e.Center.Y, test.ShouldAlmostEqual, 15.0, 0.01)
	test.That(t, e.SemiMajor, test.ShouldAlmostEqual, 5.0, 0.01)
	test.That(t, e.SemiMinor, test.ShouldAlmostEqual, 3.0, 0.01)
	test.That(t, e.Phi, test.ShouldAlmostEqual, 0.5, 0.01)
}

func TestEarlyExit(t *testing.T) {
	truth := conic.Circle{Center: r2.Point{X: 1, Y: 1}, Radius: 2}
	points := conic.GeneratePoints(truth.Ellipse(), 20, 0, 2*math.Pi*19/20)
	rng := &countingShuffler{Rand: rand.New(rand.NewSource(3))}

	res, err := Circle(points, 0.001, rng)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Support, test.ShouldEqual, 20)
	test.That(t, res.Trials, test.ShouldEqual, 1)
	test.That(t, rng.calls, test.ShouldEqual, 1)
	test.That(t, res.Inliers, test.ShouldResemble, points)
}

func TestAllTrialsRun(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	truth := conic.Circle{Center: r2.Point{X: 0, Y: 0}, Radius: 2}
	points := append(
		conic.GeneratePoints(truth.Ellipse(), 12, 0, 2*math.Pi*11/12),
		scatter(truth, truth.Center, 5, 0.5, 3, rng)...,
	)
	counter := &countingShuffler{Rand: rng}

	res, err := Circle(points, 0.001, counter)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Support, test.ShouldEqual, 12)
	test.That(t, res.Trials, test.ShouldEqual, TrialsPerPoint*len(points))
	test.That(t, counter.calls, test.ShouldEqual, TrialsPerPoint*len(points))
}

func TestTiesKeepFirst(t *testing.T) {
	a := conic.Circle{Center: r2.Point{X: 0, Y: 0}, Radius: 1}
	b := conic.Circle{Center: r2.Point{X: 10, Y: 0}, Radius: 1}
	points := append(
		conic.GeneratePoints(a.Ellipse(), 5, 0, 2*math.Pi*4/5),
		conic.GeneratePoints(b.Ellipse(), 5, 0, 2*math.Pi*4/5)...,
	)
	// first trial samples circle a, every later trial samples circle b
	rng := &scriptedShuffler{swaps: [][][2]int{nil, {{0, 5}, {1, 6}, {2, 7}}}}

	res, err := Circle(points, 0.01, rng)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Support, test.ShouldEqual, 5)
	test.That(t, res.Model.Position().X, test.ShouldAlmostEqual, 0.0)
	test.That(t, res.Inliers, test.ShouldResemble, points[:5])
	test.That(t, rng.calls, test.ShouldEqual, TrialsPerPoint*len(points))
}

func TestDeterministicWithSeed(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	truth := conic.Circle{Center: r2.Point{X: 3, Y: 3}, Radius: 1}
	points := append(
		noisy(conic.GeneratePoints(truth.Ellipse(), 30, 0, math.Pi), 0.01, rng),
		scatter(truth, truth.Center, 3, 0.2, 5, rng)...,
	)

	first, err := Circle(points, 0.02, rand.New(rand.NewSource(17)))
	test.That(t, err, test.ShouldBeNil)
	second, err := Circle(points, 0.02, rand.New(rand.NewSource(17)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second, test.ShouldResemble, first)

	third, err := Circle(points, 0.02, nil)
	test.That(t, err, test.ShouldBeNil)
	fourth, err := Circle(points, 0.02, rand.New(rand.NewSource(DefaultSeed)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, third, test.ShouldResemble, fourth)
}

func TestErrors(t *testing.T) {
	_, err := Circle([]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}, 0.1, nil)
	test.That(t, errors.Is(err, conic.ErrInsufficientPoints), test.ShouldBeTrue)

	_, err = Ellipse([]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}, 0.1, nil)
	test.That(t, errors.Is(err, conic.ErrInsufficientPoints), test.ShouldBeTrue)

	same := []r2.Point{{X: 2, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 2}}
	_, err = Circle(same, 0.1, nil)
	test.That(t, errors.Is(err, ErrNoConsensus), test.ShouldBeTrue)
}
