// Package section cuts horizontal sections out of a point cloud and fits a
// circle or an ellipse to each of them, robust to outliers.
package section

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ulyxes/axisfit/config"
	"github.com/ulyxes/axisfit/conic"
	"github.com/ulyxes/axisfit/logging"
	"github.com/ulyxes/axisfit/pointcloud"
	"github.com/ulyxes/axisfit/ransac"
	"github.com/ulyxes/axisfit/utils"
)

// ErrInsufficientPoints is returned for sections too small to fit.
var ErrInsufficientPoints = conic.ErrInsufficientPoints

// A Section is the part of a cloud within a horizontal band.
type Section struct {
	Elevation         float64
	VerticalTolerance float64
	Points            []r3.Vector
}

// Slice selects the points with |z - elevation| < vtol, keeping cloud order.
func Slice(cloud pointcloud.PointCloud, elevation, vtol float64) Section {
	s := Section{Elevation: elevation, VerticalTolerance: vtol}
	cloud.Iterate(0, 0, func(p r3.Vector, _ pointcloud.Data) bool {
		if math.Abs(p.Z-elevation) < vtol {
			s.Points = append(s.Points, p)
		}
		return true
	})
	return s
}

// SliceAll cuts the sections at all elevations in one parallel pass over the
// cloud. A point within vtol of several elevations belongs to each of them.
// Every section keeps cloud order.
func SliceAll(ctx context.Context, cloud pointcloud.PointCloud, elevations []float64, vtol float64) ([]Section, error) {
	// per group, per elevation
	var buckets [][][]r3.Vector
	err := utils.GroupWorkParallel(
		ctx,
		cloud.Size(),
		func(numGroups int) {
			buckets = make([][][]r3.Vector, numGroups)
		},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			mine := make([][]r3.Vector, len(elevations))
			cloud.Iterate(len(buckets), groupNum, func(p r3.Vector, _ pointcloud.Data) bool {
				for i, h := range elevations {
					if math.Abs(p.Z-h) < vtol {
						mine[i] = append(mine[i], p)
					}
				}
				return true
			})
			buckets[groupNum] = mine
			return nil, nil
		},
	)
	if err != nil {
		return nil, err
	}

	sections := make([]Section, len(elevations))
	for i, h := range elevations {
		sections[i] = Section{Elevation: h, VerticalTolerance: vtol}
		for _, group := range buckets {
			sections[i].Points = append(sections[i].Points, group[i]...)
		}
	}
	return sections, nil
}

// Planar projects the section points to the horizontal plane.
func (s Section) Planar() []r2.Point {
	return lo.Map(s.Points, func(p r3.Vector, _ int) r2.Point {
		return r2.Point{X: p.X, Y: p.Y}
	})
}

// Result is the outcome of fitting one section.
type Result struct {
	Elevation float64
	// Shape is the final fit on the inliers, nil when Err is set.
	Shape conic.Shape
	// Inliers are the planar points supporting Shape.
	Inliers     []r2.Point
	InlierCount int
	Total       int
	Err         error
}

// OK reports whether the section was fitted.
func (r Result) OK() bool {
	return r.Err == nil && r.Shape != nil
}

// Center returns the fitted center at the section elevation.
func (r Result) Center() r3.Vector {
	c := r.Shape.Position()
	return r3.Vector{X: c.X, Y: c.Y, Z: r.Elevation}
}

func (r Result) String() string {
	if !r.OK() {
		return fmt.Sprintf("section at %.3f failed: %v", r.Elevation, r.Err)
	}
	return fmt.Sprintf("section at %.3f: %v, %d/%d", r.Elevation, r.Shape, r.InlierCount, r.Total)
}

// Centers returns the centers of the fitted sections ordered by elevation.
func Centers(results []Result) []r3.Vector {
	ok := lo.Filter(results, func(r Result, _ int) bool {
		return r.OK()
	})
	sort.SliceStable(ok, func(i, j int) bool {
		return ok[i].Elevation < ok[j].Elevation
	})
	return lo.Map(ok, func(r Result, _ int) r3.Vector {
		return r.Center()
	})
}

// A Processor fits the sections a Config asks for.
type Processor struct {
	Config config.Config
	Rand   ransac.Shuffler
	Logger logging.Logger
}

// NewProcessor returns a processor sampling from a source seeded with cfg.Seed.
func NewProcessor(cfg config.Config, logger logging.Logger) *Processor {
	if logger == nil {
		logger = logging.NewBlankLogger("section")
	}
	return &Processor{
		Config: cfg,
		Rand:   rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec
		Logger: logger,
	}
}

// Process fits a section at every configured elevation. A failing section
// is logged and reported in its Result, the others are still processed.
// Sections are fitted in elevation order of the config, so results only
// depend on the seed.
func (p *Processor) Process(ctx context.Context, cloud pointcloud.PointCloud) ([]Result, error) {
	sections, err := SliceAll(ctx, cloud, p.Config.Elevations, p.Config.VerticalTolerance)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(sections))
	for _, s := range sections {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, p.ProcessSection(s))
	}
	return results, nil
}

// ProcessSection runs RANSAC on the section and refits the shape on the
// consensus set.
func (p *Processor) ProcessSection(s Section) Result {
	logger := p.logger()
	res := Result{Elevation: s.Elevation, Total: len(s.Points)}

	minPoints := conic.MinCirclePoints
	if p.Config.FitEllipse {
		minPoints = conic.MinEllipsePoints
	}
	if res.Total <= minPoints {
		res.Err = errors.Wrapf(ErrInsufficientPoints, "%d points at elevation %v", res.Total, s.Elevation)
		logger.Warnw("section skipped", "elevation", s.Elevation, "points", res.Total)
		return res
	}

	points := s.Planar()
	var (
		consensus ransac.Result
		err       error
	)
	if p.Config.FitEllipse {
		consensus, err = ransac.Ellipse(points, p.Config.RansacTolerance, p.Rand)
	} else {
		consensus, err = ransac.Circle(points, p.Config.RansacTolerance, p.Rand)
	}
	if err != nil {
		res.Err = errors.Wrapf(err, "elevation %v", s.Elevation)
		logger.Warnw("no consensus", "elevation", s.Elevation, "error", err)
		return res
	}
	logger.Debugw("consensus",
		"elevation", s.Elevation, "support", consensus.Support, "total", res.Total, "trials", consensus.Trials)

	shape, err := Fit(consensus.Inliers, p.Config.FitEllipse)
	if err != nil {
		res.Err = errors.Wrapf(err, "refit at elevation %v", s.Elevation)
		logger.Warnw("refit failed", "elevation", s.Elevation, "inliers", consensus.Support, "error", err)
		return res
	}

	res.Shape = shape
	res.Inliers = consensus.Inliers
	res.InlierCount = consensus.Support
	logger.Infow("section fitted", "elevation", s.Elevation, "shape", shape.String(),
		"inliers", res.InlierCount, "total", res.Total)
	return res
}

// Fit fits a circle, or an ellipse if ellipse is set, to all points.
func Fit(points []r2.Point, ellipse bool) (conic.Shape, error) {
	if ellipse {
		e, err := conic.FitEllipse(points)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	c, err := conic.FitCircle(points)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Processor) logger() logging.Logger {
	if p.Logger == nil {
		return logging.NewBlankLogger("section")
	}
	return p.Logger
}
