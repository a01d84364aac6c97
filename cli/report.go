package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ulyxes/axisfit/axis"
	"github.com/ulyxes/axisfit/conic"
	"github.com/ulyxes/axisfit/logging"
	"github.com/ulyxes/axisfit/section"
	"github.com/ulyxes/axisfit/utils"
)

// report is the outcome of a fit run.
type report struct {
	Synthetic bool
	Sections  []section.Result
	Centers   []r3.Vector
	Axis      *axis.Result
}

func newReport(results []section.Result, logger logging.Logger) *report {
	return &report{
		Sections: results,
		Centers:  section.Centers(results),
		Axis:     reconstructAxis(results, logger),
	}
}

func (rep *report) writeText(w io.Writer, printCoo bool) {
	if rep.Synthetic {
		writeSyntheticShape(w, rep.Sections)
	}
	for _, r := range rep.Sections {
		if !r.OK() {
			printf(w, "Failed at elevation %v", r.Elevation)
			continue
		}
		switch s := r.Shape.(type) {
		case conic.Ellipse:
			printf(w, "Ellipse: %.3f,%.3f,%.3f,%.3f,%.3f,%.4f,%.3f,%d/%d",
				s.Center.X, s.Center.Y, r.Elevation, s.SemiMajor, s.SemiMinor, utils.RadToDeg(s.Phi),
				s.RMS, r.InlierCount, r.Total)
		default:
			c := r.Shape.Ellipse()
			printf(w, "Circle: %.3f,%.3f,%.3f,%.3f,%.3f,%d/%d",
				c.Center.X, c.Center.Y, r.Elevation, c.SemiMajor, r.Shape.RootMeanSquare(), r.InlierCount, r.Total)
		}
		if printCoo {
			printf(w, "Filtered points")
			printf(w, "%s", inliersTable(r))
		}
	}

	if rep.Axis == nil {
		return
	}
	printf(w, "Axis line:\n%v\n", rep.Axis.Line)
	printf(w, "Tilt angle: %.4f gon, Tilt direction: %.4f gon", rep.Axis.Tilt, rep.Axis.Azimuth)
	printf(w, "RMS: %.3f", rep.Axis.RMS)
	if printCoo {
		printf(w, "%s", residualsTable(rep.Centers, rep.Axis.Residuals))
	}
}

func writeSyntheticShape(w io.Writer, results []section.Result) {
	ellipse := len(results) > 0
	for _, r := range results {
		if _, ok := r.Shape.(conic.Ellipse); !ok {
			ellipse = false
		}
	}
	s := section.SyntheticShape
	if ellipse {
		printf(w, "orig: %.3f %.3f %.3f %.3f %.4f", s.Center.X, s.Center.Y, s.SemiMajor, s.SemiMinor, utils.RadToDeg(s.Phi))
		return
	}
	printf(w, "orig: %.3f %.3f %.3f", s.Center.X, s.Center.Y, s.SemiMajor)
}

func inliersTable(r section.Result) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"East", "North", "Distance"})
	for i, d := range r.Shape.Distances(r.Inliers) {
		p := r.Inliers[i]
		t.AppendRow(table.Row{
			fmt.Sprintf("%.3f", p.X),
			fmt.Sprintf("%.3f", p.Y),
			fmt.Sprintf("%.3f", d),
		})
	}
	return t.Render()
}

func residualsTable(centers []r3.Vector, residuals []float64) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"East", "North", "Elevation", "Distance"})
	for i, c := range centers {
		t.AppendRow(table.Row{
			fmt.Sprintf("%.3f", c.X),
			fmt.Sprintf("%.3f", c.Y),
			fmt.Sprintf("%.3f", c.Z),
			fmt.Sprintf("%.3f", residuals[i]),
		})
	}
	return t.Render()
}

type jsonShape struct {
	Kind      string  `json:"kind"`
	East      float64 `json:"east"`
	North     float64 `json:"north"`
	Radius    float64 `json:"radius,omitempty"`
	SemiMajor float64 `json:"semi_major,omitempty"`
	SemiMinor float64 `json:"semi_minor,omitempty"`
	PhiDeg    float64 `json:"phi_deg,omitempty"`
	RMS       float64 `json:"rms"`
}

type jsonSection struct {
	Elevation float64    `json:"elevation"`
	Shape     *jsonShape `json:"shape,omitempty"`
	Inliers   int        `json:"inliers"`
	Total     int        `json:"total"`
	Error     string     `json:"error,omitempty"`
}

type jsonAxis struct {
	Origin     [3]float64 `json:"origin"`
	Direction  [3]float64 `json:"direction"`
	TiltGon    float64    `json:"tilt_gon"`
	AzimuthGon float64    `json:"azimuth_gon"`
	RMS        float64    `json:"rms"`
	Residuals  []float64  `json:"residuals"`
}

type jsonReport struct {
	Sections []jsonSection `json:"sections"`
	Axis     *jsonAxis     `json:"axis,omitempty"`
}

func (rep *report) writeJSON(w io.Writer) error {
	out := jsonReport{Sections: make([]jsonSection, 0, len(rep.Sections))}
	for _, r := range rep.Sections {
		js := jsonSection{Elevation: r.Elevation, Inliers: r.InlierCount, Total: r.Total}
		if !r.OK() {
			js.Error = r.Err.Error()
			out.Sections = append(out.Sections, js)
			continue
		}
		shape := &jsonShape{RMS: r.Shape.RootMeanSquare()}
		switch s := r.Shape.(type) {
		case conic.Ellipse:
			shape.Kind = "ellipse"
			shape.East, shape.North = s.Center.X, s.Center.Y
			shape.SemiMajor, shape.SemiMinor = s.SemiMajor, s.SemiMinor
			shape.PhiDeg = utils.RadToDeg(s.Phi)
		default:
			e := r.Shape.Ellipse()
			shape.Kind = "circle"
			shape.East, shape.North = e.Center.X, e.Center.Y
			shape.Radius = e.SemiMajor
		}
		js.Shape = shape
		out.Sections = append(out.Sections, js)
	}
	if a := rep.Axis; a != nil {
		out.Axis = &jsonAxis{
			Origin:     [3]float64{a.Line.Origin.X, a.Line.Origin.Y, a.Line.Origin.Z},
			Direction:  [3]float64{a.Line.Direction.X, a.Line.Direction.Y, a.Line.Direction.Z},
			TiltGon:    a.Tilt,
			AzimuthGon: a.Azimuth,
			RMS:        a.RMS,
			Residuals:  a.Residuals,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// printf prints a message with a trailing newline.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}
