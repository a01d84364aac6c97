package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"github.com/ulyxes/axisfit/logging"
	"github.com/ulyxes/axisfit/pointcloud"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"axisfit", "fit"}, args...))
	return out.String(), err
}

// writeRing writes n points of a circle around (1, 1) with radius 2 at z = 0
// with a leading id column.
func writeRing(t *testing.T, n int) string {
	t.Helper()
	var sb strings.Builder
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		fmt.Fprintf(&sb, "%d;%.9f;%.9f;0.0\n", i+1, 1+2*math.Cos(a), 1+2*math.Sin(a))
	}
	fn := filepath.Join(t.TempDir(), "ring.csv")
	test.That(t, os.WriteFile(fn, []byte(sb.String()), 0o600), test.ShouldBeNil)
	return fn
}

func linesWithPrefix(out, prefix string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, prefix) {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestFitSynthetic(t *testing.T) {
	out, err := runApp(t, "-e", "0", "-e", "1", "-e", "2", "test")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, linesWithPrefix(out, "orig: "), test.ShouldResemble, []string{"orig: 4.000 -3.500 7.000"})
	circles := linesWithPrefix(out, "Circle: ")
	test.That(t, circles, test.ShouldHaveLength, 3)
	test.That(t, circles[1], test.ShouldContainSubstring, ",1.000,")
	test.That(t, out, test.ShouldContainSubstring, "Axis line:\n x = ")
	test.That(t, linesWithPrefix(out, "Tilt angle: "), test.ShouldHaveLength, 1)
	test.That(t, linesWithPrefix(out, "RMS: "), test.ShouldHaveLength, 1)
	test.That(t, out, test.ShouldNotContainSubstring, "Filtered points")

	again, err := runApp(t, "-e", "0", "-e", "1", "-e", "2", "test")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldEqual, out)
}

func TestFitJSON(t *testing.T) {
	out, err := runApp(t, "--json", "-e", "0", "-e", "1", "-e", "2", "test")
	test.That(t, err, test.ShouldBeNil)

	var rep jsonReport
	test.That(t, json.Unmarshal([]byte(out), &rep), test.ShouldBeNil)
	test.That(t, rep.Sections, test.ShouldHaveLength, 3)
	for i, s := range rep.Sections {
		test.That(t, s.Elevation, test.ShouldEqual, float64(i))
		test.That(t, s.Error, test.ShouldBeEmpty)
		test.That(t, s.Total, test.ShouldEqual, 10)
		test.That(t, s.Inliers, test.ShouldBeGreaterThanOrEqualTo, 3)
		test.That(t, s.Shape, test.ShouldNotBeNil)
		test.That(t, s.Shape.Kind, test.ShouldEqual, "circle")
		test.That(t, s.Shape.East, test.ShouldAlmostEqual, 4.0, 0.05)
		test.That(t, s.Shape.North, test.ShouldAlmostEqual, -3.5, 0.05)
		test.That(t, s.Shape.Radius, test.ShouldAlmostEqual, 7.0, 0.05)
	}
	test.That(t, rep.Axis, test.ShouldNotBeNil)
	test.That(t, rep.Axis.Direction[2], test.ShouldBeGreaterThan, 0.99)
	test.That(t, rep.Axis.Residuals, test.ShouldHaveLength, 3)

	out, err = runApp(t, "--json", "-e", "0", "-e", "1", "-e", "2", "test")
	test.That(t, err, test.ShouldBeNil)
	var again jsonReport
	test.That(t, json.Unmarshal([]byte(out), &again), test.ShouldBeNil)
	test.That(t, cmp.Diff(rep, again), test.ShouldBeEmpty)

	out, err = runApp(t, "--json", "--seed", "7", "-e", "0", "-e", "1", "-e", "2", "test")
	test.That(t, err, test.ShouldBeNil)
	var reseeded jsonReport
	test.That(t, json.Unmarshal([]byte(out), &reseeded), test.ShouldBeNil)
	test.That(t, cmp.Diff(rep, reseeded), test.ShouldNotBeEmpty)
}

func TestFitLogFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "axisfit.log")
	_, err := runApp(t, "--debug", "--log-file", fn, "-e", "0", "-e", "1", "test")
	test.That(t, err, test.ShouldBeNil)

	content, err := os.ReadFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(content), test.ShouldContainSubstring, `"msg":"section fitted"`)
	test.That(t, string(content), test.ShouldContainSubstring, `"logger":"axisfit.section"`)
}

func TestFitFile(t *testing.T) {
	fn := writeRing(t, 12)

	out, err := runApp(t, "-i", "-e", "0", "-e", "5", fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, linesWithPrefix(out, "Circle: "), test.ShouldResemble,
		[]string{"Circle: 1.000,1.000,0.000,2.000,0.000,12/12"})
	test.That(t, linesWithPrefix(out, "Failed at elevation "), test.ShouldResemble,
		[]string{"Failed at elevation 5"})
	test.That(t, out, test.ShouldNotContainSubstring, "Axis line:")
	test.That(t, out, test.ShouldNotContainSubstring, "orig: ")

	out, err = runApp(t, "-i", "-p", fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "Filtered points")
	test.That(t, strings.ToUpper(out), test.ShouldContainSubstring, "DISTANCE")
	test.That(t, out, test.ShouldContainSubstring, "3.000")

	// without -i the id is taken for x and the section at 0 is almost empty
	out, err = runApp(t, fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, linesWithPrefix(out, "Failed at elevation "), test.ShouldResemble,
		[]string{"Failed at elevation 0"})
}

func TestFitInliersOut(t *testing.T) {
	fn := writeRing(t, 12)
	inliers := filepath.Join(t.TempDir(), "inliers.pcd")

	_, err := runApp(t, "-i", "--inliers-out", inliers, fn)
	test.That(t, err, test.ShouldBeNil)

	cloud, err := pointcloud.NewFromFile(inliers, pointcloud.CSVOptions{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 12)
	test.That(t, cloud.MetaData().MaxZ, test.ShouldEqual, 0.0)
}

func TestFitConfigFile(t *testing.T) {
	fn := writeRing(t, 12)
	cfgFile := filepath.Join(t.TempDir(), "axisfit.json")
	cfg := `{"elevations": [0, 5], "with_id": true, "ransac_tolerance": 0.01}`
	test.That(t, os.WriteFile(cfgFile, []byte(cfg), 0o600), test.ShouldBeNil)

	out, err := runApp(t, "-c", cfgFile, fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, linesWithPrefix(out, "Circle: "), test.ShouldHaveLength, 1)
	test.That(t, linesWithPrefix(out, "Failed at elevation "), test.ShouldHaveLength, 1)

	// flags take precedence
	out, err = runApp(t, "-c", cfgFile, "-e", "0", fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, linesWithPrefix(out, "Circle: "), test.ShouldHaveLength, 1)
	test.That(t, linesWithPrefix(out, "Failed at elevation "), test.ShouldBeEmpty)
}

func TestFitEllipseSynthetic(t *testing.T) {
	out, err := runApp(t, "--ellipse", "test")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldNotContainSubstring, "Circle: ")
	test.That(t, out, test.ShouldNotContainSubstring, "Axis line:")
}

func TestFitErrors(t *testing.T) {
	_, err := runApp(t)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected one input")

	_, err = runApp(t, "a", "b")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = runApp(t, "-t", "-1", "test")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "ransac_tolerance")

	_, err = runApp(t, "-s", "ab", "test")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = runApp(t, filepath.Join(t.TempDir(), "missing.csv"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = runApp(t, "-c", filepath.Join(t.TempDir(), "missing.json"), "test")
	test.That(t, err, test.ShouldNotBeNil)
}
