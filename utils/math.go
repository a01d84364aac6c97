// Package utils contains small numeric helpers shared by the fitting packages.
package utils

import (
	"math"

	"github.com/montanaflynn/stats"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// RadToGon converts radians to gon (400 gon in a full circle).
func RadToGon(radians float64) float64 {
	return radians * 200 / math.Pi
}

// GonToRad converts gon to radians.
func GonToRad(gon float64) float64 {
	return gon * math.Pi / 200
}

// ModAngGon wraps an angle in gon into [0, 400).
func ModAngGon(ang float64) float64 {
	return math.Mod(math.Mod(ang, 400)+400, 400)
}

// Square returns n*n. math.Pow(x, 2) is slow, this is faster.
func Square(n float64) float64 {
	return n * n
}

// Sign returns 1, -1 or 0 depending on the sign of x.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// SignedCubeRoot returns the real cube root of x keeping its sign.
func SignedCubeRoot(x float64) float64 {
	return Sign(x) * math.Pow(math.Abs(x), 1.0/3.0)
}

// RootMeanSquare returns sqrt(mean(v²)). An empty slice yields NaN.
func RootMeanSquare(values []float64) float64 {
	squares := make([]float64, len(values))
	for i, v := range values {
		squares[i] = v * v
	}
	mean, err := stats.Mean(squares)
	if err != nil {
		return math.NaN()
	}
	return math.Sqrt(mean)
}

// AllFinite reports whether none of the values is NaN or infinite.
func AllFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
