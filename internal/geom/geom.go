// Package geom provides the geometric primitives used by the localization
// pipeline: receiver positions, distances, travel times, the Lorentz inner
// product used by the pseudorange solver, and TDOA residual computation.
package geom

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/birdnet-array/internal/errors"
)

// DefaultSpeedOfSound is the speed of sound in air in m/s at roughly 20 C.
// It is a documented default parameter value; every function in this package
// takes the speed of sound explicitly.
const DefaultSpeedOfSound = 343.0

// ErrDimension indicates a vector with unsupported or inconsistent dimensionality.
var ErrDimension = errors.NewStd("unsupported vector dimensionality")

// Point is a receiver or source position in meters, either [x, y] or [x, y, z].
// All positions within one localization attempt must share dimensionality.
type Point []float64

// Clone returns an independent copy of the point.
func (p Point) Clone() Point {
	c := make(Point, len(p))
	copy(c, p)
	return c
}

// SpeedOfSound returns the speed of sound in air in m/s for the given
// temperature in degrees Celsius.
func SpeedOfSound(tempC float64) float64 {
	return 331.3 * math.Sqrt(1+tempC/273.15)
}

// Distance returns the Euclidean distance between two points of equal
// dimensionality.
func Distance(a, b Point) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Newf("point dimensions differ: %d vs %d", len(a), len(b)).
			Category(errors.CategoryGeometry).
			Context("dim_a", len(a)).
			Context("dim_b", len(b)).
			Build()
	}
	return floats.Distance(a, b, 2), nil
}

// TravelTime returns the time in seconds for sound to travel from source to
// receiver at the given speed of sound in m/s.
func TravelTime(source, receiver Point, speedOfSound float64) (float64, error) {
	d, err := Distance(source, receiver)
	if err != nil {
		return 0, err
	}
	return d / speedOfSound, nil
}

// LorentzInner computes the Lorentz inner product of two vectors.
//
// For 3-vectors: u0*v0 + u1*v1 - u2*v2.
// For 4-vectors: u0*v0 + u1*v1 + u2*v2 - u3*v3.
// Any other length returns ErrDimension.
func LorentzInner(u, v []float64) (float64, error) {
	if len(u) != len(v) {
		return 0, errors.Newf("lorentz inner product requires equal lengths: %d vs %d", len(u), len(v)).
			Category(errors.CategoryGeometry).
			Build()
	}
	switch len(u) {
	case 3:
		return u[0]*v[0] + u[1]*v[1] - u[2]*v[2], nil
	case 4:
		return u[0]*v[0] + u[1]*v[1] + u[2]*v[2] - u[3]*v[3], nil
	default:
		return 0, errors.Newf("vector length should be 3 or 4, was %d: %w", len(u), ErrDimension).
			Category(errors.CategoryGeometry).
			Build()
	}
}

// LorentzNorm computes the Lorentz inner product of a vector with itself.
func LorentzNorm(u []float64) (float64, error) {
	return LorentzInner(u, u)
}

// TDOAResiduals computes the residual distance, in meters, between the
// observed time differences of arrival and the delays expected if the sound
// originated at the estimated position.
//
// The expected relative delay for receiver i is the travel-time difference
// between receiver i and the reference receiver (index 0). The residual is
// (expected - observed) scaled by the speed of sound. With tdoas[0] == 0 the
// first residual is zero by construction.
func TDOAResiduals(positions []Point, tdoas []float64, estimate Point, speedOfSound float64) ([]float64, error) {
	if len(positions) != len(tdoas) {
		return nil, errors.Newf("positions and tdoas length mismatch: %d vs %d", len(positions), len(tdoas)).
			Category(errors.CategoryValidation).
			Context("positions", len(positions)).
			Context("tdoas", len(tdoas)).
			Build()
	}
	if len(positions) == 0 {
		return nil, errors.Newf("no receiver positions").
			Category(errors.CategoryValidation).
			Build()
	}

	travelTimes := make([]float64, len(positions))
	for i, pos := range positions {
		tt, err := TravelTime(estimate, pos, speedOfSound)
		if err != nil {
			return nil, err
		}
		travelTimes[i] = tt
	}

	residuals := make([]float64, len(positions))
	for i := range travelTimes {
		expected := travelTimes[i] - travelTimes[0]
		residuals[i] = (expected - tdoas[i]) * speedOfSound
	}
	return residuals, nil
}

// ResidualRMS returns the root mean square of the residuals. An empty slice
// yields zero.
func ResidualRMS(residuals []float64) float64 {
	if len(residuals) == 0 {
		return 0
	}
	sumSq := floats.Dot(residuals, residuals)
	return math.Sqrt(sumSq / float64(len(residuals)))
}

// Centroid returns the arithmetic mean of the points. All points must share
// dimensionality.
func Centroid(points []Point) (Point, error) {
	if len(points) == 0 {
		return nil, errors.Newf("no points").Category(errors.CategoryValidation).Build()
	}
	dim := len(points[0])
	c := make(Point, dim)
	for _, p := range points {
		if len(p) != dim {
			return nil, errors.Newf("mixed dimensionality: %d vs %d: %w", len(p), dim, ErrDimension).
				Category(errors.CategoryGeometry).
				Build()
		}
		floats.Add(c, p)
	}
	floats.Scale(1/float64(len(points)), c)
	return c, nil
}
