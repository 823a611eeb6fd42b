// Package localization turns simultaneous detections from a synchronized
// receiver array into source position estimates. It groups detections into
// candidate events, measures pairwise arrival-time differences with the
// dsp package, and solves each event with a closed-form multilateration
// algorithm, keeping or rejecting the result by residual error.
package localization

import (
	"log/slog"

	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/geom"
	"github.com/tphakala/birdnet-array/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("localization")
	if logger == nil {
		logger = slog.Default().With("service", "localization")
	}
}

// Algorithm identifies a multilateration solver.
type Algorithm string

const (
	// AlgorithmGillette is the Gillette-Silverman linear closed-form
	// solver. Requires delays relative to a reference receiver (one tdoa
	// of zero).
	AlgorithmGillette Algorithm = "gillette"
	// AlgorithmSoundFinder is the Sound Finder solver, which treats
	// delays as GPS-style pseudoranges.
	AlgorithmSoundFinder Algorithm = "soundfinder"
)

// ErrUnsupportedAlgorithm indicates an algorithm name outside the
// supported set.
var ErrUnsupportedAlgorithm = errors.NewStd("unsupported localization algorithm")

// ParseAlgorithm converts a string into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmGillette:
		return AlgorithmGillette, nil
	case AlgorithmSoundFinder:
		return AlgorithmSoundFinder, nil
	default:
		return "", errors.Newf("%w: %q (use %q or %q)", ErrUnsupportedAlgorithm, s, AlgorithmGillette, AlgorithmSoundFinder).
			Category(errors.CategoryValidation).
			Context("algorithm", s).
			Build()
	}
}

// Localize estimates the source position for receivers at known positions
// with measured arrival-time differences, using the selected algorithm
// with its default options. tdoas are seconds relative to a shared origin;
// for gillette one entry must be zero.
func Localize(positions []geom.Point, tdoas []float64, algorithm Algorithm, speedOfSound float64) (geom.Point, error) {
	switch algorithm {
	case AlgorithmGillette:
		return GilletteLocalize(positions, tdoas, speedOfSound)
	case AlgorithmSoundFinder:
		return SoundFinderLocalize(positions, tdoas, speedOfSound)
	default:
		return nil, errors.Newf("%w: %q", ErrUnsupportedAlgorithm, string(algorithm)).
			Category(errors.CategoryValidation).
			Context("algorithm", string(algorithm)).
			Build()
	}
}

// solverGeometry validates the shared solver preconditions and returns the
// spatial dimensionality.
func solverGeometry(positions []geom.Point, tdoas []float64) (int, error) {
	if len(positions) == 0 {
		return 0, errors.Newf("localization requires at least one receiver position").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(positions) != len(tdoas) {
		return 0, errors.Newf("got %d receiver positions but %d tdoas", len(positions), len(tdoas)).
			Category(errors.CategoryValidation).
			Build()
	}
	dim := len(positions[0])
	if dim != 2 && dim != 3 {
		return 0, errors.Newf("localization works in 2 or 3 dimensions, positions have %d", dim).
			Category(errors.CategoryValidation).
			Context("dimensions", dim).
			Build()
	}
	for i, p := range positions {
		if len(p) != dim {
			return 0, errors.Newf("receiver %d has %d dimensions, expected %d", i, len(p), dim).
				Category(errors.CategoryValidation).
				Context("receiver_index", i).
				Build()
		}
	}
	return dim, nil
}
