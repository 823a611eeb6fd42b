// Package dsp implements the generalized cross-correlation (GCC) delay
// estimator used to measure time differences of arrival between receivers.
// Correlation is computed in the frequency domain with optional PHAT
// (phase transform) weighting.
package dsp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tphakala/birdnet-array/internal/errors"
)

// CCFilter selects the cross-spectrum weighting applied before the inverse
// transform.
type CCFilter string

const (
	// FilterPHAT whitens the cross-spectrum so only phase information
	// remains. Sharp peaks, robust against reverberation.
	FilterPHAT CCFilter = "phat"
	// FilterCC applies no weighting (plain cross-correlation).
	FilterCC CCFilter = "cc"
)

// ErrUnknownFilter indicates an unrecognized cross-correlation filter name.
var ErrUnknownFilter = errors.NewStd("unknown cross-correlation filter")

// phatEpsilon stabilizes PHAT whitening on near-empty frequency bins.
const phatEpsilon = 1e-10

// ParseCCFilter converts a string into a CCFilter.
func ParseCCFilter(s string) (CCFilter, error) {
	switch CCFilter(s) {
	case FilterPHAT:
		return FilterPHAT, nil
	case FilterCC:
		return FilterCC, nil
	default:
		return "", errors.Newf("%w: %q (use %q or %q)", ErrUnknownFilter, s, FilterPHAT, FilterCC).
			Category(errors.CategoryValidation).
			Context("filter", s).
			Build()
	}
}

// Lags returns the lag, in samples, of each index of the full
// cross-correlation of sequences with lengths nx and ny. Lags run from
// -(ny-1) through +(nx-1), matching the layout returned by GCC.
func Lags(nx, ny int) []int {
	if nx <= 0 || ny <= 0 {
		return nil
	}
	lags := make([]int, nx+ny-1)
	for i := range lags {
		lags[i] = i - (ny - 1)
	}
	return lags
}

// GCC computes the full linear cross-correlation of x against y in the
// frequency domain, applying the selected weighting to the cross-spectrum.
// The result has length len(x)+len(y)-1 with lags ordered as returned by
// Lags(len(x), len(y)); the peak sits at a positive lag when x lags y.
func GCC(x, y []float64, filter CCFilter) ([]float64, error) {
	if len(x) == 0 || len(y) == 0 {
		return nil, errors.Newf("cross-correlation requires non-empty inputs (len(x)=%d, len(y)=%d)", len(x), len(y)).
			Category(errors.CategoryValidation).
			Build()
	}
	if filter != FilterPHAT && filter != FilterCC {
		return nil, errors.Newf("%w: %q", ErrUnknownFilter, string(filter)).
			Category(errors.CategoryValidation).
			Build()
	}

	// Zero-pad to the next power of two at or above the full correlation
	// length so the circular transform cannot wrap linear lags onto each
	// other.
	need := len(x) + len(y) - 1
	n := 1
	for n < need {
		n <<= 1
	}

	xPad := make([]float64, n)
	copy(xPad, x)
	yPad := make([]float64, n)
	copy(yPad, y)

	fft := fourier.NewFFT(n)
	xc := fft.Coefficients(nil, xPad)
	yc := fft.Coefficients(nil, yPad)

	// Cross-spectrum Gxy[k] = X[k] * conj(Y[k]); Hermitian symmetry is
	// preserved by the PHAT weighting, so the half-spectrum transform
	// remains valid.
	spec := make([]complex128, len(xc))
	for k := range xc {
		g := xc[k] * cmplx.Conj(yc[k])
		if filter == FilterPHAT {
			g /= complex(cmplx.Abs(g)+phatEpsilon, 0)
		}
		spec[k] = g
	}

	cc := fft.Sequence(nil, spec)
	// gonum's inverse is unnormalized.
	scale := 1 / float64(n)
	for i := range cc {
		cc[i] *= scale
	}

	// Reorder the circular result into the linear full-correlation layout:
	// negative lags live at the top of the circular buffer.
	out := make([]float64, 0, need)
	out = append(out, cc[n-(len(y)-1):]...)
	out = append(out, cc[:len(x)]...)
	return out, nil
}
