package localization

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/birdnet-array/internal/errors"
	"github.com/tphakala/birdnet-array/internal/geom"
)

// ErrReferenceRequired indicates that no tdoa entry is zero, so the delays
// cannot be relative to a reference receiver.
var ErrReferenceRequired = errors.NewStd("arrival times must be relative to a reference receiver: one tdoa must be zero")

// referenceTolerance is how far from zero the reference tdoa may drift and
// still count as the reference.
const referenceTolerance = 1e-8

// svdRankEpsilon is the float64 machine epsilon, used for the rank cutoff
// eps * max(rows, cols) * largestSingularValue.
const svdRankEpsilon = 2.220446049250313e-16

// GilletteLocalize estimates the source position with the linear
// closed-form algorithm of Gillette and Silverman (IEEE SPL 2008). tdoas
// are seconds relative to the reference receiver, whose own entry must be
// zero (within tolerance); the reference may sit at any index.
//
// The linear system is solved as a minimum-norm least-squares problem, so
// rank-deficient geometries (equidistant receivers, colinear arrays) still
// yield a position rather than an error; its reliability is the caller's
// problem and residual filtering catches most of these.
func GilletteLocalize(positions []geom.Point, tdoas []float64, speedOfSound float64) (geom.Point, error) {
	dim, err := solverGeometry(positions, tdoas)
	if err != nil {
		return nil, err
	}
	if len(positions) < 2 {
		return nil, errors.Newf("gillette needs at least two receivers, got %d", len(positions)).
			Category(errors.CategoryValidation).
			Build()
	}

	ref := 0
	for i, t := range tdoas {
		if math.Abs(t) < math.Abs(tdoas[ref]) {
			ref = i
		}
	}
	if math.Abs(tdoas[ref]) > referenceTolerance {
		return nil, errors.Newf("%w: smallest |tdoa| is %g s", ErrReferenceRequired, math.Abs(tdoas[ref])).
			Category(errors.CategoryLocalization).
			Context("min_abs_tdoa", math.Abs(tdoas[ref])).
			Build()
	}

	// Rotate receivers so the reference comes first, preserving relative
	// order.
	m := len(positions)
	ordered := make([]geom.Point, m)
	delays := make([]float64, m)
	for i := range ordered {
		ordered[i] = positions[(ref+i)%m]
		delays[i] = tdoas[(ref+i)%m]
	}

	// Build A x = w with unknowns (source position, reference distance):
	// row m has A[m] = [pos0 - posm | tdoa_m*c] and
	// w[m] = 1/2*(tdoa_m*c + |pos0|^2 - |posm|^2).
	norm0 := floats.Dot(ordered[0], ordered[0])
	rows := m - 1
	a := mat.NewDense(rows, dim+1, nil)
	w := mat.NewVecDense(rows, nil)
	for r := 1; r < m; r++ {
		for d := 0; d < dim; d++ {
			a.Set(r-1, d, ordered[0][d]-ordered[r][d])
		}
		dmx := delays[r] * speedOfSound
		a.Set(r-1, dim, dmx)
		w.SetVec(r-1, 0.5*(dmx+norm0-floats.Dot(ordered[r], ordered[r])))
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, errors.Newf("gillette tdoa system factorization failed").
			Category(errors.CategoryLocalization).
			Context("algorithm", string(AlgorithmGillette)).
			Context("receivers", m).
			Build()
	}
	values := svd.Values(nil)
	tol := float64(max(rows, dim+1)) * svdRankEpsilon * values[0]
	rank := 0
	for _, v := range values {
		if v > tol {
			rank++
		}
	}
	if rank == 0 {
		return nil, errors.Newf("gillette tdoa system is all zero, receivers may be co-located").
			Category(errors.CategoryLocalization).
			Context("algorithm", string(AlgorithmGillette)).
			Context("receivers", m).
			Build()
	}
	if rank < dim+1 {
		logger.Warn("gillette system is rank-deficient, returning minimum-norm solution",
			"rank", rank,
			"unknowns", dim+1,
			"receivers", m)
	}

	var sol mat.VecDense
	svd.SolveVecTo(&sol, w, rank)

	estimate := make(geom.Point, dim)
	for d := range estimate {
		estimate[d] = sol.AtVec(d)
	}
	return estimate, nil
}
