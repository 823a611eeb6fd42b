package localization

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/birdnet-array/internal/geom"
)

type soundFinderConfig struct {
	center       bool
	sumOfSquares bool
}

// SoundFinderOption adjusts SoundFinderLocalize behavior.
type SoundFinderOption func(*soundFinderConfig)

// WithoutCentering skips shifting receiver positions to their centroid
// before solving. Centering is the published Sound Finder behavior and the
// default.
func WithoutCentering() SoundFinderOption {
	return func(c *soundFinderConfig) {
		c.center = false
	}
}

// WithSumOfSquaresSelection picks between the two quadratic roots by the
// sum-of-squares discrepancy of B*u against the right-hand side, as the
// published Sound Finder does. The default picks the root with the smaller
// pseudorange error, which performs better in practice.
func WithSumOfSquaresSelection() SoundFinderOption {
	return func(c *soundFinderConfig) {
		c.sumOfSquares = true
	}
}

// SoundFinderLocalize estimates the source position with the Sound Finder
// algorithm (Wilson et al. 2014), solving the TDOA problem like a GPS
// pseudorange system: each receiver contributes a row [x y (z) rho] and
// the quadratic in the Lorentz norm is solved for the position plus a
// pseudorange error term.
//
// Degenerate receiver geometry (colinear or coplanar receivers) makes the
// normal matrix singular; the estimate is then a NaN-filled position, not
// an error. Callers must NaN-check the result.
func SoundFinderLocalize(positions []geom.Point, tdoas []float64, speedOfSound float64, opts ...SoundFinderOption) (geom.Point, error) {
	dim, err := solverGeometry(positions, tdoas)
	if err != nil {
		return nil, err
	}

	cfg := soundFinderConfig{center: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := len(positions)
	shifted := make([]geom.Point, m)
	for i := range positions {
		shifted[i] = positions[i].Clone()
	}

	var centroid geom.Point
	if cfg.center {
		centroid, err = geom.Centroid(shifted)
		if err != nil {
			return nil, err
		}
		for i := range shifted {
			for d := range shifted[i] {
				shifted[i][d] -= centroid[d]
			}
		}
	}

	// B = [positions | rho] with pseudorange rho_i = -tdoa_i * c;
	// a_i = 1/2 * Lorentz norm of row i; e = ones.
	cols := dim + 1
	bData := make([]float64, m*cols)
	aData := make([]float64, m)
	eData := make([]float64, m)
	for i := range shifted {
		row := bData[i*cols : (i+1)*cols]
		copy(row, shifted[i])
		row[dim] = -tdoas[i] * speedOfSound

		norm, err := geom.LorentzNorm(row)
		if err != nil {
			return nil, err
		}
		aData[i] = 0.5 * norm
		eData[i] = 1
	}
	b := mat.NewDense(m, cols, bData)
	aVec := mat.NewVecDense(m, aData)
	eVec := mat.NewVecDense(m, eData)

	// Pseudoinverse B+ = (B^T B)^-1 B^T.
	var btb mat.Dense
	btb.Mul(b.T(), b)
	var inv mat.Dense
	if err := inv.Inverse(&btb); err != nil {
		logger.Warn("singular receiver geometry, returning NaN position; were receivers colinear or coplanar?",
			"receivers", m,
			"dimensions", dim,
			"error", err)
		return nanPoint(dim), nil
	}
	var pinv mat.Dense
	pinv.Mul(&inv, b.T())

	var bpeVec, bpaVec mat.VecDense
	bpeVec.MulVec(&pinv, eVec)
	bpaVec.MulVec(&pinv, aVec)
	bpe := vecSlice(&bpeVec)
	bpa := vecSlice(&bpaVec)

	// Quadratic in lambda from the Lorentz norms of B+e and B+a.
	cA, err := geom.LorentzNorm(bpe)
	if err != nil {
		return nil, err
	}
	ip, err := geom.LorentzInner(bpe, bpa)
	if err != nil {
		return nil, err
	}
	cC, err := geom.LorentzNorm(bpa)
	if err != nil {
		return nil, err
	}
	cB := 2 * (ip - 1)

	disc := cB*cB - 4*cA*cC
	if disc < 0 {
		logger.Warn("negative discriminant set to zero, solution may be inaccurate; inspect residuals",
			"discriminant", disc)
		disc = 0
	}
	root := math.Sqrt(disc)
	lambda0 := (-cB - root) / (2 * cA)
	lambda1 := (-cB + root) / (2 * cA)

	rhs0 := addScaled(aData, lambda0, eData)
	rhs1 := addScaled(aData, lambda1, eData)
	u0 := mulVec(&pinv, rhs0)
	u1 := mulVec(&pinv, rhs1)

	// Translate back to the original coordinate system before choosing a
	// root; the pseudorange column needs no shift.
	if cfg.center {
		for d := 0; d < dim; d++ {
			u0[d] += centroid[d]
			u1[d] += centroid[d]
		}
	}

	pick := u0
	if cfg.sumOfSquares {
		if sumSquaredDiscrepancy(b, u0, rhs0) >= sumSquaredDiscrepancy(b, u1, rhs1) {
			pick = u1
		}
	} else if math.Abs(u0[dim]) > math.Abs(u1[dim]) {
		pick = u1
	}

	return geom.Point(pick[:dim]), nil
}

func nanPoint(dim int) geom.Point {
	p := make(geom.Point, dim)
	for i := range p {
		p[i] = math.NaN()
	}
	return p
}

func vecSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

func mulVec(m mat.Matrix, v []float64) []float64 {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(len(v), v))
	return vecSlice(&out)
}

func addScaled(a []float64, k float64, e []float64) []float64 {
	out := make([]float64, len(a))
	for i := range out {
		out[i] = a[i] + k*e[i]
	}
	return out
}

// sumSquaredDiscrepancy is ||B*u - rhs||^2, evaluated after any centroid
// shift has been re-added to u, matching the published selection rule.
func sumSquaredDiscrepancy(b *mat.Dense, u, rhs []float64) float64 {
	var bu mat.VecDense
	bu.MulVec(b, mat.NewVecDense(len(u), u))
	var sum float64
	for i := range rhs {
		d := bu.AtVec(i) - rhs[i]
		sum += d * d
	}
	return sum
}
