package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-array/internal/errors"
)

func TestSpeedOfSound(t *testing.T) {
	tests := []struct {
		name  string
		tempC float64
		want  float64
	}{
		{"freezing", 0, 331.3},
		{"room temperature", 20, 343.21},
		{"hot day", 35, 351.88},
		{"below freezing", -10, 325.18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SpeedOfSound(tt.tempC)
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestDistance(t *testing.T) {
	t.Run("2d", func(t *testing.T) {
		d, err := Distance(Point{0, 0}, Point{3, 4})
		require.NoError(t, err)
		assert.InDelta(t, 5.0, d, 1e-12)
	})

	t.Run("3d", func(t *testing.T) {
		d, err := Distance(Point{1, 1, 1}, Point{1, 1, 6})
		require.NoError(t, err)
		assert.InDelta(t, 5.0, d, 1e-12)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Distance(Point{0, 0}, Point{1, 1, 1})
		assert.Error(t, err)
	})
}

func TestTravelTime(t *testing.T) {
	tt, err := TravelTime(Point{0, 0}, Point{343, 0}, 343)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, tt, 1e-12)

	tt, err = TravelTime(Point{0, 0}, Point{0, 0}, 343)
	require.NoError(t, err)
	assert.Zero(t, tt)
}

func TestLorentzInner(t *testing.T) {
	t.Run("3-vector", func(t *testing.T) {
		// 1*4 + 2*5 - 3*6 = -4
		got, err := LorentzInner([]float64{1, 2, 3}, []float64{4, 5, 6})
		require.NoError(t, err)
		assert.InDelta(t, -4.0, got, 1e-12)
	})

	t.Run("4-vector", func(t *testing.T) {
		// 1 + 4 + 9 - 16 = -2
		got, err := LorentzNorm([]float64{1, 2, 3, 4})
		require.NoError(t, err)
		assert.InDelta(t, -2.0, got, 1e-12)
	})

	t.Run("unsupported length", func(t *testing.T) {
		_, err := LorentzNorm([]float64{1, 2})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDimension))

		_, err = LorentzNorm([]float64{1, 2, 3, 4, 5})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDimension))
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := LorentzInner([]float64{1, 2, 3}, []float64{1, 2, 3, 4})
		assert.Error(t, err)
	})
}

func TestTDOAResiduals(t *testing.T) {
	positions := []Point{{0, 0}, {10, 0}, {0, 10}}
	estimate := Point{3, 4}
	c := 343.0

	// Analytic distances from the estimate to each receiver.
	d0 := 5.0
	d1 := math.Sqrt(49 + 16)
	d2 := math.Sqrt(9 + 36)

	t.Run("true tdoas give zero residuals", func(t *testing.T) {
		tdoas := []float64{0, (d1 - d0) / c, (d2 - d0) / c}
		res, err := TDOAResiduals(positions, tdoas, estimate, c)
		require.NoError(t, err)
		require.Len(t, res, 3)
		for i, r := range res {
			assert.InDelta(t, 0.0, r, 1e-9, "residual %d", i)
		}
		assert.InDelta(t, 0.0, ResidualRMS(res), 1e-9)
	})

	t.Run("zero observed tdoas give distance differences", func(t *testing.T) {
		tdoas := []float64{0, 0, 0}
		res, err := TDOAResiduals(positions, tdoas, estimate, c)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, res[0], 1e-12)
		assert.InDelta(t, d1-d0, res[1], 1e-9)
		assert.InDelta(t, d2-d0, res[2], 1e-9)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := TDOAResiduals(positions, []float64{0, 0}, estimate, c)
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := TDOAResiduals(nil, nil, estimate, c)
		assert.Error(t, err)
	})
}

func TestResidualRMS(t *testing.T) {
	assert.Zero(t, ResidualRMS(nil))
	assert.InDelta(t, math.Sqrt(25.0/2.0), ResidualRMS([]float64{3, 4}), 1e-12)
	assert.InDelta(t, 2.0, ResidualRMS([]float64{2, -2, 2, -2}), 1e-12)
}

func TestCentroid(t *testing.T) {
	t.Run("square", func(t *testing.T) {
		c, err := Centroid([]Point{{0, 0}, {10, 0}, {0, 10}, {10, 10}})
		require.NoError(t, err)
		assert.InDelta(t, 5.0, c[0], 1e-12)
		assert.InDelta(t, 5.0, c[1], 1e-12)
	})

	t.Run("mixed dimensionality", func(t *testing.T) {
		_, err := Centroid([]Point{{0, 0}, {1, 2, 3}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDimension))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Centroid(nil)
		assert.Error(t, err)
	})
}

func TestPointClone(t *testing.T) {
	p := Point{1, 2, 3}
	c := p.Clone()
	c[0] = 99
	assert.Equal(t, Point{1, 2, 3}, p)
	assert.Equal(t, Point{99, 2, 3}, c)
}
