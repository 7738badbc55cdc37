package uncertainty

import (
	"math"
	"testing"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func filled(r, c int, v float64) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			m.Set(y, x, v)
		}
	}
	return m
}

func TestCompute_Uniform(t *testing.T) {
	m := filled(40, 40, 0.25)
	rec, err := NewCalculator().Compute(m)
	require.NoError(t, err)

	assert.InDelta(t, math.Log(40*40), rec.Entropy, 1e-5)
	assert.InDelta(t, math.Log(DefaultGridSize*DefaultGridSize), rec.SpatialEntropy, 1e-6)
	assert.Equal(t, 0.25, rec.PeakConfidence)
	assert.Equal(t, 0, rec.PixelsAboveThreshold)
	assert.False(t, rec.Point.Detected)
}

func TestCompute_UniformCustomGrid(t *testing.T) {
	m := filled(30, 30, 0.1)
	rec, err := NewCalculator(WithGridSize(5)).Compute(m)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(25), rec.SpatialEntropy, 1e-6)
}

func TestCompute_OneHot(t *testing.T) {
	m := mat.NewDense(32, 32, nil)
	m.Set(7, 11, 1)

	rec, err := NewCalculator().Compute(m)
	require.NoError(t, err)

	assert.InDelta(t, 0, rec.Entropy, 1e-6)
	assert.InDelta(t, 0, rec.SpatialEntropy, 1e-6)
	assert.Equal(t, 1.0, rec.PeakConfidence)
	assert.Equal(t, 1, rec.PixelsAboveThreshold)
	assert.Equal(t, Point{Row: 7, Col: 11, Detected: true}, rec.Point)
}

func TestCompute_Deterministic(t *testing.T) {
	m := mat.NewDense(20, 24, nil)
	for y := 0; y < 20; y++ {
		for x := 0; x < 24; x++ {
			m.Set(y, x, math.Exp(-float64((y-9)*(y-9)+(x-13)*(x-13))/18))
		}
	}

	calc := NewCalculator()
	a, err := calc.Compute(m)
	require.NoError(t, err)
	b, err := calc.Compute(m)
	require.NoError(t, err)

	assert.Equal(t, math.Float64bits(a.Entropy), math.Float64bits(b.Entropy))
	assert.Equal(t, math.Float64bits(a.SpatialEntropy), math.Float64bits(b.SpatialEntropy))
	assert.Equal(t, math.Float64bits(a.PeakConfidence), math.Float64bits(b.PeakConfidence))
	assert.Equal(t, a, b)
}

func TestCompute_AllZero(t *testing.T) {
	m := mat.NewDense(40, 40, nil)
	rec, err := NewCalculator().Compute(m)
	require.NoError(t, err)

	for _, v := range []float64{rec.Entropy, rec.SpatialEntropy, rec.PeakConfidence} {
		assert.False(t, math.IsNaN(v))
		assert.False(t, math.IsInf(v, 0))
		assert.GreaterOrEqual(t, v, 0.0)
	}
	assert.InDelta(t, math.Log(1600), rec.Entropy, 1e-4)
	assert.InDelta(t, math.Log(100), rec.SpatialEntropy, 1e-4)
	assert.Equal(t, 0.0, rec.PeakConfidence)
	assert.False(t, rec.Point.Detected)
}

func TestCompute_NearZero(t *testing.T) {
	m := filled(10, 10, 1e-15)
	rec, err := NewCalculator().Compute(m)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(100), rec.Entropy, 1e-4)
}

func TestSpatialEntropy_DropsTrailingRowsAndCols(t *testing.T) {
	// 25x25 with grid 10 gives 2x2 cells covering rows/cols 0..19 only.
	m := mat.NewDense(25, 25, nil)
	m.Set(0, 0, 1)
	m.Set(24, 24, 1)

	assert.InDelta(t, 0, SpatialEntropy(m, 10), 1e-6)
	assert.InDelta(t, math.Log(2), Entropy(flatten(m)), 1e-6)

	// Mass only in the dropped margin reads as an empty lattice.
	edge := mat.NewDense(25, 25, nil)
	edge.Set(22, 3, 1)
	assert.InDelta(t, math.Log(100), SpatialEntropy(edge, 10), 1e-4)
}

func TestDetect_StrictThresholdAndRounding(t *testing.T) {
	m := mat.NewDense(6, 6, nil)
	m.Set(1, 1, 0.9)
	m.Set(2, 4, 0.9)
	m.Set(5, 5, 0.5) // not strictly above

	pt, n := Detect(m, 0.5)
	assert.Equal(t, 2, n)
	// rows mean 1.5 -> 2, cols mean 2.5 -> 2
	assert.Equal(t, Point{Row: 2, Col: 2, Detected: true}, pt)
}

func TestCompute_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		v    float64
	}{
		{"negative", -0.1},
		{"nan", math.NaN()},
		{"above one", 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mat.NewDense(4, 4, nil)
			m.Set(2, 3, tt.v)
			_, err := NewCalculator().Compute(m)
			assert.ErrorIs(t, err, ErrInvalidHeatmap)
		})
	}

	_, err := NewCalculator().Compute(nil)
	assert.ErrorIs(t, err, ErrInvalidHeatmap)
}

func TestEntropy_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Entropy(nil))
	assert.Equal(t, 0.0, SpatialEntropy(filled(4, 4, 0.2), 0))
}

func TestNewCalculator_Options(t *testing.T) {
	c := NewCalculator(WithGridSize(-1), WithDetectionThreshold(0.7))
	assert.Equal(t, DefaultGridSize, c.GridSize())
	assert.Equal(t, 0.7, c.DetectionThreshold())
}

func TestComputeStack(t *testing.T) {
	bg := filled(20, 20, 0.5)
	chans := []mat.Matrix{bg}
	for i := 0; i < level.Count; i++ {
		m := mat.NewDense(20, 20, nil)
		m.Set(3*i+1, 10, 0.95)
		chans = append(chans, m)
	}
	s, err := NewStack(chans...)
	require.NoError(t, err)

	recs, errs := NewCalculator().ComputeStack(s)
	assert.Empty(t, errs)
	require.Len(t, recs, level.Count)
	for i, l := range level.All() {
		assert.Equal(t, l, recs[l].Level)
		assert.Equal(t, 3*i+1, recs[l].Point.Row)
		assert.Equal(t, 0.95, recs[l].PeakConfidence)
	}
}

func TestComputeStack_PartialAndInvalid(t *testing.T) {
	bad := mat.NewDense(8, 8, nil)
	bad.Set(0, 0, -1)
	s, err := NewStack(filled(8, 8, 0.1), filled(8, 8, 0.2), bad, filled(8, 8, 0.3))
	require.NoError(t, err)

	recs, errs := NewCalculator().ComputeStack(s)
	assert.Len(t, recs, 2)
	assert.Contains(t, recs, level.L1L2)
	assert.Contains(t, recs, level.L3L4)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[level.L2L3], ErrInvalidHeatmap)
}
