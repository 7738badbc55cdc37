package uncertainty

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Epsilon guards both the normalization denominator and the logarithm.
const Epsilon = 1e-9

// Entropy returns the Shannon entropy (natural log) of mass after
// normalizing it to sum 1. A total mass below Epsilon carries no location
// information and is scored as a uniform distribution, so an empty heatmap
// saturates near log(len(mass)) instead of producing NaN.
func Entropy(mass []float64) float64 {
	n := len(mass)
	if n == 0 {
		return 0
	}

	total := floats.Sum(mass)
	var h float64
	if total < Epsilon {
		p := 1 / float64(n)
		h = -float64(n) * p * math.Log(p+Epsilon)
	} else {
		denom := total + Epsilon
		for _, v := range mass {
			p := v / denom
			h -= p * math.Log(p+Epsilon)
		}
	}

	// p+Epsilon may exceed 1 by a hair for a one-hot map.
	return math.Max(h, 0)
}

// SpatialEntropy bins the heatmap into a grid x grid lattice and returns the
// Shannon entropy of the per-cell mass. Cell sizes are floor(rows/grid) by
// floor(cols/grid); trailing rows and columns that do not fill a whole cell
// are left out of every cell.
func SpatialEntropy(m mat.Matrix, grid int) float64 {
	if grid <= 0 {
		return 0
	}
	r, c := m.Dims()
	bh, bw := r/grid, c/grid

	cells := make([]float64, grid*grid)
	for i := 0; i < grid; i++ {
		for j := 0; j < grid; j++ {
			var s float64
			for y := i * bh; y < (i+1)*bh; y++ {
				for x := j * bw; x < (j+1)*bw; x++ {
					s += m.At(y, x)
				}
			}
			cells[i*grid+j] = s
		}
	}
	return Entropy(cells)
}

// Detect counts pixels strictly above threshold and returns their rounded
// centroid. Halves round to even.
func Detect(m mat.Matrix, threshold float64) (Point, int) {
	r, c := m.Dims()
	var sumRow, sumCol float64
	var n int
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			if m.At(y, x) > threshold {
				sumRow += float64(y)
				sumCol += float64(x)
				n++
			}
		}
	}
	if n == 0 {
		return Point{}, 0
	}
	return Point{
		Row:      int(math.RoundToEven(sumRow / float64(n))),
		Col:      int(math.RoundToEven(sumCol / float64(n))),
		Detected: true,
	}, n
}

func flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			out = append(out, m.At(y, x))
		}
	}
	return out
}
