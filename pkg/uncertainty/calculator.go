package uncertainty

import (
	"errors"
	"fmt"
	"math"

	"github.com/mchmarny/lstvscan/pkg/level"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultGridSize           = 10
	DefaultDetectionThreshold = 0.5
)

// ErrInvalidHeatmap is returned for matrices that are not probability maps.
var ErrInvalidHeatmap = errors.New("invalid heatmap")

// Calculator computes uncertainty metrics. It holds no mutable state and is
// safe for concurrent use.
type Calculator struct {
	gridSize  int
	threshold float64
}

type Option func(*Calculator)

// WithGridSize sets the spatial entropy lattice size. Non-positive values
// keep the default.
func WithGridSize(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.gridSize = n
		}
	}
}

// WithDetectionThreshold sets the landmark detection cutoff.
func WithDetectionThreshold(t float64) Option {
	return func(c *Calculator) {
		c.threshold = t
	}
}

func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		gridSize:  DefaultGridSize,
		threshold: DefaultDetectionThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Calculator) GridSize() int { return c.gridSize }

func (c *Calculator) DetectionThreshold() float64 { return c.threshold }

// Compute returns the metrics of a single heatmap. The metrics are computed
// whether or not a landmark is detected.
func (c *Calculator) Compute(m mat.Matrix) (Record, error) {
	flat, err := validate(m)
	if err != nil {
		return Record{}, err
	}

	pt, n := Detect(m, c.threshold)
	return Record{
		PeakConfidence:       floats.Max(flat),
		Entropy:              Entropy(flat),
		SpatialEntropy:       SpatialEntropy(m, c.gridSize),
		PixelsAboveThreshold: n,
		Point:                pt,
	}, nil
}

// ComputeStack computes a record for every junction channel present in s.
// Per-junction failures are returned separately so the caller can decide how
// to aggregate a partial study.
func (c *Calculator) ComputeStack(s Stack) (map[level.Level]Record, map[level.Level]error) {
	records := make(map[level.Level]Record, level.Count)
	var errs map[level.Level]error
	for _, l := range level.All() {
		m, ok := s.Level(l)
		if !ok {
			continue
		}
		rec, err := c.Compute(m)
		if err != nil {
			if errs == nil {
				errs = make(map[level.Level]error)
			}
			errs[l] = fmt.Errorf("%s: %w", l, err)
			continue
		}
		rec.Level = l
		records[l] = rec
	}
	return records, errs
}

func validate(m mat.Matrix) ([]float64, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil matrix", ErrInvalidHeatmap)
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("%w: empty %dx%d matrix", ErrInvalidHeatmap, r, c)
	}
	flat := flatten(m)
	for i, v := range flat {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, fmt.Errorf("%w: value %v at (%d,%d) outside [0,1]", ErrInvalidHeatmap, v, i/c, i%c)
		}
	}
	return flat, nil
}
