package heatmap

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
	"github.com/mchmarny/lstvscan/pkg/volume"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultMockSize = 64
)

// blob describes the synthetic response of one junction.
type blob struct {
	ampMin, ampMax     float64
	sigmaMin, sigmaMax float64
}

// Upper junctions are sharp and bright; the two lumbosacral junctions are
// wider and dimmer so they carry more uncertainty.
var blobs = [level.Count]blob{
	level.L1L2: {ampMin: 0.96, ampMax: 1.0, sigmaMin: 1.0, sigmaMax: 2.0},
	level.L2L3: {ampMin: 0.96, ampMax: 1.0, sigmaMin: 1.0, sigmaMax: 2.0},
	level.L3L4: {ampMin: 0.95, ampMax: 1.0, sigmaMin: 1.0, sigmaMax: 2.5},
	level.L4L5: {ampMin: 0.90, ampMax: 1.0, sigmaMin: 1.5, sigmaMax: 4.0},
	level.L5S1: {ampMin: 0.90, ampMax: 1.0, sigmaMin: 1.5, sigmaMax: 6.0},
}

// MockSource synthesizes deterministic stacks: one Gaussian blob per
// junction, placed down the image from L1-L2 to L5-S1. The same seed and
// study always yield the same stack.
type MockSource struct {
	seed uint64
	size int
}

func NewMockSource(seed uint64, size int) *MockSource {
	if size < level.Count*2 {
		size = DefaultMockSize
	}
	return &MockSource{seed: seed, size: size}
}

func (s *MockSource) Heatmaps(ctx context.Context, v *volume.Volume) (uncertainty.Stack, error) {
	if err := ctx.Err(); err != nil {
		return uncertainty.Stack{}, err
	}
	if v == nil {
		return uncertainty.Stack{}, errors.New("volume required")
	}

	r := rand.New(rand.NewPCG(s.seed, uint64(v.StudyID)))
	n := s.size
	step := float64(n) / float64(level.Count+1)

	channels := make([]mat.Matrix, uncertainty.Channels)
	bg := mat.NewDense(n, n, nil)
	for i := range n {
		for j := range n {
			bg.Set(i, j, 1)
		}
	}
	channels[0] = bg

	for _, l := range level.All() {
		b := blobs[l]
		amp := uniform(r, b.ampMin, b.ampMax)
		sigma := uniform(r, b.sigmaMin, b.sigmaMax)
		cr := step*float64(l+1) + uniform(r, -1, 1)
		cc := float64(n)/2 + uniform(r, -2, 2)

		m := mat.NewDense(n, n, nil)
		for i := range n {
			for j := range n {
				dr, dc := float64(i)-cr, float64(j)-cc
				p := amp * math.Exp(-(dr*dr+dc*dc)/(2*sigma*sigma))
				m.Set(i, j, p)
				if rest := 1 - p; rest < bg.At(i, j) {
					bg.Set(i, j, rest)
				}
			}
		}
		channels[l.Channel()] = m
	}

	return uncertainty.NewStack(channels...)
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}
