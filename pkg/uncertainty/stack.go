package uncertainty

import (
	"fmt"

	"github.com/mchmarny/lstvscan/pkg/level"
	"gonum.org/v1/gonum/mat"
)

// Channels is the full depth of a localizer output: background plus one
// channel per junction.
const Channels = level.Count + 1

// Stack is a (channels, H, W) probability volume. Channel 0 is background,
// channels 1-5 map to the junctions in fixed order. A stack with fewer than
// Channels channels is accepted; the missing junctions surface later as an
// incomplete study.
type Stack struct {
	channels   []mat.Matrix
	rows, cols int
}

// NewStack validates that all channels share one non-empty shape.
func NewStack(channels ...mat.Matrix) (Stack, error) {
	if len(channels) == 0 {
		return Stack{}, fmt.Errorf("%w: stack has no channels", ErrInvalidHeatmap)
	}
	if len(channels) > Channels {
		return Stack{}, fmt.Errorf("%w: stack has %d channels, max %d", ErrInvalidHeatmap, len(channels), Channels)
	}

	var r, c int
	for i, ch := range channels {
		if ch == nil {
			return Stack{}, fmt.Errorf("%w: channel %d is nil", ErrInvalidHeatmap, i)
		}
		cr, cc := ch.Dims()
		if i == 0 {
			r, c = cr, cc
			continue
		}
		if cr != r || cc != c {
			return Stack{}, fmt.Errorf("%w: channel %d is %dx%d, want %dx%d", ErrInvalidHeatmap, i, cr, cc, r, c)
		}
	}
	if r == 0 || c == 0 {
		return Stack{}, fmt.Errorf("%w: empty %dx%d stack", ErrInvalidHeatmap, r, c)
	}

	cp := make([]mat.Matrix, len(channels))
	copy(cp, channels)
	return Stack{channels: cp, rows: r, cols: c}, nil
}

func (s Stack) Dims() (r, c int) { return s.rows, s.cols }

func (s Stack) Len() int { return len(s.channels) }

// Background returns channel 0.
func (s Stack) Background() mat.Matrix {
	if len(s.channels) == 0 {
		return nil
	}
	return s.channels[0]
}

// Level returns the heatmap of junction l, if the stack carries it.
func (s Stack) Level(l level.Level) (mat.Matrix, bool) {
	if !l.Valid() || l.Channel() >= len(s.channels) {
		return nil, false
	}
	return s.channels[l.Channel()], true
}

// Channel returns channel i, or nil when out of range.
func (s Stack) Channel(i int) mat.Matrix {
	if i < 0 || i >= len(s.channels) {
		return nil
	}
	return s.channels[i]
}
