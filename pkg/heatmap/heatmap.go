// Package heatmap provides localizer outputs as (6,H,W) probability stacks.
// The localizer network itself is external; sources here either synthesize
// stacks or read stacks it produced.
package heatmap

import (
	"context"

	"github.com/mchmarny/lstvscan/pkg/uncertainty"
	"github.com/mchmarny/lstvscan/pkg/volume"
)

// Source returns the heatmap stack of a volume. Errors wrapping
// volume.ErrUnavailable skip the study; any other error is recorded as a
// failed study.
type Source interface {
	Heatmaps(ctx context.Context, v *volume.Volume) (uncertainty.Stack, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, v *volume.Volume) (uncertainty.Stack, error)

func (f SourceFunc) Heatmaps(ctx context.Context, v *volume.Volume) (uncertainty.Stack, error) {
	return f(ctx, v)
}
