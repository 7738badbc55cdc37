package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/mchmarny/lstvscan/pkg/heatmap"
	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/metrics"
	"github.com/mchmarny/lstvscan/pkg/result"
	"github.com/mchmarny/lstvscan/pkg/risk"
	"github.com/mchmarny/lstvscan/pkg/series"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
	"github.com/mchmarny/lstvscan/pkg/volume"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// unavailableLoader fails the listed studies.
type unavailableLoader struct {
	missing map[int64]bool
}

func (l unavailableLoader) Load(ctx context.Context, study, series int64) (*volume.Volume, error) {
	if l.missing[study] {
		return nil, fmt.Errorf("%w: study %d", volume.ErrUnavailable, study)
	}
	return volume.IDLoader{}.Load(ctx, study, series)
}

func selections(ids ...int64) []series.Selection {
	out := make([]series.Selection, len(ids))
	for i, id := range ids {
		out[i] = series.Selection{StudyID: id, SeriesID: id * 10}
	}
	return out
}

func newTestRunner(t *testing.T, loader volume.Loader, src heatmap.Source, p result.Policy, opts ...Option) *Runner {
	t.Helper()
	r, err := NewRunner(loader, src, uncertainty.NewCalculator(), result.NewAggregator(p, nil), opts...)
	require.NoError(t, err)
	return r
}

func TestRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c, err := risk.NewClassifier(risk.DefaultThresholds())
	require.NoError(t, err)

	r := newTestRunner(t, volume.IDLoader{}, heatmap.NewMockSource(42, 32), result.PolicyExclude,
		WithWorkers(3), WithMetrics(m), WithClassifier(c))

	rep, err := r.Run(context.Background(), selections(5, 1, 4, 2, 3))
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 5, rep.Studies)
	assert.Empty(t, rep.Skipped)
	require.Len(t, rep.Results, 5)

	// merge keeps input order regardless of worker scheduling
	got := make([]int64, len(rep.Results))
	for i, res := range rep.Results {
		got[i] = res.StudyID
		assert.False(t, res.Incomplete())
	}
	assert.Equal(t, []int64{5, 1, 4, 2, 3}, got)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.StudiesTotal.WithLabelValues("scored")))
	var labeled float64
	for _, l := range risk.Labels() {
		b, _ := l.MarshalText()
		labeled += testutil.ToFloat64(m.RiskTotal.WithLabelValues(string(b)))
	}
	assert.Equal(t, 5.0, labeled)
}

func TestRun_Deterministic(t *testing.T) {
	src := heatmap.NewMockSource(7, 24)
	a, err := newTestRunner(t, volume.IDLoader{}, src, result.PolicyExclude, WithWorkers(4)).Run(context.Background(), selections(1, 2, 3, 4))
	require.NoError(t, err)
	b, err := newTestRunner(t, volume.IDLoader{}, src, result.PolicyExclude, WithWorkers(1)).Run(context.Background(), selections(1, 2, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, a.Results, b.Results)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRun_Unavailable(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	loader := unavailableLoader{missing: map[int64]bool{2: true}}

	r := newTestRunner(t, loader, heatmap.NewMockSource(1, 16), result.PolicyExclude, WithMetrics(m))
	rep, err := r.Run(context.Background(), selections(1, 2, 3))
	require.NoError(t, err)

	assert.Len(t, rep.Results, 2)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, int64(2), rep.Skipped[0].StudyID)
	assert.Equal(t, result.SkipUnavailable, rep.Skipped[0].Kind)
	assert.Contains(t, rep.Skipped[0].Reason, "study 2")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StudiesTotal.WithLabelValues("unavailable")))
}

// partialSource drops the L5-S1 channel of even studies.
func partialSource(full heatmap.Source) heatmap.Source {
	return heatmap.SourceFunc(func(ctx context.Context, v *volume.Volume) (uncertainty.Stack, error) {
		st, err := full.Heatmaps(ctx, v)
		if err != nil || v.StudyID%2 != 0 {
			return st, err
		}
		chs := make([]mat.Matrix, level.L5S1.Channel())
		for i := range chs {
			chs[i] = st.Channel(i)
		}
		return uncertainty.NewStack(chs...)
	})
}

func TestRun_IncompletePolicy(t *testing.T) {
	src := partialSource(heatmap.NewMockSource(3, 16))

	t.Run("exclude", func(t *testing.T) {
		rep, err := newTestRunner(t, volume.IDLoader{}, src, result.PolicyExclude).Run(context.Background(), selections(1, 2, 3, 4))
		require.NoError(t, err)
		assert.Len(t, rep.Results, 2)
		require.Len(t, rep.Skipped, 2)
		for _, s := range rep.Skipped {
			assert.Equal(t, result.SkipIncomplete, s.Kind)
			assert.Contains(t, s.Reason, "L5-S1")
		}
	})

	t.Run("pad", func(t *testing.T) {
		rep, err := newTestRunner(t, volume.IDLoader{}, src, result.PolicyPad).Run(context.Background(), selections(1, 2, 3, 4))
		require.NoError(t, err)
		require.Len(t, rep.Results, 4)
		assert.Empty(t, rep.Skipped)
		assert.True(t, rep.Results[1].Incomplete())
		assert.Equal(t, []level.Level{level.L5S1}, rep.Results[1].Missing())
	})
}

func TestRun_FailedSource(t *testing.T) {
	boom := errors.New("boom")
	src := heatmap.SourceFunc(func(_ context.Context, _ *volume.Volume) (uncertainty.Stack, error) {
		return uncertainty.Stack{}, boom
	})
	rep, err := newTestRunner(t, volume.IDLoader{}, src, result.PolicyExclude).Run(context.Background(), selections(1))
	require.NoError(t, err)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, result.SkipFailed, rep.Skipped[0].Kind)
	assert.Equal(t, "boom", rep.Skipped[0].Reason)
}

func TestRun_Duplicate(t *testing.T) {
	rep, err := newTestRunner(t, volume.IDLoader{}, heatmap.NewMockSource(1, 16), result.PolicyExclude).
		Run(context.Background(), selections(1, 1))
	require.NoError(t, err)
	assert.Len(t, rep.Results, 1)
	require.Len(t, rep.Skipped, 1)
	assert.Contains(t, rep.Skipped[0].Reason, "duplicate")
}

func TestRun_DuplicateSkipsRecordedOnce(t *testing.T) {
	loader := unavailableLoader{missing: map[int64]bool{1: true}}
	rep, err := newTestRunner(t, loader, heatmap.NewMockSource(1, 16), result.PolicyExclude).
		Run(context.Background(), selections(1, 1, 2, 2, 2))
	require.NoError(t, err)

	require.Len(t, rep.Results, 1)
	assert.Equal(t, int64(2), rep.Results[0].StudyID)
	require.Len(t, rep.Skipped, 2)
	assert.Equal(t, result.SkipUnavailable, rep.Skipped[0].Kind)
	assert.Equal(t, int64(1), rep.Skipped[0].StudyID)
	assert.Equal(t, int64(2), rep.Skipped[1].StudyID)
	assert.Contains(t, rep.Skipped[1].Reason, "duplicate")
}

func TestRun_BoundedWorkers(t *testing.T) {
	var active, peak atomic.Int32
	full := heatmap.NewMockSource(1, 16)
	src := heatmap.SourceFunc(func(ctx context.Context, v *volume.Volume) (uncertainty.Stack, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		return full.Heatmaps(ctx, v)
	})

	rep, err := newTestRunner(t, volume.IDLoader{}, src, result.PolicyExclude, WithWorkers(2)).
		Run(context.Background(), selections(1, 2, 3, 4, 5, 6, 7, 8))
	require.NoError(t, err)
	assert.Len(t, rep.Results, 8)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := newTestRunner(t, volume.IDLoader{}, heatmap.NewMockSource(1, 16), result.PolicyExclude).
		Run(ctx, selections(1, 2))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)
	assert.Len(t, rep.Skipped, 2)
}

func TestNewRunner_Errors(t *testing.T) {
	_, err := NewRunner(nil, heatmap.NewMockSource(1, 16), nil, nil)
	assert.Error(t, err)
	_, err = NewRunner(volume.IDLoader{}, nil, nil, nil)
	assert.Error(t, err)

	r, err := NewRunner(volume.IDLoader{}, heatmap.NewMockSource(1, 16), nil, nil, WithWorkers(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, r.workers)
	assert.Equal(t, result.PolicyExclude, r.agg.Policy())
}
