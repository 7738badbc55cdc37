package result

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func fullRecords(conf float64) map[level.Level]uncertainty.Record {
	m := make(map[level.Level]uncertainty.Record, level.Count)
	for _, l := range level.All() {
		m[l] = uncertainty.Record{Level: l, PeakConfidence: conf, Entropy: 3.5, SpatialEntropy: 1.2}
	}
	return m
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestAggregate_Complete(t *testing.T) {
	var buf bytes.Buffer
	a := NewAggregator(PolicyExclude, testLogger(&buf))

	r, err := a.Aggregate(10, 20, fullRecords(0.99))
	require.NoError(t, err)
	assert.False(t, r.Incomplete())
	assert.Empty(t, r.Missing())
	assert.Equal(t, Key{StudyID: 10, SeriesID: 20}, r.Key())
	assert.Empty(t, buf.String())

	rec, ok := r.Level(level.L5S1)
	assert.True(t, ok)
	assert.Equal(t, 0.99, rec.PeakConfidence)
	assert.Equal(t, level.L5S1, rec.Level)
}

func TestAggregate_ExcludeIncomplete(t *testing.T) {
	var buf bytes.Buffer
	a := NewAggregator(PolicyExclude, testLogger(&buf))

	recs := fullRecords(0.9)
	delete(recs, level.L5S1)
	delete(recs, level.L2L3)

	_, err := a.Aggregate(1, 2, recs)
	require.Error(t, err)
	assert.True(t, IsIncomplete(err))

	var ie *IncompleteError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, []level.Level{level.L2L3, level.L5S1}, ie.Missing)
	assert.Contains(t, err.Error(), "L5-S1")
	assert.Contains(t, buf.String(), "excluding incomplete study")
}

func TestAggregate_PadIncomplete(t *testing.T) {
	var buf bytes.Buffer
	a := NewAggregator(PolicyPad, testLogger(&buf))

	recs := fullRecords(0.9)
	delete(recs, level.L4L5)

	r, err := a.Aggregate(1, 2, recs)
	require.NoError(t, err)
	assert.True(t, r.Incomplete())
	assert.Equal(t, []level.Level{level.L4L5}, r.Missing())
	assert.Contains(t, buf.String(), "padding incomplete study")

	rec, ok := r.Level(level.L4L5)
	assert.False(t, ok)
	assert.Equal(t, level.L4L5, rec.Level)
	assert.Zero(t, rec.PeakConfidence)
	assert.Len(t, r.Records(), level.Count)
}

func TestStudyResult_CopiesDoNotAlias(t *testing.T) {
	r := New(1, 1, fullRecords(0.5))
	recs := r.Records()
	recs[0].PeakConfidence = 0.01

	rec, _ := r.Level(level.L1L2)
	assert.Equal(t, 0.5, rec.PeakConfidence)
}

func TestStudyResult_Marshal(t *testing.T) {
	recs := fullRecords(0.75)
	delete(recs, level.L1L2)
	r := New(7, 8, recs)

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.EqualValues(t, 7, m["study_id"])
	assert.Equal(t, true, m["incomplete"])
	assert.Equal(t, []any{"l1_l2"}, m["missing"])
	levels := m["levels"].(map[string]any)
	assert.Len(t, levels, 4)
	assert.Contains(t, levels, "l5_s1")

	y, err := yaml.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(y), "l5_s1:")
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("PAD")
	require.NoError(t, err)
	assert.Equal(t, PolicyPad, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyExclude, p)

	_, err = ParsePolicy("drop")
	assert.Error(t, err)
}

func TestSet_AppendOnly(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Append(New(1, 1, fullRecords(0.9))))
	require.NoError(t, s.Append(New(1, 2, fullRecords(0.8))))

	err := s.Append(New(1, 1, fullRecords(0.1)))
	assert.ErrorIs(t, err, ErrDuplicate)

	got, ok := s.Get(Key{StudyID: 1, SeriesID: 1})
	require.True(t, ok)
	rec, _ := got.Level(level.L1L2)
	assert.Equal(t, 0.9, rec.PeakConfidence)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, int64(2), all[1].SeriesID)

	_, ok = s.Get(Key{StudyID: 9})
	assert.False(t, ok)
}

func TestSet_ConcurrentAppend(t *testing.T) {
	s := NewSet()
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, s.Append(New(id, 1, fullRecords(0.9))))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func TestSummarize(t *testing.T) {
	results := []StudyResult{
		New(1, 1, fullRecords(0.90)),
		New(2, 1, fullRecords(0.96)),
		New(3, 1, fullRecords(0.99)),
	}
	stats := Summarize(results)
	require.Len(t, stats, level.Count)

	s := stats[level.L5S1]
	assert.Equal(t, level.L5S1, s.Level)
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 0.95, s.ConfidenceMean, 1e-9)
	assert.InDelta(t, 0.0458257569, s.ConfidenceStd, 1e-6)
	assert.InDelta(t, 3.5, s.EntropyMean, 1e-9)
	assert.InDelta(t, 0, s.EntropyStd, 1e-9)
}

func TestSummarize_SkipsPaddedAndSingle(t *testing.T) {
	recs := fullRecords(0.8)
	delete(recs, level.L5S1)
	stats := Summarize([]StudyResult{New(1, 1, recs)})

	assert.Equal(t, 0, stats[level.L5S1].Count)
	assert.Equal(t, 1, stats[level.L1L2].Count)
	assert.Equal(t, 0.0, stats[level.L1L2].ConfidenceStd)
	assert.Equal(t, 0.8, stats[level.L1L2].ConfidenceMean)
}
