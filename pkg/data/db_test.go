package data

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/result"
	"github.com/mchmarny/lstvscan/pkg/risk"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	err := Init(dbPath)
	require.NoError(t, err)
	db, err := GetDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRun(id string, started time.Time) *Run {
	return &Run{
		ID:                 id,
		StartedAt:          started,
		FinishedAt:         started.Add(time.Minute),
		Mode:               "prod",
		Policy:             "exclude",
		Thresholds:         risk.DefaultThresholds(),
		GridSize:           10,
		DetectionThreshold: 0.5,
		Studies:            3,
		Results:            2,
		Skipped:            1,
		Guarded:            true,
	}
}

func testRecord(l level.Level, conf, entropy float64) uncertainty.Record {
	return uncertainty.Record{
		Level:                l,
		PeakConfidence:       conf,
		Entropy:              entropy,
		SpatialEntropy:       entropy / 2,
		PixelsAboveThreshold: 12,
		Point:                uncertainty.Point{Row: 10 + int(l), Col: 20, Detected: true},
	}
}

func testResult(study, series int64, conf float64) result.StudyResult {
	recs := make(map[level.Level]uncertainty.Record)
	for _, l := range level.All() {
		recs[l] = testRecord(l, conf, 3.5)
	}
	return result.New(study, series, recs)
}

func TestInit_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	err := Init(dbPath)
	require.NoError(t, err)
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestInit_EmptyPath(t *testing.T) {
	err := Init("")
	assert.Error(t, err)
}

func TestInit_RunsMigrations(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	require.NoError(t, Init(dbPath))

	version, dirty, err := SchemaVersion(dbPath)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
}

func TestInit_Idempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	require.NoError(t, Init(dbPath))
	assert.NoError(t, Init(dbPath))
}

func TestNilDB(t *testing.T) {
	assert.ErrorIs(t, SaveRun(nil, &Run{ID: "x"}), errDBNotInitialized)
	assert.ErrorIs(t, SaveResults(nil, "x", nil), errDBNotInitialized)
	assert.ErrorIs(t, SaveSkips(nil, "x", nil), errDBNotInitialized)

	_, err := GetResults(nil, "")
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = GetSkips(nil, "")
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = GetLatestRunID(nil)
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = GetRun(nil, "x")
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = GetRuns(nil, 1)
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = GetDataState(nil)
	assert.ErrorIs(t, err, errDBNotInitialized)
}
