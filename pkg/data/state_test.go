package data

import (
	"testing"
	"time"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/result"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDataState(t *testing.T) {
	db := setupTestDB(t)

	state, err := GetDataState(db)
	require.NoError(t, err)
	assert.Equal(t, int64(0), state["runs"])

	require.NoError(t, SaveRun(db, testRun("r1", time.Now())))
	require.NoError(t, SaveResults(db, "r1", []result.StudyResult{
		testResult(1, 10, 0.9),
		result.New(2, 20, map[level.Level]uncertainty.Record{level.L1L2: {}}),
	}))
	require.NoError(t, SaveSkips(db, "r1", []result.Skip{{StudyID: 3, SeriesID: 30, Kind: result.SkipFailed, Reason: "x"}}))

	state, err = GetDataState(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state["runs"])
	assert.Equal(t, int64(2), state["results"])
	assert.Equal(t, int64(1), state["incomplete"])
	assert.Equal(t, int64(1), state["skipped"])
	assert.Equal(t, int64(2), state["studies"])
}
