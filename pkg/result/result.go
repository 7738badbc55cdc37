// Package result assembles per-junction uncertainty records into study
// level results.
package result

import (
	"encoding/json"
	"fmt"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
)

// Key identifies a result in the append-only store.
type Key struct {
	StudyID  int64 `json:"study_id" yaml:"studyID"`
	SeriesID int64 `json:"series_id" yaml:"seriesID"`
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.StudyID, k.SeriesID)
}

// StudyResult holds the five junction records of one study series. Records
// live in a fixed array so copies never alias; a junction that was padded
// reports present == false from Level.
type StudyResult struct {
	StudyID  int64
	SeriesID int64

	records [level.Count]uncertainty.Record
	present [level.Count]bool
}

// New builds a result from the given records. Junctions absent from records
// are left as zero-valued sentinels and the result is incomplete.
func New(studyID, seriesID int64, records map[level.Level]uncertainty.Record) StudyResult {
	r := StudyResult{StudyID: studyID, SeriesID: seriesID}
	for _, l := range level.All() {
		rec, ok := records[l]
		rec.Level = l
		r.records[l] = rec
		r.present[l] = ok
	}
	return r
}

func (r StudyResult) Key() Key {
	return Key{StudyID: r.StudyID, SeriesID: r.SeriesID}
}

// Level returns the record of junction l and whether it was computed.
func (r StudyResult) Level(l level.Level) (uncertainty.Record, bool) {
	if !l.Valid() {
		return uncertainty.Record{}, false
	}
	return r.records[l], r.present[l]
}

// Records returns all five records in junction order, sentinels included.
func (r StudyResult) Records() []uncertainty.Record {
	out := make([]uncertainty.Record, level.Count)
	copy(out, r.records[:])
	return out
}

// Missing lists junctions without a computed record.
func (r StudyResult) Missing() []level.Level {
	var out []level.Level
	for _, l := range level.All() {
		if !r.present[l] {
			out = append(out, l)
		}
	}
	return out
}

func (r StudyResult) Incomplete() bool {
	return len(r.Missing()) > 0
}

type studyView struct {
	StudyID    int64                              `json:"study_id" yaml:"studyID"`
	SeriesID   int64                              `json:"series_id" yaml:"seriesID"`
	Levels     map[level.Level]uncertainty.Record `json:"levels" yaml:"levels"`
	Incomplete bool                               `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
	Missing    []level.Level                      `json:"missing,omitempty" yaml:"missing,omitempty"`
}

func (r StudyResult) view() studyView {
	v := studyView{
		StudyID:  r.StudyID,
		SeriesID: r.SeriesID,
		Levels:   make(map[level.Level]uncertainty.Record, level.Count),
		Missing:  r.Missing(),
	}
	v.Incomplete = len(v.Missing) > 0
	for _, l := range level.All() {
		if r.present[l] {
			v.Levels[l] = r.records[l]
		}
	}
	return v
}

func (r StudyResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.view())
}

func (r StudyResult) MarshalYAML() (any, error) {
	return r.view(), nil
}
