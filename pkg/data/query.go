package data

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/result"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
)

const (
	selectSkipsSQL = `SELECT study_id, series_id, kind, reason
		FROM study_skip
		WHERE run_id = ?
		ORDER BY study_id, series_id
	`
)

var selectResultsSQL = fmt.Sprintf(`SELECT study_id, series_id, %s
		FROM study_result
		WHERE run_id = ?
		ORDER BY study_id, series_id
	`, strings.Join(levelColumns(), ", "))

// GetResults returns the results of a run ordered by key. An empty runID
// selects the latest run.
func GetResults(db *sql.DB, runID string) ([]result.StudyResult, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	id, err := resolveRunID(db, runID)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(selectResultsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query results of run %s: %w", id, err)
	}
	defer rows.Close()

	list := make([]result.StudyResult, 0)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

type levelCols struct {
	conf, entropy, spatial sql.NullFloat64
	pixels, row, col       sql.NullInt64
}

func scanResult(s scanner) (result.StudyResult, error) {
	var study, series int64
	cols := make([]levelCols, level.Count)

	dest := []any{&study, &series}
	for i := range cols {
		c := &cols[i]
		dest = append(dest, &c.conf, &c.entropy, &c.spatial, &c.pixels, &c.row, &c.col)
	}
	if err := s.Scan(dest...); err != nil {
		return result.StudyResult{}, err
	}

	records := make(map[level.Level]uncertainty.Record, level.Count)
	for _, l := range level.All() {
		c := cols[l]
		if !c.conf.Valid {
			continue
		}
		rec := uncertainty.Record{
			Level:                l,
			PeakConfidence:       c.conf.Float64,
			Entropy:              c.entropy.Float64,
			SpatialEntropy:       c.spatial.Float64,
			PixelsAboveThreshold: int(c.pixels.Int64),
		}
		if c.row.Valid && c.col.Valid {
			rec.Point = uncertainty.Point{Row: int(c.row.Int64), Col: int(c.col.Int64), Detected: true}
		}
		records[l] = rec
	}
	return result.New(study, series, records), nil
}

// GetSkips returns the skip ledger of a run. An empty runID selects the
// latest run.
func GetSkips(db *sql.DB, runID string) ([]result.Skip, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	id, err := resolveRunID(db, runID)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(selectSkipsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query skips of run %s: %w", id, err)
	}
	defer rows.Close()

	list := make([]result.Skip, 0)
	for rows.Next() {
		var s result.Skip
		var kind string
		if err := rows.Scan(&s.StudyID, &s.SeriesID, &kind, &s.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan skip: %w", err)
		}
		s.Kind = result.SkipKind(kind)
		list = append(list, s)
	}
	return list, rows.Err()
}
