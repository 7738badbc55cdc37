package data

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/result"
)

const (
	insertSkipSQL = `INSERT INTO study_skip (run_id, study_id, series_id, kind, reason)
		VALUES (?, ?, ?, ?, ?)
	`
)

// levelColumnSuffixes are the per-junction columns of study_result, in
// insert order.
var levelColumnSuffixes = []string{"confidence", "entropy", "spatial_entropy", "pixels", "row", "col"}

var insertResultSQL = buildInsertResultSQL()

func levelColumns() []string {
	cols := make([]string, 0, level.Count*len(levelColumnSuffixes))
	for _, l := range level.All() {
		for _, s := range levelColumnSuffixes {
			cols = append(cols, l.Key()+"_"+s)
		}
	}
	return cols
}

func buildInsertResultSQL() string {
	cols := append([]string{"run_id", "study_id", "series_id", "incomplete"}, levelColumns()...)
	cols = append(cols, "created_at")
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO study_result (%s) VALUES (%s)", strings.Join(cols, ", "), marks)
}

func resultArgs(runID string, r result.StudyResult, created string) []any {
	args := make([]any, 0, 5+level.Count*len(levelColumnSuffixes))
	args = append(args, runID, r.StudyID, r.SeriesID, boolToInt(r.Incomplete()))
	for _, l := range level.All() {
		rec, ok := r.Level(l)
		if !ok {
			for range levelColumnSuffixes {
				args = append(args, nil)
			}
			continue
		}
		args = append(args, rec.PeakConfidence, rec.Entropy, rec.SpatialEntropy, rec.PixelsAboveThreshold)
		if rec.Point.Detected {
			args = append(args, rec.Point.Row, rec.Point.Col)
		} else {
			args = append(args, nil, nil)
		}
	}
	return append(args, created)
}

// SaveResults appends results of a run in one transaction. A key already
// stored for the run fails the whole batch; rows are never replaced.
func SaveResults(db *sql.DB, runID string, results []result.StudyResult) error {
	if db == nil {
		return errDBNotInitialized
	}
	if runID == "" {
		return errors.New("run id required")
	}
	if len(results) == 0 {
		return nil
	}

	created := time.Now().UTC().Format(timeFormat)
	return inTx(db, insertResultSQL, func(stmt *sql.Stmt) error {
		for _, r := range results {
			if _, err := stmt.Exec(resultArgs(runID, r, created)...); err != nil {
				return fmt.Errorf("failed to insert result %s: %w", r.Key(), err)
			}
		}
		return nil
	})
}

// SaveSkips appends the skip ledger of a run in one transaction.
func SaveSkips(db *sql.DB, runID string, skips []result.Skip) error {
	if db == nil {
		return errDBNotInitialized
	}
	if runID == "" {
		return errors.New("run id required")
	}
	if len(skips) == 0 {
		return nil
	}

	return inTx(db, insertSkipSQL, func(stmt *sql.Stmt) error {
		for _, s := range skips {
			if _, err := stmt.Exec(runID, s.StudyID, s.SeriesID, string(s.Kind), s.Reason); err != nil {
				return fmt.Errorf("failed to insert skip %d/%d: %w", s.StudyID, s.SeriesID, err)
			}
		}
		return nil
	})
}

func inTx(db *sql.DB, query string, fn func(*sql.Stmt) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction: %w", rbErr)
		}
		return fmt.Errorf("failed to prepare batch statement: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction: %w", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
