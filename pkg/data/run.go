package data

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mchmarny/lstvscan/pkg/risk"
)

const (
	insertRunSQL = `INSERT INTO run (
			id, started_at, finished_at, mode, policy,
			high_risk_confidence, moderate_risk_confidence, high_risk_entropy,
			grid_size, detection_threshold, studies, results, skipped, guarded
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectRunColumnsSQL = `SELECT
			id, started_at, finished_at, mode, policy,
			high_risk_confidence, moderate_risk_confidence, high_risk_entropy,
			grid_size, detection_threshold, studies, results, skipped, guarded
		FROM run
	`

	selectRunSQL = selectRunColumnsSQL + ` WHERE id = ?`

	selectRunsSQL = selectRunColumnsSQL + ` ORDER BY started_at DESC, rowid DESC LIMIT ?`

	selectLatestRunIDSQL = `SELECT id FROM run ORDER BY started_at DESC, rowid DESC LIMIT 1`
)

// Run describes one pipeline execution and the settings it used.
type Run struct {
	ID                 string               `json:"id" yaml:"id"`
	StartedAt          time.Time            `json:"started_at" yaml:"startedAt"`
	FinishedAt         time.Time            `json:"finished_at" yaml:"finishedAt"`
	Mode               string               `json:"mode" yaml:"mode"`
	Policy             string               `json:"policy" yaml:"policy"`
	Thresholds         risk.ThresholdConfig `json:"thresholds" yaml:"thresholds"`
	GridSize           int                  `json:"grid_size" yaml:"gridSize"`
	DetectionThreshold float64              `json:"detection_threshold" yaml:"detectionThreshold"`
	Studies            int                  `json:"studies" yaml:"studies"`
	Results            int                  `json:"results" yaml:"results"`
	Skipped            int                  `json:"skipped" yaml:"skipped"`
	// Guarded is false when the run was not restricted to validation studies.
	Guarded            bool                 `json:"guarded" yaml:"guarded"`
}

// SaveRun inserts a run. Runs are never updated.
func SaveRun(db *sql.DB, r *Run) error {
	if db == nil {
		return errDBNotInitialized
	}
	if r == nil || r.ID == "" {
		return errors.New("run with id required")
	}

	stmt, err := db.Prepare(insertRunSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare run insert statement: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(
		r.ID,
		r.StartedAt.UTC().Format(timeFormat),
		r.FinishedAt.UTC().Format(timeFormat),
		r.Mode,
		r.Policy,
		r.Thresholds.HighRiskConfidence,
		r.Thresholds.ModerateRiskConfidence,
		r.Thresholds.HighRiskEntropy,
		r.GridSize,
		r.DetectionThreshold,
		r.Studies,
		r.Results,
		r.Skipped,
		boolToInt(r.Guarded),
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.ID, err)
	}
	return nil
}

// GetRun returns the run with id, or ErrNotFound.
func GetRun(db *sql.DB, id string) (*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	r, err := scanRun(db.QueryRow(selectRunSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return r, nil
}

// GetRuns returns up to limit runs, newest first.
func GetRuns(db *sql.DB, limit int) ([]*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.Query(selectRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// GetLatestRunID returns the id of the newest run, or ErrNotFound when the
// database has no runs.
func GetLatestRunID(db *sql.DB) (string, error) {
	if db == nil {
		return "", errDBNotInitialized
	}

	var id string
	if err := db.QueryRow(selectLatestRunIDSQL).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("latest run: %w", ErrNotFound)
		}
		return "", fmt.Errorf("failed to scan latest run: %w", err)
	}
	return id, nil
}

// resolveRunID returns id, or the latest run id when id is empty.
func resolveRunID(db *sql.DB, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	return GetLatestRunID(db)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var started, finished string
	var guarded int
	if err := s.Scan(
		&r.ID, &started, &finished, &r.Mode, &r.Policy,
		&r.Thresholds.HighRiskConfidence,
		&r.Thresholds.ModerateRiskConfidence,
		&r.Thresholds.HighRiskEntropy,
		&r.GridSize, &r.DetectionThreshold,
		&r.Studies, &r.Results, &r.Skipped, &guarded,
	); err != nil {
		return nil, err
	}
	r.Guarded = guarded != 0

	var err error
	if r.StartedAt, err = time.Parse(timeFormat, started); err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", started, err)
	}
	if r.FinishedAt, err = time.Parse(timeFormat, finished); err != nil {
		return nil, fmt.Errorf("invalid finished_at %q: %w", finished, err)
	}
	return &r, nil
}
