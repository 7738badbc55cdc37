package data

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	stateQueries = map[string]string{
		"runs":       "SELECT COUNT(*) FROM run",
		"results":    "SELECT COUNT(*) FROM study_result",
		"incomplete": "SELECT COUNT(*) FROM study_result WHERE incomplete = 1",
		"skipped":    "SELECT COUNT(*) FROM study_skip",
		"studies":    "SELECT COUNT(DISTINCT study_id) FROM study_result",
	}
)

// GetDataState returns row counts across all runs.
func GetDataState(db *sql.DB) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	state := make(map[string]int64)
	for k, v := range stateQueries {
		stmt, err := db.Prepare(v)
		if err != nil {
			return nil, fmt.Errorf("error preparing %s statement: %w", k, err)
		}

		count, err := getCount(stmt)
		stmt.Close()
		if err != nil {
			return nil, fmt.Errorf("error getting %s count: %w", k, err)
		}
		state[k] = count
	}

	return state, nil
}

func getCount(stmt *sql.Stmt) (int64, error) {
	var count int64
	if err := stmt.QueryRow().Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan row: %w", err)
	}
	return count, nil
}
