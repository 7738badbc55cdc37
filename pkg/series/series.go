// Package series reads the series-description table and picks the series
// each study is scored on.
package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	colStudy       = "study_id"
	colSeries      = "series_id"
	colDescription = "series_description"
)

// Description is one row of the series-description table.
type Description struct {
	StudyID     int64  `json:"study_id" yaml:"studyID"`
	SeriesID    int64  `json:"series_id" yaml:"seriesID"`
	Description string `json:"series_description" yaml:"seriesDescription"`
}

// Selection is the series chosen for a study.
type Selection struct {
	StudyID     int64  `json:"study_id" yaml:"studyID"`
	SeriesID    int64  `json:"series_id" yaml:"seriesID"`
	Description string `json:"series_description,omitempty" yaml:"seriesDescription,omitempty"`
}

// ReadFile reads the table at path.
func ReadFile(path string) ([]Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open series file %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a CSV table with a header row naming at least study_id,
// series_id and series_description, in any column order.
func Read(r io.Reader) ([]Description, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("series file is empty")
		}
		return nil, fmt.Errorf("failed to read series header: %w", err)
	}

	idx := map[string]int{colStudy: -1, colSeries: -1, colDescription: -1}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := idx[h]; ok {
			idx[h] = i
		}
	}
	for k, v := range idx {
		if v < 0 {
			return nil, fmt.Errorf("series file missing column %q", k)
		}
	}

	var list []Description
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read series row %d: %w", line, err)
		}

		study, err := strconv.ParseInt(strings.TrimSpace(rec[idx[colStudy]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid study_id on row %d: %w", line, err)
		}
		series, err := strconv.ParseInt(strings.TrimSpace(rec[idx[colSeries]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid series_id on row %d: %w", line, err)
		}
		list = append(list, Description{
			StudyID:     study,
			SeriesID:    series,
			Description: strings.TrimSpace(rec[idx[colDescription]]),
		})
	}
	return list, nil
}

// IsSagittalT2 reports whether a description names a sagittal T2 sequence.
func IsSagittalT2(desc string) bool {
	d := strings.ToLower(desc)
	return strings.Contains(d, "sagittal") && strings.Contains(d, "t2")
}

// SelectSagittalT2 keeps the first sagittal T2 series of each study. Studies
// appear in the order of their first matching row.
func SelectSagittalT2(list []Description) []Selection {
	return Select(list, IsSagittalT2)
}

// Select keeps the first series of each study whose description matches.
func Select(list []Description, match func(string) bool) []Selection {
	seen := make(map[int64]struct{})
	var out []Selection
	for _, d := range list {
		if !match(d.Description) {
			continue
		}
		if _, ok := seen[d.StudyID]; ok {
			continue
		}
		seen[d.StudyID] = struct{}{}
		out = append(out, Selection(d))
	}
	return out
}

// StudyIDs returns the study ids of the selections in order.
func StudyIDs(sel []Selection) []int64 {
	ids := make([]int64, len(sel))
	for i, s := range sel {
		ids[i] = s.StudyID
	}
	return ids
}
