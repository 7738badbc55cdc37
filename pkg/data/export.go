package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/result"
)

// ExportColumns returns the canonical results table header: the key columns
// followed by confidence, entropy and spatial entropy of every junction.
func ExportColumns() []string {
	cols := []string{"study_id", "series_id"}
	for _, l := range level.All() {
		cols = append(cols, l.Key()+"_confidence", l.Key()+"_entropy", l.Key()+"_spatial_entropy")
	}
	return cols
}

// ExportCSV writes results with the canonical columns. Junctions without a
// computed record are left empty.
func ExportCSV(w io.Writer, results []result.StudyResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns()); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, 0, 2+level.Count*3)
	for _, r := range results {
		row = row[:0]
		row = append(row, strconv.FormatInt(r.StudyID, 10), strconv.FormatInt(r.SeriesID, 10))
		for _, l := range level.All() {
			rec, ok := r.Level(l)
			if !ok {
				row = append(row, "", "", "")
				continue
			}
			row = append(row, formatFloat(rec.PeakConfidence), formatFloat(rec.Entropy), formatFloat(rec.SpatialEntropy))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", r.Key(), err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
