package result

import "fmt"

// SkipKind classifies why a study did not produce a result.
type SkipKind string

const (
	// SkipUnavailable is a missing volume, series or heatmap.
	SkipUnavailable SkipKind = "unavailable"
	// SkipIncomplete is a study excluded for missing junctions.
	SkipIncomplete SkipKind = "incomplete"
	// SkipFailed is any other per-study error.
	SkipFailed SkipKind = "failed"
)

// Skip is the trace left by a study that was not scored.
type Skip struct {
	StudyID  int64    `json:"study_id" yaml:"studyID"`
	SeriesID int64    `json:"series_id" yaml:"seriesID"`
	Kind     SkipKind `json:"kind" yaml:"kind"`
	Reason   string   `json:"reason" yaml:"reason"`
}

func (s Skip) String() string {
	return fmt.Sprintf("%d/%d %s: %s", s.StudyID, s.SeriesID, s.Kind, s.Reason)
}
