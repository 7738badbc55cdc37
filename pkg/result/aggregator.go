package result

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
)

// Policy decides what happens to a study that lacks one or more junctions.
type Policy int

const (
	// PolicyExclude drops the study from classification and ranking.
	PolicyExclude Policy = iota
	// PolicyPad keeps the study with zero-valued sentinels, flagged incomplete.
	PolicyPad
)

func (p Policy) String() string {
	if p == PolicyPad {
		return "pad"
	}
	return "exclude"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exclude":
		return PolicyExclude, nil
	case "pad":
		return PolicyPad, nil
	default:
		return 0, fmt.Errorf("unknown incomplete policy: %q", s)
	}
}

// IncompleteError reports a study excluded for missing junctions.
type IncompleteError struct {
	StudyID  int64
	SeriesID int64
	Missing  []level.Level
}

func (e *IncompleteError) Error() string {
	names := make([]string, len(e.Missing))
	for i, l := range e.Missing {
		names[i] = l.String()
	}
	return fmt.Sprintf("study %d/%d incomplete, missing %s", e.StudyID, e.SeriesID, strings.Join(names, ","))
}

// IsIncomplete reports whether err is an IncompleteError.
func IsIncomplete(err error) bool {
	var ie *IncompleteError
	return errors.As(err, &ie)
}

// Aggregator combines junction records into a StudyResult under a fixed
// incomplete policy.
type Aggregator struct {
	policy Policy
	logger *slog.Logger
}

func NewAggregator(p Policy, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{policy: p, logger: logger}
}

func (a *Aggregator) Policy() Policy {
	return a.policy
}

// Aggregate returns a complete result, a padded result flagged incomplete,
// or an *IncompleteError, depending on the policy. Every incomplete study is
// logged.
func (a *Aggregator) Aggregate(studyID, seriesID int64, records map[level.Level]uncertainty.Record) (StudyResult, error) {
	r := New(studyID, seriesID, records)
	missing := r.Missing()
	if len(missing) == 0 {
		return r, nil
	}

	if a.policy == PolicyPad {
		a.logger.Warn("padding incomplete study",
			"study_id", studyID, "series_id", seriesID, "missing", len(missing))
		return r, nil
	}

	a.logger.Warn("excluding incomplete study",
		"study_id", studyID, "series_id", seriesID, "missing", len(missing))
	return StudyResult{}, &IncompleteError{StudyID: studyID, SeriesID: seriesID, Missing: missing}
}
