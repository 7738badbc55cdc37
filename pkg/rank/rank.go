// Package rank orders study results into review lists.
package rank

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/result"
	"github.com/mchmarny/lstvscan/pkg/risk"
)

// Key is the primary sort key.
type Key int

const (
	// ConfidenceAsc puts the least confident studies first.
	ConfidenceAsc Key = iota
	// EntropyDesc puts the most diffuse studies first.
	EntropyDesc
)

func (k Key) String() string {
	if k == EntropyDesc {
		return "entropy"
	}
	return "confidence"
}

func ParseKey(s string) (Key, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "confidence", "confidence_asc":
		return ConfidenceAsc, nil
	case "entropy", "entropy_desc":
		return EntropyDesc, nil
	default:
		return 0, fmt.Errorf("unknown rank key: %q", s)
	}
}

// Ranker produces a deterministic order over study results. Ties on the
// primary key are broken by study id, then series id, ascending.
type Ranker struct {
	key   Key
	level level.Level
}

// New returns a ranker sorting on the given junction.
func New(k Key, l level.Level) *Ranker {
	return &Ranker{key: k, level: l}
}

func (r *Ranker) Key() Key { return r.key }

func (r *Ranker) Level() level.Level { return r.level }

func (r *Ranker) compare(a, b result.StudyResult) int {
	ra, _ := a.Level(r.level)
	rb, _ := b.Level(r.level)

	var c int
	switch r.key {
	case EntropyDesc:
		c = cmp.Compare(rb.Entropy, ra.Entropy)
	default:
		c = cmp.Compare(ra.PeakConfidence, rb.PeakConfidence)
	}
	if c != 0 {
		return c
	}
	if c = cmp.Compare(a.StudyID, b.StudyID); c != 0 {
		return c
	}
	return cmp.Compare(a.SeriesID, b.SeriesID)
}

// Rank returns a sorted copy of results. The input is not modified.
func (r *Ranker) Rank(results []result.StudyResult) []result.StudyResult {
	out := slices.Clone(results)
	slices.SortStableFunc(out, r.compare)
	return out
}

// All yields (position, result) pairs in ranked order, starting at 1. Each
// iteration re-ranks the same input, so the sequence can be restarted.
func (r *Ranker) All(results []result.StudyResult) iter.Seq2[int, result.StudyResult] {
	return func(yield func(int, result.StudyResult) bool) {
		for i, s := range r.Rank(results) {
			if !yield(i+1, s) {
				return
			}
		}
	}
}

// Top returns at most n results in ranked order. n <= 0 returns all.
func (r *Ranker) Top(results []result.StudyResult, n int) []result.StudyResult {
	ranked := r.Rank(results)
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// Candidate is one row of a review list.
type Candidate struct {
	Rank           int                `json:"rank" yaml:"rank"`
	StudyID        int64              `json:"study_id" yaml:"studyID"`
	SeriesID       int64              `json:"series_id" yaml:"seriesID"`
	Risk           risk.Label         `json:"risk" yaml:"risk"`
	L5S1Confidence float64            `json:"l5_s1_confidence" yaml:"l5s1Confidence"`
	L5S1Entropy    float64            `json:"l5_s1_entropy" yaml:"l5s1Entropy"`
	L4L5Entropy    float64            `json:"l4_l5_entropy" yaml:"l4l5Entropy"`
	Incomplete     bool               `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
	Result         result.StudyResult `json:"-" yaml:"-"`
}

// Candidates ranks results, labels them and keeps the first n.
func (r *Ranker) Candidates(results []result.StudyResult, c *risk.Classifier, n int) []Candidate {
	top := r.Top(results, n)
	out := make([]Candidate, 0, len(top))
	for i, s := range top {
		out = append(out, newCandidate(i+1, s, c.ClassifyStudy(s)))
	}
	return out
}

// TopByLabel returns, for each label, the first n results carrying it in
// ranked order.
func (r *Ranker) TopByLabel(results []result.StudyResult, c *risk.Classifier, n int) map[risk.Label][]Candidate {
	out := make(map[risk.Label][]Candidate, 3)
	for _, s := range r.Rank(results) {
		l := c.ClassifyStudy(s)
		if n > 0 && len(out[l]) >= n {
			continue
		}
		out[l] = append(out[l], newCandidate(len(out[l])+1, s, l))
	}
	return out
}

func newCandidate(pos int, s result.StudyResult, l risk.Label) Candidate {
	l5, _ := s.Level(level.L5S1)
	l4, _ := s.Level(level.L4L5)
	return Candidate{
		Rank:           pos,
		StudyID:        s.StudyID,
		SeriesID:       s.SeriesID,
		Risk:           l,
		L5S1Confidence: l5.PeakConfidence,
		L5S1Entropy:    l5.Entropy,
		L4L5Entropy:    l4.Entropy,
		Incomplete:     s.Incomplete(),
		Result:         s,
	}
}
