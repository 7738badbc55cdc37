package pipeline

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/mchmarny/lstvscan/pkg/guard"
	"github.com/mchmarny/lstvscan/pkg/series"
)

// Mode bounds how many studies a run touches.
type Mode string

const (
	// ModeTrial scores a seeded random sample.
	ModeTrial Mode = "trial"
	// ModeDebug scores a single study.
	ModeDebug Mode = "debug"
	// ModeProd scores every retained study.
	ModeProd Mode = "prod"
)

func Modes() []Mode {
	return []Mode{ModeTrial, ModeDebug, ModeProd}
}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Modes(), m) {
		return m, nil
	}
	return "", fmt.Errorf("unknown mode: %q (want trial, debug or prod)", s)
}

// Selector picks the studies of a run.
type Selector struct {
	Mode      Mode
	TrialSize int
	Seed      uint64
	// StudyID pins the debug study. Zero picks the first one.
	StudyID int64
}

// Select applies the mode to already filtered selections. The trial sample
// keeps input order so it is reproducible for a given seed and input.
func (s Selector) Select(sel []series.Selection) ([]series.Selection, error) {
	switch s.Mode {
	case ModeProd:
		return slices.Clone(sel), nil
	case ModeDebug:
		if len(sel) == 0 {
			return nil, nil
		}
		if s.StudyID == 0 {
			return sel[:1:1], nil
		}
		i := slices.IndexFunc(sel, func(x series.Selection) bool { return x.StudyID == s.StudyID })
		if i < 0 {
			return nil, fmt.Errorf("study %d not among the %d retained studies", s.StudyID, len(sel))
		}
		return []series.Selection{sel[i]}, nil
	case ModeTrial:
		n := s.TrialSize
		if n <= 0 || n >= len(sel) {
			return slices.Clone(sel), nil
		}
		r := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
		idx := r.Perm(len(sel))[:n]
		slices.Sort(idx)
		out := make([]series.Selection, n)
		for i, j := range idx {
			out[i] = sel[j]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown mode: %q", s.Mode)
	}
}

// SelectStudies filters the selections through the guard and applies the
// mode.
func SelectStudies(g *guard.Guard, s Selector, sel []series.Selection) ([]series.Selection, error) {
	retained := sel
	if g != nil {
		keep := make(map[int64]struct{})
		for _, id := range g.Filter(series.StudyIDs(sel)) {
			keep[id] = struct{}{}
		}
		retained = make([]series.Selection, 0, len(keep))
		for _, x := range sel {
			if _, ok := keep[x.StudyID]; ok {
				retained = append(retained, x)
			}
		}
	}

	out, err := s.Select(retained)
	if err != nil {
		return nil, err
	}
	slog.Info("studies selected", "mode", string(s.Mode), "available", len(sel), "retained", len(retained), "selected", len(out))
	return out, nil
}
