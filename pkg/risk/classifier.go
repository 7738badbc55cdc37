package risk

import (
	"fmt"
	"math"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/result"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
)

// Classify maps the L4-L5 and L5-S1 metrics to a label. L5-S1 drives the
// decision; L4-L5 is accepted for context and does not change the outcome.
//
//	High     l5s1 confidence < high, or l5s1 entropy > high entropy
//	Moderate high <= l5s1 confidence < moderate
//	Low      otherwise
func Classify(l4l5, l5s1 uncertainty.Record, cfg ThresholdConfig) Label {
	conf, ent := l5s1.PeakConfidence, l5s1.Entropy
	if conf < cfg.HighRiskConfidence || ent > cfg.HighRiskEntropy {
		return High
	}
	if conf >= cfg.HighRiskConfidence && conf < cfg.ModerateRiskConfidence {
		return Moderate
	}
	return Low
}

// Classifier binds a validated ThresholdConfig. It keeps no history between
// calls.
type Classifier struct {
	cfg ThresholdConfig
}

// NewClassifier checks the basic ordering of the cutoffs. Full config
// validation happens in the config package before a run starts.
func NewClassifier(cfg ThresholdConfig) (*Classifier, error) {
	for name, v := range map[string]float64{
		"high_risk_confidence":     cfg.HighRiskConfidence,
		"moderate_risk_confidence": cfg.ModerateRiskConfidence,
		"high_risk_entropy":        cfg.HighRiskEntropy,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("threshold %s is not finite", name)
		}
	}
	if cfg.ModerateRiskConfidence < cfg.HighRiskConfidence {
		return nil, fmt.Errorf("moderate_risk_confidence (%v) below high_risk_confidence (%v)",
			cfg.ModerateRiskConfidence, cfg.HighRiskConfidence)
	}
	return &Classifier{cfg: cfg}, nil
}

// Thresholds returns a copy of the bound cutoffs.
func (c *Classifier) Thresholds() ThresholdConfig {
	return c.cfg
}

// ClassifyStudy labels a study. A study lacking its L5-S1 record, which can
// only happen for padded incomplete results, is treated as a zero-confidence
// junction and therefore lands in High.
func (c *Classifier) ClassifyStudy(r result.StudyResult) Label {
	l4l5, _ := r.Level(level.L4L5)
	l5s1, _ := r.Level(level.L5S1)
	return Classify(l4l5, l5s1, c.cfg)
}

// Labeled is a study result with its assigned label.
type Labeled struct {
	Result result.StudyResult `json:"result" yaml:"result"`
	Label  Label              `json:"risk" yaml:"risk"`
}

// ClassifyAll labels every result, preserving input order.
func (c *Classifier) ClassifyAll(results []result.StudyResult) []Labeled {
	out := make([]Labeled, len(results))
	for i, r := range results {
		out[i] = Labeled{Result: r, Label: c.ClassifyStudy(r)}
	}
	return out
}
