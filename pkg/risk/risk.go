// Package risk labels studies from their lumbosacral junction uncertainty.
package risk

import (
	"fmt"
	"strings"
)

// Label is the review priority of a study.
type Label int

const (
	Low Label = iota
	Moderate
	High
)

var labelNames = [...]string{"low", "moderate", "high"}

// Labels returns all labels from highest to lowest priority.
func Labels() []Label {
	return []Label{High, Moderate, Low}
}

func (l Label) String() string {
	switch l {
	case Low:
		return "Low Risk"
	case Moderate:
		return "Moderate Risk"
	case High:
		return "High Risk"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

func (l Label) MarshalText() ([]byte, error) {
	if l < Low || l > High {
		return nil, fmt.Errorf("invalid risk label: %d", int(l))
	}
	return []byte(labelNames[l]), nil
}

func (l *Label) UnmarshalText(b []byte) error {
	v, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseLabel accepts "high", "High Risk", "moderate" etc.
func ParseLabel(s string) (Label, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, " risk")
	for i, n := range labelNames {
		if n == v {
			return Label(i), nil
		}
	}
	return 0, fmt.Errorf("unknown risk label: %q", s)
}

// ThresholdConfig holds the classifier cutoffs for one run. It is passed by
// value and never modified by the classifier.
type ThresholdConfig struct {
	HighRiskConfidence     float64 `json:"high_risk_confidence" yaml:"high_risk_confidence" validate:"gt=0,lte=1"`
	ModerateRiskConfidence float64 `json:"moderate_risk_confidence" yaml:"moderate_risk_confidence" validate:"gt=0,lte=1,gtefield=HighRiskConfidence"`
	HighRiskEntropy        float64 `json:"high_risk_entropy" yaml:"high_risk_entropy" validate:"gt=0"`
}

// DefaultThresholds targets roughly a 15-25% review rate on the RSNA
// validation split.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		HighRiskConfidence:     0.97,
		ModerateRiskConfidence: 0.985,
		HighRiskEntropy:        5.2,
	}
}
