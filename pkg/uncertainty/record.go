// Package uncertainty turns per-junction probability heatmaps into scalar
// epistemic uncertainty metrics.
package uncertainty

import (
	"github.com/mchmarny/lstvscan/pkg/level"
)

// Point is the detected landmark location in heatmap pixel coordinates.
// Detected is false when no pixel cleared the detection threshold.
type Point struct {
	Row      int  `json:"row" yaml:"row"`
	Col      int  `json:"col" yaml:"col"`
	Detected bool `json:"detected" yaml:"detected"`
}

// Record holds the uncertainty metrics of one junction of one study.
// It is a value type; copies never share state.
type Record struct {
	Level                level.Level `json:"level" yaml:"level"`
	PeakConfidence       float64     `json:"peak_confidence" yaml:"peakConfidence"`
	Entropy              float64     `json:"entropy" yaml:"entropy"`
	SpatialEntropy       float64     `json:"spatial_entropy" yaml:"spatialEntropy"`
	PixelsAboveThreshold int         `json:"pixels_above_threshold" yaml:"pixelsAboveThreshold"`
	Point                Point       `json:"point" yaml:"point"`
}
