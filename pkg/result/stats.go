package result

import (
	"github.com/mchmarny/lstvscan/pkg/level"
	"gonum.org/v1/gonum/stat"
)

// LevelStats summarizes one junction across a run. Std values are sample
// standard deviations and are zero for fewer than two studies.
type LevelStats struct {
	Level              level.Level `json:"level" yaml:"level"`
	Count              int         `json:"count" yaml:"count"`
	ConfidenceMean     float64     `json:"confidence_mean" yaml:"confidenceMean"`
	ConfidenceStd      float64     `json:"confidence_std" yaml:"confidenceStd"`
	EntropyMean        float64     `json:"entropy_mean" yaml:"entropyMean"`
	EntropyStd         float64     `json:"entropy_std" yaml:"entropyStd"`
	SpatialEntropyMean float64     `json:"spatial_entropy_mean" yaml:"spatialEntropyMean"`
}

// Summarize computes per-junction statistics. Padded sentinels are ignored.
func Summarize(results []StudyResult) []LevelStats {
	out := make([]LevelStats, 0, level.Count)
	for _, l := range level.All() {
		var conf, ent, spat []float64
		for _, r := range results {
			rec, ok := r.Level(l)
			if !ok {
				continue
			}
			conf = append(conf, rec.PeakConfidence)
			ent = append(ent, rec.Entropy)
			spat = append(spat, rec.SpatialEntropy)
		}

		s := LevelStats{Level: l, Count: len(conf)}
		if len(conf) > 0 {
			s.ConfidenceMean, s.ConfidenceStd = meanStd(conf)
			s.EntropyMean, s.EntropyStd = meanStd(ent)
			s.SpatialEntropyMean = stat.Mean(spat, nil)
		}
		out = append(out, s)
	}
	return out
}

func meanStd(x []float64) (float64, float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}
