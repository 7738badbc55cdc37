// Package guard keeps studies the localizer may have been trained on out of
// the uncertainty statistics.
package guard

import (
	"log/slog"

	"github.com/mchmarny/lstvscan/pkg/config"
)

// Guard filters candidate study ids against the held-out validation set.
type Guard struct {
	valid     map[int64]struct{}
	mandatory bool
	logger    *slog.Logger
}

// New builds a guard. When mandatory is set an empty validation set is a
// configuration error. When it is not, an empty set disables filtering and a
// warning is logged.
func New(validIDs []int64, mandatory bool, logger *slog.Logger) (*Guard, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(validIDs) == 0 {
		if mandatory {
			return nil, &config.ConfigurationError{
				Field:  "valid_ids",
				Reason: "validation study ids are required when leakage protection is mandatory",
			}
		}
		logger.Warn("no validation ids, run is unguarded and results may include training data")
	}

	g := &Guard{
		valid:     make(map[int64]struct{}, len(validIDs)),
		mandatory: mandatory,
		logger:    logger,
	}
	for _, id := range validIDs {
		g.valid[id] = struct{}{}
	}
	return g, nil
}

// Enabled reports whether the guard filters anything.
func (g *Guard) Enabled() bool {
	return len(g.valid) > 0
}

func (g *Guard) Size() int {
	return len(g.valid)
}

func (g *Guard) Allows(id int64) bool {
	if !g.Enabled() {
		return true
	}
	_, ok := g.valid[id]
	return ok
}

// Filter returns the ids present in the validation set, in input order.
func (g *Guard) Filter(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if g.Allows(id) {
			out = append(out, id)
		}
	}
	if g.Enabled() {
		g.logger.Info("validation set filter applied",
			"retained", len(out), "excluded", len(ids)-len(out), "validation_ids", len(g.valid))
	}
	return out
}
