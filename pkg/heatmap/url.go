package heatmap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mchmarny/lstvscan/pkg/net"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
	"github.com/mchmarny/lstvscan/pkg/volume"
)

// URLSource fetches stacks served as <base>/<study_id>_<series_id>.json, the
// same layout DirSource reads.
type URLSource struct {
	base string
}

func NewURLSource(base string) *URLSource {
	return &URLSource{base: strings.TrimRight(base, "/")}
}

func (s *URLSource) URL(studyID, seriesID int64) string {
	return fmt.Sprintf("%s/%d_%d.json", s.base, studyID, seriesID)
}

func (s *URLSource) Heatmaps(ctx context.Context, v *volume.Volume) (uncertainty.Stack, error) {
	if v == nil {
		return uncertainty.Stack{}, errors.New("volume required")
	}

	u := s.URL(v.StudyID, v.SeriesID)
	var f StackFile
	if err := net.GetJSON(ctx, u, &f); err != nil {
		if errors.Is(err, net.ErrorURLNotFound) {
			return uncertainty.Stack{}, fmt.Errorf("%w: heatmap %s", volume.ErrUnavailable, u)
		}
		return uncertainty.Stack{}, fmt.Errorf("failed to fetch heatmap %s: %w", u, err)
	}
	return Decode(f.Channels)
}
