package heatmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mchmarny/lstvscan/pkg/uncertainty"
	"github.com/mchmarny/lstvscan/pkg/volume"
	"gonum.org/v1/gonum/mat"
)

// StackFile is the on-disk form of a precomputed stack.
type StackFile struct {
	StudyID  int64          `json:"study_id"`
	SeriesID int64          `json:"series_id"`
	Channels [][][]float64 `json:"channels"`
}

// DirSource reads stacks written by the localizer as
// <dir>/<study_id>_<series_id>.json.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Path(studyID, seriesID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d_%d.json", studyID, seriesID))
}

func (s *DirSource) Heatmaps(ctx context.Context, v *volume.Volume) (uncertainty.Stack, error) {
	if err := ctx.Err(); err != nil {
		return uncertainty.Stack{}, err
	}
	if v == nil {
		return uncertainty.Stack{}, errors.New("volume required")
	}

	path := s.Path(v.StudyID, v.SeriesID)
	b, err := os.ReadFile(path)
	if err != nil {
		return uncertainty.Stack{}, fmt.Errorf("%w: heatmap %s: %w", volume.ErrUnavailable, path, err)
	}

	var f StackFile
	if err := json.Unmarshal(b, &f); err != nil {
		return uncertainty.Stack{}, fmt.Errorf("failed to decode heatmap %s: %w", path, err)
	}
	return Decode(f.Channels)
}

// Decode turns nested (channel, row, col) slices into a Stack. Rows must be
// rectangular.
func Decode(channels [][][]float64) (uncertainty.Stack, error) {
	ms := make([]mat.Matrix, 0, len(channels))
	for ci, ch := range channels {
		if len(ch) == 0 || len(ch[0]) == 0 {
			return uncertainty.Stack{}, fmt.Errorf("%w: channel %d is empty", uncertainty.ErrInvalidHeatmap, ci)
		}
		rows, cols := len(ch), len(ch[0])
		data := make([]float64, 0, rows*cols)
		for ri, row := range ch {
			if len(row) != cols {
				return uncertainty.Stack{}, fmt.Errorf("%w: channel %d row %d has %d values, want %d",
					uncertainty.ErrInvalidHeatmap, ci, ri, len(row), cols)
			}
			data = append(data, row...)
		}
		ms = append(ms, mat.NewDense(rows, cols, data))
	}
	return uncertainty.NewStack(ms...)
}

// Encode is the inverse of Decode.
func Encode(s uncertainty.Stack) [][][]float64 {
	r, c := s.Dims()
	out := make([][][]float64, s.Len())
	for i := range out {
		m := s.Channel(i)
		out[i] = make([][]float64, r)
		for ri := range r {
			out[i][ri] = make([]float64, c)
			for ci := range c {
				out[i][ri][ci] = m.At(ri, ci)
			}
		}
	}
	return out
}

// Write stores a stack in the layout DirSource reads.
func (s *DirSource) Write(studyID, seriesID int64, st uncertainty.Stack) error {
	b, err := json.Marshal(StackFile{StudyID: studyID, SeriesID: seriesID, Channels: Encode(st)})
	if err != nil {
		return fmt.Errorf("failed to encode heatmap: %w", err)
	}
	if err := os.WriteFile(s.Path(studyID, seriesID), b, 0600); err != nil {
		return fmt.Errorf("failed to write heatmap: %w", err)
	}
	return nil
}
