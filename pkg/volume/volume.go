// Package volume assembles the slice files of one study series in scan order.
package volume

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrUnavailable marks a series whose slices cannot be found or read. The
// caller skips the study and records the reason.
var ErrUnavailable = errors.New("volume unavailable")

const sliceExt = ".dcm"

// Volume is the ordered list of slice files for one series. Decoding the
// pixel data is left to the heatmap source.
type Volume struct {
	StudyID  int64    `json:"study_id" yaml:"studyID"`
	SeriesID int64    `json:"series_id" yaml:"seriesID"`
	Dir      string   `json:"dir" yaml:"dir"`
	Slices   []string `json:"slices" yaml:"slices"`
}

func (v *Volume) Len() int {
	if v == nil {
		return 0
	}
	return len(v.Slices)
}

// Loader returns the volume of a study series or an error wrapping
// ErrUnavailable.
type Loader interface {
	Load(ctx context.Context, studyID, seriesID int64) (*Volume, error)
}

// DirLoader reads volumes laid out as <root>/<study_id>/<series_id>/*.dcm.
type DirLoader struct {
	root string
}

func NewDirLoader(root string) *DirLoader {
	return &DirLoader{root: root}
}

func (l *DirLoader) Root() string {
	return l.root
}

// Load lists the slice files of the series in natural order.
func (l *DirLoader) Load(ctx context.Context, studyID, seriesID int64) (*Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(l.root, strconv.FormatInt(studyID, 10), strconv.FormatInt(seriesID, 10))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), sliceExt) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no %s slices in %s", ErrUnavailable, sliceExt, dir)
	}

	SortNatural(names)
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}

	return &Volume{
		StudyID:  studyID,
		SeriesID: seriesID,
		Dir:      dir,
		Slices:   paths,
	}, nil
}

// IDLoader returns slice-less volumes that only carry the study and series
// ids. It serves heatmap sources that do not read DICOM pixel data.
type IDLoader struct{}

func (IDLoader) Load(ctx context.Context, studyID, seriesID int64) (*Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Volume{StudyID: studyID, SeriesID: seriesID}, nil
}
