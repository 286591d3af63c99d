// Package bench evaluates crater extraction over a directory of catalogued
// lunar tiles.
//
// A dataset directory holds, per tile, a catalog lola_<id>.csv and either a
// predicted mask lola_<id>_mask.<ext>, a DEM image lola_<id>.<ext>, or both.
// Images are only needed when masks must be predicted by a model; when both
// exist the mask is checked against the image size.
package bench

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jamesainslie/go-crater"
	"github.com/jamesainslie/go-crater/catalog"
	"github.com/jamesainslie/go-crater/internal/imageio"
)

// ErrNoModel is returned when a tile has no mask and no detector was given.
var ErrNoModel = errors.New("bench: tile has no mask and no detector was provided")

// Entry is one tile of a dataset. Image or Mask may be empty.
type Entry struct {
	ID      int
	Catalog string
	Image   string
	Mask    string
}

// Name returns the tile name used in logs and reports.
func (e Entry) Name() string {
	return strings.TrimSuffix(catalog.FileName(e.ID), ".csv")
}

// LoadDataset scans dir for tiles. Catalogs without a mask or image are
// skipped. Entries are ordered by id.
func LoadDataset(dir string) ([]Entry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	byStem := make(map[string]string, len(files))
	for _, f := range files {
		if f.IsDir() || !imageio.IsSupportedFormat(f.Name()) {
			continue
		}
		stem := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
		byStem[stem] = filepath.Join(dir, f.Name())
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		id, ok := catalog.ParseFileName(f.Name())
		if !ok {
			continue
		}
		e := Entry{ID: id, Catalog: filepath.Join(dir, f.Name())}
		e.Image = byStem[e.Name()]
		e.Mask = byStem[e.Name()+"_mask"]
		if e.Image == "" && e.Mask == "" {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Predictor turns an image into a ring probability mask. *crater.Detector
// implements it.
type Predictor interface {
	Predict(ctx context.Context, img *crater.Mask) (*crater.Mask, error)
}

// LoadSample reads the tile's catalog and mask. Tiles without a mask are
// run through pred. The catalog is filtered with bounds, whose size is taken
// from the tile when zero.
func (e Entry) LoadSample(ctx context.Context, bounds catalog.Bounds, pred Predictor) (crater.Sample, error) {
	s := crater.Sample{ID: e.Name()}

	var err error
	switch {
	case e.Mask != "":
		if s.Mask, err = imageio.Load(e.Mask); err != nil {
			return s, err
		}
		if e.Image != "" {
			if s.Width, s.Height, err = imageSize(e.Image); err != nil {
				return s, err
			}
		}
	case pred == nil:
		return s, fmt.Errorf("%s: %w", s.ID, ErrNoModel)
	default:
		img, err := imageio.Load(e.Image)
		if err != nil {
			return s, err
		}
		if s.Mask, err = pred.Predict(ctx, img); err != nil {
			return s, fmt.Errorf("%s: predicting mask: %w", s.ID, err)
		}
		s.Width, s.Height = img.Width, img.Height
	}

	if bounds.Width == 0 && bounds.Height == 0 {
		bounds.Width, bounds.Height = s.Mask.Width, s.Mask.Height
		if s.Width > 0 {
			bounds.Width, bounds.Height = s.Width, s.Height
		}
	}

	truth, err := catalog.Load(e.Catalog)
	if err != nil {
		return s, err
	}
	s.Truth = catalog.Filter(truth, bounds)
	return s, nil
}

// LoadSamples loads every entry in order, stopping at the first failure.
func LoadSamples(ctx context.Context, entries []Entry, bounds catalog.Bounds, pred Predictor) ([]crater.Sample, error) {
	samples := make([]crater.Sample, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := e.LoadSample(ctx, bounds, pred)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", e.Name(), err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}
