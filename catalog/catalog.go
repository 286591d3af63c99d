// Package catalog reads ground-truth crater catalogs and filters them to the
// craters an image can be scored against.
//
// A catalog is a CSV file with a header row. The columns "x" and "y" hold the
// crater center in pixels and "Diameter (pix)" its diameter; other columns
// are ignored.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/jamesainslie/go-crater"
)

// Column names in catalog files.
const (
	ColumnX        = "x"
	ColumnY        = "y"
	ColumnDiameter = "Diameter (pix)"
)

// ErrMissingColumn indicates a catalog without one of the required columns.
var ErrMissingColumn = errors.New("catalog: missing column")

// FileName returns the catalog file name for an image id, e.g. lola_00042.csv.
func FileName(id int) string {
	return fmt.Sprintf("lola_%05d.csv", id)
}

// ParseFileName extracts the image id from a catalog file name.
func ParseFileName(name string) (int, bool) {
	if !strings.HasPrefix(name, "lola_") || !strings.HasSuffix(name, ".csv") {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "lola_"), ".csv"))
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// Read parses a catalog. Diameters are converted to radii.
func Read(r io.Reader) ([]crater.Circle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty catalog", ErrMissingColumn)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	idx := make([]int, 3)
	for i, name := range []string{ColumnX, ColumnY, ColumnDiameter} {
		c, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		idx[i] = c
	}

	var circles []crater.Circle
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}

		var v [3]float64
		for i, c := range idx {
			if c >= len(rec) {
				return nil, fmt.Errorf("line %d: %d fields, need column %d", line, len(rec), c+1)
			}
			v[i], err = strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %q: %w", line, header[c], err)
			}
		}
		circles = append(circles, crater.Circle{X: v[0], Y: v[1], R: v[2] / 2})
	}
	return circles, nil
}

// Load reads the catalog at path.
func Load(path string) ([]crater.Circle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	circles, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return circles, nil
}

// Bounds selects the catalog craters that can be scored on one image.
type Bounds struct {
	Width  int
	Height int
	// MinRadius and MaxRadius are exclusive radius limits in pixels.
	MinRadius float64
	MaxRadius float64
	// Cut scales the radius used for the inside-the-image test; 1 drops
	// every crater that is partially cut off.
	Cut float64
}

// DefaultBounds returns the bounds used for lunar DEM tiles of the given size:
// radii strictly inside the default extraction range (2 to 50 pixels) and no
// partially visible craters.
func DefaultBounds(width, height int) Bounds {
	ep := crater.DefaultExtractParams()
	return Bounds{
		Width:     width,
		Height:    height,
		MinRadius: float64(ep.MinRadius),
		MaxRadius: float64(ep.MaxRadius),
		Cut:       1,
	}
}

// Contains reports whether c passes the bounds.
func (b Bounds) Contains(c crater.Circle) bool {
	return c.R > b.MinRadius && c.R < b.MaxRadius && c.Inside(b.Width, b.Height, b.Cut)
}

// Filter returns the circles inside b, preserving order.
func Filter(circles []crater.Circle, b Bounds) []crater.Circle {
	return lo.Filter(circles, func(c crater.Circle, _ int) bool {
		return b.Contains(c)
	})
}

// Usable reports whether a filtered catalog has enough craters to score.
func Usable(circles []crater.Circle) bool {
	return len(circles) >= crater.MinGroundTruth
}
