package crater

import (
	"fmt"
	"math"

	"github.com/jamesainslie/go-crater/internal/correlate"
)

// Mask is a per-pixel ring probability map stored row-major.
// Values are expected in [0, 1].
type Mask struct {
	Width  int
	Height int
	Pix    []float32
}

// NewMask allocates a zeroed width x height mask.
func NewMask(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// At returns the value at column x, row y.
func (m *Mask) At(x, y int) float32 {
	return m.Pix[y*m.Width+x]
}

// Set stores v at column x, row y.
func (m *Mask) Set(x, y int, v float32) {
	m.Pix[y*m.Width+x] = v
}

// Validate checks that the pixel buffer matches the declared dimensions.
func (m *Mask) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil mask", ErrMalformedMask)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrMalformedMask, m.Width, m.Height)
	}
	if len(m.Pix) != m.Width*m.Height {
		return fmt.Errorf("%w: %d pixels for %dx%d", ErrMalformedMask, len(m.Pix), m.Width, m.Height)
	}
	return nil
}

// CheckSize validates the mask and verifies it matches the source image size.
// Masks are never reshaped to fit.
func (m *Mask) CheckSize(width, height int) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Width != width || m.Height != height {
		return fmt.Errorf("%w: mask is %dx%d, image is %dx%d",
			ErrMalformedMask, m.Width, m.Height, width, height)
	}
	return nil
}

// Binarize returns a copy with every pixel >= threshold set to 1 and the rest to 0.
func (m *Mask) Binarize(threshold float32) *Mask {
	out := NewMask(m.Width, m.Height)
	for i, v := range m.Pix {
		if v >= threshold {
			out.Pix[i] = 1
		}
	}
	return out
}

// plane binarizes the mask into a correlation plane and reports how many
// pixels survived.
func (m *Mask) plane(threshold float32) (*correlate.Plane, int) {
	p := correlate.NewPlane(m.Width, m.Height)
	n := 0
	for i, v := range m.Pix {
		if v >= threshold {
			p.Data[i] = 1
			n++
		}
	}
	return p, n
}

// RenderRings draws each circle as an annulus of the given width onto a new
// width x height mask. A pixel belongs to a ring when its distance from the
// center is within ringWidth/2 of the radius.
func RenderRings(width, height int, circles []Circle, ringWidth int) *Mask {
	m := NewMask(width, height)
	for _, c := range circles {
		drawRing(m.Pix, width, height, c.X, c.Y, c.R, ringWidth)
	}
	return m
}

func drawRing(pix []float32, width, height int, cx, cy, r float64, ringWidth int) {
	half := float64(ringWidth) / 2
	reach := r + half
	x0 := max(0, int(math.Floor(cx-reach)))
	x1 := min(width-1, int(math.Ceil(cx+reach)))
	y0 := max(0, int(math.Floor(cy-reach)))
	y1 := min(height-1, int(math.Ceil(cy+reach)))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			d := math.Hypot(float64(x)-cx, float64(y)-cy)
			if math.Abs(d-r) <= half {
				pix[y*width+x] = 1
			}
		}
	}
}

// templateHalf is the distance from a ring template's center to its edge:
// the radius plus the outer half of the annulus, rounded up.
func templateHalf(r, ringWidth int) int {
	return r + (ringWidth+1)/2
}

// ringTemplate builds the square template for radius r, centered at
// (templateHalf, templateHalf).
func ringTemplate(r, ringWidth int) *correlate.Plane {
	half := templateHalf(r, ringWidth)
	side := 2*half + 1
	pix := make([]float32, side*side)
	drawRing(pix, side, side, float64(half), float64(half), float64(r), ringWidth)

	p := correlate.NewPlane(side, side)
	for i, v := range pix {
		p.Data[i] = float64(v)
	}
	return p
}
