// Package correlate computes zero-mean normalized cross-correlation between
// an image and a smaller template.
package correlate

import "errors"

// ErrTemplateTooLarge indicates a template that does not fit inside the image.
var ErrTemplateTooLarge = errors.New("correlate: template larger than image")

// ErrEmptyImage indicates an image with no pixels.
var ErrEmptyImage = errors.New("correlate: empty image")

// Plane is a row-major grid of float64 samples.
type Plane struct {
	Width  int
	Height int
	Data   []float64
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Data: make([]float64, width*height)}
}

// At returns the sample at column x, row y.
func (p *Plane) At(x, y int) float64 {
	return p.Data[y*p.Width+x]
}

// Set stores v at column x, row y.
func (p *Plane) Set(x, y int, v float64) {
	p.Data[y*p.Width+x] = v
}

// Correlator prepares images for repeated template matching.
type Correlator interface {
	Prepare(img *Plane) (Target, error)
}

// Target is an image ready to be matched against templates.
//
// Match returns the valid-mode response of size
// (img.Width-tmpl.Width+1) x (img.Height-tmpl.Height+1). The sample at (x, y)
// scores the template placed with its top-left corner at (x, y), in [-1, 1].
// Windows with no variance score 0. A Target is not safe for concurrent use.
type Target interface {
	Match(tmpl *Plane) (*Plane, error)
	Close() error
}
