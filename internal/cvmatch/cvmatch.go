//go:build gocv

// Package cvmatch implements correlate.Correlator on OpenCV's MatchTemplate.
// It is compiled only with the gocv build tag because it links against OpenCV.
package cvmatch

import (
	"fmt"
	"math"

	"github.com/jamesainslie/go-crater/internal/correlate"

	"gocv.io/x/gocv"
)

// Correlator runs TM_CCOEFF_NORMED template matching in OpenCV.
type Correlator struct{}

// New returns the OpenCV correlator.
func New() Correlator {
	return Correlator{}
}

// Prepare copies img into a single-channel float Mat.
func (Correlator) Prepare(img *correlate.Plane) (correlate.Target, error) {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, correlate.ErrEmptyImage
	}
	mat, err := planeToMat(img)
	if err != nil {
		return nil, err
	}
	return &target{img: mat}, nil
}

type target struct {
	img gocv.Mat
}

func (t *target) Match(tmpl *correlate.Plane) (*correlate.Plane, error) {
	if tmpl == nil || tmpl.Width <= 0 || tmpl.Height <= 0 {
		return nil, correlate.ErrEmptyImage
	}
	if tmpl.Width > t.img.Cols() || tmpl.Height > t.img.Rows() {
		return nil, fmt.Errorf("%w: %dx%d template, %dx%d image",
			correlate.ErrTemplateTooLarge, tmpl.Width, tmpl.Height, t.img.Cols(), t.img.Rows())
	}

	tm, err := planeToMat(tmpl)
	if err != nil {
		return nil, err
	}
	defer tm.Close()

	result := gocv.NewMat()
	defer result.Close()
	noMask := gocv.NewMat()
	defer noMask.Close()

	gocv.MatchTemplate(t.img, tm, &result, gocv.TmCcoeffNormed, noMask)
	if result.Empty() {
		return nil, fmt.Errorf("cvmatch: empty match result")
	}

	out := correlate.NewPlane(result.Cols(), result.Rows())
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			v := float64(result.GetFloatAt(y, x))
			// Flat windows can come back as NaN or out of range.
			if math.IsNaN(v) || v > 1 || v < -1 {
				v = 0
			}
			out.Set(x, y, v)
		}
	}
	return out, nil
}

func (t *target) Close() error {
	return t.img.Close()
}

func planeToMat(p *correlate.Plane) (gocv.Mat, error) {
	if len(p.Data) != p.Width*p.Height {
		return gocv.Mat{}, fmt.Errorf("cvmatch: %d samples for %dx%d plane", len(p.Data), p.Width, p.Height)
	}
	mat := gocv.NewMatWithSize(p.Height, p.Width, gocv.MatTypeCV32F)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			mat.SetFloatAt(y, x, float32(p.At(x, y)))
		}
	}
	return mat, nil
}
