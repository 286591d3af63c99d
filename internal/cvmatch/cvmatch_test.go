//go:build gocv

package cvmatch

import (
	"math"
	"testing"

	"github.com/jamesainslie/go-crater/internal/correlate"
)

func ringPlane(w, h, cx, cy, r int) *correlate.Plane {
	p := correlate.NewPlane(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x-cx), float64(y-cy))
			if math.Abs(d-float64(r)) <= 1 {
				p.Set(x, y, 1)
			}
		}
	}
	return p
}

func TestCorrelator_AgreesWithFFT(t *testing.T) {
	img := ringPlane(64, 48, 30, 20, 9)
	tmpl := ringPlane(23, 23, 11, 11, 9)

	cv, err := New().Prepare(img)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	defer func() { _ = cv.Close() }()

	fft, err := correlate.NewFFT().Prepare(img)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	got, err := cv.Match(tmpl)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	want, err := fft.Match(tmpl)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	if got.Width != want.Width || got.Height != want.Height {
		t.Fatalf("response is %dx%d, want %dx%d", got.Width, got.Height, want.Width, want.Height)
	}
	// float32 accumulation in OpenCV
	for i := range want.Data {
		if math.Abs(got.Data[i]-want.Data[i]) > 1e-3 {
			t.Fatalf("sample %d = %v, want %v", i, got.Data[i], want.Data[i])
		}
	}
	if v := got.At(30-11, 20-11); math.Abs(v-1) > 1e-3 {
		t.Errorf("score at ring center = %v, want 1", v)
	}
}
