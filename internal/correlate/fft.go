package correlate

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// minDenominator is the smallest normalization term treated as non-zero.
const minDenominator = 1e-8

// FFT correlates in the frequency domain and normalizes with integral images.
type FFT struct{}

// NewFFT returns the FFT correlator.
func NewFFT() FFT {
	return FFT{}
}

// Prepare transforms img once so that every template reuses its spectrum.
func (FFT) Prepare(img *Plane) (Target, error) {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, ErrEmptyImage
	}
	if len(img.Data) != img.Width*img.Height {
		return nil, fmt.Errorf("correlate: %d samples for %dx%d image", len(img.Data), img.Width, img.Height)
	}

	t := &fftTarget{
		width:  img.Width,
		height: img.Height,
		rows:   fourier.NewCmplxFFT(img.Width),
		cols:   fourier.NewCmplxFFT(img.Height),
		sum:    integral(img, false),
		sumSq:  integral(img, true),
	}

	t.spectrum = make([]complex128, len(img.Data))
	for i, v := range img.Data {
		t.spectrum[i] = complex(v, 0)
	}
	t.transform(t.spectrum)

	return t, nil
}

type fftTarget struct {
	width, height int
	rows, cols    *fourier.CmplxFFT
	spectrum      []complex128
	sum, sumSq    []float64
}

// Match computes the valid-mode NCC of tmpl against the prepared image.
func (t *fftTarget) Match(tmpl *Plane) (*Plane, error) {
	if tmpl == nil || tmpl.Width <= 0 || tmpl.Height <= 0 {
		return nil, ErrEmptyImage
	}
	if tmpl.Width > t.width || tmpl.Height > t.height {
		return nil, fmt.Errorf("%w: %dx%d template, %dx%d image",
			ErrTemplateTooLarge, tmpl.Width, tmpl.Height, t.width, t.height)
	}

	out := NewPlane(t.width-tmpl.Width+1, t.height-tmpl.Height+1)

	n := float64(tmpl.Width * tmpl.Height)
	mean := floats.Sum(tmpl.Data) / n

	// Zero-mean template, zero padded to the image size. Padding to the image
	// size is enough: valid offsets never wrap around.
	buf := make([]complex128, t.width*t.height)
	var energy float64
	for y := 0; y < tmpl.Height; y++ {
		for x := 0; x < tmpl.Width; x++ {
			v := tmpl.At(x, y) - mean
			buf[y*t.width+x] = complex(v, 0)
			energy += v * v
		}
	}
	if energy == 0 {
		return out, nil
	}
	t.transform(buf)

	// corr = IFFT(I * conj(T)). The inverse is taken as conj(FFT(conj(X)))/N;
	// only the real part is kept, so the outer conjugate is skipped.
	for i := range buf {
		buf[i] = cmplx.Conj(t.spectrum[i]) * buf[i]
	}
	t.transform(buf)
	scale := 1 / float64(len(buf))

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			num := real(buf[y*t.width+x]) * scale
			s := t.window(t.sum, x, y, tmpl.Width, tmpl.Height)
			s2 := t.window(t.sumSq, x, y, tmpl.Width, tmpl.Height)
			variance := math.Max(s2-s*s/n, 0)
			den := math.Sqrt(variance * energy)
			if den > minDenominator {
				out.Data[y*out.Width+x] = num / den
			}
		}
	}

	return out, nil
}

// Close is a no-op; the spectrum is garbage collected.
func (t *fftTarget) Close() error {
	return nil
}

// transform applies an in-place, unnormalized 2D DFT.
func (t *fftTarget) transform(data []complex128) {
	row := make([]complex128, t.width)
	for y := 0; y < t.height; y++ {
		seg := data[y*t.width : (y+1)*t.width]
		t.rows.Coefficients(row, seg)
		copy(seg, row)
	}

	col := make([]complex128, t.height)
	coef := make([]complex128, t.height)
	for x := 0; x < t.width; x++ {
		for y := 0; y < t.height; y++ {
			col[y] = data[y*t.width+x]
		}
		t.cols.Coefficients(coef, col)
		for y := 0; y < t.height; y++ {
			data[y*t.width+x] = coef[y]
		}
	}
}

// window sums the w x h block with top-left (x, y) from a summed-area table.
func (t *fftTarget) window(table []float64, x, y, w, h int) float64 {
	stride := t.width + 1
	return table[(y+h)*stride+x+w] - table[y*stride+x+w] - table[(y+h)*stride+x] + table[y*stride+x]
}

// integral builds a (W+1) x (H+1) summed-area table of img (or img squared).
func integral(img *Plane, squared bool) []float64 {
	stride := img.Width + 1
	table := make([]float64, stride*(img.Height+1))
	for y := 0; y < img.Height; y++ {
		var rowSum float64
		for x := 0; x < img.Width; x++ {
			v := img.Data[y*img.Width+x]
			if squared {
				v *= v
			}
			rowSum += v
			table[(y+1)*stride+x+1] = table[y*stride+x+1] + rowSum
		}
	}
	return table
}
