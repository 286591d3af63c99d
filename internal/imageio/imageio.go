// Package imageio converts between image files and crater masks.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"

	"github.com/jamesainslie/go-crater"
)

// Decode reads a PNG, JPEG or TIFF image as a grayscale mask with values
// scaled to [0,1]. 16-bit images keep their full precision.
func Decode(r io.Reader) (*crater.Mask, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// FromImage converts any image to a grayscale mask.
func FromImage(img image.Image) *crater.Mask {
	b := img.Bounds()
	m := crater.NewMask(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+b.Dx()]
			for x, v := range row {
				m.Set(x, y, float32(v)/0xff)
			}
		}
	case *image.Gray16:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				m.Set(x, y, float32(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y)/0xffff)
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				m.Set(x, y, float32(g.Y)/0xffff)
			}
		}
	}
	return m
}

// Load reads the image at path.
func Load(path string) (*crater.Mask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ToImage renders a mask as an 8-bit grayscale image, clamping values to [0,1].
func ToImage(m *crater.Mask) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		img.Pix[i] = uint8(min(max(v, 0), 1)*0xff + 0.5)
	}
	return img
}

// Encode writes m as an 8-bit grayscale PNG.
func Encode(w io.Writer, m *crater.Mask) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return png.Encode(w, ToImage(m))
}

// Save writes m to path as a PNG.
func Save(path string, m *crater.Mask) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, m); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// SupportedFormats returns the file extensions Load understands.
func SupportedFormats() []string {
	return []string{".png", ".tif", ".tiff", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks the extension of path.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
