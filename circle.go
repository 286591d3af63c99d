package crater

import (
	"fmt"
	"math"
)

// Circle is a crater rim in pixel coordinates of the source image.
type Circle struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	R float64 `json:"r"`
}

// Distance returns the center-to-center Euclidean distance.
func (c Circle) Distance(o Circle) float64 {
	return math.Hypot(c.X-o.X, c.Y-o.Y)
}

// Inside reports whether the circle, with its radius scaled by cut, lies
// within a width x height image.
func (c Circle) Inside(width, height int, cut float64) bool {
	ext := cut * c.R
	return c.X-ext > 0 && c.Y-ext > 0 &&
		c.X+ext <= float64(width) && c.Y+ext <= float64(height)
}

func (c Circle) String() string {
	return fmt.Sprintf("(%.1f, %.1f, r=%.1f)", c.X, c.Y, c.R)
}

// Detection is a circle extracted from a mask together with the correlation
// score of the template that produced it.
type Detection struct {
	Circle
	Score float64 `json:"score"`
}

// Circles strips scores from a detection list.
func Circles(dets []Detection) []Circle {
	if len(dets) == 0 {
		return nil
	}
	out := make([]Circle, len(dets))
	for i, d := range dets {
		out[i] = d.Circle
	}
	return out
}
