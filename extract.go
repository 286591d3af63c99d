package crater

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/jamesainslie/go-crater/internal/correlate"
)

// ExtractParams controls how circles are pulled out of a probability mask.
type ExtractParams struct {
	// Radii lists the template radii to search, in pixels. When empty every
	// integer radius in [MinRadius, MaxRadius] is used.
	Radii     []int
	MinRadius int
	MaxRadius int

	// RingWidth is the annulus thickness of the ring templates.
	RingWidth int

	// DetectionThreshold binarizes the mask: pixels >= threshold become 1.
	DetectionThreshold float32

	// TemplateThreshold is the correlation a peak must exceed to be accepted.
	TemplateThreshold float64

	// Dedupe collapses detections of the same crater found at several radii,
	// keeping the best-scoring one. Off by default: cross-scale duplicates
	// are otherwise reported as-is and surface through the match duplicate flag.
	Dedupe bool
	// DedupeDistance2 bounds the squared center distance over min(r)^2.
	DedupeDistance2 float64
	// DedupeRadius bounds |r1-r2| over min(r).
	DedupeRadius float64
}

// DefaultExtractParams returns the extraction parameters used for 256x256
// lunar DEM tiles. The radius range is the one catalogs are filtered with,
// so every kept crater is searched at its own radius.
func DefaultExtractParams() ExtractParams {
	return ExtractParams{
		MinRadius:          2,
		MaxRadius:          50,
		RingWidth:          2,
		DetectionThreshold: 0.1,
		TemplateThreshold:  0.5,
		DedupeDistance2:    1.8,
		DedupeRadius:       1.0,
	}
}

// WithRadiusRange returns a copy searching every integer radius in [minR, maxR].
func (p ExtractParams) WithRadiusRange(minR, maxR int) ExtractParams {
	p.MinRadius = minR
	p.MaxRadius = maxR
	p.Radii = nil
	return p
}

// WithRadii returns a copy searching exactly the given radii.
func (p ExtractParams) WithRadii(radii ...int) ExtractParams {
	p.Radii = append([]int(nil), radii...)
	return p
}

// WithThresholds returns a copy with new binarization and correlation thresholds.
func (p ExtractParams) WithThresholds(detection float32, template float64) ExtractParams {
	p.DetectionThreshold = detection
	p.TemplateThreshold = template
	return p
}

// RadiusList returns the radii searched, in ascending order.
func (p ExtractParams) RadiusList() []int {
	if len(p.Radii) > 0 {
		radii := append([]int(nil), p.Radii...)
		sort.Ints(radii)
		return radii
	}
	if p.MaxRadius < p.MinRadius {
		return nil
	}
	radii := make([]int, 0, p.MaxRadius-p.MinRadius+1)
	for r := p.MinRadius; r <= p.MaxRadius; r++ {
		radii = append(radii, r)
	}
	return radii
}

// Validate reports parameters that cannot extract anything meaningful.
func (p ExtractParams) Validate() error {
	radii := p.RadiusList()
	if len(radii) == 0 {
		return fmt.Errorf("%w: empty radius range [%d, %d]", ErrInvalidParams, p.MinRadius, p.MaxRadius)
	}
	if radii[0] <= 0 {
		return fmt.Errorf("%w: radius %d must be positive", ErrInvalidParams, radii[0])
	}
	if p.RingWidth <= 0 {
		return fmt.Errorf("%w: ring width %d must be positive", ErrInvalidParams, p.RingWidth)
	}
	if p.TemplateThreshold >= 1 {
		return fmt.Errorf("%w: template threshold %.3f can never be exceeded", ErrInvalidParams, p.TemplateThreshold)
	}
	if p.Dedupe && (p.DedupeDistance2 <= 0 || p.DedupeRadius <= 0) {
		return fmt.Errorf("%w: dedupe tolerances must be positive", ErrInvalidParams)
	}
	return nil
}

// Extractor converts probability masks into candidate circles by multi-scale
// ring template matching. It is safe for concurrent use.
type Extractor struct {
	params     ExtractParams
	radii      []int
	templates  []*correlate.Plane
	correlator correlate.Correlator
	logger     *slog.Logger
}

// NewExtractor builds ring templates for every radius in params. Only
// WithCorrelator and WithLogger are consulted from opts.
func NewExtractor(params ExtractParams, opts ...Option) (*Extractor, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newExtractor(params, cfg)
}

func newExtractor(params ExtractParams, cfg config) (*Extractor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e := &Extractor{
		params:     params,
		radii:      params.RadiusList(),
		correlator: cfg.correlator,
		logger:     cfg.logger,
	}
	e.templates = make([]*correlate.Plane, len(e.radii))
	for i, r := range e.radii {
		e.templates[i] = ringTemplate(r, params.RingWidth)
	}
	return e, nil
}

// Params returns the extraction parameters.
func (e *Extractor) Params() ExtractParams {
	return e.params
}

// Extract returns the circles found in m. An empty mask yields no circles
// and no error.
func (e *Extractor) Extract(m *Mask) ([]Circle, error) {
	dets, err := e.ExtractDetections(m)
	if err != nil {
		return nil, err
	}
	return Circles(dets), nil
}

// ExtractDetections is Extract with correlation scores attached. Detections
// are ordered by radius, then row, then column.
func (e *Extractor) ExtractDetections(m *Mask) ([]Detection, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	img, on := m.plane(e.params.DetectionThreshold)
	if on == 0 {
		return nil, nil
	}

	target, err := e.correlator.Prepare(img)
	if err != nil {
		return nil, fmt.Errorf("preparing correlation: %w", err)
	}
	defer func() { _ = target.Close() }()

	var dets []Detection
	for i, r := range e.radii {
		tmpl := e.templates[i]
		// The whole ring template must fit; larger radii cannot produce an
		// in-bounds detection.
		if tmpl.Width > m.Width || tmpl.Height > m.Height {
			continue
		}

		resp, err := target.Match(tmpl)
		if err != nil {
			return nil, fmt.Errorf("matching radius %d: %w", r, err)
		}

		half := float64(templateHalf(r, e.params.RingWidth))
		for _, p := range localMaxima(resp, e.params.TemplateThreshold) {
			dets = append(dets, Detection{
				Circle: Circle{X: float64(p.x) + half, Y: float64(p.y) + half, R: float64(r)},
				Score:  p.score,
			})
		}
	}

	if e.params.Dedupe {
		before := len(dets)
		dets = dedupe(dets, e.params.DedupeDistance2, e.params.DedupeRadius)
		e.logger.Debug("deduplicated detections", "before", before, "after", len(dets))
	}

	return dets, nil
}

type peak struct {
	x, y  int
	score float64
}

// localMaxima returns samples above threshold that are maximal in their 3x3
// neighborhood. On plateaus only the first sample in raster order survives.
func localMaxima(resp *correlate.Plane, threshold float64) []peak {
	var peaks []peak
	for y := 0; y < resp.Height; y++ {
		for x := 0; x < resp.Width; x++ {
			v := resp.At(x, y)
			if v <= threshold {
				continue
			}
			if isPeak(resp, x, y, v) {
				peaks = append(peaks, peak{x: x, y: y, score: v})
			}
		}
	}
	return peaks
}

func isPeak(resp *correlate.Plane, x, y int, v float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= resp.Width || ny >= resp.Height {
				continue
			}
			nv := resp.At(nx, ny)
			if nv > v {
				return false
			}
			// Earlier neighbor in raster order already claims the plateau.
			if nv == v && (dy < 0 || (dy == 0 && dx < 0)) {
				return false
			}
		}
	}
	return true
}

// dedupe keeps, within every group of mutually overlapping detections, the
// one with the highest score. Survivors keep their original order.
func dedupe(dets []Detection, dist2, radius float64) []Detection {
	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dets[order[a]].Score > dets[order[b]].Score
	})

	keep := make([]bool, len(dets))
	var kept []int
	for _, i := range order {
		dup := false
		for _, k := range kept {
			if sameCrater(dets[i].Circle, dets[k].Circle, dist2, radius) {
				dup = true
				break
			}
		}
		if !dup {
			keep[i] = true
			kept = append(kept, i)
		}
	}

	out := make([]Detection, 0, len(kept))
	for i, d := range dets {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}

func sameCrater(a, b Circle, dist2, radius float64) bool {
	minR := min(a.R, b.R)
	dx, dy := a.X-b.X, a.Y-b.Y
	return (dx*dx+dy*dy)/(minR*minR) < dist2 && math.Abs(a.R-b.R)/minR < radius
}
