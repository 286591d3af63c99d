package crater

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stat is a mean with its population standard deviation.
type Stat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

func (s Stat) String() string {
	return fmt.Sprintf("%.4f ± %.4f", s.Mean, s.Std)
}

func newStat(values []float64) Stat {
	if len(values) == 0 {
		return Stat{}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Stat{Mean: mean, Std: std}
}

// ImageMetrics are the per-image scores of a matched image.
type ImageMetrics struct {
	Recall    float64 `json:"recall"`
	Precision float64 `json:"precision"`
	F2        float64 `json:"f2"`
	// FracNew is the share of detections with no catalog counterpart.
	FracNew float64 `json:"frac_new"`
	// FracNew2 is the count of unmatched detections over the catalog size.
	FracNew2      float64 `json:"frac_new2"`
	MaxRadius     float64 `json:"max_radius"`
	TemplateRatio float64 `json:"template_ratio"`
}

// Metrics derives the per-image scores. ok is false for skipped results,
// whose ratios are undefined.
func (r MatchResult) Metrics() (m ImageMetrics, ok bool) {
	if r.Skipped() || r.NTempl == 0 || r.NCSV == 0 {
		return ImageMetrics{}, false
	}

	match := float64(r.NMatch)
	templ := float64(r.NTempl)
	csv := float64(r.NCSV)

	m.Precision = match / templ
	m.Recall = match / csv
	if den := 4*m.Precision + m.Recall; den > 0 {
		m.F2 = 5 * m.Recall * m.Precision / den
	}
	m.FracNew = (templ - match) / templ
	m.FracNew2 = (templ - match) / csv
	m.MaxRadius = r.MaxRadius
	m.TemplateRatio = templ / csv
	return m, true
}

// SummaryStats summarizes a run. Statistics cover included images only:
// those that were scored and matched at least one circle.
type SummaryStats struct {
	Recall        Stat `json:"recall"`
	Precision     Stat `json:"precision"`
	F2            Stat `json:"f2"`
	FracNew       Stat `json:"frac_new"`
	FracNew2      Stat `json:"frac_new2"`
	MaxRadius     Stat `json:"max_radius"`
	TemplateRatio Stat `json:"template_ratio"`

	// AbsMaxRadius is the largest matched radius over all included images.
	AbsMaxRadius float64 `json:"abs_max_radius"`

	Images              int `json:"images"`
	Included            int `json:"included"`
	SkippedNoMatch      int `json:"skipped_no_match"`
	SkippedInsufficient int `json:"skipped_insufficient"`
	Duplicates          int `json:"duplicates"`
}

// Accumulator collects match results. Accumulators filled from disjoint
// result sets can be merged in any order with the same summary. An
// Accumulator is not safe for concurrent use.
type Accumulator struct {
	recall, precision, f2    []float64
	fracNew, fracNew2        []float64
	maxRadius, templateRatio []float64
	images, noMatch, tooFew  int
	duplicates               int
}

// Add records one image.
func (a *Accumulator) Add(r MatchResult) {
	a.images++
	if r.Duplicate {
		a.duplicates++
	}
	switch {
	case r.Status == StatusInsufficientGroundTruth:
		a.tooFew++
		return
	case r.NMatch == 0:
		a.noMatch++
		return
	}

	m, ok := r.Metrics()
	if !ok {
		a.noMatch++
		return
	}
	a.recall = append(a.recall, m.Recall)
	a.precision = append(a.precision, m.Precision)
	a.f2 = append(a.f2, m.F2)
	a.fracNew = append(a.fracNew, m.FracNew)
	a.fracNew2 = append(a.fracNew2, m.FracNew2)
	a.maxRadius = append(a.maxRadius, m.MaxRadius)
	a.templateRatio = append(a.templateRatio, m.TemplateRatio)
}

// Merge folds o into a. o is left unchanged.
func (a *Accumulator) Merge(o *Accumulator) {
	if o == nil {
		return
	}
	a.recall = append(a.recall, o.recall...)
	a.precision = append(a.precision, o.precision...)
	a.f2 = append(a.f2, o.f2...)
	a.fracNew = append(a.fracNew, o.fracNew...)
	a.fracNew2 = append(a.fracNew2, o.fracNew2...)
	a.maxRadius = append(a.maxRadius, o.maxRadius...)
	a.templateRatio = append(a.templateRatio, o.templateRatio...)
	a.images += o.images
	a.noMatch += o.noMatch
	a.tooFew += o.tooFew
	a.duplicates += o.duplicates
}

// Summary computes the statistics of everything added so far.
func (a *Accumulator) Summary() SummaryStats {
	s := SummaryStats{
		Recall:              newStat(a.recall),
		Precision:           newStat(a.precision),
		F2:                  newStat(a.f2),
		FracNew:             newStat(a.fracNew),
		FracNew2:            newStat(a.fracNew2),
		MaxRadius:           newStat(a.maxRadius),
		TemplateRatio:       newStat(a.templateRatio),
		Images:              a.images,
		Included:            len(a.recall),
		SkippedNoMatch:      a.noMatch,
		SkippedInsufficient: a.tooFew,
		Duplicates:          a.duplicates,
	}
	if len(a.maxRadius) > 0 {
		s.AbsMaxRadius = floats.Max(a.maxRadius)
	}
	return s
}

// Aggregate summarizes a slice of results.
func Aggregate(results []MatchResult) SummaryStats {
	var acc Accumulator
	for _, r := range results {
		acc.Add(r)
	}
	return acc.Summary()
}
