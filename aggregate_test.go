package crater

import (
	"math"
	"testing"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func f2(p, r float64) float64 {
	return 5 * r * p / (4*p + r)
}

func sampleResults() []MatchResult {
	return []MatchResult{
		{Status: StatusScored, NMatch: 2, NCSV: 3, NTempl: 2, MaxRadius: 10},
		{Status: StatusScored, NMatch: 3, NCSV: 4, NTempl: 6, MaxRadius: 12, Duplicate: true},
		{Status: StatusScored, NMatch: 0, NCSV: 5, NTempl: 4},
	}
}

func TestAggregate_SkipsZeroMatch(t *testing.T) {
	s := Aggregate(sampleResults())

	if s.Images != 3 || s.Included != 2 || s.SkippedNoMatch != 1 || s.SkippedInsufficient != 0 {
		t.Errorf("counts = images %d included %d no-match %d insufficient %d",
			s.Images, s.Included, s.SkippedNoMatch, s.SkippedInsufficient)
	}
	if s.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", s.Duplicates)
	}

	r1, r2 := 2.0/3.0, 0.75
	approx(t, "recall mean", s.Recall.Mean, (r1+r2)/2)
	approx(t, "recall std", s.Recall.Std, (r2-r1)/2)
	approx(t, "precision mean", s.Precision.Mean, 0.75)
	approx(t, "precision std", s.Precision.Std, 0.25)

	fa, fb := f2(1, r1), f2(0.5, r2)
	approx(t, "f2 mean", s.F2.Mean, (fa+fb)/2)
	approx(t, "f2 std", s.F2.Std, math.Abs(fa-fb)/2)

	approx(t, "frac new mean", s.FracNew.Mean, (0+0.5)/2)
	approx(t, "frac new 2 mean", s.FracNew2.Mean, (0+0.75)/2)
	approx(t, "max radius mean", s.MaxRadius.Mean, 11)
	approx(t, "max radius std", s.MaxRadius.Std, 1)
	approx(t, "abs max radius", s.AbsMaxRadius, 12)
	approx(t, "template ratio mean", s.TemplateRatio.Mean, (2.0/3.0+1.5)/2)
}

func TestAggregate_InsufficientCounted(t *testing.T) {
	results := append(sampleResults(), MatchResult{Status: StatusInsufficientGroundTruth, NCSV: 2, NTempl: 7})
	s := Aggregate(results)
	if s.Images != 4 || s.SkippedInsufficient != 1 || s.Included != 2 {
		t.Errorf("counts = images %d insufficient %d included %d", s.Images, s.SkippedInsufficient, s.Included)
	}
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil)
	if s != (SummaryStats{}) {
		t.Errorf("Aggregate(nil) = %+v, want zero value", s)
	}
}

func TestAccumulator_Merge(t *testing.T) {
	results := append(sampleResults(),
		MatchResult{Status: StatusScored, NMatch: 5, NCSV: 5, NTempl: 9, MaxRadius: 30},
		MatchResult{Status: StatusInsufficientGroundTruth, NCSV: 1},
	)
	want := Aggregate(results)

	var a, b Accumulator
	for i, r := range results {
		if i%2 == 0 {
			a.Add(r)
		} else {
			b.Add(r)
		}
	}

	for _, order := range []struct {
		name        string
		first, next *Accumulator
	}{
		{"a then b", &a, &b},
		{"b then a", &b, &a},
	} {
		t.Run(order.name, func(t *testing.T) {
			var merged Accumulator
			merged.Merge(order.first)
			merged.Merge(order.next)
			got := merged.Summary()

			if got.Images != want.Images || got.Included != want.Included ||
				got.SkippedNoMatch != want.SkippedNoMatch ||
				got.SkippedInsufficient != want.SkippedInsufficient ||
				got.Duplicates != want.Duplicates {
				t.Errorf("merged counts %+v, want %+v", got, want)
			}
			approx(t, "recall mean", got.Recall.Mean, want.Recall.Mean)
			approx(t, "recall std", got.Recall.Std, want.Recall.Std)
			approx(t, "f2 std", got.F2.Std, want.F2.Std)
			approx(t, "abs max radius", got.AbsMaxRadius, want.AbsMaxRadius)
		})
	}

	a.Merge(nil)
}

func TestMatchResult_Metrics(t *testing.T) {
	m, ok := MatchResult{Status: StatusScored, NMatch: 4, NCSV: 8, NTempl: 5, MaxRadius: 7}.Metrics()
	if !ok {
		t.Fatal("Metrics() not available")
	}
	approx(t, "precision", m.Precision, 0.8)
	approx(t, "recall", m.Recall, 0.5)
	approx(t, "f2", m.F2, f2(0.8, 0.5))
	approx(t, "frac new", m.FracNew, 0.2)
	approx(t, "frac new 2", m.FracNew2, 0.125)
	approx(t, "template ratio", m.TemplateRatio, 0.625)
	approx(t, "max radius", m.MaxRadius, 7)
}

func TestStat_String(t *testing.T) {
	if got := (Stat{Mean: 0.5, Std: 0.25}).String(); got != "0.5000 ± 0.2500" {
		t.Errorf("String() = %q", got)
	}
}
