package bench

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jamesainslie/go-crater"
	"github.com/jamesainslie/go-crater/internal/correlate"
)

// Config holds evaluation parameters.
type Config struct {
	Extract crater.ExtractParams
	Match   crater.MatchParams
	Workers int
	Logger  *slog.Logger

	// Correlator overrides the template correlation backend when set.
	Correlator correlate.Correlator
}

// DefaultConfig returns default evaluation configuration.
func DefaultConfig() Config {
	return Config{
		Extract: crater.DefaultExtractParams(),
		Match:   crater.DefaultMatchParams(),
		Logger:  slog.Default(),
	}
}

// Options converts the configuration to scorer options.
func (c Config) Options() []crater.Option {
	return []crater.Option{
		crater.WithExtractParams(c.Extract),
		crater.WithMatchParams(c.Match),
		crater.WithWorkers(c.Workers),
		crater.WithLogger(c.Logger),
		crater.WithCorrelator(c.Correlator),
	}
}

// Param names a swept parameter.
type Param string

// Sweepable parameters.
const (
	ParamTemplateThreshold  Param = "template_threshold"
	ParamDetectionThreshold Param = "detection_threshold"
	ParamDistanceTolerance  Param = "distance_tolerance"
	ParamRadiusTolerance    Param = "radius_tolerance"
)

// ParseParam validates a parameter name.
func ParseParam(s string) (Param, error) {
	switch p := Param(s); p {
	case ParamTemplateThreshold, ParamDetectionThreshold, ParamDistanceTolerance, ParamRadiusTolerance:
		return p, nil
	}
	return "", fmt.Errorf("unknown sweep parameter %q", s)
}

// apply returns cfg with p set to v.
func (p Param) apply(cfg Config, v float64) Config {
	switch p {
	case ParamTemplateThreshold:
		cfg.Extract.TemplateThreshold = v
	case ParamDetectionThreshold:
		cfg.Extract.DetectionThreshold = float32(v)
	case ParamDistanceTolerance:
		cfg.Match.DistanceTolerance = v
	case ParamRadiusTolerance:
		cfg.Match.RadiusTolerance = v
	}
	return cfg
}

// SweepResult holds the summary for one parameter value.
type SweepResult struct {
	Param   Param
	Value   float64
	Summary crater.SummaryStats
}

// SweepThresholds generates values from min up to, but excluding, max.
func SweepThresholds(min, max, step float64) []float64 {
	var values []float64
	if step <= 0 {
		return values
	}
	for i := 0; ; i++ {
		v := min + float64(i)*step
		if v >= max-step*1e-9 {
			break
		}
		values = append(values, v)
	}
	return values
}

// Sweep evaluates samples once per value of param and returns results sorted
// by mean F2, best first.
func Sweep(ctx context.Context, samples []crater.Sample, cfg Config, param Param, values []float64) ([]SweepResult, error) {
	results := make([]SweepResult, 0, len(values))

	for _, v := range values {
		run := param.apply(cfg, v)
		scorer, err := crater.NewScorer(run.Options()...)
		if err != nil {
			return nil, fmt.Errorf("%s=%g: %w", param, v, err)
		}

		report, err := scorer.Evaluate(ctx, samples)
		if err != nil {
			return nil, err
		}

		results = append(results, SweepResult{
			Param:   param,
			Value:   v,
			Summary: report.Summary,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Summary.F2.Mean > results[j].Summary.F2.Mean
	})

	return results, nil
}
