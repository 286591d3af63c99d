package crater

import (
	"log/slog"
	"runtime"

	"github.com/jamesainslie/go-crater/inference"
	"github.com/jamesainslie/go-crater/internal/correlate"
)

// Option configures a Scorer or Detector.
type Option func(*config)

type config struct {
	extract    ExtractParams
	match      MatchParams
	correlator correlate.Correlator
	workers    int
	poolSize   int
	tensors    inference.TensorNames
	logger     *slog.Logger
}

func defaultConfig() config {
	return config{
		extract:    DefaultExtractParams(),
		match:      DefaultMatchParams(),
		correlator: correlate.NewFFT(),
		workers:    runtime.NumCPU(),
		poolSize:   runtime.NumCPU(),
		tensors:    inference.DefaultTensorNames(),
		logger:     slog.Default(),
	}
}

// WithExtractParams sets the ring extraction parameters (default: DefaultExtractParams()).
func WithExtractParams(p ExtractParams) Option {
	return func(c *config) {
		c.extract = p
	}
}

// WithMatchParams sets the circle matching parameters (default: DefaultMatchParams()).
func WithMatchParams(p MatchParams) Option {
	return func(c *config) {
		c.match = p
	}
}

// WithCorrelator replaces the template correlation backend (default: FFT).
func WithCorrelator(corr correlate.Correlator) Option {
	return func(c *config) {
		if corr != nil {
			c.correlator = corr
		}
	}
}

// WithWorkers sets how many images Evaluate scores concurrently (default: runtime.NumCPU()).
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithPoolSize sets the ONNX session pool size (default: runtime.NumCPU()).
func WithPoolSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithTensorNames sets the model's input and output tensor names
// (default: "input" and "output").
func WithTensorNames(input, output string) Option {
	return func(c *config) {
		if input != "" {
			c.tensors.Input = input
		}
		if output != "" {
			c.tensors.Output = output
		}
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
