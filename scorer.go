package crater

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Sample is one image to score: its predicted mask and its catalog circles.
type Sample struct {
	ID    string
	Mask  *Mask
	Truth []Circle

	// Width and Height are the source image size. When set, a mask of any
	// other size is rejected as malformed.
	Width  int
	Height int
}

// ImageResult is the outcome of scoring one Sample.
type ImageResult struct {
	ID      string      `json:"id"`
	Circles []Circle    `json:"circles"`
	Match   MatchResult `json:"match"`
}

// ImageError records a sample that could not be scored.
type ImageError struct {
	ID  string
	Err error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image %s: %v", e.ID, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// Report is the outcome of an evaluation run.
type Report struct {
	// Results holds scored images in input order.
	Results []ImageResult `json:"results"`
	// Failures holds images that were rejected, in input order.
	Failures []*ImageError `json:"-"`
	Summary  SummaryStats  `json:"summary"`
}

// Scorer extracts circles from masks and scores them against ground truth.
// It is safe for concurrent use.
type Scorer struct {
	extractor *Extractor
	match     MatchParams
	workers   int
	logger    *slog.Logger
}

// NewScorer validates the options and prepares the ring templates.
func NewScorer(opts ...Option) (*Scorer, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newScorer(cfg)
}

func newScorer(cfg config) (*Scorer, error) {
	if err := cfg.match.Validate(); err != nil {
		return nil, err
	}
	ext, err := newExtractor(cfg.extract, cfg)
	if err != nil {
		return nil, err
	}
	return &Scorer{
		extractor: ext,
		match:     cfg.match,
		workers:   cfg.workers,
		logger:    cfg.logger,
	}, nil
}

// Extractor returns the scorer's circle extractor.
func (s *Scorer) Extractor() *Extractor {
	return s.extractor
}

// MatchParams returns the matching parameters.
func (s *Scorer) MatchParams() MatchParams {
	return s.match
}

// ScoreMask extracts circles from mask and matches them against truth.
// The only error is a malformed mask.
func (s *Scorer) ScoreMask(mask *Mask, truth []Circle) (MatchResult, error) {
	res, _, err := s.score(mask, truth)
	return res, err
}

func (s *Scorer) score(mask *Mask, truth []Circle) (MatchResult, []Circle, error) {
	circles, err := s.extractor.Extract(mask)
	if err != nil {
		return MatchResult{}, nil, err
	}
	return Match(circles, truth, s.match), circles, nil
}

// scoreSample scores one sample, logging why an image is left out of the
// statistics.
func (s *Scorer) scoreSample(sample Sample) (ImageResult, error) {
	if sample.Width > 0 || sample.Height > 0 {
		if err := sample.Mask.CheckSize(sample.Width, sample.Height); err != nil {
			return ImageResult{}, err
		}
	}

	res, circles, err := s.score(sample.Mask, sample.Truth)
	if err != nil {
		return ImageResult{}, err
	}

	switch {
	case res.Status == StatusInsufficientGroundTruth:
		s.logger.Debug("skipping image: insufficient ground truth",
			"id", sample.ID, "n_csv", res.NCSV, "min", MinGroundTruth)
	case res.NMatch == 0:
		s.logger.Debug("skipping image: no matches",
			"id", sample.ID, "n_csv", res.NCSV, "n_templ", res.NTempl, "n_match", res.NMatch)
	}
	if res.Duplicate {
		s.logger.Debug("duplicate ring detected", "id", sample.ID)
	}

	return ImageResult{ID: sample.ID, Circles: circles, Match: res}, nil
}

// Evaluate scores samples concurrently and summarizes them. Malformed masks
// are recorded in Report.Failures and do not stop the run; the only error
// returned is ctx's.
func (s *Scorer) Evaluate(ctx context.Context, samples []Sample) (*Report, error) {
	workers := min(s.workers, len(samples))
	if workers < 1 {
		workers = 1
	}

	results := make([]ImageResult, len(samples))
	failures := make([]error, len(samples))
	shards := make([]Accumulator, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for k := w; k < len(samples); k += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := s.scoreSample(samples[k])
				if err != nil {
					failures[k] = err
					continue
				}
				results[k] = res
				shards[w].Add(res.Match)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}
	for k, err := range failures {
		if err != nil {
			s.logger.Warn("image rejected", "id", samples[k].ID, "error", err)
			report.Failures = append(report.Failures, &ImageError{ID: samples[k].ID, Err: err})
			continue
		}
		report.Results = append(report.Results, results[k])
	}

	var acc Accumulator
	for i := range shards {
		acc.Merge(&shards[i])
	}
	report.Summary = acc.Summary()

	s.logger.Info("evaluation complete",
		"images", report.Summary.Images,
		"included", report.Summary.Included,
		"skipped_no_match", report.Summary.SkippedNoMatch,
		"skipped_insufficient", report.Summary.SkippedInsufficient,
		"failures", len(report.Failures))

	return report, nil
}
