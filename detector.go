package crater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jamesainslie/go-crater/inference"
)

// Detector runs a crater segmentation model and extracts circles from its
// masks. It is safe for concurrent use.
type Detector struct {
	pool   *inference.Pool[*inference.Session]
	scorer *Scorer
	logger *slog.Logger
}

// New loads the ONNX model at modelPath into a pool of sessions.
func New(modelPath string, opts ...Option) (*Detector, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := os.Stat(modelPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		}
		return nil, fmt.Errorf("checking model file: %w", err)
	}

	scorer, err := newScorer(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := inference.NewPool(cfg.poolSize, func() (*inference.Session, error) {
		return inference.NewSession(modelPath, cfg.tensors)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	cfg.logger.Debug("detector ready", "model", modelPath, "sessions", pool.Size())

	return &Detector{
		pool:   pool,
		scorer: scorer,
		logger: cfg.logger,
	}, nil
}

// Predict runs the model on img, a row-major grayscale image with values in
// [0,1], and returns the ring probability mask. The mask always has the
// image's dimensions.
func (d *Detector) Predict(ctx context.Context, img *Mask) (*Mask, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("input image: %w", err)
	}

	session, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer d.pool.Release(session)

	pix, err := session.Predict(ctx, img.Pix, img.Width, img.Height)
	if err != nil {
		return nil, err
	}

	mask := &Mask{Width: img.Width, Height: img.Height, Pix: pix}
	if err := mask.CheckSize(img.Width, img.Height); err != nil {
		return nil, err
	}
	return mask, nil
}

// Detect predicts a mask for img and extracts its circles.
func (d *Detector) Detect(ctx context.Context, img *Mask) ([]Circle, error) {
	mask, err := d.Predict(ctx, img)
	if err != nil {
		return nil, err
	}
	circles, err := d.scorer.Extractor().Extract(mask)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("detected circles", "count", len(circles), "width", img.Width, "height", img.Height)
	return circles, nil
}

// Score predicts a mask for img and scores its circles against truth.
func (d *Detector) Score(ctx context.Context, img *Mask, truth []Circle) (MatchResult, error) {
	mask, err := d.Predict(ctx, img)
	if err != nil {
		return MatchResult{}, err
	}
	return d.scorer.ScoreMask(mask, truth)
}

// Scorer returns the scorer used by Detect and Score.
func (d *Detector) Scorer() *Scorer {
	return d.scorer
}

// Close releases all ONNX sessions.
func (d *Detector) Close() error {
	var errs []error
	if d.pool != nil {
		if err := d.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing pool: %w", err))
		}
	}
	return errors.Join(errs...)
}
