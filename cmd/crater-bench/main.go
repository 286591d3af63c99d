package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"

	"github.com/jamesainslie/go-crater"
	"github.com/jamesainslie/go-crater/inference"
	"github.com/jamesainslie/go-crater/internal/backend"
	"github.com/jamesainslie/go-crater/internal/bench"
	"github.com/jamesainslie/go-crater/internal/config"
)

// Set by -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to TOML config file")
		dataDir     = flag.String("data", "testdata/lola", "Directory of lola_<id>.csv catalogs with masks or images")
		modelPath   = flag.String("model", "", "ONNX model for tiles without a mask")
		workers     = flag.Int("workers", 0, "Images scored concurrently (default: CPU count)")
		backendArg  = flag.String("backend", "", "Correlation backend: "+strings.Join(backend.Names(), ", "))
		assignment  = flag.String("assignment", "", "Matching strategy: greedy or optimal")
		sweep       = flag.String("sweep", "", "Sweep a parameter: template_threshold, detection_threshold, distance_tolerance or radius_tolerance")
		sweepMin    = flag.Float64("sweep-min", 0.3, "Sweep minimum value")
		sweepMax    = flag.Float64("sweep-max", 0.8, "Sweep maximum value (exclusive)")
		sweepStep   = flag.Float64("sweep-step", 0.05, "Sweep step size")
		asJSON      = flag.Bool("json", false, "Print the report as JSON")
		detail      = flag.Bool("detail", false, "Include per-image results in JSON output")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (%s, %s)\n", "crater-bench", version, commit, date)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fail("%v", err)
		}
	}
	if err := config.LoadDotEnv(".env"); err != nil {
		fail("%v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		fail("%v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.Inference.Model = *modelPath
		case "workers":
			cfg.Run.Workers = *workers
		case "backend":
			cfg.Run.Backend = *backendArg
		case "assignment":
			cfg.Match.Assignment = *assignment
		}
	})
	if err := cfg.Validate(); err != nil {
		fail("invalid configuration: %v", err)
	}

	runID := uuid.New().String()
	logger := cfg.Logger(os.Stderr).With("run_id", runID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	corr, err := backend.Lookup(cfg.Run.Backend)
	if err != nil {
		fail("%v", err)
	}
	mp, _ := cfg.MatchParams()
	bcfg := bench.Config{
		Extract:    cfg.ExtractParams(),
		Match:      mp,
		Workers:    cfg.Run.Workers,
		Logger:     logger,
		Correlator: corr,
	}
	opts := bcfg.Options()

	entries, err := bench.LoadDataset(*dataDir)
	if err != nil {
		fail("loading dataset: %v", err)
	}
	logger.Info("dataset loaded", "dir", *dataDir, "tiles", len(entries))

	// A nil *crater.Detector must not become a non-nil Predictor.
	var pred bench.Predictor
	if det := openDetector(cfg, opts, logger); det != nil {
		defer func() { _ = det.Close() }()
		pred = det
	}

	samples, err := bench.LoadSamples(ctx, entries, cfg.Bounds(0, 0), pred)
	if err != nil {
		fail("%v", err)
	}

	if *sweep != "" {
		param, err := bench.ParseParam(*sweep)
		if err != nil {
			fail("%v", err)
		}
		values := bench.SweepThresholds(*sweepMin, *sweepMax, *sweepStep)
		logger.Info("sweeping", "param", param, "values", len(values))
		results, err := bench.Sweep(ctx, samples, bcfg, param, values)
		if err != nil {
			fail("%v", err)
		}
		if err := bench.WriteSweep(os.Stdout, results); err != nil {
			fail("%v", err)
		}
		return
	}

	scorer, err := crater.NewScorer(opts...)
	if err != nil {
		fail("%v", err)
	}
	report, err := scorer.Evaluate(ctx, samples)
	if err != nil {
		fail("%v", err)
	}

	if *asJSON {
		err = bench.WriteJSON(os.Stdout, runID, report, *detail)
	} else {
		err = bench.WriteSummary(os.Stdout, runID, report.Summary)
	}
	if err != nil {
		fail("%v", err)
	}
}

// openDetector loads the model when one is configured.
func openDetector(cfg *config.Config, opts []crater.Option, logger *slog.Logger) *crater.Detector {
	if cfg.Inference.Model == "" {
		return nil
	}
	inference.SetSharedLibraryPath(cfg.Inference.Library)

	opts = append(opts,
		crater.WithPoolSize(cfg.Inference.PoolSize),
		crater.WithTensorNames(cfg.Inference.Input, cfg.Inference.Output),
	)
	det, err := crater.New(cfg.Inference.Model, opts...)
	if err != nil {
		fail("creating detector: %v", err)
	}
	logger.Info("model loaded", "model", cfg.Inference.Model)
	return det
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
