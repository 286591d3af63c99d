package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jamesainslie/go-crater"
	"github.com/jamesainslie/go-crater/catalog"
	"github.com/jamesainslie/go-crater/inference"
	"github.com/jamesainslie/go-crater/internal/backend"
	"github.com/jamesainslie/go-crater/internal/config"
	"github.com/jamesainslie/go-crater/internal/imageio"
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
		maskPath    = flag.String("mask", "", "Predicted ring mask (PNG, TIFF or JPEG)")
		imagePath   = flag.String("image", "", "DEM image to run through the model instead of -mask")
		modelPath   = flag.String("model", "", "Path to ONNX model file (with -image)")
		csvPath     = flag.String("catalog", "", "Ground-truth catalog CSV to score against")
		radii       = flag.String("radii", "", "Comma-separated template radii (overrides -min-radius/-max-radius)")
		minRadius   = flag.Int("min-radius", 0, "Smallest template radius (also bounds the catalog)")
		maxRadius   = flag.Int("max-radius", 0, "Largest template radius (also bounds the catalog)")
		detThresh   = flag.Float64("detection-threshold", 0, "Mask binarization threshold")
		tmplThresh  = flag.Float64("template-threshold", 0, "Correlation peak threshold")
		assignment  = flag.String("assignment", "", "Matching strategy: greedy or optimal")
		dedupe      = flag.Bool("dedupe", false, "Collapse detections of one crater found at several radii")
		backendArg  = flag.String("backend", "", "Correlation backend: "+strings.Join(backend.Names(), ", "))
		maskOut     = flag.String("save-mask", "", "Write the predicted mask to this PNG (with -image)")
		asJSON      = flag.Bool("json", false, "Print JSON instead of text")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (%s, %s)\n", "crater-cli", version, commit, date)
		return
	}

	if (*maskPath == "") == (*imagePath == "") {
		fmt.Fprintln(os.Stderr, "Usage: crater-cli (-mask MASK | -image IMAGE -model MODEL) [-catalog CSV] [OPTIONS]")
		flag.PrintDefaults()
		os.Exit(1)
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
		case "radii":
			cfg.Extract.Radii = parseRadii(*radii)
		case "min-radius":
			cfg.Extract.MinRadius = *minRadius
		case "max-radius":
			cfg.Extract.MaxRadius = *maxRadius
		case "detection-threshold":
			cfg.Extract.DetectionThreshold = float32(*detThresh)
		case "template-threshold":
			cfg.Extract.TemplateThreshold = *tmplThresh
		case "assignment":
			cfg.Match.Assignment = *assignment
		case "dedupe":
			cfg.Extract.Dedupe = *dedupe
		case "backend":
			cfg.Run.Backend = *backendArg
		}
	})
	if err := cfg.Validate(); err != nil {
		fail("invalid configuration: %v", err)
	}

	logger := cfg.Logger(os.Stderr)
	corr, err := backend.Lookup(cfg.Run.Backend)
	if err != nil {
		fail("%v", err)
	}
	mp, _ := cfg.MatchParams()

	opts := []crater.Option{
		crater.WithExtractParams(cfg.ExtractParams()),
		crater.WithMatchParams(mp),
		crater.WithCorrelator(corr),
		crater.WithPoolSize(1),
		crater.WithTensorNames(cfg.Inference.Input, cfg.Inference.Output),
		crater.WithLogger(logger),
	}

	ctx := context.Background()

	var mask *crater.Mask
	if *maskPath != "" {
		if mask, err = imageio.Load(*maskPath); err != nil {
			fail("%v", err)
		}
	} else {
		mask = predict(ctx, cfg, *imagePath, *maskOut, opts)
	}

	scorer, err := crater.NewScorer(opts...)
	if err != nil {
		fail("%v", err)
	}
	dets, err := scorer.Extractor().ExtractDetections(mask)
	if err != nil {
		fail("%v", err)
	}

	out := output{Width: mask.Width, Height: mask.Height, Detections: dets}
	if *csvPath != "" {
		truth, err := catalog.Load(*csvPath)
		if err != nil {
			fail("%v", err)
		}
		truth = catalog.Filter(truth, cfg.Bounds(mask.Width, mask.Height))
		res := crater.Match(crater.Circles(dets), truth, mp)
		out.Match = &res
		if m, ok := res.Metrics(); ok {
			out.Metrics = &m
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fail("%v", err)
		}
		return
	}
	out.print()
}

func predict(ctx context.Context, cfg *config.Config, imagePath, maskOut string, opts []crater.Option) *crater.Mask {
	if cfg.Inference.Model == "" {
		fail("-image requires -model (or %s)", config.EnvModel)
	}
	inference.SetSharedLibraryPath(cfg.Inference.Library)

	img, err := imageio.Load(imagePath)
	if err != nil {
		fail("%v", err)
	}

	det, err := crater.New(cfg.Inference.Model, opts...)
	if err != nil {
		fail("creating detector: %v", err)
	}
	defer func() { _ = det.Close() }()

	mask, err := det.Predict(ctx, img)
	if err != nil {
		fail("%v", err)
	}
	if maskOut != "" {
		if err := imageio.Save(maskOut, mask); err != nil {
			fail("%v", err)
		}
	}
	return mask
}

type output struct {
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Detections []crater.Detection   `json:"detections"`
	Match      *crater.MatchResult  `json:"match,omitempty"`
	Metrics    *crater.ImageMetrics `json:"metrics,omitempty"`
}

func (o output) print() {
	fmt.Printf("Mask: %dx%d\n", o.Width, o.Height)
	fmt.Printf("Circles (%d):\n", len(o.Detections))
	for i, d := range o.Detections {
		fmt.Printf("  %d: %s score=%.3f\n", i+1, d.Circle, d.Score)
	}
	if o.Match == nil {
		return
	}

	r := o.Match
	if r.Status == crater.StatusInsufficientGroundTruth {
		fmt.Printf("Skipped: %d catalog craters, need %d\n", r.NCSV, crater.MinGroundTruth)
		return
	}
	fmt.Printf("N_match=%d N_csv=%d N_templ=%d max_radius=%.1f duplicate=%v\n",
		r.NMatch, r.NCSV, r.NTempl, r.MaxRadius, r.Duplicate)
	if m := o.Metrics; m != nil {
		fmt.Printf("Recall: %.3f  Precision: %.3f  F2: %.3f  Frac new: %.3f  Frac new 2: %.3f\n",
			m.Recall, m.Precision, m.F2, m.FracNew, m.FracNew2)
	}
}

func parseRadii(s string) []int {
	var radii []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		r, err := strconv.Atoi(f)
		if err != nil {
			fail("invalid radius %q", f)
		}
		radii = append(radii, r)
	}
	return radii
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
