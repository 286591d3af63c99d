// Package config loads tool configuration from TOML files, .env files and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/jamesainslie/go-crater"
	"github.com/jamesainslie/go-crater/catalog"
)

// Environment variables that override file settings.
const (
	EnvModel     = "CRATER_MODEL"
	EnvLibrary   = "CRATER_ORT_LIBRARY"
	EnvWorkers   = "CRATER_WORKERS"
	EnvLogLevel  = "CRATER_LOG_LEVEL"
	EnvLogFormat = "CRATER_LOG_FORMAT"
)

// ExtractConfig is the [extract] table: ring template search.
type ExtractConfig struct {
	MinRadius          int     `toml:"min_radius"`
	MaxRadius          int     `toml:"max_radius"`
	Radii              []int   `toml:"radii"`
	RingWidth          int     `toml:"ring_width"`
	DetectionThreshold float32 `toml:"detection_threshold"`
	TemplateThreshold  float64 `toml:"template_threshold"`
	Dedupe             bool    `toml:"dedupe"`
}

// MatchConfig is the [match] table.
type MatchConfig struct {
	DistanceTolerance float64 `toml:"distance_tolerance"`
	RadiusTolerance   float64 `toml:"radius_tolerance"`
	Assignment        string  `toml:"assignment"`
}

// CatalogConfig is the [catalog] table: which ground-truth craters are
// scored. MinRadius and MaxRadius follow the [extract] radius range when both
// are zero.
type CatalogConfig struct {
	MinRadius float64 `toml:"min_radius"`
	MaxRadius float64 `toml:"max_radius"`
	Cut       float64 `toml:"cut"`
}

// InferenceConfig is the [inference] table for the ONNX ring model.
type InferenceConfig struct {
	Model    string `toml:"model"`
	Library  string `toml:"library"`
	PoolSize int    `toml:"pool_size"`
	Input    string `toml:"input"`
	Output   string `toml:"output"`
}

// RunConfig is the [run] table: concurrency, backend and logging.
type RunConfig struct {
	Workers   int    `toml:"workers"`
	Backend   string `toml:"backend"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Config is a complete crater tool configuration.
type Config struct {
	Extract   ExtractConfig   `toml:"extract"`
	Match     MatchConfig     `toml:"match"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Inference InferenceConfig `toml:"inference"`
	Run       RunConfig       `toml:"run"`
}

// Default returns the configuration matching the library defaults.
func Default() *Config {
	ep := crater.DefaultExtractParams()
	mp := crater.DefaultMatchParams()
	cb := catalog.DefaultBounds(0, 0)
	return &Config{
		Extract: ExtractConfig{
			MinRadius:          ep.MinRadius,
			MaxRadius:          ep.MaxRadius,
			RingWidth:          ep.RingWidth,
			DetectionThreshold: ep.DetectionThreshold,
			TemplateThreshold:  ep.TemplateThreshold,
		},
		Match: MatchConfig{
			DistanceTolerance: mp.DistanceTolerance,
			RadiusTolerance:   mp.RadiusTolerance,
			Assignment:        mp.Assignment.String(),
		},
		Catalog: CatalogConfig{
			Cut: cb.Cut,
		},
		Inference: InferenceConfig{
			Input:  "input",
			Output: "output",
		},
		Run: RunConfig{
			Backend:   "fft",
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from CRATER_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvModel); v != "" {
		c.Inference.Model = v
	}
	if v := os.Getenv(EnvLibrary); v != "" {
		c.Inference.Library = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Run.Workers = n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Run.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Run.LogFormat = v
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ExtractParams().Validate(); err != nil {
		return fmt.Errorf("[extract]: %w", err)
	}
	mp, err := c.MatchParams()
	if err != nil {
		return fmt.Errorf("[match]: %w", err)
	}
	if err := mp.Validate(); err != nil {
		return fmt.Errorf("[match]: %w", err)
	}
	if c.Catalog.MinRadius < 0 || c.Catalog.MaxRadius < 0 {
		return errors.New("[catalog]: negative radius bound")
	}
	if c.catalogRadiiSet() && c.Catalog.MaxRadius <= c.Catalog.MinRadius {
		return fmt.Errorf("[catalog]: max_radius %g must exceed min_radius %g", c.Catalog.MaxRadius, c.Catalog.MinRadius)
	}
	if c.Catalog.Cut < 0 {
		return fmt.Errorf("[catalog]: negative cut %g", c.Catalog.Cut)
	}
	if c.Run.Workers < 0 {
		return fmt.Errorf("[run]: negative workers %d", c.Run.Workers)
	}
	if _, err := parseLevel(c.Run.LogLevel); err != nil {
		return fmt.Errorf("[run]: %w", err)
	}
	switch strings.ToLower(c.Run.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("[run]: unknown log format %q", c.Run.LogFormat)
	}
	return nil
}

// ExtractParams converts the [extract] section.
func (c *Config) ExtractParams() crater.ExtractParams {
	p := crater.DefaultExtractParams()
	p.MinRadius = c.Extract.MinRadius
	p.MaxRadius = c.Extract.MaxRadius
	p.Radii = c.Extract.Radii
	p.RingWidth = c.Extract.RingWidth
	p.DetectionThreshold = c.Extract.DetectionThreshold
	p.TemplateThreshold = c.Extract.TemplateThreshold
	p.Dedupe = c.Extract.Dedupe
	return p
}

// MatchParams converts the [match] section.
func (c *Config) MatchParams() (crater.MatchParams, error) {
	a, err := crater.ParseAssignment(c.Match.Assignment)
	if err != nil {
		return crater.MatchParams{}, err
	}
	return crater.MatchParams{
		DistanceTolerance: c.Match.DistanceTolerance,
		RadiusTolerance:   c.Match.RadiusTolerance,
		Assignment:        a,
	}, nil
}

// Bounds converts the [catalog] section for images of the given size; zero
// sizes are filled in per image. Without explicit catalog radii the bounds
// span the searched template radii.
func (c *Config) Bounds(width, height int) catalog.Bounds {
	minR, maxR := c.Catalog.MinRadius, c.Catalog.MaxRadius
	if !c.catalogRadiiSet() {
		if radii := c.ExtractParams().RadiusList(); len(radii) > 0 {
			minR, maxR = float64(radii[0]), float64(radii[len(radii)-1])
		}
	}
	return catalog.Bounds{
		Width:     width,
		Height:    height,
		MinRadius: minR,
		MaxRadius: maxR,
		Cut:       c.Catalog.Cut,
	}
}

func (c *Config) catalogRadiiSet() bool {
	return c.Catalog.MinRadius != 0 || c.Catalog.MaxRadius != 0
}

// Logger builds the slog logger described by [run].
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Run.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Run.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}
