package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/go-crater"
	"github.com/jamesainslie/go-crater/catalog"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, crater.DefaultExtractParams(), cfg.ExtractParams())

	mp, err := cfg.MatchParams()
	require.NoError(t, err)
	assert.Equal(t, crater.DefaultMatchParams(), mp)

	b := cfg.Bounds(256, 256)
	assert.Equal(t, 256, b.Width)
	assert.Equal(t, 2.0, b.MinRadius)
	assert.Equal(t, 50.0, b.MaxRadius)
	assert.Equal(t, 1.0, b.Cut)
}

func TestDefault_CatalogMatchesExtractRange(t *testing.T) {
	cfg := Default()
	radii := cfg.ExtractParams().RadiusList()
	require.NotEmpty(t, radii)

	b := cfg.Bounds(256, 256)
	assert.Equal(t, float64(radii[0]), b.MinRadius)
	assert.Equal(t, float64(radii[len(radii)-1]), b.MaxRadius)
	assert.Equal(t, catalog.DefaultBounds(256, 256), b)
}

func TestBounds_FollowsExtractRange(t *testing.T) {
	cfg := Default()
	cfg.Extract.Radii = []int{12, 6, 8}
	b := cfg.Bounds(0, 0)
	assert.Equal(t, 6.0, b.MinRadius)
	assert.Equal(t, 12.0, b.MaxRadius)

	cfg.Catalog.MinRadius, cfg.Catalog.MaxRadius = 3, 30
	require.NoError(t, cfg.Validate())
	b = cfg.Bounds(0, 0)
	assert.Equal(t, 3.0, b.MinRadius, "explicit catalog radii win")
	assert.Equal(t, 30.0, b.MaxRadius)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "crater.toml", `
[extract]
radii = [6, 8, 10]
template_threshold = 0.6
dedupe = true

[match]
assignment = "optimal"
radius_tolerance = 0.5

[inference]
model = "models/unet.onnx"
pool_size = 4

[run]
workers = 8
log_format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	ep := cfg.ExtractParams()
	assert.Equal(t, []int{6, 8, 10}, ep.RadiusList())
	assert.Equal(t, 0.6, ep.TemplateThreshold)
	assert.True(t, ep.Dedupe)
	assert.Equal(t, 2, ep.RingWidth, "unset keys keep defaults")

	mp, err := cfg.MatchParams()
	require.NoError(t, err)
	assert.Equal(t, crater.AssignOptimal, mp.Assignment)
	assert.Equal(t, 0.5, mp.RadiusTolerance)
	assert.Equal(t, crater.DefaultMatchParams().DistanceTolerance, mp.DistanceTolerance)

	assert.Equal(t, "models/unet.onnx", cfg.Inference.Model)
	assert.Equal(t, 4, cfg.Inference.PoolSize)
	assert.Equal(t, "input", cfg.Inference.Input)
	assert.Equal(t, 8, cfg.Run.Workers)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "bad.toml", "[extract\nmin_radius = ="))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"radius range", func(c *Config) { c.Extract.MinRadius = 60 }},
		{"assignment", func(c *Config) { c.Match.Assignment = "best" }},
		{"tolerance", func(c *Config) { c.Match.DistanceTolerance = -1 }},
		{"catalog radii", func(c *Config) { c.Catalog.MinRadius, c.Catalog.MaxRadius = 10, 5 }},
		{"negative catalog radius", func(c *Config) { c.Catalog.MinRadius = -1 }},
		{"cut", func(c *Config) { c.Catalog.Cut = -0.5 }},
		{"workers", func(c *Config) { c.Run.Workers = -2 }},
		{"log level", func(c *Config) { c.Run.LogLevel = "loud" }},
		{"log format", func(c *Config) { c.Run.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvModel, "/models/env.onnx")
	t.Setenv(EnvWorkers, "3")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLibrary, "/usr/lib/libonnxruntime.so")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "/models/env.onnx", cfg.Inference.Model)
	assert.Equal(t, "/usr/lib/libonnxruntime.so", cfg.Inference.Library)
	assert.Equal(t, 3, cfg.Run.Workers)
	assert.Equal(t, "debug", cfg.Run.LogLevel)
	assert.Equal(t, "json", cfg.Run.LogFormat)
}

func TestApplyEnv_BadWorkers(t *testing.T) {
	t.Setenv(EnvWorkers, "many")
	assert.Error(t, Default().ApplyEnv())
}

func TestLoadDotEnv(t *testing.T) {
	// Register restoration, then clear: .env never overrides a set variable.
	t.Setenv(EnvModel, "")
	require.NoError(t, os.Unsetenv(EnvModel))
	path := writeFile(t, ".env", EnvModel+"=/from/dotenv.onnx\n")

	require.NoError(t, LoadDotEnv(path))

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "/from/dotenv.onnx", cfg.Inference.Model)

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.Run.LogFormat = "json"
	cfg.Run.LogLevel = "warn"

	var buf bytes.Buffer
	log := cfg.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "expected JSON output, got %q", out)
	assert.Contains(t, out, `"msg":"shown"`)
}
