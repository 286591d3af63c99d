package bench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/go-crater"
	"github.com/jamesainslie/go-crater/catalog"
	"github.com/jamesainslie/go-crater/internal/imageio"
)

var tileTruth = []crater.Circle{
	{X: 25, Y: 25, R: 8},
	{X: 70, Y: 30, R: 10},
	{X: 45, Y: 70, R: 9},
}

func writeCatalog(t *testing.T, dir string, id int, circles []crater.Circle) {
	t.Helper()
	var b strings.Builder
	b.WriteString("x,y,Diameter (pix)\n")
	for _, c := range circles {
		fmt.Fprintf(&b, "%g,%g,%g\n", c.X, c.Y, 2*c.R)
	}
	if err := os.WriteFile(filepath.Join(dir, catalog.FileName(id)), []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeMask(t *testing.T, path string, m *crater.Mask) {
	t.Helper()
	if err := imageio.Save(path, m); err != nil {
		t.Fatal(err)
	}
}

// writeTile writes a catalog and a mask rendered from it.
func writeTile(t *testing.T, dir string, id int, circles []crater.Circle) {
	t.Helper()
	writeCatalog(t, dir, id, circles)
	name := strings.TrimSuffix(catalog.FileName(id), ".csv")
	writeMask(t, filepath.Join(dir, name+"_mask.png"), crater.RenderRings(96, 96, circles, 2))
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, 3, tileTruth)
	writeTile(t, dir, 1, tileTruth)
	writeCatalog(t, dir, 2, tileTruth) // no mask or image: skipped
	writeMask(t, filepath.Join(dir, "lola_00004.png"), crater.NewMask(8, 8))
	writeCatalog(t, dir, 4, tileTruth)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadDataset(dir)
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(entries), entries)
	}
	for i, id := range []int{1, 3, 4} {
		if entries[i].ID != id {
			t.Errorf("entries[%d].ID = %d, want %d", i, entries[i].ID, id)
		}
	}
	if entries[0].Mask == "" || entries[0].Image != "" {
		t.Errorf("entry 1 = %+v, want mask only", entries[0])
	}
	if entries[2].Image == "" || entries[2].Mask != "" {
		t.Errorf("entry 4 = %+v, want image only", entries[2])
	}
	if entries[0].Name() != "lola_00001" {
		t.Errorf("Name() = %q", entries[0].Name())
	}
}

func TestLoadDataset_MissingDir(t *testing.T) {
	if _, err := LoadDataset(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestEntry_LoadSample(t *testing.T) {
	dir := t.TempDir()
	// A tiny crater and one crossing the border are filtered out.
	writeTile(t, dir, 1, append(append([]crater.Circle{}, tileTruth...),
		crater.Circle{X: 50, Y: 50, R: 1},
		crater.Circle{X: 90, Y: 50, R: 10},
	))

	entries, err := LoadDataset(dir)
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}

	s, err := entries[0].LoadSample(context.Background(), catalog.DefaultBounds(0, 0), nil)
	if err != nil {
		t.Fatalf("LoadSample failed: %v", err)
	}
	if s.ID != "lola_00001" {
		t.Errorf("ID = %q", s.ID)
	}
	if s.Mask.Width != 96 || s.Mask.Height != 96 {
		t.Errorf("mask is %dx%d, want 96x96", s.Mask.Width, s.Mask.Height)
	}
	if len(s.Truth) != len(tileTruth) {
		t.Errorf("Truth = %v, want the %d in-bounds craters", s.Truth, len(tileTruth))
	}
}

func TestEntry_LoadSample_ImageSizeRecorded(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, 5, tileTruth)
	writeMask(t, filepath.Join(dir, "lola_00005.png"), crater.NewMask(128, 96))

	entries, err := LoadDataset(dir)
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}
	s, err := entries[0].LoadSample(context.Background(), catalog.DefaultBounds(0, 0), nil)
	if err != nil {
		t.Fatalf("LoadSample failed: %v", err)
	}
	if s.Width != 128 || s.Height != 96 {
		t.Errorf("image size = %dx%d, want 128x96", s.Width, s.Height)
	}

	scorer, err := crater.NewScorer(DefaultConfig().Options()...)
	if err != nil {
		t.Fatal(err)
	}
	report, err := scorer.Evaluate(context.Background(), []crater.Sample{s})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(report.Failures) != 1 || !errors.Is(report.Failures[0], crater.ErrMalformedMask) {
		t.Errorf("Failures = %v, want one malformed mask", report.Failures)
	}
}

type fakePredictor struct {
	mask  *crater.Mask
	calls int
}

func (f *fakePredictor) Predict(_ context.Context, img *crater.Mask) (*crater.Mask, error) {
	f.calls++
	return f.mask, nil
}

func TestEntry_LoadSample_Predicts(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, 9, tileTruth)
	writeMask(t, filepath.Join(dir, "lola_00009.png"), crater.NewMask(96, 96))

	entries, err := LoadDataset(dir)
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}

	_, err = entries[0].LoadSample(context.Background(), catalog.DefaultBounds(0, 0), nil)
	if !errors.Is(err, ErrNoModel) {
		t.Errorf("LoadSample without predictor: error = %v, want ErrNoModel", err)
	}

	pred := &fakePredictor{mask: crater.RenderRings(96, 96, tileTruth, 2)}
	samples, err := LoadSamples(context.Background(), entries, catalog.DefaultBounds(0, 0), pred)
	if err != nil {
		t.Fatalf("LoadSamples failed: %v", err)
	}
	if pred.calls != 1 {
		t.Errorf("predictor called %d times, want 1", pred.calls)
	}
	if samples[0].Mask != pred.mask || samples[0].Width != 96 {
		t.Errorf("sample = %+v", samples[0])
	}
}
