package bench

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jamesainslie/go-crater"
)

func TestWriteSummary(t *testing.T) {
	s := crater.Aggregate([]crater.MatchResult{
		{Status: crater.StatusScored, NMatch: 2, NCSV: 3, NTempl: 2, MaxRadius: 10},
		{Status: crater.StatusScored, NMatch: 0, NCSV: 3, NTempl: 5},
	})

	var buf bytes.Buffer
	if err := WriteSummary(&buf, "run-1", s); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"run run-1",
		"included=1 skipped_no_match=1",
		"mean and std of N_match/N_csv (recall) = 0.666667, 0.000000",
		"mean and std of N_match/N_templ (precision) = 1.000000, 0.000000",
		"absolute maximum detected pixel radius over all images = 10.000000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSweep(t *testing.T) {
	results := []SweepResult{
		{Param: ParamTemplateThreshold, Value: 0.5, Summary: crater.SummaryStats{F2: crater.Stat{Mean: 0.8}, Included: 4}},
		{Param: ParamTemplateThreshold, Value: 0.6, Summary: crater.SummaryStats{F2: crater.Stat{Mean: 0.7}, Included: 3, SkippedNoMatch: 1}},
	}

	var buf bytes.Buffer
	if err := WriteSweep(&buf, results); err != nil {
		t.Fatalf("WriteSweep failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "template_threshold") || !strings.Contains(lines[1], "0.8000") {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestWriteJSON(t *testing.T) {
	report := &crater.Report{
		Results: []crater.ImageResult{{ID: "lola_00001", Match: crater.MatchResult{NMatch: 3, NCSV: 3, NTempl: 4}}},
		Failures: []*crater.ImageError{
			{ID: "lola_00002", Err: errors.New("bad mask")},
		},
		Summary: crater.SummaryStats{Images: 1, Included: 1},
	}

	for _, detail := range []bool{false, true} {
		var buf bytes.Buffer
		if err := WriteJSON(&buf, "abc", report, detail); err != nil {
			t.Fatalf("WriteJSON failed: %v", err)
		}

		var got JSONReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.RunID != "abc" || got.Summary.Included != 1 {
			t.Errorf("decoded %+v", got)
		}
		if len(got.Failures) != 1 || got.Failures[0].Error != "bad mask" {
			t.Errorf("Failures = %+v", got.Failures)
		}
		if (len(got.Results) == 1) != detail {
			t.Errorf("detail=%v: %d results", detail, len(got.Results))
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteSummary_WriteError(t *testing.T) {
	if err := WriteSummary(failingWriter{}, "x", crater.SummaryStats{}); err == nil {
		t.Error("expected write error")
	}
}
