package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jamesainslie/go-crater"
)

// WriteSummary prints run statistics in the layout of the lunar crater
// benchmark logs.
func WriteSummary(w io.Writer, runID string, s crater.SummaryStats) error {
	lines := []struct {
		label string
		stat  crater.Stat
	}{
		{"N_match/N_csv (recall)", s.Recall},
		{"N_match/N_templ (precision)", s.Precision},
		{"5rp/(4p+r) (F2 score)", s.F2},
		{"(N_templ - N_match)/N_templ (fraction of craters that are new)", s.FracNew},
		{"(N_templ - N_match)/N_csv (fraction of craters that are new, 2)", s.FracNew2},
		{"maximum detected pixel radius in an image", s.MaxRadius},
		{"N_templ/N_csv (template ratio)", s.TemplateRatio},
	}

	bw := &errWriter{w: w}
	bw.printf("run %s\n", runID)
	bw.printf("images=%d included=%d skipped_no_match=%d skipped_insufficient=%d duplicates=%d\n",
		s.Images, s.Included, s.SkippedNoMatch, s.SkippedInsufficient, s.Duplicates)
	for _, l := range lines {
		bw.printf("mean and std of %s = %f, %f\n", l.label, l.stat.Mean, l.stat.Std)
	}
	bw.printf("absolute maximum detected pixel radius over all images = %f\n", s.AbsMaxRadius)
	return bw.err
}

// WriteSweep prints sweep results as an aligned table.
func WriteSweep(w io.Writer, results []SweepResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	bw := &errWriter{w: tw}
	bw.printf("param\tvalue\tf2\trecall\tprecision\tincluded\tskipped\n")
	for _, r := range results {
		s := r.Summary
		bw.printf("%s\t%.4f\t%.4f\t%.4f\t%.4f\t%d\t%d\n",
			r.Param, r.Value, s.F2.Mean, s.Recall.Mean, s.Precision.Mean,
			s.Included, s.SkippedNoMatch+s.SkippedInsufficient)
	}
	if bw.err != nil {
		return bw.err
	}
	return tw.Flush()
}

// JSONReport is the machine-readable form of a run.
type JSONReport struct {
	RunID    string               `json:"run_id"`
	Summary  crater.SummaryStats  `json:"summary"`
	Results  []crater.ImageResult `json:"results,omitempty"`
	Failures []JSONFailure        `json:"failures,omitempty"`
}

// JSONFailure is a rejected image.
type JSONFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// WriteJSON encodes report with its run id. Per-image results are included
// when detail is set.
func WriteJSON(w io.Writer, runID string, report *crater.Report, detail bool) error {
	out := JSONReport{RunID: runID, Summary: report.Summary}
	if detail {
		out.Results = report.Results
	}
	for _, f := range report.Failures {
		out.Failures = append(out.Failures, JSONFailure{ID: f.ID, Error: f.Err.Error()})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
