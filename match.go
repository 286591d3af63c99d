package crater

import (
	"fmt"
	"math"

	"github.com/jamesainslie/go-crater/internal/assign"
)

// MinGroundTruth is the smallest ground-truth set Match will score.
const MinGroundTruth = 3

// Assignment selects how ground-truth circles are paired with predictions.
type Assignment int

const (
	// AssignGreedy pairs each ground-truth circle, in input order, with its
	// nearest qualifying prediction. When two ground-truth circles compete
	// for one prediction, loosening a tolerance can lower NMatch; use
	// AssignOptimal where the match count must grow with the tolerances.
	AssignGreedy Assignment = iota
	// AssignOptimal computes a maximum-cardinality, minimum-distance
	// bipartite assignment.
	AssignOptimal
)

func (a Assignment) String() string {
	switch a {
	case AssignGreedy:
		return "greedy"
	case AssignOptimal:
		return "optimal"
	default:
		return fmt.Sprintf("Assignment(%d)", int(a))
	}
}

// ParseAssignment converts "greedy" or "optimal" to an Assignment.
func ParseAssignment(s string) (Assignment, error) {
	switch s {
	case "greedy", "":
		return AssignGreedy, nil
	case "optimal", "hungarian":
		return AssignOptimal, nil
	}
	return 0, fmt.Errorf("%w: unknown assignment %q", ErrInvalidParams, s)
}

// MatchParams controls when a predicted circle counts as a ground-truth match.
// Both tolerances are relative to the ground-truth radius.
type MatchParams struct {
	DistanceTolerance float64
	RadiusTolerance   float64
	Assignment        Assignment
}

// DefaultMatchParams returns the tolerances of the lunar crater benchmark:
// squared center distance under 1.8 r² and radius difference under r.
func DefaultMatchParams() MatchParams {
	return MatchParams{
		DistanceTolerance: math.Sqrt(1.8),
		RadiusTolerance:   1.0,
		Assignment:        AssignGreedy,
	}
}

// Validate reports negative or non-finite tolerances and unknown strategies.
func (p MatchParams) Validate() error {
	if !validTolerance(p.DistanceTolerance) {
		return fmt.Errorf("%w: distance tolerance %v", ErrInvalidParams, p.DistanceTolerance)
	}
	if !validTolerance(p.RadiusTolerance) {
		return fmt.Errorf("%w: radius tolerance %v", ErrInvalidParams, p.RadiusTolerance)
	}
	if p.Assignment != AssignGreedy && p.Assignment != AssignOptimal {
		return fmt.Errorf("%w: %v", ErrInvalidParams, p.Assignment)
	}
	return nil
}

func validTolerance(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

// qualifies reports whether pred is close enough to truth in both position
// and size.
func (p MatchParams) qualifies(pred, truth Circle) (float64, bool) {
	d := pred.Distance(truth)
	if d > p.DistanceTolerance*truth.R {
		return d, false
	}
	return d, math.Abs(pred.R-truth.R) <= p.RadiusTolerance*truth.R
}

// Status tells whether an image was scored.
type Status int

const (
	// StatusScored means matching ran; NMatch may still be zero.
	StatusScored Status = iota
	// StatusInsufficientGroundTruth means the image had fewer than
	// MinGroundTruth catalog circles and must be skipped.
	StatusInsufficientGroundTruth
)

func (s Status) String() string {
	switch s {
	case StatusScored:
		return "scored"
	case StatusInsufficientGroundTruth:
		return "insufficient ground truth"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Pair links a ground-truth circle to the prediction that matched it, by index.
type Pair struct {
	Truth     int     `json:"truth"`
	Predicted int     `json:"predicted"`
	Distance  float64 `json:"distance"`
}

// MatchResult is the outcome of matching one image.
type MatchResult struct {
	Status Status `json:"status"`

	// NMatch counts ground-truth circles paired with a distinct prediction.
	NMatch int `json:"n_match"`
	// NCSV is the number of ground-truth circles.
	NCSV int `json:"n_csv"`
	// NTempl is the number of predicted circles.
	NTempl int `json:"n_templ"`
	// MaxRadius is the largest radius among matched predictions.
	MaxRadius float64 `json:"max_radius"`
	// Duplicate is set when a ground-truth circle's nearest qualifying
	// prediction was also nearest to another ground-truth circle, meaning two
	// craters rendered as one ring.
	Duplicate bool `json:"duplicate"`

	// Pairs lists the matches ordered by ground-truth index.
	Pairs []Pair `json:"pairs,omitempty"`
}

// Skipped reports whether the result must be left out of summary statistics.
func (r MatchResult) Skipped() bool {
	return r.Status != StatusScored || r.NMatch == 0
}

// Match pairs predicted circles with ground truth. Images with fewer than
// MinGroundTruth ground-truth circles are not matched and report
// StatusInsufficientGroundTruth. The result depends only on the inputs.
//
// With AssignGreedy the match count is not monotone in the tolerances once
// predictions are contended: a looser radius tolerance can let an earlier
// ground-truth circle claim the prediction a later one needed. AssignOptimal
// maximizes the match count first and never loses matches as tolerances grow.
func Match(predicted, truth []Circle, p MatchParams) MatchResult {
	res := MatchResult{
		NCSV:   len(truth),
		NTempl: len(predicted),
	}
	if len(truth) < MinGroundTruth {
		res.Status = StatusInsufficientGroundTruth
		return res
	}

	switch p.Assignment {
	case AssignOptimal:
		res.Pairs, res.Duplicate = matchOptimal(predicted, truth, p)
	default:
		res.Pairs, res.Duplicate = matchGreedy(predicted, truth, p)
	}

	res.NMatch = len(res.Pairs)
	for _, pr := range res.Pairs {
		res.MaxRadius = max(res.MaxRadius, predicted[pr.Predicted].R)
	}
	return res
}

// nearest returns the closest qualifying prediction for truth, skipping
// claimed ones when claimed is non-nil. The lowest index wins ties.
func nearest(predicted []Circle, truth Circle, p MatchParams, claimed []bool) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for j, pred := range predicted {
		if claimed != nil && claimed[j] {
			continue
		}
		d, ok := p.qualifies(pred, truth)
		if ok && d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, bestDist
}

func matchGreedy(predicted, truth []Circle, p MatchParams) ([]Pair, bool) {
	claimed := make([]bool, len(predicted))
	var pairs []Pair
	dup := false

	for i, gt := range truth {
		j, d := nearest(predicted, gt, p, nil)
		if j < 0 {
			continue
		}
		if claimed[j] {
			dup = true
			if j, d = nearest(predicted, gt, p, claimed); j < 0 {
				continue
			}
		}
		claimed[j] = true
		pairs = append(pairs, Pair{Truth: i, Predicted: j, Distance: d})
	}
	return pairs, dup
}

func matchOptimal(predicted, truth []Circle, p MatchParams) ([]Pair, bool) {
	if len(predicted) == 0 {
		return nil, false
	}

	cost := make([][]float64, len(truth))
	nearestOf := make(map[int]bool, len(truth))
	dup := false
	for i, gt := range truth {
		cost[i] = make([]float64, len(predicted))
		for j, pred := range predicted {
			if d, ok := p.qualifies(pred, gt); ok {
				cost[i][j] = d / gt.R
			} else {
				cost[i][j] = math.Inf(1)
			}
		}
		if j, _ := nearest(predicted, gt, p, nil); j >= 0 {
			if nearestOf[j] {
				dup = true
			}
			nearestOf[j] = true
		}
	}

	var pairs []Pair
	for i, j := range assign.Solve(cost) {
		if j < 0 {
			continue
		}
		pairs = append(pairs, Pair{Truth: i, Predicted: j, Distance: predicted[j].Distance(truth[i])})
	}
	return pairs, dup
}
