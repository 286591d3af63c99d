package assign

import (
	"math"
	"testing"
)

var inf = math.Inf(1)

func totalCost(cost [][]float64, match []int) (float64, int) {
	var total float64
	pairs := 0
	for i, j := range match {
		if j < 0 {
			continue
		}
		total += cost[i][j]
		pairs++
	}
	return total, pairs
}

func TestSolve(t *testing.T) {
	tests := []struct {
		name      string
		cost      [][]float64
		want      []int
		wantPairs int
	}{
		{
			name: "identity is optimal",
			cost: [][]float64{
				{1, 9, 9},
				{9, 1, 9},
				{9, 9, 1},
			},
			want:      []int{0, 1, 2},
			wantPairs: 3,
		},
		{
			name: "greedy choice is not optimal",
			cost: [][]float64{
				{1, 2},
				{2, 10},
			},
			want:      []int{1, 0},
			wantPairs: 2,
		},
		{
			name: "forbidden pairs stay unassigned",
			cost: [][]float64{
				{inf, inf},
				{3, inf},
			},
			want:      []int{-1, 0},
			wantPairs: 1,
		},
		{
			name: "cardinality beats cost",
			cost: [][]float64{
				{0.1, 5},
				{0.2, inf},
			},
			want:      []int{1, 0},
			wantPairs: 2,
		},
		{
			name: "more rows than columns",
			cost: [][]float64{
				{4},
				{1},
				{3},
			},
			want:      []int{-1, 0, -1},
			wantPairs: 1,
		},
		{
			name: "more columns than rows",
			cost: [][]float64{
				{5, 2, 7, 1},
			},
			want:      []int{3},
			wantPairs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Solve(tt.cost)
			if len(got) != len(tt.want) {
				t.Fatalf("Solve() returned %d rows, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("row %d -> %d, want %d (full: %v)", i, got[i], tt.want[i], got)
				}
			}
			if _, pairs := totalCost(tt.cost, got); pairs != tt.wantPairs {
				t.Errorf("pairs = %d, want %d", pairs, tt.wantPairs)
			}
		})
	}
}

func TestSolve_Empty(t *testing.T) {
	if got := Solve(nil); got != nil {
		t.Errorf("Solve(nil) = %v, want nil", got)
	}
	got := Solve([][]float64{{}, {}})
	for i, j := range got {
		if j != -1 {
			t.Errorf("row %d -> %d, want -1 with no columns", i, j)
		}
	}
}

// bruteForce enumerates every injective row->column map.
func bruteForce(cost [][]float64) (float64, int) {
	rows, cols := len(cost), len(cost[0])
	bestPairs, bestCost := -1, math.Inf(1)
	used := make([]bool, cols)
	var walk func(i, pairs int, total float64)
	walk = func(i, pairs int, total float64) {
		if i == rows {
			if pairs > bestPairs || (pairs == bestPairs && total < bestCost) {
				bestPairs, bestCost = pairs, total
			}
			return
		}
		walk(i+1, pairs, total)
		for j := 0; j < cols; j++ {
			if used[j] || math.IsInf(cost[i][j], 1) {
				continue
			}
			used[j] = true
			walk(i+1, pairs+1, total+cost[i][j])
			used[j] = false
		}
	}
	walk(0, 0, 0)
	return bestCost, bestPairs
}

func TestSolve_MatchesBruteForce(t *testing.T) {
	cases := [][][]float64{
		{{3, 1, inf}, {inf, 2, 2}, {1, inf, 4}},
		{{0.5, 0.4, 0.9, inf}, {inf, 0.1, 0.2, 0.3}, {0.7, inf, inf, 0.05}},
		{{1, inf}, {inf, inf}, {0.3, 0.2}, {0.25, inf}},
		{{2, 2, 2}, {2, 2, 2}},
	}
	for n, cost := range cases {
		wantCost, wantPairs := bruteForce(cost)
		gotCost, gotPairs := totalCost(cost, Solve(cost))
		if gotPairs != wantPairs {
			t.Errorf("case %d: pairs = %d, want %d", n, gotPairs, wantPairs)
		}
		if math.Abs(gotCost-wantCost) > 1e-12 {
			t.Errorf("case %d: cost = %v, want %v", n, gotCost, wantCost)
		}
	}
}
