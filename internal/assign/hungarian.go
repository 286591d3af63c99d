// Package assign solves rectangular minimum-cost assignment problems.
package assign

import "math"

// Solve returns, for every row of cost, the column assigned to it or -1.
//
// Entries set to +Inf are forbidden pairs. The assignment first maximizes the
// number of allowed pairs and then minimizes their total cost. Rows may
// outnumber columns and vice versa. Equal-cost alternatives resolve the same
// way for the same input, so results are reproducible.
func Solve(cost [][]float64) []int {
	rows := len(cost)
	if rows == 0 {
		return nil
	}
	cols := len(cost[0])
	assigned := make([]int, rows)
	for i := range assigned {
		assigned[i] = -1
	}
	if cols == 0 {
		return assigned
	}

	// Forbidden pairs cost more than any set of allowed pairs, so trading one
	// for an allowed pair always lowers the total.
	penalty := 1.0
	for _, row := range cost {
		for _, c := range row {
			if !math.IsInf(c, 1) {
				penalty += math.Abs(c)
			}
		}
	}

	a := make([][]float64, rows)
	for i, row := range cost {
		a[i] = make([]float64, cols)
		for j, c := range row {
			if math.IsInf(c, 1) {
				c = penalty
			}
			a[i][j] = c
		}
	}

	var match []int
	if rows <= cols {
		match = hungarian(a)
	} else {
		colToRow := hungarian(transpose(a))
		match = make([]int, rows)
		for i := range match {
			match[i] = -1
		}
		for j, i := range colToRow {
			if i >= 0 {
				match[i] = j
			}
		}
	}

	for i, j := range match {
		if j >= 0 && !math.IsInf(cost[i][j], 1) {
			assigned[i] = j
		}
	}
	return assigned
}

// hungarian solves the square or wide (rows <= cols) problem with the
// shortest augmenting path method using row and column potentials.
func hungarian(a [][]float64) []int {
	n, m := len(a), len(a[0])

	u := make([]float64, n+1)
	v := make([]float64, m+1)
	p := make([]int, m+1)   // p[j]: 1-based row matched to column j, 0 if free
	way := make([]int, m+1) // previous column on the augmenting path
	minv := make([]float64, m+1)
	used := make([]bool, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = math.Inf(1)
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := a[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
			if j0 == 0 {
				break
			}
		}
	}

	match := make([]int, n)
	for i := range match {
		match[i] = -1
	}
	for j := 1; j <= m; j++ {
		if p[j] != 0 {
			match[p[j]-1] = j - 1
		}
	}
	return match
}

func transpose(a [][]float64) [][]float64 {
	t := make([][]float64, len(a[0]))
	for j := range t {
		t[j] = make([]float64, len(a))
		for i := range a {
			t[j][i] = a[i][j]
		}
	}
	return t
}
