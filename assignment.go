package visioncore

import (
	"math"

	"github.com/proximeter/visioncore/internal/kuhnmunkres"
)

// Assignment names a matched (row, col) pair returned by a Solver.
type Assignment struct {
	Row, Col int
}

// Solver resolves a rectangular assignment problem over a non-negative
// cost matrix, returning matched (row, col) pairs.
type Solver interface {
	Solve(cost [][]float64) []Assignment
}

// GreedySolver implements the reduced-cost greedy assignment described in
// the design notes: not globally optimal, but stable and sufficient for
// the small matrices the tracker produces. Ported from the Python
// original's hungarian_matching (row/col-min subtraction, then a greedy
// per-row pick of the cheapest unassigned column).
type GreedySolver struct{}

// Solve implements Solver.
func (GreedySolver) Solve(cost [][]float64) []Assignment {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	if m == 0 {
		return nil
	}

	transposed := false
	if n > m {
		cost = transposeMatrix(cost)
		n, m = m, n
		transposed = true
	}

	reduced := make([][]float64, n)
	for i := range cost {
		row := make([]float64, m)
		copy(row, cost[i])
		reduced[i] = row
	}

	// Subtract per-row minimum.
	for i := 0; i < n; i++ {
		rowMin := math.Inf(1)
		for j := 0; j < m; j++ {
			if reduced[i][j] < rowMin {
				rowMin = reduced[i][j]
			}
		}
		if math.IsInf(rowMin, 1) {
			continue
		}
		for j := 0; j < m; j++ {
			reduced[i][j] -= rowMin
		}
	}

	// Subtract per-column minimum.
	for j := 0; j < m; j++ {
		colMin := math.Inf(1)
		for i := 0; i < n; i++ {
			if reduced[i][j] < colMin {
				colMin = reduced[i][j]
			}
		}
		if math.IsInf(colMin, 1) {
			continue
		}
		for i := 0; i < n; i++ {
			reduced[i][j] -= colMin
		}
	}

	assigned := make([]bool, m)
	var result []Assignment
	for i := 0; i < n; i++ {
		bestCol := -1
		bestCost := math.Inf(1)
		for j := 0; j < m; j++ {
			if assigned[j] {
				continue
			}
			if reduced[i][j] < bestCost {
				bestCost = reduced[i][j]
				bestCol = j
			}
		}
		if bestCol == -1 || math.IsInf(bestCost, 1) {
			continue
		}
		assigned[bestCol] = true
		if transposed {
			result = append(result, Assignment{Row: bestCol, Col: i})
		} else {
			result = append(result, Assignment{Row: i, Col: bestCol})
		}
	}
	return result
}

func transposeMatrix(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return nil
	}
	rows, cols := len(m), len(m[0])
	out := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		out[j] = make([]float64, rows)
		for i := 0; i < rows; i++ {
			out[j][i] = m[i][j]
		}
	}
	return out
}

// OptimalSolver resolves assignment via Kuhn-Munkres (optimal), a
// compatible drop-in for GreedySolver. Opt-in, since the tracker's
// default behavior is greedy.
type OptimalSolver struct{}

// Solve implements Solver.
func (OptimalSolver) Solve(cost [][]float64) []Assignment {
	assignments := kuhnmunkres.Solve(cost)
	out := make([]Assignment, len(assignments))
	for i, a := range assignments {
		out[i] = Assignment{Row: a.RowIdx, Col: a.ColIdx}
	}
	return out
}
