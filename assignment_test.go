package visioncore

import "testing"

func TestGreedySolver_SimpleDiagonal(t *testing.T) {
	cost := [][]float64{
		{1, 10, 10},
		{10, 1, 10},
		{10, 10, 1},
	}
	assignments := GreedySolver{}.Solve(cost)
	if len(assignments) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(assignments))
	}
	seenRows, seenCols := map[int]bool{}, map[int]bool{}
	for _, a := range assignments {
		if a.Row != a.Col {
			t.Errorf("expected diagonal assignment, got row=%d col=%d", a.Row, a.Col)
		}
		seenRows[a.Row] = true
		seenCols[a.Col] = true
	}
	if len(seenRows) != 3 || len(seenCols) != 3 {
		t.Errorf("expected every row/col assigned exactly once")
	}
}

func TestGreedySolver_EmptyMatrix(t *testing.T) {
	if a := (GreedySolver{}).Solve(nil); a != nil {
		t.Errorf("expected nil assignments for empty matrix, got %v", a)
	}
	if a := (GreedySolver{}).Solve([][]float64{}); a != nil {
		t.Errorf("expected nil assignments for zero-row matrix, got %v", a)
	}
}

func TestGreedySolver_RectangularMoreRowsThanCols(t *testing.T) {
	cost := [][]float64{
		{1, 100},
		{100, 1},
		{5, 5},
	}
	assignments := GreedySolver{}.Solve(cost)
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments (bounded by column count), got %d", len(assignments))
	}
	seenCols := map[int]bool{}
	for _, a := range assignments {
		if seenCols[a.Col] {
			t.Errorf("column %d assigned more than once", a.Col)
		}
		seenCols[a.Col] = true
	}
}

func TestOptimalSolver_SimpleDiagonal(t *testing.T) {
	cost := [][]float64{
		{1, 10, 10},
		{10, 1, 10},
		{10, 10, 1},
	}
	assignments := OptimalSolver{}.Solve(cost)
	if len(assignments) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(assignments))
	}
	total := 0.0
	for _, a := range assignments {
		total += cost[a.Row][a.Col]
	}
	if total != 3 {
		t.Errorf("expected optimal total cost 3, got %v", total)
	}
}

func TestOptimalSolver_BeatsGreedyOnAdversarialMatrix(t *testing.T) {
	// A matrix where greedy is led astray: after row/column reduction
	// (0,0) is a zero, so greedy takes (0,0)+(1,1) = 11, while the
	// optimal assignment is (0,1)+(1,0) = 4.
	cost := [][]float64{
		{1, 2},
		{2, 10},
	}
	assignments := OptimalSolver{}.Solve(cost)
	total := 0.0
	for _, a := range assignments {
		total += cost[a.Row][a.Col]
	}
	if total != 4 {
		t.Errorf("expected optimal total cost 4, got %v", total)
	}
	greedyTotal := 0.0
	for _, a := range (GreedySolver{}).Solve(cost) {
		greedyTotal += cost[a.Row][a.Col]
	}
	if total >= greedyTotal {
		t.Errorf("expected optimal total %v to beat greedy total %v", total, greedyTotal)
	}
}

func TestTransposeMatrix(t *testing.T) {
	m := [][]float64{
		{1, 2, 3},
		{4, 5, 6},
	}
	transposed := transposeMatrix(m)
	if len(transposed) != 3 || len(transposed[0]) != 2 {
		t.Fatalf("expected 3x2 result, got %dx%d", len(transposed), len(transposed[0]))
	}
	if transposed[0][0] != 1 || transposed[1][0] != 2 || transposed[2][1] != 6 {
		t.Errorf("unexpected transpose result: %v", transposed)
	}
}
