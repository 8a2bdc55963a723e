package kuhnmunkres

import "testing"

func assignedCol(t *testing.T, assignments []Assignment, row int) int {
	t.Helper()
	for _, a := range assignments {
		if a.RowIdx == row {
			return a.ColIdx
		}
	}
	t.Fatalf("no assignment found for row %d", row)
	return -1
}

func TestSolve_EmptyMatrixReturnsNil(t *testing.T) {
	if got := Solve(nil); got != nil {
		t.Errorf("expected nil for an empty cost matrix, got %v", got)
	}
	if got := Solve([][]float64{}); got != nil {
		t.Errorf("expected nil for a zero-row cost matrix, got %v", got)
	}
}

func TestSolve_DiagonalIsOptimal(t *testing.T) {
	cost := [][]float64{
		{0.0, 1.0, 1.0},
		{1.0, 0.0, 1.0},
		{1.0, 1.0, 0.0},
	}
	assignments := Solve(cost)
	if len(assignments) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(assignments))
	}
	for row := 0; row < 3; row++ {
		if col := assignedCol(t, assignments, row); col != row {
			t.Errorf("row %d: expected diagonal assignment to col %d, got col %d", row, row, col)
		}
	}
}

func TestSolve_PicksGloballyMinimalCostOverGreedyChoice(t *testing.T) {
	// A greedy row-by-row pick would take (0,0)=1 then be forced into a
	// costly (1,1)=10, total 11. The optimal assignment is (0,1)=2,
	// (1,0)=2, total 4.
	cost := [][]float64{
		{1, 2},
		{2, 10},
	}
	assignments := Solve(cost)
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}
	total := 0.0
	seenRows := map[int]bool{}
	for _, a := range assignments {
		total += cost[a.RowIdx][a.ColIdx]
		seenRows[a.RowIdx] = true
	}
	if len(seenRows) != 2 {
		t.Fatalf("expected every row assigned exactly once, got assignments %v", assignments)
	}
	if total != 4 {
		t.Errorf("expected optimal total cost 4, got %v (assignments=%v)", total, assignments)
	}
}

func TestSolve_RectangularMatrix(t *testing.T) {
	// 3 rows, 2 cols: one row must go unassigned.
	cost := [][]float64{
		{0.1, 0.9},
		{0.9, 0.1},
		{0.5, 0.5},
	}
	assignments := Solve(cost)
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments (bounded by the smaller dimension), got %d: %v", len(assignments), assignments)
	}
	for _, a := range assignments {
		if a.RowIdx < 0 || a.RowIdx >= 3 || a.ColIdx < 0 || a.ColIdx >= 2 {
			t.Errorf("assignment out of bounds: %+v", a)
		}
	}
}
