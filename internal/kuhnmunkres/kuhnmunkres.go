// Copyright 2025 Nathan Michlo
// SPDX-License-Identifier: BSD-3-Clause
//
// Adapted from a Go port of scipy.optimize.linear_sum_assignment behavior
// (original source: https://github.com/scipy/scipy/blob/main/scipy/optimize/_linear_sum_assignment.py,
// BSD-3-Clause, Copyright (c) 2001-2002 Enthought, Inc. 2003-2024, SciPy Developers)
// reworked into an unthresholded optimal Assignment solver usable as a
// drop-in for the tracker's default greedy Solver.
//
// Uses go-hungarian (MIT License) by Arthur Kushman for the underlying
// Hungarian algorithm.

// Package kuhnmunkres wraps github.com/arthurkushman/go-hungarian to
// provide an optimal linear-assignment solver, offered as a compatible
// drop-in for the tracker's default reduced-cost greedy solver.
package kuhnmunkres

import (
	hungarian "github.com/arthurkushman/go-hungarian"
)

// Assignment represents a match between a row and a column index.
type Assignment struct {
	RowIdx int
	ColIdx int
}

const maxProfit = 1.0

// Solve finds the optimal (minimum total cost) assignment over a
// rectangular non-negative cost matrix, padding to square and converting
// cost to profit so github.com/arthurkushman/go-hungarian's SolveMax can
// be reused for minimization.
func Solve(costMatrix [][]float64) []Assignment {
	numRows := len(costMatrix)
	if numRows == 0 {
		return nil
	}
	numCols := len(costMatrix[0])
	if numCols == 0 {
		return nil
	}

	size := numRows
	if numCols > size {
		size = numCols
	}

	profitMatrix := make([][]float64, size)
	for i := range profitMatrix {
		profitMatrix[i] = make([]float64, size)
		for j := range profitMatrix[i] {
			if i < numRows && j < numCols {
				profitMatrix[i][j] = maxProfit - costMatrix[i][j]
			}
		}
	}

	result := hungarian.SolveMax(profitMatrix)

	var assignments []Assignment
	for rowIdx, cols := range result {
		for colIdx := range cols {
			if rowIdx < numRows && colIdx < numCols {
				assignments = append(assignments, Assignment{RowIdx: rowIdx, ColIdx: colIdx})
			}
		}
	}
	return assignments
}
