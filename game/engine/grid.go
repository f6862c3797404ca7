package engine

import (
	"strconv"
	"strings"
)

// Pair is two adjacent cell indices holding equal dice
type Pair struct {
	A int `json:"a"`
	B int `json:"b"`
}

// CellIndex converts row/col into a row-major index
func CellIndex(row, col, size int) int {
	return row*size + col
}

// CellRowCol converts a row-major index into row/col
func CellRowCol(index, size int) (int, int) {
	return index / size, index % size
}

// EmptyCells returns the indices of all empty cells in ascending order
func EmptyCells(grid []int) []int {
	var empty []int
	for i, v := range grid {
		if v == EmptyCell {
			empty = append(empty, i)
		}
	}
	return empty
}

// CountEmpty counts empty cells
func CountEmpty(grid []int) int {
	count := 0
	for _, v := range grid {
		if v == EmptyCell {
			count++
		}
	}
	return count
}

// MaxValue returns the largest die on the grid, or 0 for an empty grid
func MaxValue(grid []int) int {
	highest := 0
	for _, v := range grid {
		if v > highest {
			highest = v
		}
	}
	return highest
}

// AdjacentEqualPairs lists every right/down neighbour pair holding equal dice.
// Each adjacent pair is visited once from its lower index.
func AdjacentEqualPairs(grid []int, size int) []Pair {
	var pairs []Pair
	for i, v := range grid {
		if v == EmptyCell {
			continue
		}
		row, col := CellRowCol(i, size)
		if col+1 < size && grid[i+1] == v {
			pairs = append(pairs, Pair{A: i, B: i + 1})
		}
		if row+1 < size && grid[i+size] == v {
			pairs = append(pairs, Pair{A: i, B: i + size})
		}
	}
	return pairs
}

// IsTerminal reports whether the grid is full and no right/down neighbours match
func IsTerminal(grid []int, size int) bool {
	for _, v := range grid {
		if v == EmptyCell {
			return false
		}
	}

	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			v := grid[CellIndex(row, col, size)]
			if col+1 < size && grid[CellIndex(row, col+1, size)] == v {
				return false
			}
			if row+1 < size && grid[CellIndex(row+1, col, size)] == v {
				return false
			}
		}
	}

	return true
}

// RenderRows draws the grid as text rows, "." for empty cells
func RenderRows(grid []int, size int) []string {
	if size <= 0 {
		return nil
	}
	rows := make([]string, 0, size)
	for row := 0; row < size; row++ {
		cells := make([]string, size)
		for col := 0; col < size; col++ {
			v := grid[CellIndex(row, col, size)]
			if v == EmptyCell {
				cells[col] = "."
			} else {
				cells[col] = strconv.Itoa(v)
			}
		}
		rows = append(rows, strings.Join(cells, " "))
	}
	return rows
}

// ValueCounts tallies dice by value, ignoring empty cells
func ValueCounts(grid []int) map[int]int {
	counts := make(map[int]int)
	for _, v := range grid {
		if v != EmptyCell {
			counts[v]++
		}
	}
	return counts
}
