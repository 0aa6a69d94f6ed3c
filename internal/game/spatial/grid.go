// Package spatial provides a uniform grid for broad-phase range queries.
//
// The grid stores integer indices (not pointers) into the caller's entity
// slice, which keeps it allocation-free between rebuilds and lets callers
// recover their own iteration order from the indices.
package spatial

import (
	"math"
	"slices"
)

// SpatialGrid provides O(1) average range queries via fixed-size cells.
//
// Optimal cell size equals the largest query radius. For lane minions:
//   - Aggro range: 100px → Cell size: 100px (a query touches at most 3x3 cells)
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col])
type SpatialGrid struct {
	cellSize    float64
	invCellSize float64 // 1/cellSize for faster division
	cols, rows  int
	cells       [][]uint32 // cells[row*cols+col] = list of entity indices
	scratch     []uint32   // reusable buffer for query results
	count       int
}

// NewSpatialGrid creates a grid for the given world bounds.
// maxEntities is used to preallocate cell capacity.
func NewSpatialGrid(worldWidth, worldHeight, cellSize float64, maxEntities int) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 100
	}
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))

	// Ensure at least 1x1 grid
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	avgPerCell := maxEntities / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, avgPerCell)
	}

	return &SpatialGrid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear resets all cells without deallocating underlying memory.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.count = 0
}

// Insert adds an entity at position (x, y). Positions outside the world are
// clamped into the border cells.
func (g *SpatialGrid) Insert(entityID uint32, x, y float64) {
	col := g.clampCol(int(math.Floor(x * g.invCellSize)))
	row := g.clampRow(int(math.Floor(y * g.invCellSize)))

	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], entityID)
	g.count++
}

// QueryRadius returns the indices of all entities whose cell intersects the
// square around (cx, cy), in ascending index order.
//
// IMPORTANT: The returned slice is reused on subsequent calls.
//
// Candidates may lie outside the radius; the caller must perform a precise
// distance check (narrow phase).
func (g *SpatialGrid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol := g.clampCol(int(math.Floor((cx - radius) * g.invCellSize)))
	maxCol := g.clampCol(int(math.Floor((cx + radius) * g.invCellSize)))
	minRow := g.clampRow(int(math.Floor((cy - radius) * g.invCellSize)))
	maxRow := g.clampRow(int(math.Floor((cy + radius) * g.invCellSize)))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}

	// Cells are visited spatially; callers depend on insertion order.
	slices.Sort(g.scratch)
	return g.scratch
}

func (g *SpatialGrid) clampCol(col int) int {
	return min(max(col, 0), g.cols-1)
}

func (g *SpatialGrid) clampRow(row int) int {
	return min(max(row, 0), g.rows-1)
}

// Len returns the number of entities inserted since the last Clear
func (g *SpatialGrid) Len() int { return g.count }

// Stats returns grid statistics for debugging/profiling.
func (g *SpatialGrid) Stats() GridStats {
	var maxInCell, nonEmpty int
	for _, cell := range g.cells {
		if len(cell) > maxInCell {
			maxInCell = len(cell)
		}
		if len(cell) > 0 {
			nonEmpty++
		}
	}

	avgPerCell := 0.0
	if nonEmpty > 0 {
		avgPerCell = float64(g.count) / float64(nonEmpty)
	}

	return GridStats{
		TotalCells:     len(g.cells),
		NonEmptyCells:  nonEmpty,
		TotalEntities:  g.count,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avgPerCell,
	}
}

// GridStats contains grid statistics for debugging.
type GridStats struct {
	TotalCells     int
	NonEmptyCells  int
	TotalEntities  int
	MaxInCell      int
	AvgPerNonEmpty float64
}

// Dimensions returns the grid dimensions.
func (g *SpatialGrid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
