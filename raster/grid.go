// Package raster defines the regular float grid the processing pipeline works
// on, along with focal filtering and the integer label grids produced by
// segmentation. Cells hold float64 values; NaN marks no-data.
package raster

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Grid is a regular 2D raster. The origin is the world coordinate of the
// lower-left corner of cell (0, 0); columns increase with x, rows with y.
type Grid struct {
	originX, originY float64
	cellSize         float64
	cols, rows       int

	data *mat.Dense
}

// NewGrid returns an all-no-data grid with the given geometry.
func NewGrid(originX, originY, cellSize float64, cols, rows int) (*Grid, error) {
	if cellSize <= 0 {
		return nil, errors.Errorf("cellSize must be positive, got %v", cellSize)
	}
	if cols <= 0 || rows <= 0 {
		return nil, errors.Errorf("grid dimensions must be positive, got %dx%d", cols, rows)
	}
	data := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data.Set(r, c, math.NaN())
		}
	}
	return &Grid{
		originX:  originX,
		originY:  originY,
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		data:     data,
	}, nil
}

// Cols returns the number of columns.
func (g *Grid) Cols() int {
	return g.cols
}

// Rows returns the number of rows.
func (g *Grid) Rows() int {
	return g.rows
}

// CellSize returns the edge length of one cell.
func (g *Grid) CellSize() float64 {
	return g.cellSize
}

// CellArea returns the area covered by one cell.
func (g *Grid) CellArea() float64 {
	return g.cellSize * g.cellSize
}

// Origin returns the world coordinate of the lower-left grid corner.
func (g *Grid) Origin() (float64, float64) {
	return g.originX, g.originY
}

// Bounds returns the world-coordinate extent of the grid.
func (g *Grid) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.originX, Y: g.originY},
		Max: geom.Point{
			X: g.originX + float64(g.cols)*g.cellSize,
			Y: g.originY + float64(g.rows)*g.cellSize,
		},
	}
}

// Value returns the cell value at (col, row). NaN means no-data.
func (g *Grid) Value(col, row int) float64 {
	return g.data.At(row, col)
}

// Set stores a value at (col, row).
func (g *Grid) Set(col, row int, v float64) {
	g.data.Set(row, col, v)
}

// SetNoData marks the cell at (col, row) as no-data.
func (g *Grid) SetNoData(col, row int) {
	g.data.Set(row, col, math.NaN())
}

// IsNoData reports whether the cell at (col, row) holds no data.
func (g *Grid) IsNoData(col, row int) bool {
	return math.IsNaN(g.data.At(row, col))
}

// Contains reports whether (col, row) lies inside the grid.
func (g *Grid) Contains(col, row int) bool {
	return col >= 0 && col < g.cols && row >= 0 && row < g.rows
}

// CellIndex maps a world coordinate to the containing cell. The second return
// is false when the coordinate falls outside the grid extent.
func (g *Grid) CellIndex(x, y float64) (int, int, bool) {
	col := int(math.Floor((x - g.originX) / g.cellSize))
	row := int(math.Floor((y - g.originY) / g.cellSize))
	if !g.Contains(col, row) {
		return 0, 0, false
	}
	return col, row, true
}

// CellCenter returns the world coordinate of a cell's center.
func (g *Grid) CellCenter(col, row int) (float64, float64) {
	return g.originX + (float64(col)+0.5)*g.cellSize,
		g.originY + (float64(row)+0.5)*g.cellSize
}

// At samples the grid at a world coordinate by nearest cell. The second
// return is false outside the extent or over a no-data cell.
func (g *Grid) At(x, y float64) (float64, bool) {
	col, row, ok := g.CellIndex(x, y)
	if !ok || g.IsNoData(col, row) {
		return 0, false
	}
	return g.Value(col, row), true
}

// NonNoDataCount returns the number of cells holding data.
func (g *Grid) NonNoDataCount() int {
	n := 0
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if !math.IsNaN(g.data.At(r, c)) {
				n++
			}
		}
	}
	return n
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		originX:  g.originX,
		originY:  g.originY,
		cellSize: g.cellSize,
		cols:     g.cols,
		rows:     g.rows,
		data:     mat.DenseCopyOf(g.data),
	}
	return out
}

// NewAligned returns an all-no-data grid with the same geometry as g.
func (g *Grid) NewAligned() *Grid {
	out, err := NewGrid(g.originX, g.originY, g.cellSize, g.cols, g.rows)
	if err != nil {
		// geometry of an existing grid is always valid
		panic(err)
	}
	return out
}
