package raster

// NoLabel marks an unlabeled cell in a LabelGrid.
const NoLabel = 0

// LabelGrid is an integer raster aligned with a Grid. Labels are positive;
// NoLabel (zero) marks cells outside every region.
type LabelGrid struct {
	originX, originY float64
	cellSize         float64
	cols, rows       int

	labels []int
}

// NewLabelGrid returns an all-unlabeled grid aligned with ref.
func NewLabelGrid(ref *Grid) *LabelGrid {
	return &LabelGrid{
		originX:  ref.originX,
		originY:  ref.originY,
		cellSize: ref.cellSize,
		cols:     ref.cols,
		rows:     ref.rows,
		labels:   make([]int, ref.cols*ref.rows),
	}
}

// Cols returns the number of columns.
func (lg *LabelGrid) Cols() int {
	return lg.cols
}

// Rows returns the number of rows.
func (lg *LabelGrid) Rows() int {
	return lg.rows
}

// CellSize returns the edge length of one cell.
func (lg *LabelGrid) CellSize() float64 {
	return lg.cellSize
}

// CellArea returns the area covered by one cell.
func (lg *LabelGrid) CellArea() float64 {
	return lg.cellSize * lg.cellSize
}

// Contains reports whether (col, row) lies inside the grid.
func (lg *LabelGrid) Contains(col, row int) bool {
	return col >= 0 && col < lg.cols && row >= 0 && row < lg.rows
}

// Label returns the label at (col, row).
func (lg *LabelGrid) Label(col, row int) int {
	return lg.labels[row*lg.cols+col]
}

// SetLabel stores a label at (col, row).
func (lg *LabelGrid) SetLabel(col, row, label int) {
	lg.labels[row*lg.cols+col] = label
}

// LabelAt returns the label under a world coordinate, or NoLabel outside the
// grid extent.
func (lg *LabelGrid) LabelAt(x, y float64) int {
	col := int((x - lg.originX) / lg.cellSize)
	row := int((y - lg.originY) / lg.cellSize)
	if x < lg.originX || y < lg.originY || !lg.Contains(col, row) {
		return NoLabel
	}
	return lg.Label(col, row)
}

// CellCenter returns the world coordinate of a cell's center.
func (lg *LabelGrid) CellCenter(col, row int) (float64, float64) {
	return lg.originX + (float64(col)+0.5)*lg.cellSize,
		lg.originY + (float64(row)+0.5)*lg.cellSize
}

// CellCorner returns the world coordinate of a cell's lower-left corner.
func (lg *LabelGrid) CellCorner(col, row int) (float64, float64) {
	return lg.originX + float64(col)*lg.cellSize,
		lg.originY + float64(row)*lg.cellSize
}

// NewAligned returns an all-unlabeled grid with the same geometry as lg.
func (lg *LabelGrid) NewAligned() *LabelGrid {
	return &LabelGrid{
		originX:  lg.originX,
		originY:  lg.originY,
		cellSize: lg.cellSize,
		cols:     lg.cols,
		rows:     lg.rows,
		labels:   make([]int, lg.cols*lg.rows),
	}
}

// Relabel returns a copy with labels rewritten through the mapping. Labels
// absent from the mapping become NoLabel.
func (lg *LabelGrid) Relabel(mapping map[int]int) *LabelGrid {
	out := &LabelGrid{
		originX:  lg.originX,
		originY:  lg.originY,
		cellSize: lg.cellSize,
		cols:     lg.cols,
		rows:     lg.rows,
		labels:   make([]int, len(lg.labels)),
	}
	for i, l := range lg.labels {
		if l == NoLabel {
			continue
		}
		out.labels[i] = mapping[l]
	}
	return out
}

// CellsByLabel groups cell indices (col, row packed as [2]int) by label.
func (lg *LabelGrid) CellsByLabel() map[int][][2]int {
	out := make(map[int][][2]int)
	for row := 0; row < lg.rows; row++ {
		for col := 0; col < lg.cols; col++ {
			if l := lg.Label(col, row); l != NoLabel {
				out[l] = append(out[l], [2]int{col, row})
			}
		}
	}
	return out
}
