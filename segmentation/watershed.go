package segmentation

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/theodesp/unionfind"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/raster"
)

// WatershedConfig parameterizes unseeded watershed segmentation.
type WatershedConfig struct {
	// MinHeight is the minimum surface value for a local maximum to seed a
	// basin.
	MinHeight float64
	// Tolerance is the maximum saddle depth below the lower of two adjacent
	// basin peaks for the basins to be merged.
	Tolerance float64
	// Extension dilates each finished basin outward by this many cells over
	// otherwise-unlabeled cells.
	Extension int
}

// Marker is a crown seed point for marker-controlled segmentation.
type Marker struct {
	X, Y   float64
	Height float64
}

var neighborhood8 = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// gridCell is one data cell queued for flood processing.
type gridCell struct {
	col, row int
	height   float64
}

// dataCellsByHeight returns all data cells sorted by descending height,
// row-major index breaking ties, which fixes the flooding order.
func dataCellsByHeight(grid *raster.Grid) []gridCell {
	cells := make([]gridCell, 0, grid.NonNoDataCount())
	for row := 0; row < grid.Rows(); row++ {
		for col := 0; col < grid.Cols(); col++ {
			if !grid.IsNoData(col, row) {
				cells = append(cells, gridCell{col, row, grid.Value(col, row)})
			}
		}
	}
	sort.SliceStable(cells, func(i, j int) bool {
		return cells[i].height > cells[j].height
	})
	return cells
}

// Unseeded performs flood-growing watershed segmentation over the grid.
// Basins grow from local maxima above cfg.MinHeight; adjacent basins merge
// when the saddle between them is within cfg.Tolerance of the lower peak.
// An input grid with zero data cells yields an empty label grid.
func Unseeded(grid *raster.Grid, cfg WatershedConfig) (*raster.LabelGrid, error) {
	if cfg.Extension < 0 {
		return nil, errors.Errorf("watershed extension must be non-negative, got %d", cfg.Extension)
	}
	labels := raster.NewLabelGrid(grid)
	cells := dataCellsByHeight(grid)
	if len(cells) == 0 {
		return labels, nil
	}

	uf := unionfind.New(len(cells) + 1)
	peak := make(map[int]float64) // keyed by union-find root
	next := 1

	for _, cell := range cells {
		// labels of already-flooded neighbors, highest neighbor first
		var neighborLabels []int
		bestLabel, bestHeight := raster.NoLabel, 0.0
		for _, d := range neighborhood8 {
			c, r := cell.col+d[0], cell.row+d[1]
			if !labels.Contains(c, r) {
				continue
			}
			l := labels.Label(c, r)
			if l == raster.NoLabel {
				continue
			}
			root := uf.Root(l)
			h := grid.Value(c, r)
			if bestLabel == raster.NoLabel || h > bestHeight {
				bestLabel, bestHeight = root, h
			}
			neighborLabels = append(neighborLabels, root)
		}

		if bestLabel == raster.NoLabel {
			// a fresh local maximum; only qualifying peaks seed basins
			if cell.height >= cfg.MinHeight {
				labels.SetLabel(cell.col, cell.row, next)
				peak[uf.Root(next)] = cell.height
				next++
			}
			continue
		}

		labels.SetLabel(cell.col, cell.row, bestLabel)
		// this cell is the saddle between any two distinct basins meeting here
		for _, l := range neighborLabels {
			rootA, rootB := uf.Root(bestLabel), uf.Root(l)
			if rootA == rootB {
				continue
			}
			lower := peak[rootA]
			if peak[rootB] < lower {
				lower = peak[rootB]
			}
			if lower-cell.height <= cfg.Tolerance {
				merged := peak[rootA]
				if peak[rootB] > merged {
					merged = peak[rootB]
				}
				uf.Union(rootA, rootB)
				peak[uf.Root(rootA)] = merged
			}
		}
	}

	resolved := resolveLabels(labels, uf)
	extendLabels(grid, resolved, cfg.Extension)
	return resolved, nil
}

// Seeded performs marker-controlled watershed segmentation: every data cell
// at or above minHeight is assigned to the marker its steepest-ascent path
// reaches. Cells whose path ends at an unmarked maximum remain unlabeled.
func Seeded(grid *raster.Grid, markers []Marker, minHeight float64) (*raster.LabelGrid, error) {
	labels := raster.NewLabelGrid(grid)
	if grid.NonNoDataCount() == 0 {
		return labels, nil
	}

	markerLabel := make(map[[2]int]int, len(markers))
	for i, m := range markers {
		col, row, ok := grid.CellIndex(m.X, m.Y)
		if !ok {
			return nil, errors.Errorf("marker %d at (%v, %v) lies outside the grid", i, m.X, m.Y)
		}
		if _, taken := markerLabel[[2]int{col, row}]; !taken {
			markerLabel[[2]int{col, row}] = i + 1
		}
	}

	const unresolved = -1
	assigned := make(map[[2]int]int, grid.NonNoDataCount())

	var ascend func(col, row int, path map[[2]int]bool) int
	ascend = func(col, row int, path map[[2]int]bool) int {
		key := [2]int{col, row}
		if l, ok := assigned[key]; ok {
			return l
		}
		if l, ok := markerLabel[key]; ok {
			assigned[key] = l
			return l
		}
		if path[key] {
			return unresolved
		}
		path[key] = true

		// steepest strictly-ascending neighbor; row-major order breaks ties
		h := grid.Value(col, row)
		bc, br, bh := -1, -1, h
		for _, d := range neighborhood8 {
			c, r := col+d[0], row+d[1]
			if !grid.Contains(c, r) || grid.IsNoData(c, r) {
				continue
			}
			if nh := grid.Value(c, r); nh > bh {
				bc, br, bh = c, r, nh
			}
		}
		if bc < 0 {
			// unmarked local maximum
			assigned[key] = unresolved
			return unresolved
		}
		l := ascend(bc, br, path)
		assigned[key] = l
		return l
	}

	for row := 0; row < grid.Rows(); row++ {
		for col := 0; col < grid.Cols(); col++ {
			if grid.IsNoData(col, row) || grid.Value(col, row) < minHeight {
				continue
			}
			if l := ascend(col, row, make(map[[2]int]bool)); l != unresolved {
				labels.SetLabel(col, row, l)
			}
		}
	}
	return labels, nil
}

// resolveLabels rewrites every cell's label through the union-find and
// compacts the surviving roots to 1..K in row-major first-encounter order.
func resolveLabels(labels *raster.LabelGrid, uf *unionfind.UnionFind) *raster.LabelGrid {
	compact := make(map[int]int)
	next := 1
	out := labels.NewAligned()
	for row := 0; row < labels.Rows(); row++ {
		for col := 0; col < labels.Cols(); col++ {
			l := labels.Label(col, row)
			if l == raster.NoLabel {
				continue
			}
			root := uf.Root(l)
			id, ok := compact[root]
			if !ok {
				id = next
				compact[root] = id
				next++
			}
			out.SetLabel(col, row, id)
		}
	}
	return out
}

// extendLabels dilates labeled areas outward over unlabeled data cells,
// breadth-first, up to steps rings. Earlier (higher-priority) labels win
// contested cells through the fixed queue order.
func extendLabels(grid *raster.Grid, labels *raster.LabelGrid, steps int) {
	type frontierCell struct{ col, row int }
	var frontier []frontierCell
	for row := 0; row < labels.Rows(); row++ {
		for col := 0; col < labels.Cols(); col++ {
			if labels.Label(col, row) != raster.NoLabel {
				frontier = append(frontier, frontierCell{col, row})
			}
		}
	}
	for step := 0; step < steps; step++ {
		var nextFrontier []frontierCell
		for _, f := range frontier {
			l := labels.Label(f.col, f.row)
			for _, d := range neighborhood8 {
				c, r := f.col+d[0], f.row+d[1]
				if !labels.Contains(c, r) || labels.Label(c, r) != raster.NoLabel {
					continue
				}
				if grid.IsNoData(c, r) {
					continue
				}
				labels.SetLabel(c, r, l)
				nextFrontier = append(nextFrontier, frontierCell{c, r})
			}
		}
		frontier = nextFrontier
	}
}
