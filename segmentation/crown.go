package segmentation

import (
	"math"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/raster"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/utils"
)

// RadiusFunc maps a surface height to the crown search radius at that height,
// in world units. It must be monotonically non-decreasing.
type RadiusFunc func(height float64) float64

// DetectCrowns finds crown top markers on a smoothed height surface with a
// variable circular search window. A candidate cell must be the maximum of
// its own window; surviving candidates are visited tallest-first (row-major
// index breaking ties) and accepted unless an already-accepted marker lies
// within the suppression radius computed from the taller of the pair, so no
// top is ever suppressed by a shorter, later candidate.
func DetectCrowns(surface *raster.Grid, radiusFn RadiusFunc, minHeight float64) []Marker {
	candidates := dataCellsByHeight(surface)
	var markers []Marker
	for _, cand := range candidates {
		if cand.height < minHeight {
			break // sorted by descending height
		}
		if !isWindowMax(surface, cand.col, cand.row, radiusFn(cand.height)) {
			continue
		}
		x, y := surface.CellCenter(cand.col, cand.row)
		suppressed := false
		for _, m := range markers {
			// cand.height <= m.Height by visit order
			radius := radiusFn(m.Height)
			if math.Hypot(x-m.X, y-m.Y) <= radius {
				suppressed = true
				break
			}
		}
		if !suppressed {
			markers = append(markers, Marker{X: x, Y: y, Height: cand.height})
		}
	}
	return markers
}

// isWindowMax reports whether the cell at (col, row) holds the maximum value
// within the circular window of the given world-unit radius. Ties pass, so
// flat twin tops fall through to the suppression stage.
func isWindowMax(g *raster.Grid, col, row int, radius float64) bool {
	cells := int(radius / g.CellSize())
	h := g.Value(col, row)
	for r := utils.MaxInt(row-cells, 0); r <= utils.MinInt(row+cells, g.Rows()-1); r++ {
		for c := utils.MaxInt(col-cells, 0); c <= utils.MinInt(col+cells, g.Cols()-1); c++ {
			dx := float64(c-col) * g.CellSize()
			dy := float64(r-row) * g.CellSize()
			if math.Hypot(dx, dy) > radius {
				continue
			}
			if !g.IsNoData(c, r) && g.Value(c, r) > h {
				return false
			}
		}
	}
	return true
}
