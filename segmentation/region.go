// Package segmentation implements the surface-based region machinery of the
// urban-forest pipeline: watershed segmentation (seeded and unseeded),
// cleanup of fragmented regions into aggregated segments, and variable-window
// crown detection.
package segmentation

import (
	"sort"

	"github.com/ctessum/geom"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/raster"
)

// Region is one connected watershed label: its cells, derived outline
// polygon, and cell-exact area and perimeter.
type Region struct {
	ID        int
	Cells     [][2]int
	Polygon   geom.Polygon
	Area      float64
	Perimeter float64
}

// AggregatedSegment is the externally visible unit after cleanup: a non-empty
// union of one or more raw regions under one stable segment id, with
// recomputed geometry and accumulated metric attributes.
type AggregatedSegment struct {
	SegmentID int
	RegionIDs []int
	Cells     [][2]int
	Polygon   geom.Polygon
	Area      float64
	Perimeter float64
	Metrics   map[string]float64
}

// SetMetric stores a named metric value on the segment.
func (s *AggregatedSegment) SetMetric(name string, v float64) {
	if s.Metrics == nil {
		s.Metrics = make(map[string]float64, 4)
	}
	s.Metrics[name] = v
}

// Metric returns a named metric value, if present.
func (s *AggregatedSegment) Metric(name string) (float64, bool) {
	v, ok := s.Metrics[name]
	return v, ok
}

// RegionsFromLabels derives one Region per label in the grid, ordered by id.
func RegionsFromLabels(labels *raster.LabelGrid) []*Region {
	regions := make(map[int]*Region)
	for _, cells := range splitCells(labels) {
		id := labels.Label(cells[0][0], cells[0][1])
		regions[id] = &Region{
			ID:        id,
			Cells:     cells,
			Polygon:   tracePolygon(labels, cells),
			Area:      float64(len(cells)) * labels.CellArea(),
			Perimeter: boundaryLength(labels, cells),
		}
	}
	out := make([]*Region, 0, len(regions))
	for _, r := range regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// splitCells groups cell indices by label, each group in row-major order.
func splitCells(labels *raster.LabelGrid) [][][2]int {
	byLabel := labels.CellsByLabel()
	ids := make([]int, 0, len(byLabel))
	for id := range byLabel {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([][][2]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, byLabel[id])
	}
	return out
}

// boundaryLength sums the length of cell edges facing a different label.
func boundaryLength(labels *raster.LabelGrid, cells [][2]int) float64 {
	if len(cells) == 0 {
		return 0
	}
	id := labels.Label(cells[0][0], cells[0][1])
	edges := 0
	for _, cell := range cells {
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			c, r := cell[0]+d[0], cell[1]+d[1]
			if !labels.Contains(c, r) || labels.Label(c, r) != id {
				edges++
			}
		}
	}
	return float64(edges) * labels.CellSize()
}
