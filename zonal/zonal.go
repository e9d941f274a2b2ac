// Package zonal reduces raster or point-cloud values over aggregated
// segments and classifies segments into the vegetation mask.
package zonal

import (
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/pointcloud"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/raster"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/segmentation"
)

// Reducer names a zonal reduction.
type Reducer int

// The supported reductions.
const (
	Mean Reducer = iota
	Max
	Sum
	Count
)

// reduce applies the reducer to the gathered samples. The second return is
// false when the zone held no samples; Count is defined even then.
func reduce(values []float64, reducer Reducer) (float64, bool) {
	if reducer == Count {
		return float64(len(values)), true
	}
	if len(values) == 0 {
		return 0, false
	}
	switch reducer {
	case Mean:
		return stat.Mean(values, nil), true
	case Max:
		return floats.Max(values), true
	default:
		return floats.Sum(values), true
	}
}

// ReduceRaster reduces the grid values under a segment's cells. The segment's
// label grid and the value grid must share one geometry; no-data cells are
// skipped. The second return is false when no cell held data.
func ReduceRaster(seg *segmentation.AggregatedSegment, grid *raster.Grid, reducer Reducer) (float64, bool) {
	values := make([]float64, 0, len(seg.Cells))
	for _, cell := range seg.Cells {
		if !grid.Contains(cell[0], cell[1]) || grid.IsNoData(cell[0], cell[1]) {
			continue
		}
		values = append(values, grid.Value(cell[0], cell[1]))
	}
	return reduce(values, reducer)
}

// ValueFunc extracts a sample value from a point; the second return skips the
// point when false.
type ValueFunc func(p r3.Vector, d pointcloud.Data) (float64, bool)

// indexedPoint couples a planar point position with its payload for r-tree
// storage.
type indexedPoint struct {
	geom.Point
	pos  r3.Vector
	data pointcloud.Data
}

// PointIndex is an r-tree over a cloud's planar positions, built once and
// queried per segment.
type PointIndex struct {
	tree *rtree.Rtree
}

// NewPointIndex indexes all points of the cloud.
func NewPointIndex(cloud pointcloud.PointCloud) *PointIndex {
	tree := rtree.NewTree(25, 50)
	cloud.Iterate(func(p r3.Vector, d pointcloud.Data) bool {
		tree.Insert(&indexedPoint{
			Point: geom.Point{X: p.X, Y: p.Y},
			pos:   p,
			data:  d,
		})
		return true
	})
	return &PointIndex{tree: tree}
}

// Reduce reduces point samples inside the segment's polygon. The second
// return is false when the segment overlapped no usable samples.
func (idx *PointIndex) Reduce(seg *segmentation.AggregatedSegment, value ValueFunc, reducer Reducer) (float64, bool) {
	var values []float64
	for _, item := range idx.tree.SearchIntersect(seg.Polygon.Bounds()) {
		ip := item.(*indexedPoint)
		if w := ip.Point.Within(seg.Polygon); w != geom.Inside && w != geom.OnEdge {
			continue
		}
		if v, ok := value(ip.pos, ip.data); ok {
			values = append(values, v)
		}
	}
	return reduce(values, reducer)
}

// ReduceAttribute reduces a named point attribute inside the segment's
// polygon. Points lacking the attribute are skipped.
func (idx *PointIndex) ReduceAttribute(seg *segmentation.AggregatedSegment, name string, reducer Reducer) (float64, bool) {
	return idx.Reduce(seg, func(p r3.Vector, d pointcloud.Data) (float64, bool) {
		return d.Attribute(name)
	}, reducer)
}
