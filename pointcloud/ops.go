package pointcloud

import (
	"github.com/ctessum/geom"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/raster"
)

// JoinRasterAttribute samples the grid at each point's (x, y) by nearest cell
// and stores the value under the given attribute name. Points outside the
// grid or over no-data cells are left without the attribute.
func JoinRasterAttribute(cloud PointCloud, grid *raster.Grid, name string) {
	cloud.Iterate(func(p r3.Vector, d Data) bool {
		if v, ok := grid.At(p.X, p.Y); ok {
			d.SetAttribute(name, v)
		}
		return true
	})
}

// CropToPolygon returns a new cloud holding the points whose planar position
// lies inside or on the edge of the polygon.
func CropToPolygon(cloud PointCloud, poly geom.Polygon) (PointCloud, error) {
	cropped := New()
	var err error
	cloud.Iterate(func(p r3.Vector, d Data) bool {
		pt := geom.Point{X: p.X, Y: p.Y}
		if w := pt.Within(poly); w == geom.Inside || w == geom.OnEdge {
			err = cropped.Set(p, d)
		}
		return err == nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "cropping point cloud to polygon")
	}
	return cropped, nil
}

// SplitByLabel partitions the cloud by the label grid under each point's
// planar position. Points over unlabeled cells are dropped.
func SplitByLabel(cloud PointCloud, labels *raster.LabelGrid) (map[int]PointCloud, error) {
	out := make(map[int]PointCloud)
	var err error
	cloud.Iterate(func(p r3.Vector, d Data) bool {
		l := labels.LabelAt(p.X, p.Y)
		if l == raster.NoLabel {
			return true
		}
		sub, ok := out[l]
		if !ok {
			sub = New()
			out[l] = sub
		}
		err = sub.Set(p, d)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FilterRoofPoints drops points lying on or under the roof surface over
// their cell. Points strictly above the roof height are kept, coplanar points
// are removed with the roof; points over cells without roof data pass
// through.
func FilterRoofPoints(cloud PointCloud, roof *raster.Grid) (PointCloud, error) {
	filtered := New()
	var err error
	cloud.Iterate(func(p r3.Vector, d Data) bool {
		if zMax, ok := roof.At(p.X, p.Y); ok && p.Z <= zMax {
			return true
		}
		err = filtered.Set(p, d)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return filtered, nil
}

// FilterByClassification returns a new cloud with only the points whose
// classification code passes the keep function.
func FilterByClassification(cloud PointCloud, keep func(code int) bool) (PointCloud, error) {
	filtered := New()
	var err error
	cloud.Iterate(func(p r3.Vector, d Data) bool {
		if keep(d.Classification()) {
			err = filtered.Set(p, d)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return filtered, nil
}

// Positions extracts all point positions in insertion order.
func Positions(cloud PointCloud) []r3.Vector {
	positions := make([]r3.Vector, 0, cloud.Size())
	cloud.Iterate(func(p r3.Vector, d Data) bool {
		positions = append(positions, p)
		return true
	})
	return positions
}

// PrunePointClouds removes any pointcloud from the slice that has fewer
// points than nMin.
func PrunePointClouds(clouds []PointCloud, nMin int) []PointCloud {
	pruned := make([]PointCloud, 0, len(clouds))
	for _, cloud := range clouds {
		if cloud.Size() >= nMin {
			pruned = append(pruned, cloud)
		}
	}
	return pruned
}
