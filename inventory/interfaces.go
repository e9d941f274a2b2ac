package inventory

import (
	"context"

	"github.com/ctessum/geom"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/pointcloud"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/raster"
)

// PointCloudSource yields a tile's height-normalized point cloud. File
// formats, CRS bookkeeping and ground normalization live behind it.
type PointCloudSource interface {
	PointCloud(ctx context.Context) (pointcloud.PointCloud, error)
}

// RasterSource yields the tile's raster surfaces.
type RasterSource interface {
	// NormalizedSurface is the nDSM: per-cell height above ground.
	NormalizedSurface(ctx context.Context) (*raster.Grid, error)
	// VegetationIndex is the per-cell spectral vegetation index.
	VegetationIndex(ctx context.Context) (*raster.Grid, error)
	// RoofHeights is an optional per-cell roof elevation; a nil grid means
	// no roof filtering.
	RoofHeights(ctx context.Context) (*raster.Grid, error)
}

// Feature is one vector feature with its attribute table.
type Feature struct {
	Geometry   geom.Geom
	Attributes map[string]interface{}
}

// PolygonSink persists a named vector feature set. Exact formats and paths
// are orchestration concerns.
type PolygonSink interface {
	WriteFeatures(ctx context.Context, layer string, features []Feature) error
}
