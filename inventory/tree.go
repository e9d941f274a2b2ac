package inventory

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/pointcloud"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/spatialmath"
)

// minCrownExtent is the minimum spatial span a crown point subset must have
// on every axis before its geometry is measured.
const minCrownExtent = 0.1

// TreeRecord is the terminal, persisted entity of the pipeline: the geometric
// parameters of one detected tree plus the metrics its crown segment was
// classified with.
type TreeRecord struct {
	ID     int    // stable crown segment id within the tile
	TreeID string // tile-qualified id

	// base position
	X, Y, Z float64

	Height      float64 // top of crown above ground
	CrownHeight float64 // vertical extent of the crown
	TrunkHeight float64 // crown base above ground

	CrownDiameter    float64 // maximum planar extent (hull diameter)
	CrownWidth       float64 // minimum caliper width
	CrownLength      float64 // same as CrownDiameter, kept for the attribute table
	CrownOrientation float64 // radians of the length axis against +x, [0, pi)
	CrownHullArea    float64
	CrownVolume      float64
	CrownSurface     float64

	PrototypeID int

	// classification metrics carried through from the mask pass
	ReturnsRatio float64
	VegIndex     float64
	Score        float64
}

// MeasureCrown computes the geometry of one crown from its point subset and
// assigns a prototype. Subsets with fewer than 4 points, a span of 0.1 or
// less on any axis, or a non-positive hull volume yield a GeometryError and
// no record.
func MeasureCrown(id int, crown pointcloud.PointCloud, assigner *PrototypeAssigner) (*TreeRecord, error) {
	positions := pointcloud.Positions(crown)
	meta := crown.MetaData()
	if len(positions) < 4 ||
		meta.MaxX-meta.MinX <= minCrownExtent ||
		meta.MaxY-meta.MinY <= minCrownExtent ||
		meta.MaxZ-meta.MinZ <= minCrownExtent {
		return nil, spatialmath.NewDegenerateCrownError(id, len(positions))
	}

	planar := make([]r2.Point, 0, len(positions))
	for _, p := range positions {
		planar = append(planar, r2.Point{X: p.X, Y: p.Y})
	}
	hull2, err := spatialmath.ConvexHull2D(planar)
	if err != nil {
		return nil, err
	}
	extents, err := spatialmath.HullExtents(hull2)
	if err != nil {
		return nil, err
	}

	hull3, err := spatialmath.ConvexHull3D(positions)
	if err != nil {
		return nil, err
	}
	volume := spatialmath.HullVolume(hull3)
	if volume <= 0 {
		return nil, spatialmath.NewDegenerateCrownError(id, len(positions))
	}

	top := highestPoint(positions)
	height := meta.MaxZ
	trunkHeight := meta.MinZ
	crownHeight := height - trunkHeight

	ratio := math.Inf(1)
	if trunkHeight > 0 {
		ratio = crownHeight / trunkHeight
	}

	return &TreeRecord{
		ID:               id,
		X:                top.X,
		Y:                top.Y,
		Z:                trunkHeight,
		Height:           height,
		CrownHeight:      crownHeight,
		TrunkHeight:      trunkHeight,
		CrownDiameter:    extents.Length,
		CrownWidth:       extents.Width,
		CrownLength:      extents.Length,
		CrownOrientation: extents.Orientation,
		CrownHullArea:    spatialmath.HullArea(hull2),
		CrownVolume:      volume,
		CrownSurface:     spatialmath.HullSurfaceArea(hull3),
		PrototypeID:      assigner.Assign(ratio),
	}, nil
}

func highestPoint(positions []r3.Vector) r3.Vector {
	best := positions[0]
	for _, p := range positions[1:] {
		if p.Z > best.Z {
			best = p
		}
	}
	return best
}
