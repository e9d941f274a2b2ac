package inventory

import (
	"context"
	"fmt"

	"github.com/ctessum/geom"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/pointcloud"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/raster"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/segmentation"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/spatialmath"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/utils"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/zonal"
)

// Pipeline runs the two-pass segmentation and measurement over one tile at a
// time. Tiles share no mutable state, so one Pipeline may process tiles from
// multiple goroutines.
type Pipeline struct {
	cfg        *Config
	logger     golog.Logger
	classifier *zonal.Classifier
	assigner   *PrototypeAssigner
}

// NewPipeline validates the configuration and builds a pipeline.
func NewPipeline(cfg *Config, logger golog.Logger) (*Pipeline, error) {
	if err := cfg.Validate("pipeline"); err != nil {
		return nil, err
	}
	assigner, err := NewPrototypeAssigner(cfg.PrototypeBoundaries)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		classifier: zonal.NewClassifier(cfg.ScoreThreshold),
		assigner:   assigner,
	}, nil
}

// TileInput is the externally supplied data for one tile.
type TileInput struct {
	TileID   string
	Cloud    pointcloud.PointCloud
	Surface  *raster.Grid // nDSM: height above ground per cell
	VegIndex *raster.Grid // spectral vegetation index per cell
	Roof     *raster.Grid // optional roof heights; nil disables roof filtering
}

// LoadTile pulls one tile's inputs through the source interfaces.
func LoadTile(ctx context.Context, tileID string, points PointCloudSource, rasters RasterSource) (TileInput, error) {
	cloud, err := points.PointCloud(ctx)
	if err != nil {
		return TileInput{}, errors.Wrapf(err, "loading point cloud for tile %s", tileID)
	}
	surface, err := rasters.NormalizedSurface(ctx)
	if err != nil {
		return TileInput{}, errors.Wrapf(err, "loading nDSM for tile %s", tileID)
	}
	veg, err := rasters.VegetationIndex(ctx)
	if err != nil {
		return TileInput{}, errors.Wrapf(err, "loading vegetation index for tile %s", tileID)
	}
	roof, err := rasters.RoofHeights(ctx)
	if err != nil {
		return TileInput{}, errors.Wrapf(err, "loading roof heights for tile %s", tileID)
	}
	return TileInput{TileID: tileID, Cloud: cloud, Surface: surface, VegIndex: veg, Roof: roof}, nil
}

// TileResult carries everything the orchestrator persists for one tile.
type TileResult struct {
	RunID  uuid.UUID
	TileID string

	CanopyHeight    *raster.Grid
	VegetationCloud pointcloud.PointCloud
	CrownLabels     *raster.LabelGrid
	CrownSegments   []*segmentation.AggregatedSegment
	Trees           []*TreeRecord
}

// ProcessTile runs both classification passes over one tile: vegetation
// masking, then crown delineation and measurement.
func (p *Pipeline) ProcessTile(ctx context.Context, tile TileInput) (*TileResult, error) {
	if tile.Cloud == nil || tile.Cloud.Size() == 0 {
		return nil, errors.Errorf("tile %s: input point cloud is empty", tile.TileID)
	}
	if tile.Surface == nil {
		return nil, errors.Errorf("tile %s: input nDSM raster is missing", tile.TileID)
	}
	if tile.VegIndex == nil {
		return nil, errors.Errorf("tile %s: input vegetation index raster is missing", tile.TileID)
	}
	sb, vb := tile.Surface.Bounds(), tile.VegIndex.Bounds()
	if vb.Min.X > sb.Min.X || vb.Min.Y > sb.Min.Y || vb.Max.X < sb.Max.X || vb.Max.Y < sb.Max.Y {
		return nil, errors.Errorf("tile %s: vegetation index raster does not cover the nDSM extent", tile.TileID)
	}

	cloud := tile.Cloud
	if tile.Roof != nil {
		filtered, err := pointcloud.FilterRoofPoints(cloud, tile.Roof)
		if err != nil {
			return nil, err
		}
		p.logger.Debugw("roof points removed", "tile", tile.TileID, "before", cloud.Size(), "after", filtered.Size())
		cloud = filtered
	}
	joinReturnsRatio(cloud)

	// mask pass: unseeded watershed over the raw surface, cleanup, then the
	// composite-score vegetation classification per segment
	maskLabels, err := segmentation.Unseeded(tile.Surface, p.cfg.Watershed)
	if err != nil {
		return nil, err
	}
	maskSegments, maskGrid, err := segmentation.Clean(maskLabels, p.cfg.MinSegmentArea)
	if err != nil {
		return nil, err
	}
	cellArea := tile.Surface.CellArea()
	cloudIndex := zonal.NewPointIndex(cloud)
	vegetation := make(map[int]bool, len(maskSegments))
	for _, seg := range maskSegments {
		if r, ok := cloudIndex.ReduceAttribute(seg, zonal.MetricReturnsRatio, zonal.Mean); ok {
			seg.SetMetric(zonal.MetricReturnsRatio, r)
		}
		if v, ok := zonal.ReduceRaster(seg, tile.VegIndex, zonal.Mean); ok {
			seg.SetMetric(zonal.MetricVegIndex, v)
		}
		if p.classifier.Classify(seg, cellArea) {
			vegetation[seg.SegmentID] = true
		}
	}
	p.logger.Infow("vegetation mask built",
		"tile", tile.TileID, "segments", len(maskSegments), "vegetation", len(vegetation))

	chm := p.canopyHeightModel(tile.Surface, maskGrid, vegetation)
	vegCloud, err := p.vegetationCloud(cloud, maskGrid, vegetation)
	if err != nil {
		return nil, err
	}
	vegMeta := vegCloud.MetaData()
	p.logger.Debugw("vegetation cloud built", "tile", tile.TileID,
		"points", vegCloud.Size(), "center", vegMeta.Center(vegCloud.Size()))

	// crown pass: marker-controlled watershed over the smoothed CHM, cleanup,
	// then per-crown measurement
	smoothed, err := chm.GaussianSmooth(p.cfg.SmoothingSigma)
	if err != nil {
		return nil, err
	}
	markers := segmentation.DetectCrowns(smoothed, p.cfg.RadiusFunc(), p.cfg.MinTreeHeight)
	seeded, err := segmentation.Seeded(smoothed, markers, p.cfg.MinTreeHeight)
	if err != nil {
		return nil, err
	}
	crownSegments, crownGrid, err := segmentation.Clean(seeded, p.cfg.MinSegmentArea)
	if err != nil {
		return nil, err
	}
	crownClouds, err := pointcloud.SplitByLabel(vegCloud, crownGrid)
	if err != nil {
		return nil, err
	}

	trees, err := p.measureCrowns(ctx, tile, crownSegments, crownClouds, cloudIndex, cellArea)
	if err != nil {
		return nil, err
	}
	p.logger.Infow("tile processed", "tile", tile.TileID, "markers", len(markers),
		"crowns", len(crownSegments), "trees", len(trees))

	return &TileResult{
		RunID:           uuid.New(),
		TileID:          tile.TileID,
		CanopyHeight:    chm,
		VegetationCloud: vegCloud,
		CrownLabels:     crownGrid,
		CrownSegments:   crownSegments,
		Trees:           trees,
	}, nil
}

// measureCrowns runs the geometric measurement of all crown segments in
// parallel, keyed by segment id, with a reduction barrier before returning.
// Degenerate crowns are dropped, never fatal to the tile.
func (p *Pipeline) measureCrowns(
	ctx context.Context,
	tile TileInput,
	segments []*segmentation.AggregatedSegment,
	crownClouds map[int]pointcloud.PointCloud,
	cloudIndex *zonal.PointIndex,
	cellArea float64,
) ([]*TreeRecord, error) {
	slots := make([]*TreeRecord, len(segments))
	err := utils.GroupWorkParallel(ctx, len(segments), func(groupSize int) {},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(memberNum, workNum int) {
				seg := segments[workNum]
				crown, ok := crownClouds[seg.SegmentID]
				if !ok {
					return
				}
				record, err := MeasureCrown(seg.SegmentID, crown, p.assigner)
				if err != nil {
					if spatialmath.IsGeometryError(err) {
						p.logger.Debugw("dropping degenerate crown", "tile", tile.TileID,
							"segment", seg.SegmentID, "error", err)
						return
					}
					p.logger.Errorw("crown measurement failed", "tile", tile.TileID,
						"segment", seg.SegmentID, "error", err)
					return
				}
				record.TreeID = fmt.Sprintf("%s_%d", tile.TileID, record.ID)
				if r, ok := cloudIndex.ReduceAttribute(seg, zonal.MetricReturnsRatio, zonal.Mean); ok {
					seg.SetMetric(zonal.MetricReturnsRatio, r)
					record.ReturnsRatio = r
				}
				if v, ok := zonal.ReduceRaster(seg, tile.VegIndex, zonal.Mean); ok {
					seg.SetMetric(zonal.MetricVegIndex, v)
					record.VegIndex = v
				}
				if score, ok := p.classifier.Score(seg, cellArea); ok {
					record.Score = score
				}
				slots[workNum] = record
			}, nil
		})
	if err != nil {
		return nil, err
	}
	trees := make([]*TreeRecord, 0, len(slots))
	for _, record := range slots {
		if record != nil {
			trees = append(trees, record)
		}
	}
	return trees, nil
}

// canopyHeightModel restricts the surface to vegetation segments within the
// configured tree height range.
func (p *Pipeline) canopyHeightModel(surface *raster.Grid, maskGrid *raster.LabelGrid, vegetation map[int]bool) *raster.Grid {
	chm := surface.NewAligned()
	for row := 0; row < surface.Rows(); row++ {
		for col := 0; col < surface.Cols(); col++ {
			if surface.IsNoData(col, row) || !vegetation[maskGrid.Label(col, row)] {
				continue
			}
			if v := surface.Value(col, row); v >= p.cfg.MinTreeHeight && v <= p.cfg.MaxTreeHeight {
				chm.Set(col, row, v)
			}
		}
	}
	return chm
}

// vegetationCloud keeps the points over vegetation-classified cells.
func (p *Pipeline) vegetationCloud(cloud pointcloud.PointCloud, maskGrid *raster.LabelGrid, vegetation map[int]bool) (pointcloud.PointCloud, error) {
	veg := pointcloud.New()
	var err error
	cloud.Iterate(func(pos r3.Vector, d pointcloud.Data) bool {
		if vegetation[maskGrid.LabelAt(pos.X, pos.Y)] {
			err = veg.Set(pos, d)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return veg, nil
}

// joinReturnsRatio appends the normalized returns-ratio column: each point's
// return count over the cloud-wide maximum, clamped to [0, 1].
func joinReturnsRatio(cloud pointcloud.PointCloud) {
	maxReturns := 0
	cloud.Iterate(func(pos r3.Vector, d pointcloud.Data) bool {
		if d.NumberOfReturns() > maxReturns {
			maxReturns = d.NumberOfReturns()
		}
		return true
	})
	if maxReturns == 0 {
		return
	}
	cloud.Iterate(func(pos r3.Vector, d pointcloud.Data) bool {
		ratio := utils.ClampF64(float64(d.NumberOfReturns())/float64(maxReturns), 0, 1)
		d.SetAttribute(zonal.MetricReturnsRatio, ratio)
		return true
	})
}

// Export pushes the tile's vector outputs through the sink: crown polygons
// with their tree attribute tables, and the tree position point set.
func (p *Pipeline) Export(ctx context.Context, result *TileResult, sink PolygonSink) error {
	byID := make(map[int]*TreeRecord, len(result.Trees))
	for _, t := range result.Trees {
		byID[t.ID] = t
	}

	crowns := make([]Feature, 0, len(result.Trees))
	positions := make([]Feature, 0, len(result.Trees))
	for _, seg := range result.CrownSegments {
		tree, ok := byID[seg.SegmentID]
		if !ok {
			continue
		}
		attrs := map[string]interface{}{
			"tree_id":           tree.TreeID,
			"height":            tree.Height,
			"crown_height":      tree.CrownHeight,
			"trunk_height":      tree.TrunkHeight,
			"crown_diameter":    tree.CrownDiameter,
			"crown_width":       tree.CrownWidth,
			"crown_length":      tree.CrownLength,
			"crown_orientation": tree.CrownOrientation,
			"crown_hull_area":   tree.CrownHullArea,
			"crown_volume":      tree.CrownVolume,
			"crown_surface":     tree.CrownSurface,
			"prototype":         tree.PrototypeID,
			"returns_ratio":     tree.ReturnsRatio,
			"veg_index":         tree.VegIndex,
			"score":             tree.Score,
			"crs":               p.cfg.CRS,
		}
		crowns = append(crowns, Feature{Geometry: seg.Polygon, Attributes: attrs})
		positions = append(positions, Feature{
			Geometry:   geom.Point{X: tree.X, Y: tree.Y},
			Attributes: map[string]interface{}{"tree_id": tree.TreeID, "height": tree.Height},
		})
	}
	if err := sink.WriteFeatures(ctx, "crowns", crowns); err != nil {
		return errors.Wrapf(err, "writing crown polygons for tile %s", result.TileID)
	}
	if err := sink.WriteFeatures(ctx, "tree_positions", positions); err != nil {
		return errors.Wrapf(err, "writing tree positions for tile %s", result.TileID)
	}
	return nil
}
