package inventory

import (
	"context"
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/pointcloud"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/raster"
)

// testTileConfig tunes the pipeline for the synthetic two-tree tile: a wide
// crown search window so each bump yields exactly one marker.
func testTileConfig() *Config {
	cfg := DefaultConfig()
	cfg.WindowIntercept = 2
	cfg.WindowSlope = 0.5
	return cfg
}

// twoTreeTile builds a 60x30 tile holding two well-separated radial canopy
// bumps, a constant vegetation index, and nine crown points per tree.
func twoTreeTile(t *testing.T) TileInput {
	t.Helper()

	surface, err := raster.NewGrid(0, 0, 1, 60, 30)
	test.That(t, err, test.ShouldBeNil)
	peaks := []struct{ cx, cy, h float64 }{
		{15.5, 15.5, 10},
		{45.5, 15.5, 15},
	}
	const sigma = 3.0
	for row := 0; row < 30; row++ {
		for col := 0; col < 60; col++ {
			x, y := surface.CellCenter(col, row)
			v := 0.0
			for _, p := range peaks {
				d2 := (x-p.cx)*(x-p.cx) + (y-p.cy)*(y-p.cy)
				v = math.Max(v, p.h*math.Exp(-d2/(2*sigma*sigma)))
			}
			surface.Set(col, row, v)
		}
	}

	vegIndex, err := raster.NewGrid(0, 0, 1, 60, 30)
	test.That(t, err, test.ShouldBeNil)
	for row := 0; row < 30; row++ {
		for col := 0; col < 60; col++ {
			vegIndex.Set(col, row, 0.6)
		}
	}

	cloud := pointcloud.New()
	addCrown := func(cx, cy, base, top, apex float64) {
		for _, z := range []float64{base, top} {
			for _, c := range [][2]float64{
				{cx - 2, cy - 2}, {cx + 2, cy - 2}, {cx + 2, cy + 2}, {cx - 2, cy + 2},
			} {
				test.That(t, cloud.Set(r3.Vector{X: c[0], Y: c[1], Z: z},
					pointcloud.NewBasicData(0, 2)), test.ShouldBeNil)
			}
		}
		test.That(t, cloud.Set(r3.Vector{X: cx, Y: cy, Z: apex},
			pointcloud.NewBasicData(0, 2)), test.ShouldBeNil)
	}
	addCrown(45.5, 15.5, 5, 13, 15)
	addCrown(15.5, 15.5, 4, 8, 10)

	return TileInput{TileID: "test-tile", Cloud: cloud, Surface: surface, VegIndex: vegIndex}
}

func TestProcessTileTwoTrees(t *testing.T) {
	logger := golog.NewTestLogger(t)
	pipeline, err := NewPipeline(testTileConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	result, err := pipeline.ProcessTile(context.Background(), twoTreeTile(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.RunID, test.ShouldNotEqual, uuid.Nil)
	test.That(t, result.TileID, test.ShouldEqual, "test-tile")

	test.That(t, len(result.CrownSegments), test.ShouldEqual, 2)
	test.That(t, len(result.Trees), test.ShouldEqual, 2)
	test.That(t, result.VegetationCloud.Size(), test.ShouldEqual, 18)

	// segment ids follow row-major order; the taller bump's wider crown
	// reaches further up the grid and comes first
	tall, short := result.Trees[0], result.Trees[1]
	test.That(t, tall.TreeID, test.ShouldEqual, "test-tile_1")
	test.That(t, short.TreeID, test.ShouldEqual, "test-tile_2")

	test.That(t, tall.Height, test.ShouldAlmostEqual, 15)
	test.That(t, tall.TrunkHeight, test.ShouldAlmostEqual, 5)
	test.That(t, tall.CrownHeight, test.ShouldAlmostEqual, 10)
	test.That(t, tall.X, test.ShouldAlmostEqual, 45.5)
	test.That(t, tall.Y, test.ShouldAlmostEqual, 15.5)
	// crown/trunk ratio exactly 2 lands in the interval starting at 2
	test.That(t, tall.PrototypeID, test.ShouldEqual, 3)
	test.That(t, tall.CrownDiameter, test.ShouldAlmostEqual, math.Sqrt(32), 1e-9)
	test.That(t, tall.CrownWidth, test.ShouldAlmostEqual, 4, 1e-9)
	test.That(t, tall.CrownHullArea, test.ShouldAlmostEqual, 16, 1e-9)
	test.That(t, tall.CrownVolume, test.ShouldBeGreaterThan, 0)

	test.That(t, short.Height, test.ShouldAlmostEqual, 10)
	test.That(t, short.TrunkHeight, test.ShouldAlmostEqual, 4)
	test.That(t, short.CrownHeight, test.ShouldAlmostEqual, 6)
	test.That(t, short.PrototypeID, test.ShouldEqual, 2)

	// all points share a return count, so the ratio reduces to 1 everywhere
	test.That(t, tall.ReturnsRatio, test.ShouldAlmostEqual, 1)
	test.That(t, tall.VegIndex, test.ShouldAlmostEqual, 0.6, 1e-9)
	test.That(t, tall.Score, test.ShouldBeGreaterThan, 1.6)

	// the canopy height model only holds cells in the tree height range
	chm := result.CanopyHeight
	maxCHM := 0.0
	for row := 0; row < chm.Rows(); row++ {
		for col := 0; col < chm.Cols(); col++ {
			if chm.IsNoData(col, row) {
				continue
			}
			v := chm.Value(col, row)
			test.That(t, v, test.ShouldBeGreaterThanOrEqualTo, 3)
			if v > maxCHM {
				maxCHM = v
			}
		}
	}
	test.That(t, maxCHM, test.ShouldAlmostEqual, 15, 1e-9)
}

func TestProcessTileEmptyCanopy(t *testing.T) {
	logger := golog.NewTestLogger(t)
	pipeline, err := NewPipeline(testTileConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	surface, err := raster.NewGrid(0, 0, 1, 10, 10)
	test.That(t, err, test.ShouldBeNil)
	vegIndex, err := raster.NewGrid(0, 0, 1, 10, 10)
	test.That(t, err, test.ShouldBeNil)
	for row := 0; row < 10; row++ {
		for col := 0; col < 10; col++ {
			surface.Set(col, row, 0.5)
			vegIndex.Set(col, row, 0.6)
		}
	}
	cloud := pointcloud.New()
	test.That(t, cloud.Set(r3.Vector{X: 5, Y: 5, Z: 0.5}, pointcloud.NewBasicData(0, 1)), test.ShouldBeNil)

	result, err := pipeline.ProcessTile(context.Background(),
		TileInput{TileID: "flat", Cloud: cloud, Surface: surface, VegIndex: vegIndex})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Trees, test.ShouldBeEmpty)
	test.That(t, result.CrownSegments, test.ShouldBeEmpty)
	test.That(t, result.VegetationCloud.Size(), test.ShouldEqual, 0)
}

func TestProcessTileInputValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	pipeline, err := NewPipeline(testTileConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	tile := twoTreeTile(t)
	ctx := context.Background()

	_, err = pipeline.ProcessTile(ctx, TileInput{TileID: "x", Surface: tile.Surface, VegIndex: tile.VegIndex})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "point cloud is empty")

	_, err = pipeline.ProcessTile(ctx, TileInput{TileID: "x", Cloud: tile.Cloud, VegIndex: tile.VegIndex})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "nDSM")

	_, err = pipeline.ProcessTile(ctx, TileInput{TileID: "x", Cloud: tile.Cloud, Surface: tile.Surface})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "vegetation index")

	partialVeg, err := raster.NewGrid(0, 0, 1, 30, 30)
	test.That(t, err, test.ShouldBeNil)
	_, err = pipeline.ProcessTile(ctx,
		TileInput{TileID: "x", Cloud: tile.Cloud, Surface: tile.Surface, VegIndex: partialVeg})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "does not cover")
}

func TestNewPipelineRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellSize = -1
	_, err := NewPipeline(cfg, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

type captureSink struct {
	layers map[string][]Feature
}

func (s *captureSink) WriteFeatures(ctx context.Context, layer string, features []Feature) error {
	if s.layers == nil {
		s.layers = make(map[string][]Feature)
	}
	s.layers[layer] = append(s.layers[layer], features...)
	return nil
}

func TestExport(t *testing.T) {
	logger := golog.NewTestLogger(t)
	pipeline, err := NewPipeline(testTileConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	result, err := pipeline.ProcessTile(context.Background(), twoTreeTile(t))
	test.That(t, err, test.ShouldBeNil)

	sink := &captureSink{}
	test.That(t, pipeline.Export(context.Background(), result, sink), test.ShouldBeNil)

	crowns := sink.layers["crowns"]
	positions := sink.layers["tree_positions"]
	test.That(t, len(crowns), test.ShouldEqual, 2)
	test.That(t, len(positions), test.ShouldEqual, 2)

	test.That(t, crowns[0].Attributes["tree_id"], test.ShouldEqual, "test-tile_1")
	test.That(t, crowns[0].Attributes["height"], test.ShouldAlmostEqual, 15)
	test.That(t, crowns[0].Attributes["prototype"], test.ShouldEqual, 3)
	test.That(t, crowns[0].Attributes["crs"], test.ShouldEqual, "EPSG:25833")

	pt, ok := positions[0].Geometry.(geom.Point)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pt.X, test.ShouldAlmostEqual, 45.5)
	test.That(t, pt.Y, test.ShouldAlmostEqual, 15.5)
}

type stubSources struct {
	cloud    pointcloud.PointCloud
	surface  *raster.Grid
	vegIndex *raster.Grid
	roof     *raster.Grid
	cloudErr error
}

func (s *stubSources) PointCloud(ctx context.Context) (pointcloud.PointCloud, error) {
	return s.cloud, s.cloudErr
}

func (s *stubSources) NormalizedSurface(ctx context.Context) (*raster.Grid, error) {
	return s.surface, nil
}

func (s *stubSources) VegetationIndex(ctx context.Context) (*raster.Grid, error) {
	return s.vegIndex, nil
}

func (s *stubSources) RoofHeights(ctx context.Context) (*raster.Grid, error) {
	return s.roof, nil
}

func TestLoadTile(t *testing.T) {
	tile := twoTreeTile(t)
	src := &stubSources{cloud: tile.Cloud, surface: tile.Surface, vegIndex: tile.VegIndex}

	loaded, err := LoadTile(context.Background(), "test-tile", src, src)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.TileID, test.ShouldEqual, "test-tile")
	test.That(t, loaded.Cloud.Size(), test.ShouldEqual, tile.Cloud.Size())
	test.That(t, loaded.Surface, test.ShouldEqual, tile.Surface)
	test.That(t, loaded.Roof, test.ShouldBeNil)

	src.cloudErr = errors.New("disk gone")
	_, err = LoadTile(context.Background(), "test-tile", src, src)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "loading point cloud")
}
