package zonal

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/pointcloud"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/raster"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/segmentation"
)

func squareSegment(size float64, cells [][2]int) *segmentation.AggregatedSegment {
	return &segmentation.AggregatedSegment{
		SegmentID: 1,
		Cells:     cells,
		Polygon: geom.Polygon{{
			{X: 0, Y: 0}, {X: size, Y: 0}, {X: size, Y: size}, {X: 0, Y: size}, {X: 0, Y: 0},
		}},
		Area:      size * size,
		Perimeter: 4 * size,
	}
}

func TestReduceRaster(t *testing.T) {
	g, err := raster.NewGrid(0, 0, 1, 4, 4)
	test.That(t, err, test.ShouldBeNil)
	g.Set(0, 0, 2)
	g.Set(1, 0, 4)
	g.Set(0, 1, 6)

	seg := squareSegment(2, [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}})

	mean, ok := ReduceRaster(seg, g, Mean)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mean, test.ShouldAlmostEqual, 4)

	max, ok := ReduceRaster(seg, g, Max)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, max, test.ShouldAlmostEqual, 6)

	sum, ok := ReduceRaster(seg, g, Sum)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, sum, test.ShouldAlmostEqual, 12)

	// the no-data cell (1,1) is skipped, not counted as zero
	count, ok := ReduceRaster(seg, g, Count)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, count, test.ShouldAlmostEqual, 3)
}

func TestReduceRasterEmptyZone(t *testing.T) {
	g, err := raster.NewGrid(0, 0, 1, 4, 4)
	test.That(t, err, test.ShouldBeNil)
	seg := squareSegment(2, [][2]int{{0, 0}, {1, 0}})

	_, ok := ReduceRaster(seg, g, Mean)
	test.That(t, ok, test.ShouldBeFalse)

	count, ok := ReduceRaster(seg, g, Count)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, count, test.ShouldAlmostEqual, 0)
}

func TestPointIndexReduce(t *testing.T) {
	cloud := pointcloud.New()
	test.That(t, cloud.Set(r3.Vector{X: 1, Y: 1, Z: 5}, pointcloud.NewBasicData(0, 2)), test.ShouldBeNil)
	test.That(t, cloud.Set(r3.Vector{X: 3, Y: 3, Z: 7}, pointcloud.NewBasicData(0, 4)), test.ShouldBeNil)
	test.That(t, cloud.Set(r3.Vector{X: 9, Y: 9, Z: 50}, pointcloud.NewBasicData(0, 1)), test.ShouldBeNil)

	idx := NewPointIndex(cloud)
	seg := squareSegment(4, nil)

	mean, ok := idx.Reduce(seg, func(p r3.Vector, d pointcloud.Data) (float64, bool) {
		return p.Z, true
	}, Mean)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mean, test.ShouldAlmostEqual, 6) // the far point is outside

	max, ok := idx.Reduce(seg, func(p r3.Vector, d pointcloud.Data) (float64, bool) {
		return float64(d.NumberOfReturns()), true
	}, Max)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, max, test.ShouldAlmostEqual, 4)
}

func TestPointIndexReduceAttribute(t *testing.T) {
	cloud := pointcloud.New()
	d1 := pointcloud.NewBasicData(0, 1)
	d1.SetAttribute("ratio", 0.25)
	d2 := pointcloud.NewBasicData(0, 1)
	d2.SetAttribute("ratio", 0.75)
	d3 := pointcloud.NewBasicData(0, 1) // no attribute, skipped
	test.That(t, cloud.Set(r3.Vector{X: 1, Y: 1, Z: 1}, d1), test.ShouldBeNil)
	test.That(t, cloud.Set(r3.Vector{X: 2, Y: 2, Z: 1}, d2), test.ShouldBeNil)
	test.That(t, cloud.Set(r3.Vector{X: 3, Y: 3, Z: 1}, d3), test.ShouldBeNil)

	idx := NewPointIndex(cloud)
	seg := squareSegment(4, nil)

	mean, ok := idx.ReduceAttribute(seg, "ratio", Mean)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mean, test.ShouldAlmostEqual, 0.5)

	_, ok = idx.ReduceAttribute(seg, "absent", Mean)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestCompactness(t *testing.T) {
	// a circle has quotient 1
	r := 5.0
	test.That(t, Compactness(math.Pi*r*r, 2*math.Pi*r), test.ShouldAlmostEqual, 1, 1e-12)

	// a unit square
	test.That(t, Compactness(1, 4), test.ShouldAlmostEqual, math.Pi/4, 1e-12)

	// an elongated 1x10 rectangle scores low
	test.That(t, Compactness(10, 22), test.ShouldAlmostEqual, 4*math.Pi*10/(22*22), 1e-12)
	test.That(t, Compactness(10, 22), test.ShouldBeLessThan, 0.3)

	test.That(t, Compactness(5, 0), test.ShouldEqual, 0)
}

func TestAreaWeight(t *testing.T) {
	test.That(t, AreaWeight(30, 1), test.ShouldEqual, 1)
	test.That(t, AreaWeight(100, 1), test.ShouldEqual, 1)
	test.That(t, AreaWeight(1, 1), test.ShouldEqual, 0)
	// halfway up the ramp, rounded to two decimals
	test.That(t, AreaWeight(15.5, 1), test.ShouldAlmostEqual, 0.5)
}

func TestClassifierScore(t *testing.T) {
	cl := NewClassifier(DefaultScoreThreshold)

	seg := squareSegment(8, nil) // area 64, full compactness weight
	seg.SetMetric(MetricReturnsRatio, 0.4)
	seg.SetMetric(MetricVegIndex, 0.3)

	score, ok := cl.Score(seg, 1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, score, test.ShouldAlmostEqual, 0.4+math.Pi/4+0.3, 1e-12)
	test.That(t, cl.Classify(seg, 1), test.ShouldBeTrue)

	stored, ok := seg.Metric(MetricScore)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, stored, test.ShouldAlmostEqual, score, 1e-12)
}

func TestClassifierMissingMetric(t *testing.T) {
	cl := NewClassifier(DefaultScoreThreshold)
	seg := squareSegment(8, nil)
	seg.SetMetric(MetricReturnsRatio, 0.9)

	_, ok := cl.Score(seg, 1)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, cl.Classify(seg, 1), test.ShouldBeFalse)
}

func TestClassifierInclusiveThreshold(t *testing.T) {
	cl := NewClassifier(1.5)

	at := &segmentation.AggregatedSegment{Area: 0, Perimeter: 0}
	at.SetMetric(MetricReturnsRatio, 0.5)
	at.SetMetric(MetricVegIndex, 1.0)
	// compactness term is zero, so the score is exactly the threshold
	test.That(t, cl.Classify(at, 1), test.ShouldBeTrue)

	below := &segmentation.AggregatedSegment{Area: 0, Perimeter: 0}
	below.SetMetric(MetricReturnsRatio, 0.5)
	below.SetMetric(MetricVegIndex, 0.999)
	test.That(t, cl.Classify(below, 1), test.ShouldBeFalse)
}

func TestClassifierClampsRatio(t *testing.T) {
	cl := NewClassifier(0.5)
	seg := &segmentation.AggregatedSegment{Area: 0, Perimeter: 0}
	seg.SetMetric(MetricReturnsRatio, 3.7)
	seg.SetMetric(MetricVegIndex, 0)

	score, ok := cl.Score(seg, 1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, score, test.ShouldAlmostEqual, 1)
}
