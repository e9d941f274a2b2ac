package inventory

import (
	"testing"

	"go.viam.com/test"
)

func TestDefaultConfigValid(t *testing.T) {
	test.That(t, DefaultConfig().Validate("pipeline"), test.ShouldBeNil)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellSize = 0
	err := cfg.Validate("pipeline")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cell_size")

	cfg = DefaultConfig()
	cfg.CRS = ""
	err = cfg.Validate("pipeline")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "crs")

	cfg = DefaultConfig()
	cfg.MaxTreeHeight = cfg.MinTreeHeight
	err = cfg.Validate("pipeline")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "height range")

	cfg = DefaultConfig()
	cfg.Watershed.Tolerance = -1
	test.That(t, cfg.Validate("pipeline"), test.ShouldNotBeNil)

	cfg = DefaultConfig()
	cfg.SmoothingSigma = 0
	test.That(t, cfg.Validate("pipeline"), test.ShouldNotBeNil)

	cfg = DefaultConfig()
	cfg.WindowMinRadius = 0
	test.That(t, cfg.Validate("pipeline"), test.ShouldNotBeNil)

	cfg = DefaultConfig()
	cfg.PrototypeBoundaries = []float64{2, 1}
	test.That(t, cfg.Validate("pipeline"), test.ShouldNotBeNil)
}

func TestConfigFromAttributes(t *testing.T) {
	cfg, err := ConfigFromAttributes(map[string]interface{}{
		"cell_size":       0.5,
		"min_tree_height": 4.0,
		"score_threshold": 0.7,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.CellSize, test.ShouldEqual, 0.5)
	test.That(t, cfg.MinTreeHeight, test.ShouldEqual, 4.0)
	test.That(t, cfg.ScoreThreshold, test.ShouldEqual, 0.7)
	// untouched knobs keep their defaults
	test.That(t, cfg.CRS, test.ShouldEqual, "EPSG:25833")
	test.That(t, cfg.MaxTreeHeight, test.ShouldEqual, 60.0)
}

func TestConfigRadiusFunc(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowIntercept = 1
	cfg.WindowSlope = 0.1
	cfg.WindowMinRadius = 2

	radius := cfg.RadiusFunc()
	test.That(t, radius(30), test.ShouldAlmostEqual, 4)
	// short trees never shrink the window below the floor
	test.That(t, radius(0), test.ShouldAlmostEqual, 2)
}
