package inventory

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/segmentation"
)

// Config holds every knob the tile pipeline consumes. It is validated once
// at the boundary; components never re-validate.
type Config struct {
	// CellSize is the raster resolution in world units.
	CellSize float64 `mapstructure:"cell_size"`
	// CRS identifies the tile's coordinate reference system, e.g. "EPSG:25833".
	CRS string `mapstructure:"crs"`

	MinTreeHeight float64 `mapstructure:"min_tree_height"`
	MaxTreeHeight float64 `mapstructure:"max_tree_height"`

	Watershed segmentation.WatershedConfig `mapstructure:"watershed"`

	// MinSegmentArea is the region-cleanup threshold for both passes.
	MinSegmentArea float64 `mapstructure:"min_segment_area"`

	// ScoreThreshold is the composite vegetation score cutoff (inclusive).
	ScoreThreshold float64 `mapstructure:"score_threshold"`

	// SmoothingSigma is the Gaussian sigma applied to the CHM before crown
	// detection, in cells.
	SmoothingSigma float64 `mapstructure:"smoothing_sigma"`

	// The variable crown search window: radius = WindowIntercept +
	// WindowSlope * height, never below WindowMinRadius. World units.
	WindowIntercept float64 `mapstructure:"window_intercept"`
	WindowSlope     float64 `mapstructure:"window_slope"`
	WindowMinRadius float64 `mapstructure:"window_min_radius"`

	// PrototypeBoundaries is the ordered crown/trunk ratio boundary table.
	PrototypeBoundaries []float64 `mapstructure:"prototype_boundaries"`
}

// DefaultConfig returns the defaults used for the Dresden tiles.
func DefaultConfig() *Config {
	return &Config{
		CellSize:            1,
		CRS:                 "EPSG:25833",
		MinTreeHeight:       3,
		MaxTreeHeight:       60,
		Watershed:           segmentation.WatershedConfig{MinHeight: 2, Tolerance: 1, Extension: 1},
		MinSegmentArea:      10,
		ScoreThreshold:      0.55,
		SmoothingSigma:      1,
		WindowIntercept:     1,
		WindowSlope:         0.1,
		WindowMinRadius:     1,
		PrototypeBoundaries: []float64{0.5, 1, 2, 4},
	}
}

// ConfigFromAttributes decodes a Config from a loosely-typed attribute map.
func ConfigFromAttributes(attrs map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()
	if err := mapstructure.Decode(attrs, cfg); err != nil {
		return nil, errors.Wrap(err, "decoding pipeline config")
	}
	return cfg, nil
}

// Validate rejects configuration errors before any component executes.
func (c *Config) Validate(path string) error {
	if c.CellSize <= 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("cell_size must be positive, got %v", c.CellSize))
	}
	if c.CRS == "" {
		return goutils.NewConfigValidationError(path, errors.New("crs is required"))
	}
	if c.MinTreeHeight <= 0 || c.MaxTreeHeight <= c.MinTreeHeight {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("tree height range [%v, %v] is not ascending and positive", c.MinTreeHeight, c.MaxTreeHeight))
	}
	if c.Watershed.MinHeight < 0 || c.Watershed.Tolerance < 0 || c.Watershed.Extension < 0 {
		return goutils.NewConfigValidationError(path, errors.New("watershed parameters must be non-negative"))
	}
	if c.MinSegmentArea < 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("min_segment_area must be non-negative, got %v", c.MinSegmentArea))
	}
	if c.SmoothingSigma <= 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("smoothing_sigma must be positive, got %v", c.SmoothingSigma))
	}
	if c.WindowSlope < 0 || c.WindowMinRadius <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("crown window must have non-negative slope and positive minimum radius"))
	}
	if _, err := NewPrototypeAssigner(c.PrototypeBoundaries); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// RadiusFunc materializes the configured variable crown search window.
func (c *Config) RadiusFunc() segmentation.RadiusFunc {
	return func(height float64) float64 {
		r := c.WindowIntercept + c.WindowSlope*height
		if r < c.WindowMinRadius {
			return c.WindowMinRadius
		}
		return r
	}
}
