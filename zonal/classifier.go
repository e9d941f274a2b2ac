package zonal

import (
	"math"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/segmentation"
	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/utils"
)

// Metric names accumulated on segments during the mask pass.
const (
	MetricReturnsRatio = "returns_ratio"
	MetricVegIndex     = "veg_index"
	MetricScore        = "score"
)

// DefaultScoreThreshold is the composite score at or above which a segment
// counts as vegetation.
const DefaultScoreThreshold = 0.55

// compactAreaRef is the segment area above which compactness carries full
// weight in the composite score.
const compactAreaRef = 30.0

// Compactness returns the isoperimetric quotient 4*pi*area/perimeter^2,
// which peaks at 1 for a circle.
func Compactness(area, perimeter float64) float64 {
	if perimeter <= 0 {
		return 0
	}
	return 4 * math.Pi * area / (perimeter * perimeter)
}

// AreaWeight discounts the compactness of segments smaller than the
// reference area. The weight ramps linearly from 0 at one cell's area to 1 at
// the reference area and is rounded to two decimals.
func AreaWeight(area, cellArea float64) float64 {
	if area >= compactAreaRef {
		return 1
	}
	w := utils.ClampF64((area-cellArea)/(compactAreaRef-cellArea), 0, 1)
	return math.Round(w*100) / 100
}

// Classifier thresholds the composite vegetation score of a segment.
type Classifier struct {
	threshold float64
}

// NewClassifier returns a classifier with the given score threshold.
func NewClassifier(threshold float64) *Classifier {
	return &Classifier{threshold: threshold}
}

// Score combines the segment's normalized returns ratio, its mean vegetation
// index, and its area-weighted compactness into the composite score, storing
// it as a metric. The second return is false when a required metric is
// missing; such segments always fail classification.
func (cl *Classifier) Score(seg *segmentation.AggregatedSegment, cellArea float64) (float64, bool) {
	r, okR := seg.Metric(MetricReturnsRatio)
	v, okV := seg.Metric(MetricVegIndex)
	if !okR || !okV {
		return 0, false
	}
	r = utils.ClampF64(r, 0, 1)
	c := Compactness(seg.Area, seg.Perimeter) * AreaWeight(seg.Area, cellArea)
	score := r + c + v
	seg.SetMetric(MetricScore, score)
	return score, true
}

// Classify reports whether the segment's composite score reaches the
// threshold. The boundary is inclusive: a score exactly at the threshold
// classifies as vegetation.
func (cl *Classifier) Classify(seg *segmentation.AggregatedSegment, cellArea float64) bool {
	score, ok := cl.Score(seg, cellArea)
	return ok && score >= cl.threshold
}
