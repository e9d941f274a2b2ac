package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
)

// Extents2D holds the directional extents of a convex hull measured with
// rotating calipers.
type Extents2D struct {
	// Length is the hull diameter, the maximum distance between any
	// antipodal vertex pair.
	Length float64
	// Orientation is the angle of the length axis against the +x axis,
	// in radians normalized to [0, pi).
	Orientation float64
	// Width is the minimum width of the hull, the smallest distance spanned
	// under any caliper direction. Independent of the length pair.
	Width float64
}

// HullExtents measures a convex hull (counter-clockwise, no closing vertex)
// with rotating calipers.
func HullExtents(hull []r2.Point) (Extents2D, error) {
	n := len(hull)
	if n < 3 {
		return Extents2D{}, newGeometryError("hull extents need at least 3 hull vertices, got %d", n)
	}

	// Diameter over antipodal pairs: advance the opposite vertex while the
	// triangle area against the current edge keeps growing.
	var pa, pb r2.Point
	best := -1.0
	j := 1
	for i := 0; i < n; i++ {
		ni := (i + 1) % n
		for triArea2(hull[i], hull[ni], hull[(j+1)%n]) > triArea2(hull[i], hull[ni], hull[j]) {
			j = (j + 1) % n
		}
		for _, cand := range [2]int{i, ni} {
			if d := hull[cand].Sub(hull[j]).Norm(); d > best {
				best = d
				pa, pb = hull[cand], hull[j]
			}
		}
	}
	axis := pb.Sub(pa)
	orientation := math.Atan2(axis.Y, axis.X)
	if orientation < 0 {
		orientation += math.Pi
	}
	if orientation >= math.Pi {
		orientation -= math.Pi
	}

	// Minimum width: for each hull edge, the farthest vertex from the edge
	// line gives that caliper direction's width; the minimum over all edges
	// is the hull's width.
	width := math.Inf(1)
	k := 1
	for i := 0; i < n; i++ {
		ni := (i + 1) % n
		steps := 0
		for triArea2(hull[i], hull[ni], hull[(k+1)%n]) > triArea2(hull[i], hull[ni], hull[k]) && steps < n {
			k = (k + 1) % n
			steps++
		}
		edgeLen := hull[ni].Sub(hull[i]).Norm()
		if edgeLen == 0 {
			continue
		}
		if w := triArea2(hull[i], hull[ni], hull[k]) / edgeLen; w < width {
			width = w
		}
	}

	return Extents2D{Length: best, Orientation: orientation, Width: width}, nil
}

// triArea2 returns twice the (unsigned) area of the triangle a, b, c.
func triArea2(a, b, c r2.Point) float64 {
	return math.Abs(b.Sub(a).Cross(c.Sub(a)))
}
