package spatialmath

import (
	"sort"

	"github.com/golang/geo/r2"
)

// ConvexHull2D computes the convex hull of a planar point set with Andrew's
// monotone chain, O(n log n). The hull is returned in counter-clockwise order
// without a repeated closing vertex. Fewer than 3 non-collinear points is a
// GeometryError.
func ConvexHull2D(points []r2.Point) ([]r2.Point, error) {
	pts := dedupe2D(points)
	if len(pts) < 3 {
		return nil, newGeometryError("convex hull needs at least 3 distinct points, got %d", len(pts))
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	// lower then upper chain; strictly-positive cross keeps only true corners
	var lower []r2.Point
	for _, p := range pts {
		for len(lower) >= 2 && cross2D(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	var upper []r2.Point
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross2D(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		return nil, newGeometryError("points are collinear, convex hull is degenerate")
	}
	return hull, nil
}

// HullArea returns the area of a convex polygon via the shoelace formula.
// The polygon must be in counter-clockwise order without a closing vertex.
func HullArea(hull []r2.Point) float64 {
	area := 0.0
	n := len(hull)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += hull[i].X*hull[j].Y - hull[j].X*hull[i].Y
	}
	return area / 2
}

func cross2D(o, a, b r2.Point) float64 {
	return a.Sub(o).Cross(b.Sub(o))
}

func dedupe2D(points []r2.Point) []r2.Point {
	seen := make(map[r2.Point]bool, len(points))
	out := make([]r2.Point, 0, len(points))
	for _, p := range points {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
