package spatialmath

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

// ConvexHull3D computes the convex hull of a 3D point set with the
// incremental algorithm and returns its triangular faces with outward-facing
// normals. Fewer than 4 non-coplanar points is a GeometryError.
func ConvexHull3D(points []r3.Vector) ([]*Triangle, error) {
	pts := dedupe3D(points)
	if len(pts) < 4 {
		return nil, newGeometryError("convex hull needs at least 4 distinct points, got %d", len(pts))
	}
	eps := hullEpsilon(pts)

	i0, i1, i2, i3, err := initialTetrahedron(pts, eps)
	if err != nil {
		return nil, err
	}

	// faces are vertex index triples oriented counter-clockwise seen from
	// outside, so face normals point away from the interior reference
	interior := pts[i0].Add(pts[i1]).Add(pts[i2]).Add(pts[i3]).Mul(0.25)
	faces := [][3]int{}
	for _, f := range [][3]int{{i0, i1, i2}, {i0, i1, i3}, {i0, i2, i3}, {i1, i2, i3}} {
		faces = append(faces, orientFace(pts, f, interior))
	}

	used := map[int]bool{i0: true, i1: true, i2: true, i3: true}
	for pi := range pts {
		if used[pi] {
			continue
		}
		p := pts[pi]

		// faces the new point can see must be replaced
		visible := make(map[int]bool)
		for fi, f := range faces {
			if signedDistToFace(pts, f, p) > eps {
				visible[fi] = true
			}
		}
		if len(visible) == 0 {
			continue
		}

		// the horizon is every directed edge of a visible face whose
		// reversal does not belong to another visible face
		edges := make(map[[2]int]bool)
		for fi := range visible {
			f := faces[fi]
			for k := 0; k < 3; k++ {
				edges[[2]int{f[k], f[(k+1)%3]}] = true
			}
		}
		var horizon [][2]int
		for e := range edges {
			if !edges[[2]int{e[1], e[0]}] {
				horizon = append(horizon, e)
			}
		}
		sort.Slice(horizon, func(a, b int) bool {
			if horizon[a][0] != horizon[b][0] {
				return horizon[a][0] < horizon[b][0]
			}
			return horizon[a][1] < horizon[b][1]
		})

		next := faces[:0:0]
		for fi, f := range faces {
			if !visible[fi] {
				next = append(next, f)
			}
		}
		for _, e := range horizon {
			next = append(next, orientFace(pts, [3]int{e[0], e[1], pi}, interior))
		}
		faces = next
	}

	hull := make([]*Triangle, 0, len(faces))
	for _, f := range faces {
		hull = append(hull, NewTriangle(pts[f[0]], pts[f[1]], pts[f[2]]))
	}
	return hull, nil
}

// HullVolume returns the volume enclosed by a hull as the sum of signed
// tetrahedra from an interior reference point to each face.
func HullVolume(hull []*Triangle) float64 {
	ref := hullCentroid(hull)
	volume := 0.0
	for _, t := range hull {
		ps := t.Points()
		volume += ps[0].Sub(ref).Dot(ps[1].Sub(ref).Cross(ps[2].Sub(ref))) / 6
	}
	return math.Abs(volume)
}

// HullSurfaceArea returns the total face area of a hull.
func HullSurfaceArea(hull []*Triangle) float64 {
	area := 0.0
	for _, t := range hull {
		area += t.Area()
	}
	return area
}

func hullCentroid(hull []*Triangle) r3.Vector {
	sum := r3.Vector{}
	n := 0
	for _, t := range hull {
		for _, p := range t.Points() {
			sum = sum.Add(p)
			n++
		}
	}
	return sum.Mul(1 / float64(n))
}

// initialTetrahedron picks four non-coplanar points: the two most separated
// extreme points, the point farthest from their line, then the point farthest
// from their plane.
func initialTetrahedron(pts []r3.Vector, eps float64) (int, int, int, int, error) {
	i0, i1 := 0, 1
	best := -1.0
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			if d := pts[i].Sub(pts[j]).Norm2(); d > best {
				best = d
				i0, i1 = i, j
			}
		}
	}
	if best <= eps*eps {
		return 0, 0, 0, 0, newGeometryError("points are coincident, no hull")
	}

	dir := pts[i1].Sub(pts[i0])
	i2, best := -1, eps
	for i := range pts {
		d := dir.Cross(pts[i].Sub(pts[i0])).Norm() / dir.Norm()
		if d > best {
			best = d
			i2 = i
		}
	}
	if i2 < 0 {
		return 0, 0, 0, 0, newGeometryError("points are collinear, no 3D hull")
	}

	normal := PlaneNormal(pts[i0], pts[i1], pts[i2])
	i3, best := -1, eps
	for i := range pts {
		if d := math.Abs(pts[i].Sub(pts[i0]).Dot(normal)); d > best {
			best = d
			i3 = i
		}
	}
	if i3 < 0 {
		return 0, 0, 0, 0, newGeometryError("points are coplanar, no 3D hull")
	}
	return i0, i1, i2, i3, nil
}

// orientFace flips the face if its normal points toward the interior point.
func orientFace(pts []r3.Vector, f [3]int, interior r3.Vector) [3]int {
	if signedDistToFace(pts, f, interior) > 0 {
		f[1], f[2] = f[2], f[1]
	}
	return f
}

func signedDistToFace(pts []r3.Vector, f [3]int, p r3.Vector) float64 {
	normal := PlaneNormal(pts[f[0]], pts[f[1]], pts[f[2]])
	return p.Sub(pts[f[0]]).Dot(normal)
}

func hullEpsilon(pts []r3.Vector) float64 {
	scale := 0.0
	for _, p := range pts {
		scale = math.Max(scale, math.Max(math.Abs(p.X), math.Max(math.Abs(p.Y), math.Abs(p.Z))))
	}
	if scale == 0 {
		scale = 1
	}
	return 1e-9 * scale
}

func dedupe3D(points []r3.Vector) []r3.Vector {
	seen := make(map[r3.Vector]bool, len(points))
	out := make([]r3.Vector, 0, len(points))
	for _, p := range points {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
