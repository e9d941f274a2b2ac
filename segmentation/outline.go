package segmentation

import (
	"sort"

	"github.com/ctessum/geom"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/raster"
)

// tracePolygon builds the outline polygon of a cell set by chaining its
// boundary edges. Edges are directed with the interior on the left, so the
// outer ring comes out counter-clockwise and holes clockwise. The outer ring
// is the polygon's first ring.
func tracePolygon(labels *raster.LabelGrid, cells [][2]int) geom.Polygon {
	inSet := make(map[[2]int]bool, len(cells))
	for _, cell := range cells {
		inSet[cell] = true
	}

	edgesOut := make(map[[2]int][][2]int)
	var edges []boundaryEdge
	add := func(from, to [2]int) {
		edges = append(edges, boundaryEdge{from, to})
		edgesOut[from] = append(edgesOut[from], to)
	}
	for _, cell := range cells {
		c, r := cell[0], cell[1]
		if !inSet[[2]int{c, r - 1}] {
			add([2]int{c, r}, [2]int{c + 1, r})
		}
		if !inSet[[2]int{c + 1, r}] {
			add([2]int{c + 1, r}, [2]int{c + 1, r + 1})
		}
		if !inSet[[2]int{c, r + 1}] {
			add([2]int{c + 1, r + 1}, [2]int{c, r + 1})
		}
		if !inSet[[2]int{c - 1, r}] {
			add([2]int{c, r + 1}, [2]int{c, r})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return lessCorner(edges[i].from, edges[j].from)
		}
		return lessCorner(edges[i].to, edges[j].to)
	})

	used := make(map[boundaryEdge]bool, len(edges))
	var rings [][][2]int
	for _, start := range edges {
		if used[start] {
			continue
		}
		ring := [][2]int{start.from}
		cur := start
		used[cur] = true
		for cur.to != start.from {
			ring = append(ring, cur.to)
			next, ok := nextEdge(cur, edgesOut, used)
			if !ok {
				// boundary edges always close into rings
				break
			}
			cur = next
			used[cur] = true
		}
		rings = append(rings, simplifyRing(ring))
	}

	// outer ring (counter-clockwise, positive area) leads; holes follow
	sort.SliceStable(rings, func(i, j int) bool {
		return ringArea2(rings[i]) > ringArea2(rings[j])
	})

	poly := make(geom.Polygon, 0, len(rings))
	for _, ring := range rings {
		// rings close explicitly, repeating the first vertex
		worldRing := make([]geom.Point, 0, len(ring)+1)
		for _, v := range ring {
			x, y := labels.CellCorner(v[0], v[1])
			worldRing = append(worldRing, geom.Point{X: x, Y: y})
		}
		if len(worldRing) > 0 {
			worldRing = append(worldRing, worldRing[0])
		}
		poly = append(poly, worldRing)
	}
	return poly
}

// boundaryEdge is one directed cell edge on a region boundary, in cell-corner
// coordinates.
type boundaryEdge struct {
	from, to [2]int
}

// nextEdge continues a chain at cur.to, preferring the sharpest left turn so
// rings around touching corners stay simple.
func nextEdge(cur boundaryEdge, edgesOut map[[2]int][][2]int, used map[boundaryEdge]bool) (boundaryEdge, bool) {
	dx := cur.to[0] - cur.from[0]
	dy := cur.to[1] - cur.from[1]
	// left turn, straight, right turn relative to the incoming direction
	prefs := [3][2]int{{-dy, dx}, {dx, dy}, {dy, -dx}}
	for _, d := range prefs {
		to := [2]int{cur.to[0] + d[0], cur.to[1] + d[1]}
		for _, cand := range edgesOut[cur.to] {
			if cand != to {
				continue
			}
			e := boundaryEdge{cur.to, to}
			if !used[e] {
				return e, true
			}
		}
	}
	return boundaryEdge{}, false
}

// simplifyRing drops vertices in the middle of straight runs.
func simplifyRing(ring [][2]int) [][2]int {
	n := len(ring)
	if n < 3 {
		return ring
	}
	out := make([][2]int, 0, n)
	for i := 0; i < n; i++ {
		prev := ring[(i-1+n)%n]
		next := ring[(i+1)%n]
		v1x, v1y := ring[i][0]-prev[0], ring[i][1]-prev[1]
		v2x, v2y := next[0]-ring[i][0], next[1]-ring[i][1]
		if v1x*v2y-v1y*v2x != 0 {
			out = append(out, ring[i])
		}
	}
	return out
}

// ringArea2 returns twice the signed shoelace area of a ring.
func ringArea2(ring [][2]int) int {
	area := 0
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
	}
	return area
}

func lessCorner(a, b [2]int) bool {
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[0] < b[0]
}
