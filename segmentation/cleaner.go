package segmentation

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/theodesp/unionfind"

	"github.com/ioer-dresden/LiDAR-3D-Urban-Forest-Mapping/raster"
)

// Clean merges fragmented raw regions into stable AggregatedSegments.
// Regions below minArea merge into the adjacent region sharing the longest
// boundary (ties broken by larger neighbor, then smaller id); sub-minArea
// regions without any neighbor are discarded; interior holes below minArea
// are filled. The returned label grid carries the final segment ids.
func Clean(labels *raster.LabelGrid, minArea float64) ([]*AggregatedSegment, *raster.LabelGrid, error) {
	if minArea < 0 {
		return nil, nil, errors.Errorf("minArea must be non-negative, got %v", minArea)
	}
	regions := RegionsFromLabels(labels)
	if len(regions) == 0 {
		return nil, labels.NewAligned(), nil
	}
	maxID := regions[len(regions)-1].ID

	// shared boundary length between adjacent raw region ids
	boundary := make(map[[2]int]float64)
	for row := 0; row < labels.Rows(); row++ {
		for col := 0; col < labels.Cols(); col++ {
			a := labels.Label(col, row)
			if a == raster.NoLabel {
				continue
			}
			for _, d := range [2][2]int{{1, 0}, {0, 1}} {
				c, r := col+d[0], row+d[1]
				if !labels.Contains(c, r) {
					continue
				}
				b := labels.Label(c, r)
				if b == raster.NoLabel || b == a {
					continue
				}
				lo, hi := a, b
				if lo > hi {
					lo, hi = hi, lo
				}
				boundary[[2]int{lo, hi}] += labels.CellSize()
			}
		}
	}

	uf := unionfind.New(maxID + 1)
	area := make(map[int]float64, len(regions)) // keyed by union-find root
	adjacent := make(map[int]map[int]bool, len(regions))
	for _, r := range regions {
		area[r.ID] = r.Area
		adjacent[r.ID] = make(map[int]bool)
	}
	for pair := range boundary {
		adjacent[pair[0]][pair[1]] = true
		adjacent[pair[1]][pair[0]] = true
	}

	groupBoundary := func(rootA, rootB int) float64 {
		total := 0.0
		for pair, l := range boundary {
			if ra, rb := uf.Root(pair[0]), uf.Root(pair[1]); (ra == rootA && rb == rootB) || (ra == rootB && rb == rootA) {
				total += l
			}
		}
		return total
	}

	// merge under-sized groups smallest-first until the partition is stable;
	// merging disjoint fragments is associative, so the fixed order only
	// pins determinism, not the result
	for {
		roots := make(map[int][]int) // root -> member region ids
		for _, r := range regions {
			root := uf.Root(r.ID)
			roots[root] = append(roots[root], r.ID)
		}
		type group struct {
			root int
			area float64
		}
		var small []group
		for root := range roots {
			if area[root] < minArea {
				small = append(small, group{root, area[root]})
			}
		}
		sort.Slice(small, func(i, j int) bool {
			if small[i].area != small[j].area {
				return small[i].area < small[j].area
			}
			return small[i].root < small[j].root
		})

		merged := false
		for _, g := range small {
			if uf.Root(g.root) != g.root {
				continue // absorbed earlier in this pass
			}
			bestRoot := -1
			bestBoundary := 0.0
			neighborRoots := make(map[int]bool)
			for _, member := range roots[g.root] {
				for nb := range adjacent[member] {
					if root := uf.Root(nb); root != g.root {
						neighborRoots[root] = true
					}
				}
			}
			ordered := make([]int, 0, len(neighborRoots))
			for root := range neighborRoots {
				ordered = append(ordered, root)
			}
			sort.Ints(ordered)
			for _, root := range ordered {
				b := groupBoundary(g.root, root)
				switch {
				case b > bestBoundary:
					bestRoot, bestBoundary = root, b
				case b == bestBoundary && bestRoot >= 0 && area[root] > area[bestRoot]:
					bestRoot = root
				}
			}
			if bestRoot < 0 {
				continue // isolated sliver, discarded below
			}
			mergedArea := area[g.root] + area[bestRoot]
			uf.Union(g.root, bestRoot)
			area[uf.Root(g.root)] = mergedArea
			merged = true
		}
		if !merged {
			break
		}
	}

	// final ids in row-major first-encounter order; under-sized leftovers drop
	mapping := make(map[int]int)
	next := 1
	out := labels.NewAligned()
	for row := 0; row < labels.Rows(); row++ {
		for col := 0; col < labels.Cols(); col++ {
			l := labels.Label(col, row)
			if l == raster.NoLabel {
				continue
			}
			root := uf.Root(l)
			if area[root] < minArea {
				continue
			}
			id, ok := mapping[root]
			if !ok {
				id = next
				mapping[root] = id
				next++
			}
			out.SetLabel(col, row, id)
		}
	}

	fillHoles(out, minArea)

	memberIDs := make(map[int][]int)
	for _, r := range regions {
		root := uf.Root(r.ID)
		if id, ok := mapping[root]; ok {
			memberIDs[id] = append(memberIDs[id], r.ID)
		}
	}

	segments := make([]*AggregatedSegment, 0, len(mapping))
	for _, cells := range splitCells(out) {
		id := out.Label(cells[0][0], cells[0][1])
		segments = append(segments, &AggregatedSegment{
			SegmentID: id,
			RegionIDs: memberIDs[id],
			Cells:     cells,
			Polygon:   tracePolygon(out, cells),
			Area:      float64(len(cells)) * out.CellArea(),
			Perimeter: boundaryLength(out, cells),
		})
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].SegmentID < segments[j].SegmentID })
	return segments, out, nil
}

// fillHoles assigns interior unlabeled pockets below minArea to the single
// segment enclosing them. Pockets touching the grid border or more than one
// segment are left open.
func fillHoles(labels *raster.LabelGrid, minArea float64) {
	visited := make(map[[2]int]bool)
	for row := 0; row < labels.Rows(); row++ {
		for col := 0; col < labels.Cols(); col++ {
			start := [2]int{col, row}
			if labels.Label(col, row) != raster.NoLabel || visited[start] {
				continue
			}
			// flood-fill this unlabeled pocket, noting surrounding segments
			var pocket [][2]int
			touchesBorder := false
			surrounding := make(map[int]bool)
			queue := [][2]int{start}
			visited[start] = true
			for len(queue) > 0 {
				cell := queue[0]
				queue = queue[1:]
				pocket = append(pocket, cell)
				for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					c, r := cell[0]+d[0], cell[1]+d[1]
					if !labels.Contains(c, r) {
						touchesBorder = true
						continue
					}
					if l := labels.Label(c, r); l != raster.NoLabel {
						surrounding[l] = true
						continue
					}
					nb := [2]int{c, r}
					if !visited[nb] {
						visited[nb] = true
						queue = append(queue, nb)
					}
				}
			}
			if touchesBorder || len(surrounding) != 1 {
				continue
			}
			if float64(len(pocket))*labels.CellArea() >= minArea {
				continue
			}
			var enclosing int
			for l := range surrounding {
				enclosing = l
			}
			for _, cell := range pocket {
				labels.SetLabel(cell[0], cell[1], enclosing)
			}
		}
	}
}
