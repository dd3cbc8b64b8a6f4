package tracker

import "github.com/golang/geo/r2"

// Fuse collapses detections whose points are closer than dist into a single
// detection. Grouping is transitive. The representative of a group is its
// most confident member (larger box wins ties) and its point is moved to the
// feet of the chosen box. Singletons pass through unchanged.
func Fuse(dets []Detection, dist float64) []Detection {
	if len(dets) <= 1 || dist <= 0 {
		return dets
	}

	parent := make([]int, len(dets))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := 0; i < len(dets); i++ {
		for j := i + 1; j < len(dets); j++ {
			if dets[i].Point.Sub(dets[j].Point).Norm() < dist {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[rj] = ri
				}
			}
		}
	}

	// Groups keep the order of their first member.
	groups := make(map[int][]int)
	var roots []int
	for i := range dets {
		r := find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	out := make([]Detection, 0, len(roots))
	for _, r := range roots {
		members := groups[r]
		if len(members) == 1 {
			out = append(out, dets[members[0]])
			continue
		}
		best := dets[members[0]]
		for _, m := range members[1:] {
			if better(dets[m], best) {
				best = dets[m]
			}
		}
		if hasBox(best.BBox) {
			best.Point = FeetPoint(best.BBox)
		}
		out = append(out, best)
	}
	return out
}

func better(a, b Detection) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return area(a.BBox) > area(b.BBox)
}

func area(r r2.Rect) float64 {
	if r.IsEmpty() {
		return 0
	}
	s := r.Size()
	return s.X * s.Y
}

// hasBox reports whether r carries an actual box; the zero Rect is a point.
func hasBox(r r2.Rect) bool {
	return !r.IsEmpty() && (r.X.Length() > 0 || r.Y.Length() > 0)
}

// FeetPoint returns the bottom-center of a box in image coordinates, where y
// grows downward.
func FeetPoint(r r2.Rect) r2.Point {
	return r2.Point{X: r.X.Center(), Y: r.Y.Hi}
}

// BoxFromCorners builds a box from x1,y1,x2,y2 pixel corners.
func BoxFromCorners(x1, y1, x2, y2 float64) r2.Rect {
	return r2.RectFromPoints(r2.Point{X: x1, Y: y1}, r2.Point{X: x2, Y: y2})
}
