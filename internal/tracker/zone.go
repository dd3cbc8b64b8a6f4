package tracker

import (
	"sort"

	"github.com/golang/geo/r2"
)

// Zone is the queue area of a segment in image coordinates.
type Zone struct {
	Polygon []r2.Point
	// Origin is the reference point the queue is measured from, normally
	// the end of the zone nearest the service point.
	Origin r2.Point
	// Direction points from the service point toward the back of the
	// queue. It does not need to be normalised. The zero vector means +y.
	Direction r2.Point
}

// Contains reports whether p lies strictly inside the polygon (even-odd rule).
func (z Zone) Contains(p r2.Point) bool {
	n := len(z.Polygon)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := z.Polygon[i], z.Polygon[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// axis returns the unit queue direction.
func (z Zone) axis() r2.Point {
	if z.Direction.Norm() == 0 {
		return r2.Point{X: 0, Y: 1}
	}
	return z.Direction.Normalize()
}

// Ranked is an identity placed in the segment's queue order.
type Ranked struct {
	Object
	LocalPos   int     // 1-based rank within the segment
	Projection float64 // distance along the queue direction
}

// OrderedInZone returns the identities inside the zone, closest to the
// service point first.
func (t *Tracker) OrderedInZone(zone Zone) []Ranked {
	objs := t.Objects()
	axis := zone.axis()

	ranked := make([]Ranked, 0, len(objs))
	for _, obj := range objs {
		if !zone.Contains(obj.Position) {
			continue
		}
		ranked = append(ranked, Ranked{
			Object:     obj,
			Projection: obj.Position.Sub(zone.Origin).Dot(axis),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Projection < ranked[j].Projection
	})
	for i := range ranked {
		ranked[i].LocalPos = i + 1
	}
	return ranked
}
