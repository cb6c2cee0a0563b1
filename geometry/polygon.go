package geometry

import (
	"math"
	"sort"
)

// ConvexHull returns the convex hull of points in counter-clockwise order
// (monotone chain). Collinear boundary points are dropped.
func ConvexHull(points []Point) []Point {
	if len(points) < 3 {
		return append([]Point(nil), points...)
	}

	pts := append([]Point(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	hull := make([]Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull[:len(hull)-1]
}

// cross is the z component of (b-a) x (c-a).
func cross(a, b, c Point) int {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// PointInPolygon reports whether p lies inside the convex hull of polygon and
// at least tolerance pixels away from its boundary. Points on the boundary
// are inside when tolerance is 0. Fewer than 3 vertices never constrain.
func PointInPolygon(p Point, polygon []Point, tolerance float64) bool {
	if len(polygon) < 3 {
		return true
	}

	hull := ConvexHull(polygon)
	if len(hull) < 3 {
		// all vertices collinear: only the segment itself is "inside"
		return tolerance <= 0 && onSegments(p, hull)
	}

	return signedDistance(p.Float(), hull) >= tolerance
}

// signedDistance is positive inside a counter-clockwise convex hull, zero on
// its boundary and negative outside.
func signedDistance(p PointF, hull []Point) float64 {
	inside := true
	minDist := math.Inf(1)

	for i := range hull {
		a := hull[i].Float()
		b := hull[(i+1)%len(hull)].Float()

		if (b.X-a.X)*(p.Y-a.Y)-(b.Y-a.Y)*(p.X-a.X) < 0 {
			inside = false
		}

		if d := segmentDistance(p, a, b); d < minDist {
			minDist = d
		}
	}

	if inside {
		return minDist
	}
	return -minDist
}

func segmentDistance(p, a, b PointF) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return p.Distance(a)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	return p.Distance(PointF{X: a.X + t*dx, Y: a.Y + t*dy})
}

func onSegments(p Point, pts []Point) bool {
	for i := 0; i+1 < len(pts); i++ {
		if segmentDistance(p.Float(), pts[i].Float(), pts[i+1].Float()) == 0 {
			return true
		}
	}
	return len(pts) == 1 && pts[0] == p
}
