package pipeline

import (
	"math"
	"sort"

	"github.com/cuesight/cuesight-app/geometry"
)

// Circle is a candidate ball in working image pixels.
type Circle struct {
	X, Y, R int
}

func (c Circle) center() geometry.Point {
	return geometry.Point{X: c.X, Y: c.Y}
}

func (c Circle) distance(o Circle) float64 {
	return math.Hypot(float64(c.X-o.X), float64(c.Y-o.Y))
}

type byRadius []Circle

func (s byRadius) Len() int           { return len(s) }
func (s byRadius) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s byRadius) Less(i, j int) bool { return s[i].R > s[j].R }

// DedupeCircles keeps the largest circle of every cluster whose centers are
// closer than minDist. Equal radii keep their input order.
func DedupeCircles(circles []Circle, minDist float64) []Circle {
	sorted := make([]Circle, len(circles))
	copy(sorted, circles)
	sort.Stable(byRadius(sorted))

	kept := make([]Circle, 0, len(sorted))
	for _, c := range sorted {
		duplicate := false
		for _, k := range kept {
			if c.distance(k) < minDist {
				duplicate = true
				break
			}
		}

		if !duplicate {
			kept = append(kept, c)
		}
	}

	return kept
}
