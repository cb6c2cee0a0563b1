// Package geometry holds the image-space primitives shared by the detector and
// the shot engine: points, corner ordering, projective transforms and table
// area containment.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Point is a pixel coordinate in image space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PointF is a sub-pixel coordinate used for intermediate math.
type PointF struct {
	X float64
	Y float64
}

// Float converts p to a PointF.
func (p Point) Float() PointF {
	return PointF{X: float64(p.X), Y: float64(p.Y)}
}

// Int truncates p toward zero.
func (p PointF) Int() Point {
	return Point{X: int(p.X), Y: int(p.Y)}
}

// Distance returns the Euclidean distance between p and o.
func (p PointF) Distance(o PointF) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// ErrInsufficientPoints is returned when a point set is too small for the
// requested operation (corner ordering, table areas, calibration input).
type ErrInsufficientPoints struct {
	error
}

func (err ErrInsufficientPoints) Is(target error) bool {
	_, ok := target.(ErrInsufficientPoints)
	return ok
}

func insufficientPoints(format string, args ...interface{}) error {
	return ErrInsufficientPoints{fmt.Errorf(format, args...)}
}

// OrderCorners orders four quadrilateral corners as top-left, top-right,
// bottom-right, bottom-left. Top-left minimizes x+y, bottom-right maximizes
// it, top-right minimizes y-x and bottom-left maximizes it. Only the first
// four points are considered.
func OrderCorners(points []Point) ([4]Point, error) {
	var ordered [4]Point
	if len(points) < 4 {
		return ordered, insufficientPoints("need 4 corners, got %d", len(points))
	}

	pts := points[:4]
	tl, br, tr, bl := pts[0], pts[0], pts[0], pts[0]
	for _, p := range pts[1:] {
		if p.X+p.Y < tl.X+tl.Y {
			tl = p
		}
		if p.X+p.Y > br.X+br.Y {
			br = p
		}
		if p.Y-p.X < tr.Y-tr.X {
			tr = p
		}
		if p.Y-p.X > bl.Y-bl.X {
			bl = p
		}
	}

	ordered = [4]Point{tl, tr, br, bl}
	return ordered, nil
}

// ValidateTableArea accepts an absent area (no filtering), a polygon of 3 or
// more points. One or two points cannot bound anything.
func ValidateTableArea(area []Point) error {
	if len(area) == 1 || len(area) == 2 {
		return insufficientPoints("table area needs at least 3 points, got %d", len(area))
	}

	return nil
}

// ErrDegenerateTransform is returned when four correspondences do not define a
// projective transform (collinear or repeated corners).
var ErrDegenerateTransform = errors.New("degenerate perspective transform")
