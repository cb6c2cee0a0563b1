package geometry

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Rectification is a table-aligned copy of an image together with the
// transforms between source and rectified coordinates.
type Rectification struct {
	Image   gocv.Mat
	Forward Transform // source -> rectified
	Inverse Transform // rectified -> source
	Width   int
	Height  int
}

// Close releases the rectified image.
func (r *Rectification) Close() error {
	return r.Image.Close()
}

// RectifiedSize returns the output width and height for an ordered
// quadrilateral: the longer of each pair of opposing edges.
func RectifiedSize(corners [4]Point) (int, int) {
	tl, tr, br, bl := corners[0].Float(), corners[1].Float(), corners[2].Float(), corners[3].Float()

	width := math.Max(math.Trunc(br.Distance(bl)), math.Trunc(tr.Distance(tl)))
	height := math.Max(math.Trunc(tr.Distance(br)), math.Trunc(tl.Distance(bl)))

	return int(width), int(height)
}

// RectifyTransforms orders the corners and derives the forward and inverse
// transforms onto a width x height rectangle.
func RectifyTransforms(corners []Point) (forward, inverse Transform, width, height int, err error) {
	ordered, err := OrderCorners(corners)
	if err != nil {
		return forward, inverse, 0, 0, err
	}

	width, height = RectifiedSize(ordered)
	if width < 2 || height < 2 {
		return forward, inverse, 0, 0, fmt.Errorf("%w: table area collapses to %dx%d", ErrDegenerateTransform, width, height)
	}

	var src [4]PointF
	for i, p := range ordered {
		src[i] = p.Float()
	}
	w, h := float64(width-1), float64(height-1)
	dst := [4]PointF{{0, 0}, {w, 0}, {w, h}, {0, h}}

	if forward, err = NewPerspective(src, dst); err != nil {
		return forward, inverse, 0, 0, err
	}
	if inverse, err = forward.Inverse(); err != nil {
		return forward, inverse, 0, 0, err
	}

	return forward, inverse, width, height, nil
}

// Rectify warps the quadrilateral spanned by corners onto an axis-aligned
// image. The caller owns the returned Rectification and must Close it.
func Rectify(img gocv.Mat, corners []Point) (*Rectification, error) {
	forward, inverse, width, height, err := RectifyTransforms(corners)
	if err != nil {
		return nil, fmt.Errorf("unable to compute rectification: %w", err)
	}

	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer m.Close()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, forward[r*3+c])
		}
	}

	warped := gocv.NewMat()
	if err := gocv.WarpPerspective(img, &warped, m, image.Point{X: width, Y: height}); err != nil {
		warped.Close()
		return nil, fmt.Errorf("unable to warp table area: %w", err)
	}

	return &Rectification{
		Image:   warped,
		Forward: forward,
		Inverse: inverse,
		Width:   width,
		Height:  height,
	}, nil
}
