package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transform is a row-major 3x3 projective transform.
type Transform [9]float64

// NewPerspective computes the transform mapping src[i] onto dst[i], with the
// bottom-right element fixed to 1.
func NewPerspective(src, dst [4]PointF) (Transform, error) {
	A := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		r := 2 * i

		// x = (h0 X + h1 Y + h2) / (h6 X + h7 Y + 1)
		A.Set(r, 0, X)
		A.Set(r, 1, Y)
		A.Set(r, 2, 1)
		A.Set(r, 6, -X*x)
		A.Set(r, 7, -Y*x)
		b.SetVec(r, x)

		// y = (h3 X + h4 Y + h5) / (h6 X + h7 Y + 1)
		A.Set(r+1, 3, X)
		A.Set(r+1, 4, Y)
		A.Set(r+1, 5, 1)
		A.Set(r+1, 6, -X*y)
		A.Set(r+1, 7, -Y*y)
		b.SetVec(r+1, y)
	}

	var h mat.VecDense
	if err := h.SolveVec(A, b); err != nil {
		return Transform{}, fmt.Errorf("%w: %s", ErrDegenerateTransform, err)
	}

	var t Transform
	for i := 0; i < 8; i++ {
		t[i] = h.AtVec(i)
	}
	t[8] = 1

	return t, nil
}

// Inverse returns the transform undoing t.
func (t Transform) Inverse() (Transform, error) {
	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(3, 3, t[:])); err != nil {
		return Transform{}, fmt.Errorf("%w: %s", ErrDegenerateTransform, err)
	}

	var out Transform
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = inv.At(r, c)
		}
	}

	// keep the same normalization as NewPerspective
	if out[8] != 0 {
		scale := out[8]
		for i := range out {
			out[i] /= scale
		}
	}

	return out, nil
}

// Apply maps (x, y) through t. A point on the line at infinity maps to itself.
func (t Transform) Apply(x, y float64) (float64, float64) {
	w := t[6]*x + t[7]*y + t[8]
	if w == 0 {
		return x, y
	}

	return (t[0]*x + t[1]*y + t[2]) / w, (t[3]*x + t[4]*y + t[5]) / w
}

// MapPoint maps an integer pixel through t, truncating the result toward zero.
func MapPoint(x, y int, t Transform) (int, int) {
	mx, my := t.Apply(float64(x), float64(y))
	return int(mx), int(my)
}
