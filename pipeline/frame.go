package pipeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/cuesight/cuesight-app/billiard"
	"github.com/cuesight/cuesight-app/geometry"
	"gocv.io/x/gocv"
)

// frame is the image a strategy searches, together with the mapping back to
// the source image when the table was rectified.
type frame struct {
	Image gocv.Mat

	rect *geometry.Rectification
}

// newFrame validates the table area and rectifies img when it has exactly
// four corners. The frame must be closed.
func newFrame(img gocv.Mat, area []geometry.Point) (*frame, error) {
	if err := geometry.ValidateTableArea(area); err != nil {
		return nil, err
	}

	if len(area) != 4 {
		return &frame{Image: img}, nil
	}

	rect, err := geometry.Rectify(img, area)
	if err != nil {
		return nil, err
	}

	return &frame{Image: rect.Image, rect: rect}, nil
}

func (f *frame) Close() error {
	if f.rect == nil {
		return nil
	}
	return f.rect.Close()
}

func (f *frame) Rectified() bool {
	return f.rect != nil
}

// toWorking maps a source image point into the frame.
func (f *frame) toWorking(p geometry.Point) geometry.Point {
	if f.rect == nil {
		return p
	}

	x, y := geometry.MapPoint(p.X, p.Y, f.rect.Forward)
	return geometry.Point{X: x, Y: y}
}

// toSource maps a circle back to the source image. The radius is measured by
// mapping a point one radius to the right of the center; a collapsed result
// keeps the working radius.
func (f *frame) toSource(c Circle) Circle {
	if f.rect == nil {
		return c
	}

	x, y := geometry.MapPoint(c.X, c.Y, f.rect.Inverse)
	edge, _ := geometry.MapPoint(c.X+c.R, c.Y, f.rect.Inverse)

	r := int(math.Abs(float64(edge - x)))
	if r <= 0 {
		r = c.R
	}

	return Circle{X: x, Y: y, R: r}
}

// sampleRect returns the clamped square [x-half, x+half+extra) around a point,
// or false when nothing is left after clamping.
func (f *frame) sampleRect(x, y, half, extra int) (rect [4]int, ok bool) {
	x1, x2 := max(0, x-half), min(f.Image.Cols(), x+half+extra)
	y1, y2 := max(0, y-half), min(f.Image.Rows(), y+half+extra)

	return [4]int{x1, y1, x2, y2}, x2 > x1 && y2 > y1
}

// inArea reports whether p lies inside area. An empty area keeps everything.
func inArea(p geometry.Point, area []geometry.Point) bool {
	if len(area) == 0 {
		return true
	}
	return geometry.PointInPolygon(p, area, 0)
}

type byConfidence []billiard.Ball

func (s byConfidence) Len() int           { return len(s) }
func (s byConfidence) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s byConfidence) Less(i, j int) bool { return s[i].Confidence > s[j].Confidence }

// newResult partitions the balls into cue and other balls, in detection
// order, and records every ball by descending confidence.
func newResult(balls []billiard.Ball, cueColor string, m billiard.ColorMatcher) Result {
	cue, others := billiard.Partition(balls, cueColor, m)

	all := make([]billiard.Ball, len(balls))
	copy(all, balls)
	sort.Stable(byConfidence(all))

	return Result{CueBall: cue, OtherBalls: others, AllDetected: all}
}

func (r Result) String() string {
	cue := "none"
	if r.CueBall != nil {
		cue = fmt.Sprintf("%s@(%d,%d)", r.CueBall.Class, r.CueBall.X, r.CueBall.Y)
	}
	return fmt.Sprintf("cue=%s others=%d total=%d", cue, len(r.OtherBalls), len(r.AllDetected))
}
