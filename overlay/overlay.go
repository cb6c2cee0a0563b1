// Package overlay renders detection and shot diagnostics onto table images
// and encodes them as stream frames.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/cuesight/cuesight-app/billiard"
	"github.com/cuesight/cuesight-app/geometry"
	"github.com/cuesight/cuesight-app/palette"
	"github.com/cuesight/cuesight-app/shot"
	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

var (
	areaColor   = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	pocketColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	potColor    = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	aimColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	ghostColor  = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

// Scene is everything drawn on one frame. Empty fields are skipped.
type Scene struct {
	TableArea []geometry.Point
	Pockets   []geometry.Point
	Balls     []billiard.Ball
	CueBall   *billiard.Ball
	ShotLines []shot.Line
	GhostBall *shot.GhostBall
}

func pt(p geometry.Point) image.Point {
	return image.Pt(p.X, p.Y)
}

// Draw paints s onto img in place, stopping at the first drawing error.
func Draw(img *gocv.Mat, s Scene) error {
	if n := len(s.TableArea); n >= 3 {
		for i, p := range s.TableArea {
			if err := gocv.Line(img, pt(p), pt(s.TableArea[(i+1)%n]), areaColor, 2); err != nil {
				return fmt.Errorf("unable to draw table area: %w", err)
			}
		}
	}

	for _, p := range s.Pockets {
		if err := gocv.Circle(img, pt(p), billiard.DefaultRadius, pocketColor, 3); err != nil {
			return fmt.Errorf("unable to draw pocket: %w", err)
		}
	}

	for _, b := range s.Balls {
		c := palette.DisplayColor(b.Class)
		if err := gocv.Circle(img, pt(b.Center()), b.Radius(), c, 2); err != nil {
			return fmt.Errorf("unable to draw ball: %w", err)
		}
		if err := gocv.PutText(img, b.Class, image.Pt(b.X-b.Radius(), b.Y-b.Radius()-4), gocv.FontHersheySimplex, 0.5, c, 1); err != nil {
			return fmt.Errorf("unable to label ball: %w", err)
		}
	}

	if s.CueBall != nil {
		if err := gocv.Circle(img, pt(s.CueBall.Center()), s.CueBall.Radius()+3, aimColor, 3); err != nil {
			return fmt.Errorf("unable to draw cue ball: %w", err)
		}
	}

	for i, l := range s.ShotLines {
		c := potColor
		if i > 0 {
			c = aimColor
		}
		if err := gocv.Line(img, pt(l.Start), pt(l.End), c, 2); err != nil {
			return fmt.Errorf("unable to draw shot line: %w", err)
		}
	}

	if s.GhostBall != nil {
		if err := gocv.Circle(img, pt(s.GhostBall.Center), s.GhostBall.Radius, ghostColor, 1); err != nil {
			return fmt.Errorf("unable to draw ghost ball: %w", err)
		}
	}

	return nil
}

// Frame copies img, draws s over it and returns a JPEG no larger than
// maxWidth x maxHeight. Frames are never upscaled.
func Frame(img gocv.Mat, s Scene, maxWidth, maxHeight int) ([]byte, error) {
	canvas := img.Clone()
	defer canvas.Close()

	if err := Draw(&canvas, s); err != nil {
		return nil, err
	}

	src, err := canvas.ToImage()
	if err != nil {
		return nil, fmt.Errorf("unable to convert frame: %w", err)
	}

	return EncodeJPEG(src, maxWidth, maxHeight)
}

// EncodeJPEG fits src into the bounds, keeping its aspect ratio.
func EncodeJPEG(src image.Image, maxWidth, maxHeight int) ([]byte, error) {
	if maxWidth > 0 && maxHeight > 0 {
		src = imaging.Fit(src, maxWidth, maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("unable to encode frame: %w", err)
	}

	return buf.Bytes(), nil
}
