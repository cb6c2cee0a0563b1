package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/cuesight/cuesight-app/billiard"
	"github.com/cuesight/cuesight-app/geometry"
	"github.com/cuesight/cuesight-app/palette"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Classical detects balls with a tiered Hough circle search, falling back to
// contours, and classifies each ball by its mean color.
type Classical struct {
	Config Config
	Logger logrus.FieldLogger
}

var _ Detector = (*Classical)(nil)

func NewClassical(config Config, logger logrus.FieldLogger) *Classical {
	return &Classical{Config: config, Logger: logger}
}

func (c *Classical) Name() string {
	return "classical"
}

func (c *Classical) Detect(ctx context.Context, img gocv.Mat, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	f, err := newFrame(img, req.TableArea)
	if err != nil {
		return Result{}, fmt.Errorf("unable to prepare frame: %w", err)
	}
	defer f.Close()

	log := c.Logger.WithField("detector", c.Name())

	var background *palette.HSV
	if req.Calibration != nil {
		ref, err := c.sampleBackground(f, *req.Calibration)
		if err != nil {
			log.Warnf("unable to calibrate background, continuing without it: %s", err)
		} else {
			log.WithField("hsv", ref).Info("calibrated background")
			background = &ref
		}
	}

	enhanced := gocv.NewMat()
	defer enhanced.Close()
	if err := palette.ApplyGamma(f.Image, &enhanced, c.Config.Gamma); err != nil {
		return Result{}, err
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	if err := gocv.CvtColor(enhanced, &hsv, gocv.ColorBGRToHSV); err != nil {
		return Result{}, fmt.Errorf("unable to convert to hsv: %w", err)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(f.Image, &gray, gocv.ColorBGRToGray); err != nil {
		return Result{}, fmt.Errorf("unable to convert to grayscale: %w", err)
	}

	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe := gocv.NewCLAHEWithParams(c.Config.CLAHEClipLimit, image.Point{X: c.Config.CLAHETileSize, Y: c.Config.CLAHETileSize})
	err = clahe.Apply(gray, &equalized)
	clahe.Close()
	if err != nil {
		return Result{}, fmt.Errorf("unable to equalize contrast: %w", err)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := c.Config.BlurKernel
	if err := gocv.GaussianBlur(equalized, &blurred, image.Point{X: k, Y: k}, c.Config.BlurSigma, c.Config.BlurSigma, gocv.BorderDefault); err != nil {
		return Result{}, fmt.Errorf("unable to blur: %w", err)
	}

	circles, err := c.houghSweep(blurred, log)
	if err != nil {
		return Result{}, err
	}
	if len(circles) == 0 {
		log.Info("no circles from hough sweep, falling back to contours")
		if circles, err = c.contourCircles(equalized); err != nil {
			return Result{}, err
		}
	}

	clean := DedupeCircles(circles, c.Config.DedupDistance)
	log.Debugf("deduplicated circles: %d -> %d", len(circles), len(clean))

	balls := make([]billiard.Ball, 0, len(clean))
	for _, circle := range clean {
		if circle.R < c.Config.MinRadius || circle.R > c.Config.MaxRadius {
			continue
		}

		color, ok := c.classify(f, hsv, circle, background)
		if !ok {
			log.Debugf("dropping background circle at (%d,%d)", circle.X, circle.Y)
			continue
		}

		src := f.toSource(circle)
		if !inArea(src.center(), req.TableArea) {
			log.Debugf("dropping ball outside table area at (%d,%d)", src.X, src.Y)
			continue
		}

		balls = append(balls, billiard.Ball{
			X:          src.X,
			Y:          src.Y,
			R:          max(c.Config.MinOutputRadius, src.R),
			Class:      billiard.Label(color),
			Confidence: c.confidence(src.R),
		})
	}

	return newResult(balls, req.CueColor, billiard.ColorMatcher{}), nil
}

// houghSweep returns the circles of the first tier that finds any.
func (c *Classical) houghSweep(blurred gocv.Mat, log logrus.FieldLogger) ([]Circle, error) {
	for i, tier := range c.Config.HoughTiers {
		found := gocv.NewMat()
		err := gocv.HoughCirclesWithParams(blurred, &found, gocv.HoughGradient,
			c.Config.HoughDP, tier.MinDist,
			c.Config.HoughParam1, tier.Param2,
			c.Config.HoughMinRadius, c.Config.HoughMaxRadius)
		if err != nil {
			found.Close()
			return nil, fmt.Errorf("unable to run hough tier %d: %w", i, err)
		}

		var circles []Circle
		if !found.Empty() {
			circles = make([]Circle, 0, found.Cols())
			for j := 0; j < found.Cols(); j++ {
				circles = append(circles, Circle{
					X: int(math.Round(float64(found.GetFloatAt(0, j*3)))),
					Y: int(math.Round(float64(found.GetFloatAt(0, j*3+1)))),
					R: int(math.Round(float64(found.GetFloatAt(0, j*3+2)))),
				})
			}
		}
		found.Close()

		if len(circles) > 0 {
			log.WithFields(logrus.Fields{"tier": i, "param2": tier.Param2, "circles": len(circles)}).Info("hough tier matched")
			return circles, nil
		}
	}

	return nil, nil
}

// contourCircles fits a minimum enclosing circle to every external contour of
// the adaptively thresholded image.
func (c *Classical) contourCircles(equalized gocv.Mat) ([]Circle, error) {
	thresh := gocv.NewMat()
	defer thresh.Close()
	err := gocv.AdaptiveThreshold(equalized, &thresh, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinaryInv,
		c.Config.ThresholdBlockSize, float32(c.Config.ThresholdC))
	if err != nil {
		return nil, fmt.Errorf("unable to threshold: %w", err)
	}

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	circles := make([]Circle, 0)
	for i := 0; i < contours.Size(); i++ {
		x, y, r := gocv.MinEnclosingCircle(contours.At(i))
		if r > float32(c.Config.MinRadius) && r < float32(c.Config.MaxRadius) {
			circles = append(circles, Circle{X: int(x), Y: int(y), R: int(r)})
		}
	}

	return circles, nil
}

// classify samples the center of circle in the gamma corrected HSV image. It
// returns false for cloth matching the background reference and for shadows.
// A sample region clipped away entirely classifies as unknown.
func (c *Classical) classify(f *frame, hsv gocv.Mat, circle Circle, background *palette.HSV) (string, bool) {
	half := int(math.Max(float64(c.Config.SampleMinHalfSize), float64(circle.R)/c.Config.SampleRadiusDivisor))

	bounds, ok := f.sampleRect(circle.X, circle.Y, half, 0)
	if !ok {
		return palette.Unknown, true
	}

	region := hsv.Region(image.Rect(bounds[0], bounds[1], bounds[2], bounds[3]))
	mean := palette.MeanHSV(region)
	region.Close()

	if background != nil && c.Config.Background.Matches(mean, *background) {
		return "", false
	}
	if c.Config.Shadow.IsShadow(mean) {
		return "", false
	}

	return palette.Classify(mean), true
}

var errEmptyCalibration = errors.New("calibration sample is empty")

// sampleBackground averages the HSV of a small square around the calibration
// point, mapped into the frame and clamped to it.
func (c *Classical) sampleBackground(f *frame, point geometry.Point) (palette.HSV, error) {
	p := f.toWorking(point)
	p.X = max(0, min(p.X, f.Image.Cols()-1))
	p.Y = max(0, min(p.Y, f.Image.Rows()-1))

	half := c.Config.CalibrationHalfSize
	bounds, ok := f.sampleRect(p.X, p.Y, half, 1)
	if !ok {
		return palette.HSV{}, errEmptyCalibration
	}

	region := f.Image.Region(image.Rect(bounds[0], bounds[1], bounds[2], bounds[3]))
	defer region.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	if err := gocv.CvtColor(region, &hsv, gocv.ColorBGRToHSV); err != nil {
		return palette.HSV{}, fmt.Errorf("unable to convert calibration sample: %w", err)
	}

	return palette.MeanHSV(hsv), nil
}

func (c *Classical) confidence(radius int) float64 {
	if c.Config.ConfidenceRadius <= 0 {
		return 1
	}
	return math.Max(c.Config.MinConfidence, math.Min(1, float64(radius)/c.Config.ConfidenceRadius))
}
