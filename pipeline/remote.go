package pipeline

import (
	"context"
	"fmt"

	"github.com/cuesight/cuesight-app/billiard"
	"github.com/cuesight/cuesight-app/inference"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Remote delegates ball detection and classification to a hosted model.
// Class labels are kept as the model reports them; Matcher maps the
// requested cue color onto them.
type Remote struct {
	Client  inference.Client
	Matcher billiard.ColorMatcher
	Logger  logrus.FieldLogger
}

var _ Detector = (*Remote)(nil)

func NewRemote(client inference.Client, matcher billiard.ColorMatcher, logger logrus.FieldLogger) *Remote {
	return &Remote{Client: client, Matcher: matcher, Logger: logger}
}

func (r *Remote) Name() string {
	return "remote"
}

func (r *Remote) Detect(ctx context.Context, img gocv.Mat, req Request) (Result, error) {
	f, err := newFrame(img, req.TableArea)
	if err != nil {
		return Result{}, fmt.Errorf("unable to prepare frame: %w", err)
	}
	defer f.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.Image)
	if err != nil {
		return Result{}, fmt.Errorf("unable to encode frame: %w", err)
	}
	jpeg := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	predictions, err := r.Client.Predict(ctx, jpeg)
	if err != nil {
		return Result{}, ErrDetectionService{fmt.Errorf("unable to run remote detection: %w", err)}
	}

	log := r.Logger.WithFields(logrus.Fields{"detector": r.Name(), "rectified": f.Rectified()})
	log.Infof("received %d predictions", len(predictions))

	balls := make([]billiard.Ball, 0, len(predictions))
	for _, p := range predictions {
		src := f.toSource(Circle{X: int(p.X), Y: int(p.Y), R: p.Radius()})
		if !inArea(src.center(), req.TableArea) {
			log.Debugf("dropping %s outside table area at (%d,%d)", p.Class, src.X, src.Y)
			continue
		}

		ball := billiard.Ball{
			X:          src.X,
			Y:          src.Y,
			R:          src.R,
			Class:      p.Class,
			Confidence: p.Confidence,
		}
		ball.R = ball.Radius()
		balls = append(balls, ball)
	}

	return newResult(balls, req.CueColor, r.Matcher), nil
}
