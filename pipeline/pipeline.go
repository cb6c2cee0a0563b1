// Package pipeline finds billiard balls in a table image.
//
// Two strategies implement Detector: Classical runs a gocv circle search and
// classifies colors locally, Remote delegates to a hosted inference model.
// Both share the coordinate mapping, table-area filtering and cue ball
// partitioning so their results are interchangeable.
package pipeline

import (
	"context"
	"fmt"

	"github.com/cuesight/cuesight-app/billiard"
	"github.com/cuesight/cuesight-app/geometry"
	"github.com/cuesight/cuesight-app/palette"
	"gocv.io/x/gocv"
)

// Detector locates balls in a decoded BGR image.
type Detector interface {
	Detect(ctx context.Context, img gocv.Mat, req Request) (Result, error)
	Name() string
}

// Request carries the caller supplied hints for one detection pass.
type Request struct {
	CueColor string
	// TableArea is empty, or 3+ points. Exactly 4 points rectify the image
	// before detection.
	TableArea   []geometry.Point
	Calibration *geometry.Point
}

// Result is the output of a detection pass in source image coordinates.
type Result struct {
	CueBall    *billiard.Ball
	OtherBalls []billiard.Ball
	// AllDetected holds every surviving ball, most confident first.
	AllDetected []billiard.Ball
}

// HoughTier is one sensitivity level of the circle search.
type HoughTier struct {
	Param2  float64 `json:"param2"`
	MinDist float64 `json:"minDist"`
}

// Config tunes the classical detector. It is stored as JSON in detector
// profiles.
type Config struct {
	Gamma float64 `json:"gamma"`

	CLAHEClipLimit float64 `json:"claheClipLimit"`
	CLAHETileSize  int     `json:"claheTileSize"`
	BlurKernel     int     `json:"blurKernel"`
	BlurSigma      float64 `json:"blurSigma"`

	HoughDP        float64     `json:"houghDP"`
	HoughParam1    float64     `json:"houghParam1"`
	HoughMinRadius int         `json:"houghMinRadius"`
	HoughMaxRadius int         `json:"houghMaxRadius"`
	HoughTiers     []HoughTier `json:"houghTiers"`

	ThresholdBlockSize int     `json:"thresholdBlockSize"`
	ThresholdC         float64 `json:"thresholdC"`

	// MinRadius and MaxRadius bound accepted circles in working pixels.
	MinRadius     int     `json:"minRadius"`
	MaxRadius     int     `json:"maxRadius"`
	DedupDistance float64 `json:"dedupDistance"`

	SampleMinHalfSize   int     `json:"sampleMinHalfSize"`
	SampleRadiusDivisor float64 `json:"sampleRadiusDivisor"`
	CalibrationHalfSize int     `json:"calibrationHalfSize"`

	Background palette.Tolerance `json:"background"`
	Shadow     palette.Shadow    `json:"shadow"`

	ConfidenceRadius float64 `json:"confidenceRadius"`
	MinConfidence    float64 `json:"minConfidence"`
	MinOutputRadius  int     `json:"minOutputRadius"`
}

// DefaultHoughTiers go from the most to the least conservative setting.
var DefaultHoughTiers = []HoughTier{
	{Param2: 22, MinDist: 25},
	{Param2: 18, MinDist: 25},
	{Param2: 15, MinDist: 20},
}

// DefaultConfig returns the tuning used when no profile is selected.
func DefaultConfig() Config {
	tiers := make([]HoughTier, len(DefaultHoughTiers))
	copy(tiers, DefaultHoughTiers)

	return Config{
		Gamma: 1.6,

		CLAHEClipLimit: 3.0,
		CLAHETileSize:  8,
		BlurKernel:     9,
		BlurSigma:      2,

		HoughDP:        1,
		HoughParam1:    40,
		HoughMinRadius: 8,
		HoughMaxRadius: 70,
		HoughTiers:     tiers,

		ThresholdBlockSize: 11,
		ThresholdC:         2,

		MinRadius:     8,
		MaxRadius:     80,
		DedupDistance: 20,

		SampleMinHalfSize:   6,
		SampleRadiusDivisor: 2.5,
		CalibrationHalfSize: 2,

		Background: palette.Tolerance{Hue: 15, Saturation: 80, Value: 80},
		Shadow:     palette.Shadow{MaxValue: 40, MaxSaturation: 60},

		ConfidenceRadius: 70,
		MinConfidence:    0.25,
		MinOutputRadius:  4,
	}
}

func invalidConfig(format string, args ...interface{}) error {
	return ErrInvalidConfig{fmt.Errorf(format, args...)}
}

// Validate rejects tuning that OpenCV would refuse at detection time or that
// leaves the search with nothing to do.
func (c Config) Validate() error {
	switch {
	case c.Gamma <= 0:
		return invalidConfig("gamma must be positive, got %v", c.Gamma)
	case c.CLAHEClipLimit < 0:
		return invalidConfig("claheClipLimit must not be negative, got %v", c.CLAHEClipLimit)
	case c.CLAHETileSize <= 0:
		return invalidConfig("claheTileSize must be positive, got %d", c.CLAHETileSize)
	case c.BlurKernel <= 0 || c.BlurKernel%2 == 0:
		return invalidConfig("blurKernel must be a positive odd number, got %d", c.BlurKernel)
	case c.BlurSigma < 0:
		return invalidConfig("blurSigma must not be negative, got %v", c.BlurSigma)
	case c.HoughDP <= 0:
		return invalidConfig("houghDP must be positive, got %v", c.HoughDP)
	case c.HoughParam1 <= 0:
		return invalidConfig("houghParam1 must be positive, got %v", c.HoughParam1)
	case c.HoughMinRadius < 0 || c.HoughMinRadius > c.HoughMaxRadius:
		return invalidConfig("hough radius range %d..%d is invalid", c.HoughMinRadius, c.HoughMaxRadius)
	case len(c.HoughTiers) == 0:
		return invalidConfig("houghTiers must not be empty")
	case c.ThresholdBlockSize < 3 || c.ThresholdBlockSize%2 == 0:
		return invalidConfig("thresholdBlockSize must be odd and at least 3, got %d", c.ThresholdBlockSize)
	case c.MinRadius < 0 || c.MinRadius > c.MaxRadius:
		return invalidConfig("radius range %d..%d is invalid", c.MinRadius, c.MaxRadius)
	case c.DedupDistance < 0:
		return invalidConfig("dedupDistance must not be negative, got %v", c.DedupDistance)
	case c.SampleMinHalfSize <= 0 || c.SampleRadiusDivisor <= 0:
		return invalidConfig("sample region needs a positive half size and divisor")
	case c.CalibrationHalfSize < 0:
		return invalidConfig("calibrationHalfSize must not be negative, got %d", c.CalibrationHalfSize)
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return invalidConfig("minConfidence must be within [0, 1], got %v", c.MinConfidence)
	}

	for i, tier := range c.HoughTiers {
		if tier.Param2 <= 0 || tier.MinDist <= 0 {
			return invalidConfig("hough tier %d needs a positive param2 and minDist", i)
		}
	}

	return nil
}
