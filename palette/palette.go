// Package palette classifies ball colors from averaged HSV samples.
//
// Hue follows the OpenCV 8-bit convention (0-180), saturation and value are
// 0-255.
package palette

import (
	"math"

	"gocv.io/x/gocv"
)

type HSV struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	V float64 `json:"v"`
}

// MeanHSV averages every pixel of an HSV region.
func MeanHSV(region gocv.Mat) HSV {
	mean := region.Mean()
	return HSV{H: mean.Val1, S: mean.Val2, V: mean.Val3}
}

// Color labels produced by Classify.
const (
	White   = "white"
	Black   = "black"
	Red     = "red"
	Brown   = "brown"
	Orange  = "orange"
	Yellow  = "yellow"
	Green   = "green"
	Blue    = "blue"
	Purple  = "purple"
	Unknown = "unknown"
)

type hueBand struct {
	Min, Max float64
	Label    string
}

// Rule thresholds. The order of the checks in Classify matters more than the
// values: white and black are decided before any hue band so that washed out
// or very dark samples never classify by hue alone.
var (
	whiteMaxSaturation = 60.0
	whiteMinValue      = 130.0
	blackMaxValue      = 50.0

	redMaxHue        = 10.0
	redWrapMinHue    = 170.0
	redMinSaturation = 70.0

	orangeMinHue   = 11.0
	orangeMaxHue   = 25.0
	orangeMinValue = 140.0

	hueBands = []hueBand{
		{26, 35, Yellow},
		{36, 88, Green},
		{89, 135, Blue},
		{136, 170, Purple},
	}

	darkMaxValue = 90.0
	darkBands    = []hueBand{
		{130, 170, Purple},
		{0, 25, Brown},
	}
)

// Classify maps a mean HSV sample to a color label.
func Classify(c HSV) string {
	if c.S < whiteMaxSaturation && c.V > whiteMinValue {
		return White
	}
	if c.V < blackMaxValue {
		return Black
	}

	if (c.H >= 0 && c.H <= redMaxHue) || (c.H >= redWrapMinHue && c.H <= 180) {
		if c.S > redMinSaturation {
			return Red
		}
		return Brown
	}

	if c.H >= orangeMinHue && c.H <= orangeMaxHue {
		if c.V > orangeMinValue {
			return Orange
		}
		return Brown
	}

	for _, band := range hueBands {
		if c.H >= band.Min && c.H <= band.Max {
			return band.Label
		}
	}

	// averaged hues can fall between the integer bands above
	if c.V < darkMaxValue {
		for _, band := range darkBands {
			if c.H >= band.Min && c.H <= band.Max {
				return band.Label
			}
		}
	}

	return Unknown
}

// Tolerance bounds how far a sample may drift from a background reference
// and still count as background.
type Tolerance struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Value      float64 `json:"value"`
}

// Matches reports whether sample is within t of ref. Hue distance wraps
// around the 180 degree circle.
func (t Tolerance) Matches(sample, ref HSV) bool {
	dh := math.Abs(sample.H - ref.H)
	if dh > 90 {
		dh = 180 - dh
	}

	return dh <= t.Hue &&
		math.Abs(sample.S-ref.S) <= t.Saturation &&
		math.Abs(sample.V-ref.V) <= t.Value
}

// Shadow describes dark, desaturated samples that are cloth in shade rather
// than balls.
type Shadow struct {
	MaxValue      float64 `json:"maxValue"`
	MaxSaturation float64 `json:"maxSaturation"`
}

// IsShadow reports whether c falls in the shadow band.
func (s Shadow) IsShadow(c HSV) bool {
	return c.V < s.MaxValue && c.S < s.MaxSaturation
}
