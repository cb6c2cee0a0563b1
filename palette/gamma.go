package palette

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
)

// GammaTable builds the 8-bit lookup table for out = 255 * (in/255)^(1/gamma).
func GammaTable(gamma float64) [256]uint8 {
	var table [256]uint8
	if gamma <= 0 {
		gamma = 1
	}

	inv := 1.0 / gamma
	for i := range table {
		// truncation matches an astype("uint8") cast
		table[i] = uint8(math.Pow(float64(i)/255.0, inv) * 255)
	}

	return table
}

// ApplyGamma remaps every channel of src through GammaTable(gamma) into dst.
func ApplyGamma(src gocv.Mat, dst *gocv.Mat, gamma float64) error {
	table := GammaTable(gamma)

	lut := gocv.NewMatWithSize(1, 256, gocv.MatTypeCV8U)
	defer lut.Close()
	for i, v := range table {
		lut.SetUCharAt(0, i, v)
	}

	if err := gocv.LUT(src, lut, dst); err != nil {
		return fmt.Errorf("unable to apply gamma lookup: %w", err)
	}
	return nil
}
