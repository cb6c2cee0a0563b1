// Package inference talks to hosted object detection models.
package inference

import "context"

// Prediction is one bounding box returned by a model, centered on (X, Y).
type Prediction struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Radius approximates the radius of the disc inscribed in the box.
func (p Prediction) Radius() int {
	return int((p.Width + p.Height) / 4)
}

// Client runs a model over a JPEG encoded image.
type Client interface {
	Predict(ctx context.Context, jpeg []byte) ([]Prediction, error)
}
