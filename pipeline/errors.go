package pipeline

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrImageDecode is returned when image bytes cannot be decoded.
type ErrImageDecode struct {
	error
}

func (err ErrImageDecode) Is(target error) bool {
	_, ok := target.(ErrImageDecode)
	return ok
}

func (err ErrImageDecode) Unwrap() error {
	return err.error
}

// ErrDetectionService wraps every failure of a remote inference call.
type ErrDetectionService struct {
	error
}

func (err ErrDetectionService) Is(target error) bool {
	_, ok := target.(ErrDetectionService)
	return ok
}

func (err ErrDetectionService) Unwrap() error {
	return err.error
}

// ErrInvalidConfig is returned for detector tuning that cannot run.
type ErrInvalidConfig struct {
	error
}

func (err ErrInvalidConfig) Is(target error) bool {
	_, ok := target.(ErrInvalidConfig)
	return ok
}

func (err ErrInvalidConfig) Unwrap() error {
	return err.error
}

var errEmptyImage = errors.New("empty image")

// DecodeImage decodes JPEG or PNG bytes into a BGR Mat owned by the caller.
func DecodeImage(buf []byte) (gocv.Mat, error) {
	if len(buf) == 0 {
		return gocv.NewMat(), ErrImageDecode{errEmptyImage}
	}

	img, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return img, ErrImageDecode{fmt.Errorf("unable to decode image: %w", err)}
	}
	if img.Empty() {
		return img, ErrImageDecode{fmt.Errorf("unable to decode image: %w", errEmptyImage)}
	}

	return img, nil
}
