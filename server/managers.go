package server

import (
	"errors"
	"sync"

	"github.com/cuesight/cuesight-app/pipeline"
	"github.com/sirupsen/logrus"
)

var errProfilesUnsupported = errors.New("active detector does not use profiles")

// detectorManager synchronizes access to the active detector. Profiles only
// retune the classical strategy; a remote detector is left in place.
type detectorManager struct {
	detector pipeline.Detector
	logger   logrus.FieldLogger
	mu       *sync.RWMutex
}

func newDetectorManager(d pipeline.Detector, logger logrus.FieldLogger) *detectorManager {
	return &detectorManager{detector: d, logger: logger, mu: new(sync.RWMutex)}
}

func (d *detectorManager) SetConfig(config pipeline.Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.detector.(*pipeline.Classical); !ok {
		return errProfilesUnsupported
	}

	d.detector = pipeline.NewClassical(config, d.logger)
	return nil
}

func (d *detectorManager) Detector() pipeline.Detector {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.detector
}
