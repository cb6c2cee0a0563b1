package store

import (
	"errors"
	"io"

	"github.com/cuesight/cuesight-app/pipeline"
)

// Store describes a persistent storage engine for named detector profiles.
type Store interface {
	Profile(name string) (pipeline.Config, error)
	ListProfiles() ([]string, error)
	PutProfile(name string, c pipeline.Config) error

	DefaultProfile() (string, error)
	PutDefaultProfile(name string) error

	io.Closer
}

// ErrProfileNotFound is returned when a named profile does not exist.
var ErrProfileNotFound = errors.New("profile does not exist")

var errEmptyName = errors.New("profile name is empty")
