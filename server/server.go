package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuesight/cuesight-app/billiard"
	"github.com/cuesight/cuesight-app/pipeline"
	"github.com/cuesight/cuesight-app/store"
	"github.com/hybridgroup/mjpeg"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

type Server struct {
	Addr string

	Store    store.Store
	Detector pipeline.Detector
	Matcher  billiard.ColorMatcher
	Logger   *logrus.Logger

	MaxUploadBytes    int64
	AllowedExtensions []string
	StreamMaxWidth    int
	StreamMaxHeight   int

	stream *mjpeg.Stream

	detectorManager *detectorManager
}

func (s *Server) Run(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              s.Addr,
		Handler:           handler,
		ReadTimeout:       time.Second * 15,
		ReadHeaderTimeout: time.Second * 15,
		IdleTimeout:       time.Second * 30,
		MaxHeaderBytes:    4096,
	}

	listenErrs := make(chan error)
	go func() {
		s.Logger.WithField("addr", s.Addr).Info("serving http")
		listenErrs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-listenErrs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// Handler initializes the server and returns its routes.
func (s *Server) Handler() (http.Handler, error) {
	s.stream = mjpeg.NewStream()

	if err := s.init(); err != nil {
		return nil, fmt.Errorf("unable to initialize: %w", err)
	}

	mux := httprouter.New()

	mux.Handler(http.MethodGet, "/stream", s.stream)

	mux.HandlerFunc(http.MethodGet, "/", s.health)
	mux.HandlerFunc(http.MethodGet, "/health", s.health)

	mux.HandlerFunc(http.MethodPost, "/detect", s.detect)
	mux.HandlerFunc(http.MethodPost, "/calculate", s.calculate)
	mux.HandlerFunc(http.MethodPost, "/calculate_manual", s.calculateManual)
	mux.HandlerFunc(http.MethodPost, "/analyze_best_shot", s.analyzeBestShot)
	mux.HandlerFunc(http.MethodPost, "/analyze", s.analyze)

	mux.HandlerFunc(http.MethodGet, "/profile", s.getDefaultProfile)
	mux.HandlerFunc(http.MethodPut, "/profile", s.putDefaultProfile)
	mux.HandlerFunc(http.MethodGet, "/profiles", s.profiles)
	mux.HandlerFunc(http.MethodGet, "/profiles/:name", s.getProfile)
	mux.HandlerFunc(http.MethodPut, "/profiles/:name", s.putProfile)

	mux.HandlerFunc(http.MethodPost, "/rpc/updateProfile", s.updateProfile)

	return logRequests(s.Logger, mux), nil
}

// init sets up the detector manager and, for the classical detector, applies
// the default profile from the store when one is set.
func (s *Server) init() error {
	if s.Logger == nil {
		s.Logger = logrus.New()
	}
	if s.MaxUploadBytes <= 0 {
		s.MaxUploadBytes = 2 * 1024 * 1024
	}

	detector := s.Detector
	if detector == nil {
		detector = pipeline.NewClassical(pipeline.DefaultConfig(), s.Logger)
	}
	s.detectorManager = newDetectorManager(detector, s.Logger)

	if _, ok := detector.(*pipeline.Classical); !ok {
		s.Logger.WithField("detector", detector.Name()).Info("profiles disabled for this detector")
		return nil
	}

	name, err := s.Store.DefaultProfile()
	if err != nil {
		return fmt.Errorf("unable to read default profile: %w", err)
	}
	if name == "" {
		s.Logger.Info("no default profile set, using built-in tuning")
		return nil
	}

	config, err := s.Store.Profile(name)
	if err != nil {
		s.Logger.Warnf("unable to load default profile: %s", err)
		return nil
	}

	if err := s.detectorManager.SetConfig(config); err != nil {
		if errors.Is(err, pipeline.ErrInvalidConfig{}) {
			s.Logger.WithField("profile", name).Warnf("ignoring default profile: %s", err)
			return nil
		}
		return err
	}

	s.Logger.WithField("profile", name).Info("applied default profile")
	return nil
}
