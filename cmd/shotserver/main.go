package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuesight/cuesight-app/billiard"
	"github.com/cuesight/cuesight-app/config"
	"github.com/cuesight/cuesight-app/inference"
	"github.com/cuesight/cuesight-app/pipeline"
	"github.com/cuesight/cuesight-app/server"
	"github.com/cuesight/cuesight-app/store"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.LogLevel)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("unable to open store: %s", err)
	}
	defer st.Close()

	var detector pipeline.Detector
	if cfg.RemoteDetection() {
		client := inference.NewRoboflow(inference.RoboflowConfig{
			URL:        cfg.RoboflowURL,
			APIKey:     cfg.RoboflowAPIKey,
			Model:      cfg.RoboflowModel,
			Version:    cfg.RoboflowVersion,
			Confidence: cfg.RoboflowConfidence,
			Overlap:    cfg.RoboflowOverlap,
			Timeout:    cfg.RoboflowTimeout,
		})
		detector = pipeline.NewRemote(client, billiard.ColorMatcher{Aliases: cfg.RoboflowClassMap}, logger)
	} else {
		detector = pipeline.NewClassical(pipeline.DefaultConfig(), logger)
	}
	logger.WithField("detector", detector.Name()).Info("detector selected")

	s := server.Server{
		Addr:              cfg.Addr,
		Store:             st,
		Detector:          detector,
		Matcher:           billiard.ColorMatcher{Aliases: cfg.RoboflowClassMap},
		Logger:            logger,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		AllowedExtensions: cfg.AllowedExtensions,
		StreamMaxWidth:    cfg.StreamMaxWidth,
		StreamMaxHeight:   cfg.StreamMaxHeight,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Run(ctx); err != nil {
		logger.Errorf("server stopped: %s", err)
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "bbolt":
		return store.OpenBBolt(cfg.StorePath, 0666, nil)
	case "badger":
		return store.OpenBadgerPath(cfg.StorePath)
	case "memory":
		return store.OpenBadgerPath("")
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
