package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"listingprice/config"
	"listingprice/db"
	qhttp "listingprice/http"
	"listingprice/inference"
	"listingprice/ml"
	"listingprice/monitoring"
	"listingprice/pipeline"
)

var serveCmd = &cli.Command{
	Name:    "serve",
	Aliases: []string{"server"},
	Usage:   "Start the prediction HTTP server",
	Action:  cmdServe,
}

func cmdServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	metrics := monitoring.NewMetricsCollector()
	service, err := buildService(cfg, logger, metrics)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}

	var store qhttp.PredictionLog
	if cfg.Database.Path != "" {
		s, err := db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open prediction log: %w", err)
		}
		defer s.Close()
		store = s
		logger.Info("prediction log enabled", zap.String("path", cfg.Database.Path))
	}

	if cfg.Model.Watch {
		watcher, err := ml.WatchArtifact(cfg.Model.Path, logger, func(fsnotify.Event) {
			metrics.IncrCounter("model_artifact_changes_total", nil)
		})
		if err != nil {
			logger.Warn("artifact watcher disabled", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	handlers := qhttp.NewHandlers(service, store, metrics, logger)
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
	}, handlers, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case sig := <-quit:
		logger.Info("received signal", zap.String("signal", sig.String()))
	}
	return server.Stop()
}

// buildService loads the model artifact and the training dataset, derives
// the training schema and checks the model against it. Any failure here is
// fatal: the server never starts with a model it cannot serve.
func buildService(cfg *config.Config, logger *zap.Logger, metrics *monitoring.MetricsCollector) (*inference.Service, error) {
	start := time.Now()
	model, err := ml.LoadModel(cfg.Model.Type, cfg.Model.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("model loaded",
		zap.String("model", model.Name()),
		zap.String("path", cfg.Model.Path),
		zap.Int("features", len(model.Features())),
		elapsed(start))

	preparer := pipeline.NewPreparer(cfg.Dataset.Prepare)
	schema, err := trainingSchema(preparer, cfg.Dataset.Path)
	if err != nil {
		return nil, err
	}

	service, err := inference.NewService(model, schema,
		inference.WithPreparer(preparer),
		inference.WithCache(cfg.Inference.CacheSize),
		inference.WithLogger(logger))
	if err != nil {
		return nil, &ml.ModelLoadError{Path: cfg.Model.Path, Err: fmt.Errorf("model %s does not match training data: %w", model.Name(), err)}
	}

	if metrics != nil {
		metrics.SetGauge("model_features", float64(len(service.Features())), map[string]string{"model": model.Name()})
	}
	logger.Info("inference service ready", zap.Strings("categorical", service.Catalog().Fields()), elapsed(start))
	return service, nil
}

func trainingSchema(preparer *pipeline.Preparer, path string) (pipeline.Schema, error) {
	table, err := pipeline.LoadCSV(path)
	if err != nil {
		return nil, fmt.Errorf("load training data: %w", err)
	}
	frame, err := preparer.Prepare(table)
	if err != nil {
		return nil, fmt.Errorf("prepare training data: %w", err)
	}
	return frame.Schema(), nil
}
