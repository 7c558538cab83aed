package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"listingprice/config"
	"listingprice/logging"
)

const defaultConfigPath = "config.yaml"

var (
	version = "v0.0.1-default"

	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to the YAML config file (optional, defaults to ./config.yaml when present)",
	}

	modelFlag = &cli.StringFlag{
		Name:  "model",
		Usage: "Path to the model artifact, overrides model.path",
	}

	datasetFlag = &cli.StringFlag{
		Name:  "dataset",
		Usage: "Path to the training dataset, overrides dataset.path",
	}
)

func main() {
	app := &cli.Command{
		Name:    "listingprice",
		Version: version,
		Usage:   "Nightly price estimates for short-term rental listings",
		Flags: []cli.Flag{
			configFlag,
			modelFlag,
			datasetFlag,
		},
		Commands: []*cli.Command{
			serveCmd,
			prepareCmd,
			predictCmd,
		},
		Action: cmdServe,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config, falling back to
// ./config.yaml and then to the built-in defaults. Path flags override the
// file.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String(configFlag.Name)
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	var cfg *config.Config
	if _, err := os.Stat(path); err == nil || explicit {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else {
		return nil, err
	}

	if v := cmd.String(modelFlag.Name); v != "" {
		cfg.Model.Path = v
	}
	if v := cmd.String(datasetFlag.Name); v != "" {
		cfg.Dataset.Path = v
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger.With(zap.String("version", version)), nil
}

func elapsed(start time.Time) zap.Field {
	return zap.Duration("elapsed", time.Since(start))
}
