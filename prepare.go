package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"listingprice/pipeline"
)

var (
	inputFlag = &cli.StringFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "Raw listings CSV",
		Required: true,
	}

	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Prepared CSV destination (optional, defaults to stdout)",
	}

	catalogFlag = &cli.StringFlag{
		Name:  "catalog",
		Usage: "Write the categorical label sets as JSON to this path (optional)",
	}

	prepareCmd = &cli.Command{
		Name:   "prepare",
		Usage:  "Transform a raw listings CSV into the model-ready schema",
		Action: cmdPrepare,
		Flags: []cli.Flag{
			inputFlag,
			outputFlag,
			catalogFlag,
		},
	}
)

func cmdPrepare(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	out := io.Writer(os.Stdout)
	if path := cmd.String(outputFlag.Name); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	frame, err := runPrepare(pipeline.NewPreparer(cfg.Dataset.Prepare), cmd.String(inputFlag.Name), out, cmd.String(catalogFlag.Name))
	if err != nil {
		return err
	}
	logger.Info("dataset prepared",
		zap.String("input", cmd.String(inputFlag.Name)),
		zap.Int("rows", frame.Len()),
		zap.Strings("columns", frame.Names()))
	return nil
}

// runPrepare prepares the CSV at input, writes the frame to out and, when
// catalogPath is set, the category catalog next to it.
func runPrepare(preparer *pipeline.Preparer, input string, out io.Writer, catalogPath string) (*pipeline.Frame, error) {
	table, err := pipeline.LoadCSV(input)
	if err != nil {
		return nil, err
	}
	frame, err := preparer.Prepare(table)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", input, err)
	}
	if err := frame.WriteCSV(out); err != nil {
		return nil, fmt.Errorf("write prepared data: %w", err)
	}
	if catalogPath != "" {
		if err := writeJSON(catalogPath, frame.Schema().Catalog()); err != nil {
			return nil, fmt.Errorf("write catalog: %w", err)
		}
	}
	return frame, nil
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
