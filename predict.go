package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"listingprice/inference"
	"listingprice/listing"
	"listingprice/pipeline"
)

var (
	recordFlag = &cli.StringFlag{
		Name:  "record",
		Usage: "Single listing as a JSON object",
	}

	csvFlag = &cli.StringFlag{
		Name:  "input",
		Usage: "CSV of raw listings to score",
	}

	predictCmd = &cli.Command{
		Name:   "predict",
		Usage:  "Score listings offline with the configured model",
		Action: cmdPredict,
		Flags: []cli.Flag{
			recordFlag,
			csvFlag,
		},
	}
)

func cmdPredict(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	service, err := buildService(cfg, logger, nil)
	if err != nil {
		return err
	}
	return runPredict(ctx, service, cmd.String(recordFlag.Name), cmd.String(csvFlag.Name), os.Stdout)
}

// runPredict scores either one JSON record or every row of a CSV file and
// writes one JSON estimate per line.
func runPredict(ctx context.Context, service *inference.Service, record, input string, out io.Writer) error {
	enc := json.NewEncoder(out)
	switch {
	case record != "" && input != "":
		return errors.New("use either --record or --input, not both")
	case record != "":
		var r listing.Record
		dec := json.NewDecoder(strings.NewReader(record))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		est, err := service.Predict(ctx, r)
		if err != nil {
			return err
		}
		return enc.Encode(est)
	case input != "":
		table, err := pipeline.LoadCSV(input)
		if err != nil {
			return err
		}
		estimates, err := service.PredictTable(ctx, table)
		if err != nil {
			return fmt.Errorf("score %s: %w", input, err)
		}
		for _, est := range estimates {
			if err := enc.Encode(est); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.New("one of --record or --input is required")
	}
}
