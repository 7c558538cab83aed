// Package inference scores candidate listings against a loaded price model.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"listingprice/listing"
	"listingprice/ml"
	"listingprice/pipeline"
)

// ErrPrediction wraps failures inside the model itself.
var ErrPrediction = errors.New("prediction failed")

// Estimate is a decoded price prediction.
type Estimate struct {
	Price float64 `json:"predicted_price"`
	Raw   float64 `json:"raw_output"`
	Model string  `json:"model"`
}

// Service is the immutable prediction path. It is built once at startup and
// shared by every request.
type Service struct {
	model    ml.Regressor
	preparer *pipeline.Preparer
	schema   pipeline.Schema
	input    pipeline.Schema
	rules    []ValidationRule
	cache    *lru.Cache[string, Estimate]
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithCache memoises up to size estimates. Zero disables the cache.
func WithCache(size int) Option {
	return func(s *Service) error {
		if size <= 0 {
			s.cache = nil
			return nil
		}
		cache, err := lru.New[string, Estimate](size)
		if err != nil {
			return err
		}
		s.cache = cache
		return nil
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithPreparer overrides the preparer used to conform candidates.
func WithPreparer(p *pipeline.Preparer) Option {
	return func(s *Service) error {
		s.preparer = p
		return nil
	}
}

// NewService checks that every feature the model declares exists in the
// training schema with the same kind and category set, then builds the
// service. A mismatch is a *pipeline.SchemaMismatchError.
func NewService(model ml.Regressor, schema pipeline.Schema, opts ...Option) (*Service, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	s := &Service{
		model:    model,
		preparer: pipeline.NewPreparer(pipeline.DefaultOptions()),
		schema:   schema,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	input, err := inputSchema(model.Features(), schema, s.preparer.TargetColumn())
	if err != nil {
		return nil, err
	}
	s.input = input

	_, hasLat := input.Field(listing.ColLatitude)
	_, hasLon := input.Field(listing.ColLongitude)
	s.rules = DefaultRules(hasLat || hasLon)
	return s, nil
}

// inputSchema resolves the model's features against the training schema, in
// model order.
func inputSchema(features, training pipeline.Schema, target string) (pipeline.Schema, error) {
	var problems []string
	input := make(pipeline.Schema, 0, len(features))
	for _, f := range features {
		if f.Name == target {
			problems = append(problems, fmt.Sprintf("model uses target column %q as a feature", f.Name))
			continue
		}
		trained, ok := training.Field(f.Name)
		if !ok {
			problems = append(problems, fmt.Sprintf("model feature %q not in training data", f.Name))
			continue
		}
		if f.Kind.Numeric() && trained.Kind.Numeric() {
			// the artifact's declared kind decides how request values parse
			trained.Kind = f.Kind
			input = append(input, trained)
			continue
		}
		if diff := (pipeline.Schema{f}).Diff(pipeline.Schema{trained}); len(diff) > 0 {
			problems = append(problems, diff...)
			continue
		}
		input = append(input, trained)
	}
	if len(problems) > 0 {
		return nil, &pipeline.SchemaMismatchError{Problems: problems}
	}
	return input, nil
}

// ModelName returns the loaded model's name.
func (s *Service) ModelName() string {
	return s.model.Name()
}

// Catalog returns the categorical label sets candidates are checked against.
func (s *Service) Catalog() pipeline.Catalog {
	return s.input.Catalog()
}

// Features returns the model input schema in model order.
func (s *Service) Features() pipeline.Schema {
	out := make(pipeline.Schema, len(s.input))
	copy(out, s.input)
	return out
}

// Predict validates a candidate, conforms it to the training schema, scores
// it and decodes the result. Errors are a *ValidationError, a
// *pipeline.UnknownCategoryError, or wrap ErrPrediction.
func (s *Service) Predict(ctx context.Context, record listing.Record) (Estimate, error) {
	if err := ctx.Err(); err != nil {
		return Estimate{}, err
	}
	if err := Validate(record, s.rules); err != nil {
		return Estimate{}, err
	}

	key := record.Key()
	if s.cache != nil {
		if est, ok := s.cache.Get(key); ok {
			return est, nil
		}
	}

	frame, err := s.preparer.Conform(pipeline.NewTable(record.Columns(), record.Row()), s.input)
	if err != nil {
		return Estimate{}, err
	}
	ests, err := s.score(frame)
	if err != nil {
		return Estimate{}, err
	}

	if s.cache != nil {
		s.cache.Add(key, ests[0])
	}
	return ests[0], nil
}

// PredictTable scores every row of a raw table. Each row is validated like
// a single candidate, then the table is conformed as a whole; any bad row or
// cell fails the batch before the model runs.
func (s *Service) PredictTable(ctx context.Context, table *pipeline.Table) ([]Estimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validateTable(table); err != nil {
		return nil, err
	}
	frame, err := s.preparer.Conform(table, s.input)
	if err != nil {
		return nil, err
	}
	return s.score(frame)
}

func (s *Service) score(frame *pipeline.Frame) ([]Estimate, error) {
	columns := make([]*pipeline.Column, len(s.input))
	for i, f := range s.input {
		col, ok := frame.Column(f.Name)
		if !ok {
			return nil, &pipeline.SchemaMismatchError{Problems: []string{fmt.Sprintf("missing column %q", f.Name)}}
		}
		columns[i] = col
	}

	transform := s.model.TargetTransform()
	ests := make([]Estimate, frame.Len())
	vector := make([]float64, len(columns))
	for row := 0; row < frame.Len(); row++ {
		for i, col := range columns {
			vector[i] = col.Float(row)
		}
		raw, err := s.model.Predict(vector)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPrediction, err)
		}
		price := transform.Inverse(raw)
		if math.IsNaN(price) || math.IsInf(price, 0) {
			return nil, fmt.Errorf("%w: decoded price is not finite", ErrPrediction)
		}
		if price < 0 {
			s.logger.Warn("negative price clamped to zero",
				zap.String("model", s.model.Name()),
				zap.Float64("raw", raw))
			price = 0
		}
		ests[row] = Estimate{Price: roundCents(price), Raw: raw, Model: s.model.Name()}
	}
	return ests, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
