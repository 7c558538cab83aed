package ml

import (
	"fmt"
	"math"

	"listingprice/pipeline"
)

// Regressor is a loaded, read-only price model. Implementations must be safe
// for concurrent Predict calls.
type Regressor interface {
	Name() string
	Features() pipeline.Schema
	TargetTransform() Transform
	Predict(features []float64) (float64, error)
}

// Transform is the transform applied to the target before training.
type Transform string

const (
	TransformNone  Transform = "none"
	TransformLog   Transform = "log"
	TransformLog1p Transform = "log1p"
)

// Valid reports whether t is a known transform.
func (t Transform) Valid() bool {
	switch t {
	case TransformNone, TransformLog, TransformLog1p:
		return true
	}
	return false
}

// Inverse maps a raw model output back to the target scale.
func (t Transform) Inverse(v float64) float64 {
	switch t {
	case TransformLog:
		return math.Exp(v)
	case TransformLog1p:
		return math.Expm1(v)
	default:
		return v
	}
}

// ModelLoadError is returned when an artifact is missing, unreadable or
// inconsistent. It is fatal at startup.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}
