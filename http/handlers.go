package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"listingprice/db"
	"listingprice/inference"
	"listingprice/listing"
	"listingprice/monitoring"
	"listingprice/pipeline"
)

// Predictor scores candidate listings.
type Predictor interface {
	Predict(ctx context.Context, record listing.Record) (inference.Estimate, error)
	Catalog() pipeline.Catalog
	ModelName() string
}

// PredictionLog persists served estimates.
type PredictionLog interface {
	SavePrediction(ctx context.Context, p db.Prediction) (int64, error)
	RecentPredictions(ctx context.Context, limit int) ([]db.Prediction, error)
	SummarizeByGroup(ctx context.Context) ([]db.PriceSummary, error)
}

// Handlers holds the dependencies shared by every route.
type Handlers struct {
	predictor Predictor
	store     PredictionLog
	metrics   *monitoring.MetricsCollector
	logger    *zap.Logger
}

// NewHandlers wires the handlers. store may be nil, in which case
// predictions are not logged.
func NewHandlers(predictor Predictor, store PredictionLog, metrics *monitoring.MetricsCollector, logger *zap.Logger) *Handlers {
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{predictor: predictor, store: store, metrics: metrics, logger: logger}
}

// Register adds every route to mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /{$}", h.handlePredict)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/categories", h.handleCategories)
	mux.HandleFunc("GET /api/predictions", h.handlePredictions)
	mux.HandleFunc("GET /api/predictions/summary", h.handlePredictionSummary)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
}

type errorResponse struct {
	Error    string                  `json:"error"`
	Field    string                  `json:"field,omitempty"`
	Value    string                  `json:"value,omitempty"`
	Problems []*inference.FieldError `json:"problems,omitempty"`
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	record, err := decodeRecord(r)
	if err == nil {
		var est inference.Estimate
		est, err = h.predictor.Predict(r.Context(), record)
		if err == nil {
			h.metrics.ObserveDuration("predict_seconds", time.Since(start), nil)
			h.metrics.IncrCounter("predictions_total", map[string]string{"outcome": "ok"})
			h.logPrediction(r.Context(), record, est)
			respondJSON(w, http.StatusOK, map[string]float64{"predicted_price": est.Price})
			return
		}
	}

	status, body, outcome := classifyError(err)
	h.metrics.IncrCounter("predictions_total", map[string]string{"outcome": outcome})
	if status >= http.StatusInternalServerError {
		h.logger.Error("prediction failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
	} else {
		h.logger.Info("prediction rejected", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
	}
	respondJSON(w, status, body)
}

func classifyError(err error) (int, errorResponse, string) {
	var (
		verr    *inference.ValidationError
		unknown *pipeline.UnknownCategoryError
		conv    *pipeline.TypeConversionError
		date    *pipeline.DateParseError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorResponse{Error: verr.Error(), Problems: verr.Problems}, "invalid"
	case errors.As(err, &unknown):
		return http.StatusBadRequest, errorResponse{Error: unknown.Error(), Field: unknown.Field, Value: unknown.Value}, "unknown_category"
	case errors.As(err, &conv):
		return http.StatusBadRequest, errorResponse{Error: conv.Error(), Field: conv.Column, Value: conv.Value}, "invalid"
	case errors.As(err, &date):
		return http.StatusBadRequest, errorResponse{Error: date.Error(), Field: date.Column, Value: date.Value}, "invalid"
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()}, "too_large"
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}, "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorResponse{Error: "request cancelled"}, "cancelled"
	default:
		return http.StatusInternalServerError, errorResponse{Error: "model error"}, "model_error"
	}
}

func (h *Handlers) logPrediction(ctx context.Context, record listing.Record, est inference.Estimate) {
	if h.store == nil {
		return
	}
	_, err := h.store.SavePrediction(ctx, db.Prediction{
		RequestID:      GetRequestID(ctx),
		Record:         record,
		PredictedPrice: est.Price,
		ModelName:      est.Model,
	})
	if err != nil {
		h.logger.Warn("failed to log prediction", zap.Error(err))
	}
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  h.predictor.ModelName(),
	})
}

func (h *Handlers) handleCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.predictor.Catalog())
}

func (h *Handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "prediction log disabled"})
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer", Field: "limit", Value: limitStr})
			return
		}
		limit = l
	}

	predictions, err := h.store.RecentPredictions(r.Context(), limit)
	if err != nil {
		h.logger.Error("query predictions", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "query failed"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"data": predictions})
}

func (h *Handlers) handlePredictionSummary(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "prediction log disabled"})
		return
	}
	summary, err := h.store.SummarizeByGroup(r.Context())
	if err != nil {
		h.logger.Error("summarize predictions", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "query failed"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"data": summary})
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "prometheus" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(h.metrics.ExportPrometheus()))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"metrics": h.metrics.Snapshot(),
		"system":  h.metrics.GetSystemStats(),
	})
}

// respondJSON writes data as JSON with the given status.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
