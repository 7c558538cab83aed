package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"listingprice/listing"
)

// Store is the SQLite prediction log.
type Store struct {
	database *sql.DB
}

// Prediction is one logged estimate.
type Prediction struct {
	ID             int64          `json:"id"`
	RequestID      string         `json:"request_id"`
	Record         listing.Record `json:"record"`
	PredictedPrice float64        `json:"predicted_price"`
	ModelName      string         `json:"model_name"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	database, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	database.SetMaxOpenConns(4)
	database.SetConnMaxLifetime(time.Hour)

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        request_id TEXT NOT NULL,
        record TEXT NOT NULL,
        neighbourhood_group TEXT NOT NULL,
        room_type TEXT NOT NULL,
        predicted_price REAL NOT NULL,
        model_name TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions (created_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, err
	}
	return &Store{database: database}, nil
}

func (s *Store) Close() error {
	return s.database.Close()
}

// SavePrediction appends one estimate to the log.
func (s *Store) SavePrediction(ctx context.Context, p Prediction) (int64, error) {
	record, err := json.Marshal(p.Record)
	if err != nil {
		return 0, err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := s.database.ExecContext(ctx, `
        INSERT INTO predictions (
            request_id, record, neighbourhood_group, room_type,
            predicted_price, model_name, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.RequestID,
		string(record),
		p.Record.NeighbourhoodGroup,
		p.Record.RoomType,
		p.PredictedPrice,
		p.ModelName,
		p.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.database.QueryContext(ctx, `
        SELECT id, request_id, record, predicted_price, model_name, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]Prediction, 0)
	for rows.Next() {
		var p Prediction
		var record string
		if err := rows.Scan(&p.ID, &p.RequestID, &record, &p.PredictedPrice, &p.ModelName, &p.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(record), &p.Record); err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

// PriceSummary aggregates logged estimates per neighbourhood group.
type PriceSummary struct {
	NeighbourhoodGroup string  `json:"neighbourhood_group"`
	Count              int     `json:"count"`
	AveragePrice       float64 `json:"average_price"`
	MinPrice           float64 `json:"min_price"`
	MaxPrice           float64 `json:"max_price"`
}

// SummarizeByGroup returns per-group statistics of logged estimates.
func (s *Store) SummarizeByGroup(ctx context.Context) ([]PriceSummary, error) {
	rows, err := s.database.QueryContext(ctx, `
        SELECT neighbourhood_group, COUNT(*), AVG(predicted_price),
               MIN(predicted_price), MAX(predicted_price)
        FROM predictions
        GROUP BY neighbourhood_group
        ORDER BY neighbourhood_group`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]PriceSummary, 0)
	for rows.Next() {
		var ps PriceSummary
		if err := rows.Scan(&ps.NeighbourhoodGroup, &ps.Count, &ps.AveragePrice, &ps.MinPrice, &ps.MaxPrice); err != nil {
			return nil, err
		}
		summaries = append(summaries, ps)
	}
	return summaries, rows.Err()
}
