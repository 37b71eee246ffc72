// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package storage persists the gesture reference and the session log.
package storage

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

// fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by LoadBlob for an address that was never written.
var ErrNotFound = errors.New("storage: no blob at address")

//go:embed schema.sql
var schemaSQL string

// SQLiteStore is a blob store keyed by address, plus a log of acquisition
// sessions.
type SQLiteStore struct {
	*sql.DB
}

// Open opens (or creates) the database at path. Use ":memory:" in tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	log.Printf("storage: opened %s", path)
	return &SQLiteStore{db}, nil
}

// StoreBlob replaces whatever is stored at address with data.
func (s *SQLiteStore) StoreBlob(address uint32, data []byte) error {
	_, err := s.Exec(`
		INSERT INTO blobs (address, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(address) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, int64(address), data)
	if err != nil {
		return fmt.Errorf("storage: store blob 0x%08x: %w", address, err)
	}
	return nil
}

// LoadBlob returns up to length bytes from the blob at address.
func (s *SQLiteStore) LoadBlob(address uint32, length int) ([]byte, error) {
	var data []byte
	err := s.QueryRow(`SELECT data FROM blobs WHERE address = ?`, int64(address)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load blob 0x%08x: %w", address, err)
	}
	if length >= 0 && length < len(data) {
		data = data[:length]
	}
	return data, nil
}

// SessionRecord is one finished acquisition session.
type SessionRecord struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	Samples   int           `json:"samples"`
	Outcome   string        `json:"outcome"`
	Strategy  string        `json:"strategy,omitempty"`
	Axes      [3]float64    `json:"axes"`
	Distance  float64       `json:"distance,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// RecordSession appends rec to the session log.
func (s *SQLiteStore) RecordSession(rec SessionRecord) error {
	_, err := s.Exec(`
		INSERT INTO sessions (session_id, kind, samples, outcome, strategy, corr_x, corr_y, corr_z, distance, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Kind, rec.Samples, rec.Outcome, rec.Strategy,
		nullFloat(rec.Axes[0]), nullFloat(rec.Axes[1]), nullFloat(rec.Axes[2]), rec.Distance,
		rec.StartedAt.UTC().Format(timeLayout), rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("storage: record session %s: %w", rec.ID, err)
	}
	return nil
}

// RecentSessions returns up to limit sessions, newest first.
func (s *SQLiteStore) RecentSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.Query(`
		SELECT session_id, kind, samples, outcome, COALESCE(strategy, ''),
		       corr_x, corr_y, corr_z, COALESCE(distance, 0), started_at, duration_ms
		FROM sessions ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			rec     SessionRecord
			axes    [3]sql.NullFloat64
			started string
			ms      int64
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Samples, &rec.Outcome, &rec.Strategy,
			&axes[0], &axes[1], &axes[2], &rec.Distance, &started, &ms); err != nil {
			return nil, fmt.Errorf("storage: scan session: %w", err)
		}
		for i, a := range axes {
			rec.Axes[i] = a.Float64
		}
		rec.StartedAt, err = time.Parse(timeLayout, started)
		if err != nil {
			return nil, fmt.Errorf("storage: session %s start time: %w", rec.ID, err)
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// NaN coefficients (constant input) are stored as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}
