// Package store persists ingested feed data to SQLite. It exists for
// callers that want the stream on disk as it arrives: wire a Recorder
// into the session Handlers and every batch and summary is written
// transactionally as it is dispatched.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lguimbarda/riskstream/ingest/record"
)

const schema = `
CREATE TABLE IF NOT EXISTS patients (
	run_id         TEXT    NOT NULL,
	patient_id     INTEGER NOT NULL,
	name           TEXT    NOT NULL,
	risk_level     TEXT    NOT NULL,
	risk_score     INTEGER NOT NULL,
	heat_wave_risk INTEGER NOT NULL,
	item           TEXT    NOT NULL,
	ingested_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_patients_run ON patients(run_id);

CREATE TABLE IF NOT EXISTS summaries (
	run_id          TEXT PRIMARY KEY,
	total_processed INTEGER NOT NULL,
	low             INTEGER NOT NULL,
	medium          INTEGER NOT NULL,
	high            INTEGER NOT NULL,
	ingested_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store wraps a SQLite database holding ingested patient-risk rows and
// session summaries.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBatch writes one batch of items for the given run in a single
// transaction. The full item is kept as JSON alongside the extracted
// columns, so fields this library does not model are not lost.
func (s *Store) SaveBatch(ctx context.Context, runID string, items []record.Patient) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patients (run_id, patient_id, name, risk_level, risk_score, heat_wave_risk, item)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	defer stmt.Close()

	for _, p := range items {
		item, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("save batch: encode item: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, p.ID(), p.Name(), p.RiskLevel(), p.RiskScore(), p.HeatWaveRisk(), string(item)); err != nil {
			return fmt.Errorf("save batch: %w", err)
		}
	}

	return tx.Commit()
}

// SaveSummary records the terminal summary for a run.
func (s *Store) SaveSummary(ctx context.Context, runID string, summary record.Summary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO summaries (run_id, total_processed, low, medium, high)
		VALUES (?, ?, ?, ?, ?)`,
		runID,
		summary.TotalProcessed,
		summary.RiskDistribution.Low,
		summary.RiskDistribution.Medium,
		summary.RiskDistribution.High)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// PatientCount returns the number of items stored for a run.
func (s *Store) PatientCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM patients WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return n, nil
}

// Distribution tallies the stored risk levels for a run.
func (s *Store) Distribution(ctx context.Context, runID string) (record.Distribution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT risk_level, COUNT(*) FROM patients WHERE run_id = ? GROUP BY risk_level`, runID)
	if err != nil {
		return record.Distribution{}, fmt.Errorf("distribution: %w", err)
	}
	defer rows.Close()

	var dist record.Distribution
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return record.Distribution{}, fmt.Errorf("distribution: %w", err)
		}
		switch level {
		case "low":
			dist.Low = n
		case "medium":
			dist.Medium = n
		case "high":
			dist.High = n
		}
	}
	if err := rows.Err(); err != nil {
		return record.Distribution{}, fmt.Errorf("distribution: %w", err)
	}
	return dist, nil
}

// Summary returns the stored summary for a run, if any.
func (s *Store) Summary(ctx context.Context, runID string) (record.Summary, bool, error) {
	var summary record.Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT total_processed, low, medium, high FROM summaries WHERE run_id = ?`, runID).
		Scan(&summary.TotalProcessed,
			&summary.RiskDistribution.Low,
			&summary.RiskDistribution.Medium,
			&summary.RiskDistribution.High)
	if err == sql.ErrNoRows {
		return record.Summary{}, false, nil
	}
	if err != nil {
		return record.Summary{}, false, fmt.Errorf("load summary: %w", err)
	}
	return summary, true, nil
}
