// SPDX-License-Identifier: MIT

// Package history persists per-agent score history to SQLite. The engine's
// in-memory history is append-only and uncapped; the archive gives operators
// a queryable copy they can compact or export without touching the engine.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver
)

const schema = `
CREATE TABLE IF NOT EXISTS score_history (
	agent_id TEXT NOT NULL,
	ts       INTEGER NOT NULL,
	score    REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_score_history_agent ON score_history (agent_id, ts);
`

// Archive is a SQLite-backed score-history sink.
type Archive struct {
	db *sql.DB
}

// Open initializes the archive database with WAL mode and busy timeout
// applied to every pooled connection via DSN pragmas.
func Open(dbPath string) (*Archive, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open failed: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: schema failed: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the database.
func (a *Archive) Close() error { return a.db.Close() }

// Append records one scoring sample for an agent.
func (a *Archive) Append(agentID string, ts time.Time, score float64) error {
	_, err := a.db.Exec(
		`INSERT INTO score_history (agent_id, ts, score) VALUES (?, ?, ?)`,
		agentID, ts.UnixMilli(), score,
	)
	if err != nil {
		return fmt.Errorf("history: insert failed: %w", err)
	}
	return nil
}

// Sample is one archived scoring sample.
type Sample struct {
	Timestamp time.Time
	Score     float64
}

// Samples returns the archived history for one agent in chronological order.
func (a *Archive) Samples(agentID string) ([]Sample, error) {
	rows, err := a.db.Query(
		`SELECT ts, score FROM score_history WHERE agent_id = ? ORDER BY ts ASC`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Sample
	for rows.Next() {
		var ms int64
		var score float64
		if err := rows.Scan(&ms, &score); err != nil {
			return nil, fmt.Errorf("history: scan failed: %w", err)
		}
		out = append(out, Sample{Timestamp: time.UnixMilli(ms).UTC(), Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows failed: %w", err)
	}
	return out, nil
}

// Prune deletes samples older than the cutoff, returning the rows removed.
// Compaction is operator-driven; the engine never calls this.
func (a *Archive) Prune(cutoff time.Time) (int64, error) {
	res, err := a.db.Exec(`DELETE FROM score_history WHERE ts < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("history: prune failed: %w", err)
	}
	return res.RowsAffected()
}
