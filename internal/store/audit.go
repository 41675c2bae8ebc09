// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

// Package store persists the audit trail of driver runs: session outcomes
// and gate block decisions, queryable after the fact with `drover status`.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	droverr "github.com/drover-dev/drover/pkg/errors"
)

// Audit actions recorded by the driver.
const (
	ActionSessionOutcome = "session.outcome"
	ActionGateDecision   = "gate.decision"
)

// AuditEntry records one security- or lifecycle-relevant event.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Action    string
	SessionID string
	Details   map[string]any
	Result    string
}

// AuditLog is an append-only SQLite-backed audit trail.
type AuditLog struct {
	db *sql.DB
}

// OpenAuditLog opens (or creates) the audit database at dbPath.
func OpenAuditLog(dbPath string) (*AuditLog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, droverr.Wrapf(err, droverr.CodeAuditOpenFailure, "opening audit db %s", dbPath)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, droverr.Wrapf(err, droverr.CodeAuditOpenFailure, "pinging audit db %s", dbPath)
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	timestamp  TEXT NOT NULL,
	action     TEXT NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	details    TEXT NOT NULL DEFAULT '{}',
	result     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_action    ON audit_log(action);
`
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, droverr.Wrapf(err, droverr.CodeAuditOpenFailure, "migrating audit db %s", dbPath)
	}

	return &AuditLog{db: db}, nil
}

// Append records one entry, assigning an ID and timestamp when unset.
func (l *AuditLog) Append(ctx context.Context, entry *AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	details := "{}"
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return droverr.Wrapf(err, droverr.CodeAuditAppendFailure, "marshalling audit details")
		}
		details = string(b)
	}

	const q = `INSERT INTO audit_log (id, timestamp, action, session_id, details, result)
VALUES (?, ?, ?, ?, ?, ?)`

	_, err := l.db.ExecContext(ctx, q,
		entry.ID, formatTime(entry.Timestamp), entry.Action, entry.SessionID, details, entry.Result,
	)
	if err != nil {
		return droverr.Wrapf(err, droverr.CodeAuditAppendFailure, "appending audit entry %s", entry.ID)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (l *AuditLog) Recent(ctx context.Context, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	const q = `SELECT id, timestamp, action, session_id, details, result
FROM audit_log ORDER BY timestamp DESC, id DESC LIMIT ?`

	rows, err := l.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, droverr.Wrapf(err, droverr.CodeAuditQueryFailure, "querying audit log")
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts, details string
		if err := rows.Scan(&e.ID, &ts, &e.Action, &e.SessionID, &details, &e.Result); err != nil {
			return nil, droverr.Wrapf(err, droverr.CodeAuditQueryFailure, "scanning audit row")
		}

		e.Timestamp, err = parseTime(ts)
		if err != nil {
			return nil, droverr.Wrapf(err, droverr.CodeAuditQueryFailure, "parsing audit timestamp %q", ts)
		}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			e.Details = map[string]any{}
		}

		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, droverr.Wrapf(err, droverr.CodeAuditQueryFailure, "iterating audit rows")
	}

	return entries, nil
}

// Close releases the underlying database handle.
func (l *AuditLog) Close() error {
	return l.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
