// Package sqldriver implements storage.Driver over database/sql. The sqlite
// and postgres packages open the connection and embed a Driver.
package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/switchboard/pkg/storage"
)

// Dialect captures the differences between the supported databases.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		target_id  TEXT NOT NULL,
		input      TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS run_events (
		run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq         BIGINT NOT NULL,
		type        TEXT NOT NULL,
		payload     TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at)`,
}

// Driver provides run storage operations using a *sql.DB.
type Driver struct {
	DB      *sql.DB
	dialect Dialect
}

// New wraps db and creates the schema if needed.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Driver, error) {
	d := &Driver{DB: db, dialect: dialect}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return d, nil
}

// rebind rewrites '?' placeholders for dialects that number them.
func (d *Driver) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *Driver) insertIgnore() string {
	if d.dialect == Postgres {
		return "INSERT INTO runs (id, kind, target_id, input, started_at) VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING"
	}
	return "INSERT OR IGNORE INTO runs (id, kind, target_id, input, started_at) VALUES (?, ?, ?, ?, ?)"
}

// PutRun stores a run. Existing runs are left untouched.
func (d *Driver) PutRun(ctx context.Context, run *storage.Run) error {
	if run == nil {
		return errors.New("cannot store nil run")
	}
	if run.ID == "" {
		return errors.New("cannot store run without id")
	}

	_, err := d.DB.ExecContext(ctx, d.rebind(d.insertIgnore()),
		run.ID, string(run.Kind), run.TargetID, run.Input, run.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// AppendEvent stores one event of an existing run.
func (d *Driver) AppendEvent(ctx context.Context, ev *storage.RecordedEvent) error {
	if ev == nil {
		return errors.New("cannot store nil event")
	}

	if _, err := d.GetRun(ctx, ev.RunID); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}

	payload := string(ev.Payload)
	if payload == "" {
		payload = "{}"
	}

	_, err := d.DB.ExecContext(ctx,
		d.rebind("INSERT INTO run_events (run_id, seq, type, payload, recorded_at) VALUES (?, ?, ?, ?, ?)"),
		ev.RunID, ev.Seq, ev.Type, payload, ev.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (d *Driver) GetRun(ctx context.Context, id string) (*storage.Run, error) {
	row := d.DB.QueryRowContext(ctx,
		d.rebind("SELECT id, kind, target_id, input, started_at FROM runs WHERE id = ?"), id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs, most recent first.
func (d *Driver) ListRuns(ctx context.Context, limit int) ([]*storage.Run, error) {
	query := "SELECT id, kind, target_id, input, started_at FROM runs ORDER BY started_at DESC, id ASC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.DB.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*storage.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Events returns the events of a run ordered by sequence number.
func (d *Driver) Events(ctx context.Context, runID string) ([]*storage.RecordedEvent, error) {
	if _, err := d.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := d.DB.QueryContext(ctx,
		d.rebind("SELECT run_id, seq, type, payload, recorded_at FROM run_events WHERE run_id = ? ORDER BY seq ASC"),
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []*storage.RecordedEvent
	for rows.Next() {
		var (
			ev         storage.RecordedEvent
			payload    string
			recordedAt time.Time
		)
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ev.Type, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Payload = []byte(payload)
		ev.RecordedAt = recordedAt.UTC()
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*storage.Run, error) {
	var (
		run       storage.Run
		kind      string
		startedAt time.Time
	)
	if err := s.Scan(&run.ID, &kind, &run.TargetID, &run.Input, &startedAt); err != nil {
		return nil, err
	}
	run.Kind = storage.RunKind(kind)
	run.StartedAt = startedAt.UTC()
	return &run, nil
}
