// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package archive records exported spans into a local SQLite database so a
// run's trace can be inspected after the fact without a collector.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Archive is a SQLite-backed span sink. It implements the OpenTelemetry
// SpanExporter interface and is registered as a second processor next to the
// real exporter.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger used to report skipped spans.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// Open creates or opens a span archive at path. The special value
// ":memory:" creates an in-memory database.
func Open(path string, opts ...Option) (*Archive, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path is required")
	}

	connStr := path
	if path != ":memory:" {
		// WAL keeps concurrent readers cheap during an export.
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to archive database: %w", err)
	}

	archive := &Archive{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(archive)
	}
	if err := archive.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive schema: %w", err)
	}
	return archive, nil
}

func (a *Archive) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS spans (
			trace_id TEXT NOT NULL,
			span_id TEXT NOT NULL,
			parent_id TEXT,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER,
			status_code INTEGER NOT NULL,
			status_message TEXT,
			attributes TEXT,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (trace_id, span_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spans_trace_id ON spans(trace_id)`,
		`CREATE INDEX IF NOT EXISTS idx_spans_start_time ON spans(start_time)`,
	}
	for _, migration := range migrations {
		if _, err := a.db.ExecContext(ctx, migration); err != nil {
			return err
		}
	}
	return nil
}

// ExportSpans records a batch of finished spans. A span that cannot be
// stored is skipped so one bad row never blocks the batch.
func (a *Archive) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		if err := a.storeSpan(ctx, span); err != nil {
			a.logger.Warn("failed to archive span",
				"span", span.Name(),
				"trace_id", span.SpanContext().TraceID().String(),
				"error", err,
			)
		}
	}
	return nil
}

// Shutdown closes the database. There is no buffering to flush.
func (a *Archive) Shutdown(ctx context.Context) error {
	return a.db.Close()
}

func (a *Archive) storeSpan(ctx context.Context, span sdktrace.ReadOnlySpan) error {
	attrs := make(map[string]string, len(span.Attributes()))
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	var parentID *string
	if span.Parent().IsValid() {
		id := span.Parent().SpanID().String()
		parentID = &id
	}

	var endTime *int64
	if !span.EndTime().IsZero() {
		et := span.EndTime().UnixNano()
		endTime = &et
	}

	status := span.Status()
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO spans (trace_id, span_id, parent_id, name, kind, start_time, end_time,
			status_code, status_message, attributes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trace_id, span_id) DO UPDATE SET
			parent_id = excluded.parent_id,
			name = excluded.name,
			kind = excluded.kind,
			end_time = excluded.end_time,
			status_code = excluded.status_code,
			status_message = excluded.status_message,
			attributes = excluded.attributes`,
		span.SpanContext().TraceID().String(),
		span.SpanContext().SpanID().String(),
		parentID,
		span.Name(),
		span.SpanKind().String(),
		span.StartTime().UnixNano(),
		endTime,
		int(status.Code),
		status.Description,
		string(attrsJSON),
		time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store span: %w", err)
	}
	return nil
}

// SpanCount reports how many spans were archived for one trace.
func (a *Archive) SpanCount(ctx context.Context, traceID string) (int, error) {
	var count int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM spans WHERE trace_id = ?`, traceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count spans: %w", err)
	}
	return count, nil
}

// TraceIDs lists the distinct traces in the archive, newest first.
func (a *Archive) TraceIDs(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT trace_id FROM spans GROUP BY trace_id ORDER BY MIN(start_time) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan trace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SpanAttributes returns the archived attribute map of one span.
func (a *Archive) SpanAttributes(ctx context.Context, traceID, spanID string) (map[string]string, error) {
	var raw string
	err := a.db.QueryRowContext(ctx,
		`SELECT attributes FROM spans WHERE trace_id = ? AND span_id = ?`,
		traceID, spanID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("load span attributes: %w", err)
	}
	attrs := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, fmt.Errorf("decode span attributes: %w", err)
	}
	return attrs, nil
}
