// Package buffer implements the store-and-forward FIFO that decouples
// Modbus acquisition from delivery: samples are durably enqueued on-disk
// and drained in batches once the downstream bus accepts them.
package buffer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"go.sunspec.dev/internal/common/metrics"
)

// Message is one persisted row: BufferedMessage from spec.md §3.
type Message struct {
	ID      int64
	Topic   string
	Payload []byte
}

// Store is a durable FIFO on top of an embedded, file-backed SQLite
// database. It MUST survive process crash: a row that has been enqueued
// and not yet deleted remains available on reopen.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path, enabling WAL journaling and
// NORMAL sync (durable but performant), and creates the schema if absent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("buffer: open: %w", err)
	}

	// A small connection pool: SQLite serializes writers internally, so a
	// handful of connections is plenty for concurrent ingest + drain.
	db.SetMaxOpenConns(4)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("buffer: set journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous = NORMAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("buffer: set synchronous: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS telemetry_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic TEXT NOT NULL,
	payload BLOB NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_telemetry_queue_created_at_ms ON telemetry_queue(created_at_ms);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("buffer: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Enqueue appends one row with created_at_ms set to now.
func (s *Store) Enqueue(ctx context.Context, topic string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO telemetry_queue (topic, payload, created_at_ms) VALUES (?, ?, ?)`,
		topic, payload, time.Now().UnixMilli(),
	)
	if err != nil {
		metrics.BufferErrors.WithLabelValues("enqueue").Inc()
		return fmt.Errorf("buffer: enqueue: %w", err)
	}
	metrics.BufferEnqueued.Inc()
	return nil
}

// DequeueBatch returns up to limit rows in ascending id order, without
// removing them.
func (s *Store) DequeueBatch(ctx context.Context, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, payload FROM telemetry_queue ORDER BY id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		metrics.BufferErrors.WithLabelValues("dequeue").Inc()
		return nil, fmt.Errorf("buffer: dequeue_batch: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload); err != nil {
			metrics.BufferErrors.WithLabelValues("dequeue").Inc()
			return nil, fmt.Errorf("buffer: dequeue_batch scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		metrics.BufferErrors.WithLabelValues("dequeue").Inc()
		return nil, fmt.Errorf("buffer: dequeue_batch: %w", err)
	}
	return messages, nil
}

// DeleteBatch removes exactly the rows listed; an empty list is a no-op.
func (s *Store) DeleteBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM telemetry_queue WHERE id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		metrics.BufferErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("buffer: delete_batch: %w", err)
	}
	metrics.BufferDeleted.Add(float64(len(ids)))
	return nil
}

// PendingCount returns the number of rows currently awaiting delivery.
func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM telemetry_queue`).Scan(&count)
	if err != nil {
		metrics.BufferErrors.WithLabelValues("pending_count").Inc()
		return 0, fmt.Errorf("buffer: pending_count: %w", err)
	}
	metrics.BufferPendingRows.Set(float64(count))
	return count, nil
}
