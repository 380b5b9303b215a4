// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aicollab-project/platform/protoerr"
)

// QueueStatus is an offline-queued message's delivery state.
type QueueStatus string

const (
	QueuePending   QueueStatus = "pending"
	QueueDelivered QueueStatus = "delivered"
	QueueFailed    QueueStatus = "failed"
)

// QueuedMessage is one row of the offline message queue, retried until
// delivered or abandoned.
type QueuedMessage struct {
	ID          int64
	RecipientID string
	Payload     []byte
	Status      QueueStatus
	Attempts    int
	NextRetryAt time.Time
	CreatedAt   time.Time
}

// OfflineQueue persists undeliverable messages to a SQLite database,
// indexed for the two access patterns spec.md calls out:
// (recipient_id, status) for per-recipient drains, and
// (next_retry_at, status) for the retry sweeper.
type OfflineQueue struct {
	db *sql.DB
}

// OpenOfflineQueue opens (creating if necessary) the SQLite database at path.
func OpenOfflineQueue(path string) (*OfflineQueue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.PersistenceError, "open offline queue", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY

	q := &OfflineQueue{db: db}
	if err := q.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return q, nil
}

func (q *OfflineQueue) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS offline_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recipient_id TEXT NOT NULL,
	payload BLOB NOT NULL,
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	next_retry_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recipient_status ON offline_queue (recipient_id, status);
CREATE INDEX IF NOT EXISTS idx_retry_status ON offline_queue (next_retry_at, status);
`
	if _, err := q.db.Exec(schema); err != nil {
		return protoerr.Wrap(protoerr.PersistenceError, "migrate offline queue schema", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (q *OfflineQueue) Close() error { return q.db.Close() }

// Enqueue inserts a pending message for recipientID, retryable immediately.
func (q *OfflineQueue) Enqueue(ctx context.Context, recipientID string, payload []byte) (int64, error) {
	now := time.Now()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO offline_queue (recipient_id, payload, status, attempts, next_retry_at, created_at)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		recipientID, payload, QueuePending, now, now)
	if err != nil {
		return 0, protoerr.Wrap(protoerr.PersistenceError, "enqueue offline message", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, protoerr.Wrap(protoerr.PersistenceError, "read inserted id", err)
	}
	return id, nil
}

// PendingForRecipient returns every pending message for recipientID,
// oldest first.
func (q *OfflineQueue) PendingForRecipient(ctx context.Context, recipientID string) ([]QueuedMessage, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, recipient_id, payload, status, attempts, next_retry_at, created_at
		 FROM offline_queue WHERE recipient_id = ? AND status = ? ORDER BY created_at ASC`,
		recipientID, QueuePending)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.PersistenceError, "query pending messages", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// DueForRetry returns every pending message whose next_retry_at has
// passed, for the retry sweeper to pick up.
func (q *OfflineQueue) DueForRetry(ctx context.Context, now time.Time) ([]QueuedMessage, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, recipient_id, payload, status, attempts, next_retry_at, created_at
		 FROM offline_queue WHERE status = ? AND next_retry_at <= ? ORDER BY next_retry_at ASC`,
		QueuePending, now)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.PersistenceError, "query due messages", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]QueuedMessage, error) {
	var out []QueuedMessage
	for rows.Next() {
		var m QueuedMessage
		if err := rows.Scan(&m.ID, &m.RecipientID, &m.Payload, &m.Status, &m.Attempts, &m.NextRetryAt, &m.CreatedAt); err != nil {
			return nil, protoerr.Wrap(protoerr.PersistenceError, "scan queued message", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkDelivered sets a message's status to delivered after successful
// delivery, which takes it out of the pending set; the row is kept.
func (q *OfflineQueue) MarkDelivered(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE offline_queue SET status = ? WHERE id = ?`, QueueDelivered, id)
	if err != nil {
		return protoerr.Wrap(protoerr.PersistenceError, "mark message delivered", err)
	}
	return nil
}

// MarkRetry increments a message's attempt count and reschedules it
// after backoff.
func (q *OfflineQueue) MarkRetry(ctx context.Context, id int64, backoff time.Duration) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE offline_queue SET attempts = attempts + 1, next_retry_at = ? WHERE id = ?`,
		time.Now().Add(backoff), id)
	if err != nil {
		return protoerr.Wrap(protoerr.PersistenceError, "reschedule message retry", err)
	}
	return nil
}

// MarkFailed abandons a message after exhausting retries.
func (q *OfflineQueue) MarkFailed(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE offline_queue SET status = ? WHERE id = ?`, QueueFailed, id)
	if err != nil {
		return protoerr.Wrap(protoerr.PersistenceError, "mark message failed", err)
	}
	return nil
}
