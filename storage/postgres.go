// Copyright (C) 2025 aicollab-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aicollab-project/platform/protoerr"
)

// PostgresStore is an optional, multi-process-safe alternative to
// FileStore: it persists the same key/JSON-document shape (wallets,
// tasks, reputation, supply stats, the service registry) in a single
// table instead of one file per key, so several agentd processes behind
// a load balancer can share state. Selected when Config.Postgres.DSN is
// non-empty; FileStore remains the default single-process backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS aicp_documents (
	key        TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore connects to dsn and ensures the backing table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.PersistenceError, "open postgres pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, protoerr.Wrap(protoerr.PersistenceError, "ping postgres", err)
	}
	if _, err := pool.Exec(ctx, createDocumentsTable); err != nil {
		pool.Close()
		return nil, protoerr.Wrap(protoerr.PersistenceError, "create documents table", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() { s.pool.Close() }

// Save upserts v as a JSONB document under key.
func (s *PostgresStore) Save(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return protoerr.Wrap(protoerr.PersistenceError, "marshal document", err)
	}
	ctx := context.Background()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO aicp_documents (key, doc, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		key, data)
	if err != nil {
		return protoerr.Wrap(protoerr.PersistenceError, "upsert document", err)
	}
	return nil
}

// Load unmarshals the document stored under key into v.
func (s *PostgresStore) Load(key string, v interface{}) error {
	ctx := context.Background()
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM aicp_documents WHERE key = $1`, key).Scan(&data)
	if err != nil {
		return protoerr.Wrap(protoerr.PersistenceError, fmt.Sprintf("no document for key %q", key), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return protoerr.Wrap(protoerr.PersistenceError, "unmarshal document", err)
	}
	return nil
}

// Exists reports whether a document is stored under key.
func (s *PostgresStore) Exists(key string) bool {
	ctx := context.Background()
	var found bool
	err := s.pool.QueryRow(ctx, `SELECT true FROM aicp_documents WHERE key = $1`, key).Scan(&found)
	return err == nil && found
}

// List returns every key currently stored.
func (s *PostgresStore) List() ([]string, error) {
	ctx := context.Background()
	rows, err := s.pool.Query(ctx, `SELECT key FROM aicp_documents ORDER BY key`)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.PersistenceError, "list documents", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, protoerr.Wrap(protoerr.PersistenceError, "scan key", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Delete removes the document stored under key, if any.
func (s *PostgresStore) Delete(key string) error {
	ctx := context.Background()
	if _, err := s.pool.Exec(ctx, `DELETE FROM aicp_documents WHERE key = $1`, key); err != nil {
		return protoerr.Wrap(protoerr.PersistenceError, "delete document", err)
	}
	return nil
}
