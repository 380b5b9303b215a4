// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestPostgresStore requires a live Postgres reachable at
// AICP_POSTGRES_TEST_DSN; without it these tests skip rather than fail,
// since no Postgres fixture is spun up for this package's test suite.
func openTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("AICP_POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("set AICP_POSTGRES_TEST_DSN to run PostgresStore tests against a live database")
	}
	s, err := NewPostgresStore(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

type postgresDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestPostgresStoreSaveLoadRoundTrip(t *testing.T) {
	s := openTestPostgresStore(t)
	t.Cleanup(func() { s.Delete("pg-doc-1") })

	require.NoError(t, s.Save("pg-doc-1", postgresDoc{Name: "alice", Count: 3}))

	var got postgresDoc
	require.NoError(t, s.Load("pg-doc-1", &got))
	assert.Equal(t, postgresDoc{Name: "alice", Count: 3}, got)
}

func TestPostgresStoreUpsertOverwrites(t *testing.T) {
	s := openTestPostgresStore(t)
	t.Cleanup(func() { s.Delete("pg-doc-2") })

	require.NoError(t, s.Save("pg-doc-2", postgresDoc{Name: "first", Count: 1}))
	require.NoError(t, s.Save("pg-doc-2", postgresDoc{Name: "second", Count: 2}))

	var got postgresDoc
	require.NoError(t, s.Load("pg-doc-2", &got))
	assert.Equal(t, postgresDoc{Name: "second", Count: 2}, got)
}

func TestPostgresStoreExistsAndDelete(t *testing.T) {
	s := openTestPostgresStore(t)

	assert.False(t, s.Exists("pg-doc-3"))
	require.NoError(t, s.Save("pg-doc-3", postgresDoc{Name: "x"}))
	assert.True(t, s.Exists("pg-doc-3"))

	require.NoError(t, s.Delete("pg-doc-3"))
	assert.False(t, s.Exists("pg-doc-3"))
}

func TestPostgresStoreList(t *testing.T) {
	s := openTestPostgresStore(t)
	t.Cleanup(func() {
		s.Delete("pg-list-a")
		s.Delete("pg-list-b")
	})

	require.NoError(t, s.Save("pg-list-a", postgresDoc{Name: "a"}))
	require.NoError(t, s.Save("pg-list-b", postgresDoc{Name: "b"}))

	keys, err := s.List()
	require.NoError(t, err)
	assert.Contains(t, keys, "pg-list-a")
	assert.Contains(t, keys, "pg-list-b")
}
