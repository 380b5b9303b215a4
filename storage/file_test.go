// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fileDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func openTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	s := openTestFileStore(t)

	require.NoError(t, s.Save("doc-1", fileDoc{Name: "alice", Count: 3}))

	var got fileDoc
	require.NoError(t, s.Load("doc-1", &got))
	assert.Equal(t, fileDoc{Name: "alice", Count: 3}, got)
}

func TestFileStoreExists(t *testing.T) {
	s := openTestFileStore(t)

	assert.False(t, s.Exists("missing"))
	require.NoError(t, s.Save("present", fileDoc{Name: "bob"}))
	assert.True(t, s.Exists("present"))
}

func TestFileStoreList(t *testing.T) {
	s := openTestFileStore(t)

	require.NoError(t, s.Save("a", fileDoc{Name: "a"}))
	require.NoError(t, s.Save("b", fileDoc{Name: "b"}))

	keys, err := s.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestFileStoreDelete(t *testing.T) {
	s := openTestFileStore(t)

	require.NoError(t, s.Save("doc", fileDoc{Name: "x"}))
	require.NoError(t, s.Delete("doc"))
	assert.False(t, s.Exists("doc"))

	// Deleting an already-absent key is not an error.
	require.NoError(t, s.Delete("doc"))
}

func TestFileStoreLoadMissingKeyErrors(t *testing.T) {
	s := openTestFileStore(t)

	var got fileDoc
	err := s.Load("nope", &got)
	assert.Error(t, err)
}

func TestFileStoreOverwriteReplacesContent(t *testing.T) {
	s := openTestFileStore(t)

	require.NoError(t, s.Save("doc", fileDoc{Name: "first", Count: 1}))
	require.NoError(t, s.Save("doc", fileDoc{Name: "second", Count: 2}))

	var got fileDoc
	require.NoError(t, s.Load("doc", &got))
	assert.Equal(t, fileDoc{Name: "second", Count: 2}, got)
}
