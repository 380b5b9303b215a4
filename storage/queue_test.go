// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestQueue(t *testing.T) *OfflineQueue {
	t.Helper()
	path := filepath.Join(t.TempDir(), "offline_queue.db")
	q, err := OpenOfflineQueue(path)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestEnqueueAndPendingForRecipient(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "agent-1", []byte("hello"))
	require.NoError(t, err)

	pending, err := q.PendingForRecipient(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, []byte("hello"), pending[0].Payload)
	assert.Equal(t, QueuePending, pending[0].Status)
}

func TestMarkDeliveredRemovesFromPending(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "agent-1", []byte("hi"))
	require.NoError(t, err)
	require.NoError(t, q.MarkDelivered(ctx, id))

	pending, err := q.PendingForRecipient(ctx, "agent-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDueForRetryOnlyReturnsPastDue(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "agent-1", []byte("hi"))
	require.NoError(t, err)
	require.NoError(t, q.MarkRetry(ctx, id, time.Hour))

	due, err := q.DueForRetry(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = q.DueForRetry(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)
}

func TestMarkFailedExcludesFromPending(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "agent-1", []byte("hi"))
	require.NoError(t, err)
	require.NoError(t, q.MarkFailed(ctx, id))

	pending, err := q.PendingForRecipient(ctx, "agent-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
