// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(Entry{EntityID: "agent-1", Name: "worker", Endpoint: "http://localhost:9000", Capabilities: []string{"code-review"}}))

	e, ok := r.Lookup("agent-1")
	require.True(t, ok)
	assert.Equal(t, "worker", e.Name)
}

func TestRegisterIsAppendOrReplace(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(Entry{EntityID: "agent-1", Name: "v1", Endpoint: "http://a"}))
	require.NoError(t, r.Register(Entry{EntityID: "agent-1", Name: "v2", Endpoint: "http://b"}))

	e, _ := r.Lookup("agent-1")
	assert.Equal(t, "v2", e.Name)
	assert.Equal(t, 1, r.Len())
}

func TestFindByCapability(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(Entry{EntityID: "agent-1", Capabilities: []string{"code-review", "testing"}}))
	require.NoError(t, r.Register(Entry{EntityID: "agent-2", Capabilities: []string{"testing"}}))

	matches := r.FindByCapability("code-review")
	require.Len(t, matches, 1)
	assert.Equal(t, "agent-1", matches[0].EntityID)
}

func TestHeartbeatUnknownEntityFails(t *testing.T) {
	r := New(nil)
	err := r.Heartbeat("nonexistent")
	require.Error(t, err)
}

func TestCleanupStaleRemovesOldEntries(t *testing.T) {
	r := New(nil)
	r.staleCutoff = 10 * time.Millisecond
	require.NoError(t, r.Register(Entry{EntityID: "agent-1"}))

	time.Sleep(20 * time.Millisecond)
	removed := r.CleanupStale()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, r.Len())
}
