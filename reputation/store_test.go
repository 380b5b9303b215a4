// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package reputation

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func newMemStore() *memStore { return &memStore{docs: make(map[string][]byte)} }

func (m *memStore) Save(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = data
	return nil
}

func (m *memStore) Load(key string, v interface{}) error {
	m.mu.Lock()
	data, ok := m.docs[key]
	m.mu.Unlock()
	if !ok {
		return assert.AnError
	}
	return json.Unmarshal(data, v)
}

func (m *memStore) Exists(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[key]
	return ok
}

func TestStoreGetCreatesBaseline(t *testing.T) {
	s := NewStore(newMemStore())
	r := s.Get("agent-1")
	assert.Equal(t, 50.0, r.CurrentScore)
}

func TestStoreApplyPersistsRecord(t *testing.T) {
	backing := newMemStore()
	s := NewStore(backing)

	_, err := s.Apply("agent-1", Evaluation{TaskID: "t1", Verdict: VerdictPass, Score: 90})
	require.NoError(t, err)
	assert.True(t, backing.Exists("reputation/agent-1"))

	s2 := NewStore(backing)
	require.NoError(t, s2.Load("agent-1"))
	assert.Greater(t, s2.Get("agent-1").CurrentScore, 50.0)
}

func TestStoreApplyConcurrentSameEntitySerializes(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Apply("agent-1", Evaluation{TaskID: "t", Verdict: VerdictPass, Score: 60})
		}()
	}
	wg.Wait()

	r := s.Get("agent-1")
	assert.Equal(t, 20, r.TasksCompleted)
	assert.Equal(t, 20, r.CurrentStreak)
}
