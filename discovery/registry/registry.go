// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

// Package registry implements the static ServiceRegistry: an
// in-memory entity_id -> endpoint directory persisted to a single
// JSON file, with heartbeat-driven staleness cleanup.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/aicollab-project/platform/protoerr"
)

// Run sweeps stale entries every interval until stop is closed.
func (r *Registry) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.CleanupStale()
		}
	}
}

const (
	// DefaultStaleCutoff matches spec.md's 120s stale cutoff default.
	DefaultStaleCutoff = 120 * time.Second
)

// store is the persistence interface Registry depends on.
type store interface {
	Save(key string, v interface{}) error
	Load(key string, v interface{}) error
}

// Entry is one registered entity's directory record, matching
// spec.md's Registry Entry. Entry carries no signature-binding fields.
type Entry struct {
	EntityID      string    `json:"entity_id"`
	Name          string    `json:"name"`
	Endpoint      string    `json:"endpoint"`
	Capabilities  []string  `json:"capabilities"`
	RegisteredAt  time.Time `json:"registered_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

func (e Entry) hasCapability(cap string) bool {
	for _, c := range e.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Registry is the static ServiceRegistry: append-or-replace
// registration, heartbeat-only updates that don't force a rewrite, and
// stale-entry cleanup.
type Registry struct {
	mu           sync.RWMutex
	entries      map[string]Entry
	staleCutoff  time.Duration
	backing      store
	dirty        bool
}

// New creates an empty Registry backed by s (nil is valid: in-memory only).
func New(s store) *Registry {
	return &Registry{
		entries:     make(map[string]Entry),
		staleCutoff: DefaultStaleCutoff,
		backing:     s,
	}
}

const registryKey = "discovery/registry"

// Register appends or replaces entityID's entry.
func (r *Registry) Register(entry Entry) error {
	if entry.RegisteredAt.IsZero() {
		entry.RegisteredAt = time.Now()
	}
	entry.LastHeartbeat = entry.RegisteredAt

	r.mu.Lock()
	r.entries[entry.EntityID] = entry
	r.mu.Unlock()

	return r.persist()
}

// Heartbeat updates entityID's last_heartbeat without forcing a
// persistence rewrite (per spec.md: "heartbeats update last_heartbeat
// without rewriting the file"). Callers that want heartbeats durable
// across restarts should call Flush periodically instead.
func (r *Registry) Heartbeat(entityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[entityID]
	if !ok {
		return protoerr.New(protoerr.UnknownRecipient, "no registry entry for "+entityID)
	}
	e.LastHeartbeat = time.Now()
	r.entries[entityID] = e
	r.dirty = true
	return nil
}

// Flush persists the registry if a heartbeat has marked it dirty since
// the last Flush.
func (r *Registry) Flush() error {
	r.mu.Lock()
	dirty := r.dirty
	r.dirty = false
	r.mu.Unlock()
	if !dirty {
		return nil
	}
	return r.persist()
}

func (r *Registry) persist() error {
	if r.backing == nil {
		return nil
	}
	r.mu.RLock()
	snapshot := make(map[string]Entry, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.RUnlock()
	return r.backing.Save(registryKey, snapshot)
}

// Load restores the registry from the backing store.
func (r *Registry) Load() error {
	if r.backing == nil {
		return nil
	}
	var snapshot map[string]Entry
	if err := r.backing.Load(registryKey, &snapshot); err != nil {
		return err
	}
	r.mu.Lock()
	r.entries = snapshot
	r.mu.Unlock()
	return nil
}

// Lookup returns entityID's entry.
func (r *Registry) Lookup(entityID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[entityID]
	return e, ok
}

// FindByCapability returns every non-stale entry advertising cap.
func (r *Registry) FindByCapability(cap string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cutoff := time.Now().Add(-r.staleCutoff)
	var result []Entry
	for _, e := range r.entries {
		if e.hasCapability(cap) && e.LastHeartbeat.After(cutoff) {
			result = append(result, e)
		}
	}
	return result
}

// CleanupStale removes entries whose last_heartbeat predates the stale
// cutoff, returning the count removed.
func (r *Registry) CleanupStale() int {
	r.mu.Lock()
	cutoff := time.Now().Add(-r.staleCutoff)
	removed := 0
	for id, e := range r.entries {
		if e.LastHeartbeat.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	r.mu.Unlock()
	if removed > 0 {
		_ = r.persist()
	}
	return removed
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// All returns every entry currently held, sorted by entity_id, for
// debug/inspection tooling (see cmd/agentctl).
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}
