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

package session

import (
	"context"
	"sync"
	"time"

	"github.com/aicollab-project/platform/internal/logger"
	"github.com/aicollab-project/platform/internal/metrics"
	"github.com/aicollab-project/platform/protoerr"
	"github.com/google/uuid"
)

// DefaultCleanupInterval is how often the manager sweeps for expired
// sessions.
const DefaultCleanupInterval = 5 * time.Minute

// Manager owns every session an entity is party to and periodically
// reaps expired ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config
	log      logger.Logger

	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewManager creates a session manager and starts its background sweep.
func NewManager(cfg Config, cleanupInterval time.Duration, log logger.Logger) *Manager {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	m := &Manager{
		sessions:        make(map[string]*Session),
		cfg:             cfg,
		log:             log,
		cleanupInterval: cleanupInterval,
		stop:            make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// NewSession creates and registers a fresh session for peerID, in INIT
// state with a freshly minted UUIDv4 session ID.
func (m *Manager) NewSession(peerID string) *Session {
	s := New(uuid.NewString(), peerID, m.cfg)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	return s
}

// Get returns the session for id, or an error if unknown or expired.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, protoerr.New(protoerr.SessionNotFound, "unknown session id")
	}
	if s.IsExpired() {
		return nil, protoerr.New(protoerr.SessionExpired, "session has expired")
	}
	return s, nil
}

// Remove drops a session from the manager, e.g. after a clean close.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()
}

// Count returns the number of sessions currently tracked.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops the background sweep goroutine.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep removes expired sessions and is also exposed for deterministic
// testing via SweepOnce.
func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.IsExpired() {
			delete(m.sessions, id)
			m.log.Info("session expired and swept", logger.String("session_id", id))
		}
	}
	metrics.SessionsActive.Set(float64(len(m.sessions)))
}

// SweepOnce runs a single sweep pass synchronously, for tests and for
// callers that want to force reclamation outside the ticker cadence.
func (m *Manager) SweepOnce() {
	m.sweep()
}

// EmitPendingNacks walks every session, finds gaps due for a NACK, marks
// them as nacked, and invokes send for each one. Intended to be driven by
// a short-interval ticker from the owning transport.
func (m *Manager) EmitPendingNacks(ctx context.Context, send func(ctx context.Context, sessionID string, gap GapInfo) error) {
	now := time.Now()
	m.mu.RLock()
	type pending struct {
		sessionID string
		gap       GapInfo
	}
	var due []pending
	for id, s := range m.sessions {
		for _, g := range s.PendingNacks(now) {
			due = append(due, pending{sessionID: id, gap: g})
		}
	}
	m.mu.RUnlock()

	for _, p := range due {
		if err := send(ctx, p.sessionID, p.gap); err != nil {
			m.log.Warn("failed to send nack", logger.String("session_id", p.sessionID), logger.Error(err))
			continue
		}
		if s, err := m.Get(p.sessionID); err == nil {
			s.MarkNacked(p.gap.From, now)
			metrics.NacksSent.Inc()
		}
	}
}
