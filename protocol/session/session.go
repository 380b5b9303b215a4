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
	"sync"
	"time"

	"github.com/aicollab-project/platform/internal/metrics"
	"github.com/aicollab-project/platform/protoerr"
)

// Config bounds a session's lifetime and sequencing behavior.
type Config struct {
	TTL            time.Duration
	MaxSequenceGap int
	NackTimeout    time.Duration
}

// DefaultConfig returns the platform's default session policy.
func DefaultConfig() Config {
	return Config{
		TTL:            time.Hour,
		MaxSequenceGap: DefaultMaxSequenceGap,
		NackTimeout:    DefaultNackTimeout,
	}
}

// DefaultSendHistoryLimit bounds how many outbound sealed payloads a
// session retains for NACK-driven retransmission. Older entries are
// evicted once the bound is reached, on the assumption that a peer
// still missing something that old has bigger problems than a resend.
const DefaultSendHistoryLimit = 256

// Session is a live, keyed channel between two entities. It owns the
// handshake state machine, sequence-number reordering, and the AEAD
// keys used to protect payloads in both directions.
type Session struct {
	mu sync.RWMutex

	id          string
	peerID      string
	createdAt   time.Time
	lastUsedAt  time.Time
	state       State
	cfg         Config
	keys        *keyset
	seq         *Sequencer
	outSeq      uint64
	messageCount int

	sent      map[uint64][]byte
	sentOrder []uint64
}

// New creates a session in INIT state with no keys yet derived; call
// Activate once the handshake's exporter secret is available.
func New(id, peerID string, cfg Config) *Session {
	now := time.Now()
	return &Session{
		id:         id,
		peerID:     peerID,
		createdAt:  now,
		lastUsedAt: now,
		state:      StateInit,
		cfg:        cfg,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// PeerID returns the remote entity this session is keyed with.
func (s *Session) PeerID() string { return s.peerID }

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Transition moves the session to a new state, rejecting illegal moves.
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, to) {
		return &ErrInvalidTransition{From: s.state, To: to}
	}
	s.state = to
	metrics.SessionTransitions.WithLabelValues(string(to)).Inc()
	return nil
}

// Activate derives the session's AEAD keys from the handshake's exporter
// secret and moves the session to ACTIVE. startSeq is the first sequence
// number the peer is expected to send.
func (s *Session) Activate(exporterSecret []byte, initiator bool, startSeq uint64) error {
	ks, err := deriveKeyset(s.id, exporterSecret, initiator)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, StateActive) {
		return &ErrInvalidTransition{From: s.state, To: StateActive}
	}
	s.keys = ks
	s.seq = NewSequencer(startSeq, s.cfg.MaxSequenceGap, s.cfg.NackTimeout)
	s.state = StateActive
	return nil
}

// IsExpired reports whether the session's TTL has elapsed since creation
// or it has moved to a terminal state.
func (s *Session) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateClosed || s.state == StateError {
		return true
	}
	if s.cfg.TTL > 0 && time.Since(s.createdAt) > s.cfg.TTL {
		return true
	}
	return false
}

// touch bumps last-used bookkeeping; callers hold s.mu for writing.
func (s *Session) touch() {
	s.lastUsedAt = time.Now()
	s.messageCount++
}

// NextOutboundSequence returns the next sequence number to stamp on an
// outbound message and advances the internal counter.
func (s *Session) NextOutboundSequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outSeq++
	return s.outSeq
}

// Seal encrypts plaintext for sending to the peer.
func (s *Session) Seal(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		return nil, protoerr.New(protoerr.SessionNotFound, "session has no derived keys")
	}
	out, err := s.keys.seal(plaintext)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.InternalError, "seal failed", err)
	}
	s.touch()
	return out, nil
}

// SealSequenced stamps the next outbound sequence number on plaintext,
// seals it, and records the ciphertext in the bounded send history so it
// can be replayed if the peer NACKs it.
func (s *Session) SealSequenced(plaintext []byte) (uint64, []byte, error) {
	seqNum := s.NextOutboundSequence()
	ct, err := s.Seal(plaintext)
	if err != nil {
		return 0, nil, err
	}
	s.RecordSent(seqNum, ct)
	return seqNum, ct, nil
}

// RecordSent stores the sealed payload sent at seqNum in the bounded
// send history, evicting the oldest entry once the history is full.
func (s *Session) RecordSent(seqNum uint64, ciphertext []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = make(map[uint64][]byte)
	}
	if _, already := s.sent[seqNum]; !already {
		s.sentOrder = append(s.sentOrder, seqNum)
	}
	s.sent[seqNum] = ciphertext
	for len(s.sentOrder) > DefaultSendHistoryLimit {
		oldest := s.sentOrder[0]
		s.sentOrder = s.sentOrder[1:]
		delete(s.sent, oldest)
	}
}

// Retransmit returns the sealed payloads still held in the send history
// for sequence numbers in [from, to]. A sequence number the history has
// already evicted is simply absent from the result; the caller can only
// retransmit what it still has.
func (s *Session) Retransmit(from, to uint64) map[uint64][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint64][]byte)
	for seq := from; seq <= to; seq++ {
		if ct, ok := s.sent[seq]; ok {
			out[seq] = ct
		}
	}
	return out
}

// AcceptInbound decrypts and sequences an inbound (sequence, ciphertext)
// pair, returning any payloads now ready for delivery in order.
func (s *Session) AcceptInbound(seqNum uint64, ciphertext []byte) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys == nil || s.seq == nil {
		return Outcome{}, protoerr.New(protoerr.SessionNotFound, "session not active")
	}

	plaintext, err := s.keys.open(ciphertext)
	if err != nil {
		return Outcome{}, protoerr.Wrap(protoerr.InvalidSignature, "decrypt failed", err)
	}

	outcome := s.seq.Accept(seqNum, plaintext)
	if outcome.Rejected {
		return outcome, protoerr.New(protoerr.SequenceError, "sequence number outside acceptable window")
	}
	s.touch()
	return outcome, nil
}

// PendingNacks returns gaps in this session's inbound stream that are due
// for a NACK to be sent (or re-sent).
func (s *Session) PendingNacks(now time.Time) []GapInfo {
	s.mu.RLock()
	seq := s.seq
	s.mu.RUnlock()
	if seq == nil {
		return nil
	}
	return seq.PendingGaps(now)
}

// MarkNacked records that a NACK was emitted for the gap starting at from.
func (s *Session) MarkNacked(from uint64, now time.Time) {
	s.mu.RLock()
	seq := s.seq
	s.mu.RUnlock()
	if seq != nil {
		seq.MarkNacked(from, now)
	}
}

// MessageCount returns how many messages have flowed through this session.
func (s *Session) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messageCount
}

// LastUsedAt returns the last time this session sent or received a message.
func (s *Session) LastUsedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsedAt
}

// Close drops the session's keyset, so Seal and AcceptInbound fail from
// then on, and moves the session to CLOSED. The key bytes held inside
// the AEAD ciphers are not overwritten.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = nil
	s.state = StateClosed
	return nil
}
