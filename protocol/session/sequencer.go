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
	"sort"
	"sync"
	"time"
)

// DefaultMaxSequenceGap bounds how far ahead of the expected sequence an
// incoming message may be before it is rejected outright rather than
// buffered for reordering.
const DefaultMaxSequenceGap = 100

// DefaultNackTimeout is how long a gap is held before it is re-announced.
const DefaultNackTimeout = 5 * time.Second

// GapInfo records a missing sequence range awaiting retransmission.
type GapInfo struct {
	From        uint64
	To          uint64
	FirstSeenAt time.Time
	LastNackAt  time.Time
	NackCount   int
}

// Sequencer reorders inbound messages for a single session, tracks gaps
// in the sequence, and decides when a NACK should be (re-)emitted.
type Sequencer struct {
	mu           sync.Mutex
	expected     uint64
	maxGap       uint64
	nackTimeout  time.Duration
	buffered     map[uint64][]byte
	gaps         map[uint64]*GapInfo // gap keyed by its starting sequence
}

// NewSequencer creates a sequencer expecting sequence numbers starting at
// startSeq (the first sequence number the session will ever see).
func NewSequencer(startSeq uint64, maxGap int, nackTimeout time.Duration) *Sequencer {
	if maxGap <= 0 {
		maxGap = DefaultMaxSequenceGap
	}
	if nackTimeout <= 0 {
		nackTimeout = DefaultNackTimeout
	}
	return &Sequencer{
		expected:    startSeq,
		maxGap:      uint64(maxGap),
		nackTimeout: nackTimeout,
		buffered:    make(map[uint64][]byte),
		gaps:        make(map[uint64]*GapInfo),
	}
}

// Outcome describes what the caller should do with an inbound message
// after it has passed through the sequencer.
type Outcome struct {
	// Deliverable holds payloads, in order, that are now ready to be
	// handed to the application: the message just accepted plus any
	// buffered successors the gap it filled was blocking.
	Deliverable [][]byte
	// Buffered is true if the message was held pending earlier gaps.
	Buffered bool
	// Rejected is true if the message fell too far outside the
	// acceptable window (too old, or too far ahead) and was dropped.
	Rejected bool
	// NewGap is set when accepting this message opens a gap before it.
	NewGap *GapInfo
}

// Accept processes an inbound (sequence, payload) pair.
func (s *Sequencer) Accept(seq uint64, payload []byte) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case seq < s.expected:
		// Already delivered or a duplicate retransmit of a filled gap.
		return Outcome{Rejected: true}
	case seq == s.expected:
		out := Outcome{Deliverable: [][]byte{payload}}
		s.expected++
		s.resolveGapsEndingAt(s.expected)
		s.drainBuffer(&out)
		return out
	case seq-s.expected > s.maxGap:
		return Outcome{Rejected: true}
	default:
		if _, already := s.buffered[seq]; !already {
			s.buffered[seq] = payload
		}
		gap := s.recordGap(s.expected, seq)
		return Outcome{Buffered: true, NewGap: gap}
	}
}

// recordGap tracks (or updates) the gap [from, to) preceding seq.
func (s *Sequencer) recordGap(from, to uint64) *GapInfo {
	g, ok := s.gaps[from]
	if !ok {
		g = &GapInfo{From: from, To: to, FirstSeenAt: time.Now()}
		s.gaps[from] = g
	} else if to > g.To {
		g.To = to
	}
	return g
}

// resolveGapsEndingAt drops any gap whose starting point expected has
// now moved past.
func (s *Sequencer) resolveGapsEndingAt(expected uint64) {
	for from := range s.gaps {
		if expected > from {
			delete(s.gaps, from)
		}
	}
}

// drainBuffer delivers any consecutive buffered payloads starting at the
// new expected sequence, advancing expected as it goes.
func (s *Sequencer) drainBuffer(out *Outcome) {
	for {
		payload, ok := s.buffered[s.expected]
		if !ok {
			return
		}
		out.Deliverable = append(out.Deliverable, payload)
		delete(s.buffered, s.expected)
		s.expected++
		s.resolveGapsEndingAt(s.expected)
	}
}

// PendingGaps returns gaps that are due for a NACK: either never
// announced, or whose last NACK is older than the configured timeout.
func (s *Sequencer) PendingGaps(now time.Time) []GapInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []GapInfo
	for _, g := range s.gaps {
		if g.LastNackAt.IsZero() || now.Sub(g.LastNackAt) >= s.nackTimeout {
			due = append(due, *g)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].From < due[j].From })
	return due
}

// MarkNacked records that a NACK was just sent for the gap starting at
// 'from', bumping its retry bookkeeping.
func (s *Sequencer) MarkNacked(from uint64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.gaps[from]; ok {
		g.LastNackAt = now
		g.NackCount++
	}
}

// Expected returns the next sequence number this sequencer will accept
// without buffering.
func (s *Sequencer) Expected() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expected
}

// GapCount returns the number of open gaps.
func (s *Sequencer) GapCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gaps)
}
