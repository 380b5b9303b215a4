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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerInOrderDelivery(t *testing.T) {
	s := NewSequencer(0, 10, time.Second)

	out := s.Accept(0, []byte("a"))
	require.False(t, out.Rejected)
	require.Len(t, out.Deliverable, 1)
	assert.Equal(t, []byte("a"), out.Deliverable[0])

	out = s.Accept(1, []byte("b"))
	require.Len(t, out.Deliverable, 1)
	assert.Equal(t, []byte("b"), out.Deliverable[0])
}

func TestSequencerBuffersAndDrainsOnGapFill(t *testing.T) {
	s := NewSequencer(0, 10, time.Second)

	out := s.Accept(2, []byte("c"))
	assert.True(t, out.Buffered)
	assert.NotNil(t, out.NewGap)
	assert.Equal(t, 1, s.GapCount())

	out = s.Accept(0, []byte("a"))
	require.Len(t, out.Deliverable, 1)
	assert.Equal(t, []byte("a"), out.Deliverable[0])

	out = s.Accept(1, []byte("b"))
	require.Len(t, out.Deliverable, 2)
	assert.Equal(t, []byte("b"), out.Deliverable[0])
	assert.Equal(t, []byte("c"), out.Deliverable[1])
	assert.Equal(t, 0, s.GapCount())
	assert.Equal(t, uint64(3), s.Expected())
}

func TestSequencerRejectsBeyondMaxGap(t *testing.T) {
	s := NewSequencer(0, 5, time.Second)
	out := s.Accept(100, []byte("x"))
	assert.True(t, out.Rejected)
}

func TestSequencerRejectsAlreadyDelivered(t *testing.T) {
	s := NewSequencer(0, 5, time.Second)
	s.Accept(0, []byte("a"))
	out := s.Accept(0, []byte("a-dup"))
	assert.True(t, out.Rejected)
}

func TestSequencerPendingGapsRespectsNackTimeout(t *testing.T) {
	s := NewSequencer(0, 10, 50*time.Millisecond)
	s.Accept(1, []byte("b"))

	due := s.PendingGaps(time.Now())
	require.Len(t, due, 1)
	assert.Equal(t, uint64(0), due[0].From)

	s.MarkNacked(0, time.Now())
	due = s.PendingGaps(time.Now())
	assert.Empty(t, due)

	due = s.PendingGaps(time.Now().Add(100 * time.Millisecond))
	assert.Len(t, due, 1)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateInit, StateHandshakeSent))
	assert.True(t, CanTransition(StateActive, StateClosing))
	assert.True(t, CanTransition(StateClosing, StateClosed))
	assert.False(t, CanTransition(StateClosed, StateActive))
	assert.False(t, CanTransition(StateInit, StateClosed))
}
