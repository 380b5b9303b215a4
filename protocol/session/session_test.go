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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairedSessions(t *testing.T) (client, server *Session) {
	t.Helper()
	secret := []byte("a shared exporter secret, 32+ bytes long!!")

	client = New("sess-1", "server-entity", DefaultConfig())
	server = New("sess-1", "client-entity", DefaultConfig())

	require.NoError(t, client.Transition(StateHandshakeSent))
	require.NoError(t, client.Activate(secret, true, 0))

	require.NoError(t, server.Transition(StateHandshakeReceived))
	require.NoError(t, server.Activate(secret, false, 0))

	return client, server
}

func TestSessionEncryptDecryptRoundTrip(t *testing.T) {
	client, server := pairedSessions(t)

	ct, err := client.Seal([]byte("hello server"))
	require.NoError(t, err)

	outcome, err := server.AcceptInbound(0, ct)
	require.NoError(t, err)
	require.Len(t, outcome.Deliverable, 1)
	assert.Equal(t, []byte("hello server"), outcome.Deliverable[0])
}

func TestSessionRejectsInvalidTransition(t *testing.T) {
	s := New("sess-2", "peer", DefaultConfig())
	err := s.Transition(StateClosed)
	require.Error(t, err)
	var target *ErrInvalidTransition
	assert.ErrorAs(t, err, &target)
}

func TestSessionSealFailsBeforeActivate(t *testing.T) {
	s := New("sess-3", "peer", DefaultConfig())
	_, err := s.Seal([]byte("x"))
	assert.Error(t, err)
}

func TestSessionIsExpiredByTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = time.Millisecond
	s := New("sess-4", "peer", cfg)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, s.IsExpired())
}

func TestSessionCloseDropsKeysAndExpires(t *testing.T) {
	client, _ := pairedSessions(t)
	require.NoError(t, client.Close())
	assert.True(t, client.IsExpired())
	_, err := client.Seal([]byte("x"))
	assert.Error(t, err)
}

func TestManagerCreateGetRemove(t *testing.T) {
	m := NewManager(DefaultConfig(), time.Hour, nil)
	defer m.Shutdown()

	s := m.NewSession("peer-1")
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Equal(t, s.ID(), got.ID())

	m.Remove(s.ID())
	assert.Equal(t, 0, m.Count())

	_, err = m.Get(s.ID())
	assert.Error(t, err)
}

func TestManagerSweepRemovesExpired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = time.Millisecond
	m := NewManager(cfg, time.Hour, nil)
	defer m.Shutdown()

	m.NewSession("peer-1")
	time.Sleep(5 * time.Millisecond)
	m.SweepOnce()
	assert.Equal(t, 0, m.Count())
}

func TestSessionSealSequencedRecordsSendHistory(t *testing.T) {
	client, server := pairedSessions(t)

	seq, ct, err := client.SealSequenced([]byte("first"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	replayed := client.Retransmit(seq, seq)
	require.Contains(t, replayed, seq)
	assert.Equal(t, ct, replayed[seq])

	outcome, err := server.AcceptInbound(0, ct)
	require.NoError(t, err)
	require.Len(t, outcome.Deliverable, 1)
	assert.Equal(t, []byte("first"), outcome.Deliverable[0])
}

func TestSessionRetransmitOmitsUnsentSequences(t *testing.T) {
	client, _ := pairedSessions(t)
	_, _, err := client.SealSequenced([]byte("only one"))
	require.NoError(t, err)

	got := client.Retransmit(1, 5)
	assert.Len(t, got, 1)
	assert.Contains(t, got, uint64(1))
}

func TestSessionSendHistoryEvictsOldestBeyondLimit(t *testing.T) {
	client, _ := pairedSessions(t)
	for i := 0; i < DefaultSendHistoryLimit+10; i++ {
		_, _, err := client.SealSequenced([]byte("x"))
		require.NoError(t, err)
	}

	got := client.Retransmit(1, 5)
	assert.Empty(t, got, "earliest sequences should have been evicted")

	got = client.Retransmit(uint64(DefaultSendHistoryLimit+10), uint64(DefaultSendHistoryLimit+10))
	assert.Len(t, got, 1, "most recent sequence should still be retained")
}

// openGapOnReceiver pairs a throwaway initiator session (sharing s's ID
// and exporter secret) to seal a message at seqNum, then feeds it to s
// out of order so it opens a gap in s's inbound sequence.
func openGapOnReceiver(t *testing.T, s *Session, seqNum uint64) {
	t.Helper()
	secret := []byte("a shared exporter secret, 32+ bytes long!!")
	require.NoError(t, s.Transition(StateHandshakeReceived))
	require.NoError(t, s.Activate(secret, false, 0))

	sender := New(s.ID(), "self", DefaultConfig())
	require.NoError(t, sender.Transition(StateHandshakeSent))
	require.NoError(t, sender.Activate(secret, true, 0))

	ct, err := sender.Seal([]byte("out of order"))
	require.NoError(t, err)
	_, err = s.AcceptInbound(seqNum, ct)
	require.NoError(t, err)
}

func TestManagerEmitPendingNacksInvokesSendAndMarksNacked(t *testing.T) {
	m := NewManager(DefaultConfig(), time.Hour, nil)
	defer m.Shutdown()

	s := m.NewSession("peer-1")
	openGapOnReceiver(t, s, 2)

	var gotSessionID string
	var gotGap GapInfo
	calls := 0
	m.EmitPendingNacks(context.Background(), func(ctx context.Context, sessionID string, gap GapInfo) error {
		calls++
		gotSessionID = sessionID
		gotGap = gap
		return nil
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, s.ID(), gotSessionID)
	assert.Equal(t, uint64(0), gotGap.From)

	// A gap nacked just now is due again only once the NACK timeout passes.
	due := s.PendingNacks(time.Now().Add(DefaultNackTimeout))
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].NackCount, "EmitPendingNacks should have marked the gap nacked")
}

func TestManagerEmitPendingNacksSkipsMarkWhenSendFails(t *testing.T) {
	m := NewManager(DefaultConfig(), time.Hour, nil)
	defer m.Shutdown()

	s := m.NewSession("peer-1")
	openGapOnReceiver(t, s, 1)

	m.EmitPendingNacks(context.Background(), func(ctx context.Context, sessionID string, gap GapInfo) error {
		return errors.New("peer unreachable")
	})

	due := s.PendingNacks(time.Now())
	require.Len(t, due, 1)
	assert.Equal(t, 0, due[0].NackCount)
}
