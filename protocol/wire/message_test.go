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

package wire

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/aicollab-project/platform/protoerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMessage() *Message {
	return &Message{
		Version:     CurrentVersion,
		Type:        TypeData,
		SenderID:    "agent-a",
		RecipientID: "agent-b",
		Timestamp:   time.Now(),
		Nonce:       "abc123",
		Payload:     []byte("hello"),
		SessionID:   "sess-1",
		Sequence:    7,
	}
}

func TestMessageSignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	msg := newTestMessage()
	msg.Sign(priv)
	require.NoError(t, msg.Verify(pub))
}

func TestMessageVerifyFailsOnTamper(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	msg := newTestMessage()
	msg.Sign(priv)
	msg.Payload = []byte("tampered")

	err = msg.Verify(pub)
	assert.True(t, protoerr.Is(err, protoerr.InvalidSignature))
}

func TestMessageVerifyFailsWithNoSignature(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	msg := newTestMessage()
	err := msg.Verify(pub)
	assert.True(t, protoerr.Is(err, protoerr.InvalidSignature))
}

func TestCheckVersion(t *testing.T) {
	assert.NoError(t, CheckVersion(CurrentVersion))
	assert.NoError(t, CheckVersion(LegacyVersion))

	err := CheckVersion("2.0")
	assert.True(t, protoerr.Is(err, protoerr.InvalidVersion))
}

func TestCheckTimestamp(t *testing.T) {
	now := time.Now()

	assert.NoError(t, CheckTimestamp(now, ClockSkew, now))
	assert.NoError(t, CheckTimestamp(now.Add(-200*time.Second), ClockSkew, now))
	assert.NoError(t, CheckTimestamp(now.Add(200*time.Second), ClockSkew, now))

	err := CheckTimestamp(now.Add(-400*time.Second), ClockSkew, now)
	assert.True(t, protoerr.Is(err, protoerr.ExpiredTimestamp))

	err = CheckTimestamp(time.Time{}, ClockSkew, now)
	assert.True(t, protoerr.Is(err, protoerr.ExpiredTimestamp))
}

func TestSigningPreimageIsDeterministic(t *testing.T) {
	m1 := newTestMessage()
	m2 := newTestMessage()
	m2.Timestamp = m1.Timestamp

	assert.Equal(t, m1.SigningPreimage(), m2.SigningPreimage())

	m2.Sequence = 8
	assert.NotEqual(t, m1.SigningPreimage(), m2.SigningPreimage())
}
