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

// Package wire defines the peer messaging envelope: its JSON shape, the
// canonical byte string it signs over, and the checks every inbound
// message must pass before it reaches a session or validator.
package wire

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/aicollab-project/platform/protoerr"
)

// CurrentVersion is the only wire version this build emits. LegacyVersion
// is still accepted on inbound messages for one release of backward
// compatibility with v0.1 peers.
const (
	CurrentVersion = "1.1"
	LegacyVersion  = "0.1"
)

// MessageType enumerates the payload kinds carried over the wire.
type MessageType string

const (
	TypeHandshakeInit     MessageType = "handshake_init"
	TypeHandshakeAccept   MessageType = "handshake_accept"
	TypeHandshakeComplete MessageType = "handshake_complete"
	TypeData              MessageType = "data"
	TypeChunkInit          MessageType = "chunk_init"
	TypeChunk              MessageType = "chunk"
	TypeAck                MessageType = "ack"
	TypeNack               MessageType = "nack"
	TypeClose              MessageType = "close"
	TypeError              MessageType = "error"

	// Contract/negotiation types carried by package contract's signed
	// records (spec.md §4.3): the type names the wire payload's shape,
	// not a separate protocol.
	TypePing      MessageType = "ping"
	TypeStatus    MessageType = "status"
	TypeDelegate  MessageType = "delegate"
	TypeResult    MessageType = "result"
	TypeProposal  MessageType = "proposal"
	TypeQuote     MessageType = "quote"
	TypeAgreement MessageType = "agreement"
	TypeReceipt   MessageType = "receipt"
)

// Message is the envelope exchanged between peers. Payload is carried as
// raw bytes at this layer; transport codecs are responsible for
// base64-encoding it on the wire and decoding it back on receipt.
type Message struct {
	Version     string      `json:"version"`
	Type        MessageType `json:"msg_type"`
	SenderID    string      `json:"sender_id"`
	RecipientID string      `json:"recipient_id"`
	Timestamp   time.Time   `json:"timestamp"`
	Nonce       string      `json:"nonce"`
	Payload     []byte      `json:"payload"`
	SessionID   string      `json:"session_id,omitempty"`
	Sequence    uint64      `json:"sequence,omitempty"`
	Signature   []byte      `json:"signature,omitempty"`
}

// SigningPreimage builds the exact byte string a Message's signature
// covers:
//
//	version|msg_type|sender_id|recipient_id|timestamp|nonce|base64(payload)|session_id|sequence
//
// Both signer and verifier must build this from identical field values,
// so the string uses RFC3339Nano for the timestamp and decimal for the
// sequence to avoid any ambiguity in how numbers/time are rendered.
func (m *Message) SigningPreimage() []byte {
	payload := base64.StdEncoding.EncodeToString(m.Payload)
	s := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s",
		m.Version,
		m.Type,
		m.SenderID,
		m.RecipientID,
		m.Timestamp.UTC().Format(time.RFC3339Nano),
		m.Nonce,
		payload,
		m.SessionID,
		strconv.FormatUint(m.Sequence, 10),
	)
	return []byte(s)
}

// Sign computes the Ed25519-over-SHA256 signature of the preimage and
// stores it on the message.
func (m *Message) Sign(priv ed25519.PrivateKey) {
	digest := sha256.Sum256(m.SigningPreimage())
	m.Signature = ed25519.Sign(priv, digest[:])
}

// Verify checks the message's signature against the given public key.
func (m *Message) Verify(pub ed25519.PublicKey) error {
	if len(m.Signature) == 0 {
		return protoerr.New(protoerr.InvalidSignature, "message carries no signature")
	}
	digest := sha256.Sum256(m.SigningPreimage())
	if !ed25519.Verify(pub, digest[:], m.Signature) {
		return protoerr.New(protoerr.InvalidSignature, "signature verification failed")
	}
	return nil
}

// CheckVersion rejects anything other than the current or legacy version.
func CheckVersion(v string) error {
	if v == CurrentVersion || v == LegacyVersion {
		return nil
	}
	return protoerr.New(protoerr.InvalidVersion, fmt.Sprintf("unsupported protocol version %q", v))
}

// ClockSkew is the default tolerance applied by CheckTimestamp.
const ClockSkew = 300 * time.Second

// CheckTimestamp rejects messages whose timestamp falls outside
// [now-skew, now+skew].
func CheckTimestamp(ts time.Time, skew time.Duration, now time.Time) error {
	if ts.IsZero() {
		return protoerr.New(protoerr.ExpiredTimestamp, "missing timestamp")
	}
	diff := now.Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	if diff > skew {
		return protoerr.New(protoerr.ExpiredTimestamp, fmt.Sprintf("timestamp %s outside %s tolerance", ts.Format(time.RFC3339), skew))
	}
	return nil
}
