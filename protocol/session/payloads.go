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

// HandshakeInitPayload is the wire.TypeHandshakeInit payload: the
// initiator's ephemeral X25519 public key, used to derive the session's
// shared exporter secret via plain ECDH.
type HandshakeInitPayload struct {
	EphemeralPublic []byte `json:"ephemeral_public"`
}

// HandshakeAcceptPayload is the wire.TypeHandshakeAccept payload: the
// responder's own ephemeral public key, completing the exchange.
type HandshakeAcceptPayload struct {
	EphemeralPublic []byte `json:"ephemeral_public"`
}

// NackPayload is the wire.TypeNack payload: the inclusive sequence range
// [From, To] the sender is missing and wants retransmitted.
type NackPayload struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}
