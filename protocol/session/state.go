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

// Package session manages the lifecycle of a keyed peer-to-peer session:
// its handshake state machine, sequence-number ordering with gap/NACK
// tracking, and the derived AEAD keys used to protect message payloads.
package session

import "fmt"

// State is a node in the session handshake/lifecycle state machine.
type State string

const (
	StateInit                State = "INIT"
	StateHandshakeSent        State = "HANDSHAKE_SENT"
	StateHandshakeReceived    State = "HANDSHAKE_RECEIVED"
	StateActive               State = "ACTIVE"
	StateClosing              State = "CLOSING"
	StateClosed               State = "CLOSED"
	StateError                State = "ERROR"
)

// transitions enumerates the edges allowed out of each state. Any move
// not listed here is rejected by Session.Transition.
var transitions = map[State]map[State]bool{
	StateInit: {
		StateHandshakeSent:     true,
		StateHandshakeReceived: true,
		StateError:             true,
	},
	StateHandshakeSent: {
		StateHandshakeReceived: true,
		StateActive:            true,
		StateError:             true,
	},
	StateHandshakeReceived: {
		StateActive: true,
		StateError:  true,
	},
	StateActive: {
		StateClosing: true,
		StateError:   true,
	},
	StateClosing: {
		StateClosed: true,
		StateError:  true,
	},
	StateClosed: {},
	StateError:  {},
}

// CanTransition reports whether moving from 'from' to 'to' is legal.
func CanTransition(from, to State) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// ErrInvalidTransition is returned when a state move is not in the
// allowed transition table.
type ErrInvalidTransition struct {
	From, To State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid session state transition: %s -> %s", e.From, e.To)
}
