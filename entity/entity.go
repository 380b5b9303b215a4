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

// Package entity models the platform's participants: an Entity holds the
// Ed25519 signing identity every other subsystem keys off of (sessions,
// wallets, reputation records, registry entries), plus the set of skills
// and services it advertises to the marketplace.
package entity

import (
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	sagecrypto "github.com/aicollab-project/platform/crypto"
	"github.com/aicollab-project/platform/crypto/keys"
)

// Skill is a capability an entity claims to offer, e.g. "summarize.text".
type Skill string

// Service describes one task-performing offering an entity publishes to
// the marketplace.
type Service struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Capabilities []Skill   `json:"capabilities"`
	PricePerTask string    `json:"price_per_task"`
	Endpoint     string    `json:"endpoint,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Entity is a uniquely identified participant: one Ed25519 signing
// keypair, a separately generated X25519 keypair for session key
// agreement (not derived from the signing key), and the
// skills/services it has registered. Its wallet and reputation record
// live in the economy and reputation packages, keyed by Entity.ID — an
// Entity is the identity root, not a container for every other record.
type Entity struct {
	mu sync.RWMutex

	id       string
	keyPair  sagecrypto.KeyPair
	x25519   sagecrypto.KeyPair
	skills   map[Skill]struct{}
	services map[string]Service
	created  time.Time
}

// New creates an Entity with a freshly generated Ed25519 signing keypair
// and an independently generated random X25519 keypair for session
// handshakes. id must be unique
// across the platform; callers typically derive it from the public key
// (see ID()) or assign a human-chosen name.
func New(id string) (*Entity, error) {
	kp, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate signing keypair: %w", err)
	}
	xkp, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate x25519 keypair: %w", err)
	}
	if id == "" {
		id = kp.ID()
	}
	return &Entity{
		id:       id,
		keyPair:  kp,
		x25519:   xkp,
		skills:   make(map[Skill]struct{}),
		services: make(map[string]Service),
		created:  time.Now(),
	}, nil
}

// FromKeyPair wraps an already-generated signing keypair as an Entity,
// generating a new random X25519 keypair; the X25519 keypair is not
// derived from kp, so it differs on every call. Used when loading an entity's
// identity back out of crypto/vault.
func FromKeyPair(id string, kp sagecrypto.KeyPair) (*Entity, error) {
	xkp, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate x25519 keypair: %w", err)
	}
	return &Entity{
		id:       id,
		keyPair:  kp,
		x25519:   xkp,
		skills:   make(map[Skill]struct{}),
		services: make(map[string]Service),
		created:  time.Now(),
	}, nil
}

// ID returns the entity's unique identifier.
func (e *Entity) ID() string { return e.id }

// PublicKey returns the Ed25519 public key used to verify this entity's
// wire signatures.
func (e *Entity) PublicKey() ed25519.PublicKey {
	return e.keyPair.PublicKey().(ed25519.PublicKey)
}

// Sign signs message with the entity's Ed25519 private key.
func (e *Entity) Sign(message []byte) ([]byte, error) {
	return e.keyPair.Sign(message)
}

// X25519PublicKey returns the entity's whole session-agreement keypair
// (private half included), for HPKE handshake key exchange.
func (e *Entity) X25519PublicKey() sagecrypto.KeyPair {
	return e.x25519
}

// CreatedAt returns when this Entity value was constructed.
func (e *Entity) CreatedAt() time.Time { return e.created }

// RegisterSkill adds s to the entity's advertised capability set. It is
// idempotent.
func (e *Entity) RegisterSkill(s Skill) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.skills[s] = struct{}{}
}

// Skills returns the entity's currently registered capabilities.
func (e *Entity) Skills() []Skill {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Skill, 0, len(e.skills))
	for s := range e.skills {
		out = append(out, s)
	}
	return out
}

// HasSkill reports whether the entity has registered s.
func (e *Entity) HasSkill(s Skill) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.skills[s]
	return ok
}

// RegisterService publishes svc under the platform's marketplace,
// replacing any prior service of the same name. RegisteredAt is set if
// zero.
func (e *Entity) RegisterService(svc Service) {
	if svc.RegisteredAt.IsZero() {
		svc.RegisteredAt = time.Now()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.services[svc.Name] = svc
	for _, c := range svc.Capabilities {
		e.skills[c] = struct{}{}
	}
}

// Services returns every service the entity currently advertises.
func (e *Entity) Services() []Service {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Service, 0, len(e.services))
	for _, s := range e.services {
		out = append(out, s)
	}
	return out
}

// Service looks up a published service by name.
func (e *Entity) Service(name string) (Service, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.services[name]
	return s, ok
}
