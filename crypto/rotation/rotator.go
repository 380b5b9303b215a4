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

// Package rotation rotates the Ed25519 signing identity sealed in an
// entity's vault, replacing it with a freshly generated keypair and
// recording an auditable history of the swap.
package rotation

import (
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	sagecrypto "github.com/aicollab-project/platform/crypto"
	"github.com/aicollab-project/platform/crypto/keys"
	"github.com/aicollab-project/platform/crypto/vault"
)

// VaultRotator rotates entity identities sealed in a vault.SecureVault. The
// vault stores the raw ed25519.PrivateKey bytes agentctl keygen writes, so
// rotation reads, discards, and reseals that same representation.
type VaultRotator struct {
	vault vault.SecureVault

	mu       sync.RWMutex
	history  map[string][]sagecrypto.KeyRotationEvent
	rotating map[string]bool
}

// NewVaultRotator returns a rotator backed by v.
func NewVaultRotator(v vault.SecureVault) *VaultRotator {
	return &VaultRotator{
		vault:    v,
		history:  make(map[string][]sagecrypto.KeyRotationEvent),
		rotating: make(map[string]bool),
	}
}

// Rotate reseals entityID under a freshly generated Ed25519 keypair. When
// keepOld is true the displaced key is preserved under
// "<entityID>.old.<oldKeyID>" rather than discarded.
func (r *VaultRotator) Rotate(entityID, passphrase string, keepOld bool) (sagecrypto.KeyPair, error) {
	r.mu.Lock()
	if r.rotating[entityID] {
		r.mu.Unlock()
		return nil, fmt.Errorf("entity %s is already being rotated", entityID)
	}
	r.rotating[entityID] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.rotating, entityID)
		r.mu.Unlock()
	}()

	oldSeed, err := r.vault.LoadDecrypted(entityID, passphrase)
	if err != nil {
		return nil, fmt.Errorf("load existing key: %w", err)
	}
	oldKeyPair, err := keys.NewEd25519KeyPair(ed25519.PrivateKey(oldSeed), "")
	if err != nil {
		return nil, fmt.Errorf("reconstruct existing key: %w", err)
	}

	newKeyPair, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate new key: %w", err)
	}
	newPriv, ok := newKeyPair.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("generated key is not Ed25519")
	}

	if keepOld {
		oldKeyID := fmt.Sprintf("%s.old.%s", entityID, oldKeyPair.ID())
		if err := r.vault.StoreEncrypted(oldKeyID, oldSeed, passphrase); err != nil {
			return nil, fmt.Errorf("preserve old key: %w", err)
		}
	}

	if err := r.vault.StoreEncrypted(entityID, newPriv, passphrase); err != nil {
		return nil, fmt.Errorf("seal new key: %w", err)
	}

	r.mu.Lock()
	r.history[entityID] = append(r.history[entityID], sagecrypto.KeyRotationEvent{
		Timestamp: time.Now(),
		OldKeyID:  oldKeyPair.ID(),
		NewKeyID:  newKeyPair.ID(),
		Reason:    "manual rotation via agentctl keyrotate",
	})
	r.mu.Unlock()

	return newKeyPair, nil
}

// History returns entityID's rotation events, most recent first.
func (r *VaultRotator) History(entityID string) []sagecrypto.KeyRotationEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.history[entityID]
	out := make([]sagecrypto.KeyRotationEvent, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	return out
}
