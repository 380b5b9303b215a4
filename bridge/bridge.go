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

// Package bridge reports mint/burn events to third-party chain adapters
// (Ethereum, Solana) for informational display only. Per spec.md §1's
// explicit non-goal ("no on-chain settlement guarantee, bridges are
// informational") and §9's note that chain adapters are external
// collaborators, nothing here sits on the settlement critical path: a
// chain adapter failing to report never rolls back a ledger mutation:
// economy.Ledger calls Report synchronously, but only after a mint/burn
// has been applied and persisted, and Report returns no error.
package bridge

import (
	"crypto"
	"crypto/ed25519"
	"time"

	chainpkg "github.com/aicollab-project/platform/crypto/chain"
	"github.com/aicollab-project/platform/internal/logger"
)

// Event mirrors the subset of an economy.Transaction the bridge reports:
// a mint or burn affecting total supply.
type Event struct {
	EntityID  string
	Type      string // "mint" or "burn"
	Amount    string
	Timestamp time.Time
}

// Reporter forwards Events to every registered chain.ChainProvider,
// stamping an informational on-chain address derived from the entity's
// Ed25519 public key when that chain supports address derivation from
// it. It never signs or submits anything; GenerateAddress is a pure
// function of the public key.
type Reporter struct {
	registry chainpkg.ChainRegistry
	log      logger.Logger
}

// NewReporter creates a Reporter backed by registry, which should already
// have had the desired ChainProvider implementations registered (see
// cmd/agentd's wiring of crypto/chain/ethereum and crypto/chain/solana).
func NewReporter(registry chainpkg.ChainRegistry, log logger.Logger) *Reporter {
	return &Reporter{registry: registry, log: log}
}

// Report logs, for every registered chain, the informational address an
// entity's mint/burn event would correspond to on that chain. Errors
// from individual providers are logged at WARN and otherwise swallowed —
// a chain the entity's key type doesn't support (e.g. an Ed25519 key
// against the Ethereum secp256k1-only provider) is expected, not fatal.
func (r *Reporter) Report(ev Event, entityPub crypto.PublicKey) {
	for _, ct := range r.registry.ListProviders() {
		provider, err := r.registry.GetProvider(ct)
		if err != nil {
			continue
		}
		networks := provider.SupportedNetworks()
		if len(networks) == 0 {
			continue
		}
		addr, err := provider.GenerateAddress(entityPub, networks[0])
		if err != nil {
			r.log.Debug("bridge: chain does not support entity key type",
				logger.String("chain", string(ct)),
				logger.String("entity_id", ev.EntityID))
			continue
		}
		r.log.Info("bridge: informational chain event recorded",
			logger.String("chain", string(ct)),
			logger.String("entity_id", ev.EntityID),
			logger.String("event_type", ev.Type),
			logger.String("amount", ev.Amount),
			logger.String("address", addr.Value))
	}
}

// Ed25519Address is a convenience for callers (e.g. cmd/agentctl) that
// only have an entity's Ed25519 public key and want its Solana-chain
// informational address without wiring a full Reporter.
func Ed25519Address(pub ed25519.PublicKey) (*chainpkg.Address, error) {
	provider, err := chainpkg.GetProvider(chainpkg.ChainTypeSolana)
	if err != nil {
		return nil, err
	}
	return provider.GenerateAddress(pub, chainpkg.NetworkSolanaMainnet)
}
