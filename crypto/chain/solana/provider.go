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

// Package solana implements chain.ChainProvider for Solana: address
// derivation and signature verification only. It never submits
// transactions — per spec.md §1's non-goal ("no on-chain settlement
// guarantee, bridges are informational"), this provider exists solely
// so bridge.Reporter can stamp an informational Solana address onto a
// mint/burn event for an entity that has published one.
package solana

import (
	"context"
	"crypto"
	"crypto/ed25519"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	sagecrypto "github.com/aicollab-project/platform/crypto"
	"github.com/aicollab-project/platform/crypto/chain"
)

func init() {
	chain.RegisterProvider(NewProvider())
}

// Provider implements chain.ChainProvider for Solana.
type Provider struct{}

// NewProvider creates a Solana chain provider.
func NewProvider() chain.ChainProvider {
	return &Provider{}
}

func (p *Provider) ChainType() chain.ChainType { return chain.ChainTypeSolana }

func (p *Provider) SupportedNetworks() []chain.Network {
	return []chain.Network{chain.NetworkSolanaMainnet, chain.NetworkSolanaDevnet, chain.NetworkSolanaTestnet}
}

// GenerateAddress derives a Solana base58 address directly from an
// Ed25519 public key (Solana addresses are the raw public key, base58
// encoded — no hashing step, unlike Ethereum).
func (p *Provider) GenerateAddress(publicKey crypto.PublicKey, network chain.Network) (*chain.Address, error) {
	pub, ok := publicKey.(ed25519.PublicKey)
	if !ok {
		return nil, chain.ErrInvalidPublicKey
	}
	if !p.isNetworkSupported(network) {
		return nil, chain.ErrNetworkNotSupported
	}
	pk := solanago.PublicKeyFromBytes(pub)
	return &chain.Address{
		Value:     pk.String(),
		Chain:     chain.ChainTypeSolana,
		Network:   network,
		PublicKey: publicKey,
	}, nil
}

func (p *Provider) GetPublicKeyFromAddress(_ context.Context, address string, _ chain.Network) (crypto.PublicKey, error) {
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, chain.ErrInvalidAddress
	}
	return ed25519.PublicKey(raw), nil
}

func (p *Provider) ValidateAddress(address string, network chain.Network) error {
	if !p.isNetworkSupported(network) {
		return chain.ErrNetworkNotSupported
	}
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return chain.ErrInvalidAddress
	}
	return nil
}

// SignTransaction is unsupported: this provider is informational only
// and never signs or submits chain transactions.
func (p *Provider) SignTransaction(_ sagecrypto.KeyPair, _ interface{}) ([]byte, error) {
	return nil, chain.ErrOperationNotSupported
}

func (p *Provider) VerifySignature(publicKey crypto.PublicKey, message []byte, signature []byte) error {
	pub, ok := publicKey.(ed25519.PublicKey)
	if !ok {
		return chain.ErrInvalidPublicKey
	}
	if !ed25519.Verify(pub, message, signature) {
		return chain.ErrInvalidAddress
	}
	return nil
}

func (p *Provider) isNetworkSupported(n chain.Network) bool {
	for _, s := range p.SupportedNetworks() {
		if s == n {
			return true
		}
	}
	return false
}
