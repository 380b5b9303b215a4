// Copyright (C) 2025 sage-x-project
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


package ethereum

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/aicollab-project/platform/crypto/chain"
	sagecrypto "github.com/aicollab-project/platform/crypto"
	gethcommon "github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Provider implements ChainProvider for Ethereum
type Provider struct{}

// NewProvider creates a new Ethereum chain provider
func NewProvider() chain.ChainProvider {
	return &Provider{}
}

// ChainType returns the blockchain type
func (p *Provider) ChainType() chain.ChainType {
	return chain.ChainTypeEthereum
}

// SupportedNetworks returns the list of supported networks
func (p *Provider) SupportedNetworks() []chain.Network {
	return []chain.Network{
		chain.NetworkEthereumMainnet,
		chain.NetworkEthereumGoerli,
		chain.NetworkEthereumSepolia,
	}
}

// GenerateAddress generates an Ethereum address from a public key
func (p *Provider) GenerateAddress(publicKey crypto.PublicKey, network chain.Network) (*chain.Address, error) {
	// Ethereum uses secp256k1 keys
	ecdsaPubKey, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, chain.ErrInvalidPublicKey
	}

	// Validate network
	if !p.isNetworkSupported(network) {
		return nil, chain.ErrNetworkNotSupported
	}

	address := gethcrypto.PubkeyToAddress(*ecdsaPubKey).Hex()

	return &chain.Address{
		Value:     address,
		Chain:     chain.ChainTypeEthereum,
		Network:   network,
		PublicKey: publicKey,
	}, nil
}

// GetPublicKeyFromAddress retrieves the public key from an address
// Note: This is not possible for Ethereum without additional transaction data
func (p *Provider) GetPublicKeyFromAddress(ctx context.Context, address string, network chain.Network) (crypto.PublicKey, error) {
	// Ethereum addresses are derived from public keys via one-way hash
	// Cannot recover public key from address alone
	return nil, chain.ErrOperationNotSupported
}

// ValidateAddress checks if an address is valid
func (p *Provider) ValidateAddress(address string, network chain.Network) error {
	if !gethcommon.IsHexAddress(address) {
		return fmt.Errorf("%w: invalid hex encoding", chain.ErrInvalidAddress)
	}

	// Validate network
	if !p.isNetworkSupported(network) {
		return chain.ErrNetworkNotSupported
	}

	return nil
}

// SignTransaction signs an arbitrary payload using the Ethereum signing
// scheme (Keccak256 + recoverable ECDSA). transaction must be a []byte or
// something JSON-marshalable; full RLP transaction encoding is out of
// scope for this informational bridge.
func (p *Provider) SignTransaction(keyPair sagecrypto.KeyPair, transaction interface{}) ([]byte, error) {
	if keyPair.Type() != sagecrypto.KeyTypeSecp256k1 {
		return nil, fmt.Errorf("%w: Ethereum requires secp256k1 keys", chain.ErrInvalidPublicKey)
	}
	privKey, ok := keyPair.PrivateKey().(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: malformed secp256k1 private key", chain.ErrInvalidPublicKey)
	}

	payload, err := transactionBytes(transaction)
	if err != nil {
		return nil, err
	}
	hash := gethcrypto.Keccak256(payload)
	return gethcrypto.Sign(hash, privKey)
}

func transactionBytes(transaction interface{}) ([]byte, error) {
	if raw, ok := transaction.([]byte); ok {
		return raw, nil
	}
	raw, err := json.Marshal(transaction)
	if err != nil {
		return nil, fmt.Errorf("marshaling transaction payload: %w", err)
	}
	return raw, nil
}

// VerifySignature verifies a recoverable secp256k1 signature over message
// (hashed with Keccak256) against publicKey.
func (p *Provider) VerifySignature(publicKey crypto.PublicKey, message []byte, signature []byte) error {
	ecdsaPubKey, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return chain.ErrInvalidPublicKey
	}

	hash := gethcrypto.Keccak256(message)
	sig := signature
	if len(sig) == 65 {
		sig = sig[:64] // drop recovery id; VerifySignature wants raw R||S
	}
	if !gethcrypto.VerifySignature(gethcrypto.FromECDSAPub(ecdsaPubKey), hash, sig) {
		return sagecrypto.ErrInvalidSignature
	}
	return nil
}

func (p *Provider) isNetworkSupported(network chain.Network) bool {
	for _, n := range p.SupportedNetworks() {
		if n == network {
			return true
		}
	}
	return false
}

// init registers the provider
func init() {
	chain.RegisterProvider(NewProvider())
}