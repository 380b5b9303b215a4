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

package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"sync"
)

// AlgorithmInfo carries metadata about a registered signing/key-exchange
// algorithm, including whether it can be used for RFC 9421 HTTP message
// signatures over the transport layer.
type AlgorithmInfo struct {
	KeyType               KeyType
	Name                  string
	Description           string
	RFC9421Algorithm      string
	SupportsRFC9421       bool
	SupportsKeyGeneration bool
	SupportsSignature     bool
	SupportsEncryption    bool
}

var (
	registry                 = make(map[KeyType]*AlgorithmInfo)
	rfc9421ToKeyType         = make(map[string]KeyType)
	registryMutex            sync.RWMutex
	ErrAlgorithmNotSupported = errors.New("algorithm not supported")
	ErrAlgorithmExists       = errors.New("algorithm already registered")
)

// RegisterAlgorithm adds an algorithm to the registry. Called from each
// key-type package's init().
func RegisterAlgorithm(info AlgorithmInfo) error {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if info.KeyType == "" {
		return errors.New("key type cannot be empty")
	}
	if _, exists := registry[info.KeyType]; exists {
		return ErrAlgorithmExists
	}
	if info.SupportsRFC9421 && info.RFC9421Algorithm == "" {
		return errors.New("RFC9421Algorithm must be set if SupportsRFC9421 is true")
	}

	registry[info.KeyType] = &info
	if info.SupportsRFC9421 && info.RFC9421Algorithm != "" {
		rfc9421ToKeyType[info.RFC9421Algorithm] = info.KeyType
	}
	return nil
}

// GetAlgorithmInfo returns a copy of the registered algorithm's metadata.
func GetAlgorithmInfo(keyType KeyType) (*AlgorithmInfo, error) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	info, exists := registry[keyType]
	if !exists {
		return nil, ErrAlgorithmNotSupported
	}
	infoCopy := *info
	return &infoCopy, nil
}

// ListSupportedAlgorithms returns every registered algorithm.
func ListSupportedAlgorithms() []AlgorithmInfo {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	result := make([]AlgorithmInfo, 0, len(registry))
	for _, info := range registry {
		result = append(result, *info)
	}
	return result
}

// ListRFC9421SupportedAlgorithms returns the RFC 9421 algorithm names of
// every registered algorithm that supports it.
func ListRFC9421SupportedAlgorithms() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	result := make([]string, 0, len(rfc9421ToKeyType))
	for algName := range rfc9421ToKeyType {
		result = append(result, algName)
	}
	return result
}

// GetRFC9421AlgorithmName returns the RFC 9421 algorithm name for keyType.
func GetRFC9421AlgorithmName(keyType KeyType) (string, error) {
	info, err := GetAlgorithmInfo(keyType)
	if err != nil {
		return "", err
	}
	if !info.SupportsRFC9421 {
		return "", errors.New("algorithm does not support RFC 9421")
	}
	return info.RFC9421Algorithm, nil
}

// GetKeyTypeFromRFC9421Algorithm returns the key type registered under an
// RFC 9421 algorithm name.
func GetKeyTypeFromRFC9421Algorithm(rfc9421Algorithm string) (KeyType, error) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	keyType, exists := rfc9421ToKeyType[rfc9421Algorithm]
	if !exists {
		return "", ErrAlgorithmNotSupported
	}
	return keyType, nil
}

// SupportsRFC9421 reports whether keyType supports RFC 9421 signatures.
func SupportsRFC9421(keyType KeyType) bool {
	info, err := GetAlgorithmInfo(keyType)
	return err == nil && info.SupportsRFC9421
}

// SupportsKeyGeneration reports whether keyType supports key generation.
func SupportsKeyGeneration(keyType KeyType) bool {
	info, err := GetAlgorithmInfo(keyType)
	return err == nil && info.SupportsKeyGeneration
}

// SupportsSignature reports whether keyType supports digital signatures.
func SupportsSignature(keyType KeyType) bool {
	info, err := GetAlgorithmInfo(keyType)
	return err == nil && info.SupportsSignature
}

// IsAlgorithmSupported reports whether keyType is registered at all.
func IsAlgorithmSupported(keyType KeyType) bool {
	_, err := GetAlgorithmInfo(keyType)
	return err == nil
}

// GetKeyTypeFromPublicKey maps a crypto.PublicKey value to its KeyType.
func GetKeyTypeFromPublicKey(publicKey interface{}) (KeyType, error) {
	switch publicKey.(type) {
	case ed25519.PublicKey:
		return KeyTypeEd25519, nil
	case *ecdsa.PublicKey:
		return KeyTypeSecp256k1, nil
	case *rsa.PublicKey:
		return KeyTypeRSA, nil
	default:
		return "", errors.New("unsupported public key type")
	}
}

// ValidateAlgorithmForPublicKey checks that an RFC 9421 algorithm name is
// compatible with the given public key's type. An empty algorithm is
// always valid (the key type is inferred instead).
func ValidateAlgorithmForPublicKey(publicKey interface{}, algorithm string) error {
	if algorithm == "" {
		return nil
	}

	keyType, err := GetKeyTypeFromRFC9421Algorithm(algorithm)
	if err != nil {
		return err
	}
	expectedKeyType, err := GetKeyTypeFromPublicKey(publicKey)
	if err != nil {
		return err
	}
	if keyType != expectedKeyType {
		expectedAlg, _ := GetRFC9421AlgorithmName(expectedKeyType)
		return errors.New("algorithm mismatch: key type is " + string(expectedKeyType) +
			" (expects " + expectedAlg + ") but algorithm is " + algorithm)
	}
	return nil
}
