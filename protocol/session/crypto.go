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

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// keyset holds the directional AEAD keys derived from a session's shared
// secret. initiator uses c2s for outbound / s2c for inbound; the
// responder is the mirror image.
type keyset struct {
	initiator bool
	aeadOut   cipher.AEAD
	aeadIn    cipher.AEAD
}

// deriveKeyset expands the handshake's X25519 ECDH shared secret into
// direction-separated ChaCha20-Poly1305 keys via a single HKDF pass,
// domain-separated by session ID and a fixed info string.
func deriveKeyset(sessionID string, exporterSecret []byte, initiator bool) (*keyset, error) {
	if len(exporterSecret) == 0 {
		return nil, fmt.Errorf("empty exporter secret")
	}

	material := make([]byte, 128) // c2sEnc:32 | c2sSign:32(unused here) | s2cEnc:32 | s2cSign:32(unused)
	reader := hkdf.New(sha256.New, exporterSecret, []byte(sessionID), []byte("aicp-session-keys-v1"))
	if _, err := io.ReadFull(reader, material); err != nil {
		return nil, fmt.Errorf("derive session keys: %w", err)
	}

	c2sEnc := material[0:32]
	s2cEnc := material[64:96]

	var outKey, inKey []byte
	if initiator {
		outKey, inKey = c2sEnc, s2cEnc
	} else {
		outKey, inKey = s2cEnc, c2sEnc
	}

	aeadOut, err := chacha20poly1305.New(outKey)
	if err != nil {
		return nil, fmt.Errorf("create outbound AEAD: %w", err)
	}
	aeadIn, err := chacha20poly1305.New(inKey)
	if err != nil {
		return nil, fmt.Errorf("create inbound AEAD: %w", err)
	}

	return &keyset{initiator: initiator, aeadOut: aeadOut, aeadIn: aeadIn}, nil
}

// seal encrypts plaintext for the outbound direction. Output: nonce || ciphertext.
func (k *keyset) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	ct := k.aeadOut.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, len(nonce)+len(ct))
	copy(out, nonce)
	copy(out[len(nonce):], ct)
	return out, nil
}

// open decrypts data produced by the peer's seal.
func (k *keyset) open(data []byte) ([]byte, error) {
	if len(data) < chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce := data[:chacha20poly1305.NonceSize]
	ct := data[chacha20poly1305.NonceSize:]
	pt, err := k.aeadIn.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return pt, nil
}
