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

// Package auth issues and verifies bearer JWTs for entities, and
// manages hashed API keys as an alternative credential, per spec.md's
// combined-auth HTTP surface.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aicollab-project/platform/protoerr"
)

// Claims is the bearer JWT payload: {sub: entity_id, role?, exp, iat}.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HS256 bearer tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer signing with secret, tokens valid for ttl.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl}
}

// IssueToken mints a signed JWT for entityID, carrying role if non-empty.
func (i *Issuer) IssueToken(entityID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: entityID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", protoerr.Wrap(protoerr.InternalError, "sign token", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a bearer token, returning its claims.
func (i *Issuer) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, protoerr.New(protoerr.Unauthenticated, "unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "token is expired") {
			return nil, protoerr.Wrap(protoerr.TokenExpired, "token expired", err)
		}
		return nil, protoerr.Wrap(protoerr.Unauthenticated, "invalid token", err)
	}
	if !token.Valid {
		return nil, protoerr.New(protoerr.Unauthenticated, "invalid token")
	}
	return claims, nil
}

// APIKeyStore issues and verifies API keys, persisting only their SHA-256
// hash so the raw key is never recoverable from storage.
type APIKeyStore struct {
	mu     sync.RWMutex
	hashes map[string]string // entity_id -> hex(sha256(key))
}

// NewAPIKeyStore creates an empty store.
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{hashes: make(map[string]string)}
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// IssueKey generates a fresh random API key for entityID and stores
// its hash, returning the raw key (shown to the caller exactly once).
func (s *APIKeyStore) IssueKey(entityID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", protoerr.Wrap(protoerr.InternalError, "generate api key", err)
	}
	key := base64.RawURLEncoding.EncodeToString(raw)

	s.mu.Lock()
	s.hashes[entityID] = hashKey(key)
	s.mu.Unlock()
	return key, nil
}

// Verify reports whether key matches entityID's issued key.
func (s *APIKeyStore) Verify(entityID, key string) bool {
	s.mu.RLock()
	want, ok := s.hashes[entityID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return want == hashKey(key)
}

// Revoke removes entityID's API key.
func (s *APIKeyStore) Revoke(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, entityID)
}

// Principal is the authenticated caller attached to a request context
// once either credential verifies.
type Principal struct {
	EntityID string
	Role     string
	Via      string // "jwt" or "api_key"
}

// Middleware builds an http.Handler wrapper accepting either a bearer
// JWT or an X-API-Key header (or both); the request fails
// UNAUTHENTICATED if neither credential verifies.
func Middleware(issuer *Issuer, keys *APIKeyStore, next func(http.ResponseWriter, *http.Request, Principal)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token := strings.TrimPrefix(auth, "Bearer ")
			if claims, err := issuer.VerifyToken(token); err == nil {
				next(w, r, Principal{EntityID: claims.Subject, Role: claims.Role, Via: "jwt"})
				return
			}
		}
		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" && keys != nil {
			// The key alone doesn't name its owner; callers present it
			// alongside an entity_id header for this lookup.
			entityID := r.Header.Get("X-Entity-ID")
			if entityID != "" && keys.Verify(entityID, apiKey) {
				next(w, r, Principal{EntityID: entityID, Via: "api_key"})
				return
			}
		}
		http.Error(w, `{"error":"`+protoerr.Unauthenticated+`"}`, http.StatusUnauthorized)
	}
}

// RequireRole wraps a Principal-aware handler, rejecting callers whose
// role doesn't match (e.g. gating POST /economy/mint to "admin").
func RequireRole(role string, next func(http.ResponseWriter, *http.Request, Principal)) func(http.ResponseWriter, *http.Request, Principal) {
	return func(w http.ResponseWriter, r *http.Request, p Principal) {
		if p.Role != role {
			http.Error(w, `{"error":"`+protoerr.Forbidden+`"}`, http.StatusForbidden)
			return
		}
		next(w, r, p)
	}
}
