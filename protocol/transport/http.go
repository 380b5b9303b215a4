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

// Package transport carries signed wire.Message envelopes between peers
// over HTTP, exposing the v1.1 message/health/public-key endpoints (plus
// a v0.1 legacy message route for one release of backward compatibility).
package transport

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aicollab-project/platform/internal/logger"
	"github.com/aicollab-project/platform/protoerr"
	"github.com/aicollab-project/platform/protocol/wire"
)

// Handler processes a verified inbound wire.Message and returns the
// message to send back, if any.
type Handler func(ctx context.Context, msg *wire.Message) (*wire.Message, error)

// Server exposes the peer messaging HTTP endpoints.
type Server struct {
	handler   Handler
	publicKey ed25519.PublicKey
	log       logger.Logger
}

// NewServer creates an HTTP transport server around handler.
func NewServer(handler Handler, publicKey ed25519.PublicKey, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Server{handler: handler, publicKey: publicKey, log: log}
}

// wireEnvelope is the JSON-over-HTTP shape of wire.Message: Payload and
// Signature travel base64-encoded rather than as raw JSON byte arrays so
// the format is stable across client implementations.
type wireEnvelope struct {
	Version     string `json:"version"`
	Type        string `json:"msg_type"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Timestamp   string `json:"timestamp"`
	Nonce       string `json:"nonce"`
	Payload     string `json:"payload"`
	SessionID   string `json:"session_id,omitempty"`
	Sequence    uint64 `json:"sequence,omitempty"`
	Signature   string `json:"signature,omitempty"`
}

func toEnvelope(m *wire.Message) (*wireEnvelope, error) {
	return &wireEnvelope{
		Version:     m.Version,
		Type:        string(m.Type),
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Timestamp:   m.Timestamp.UTC().Format(time.RFC3339Nano),
		Nonce:       m.Nonce,
		Payload:     base64.StdEncoding.EncodeToString(m.Payload),
		SessionID:   m.SessionID,
		Sequence:    m.Sequence,
		Signature:   base64.StdEncoding.EncodeToString(m.Signature),
	}, nil
}

func fromEnvelope(e *wireEnvelope) (*wire.Message, error) {
	ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.InvalidJSON, "invalid timestamp", err)
	}
	payload, err := base64.StdEncoding.DecodeString(e.Payload)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.InvalidJSON, "invalid payload encoding", err)
	}
	var sig []byte
	if e.Signature != "" {
		sig, err = base64.StdEncoding.DecodeString(e.Signature)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.InvalidJSON, "invalid signature encoding", err)
		}
	}
	return &wire.Message{
		Version:     e.Version,
		Type:        wire.MessageType(e.Type),
		SenderID:    e.SenderID,
		RecipientID: e.RecipientID,
		Timestamp:   ts,
		Nonce:       e.Nonce,
		Payload:     payload,
		SessionID:   e.SessionID,
		Sequence:    e.Sequence,
		Signature:   sig,
	}, nil
}

// errorBody is the JSON shape of every error response: always HTTP 200,
// the error code is read from the body. Cause is intentionally absent.
type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", logger.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, errorBody{Error: protoerr.CodeOf(err)})
}

// MessageHandler serves POST /v1.1/message and POST /v0.1/message.
func (s *Server) MessageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.writeError(w, protoerr.New(protoerr.InvalidJSON, "method not allowed"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			s.writeError(w, protoerr.Wrap(protoerr.InvalidJSON, "read body", err))
			return
		}
		defer r.Body.Close()

		var env wireEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			s.writeError(w, protoerr.Wrap(protoerr.InvalidJSON, "unmarshal envelope", err))
			return
		}

		if err := wire.CheckVersion(env.Version); err != nil {
			s.writeError(w, err)
			return
		}

		msg, err := fromEnvelope(&env)
		if err != nil {
			s.writeError(w, err)
			return
		}

		if err := wire.CheckTimestamp(msg.Timestamp, wire.ClockSkew, time.Now()); err != nil {
			s.writeError(w, err)
			return
		}

		resp, err := s.handler(r.Context(), msg)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if resp == nil {
			s.writeJSON(w, struct{}{})
			return
		}
		out, err := toEnvelope(resp)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, out)
	})
}

// HealthHandler serves GET /v1.1/health.
func (s *Server) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, map[string]string{"status": "ok"})
	})
}

// PublicKeyHandler serves GET /v1.1/public-key.
func (s *Server) PublicKeyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, map[string]string{
			"public_key": base64.StdEncoding.EncodeToString(s.publicKey),
		})
	})
}

// Mount registers every transport route on mux.
func (s *Server) Mount(mux *http.ServeMux) {
	mux.Handle("/v1.1/message", s.MessageHandler())
	mux.Handle("/v0.1/message", s.MessageHandler())
	mux.Handle("/v1.1/health", s.HealthHandler())
	mux.Handle("/v1.1/public-key", s.PublicKeyHandler())
}

// RetryBackoff is the client's fixed retry schedule for transient send
// failures.
var RetryBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Client sends wire.Message envelopes to a peer's HTTP transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

// NewClient creates a transport client targeting baseURL (e.g.
// "https://agent.example.com").
func NewClient(baseURL string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Send posts msg to the peer's /v1.1/message endpoint, retrying transient
// failures on the RetryBackoff schedule.
func (c *Client) Send(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
	env, err := toEnvelope(msg)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.InvalidJSON, "marshal envelope", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(RetryBackoff); attempt++ {
		resp, err := c.post(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == len(RetryBackoff) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(RetryBackoff[attempt]):
		}
	}
	return nil, protoerr.Wrap(protoerr.Timeout, "message send exhausted retries", lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (*wire.Message, error) {
	url := c.baseURL + "/v1.1/message"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env wireEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if env.Version == "" {
		return nil, nil // empty ack body
	}
	return fromEnvelope(&env)
}
