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

package transport

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicollab-project/platform/protoerr"
	"github.com/aicollab-project/platform/protocol/wire"
)

func newTestMessage(t *testing.T, priv ed25519.PrivateKey) *wire.Message {
	t.Helper()
	m := &wire.Message{
		Version:     "1.1",
		Type:        wire.MessageType("task_request"),
		SenderID:    "agent-a",
		RecipientID: "agent-b",
		Timestamp:   time.Now(),
		Nonce:       "nonce-1",
		Payload:     []byte(`{"hello":"world"}`),
	}
	m.Sign(priv)
	return m
}

func TestMessageHandlerRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	echo := func(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
		reply := *msg
		reply.SenderID, reply.RecipientID = msg.RecipientID, msg.SenderID
		reply.Sign(priv)
		return &reply, nil
	}

	srv := NewServer(echo, pub, nil)
	mux := http.NewServeMux()
	srv.Mount(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := NewClient(ts.URL, nil)
	msg := newTestMessage(t, priv)

	resp, err := client.Send(context.Background(), msg)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "agent-b", resp.SenderID)
	assert.NoError(t, resp.Verify(pub))
}

func TestMessageHandlerRejectsBadVersion(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	srv := NewServer(func(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
		return nil, nil
	}, pub, nil)
	mux := http.NewServeMux()
	srv.Mount(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	msg := newTestMessage(t, priv)
	msg.Version = "9.9"
	env, err := toEnvelope(msg)
	require.NoError(t, err)
	body, _ := json.Marshal(env)

	resp, err := http.Post(ts.URL+"/v1.1/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var eb errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&eb))
	assert.Equal(t, protoerr.InvalidVersion, eb.Error)
}

func TestHealthAndPublicKeyHandlers(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	srv := NewServer(nil, pub, nil)
	mux := http.NewServeMux()
	srv.Mount(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1.1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	resp2, err := http.Get(ts.URL + "/v1.1/public-key")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var keyResp map[string]string
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&keyResp))
	decoded, err := base64.StdEncoding.DecodeString(keyResp["public_key"])
	require.NoError(t, err)
	assert.Equal(t, []byte(pub), decoded)
}

func TestClientSendRetriesThenFails(t *testing.T) {
	orig := RetryBackoff
	RetryBackoff = []time.Duration{time.Millisecond, time.Millisecond}
	defer func() { RetryBackoff = orig }()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, nil)
	msg := newTestMessage(t, priv)
	_, err = client.Send(context.Background(), msg)
	assert.Error(t, err)
}

func TestLegacyV01MessageRouteServed(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	srv := NewServer(func(ctx context.Context, msg *wire.Message) (*wire.Message, error) {
		return nil, nil
	}, pub, nil)
	mux := http.NewServeMux()
	srv.Mount(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	msg := newTestMessage(t, priv)
	env, err := toEnvelope(msg)
	require.NoError(t, err)
	body, _ := json.Marshal(env)

	resp, err := http.Post(ts.URL+"/v0.1/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
