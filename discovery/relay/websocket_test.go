// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package relay

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicollab-project/platform/internal/logger"
)

func dialHub(t *testing.T, srv *httptest.Server, entityID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/relay/ws?entity_id=" + entityID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWSHubSendPushesToConnectedPeer(t *testing.T) {
	hub := NewWSHub(logger.NewLogger(&bytes.Buffer{}, logger.InfoLevel))
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dialHub(t, srv, "bob")
	// Give the server goroutine a moment to register the connection.
	require.Eventually(t, func() bool { return hub.Connected("bob") }, time.Second, 10*time.Millisecond)

	ok := hub.Send("bob", Message{Sender: "alice", Recipient: "bob", Payload: []byte("hi")})
	assert.True(t, ok)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "alice")
}

func TestWSHubSendReturnsFalseWhenNoSocket(t *testing.T) {
	hub := NewWSHub(logger.NewLogger(&bytes.Buffer{}, logger.InfoLevel))
	assert.False(t, hub.Send("nobody", Message{Recipient: "nobody"}))
}

func TestWSHubHandlerRejectsMissingEntityID(t *testing.T) {
	hub := NewWSHub(logger.NewLogger(&bytes.Buffer{}, logger.InfoLevel))
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/relay/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 400, resp.StatusCode)
	}
}

func TestWSHubReplacesStaleConnectionForSameEntity(t *testing.T) {
	hub := NewWSHub(logger.NewLogger(&bytes.Buffer{}, logger.InfoLevel))
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	first := dialHub(t, srv, "carol")
	require.Eventually(t, func() bool { return hub.Connected("carol") }, time.Second, 10*time.Millisecond)

	second := dialHub(t, srv, "carol")
	require.Eventually(t, func() bool { return hub.Connected("carol") }, time.Second, 10*time.Millisecond)

	ok := hub.Send("carol", Message{Sender: "dave", Recipient: "carol"})
	assert.True(t, ok)

	second.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := second.ReadMessage()
	assert.NoError(t, err)

	_ = first
}
