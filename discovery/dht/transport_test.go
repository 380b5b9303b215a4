// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package dht

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerServesPingAndFindNode(t *testing.T) {
	r := New(idFor("self"), nil)
	r.Observe(PeerInfo{ID: idFor("peer-1"), Address: "peer-1:9000"})

	srv := httptest.NewServer(Handler(r))
	defer srv.Close()

	pinger := &HTTPPinger{Client: srv.Client()}
	assert.True(t, pinger.Ping(strings.TrimPrefix(srv.URL, "http://")))

	client := &HTTPRPCClient{Client: srv.Client()}
	peers, err := client.FindNode(context.Background(),
		PeerInfo{Address: strings.TrimPrefix(srv.URL, "http://")}, idFor("peer-1"))
	require.NoError(t, err)
	require.NotEmpty(t, peers)
	assert.Equal(t, idFor("peer-1"), peers[0].ID)
}

func TestHTTPPingerFailsAgainstUnreachableAddress(t *testing.T) {
	pinger := NewHTTPPinger()
	assert.False(t, pinger.Ping("127.0.0.1:1"))
}

// fakeRPCClient simulates a small fixed network: each node knows only
// the peers wired into its routing table, so IterativeLookup must chain
// through intermediate nodes to discover the target.
type fakeRPCClient struct {
	registries map[string]*Registry // keyed by PeerInfo.Address
}

func (c *fakeRPCClient) FindNode(_ context.Context, peer PeerInfo, target NodeID) ([]PeerInfo, error) {
	reg, ok := c.registries[peer.Address]
	if !ok {
		return nil, assert.AnError
	}
	return reg.FindNode(target), nil
}

func TestIterativeLookupChainsThroughIntermediatePeers(t *testing.T) {
	selfID := idFor("self")
	targetInfo := PeerInfo{ID: idFor("target"), Address: "target:9000"}
	bridgeInfo := PeerInfo{ID: idFor("bridge"), Address: "bridge:9000"}

	// self only knows about bridge; bridge knows about target.
	self := New(selfID, nil)
	self.Observe(bridgeInfo)

	bridgeRegistry := New(bridgeInfo.ID, nil)
	bridgeRegistry.Observe(targetInfo)

	client := &fakeRPCClient{registries: map[string]*Registry{
		"bridge:9000": bridgeRegistry,
	}}

	found, err := IterativeLookup(context.Background(), self, client, targetInfo.ID)
	require.NoError(t, err)

	var gotTarget bool
	for _, p := range found {
		if p.ID == targetInfo.ID {
			gotTarget = true
		}
	}
	assert.True(t, gotTarget, "expected lookup to discover target via bridge, found %+v", found)
}

func TestIterativeLookupReturnsEmptyWhenRoutingTableIsEmpty(t *testing.T) {
	self := New(idFor("self"), nil)
	client := &fakeRPCClient{registries: map[string]*Registry{}}

	found, err := IterativeLookup(context.Background(), self, client, idFor("target"))
	require.NoError(t, err)
	assert.Empty(t, found)
}
