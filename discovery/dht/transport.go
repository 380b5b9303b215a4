// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package dht

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// lookupRounds bounds how many iterative-deepening rounds IterativeLookup
// will run before giving up on finding closer peers.
const lookupRounds = 8

// RPCClient issues the FindNode RPC against a remote peer's DHT listener.
type RPCClient interface {
	FindNode(ctx context.Context, peer PeerInfo, target NodeID) ([]PeerInfo, error)
}

// HTTPRPCClient implements RPCClient over plain HTTP, matching the rest
// of this module's preference for an HTTP wire format over a bespoke UDP
// one (see protocol/transport).
type HTTPRPCClient struct {
	Client *http.Client
}

// NewHTTPRPCClient returns an HTTPRPCClient with a probeTimeout deadline.
func NewHTTPRPCClient() *HTTPRPCClient {
	return &HTTPRPCClient{Client: &http.Client{Timeout: probeTimeout}}
}

type findNodeRequest struct {
	Target NodeID `json:"target"`
}

type findNodeResponse struct {
	Peers []PeerInfo `json:"peers"`
}

// FindNode asks peer which nodes it knows closest to target.
func (c *HTTPRPCClient) FindNode(ctx context.Context, peer PeerInfo, target NodeID) ([]PeerInfo, error) {
	body, err := json.Marshal(findNodeRequest{Target: target})
	if err != nil {
		return nil, fmt.Errorf("encoding find_node request: %w", err)
	}
	url := "http://" + peer.Address + "/dht/find_node"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("find_node to %s: http %d", peer.Address, resp.StatusCode)
	}

	var out findNodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding find_node response: %w", err)
	}
	return out.Peers, nil
}

// HTTPPinger implements Pinger by requesting a peer's /dht/ping endpoint,
// used by Registry.Observe to liveness-check the least-recently-seen
// entry of a full bucket before evicting it.
type HTTPPinger struct {
	Client *http.Client
}

// NewHTTPPinger returns an HTTPPinger with a probeTimeout deadline.
func NewHTTPPinger() *HTTPPinger {
	return &HTTPPinger{Client: &http.Client{Timeout: probeTimeout}}
}

// Ping reports whether addr answered its /dht/ping endpoint with 200 OK.
func (p *HTTPPinger) Ping(addr string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/dht/ping", nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Handler serves the /dht/ping and /dht/find_node endpoints that
// HTTPPinger and HTTPRPCClient call against this node.
func Handler(r *Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/dht/ping", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/dht/find_node", func(w http.ResponseWriter, req *http.Request) {
		var in findNodeRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(findNodeResponse{Peers: r.FindNode(in.Target)})
	})
	return mux
}

// IterativeLookup performs a Kademlia iterative node lookup for target,
// seeding from the Alpha closest peers r already knows and fanning each
// round's unqueried candidates out concurrently over client. Peers
// returned by a round are folded into r's routing table via Observe
// before the next round starts, so later rounds see progressively
// closer candidates. Unreachable peers are skipped rather than failing
// the whole lookup.
func IterativeLookup(ctx context.Context, r *Registry, client RPCClient, target NodeID) ([]PeerInfo, error) {
	queried := make(map[NodeID]bool)
	best := r.FindNode(target)
	if len(best) == 0 {
		return nil, nil
	}

	for round := 0; round < lookupRounds; round++ {
		var toQuery []PeerInfo
		for _, p := range best {
			if !queried[p.ID] {
				toQuery = append(toQuery, p)
			}
		}
		if len(toQuery) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		results := make([][]PeerInfo, len(toQuery))
		for i, p := range toQuery {
			i, p := i, p
			queried[p.ID] = true
			g.Go(func() error {
				peers, err := client.FindNode(gctx, p, target)
				if err != nil {
					return nil // unreachable peer: not fatal to the lookup
				}
				results[i] = peers
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		progressed := false
		for _, peers := range results {
			for _, p := range peers {
				if p.ID == r.self || queried[p.ID] {
					continue
				}
				r.Observe(p)
				progressed = true
			}
		}
		if !progressed {
			break
		}
		best = r.FindNode(target)
	}
	return best, nil
}
