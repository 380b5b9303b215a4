// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

// Package dht implements a Kademlia-style DHTRegistry: SHA-1-derived
// 160-bit node IDs, k-bucket routing, and a signed-value store with
// TTL and periodic republish. The wire transport (HTTP ping and
// find_node endpoints) lives in dht/transport.go.
package dht

import (
	"crypto/sha1"
	"math/bits"
	"sort"
	"sync"
	"time"
)

const (
	IDBits       = 160
	BucketSize   = 20 // k
	Alpha        = 3
	ValueTTL     = time.Hour
	RepublishInterval = 10 * time.Minute
	probeTimeout = 5 * time.Second
)

// NodeID is a 160-bit Kademlia identifier, SHA-1 of the node's public key.
type NodeID [20]byte

// IDFromBytes derives a NodeID by hashing b (typically an Ed25519 public key).
func IDFromBytes(b []byte) NodeID {
	return NodeID(sha1.Sum(b))
}

// Distance returns the XOR distance between two IDs.
func Distance(a, b NodeID) NodeID {
	var d NodeID
	for i := range a {
		d[i] = a[i] ^ b[i]
	}
	return d
}

// bucketIndex returns which of the 160 k-buckets d falls into: the
// index of its highest set bit (0 = closest bucket, 159 = farthest).
func bucketIndex(d NodeID) int {
	for i, b := range d {
		if b != 0 {
			return (len(d)-1-i)*8 + bits.Len8(b) - 1
		}
	}
	return -1 // d is zero: identical IDs
}

// PeerInfo is a routable node, stored in both the routing table and
// (signed, as the opaque Value) the value store.
type PeerInfo struct {
	ID        NodeID
	Address   string // host:port
	PublicKey []byte
	Signature []byte
	StoredAt  time.Time
}

type bucketEntry struct {
	peer     PeerInfo
	lastSeen time.Time
}

type kBucket struct {
	mu      sync.Mutex
	entries []bucketEntry
}

func (k *kBucket) touch(p PeerInfo) (evictCandidate *PeerInfo) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i, e := range k.entries {
		if e.peer.ID == p.ID {
			k.entries[i].lastSeen = time.Now()
			k.entries[i].peer = p
			return nil
		}
	}
	if len(k.entries) < BucketSize {
		k.entries = append(k.entries, bucketEntry{peer: p, lastSeen: time.Now()})
		return nil
	}
	// Bucket full: the least-recently-seen entry is returned for the
	// caller to liveness-probe; if it doesn't respond, Evict replaces it.
	oldest := k.entries[0]
	for _, e := range k.entries[1:] {
		if e.lastSeen.Before(oldest.lastSeen) {
			oldest = e
		}
	}
	return &oldest.peer
}

func (k *kBucket) evict(id NodeID, replacement PeerInfo) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, e := range k.entries {
		if e.peer.ID == id {
			k.entries[i] = bucketEntry{peer: replacement, lastSeen: time.Now()}
			return
		}
	}
}

func (k *kBucket) snapshot() []PeerInfo {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]PeerInfo, len(k.entries))
	for i, e := range k.entries {
		out[i] = e.peer
	}
	return out
}

// Pinger is consulted when a full bucket needs a liveness check on its
// least-recently-seen entry before evicting it.
type Pinger interface {
	Ping(addr string) bool
}

// Registry is one node's view of the DHT: its routing table and
// signed value store.
type Registry struct {
	self    NodeID
	buckets [IDBits]*kBucket
	pinger  Pinger

	valuesMu sync.RWMutex
	values   map[string]PeerInfo
}

// New creates a Registry for the node identified by self.
func New(self NodeID, pinger Pinger) *Registry {
	r := &Registry{self: self, pinger: pinger, values: make(map[string]PeerInfo)}
	for i := range r.buckets {
		r.buckets[i] = &kBucket{}
	}
	return r
}

// Observe records a sighting of peer, splitting/evicting per Kademlia
// rules: if peer's bucket has room, it's added; if full, the
// least-recently-seen entry is pinged and replaced only if it fails to
// respond.
func (r *Registry) Observe(peer PeerInfo) {
	if peer.ID == r.self {
		return
	}
	idx := bucketIndex(Distance(r.self, peer.ID))
	if idx < 0 {
		return
	}
	bucket := r.buckets[idx]
	evictCandidate := bucket.touch(peer)
	if evictCandidate == nil {
		return
	}
	alive := r.pinger != nil && r.pinger.Ping(evictCandidate.Address)
	if !alive {
		bucket.evict(evictCandidate.ID, peer)
	}
}

// FindNode returns the Alpha closest known peers to target.
func (r *Registry) FindNode(target NodeID) []PeerInfo {
	type scored struct {
		peer PeerInfo
		dist NodeID
	}
	var all []scored
	for _, b := range r.buckets {
		for _, p := range b.snapshot() {
			all = append(all, scored{peer: p, dist: Distance(target, p.ID)})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		for k := 0; k < len(all[i].dist); k++ {
			if all[i].dist[k] != all[j].dist[k] {
				return all[i].dist[k] < all[j].dist[k]
			}
		}
		return false
	})
	n := Alpha
	if n > len(all) {
		n = len(all)
	}
	result := make([]PeerInfo, n)
	for i := 0; i < n; i++ {
		result[i] = all[i].peer
	}
	return result
}

// Store records a signed PeerInfo under key, stamped with the current
// time for TTL expiry.
func (r *Registry) Store(key string, value PeerInfo) {
	value.StoredAt = time.Now()
	r.valuesMu.Lock()
	r.values[key] = value
	r.valuesMu.Unlock()
}

// FindValue returns the value stored under key if present and not
// expired, short-circuiting a full node lookup.
func (r *Registry) FindValue(key string) (PeerInfo, bool) {
	r.valuesMu.RLock()
	v, ok := r.values[key]
	r.valuesMu.RUnlock()
	if !ok || time.Since(v.StoredAt) > ValueTTL {
		return PeerInfo{}, false
	}
	return v, true
}

// ExpireValues removes entries past ValueTTL, returning the count removed.
func (r *Registry) ExpireValues() int {
	r.valuesMu.Lock()
	defer r.valuesMu.Unlock()
	removed := 0
	for k, v := range r.values {
		if time.Since(v.StoredAt) > ValueTTL {
			delete(r.values, k)
			removed++
		}
	}
	return removed
}

// RepublishKeys returns the keys whose values are due for periodic
// republish (older than RepublishInterval but not yet expired).
func (r *Registry) RepublishKeys() []string {
	r.valuesMu.RLock()
	defer r.valuesMu.RUnlock()
	var keys []string
	for k, v := range r.values {
		age := time.Since(v.StoredAt)
		if age >= RepublishInterval && age <= ValueTTL {
			keys = append(keys, k)
		}
	}
	return keys
}
