// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

// Package relay implements RelayService: a trusted intermediary that
// forwards messages to NAT-bound peers it has a live registration for,
// or queues them until the target next registers.
package relay

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aicollab-project/platform/protoerr"
)

const (
	DefaultHeartbeatInterval = 60 * time.Second
	DefaultStaleAfter        = 300 * time.Second
	DefaultMessageTTL        = 300 * time.Second
	DefaultMaxHops           = 5
	DefaultQueueCapacity     = 256
	DefaultRateLimitPerMin   = 100
)

// Peer is one relay-registered peer's reachability info.
type Peer struct {
	EntityID       string
	PublicKey      []byte
	ConnectionInfo string
	RegisteredAt   time.Time
	LastHeartbeat  time.Time
}

// Message is the envelope forwarded by the relay. The relay never
// inspects or mutates Payload — end-to-end authenticity rests entirely
// on the sender's signature over it.
type Message struct {
	ID        string
	Sender    string
	Recipient string
	Payload   []byte
	CreatedAt time.Time
	HopCount  int
	ViaRelay  string
}

// DeliverFunc is invoked when a message can be delivered immediately
// to a currently-registered recipient.
type DeliverFunc func(Message)

// Service is the relay: peer registry, per-recipient bounded queues,
// and per-peer rate limiting.
type Service struct {
	relayID string

	mu    sync.RWMutex
	peers map[string]*Peer

	queueMu sync.Mutex
	queues  map[string][]Message

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	queueCapacity int
	deliver       DeliverFunc
}

// New creates a Service identified as relayID. deliver is invoked for
// messages whose recipient is currently registered.
func New(relayID string, deliver DeliverFunc) *Service {
	return &Service{
		relayID:       relayID,
		peers:         make(map[string]*Peer),
		queues:        make(map[string][]Message),
		limiters:      make(map[string]*rate.Limiter),
		queueCapacity: DefaultQueueCapacity,
		deliver:       deliver,
	}
}

// Register adds or refreshes a peer's reachability info and delivers
// any messages that had queued up for it while it was offline.
func (s *Service) Register(p Peer) {
	now := time.Now()
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = now
	}
	p.LastHeartbeat = now

	s.mu.Lock()
	s.peers[p.EntityID] = &p
	s.mu.Unlock()

	s.drainQueue(p.EntityID)
}

// Heartbeat refreshes entityID's last-seen timestamp.
func (s *Service) Heartbeat(entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[entityID]
	if !ok {
		return protoerr.New(protoerr.UnknownRecipient, "no relay registration for "+entityID)
	}
	p.LastHeartbeat = time.Now()
	return nil
}

// EvictStale removes peers that haven't heartbeat within staleAfter,
// returning the count removed.
func (s *Service) EvictStale(staleAfter time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-staleAfter)
	removed := 0
	for id, p := range s.peers {
		if p.LastHeartbeat.Before(cutoff) {
			delete(s.peers, id)
			removed++
		}
	}
	return removed
}

func (s *Service) limiterFor(peerID string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	l, ok := s.limiters[peerID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(DefaultRateLimitPerMin)/60.0, DefaultRateLimitPerMin)
		s.limiters[peerID] = l
	}
	return l
}

// Forward validates msg against the relay's TTL/hop-count/rate-limit
// rules, stamps it, then delivers immediately or enqueues it.
func (s *Service) Forward(msg Message) error {
	if time.Since(msg.CreatedAt) > DefaultMessageTTL {
		return protoerr.New(protoerr.ExpiredTimestamp, "relay message exceeded TTL")
	}
	if msg.HopCount >= DefaultMaxHops {
		return protoerr.New(protoerr.MessageTooLarge, "relay message exceeded max_hops")
	}
	if !s.limiterFor(msg.Sender).Allow() {
		return protoerr.New(protoerr.RateLimited, "sender exceeded relay rate limit")
	}

	msg.HopCount++
	msg.ViaRelay = s.relayID

	s.mu.RLock()
	_, registered := s.peers[msg.Recipient]
	s.mu.RUnlock()

	if registered {
		if s.deliver != nil {
			s.deliver(msg)
		}
		return nil
	}

	s.enqueue(msg)
	return nil
}

func (s *Service) enqueue(msg Message) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	q := s.queues[msg.Recipient]
	if len(q) >= s.queueCapacity {
		q = q[1:] // drop oldest to bound memory
	}
	s.queues[msg.Recipient] = append(q, msg)
}

func (s *Service) drainQueue(recipient string) {
	s.queueMu.Lock()
	pending := s.queues[recipient]
	delete(s.queues, recipient)
	s.queueMu.Unlock()

	if s.deliver == nil {
		return
	}
	for _, msg := range pending {
		s.deliver(msg)
	}
}

// QueueDepth returns the number of messages queued for recipient.
func (s *Service) QueueDepth(recipient string) int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queues[recipient])
}
