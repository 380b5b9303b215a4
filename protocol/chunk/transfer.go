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

// Package chunk assembles large payloads sent as a chunk_init announcement
// followed by a sequence of chunk messages, verifying each chunk's
// checksum and the reassembled whole before handing it back.
package chunk

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aicollab-project/platform/protoerr"
)

const (
	// DefaultChunkSize is the payload size carried by a single chunk
	// message; Split uses it when given a non-positive chunk size. Nothing
	// in this package decides whether a payload needs chunking.
	DefaultChunkSize = 32 * 1024
	// MaxTotalSize bounds the total reassembled payload size.
	MaxTotalSize = 10 * 1024 * 1024
	// DefaultTransferTTL bounds how long an incomplete transfer is kept
	// before being garbage collected.
	DefaultTransferTTL = 30 * time.Minute
	// DefaultGCInterval is how often the store sweeps for expired transfers.
	DefaultGCInterval = time.Minute
)

// Init announces an incoming chunked transfer.
type Init struct {
	TransferID  string
	TotalSize   int64
	ChunkSize   int
	TotalChunks int
	Checksum    string // sha256 of the full reassembled payload, hex-encoded
}

// Chunk carries a single slice of a chunked transfer.
type Chunk struct {
	TransferID string
	Index      int
	Data       []byte
	Checksum   string // sha256 of Data, hex-encoded
}

// transfer tracks the state of one in-flight reassembly.
type transfer struct {
	init        Init
	parts       map[int][]byte
	receivedAt  time.Time
	totalBytes  int64
}

// Store manages in-flight chunked transfers and reassembles them once
// complete.
type Store struct {
	mu        sync.Mutex
	transfers map[string]*transfer
	ttl       time.Duration
}

// NewStore creates a chunk reassembly store with the given transfer TTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTransferTTL
	}
	return &Store{
		transfers: make(map[string]*transfer),
		ttl:       ttl,
	}
}

// NewTransferID mints a UUIDv4 transfer identifier.
func NewTransferID() string { return uuid.NewString() }

// BeginTransfer registers a chunk_init announcement.
func (s *Store) BeginTransfer(init Init) error {
	if init.TotalSize > MaxTotalSize {
		return protoerr.New(protoerr.MessageTooLarge, fmt.Sprintf("transfer size %d exceeds cap %d", init.TotalSize, MaxTotalSize))
	}
	if init.TransferID == "" || init.TotalChunks <= 0 {
		return protoerr.New(protoerr.InvalidJSON, "invalid chunk_init: missing transfer id or chunk count")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers[init.TransferID] = &transfer{
		init:       init,
		parts:      make(map[int][]byte, init.TotalChunks),
		receivedAt: time.Now(),
	}
	return nil
}

// AcceptChunk verifies and stores one chunk, returning the reassembled
// payload once every chunk has arrived and the whole-payload checksum
// matches, or nil while the transfer is still incomplete.
func (s *Store) AcceptChunk(c Chunk) ([]byte, error) {
	sum := sha256.Sum256(c.Data)
	if fmt.Sprintf("%x", sum) != c.Checksum {
		return nil, protoerr.New(protoerr.InvalidSignature, "chunk checksum mismatch")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tr, ok := s.transfers[c.TransferID]
	if !ok {
		return nil, protoerr.New(protoerr.UnknownTransfer, "chunk received for unknown transfer")
	}
	if c.Index < 0 || c.Index >= tr.init.TotalChunks {
		return nil, protoerr.New(protoerr.InvalidJSON, "chunk index out of range")
	}

	if _, dup := tr.parts[c.Index]; !dup {
		tr.totalBytes += int64(len(c.Data))
		if tr.totalBytes > MaxTotalSize {
			delete(s.transfers, c.TransferID)
			return nil, protoerr.New(protoerr.MessageTooLarge, "reassembled transfer exceeds cap")
		}
	}
	tr.parts[c.Index] = c.Data
	tr.receivedAt = time.Now()

	if len(tr.parts) < tr.init.TotalChunks {
		return nil, nil
	}

	full := make([]byte, 0, tr.totalBytes)
	for i := 0; i < tr.init.TotalChunks; i++ {
		part, ok := tr.parts[i]
		if !ok {
			return nil, nil // shouldn't happen given the length check above
		}
		full = append(full, part...)
	}

	fullSum := sha256.Sum256(full)
	if fmt.Sprintf("%x", fullSum) != tr.init.Checksum {
		delete(s.transfers, c.TransferID)
		return nil, protoerr.New(protoerr.InvalidSignature, "reassembled payload checksum mismatch")
	}

	delete(s.transfers, c.TransferID)
	return full, nil
}

// Split breaks payload into chunk_init + chunk messages of chunkSize each.
func Split(transferID string, payload []byte, chunkSize int) (Init, []Chunk) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	total := sha256.Sum256(payload)
	totalChunks := (len(payload) + chunkSize - 1) / chunkSize
	if totalChunks == 0 {
		totalChunks = 1
	}

	init := Init{
		TransferID:  transferID,
		TotalSize:   int64(len(payload)),
		ChunkSize:   chunkSize,
		TotalChunks: totalChunks,
		Checksum:    fmt.Sprintf("%x", total),
	}

	chunks := make([]Chunk, 0, totalChunks)
	for i := 0; i < totalChunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		data := payload[start:end]
		sum := sha256.Sum256(data)
		chunks = append(chunks, Chunk{
			TransferID: transferID,
			Index:      i,
			Data:       data,
			Checksum:   fmt.Sprintf("%x", sum),
		})
	}
	return init, chunks
}

// GC removes transfers that have been incomplete for longer than the
// store's TTL.
func (s *Store) GC() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	now := time.Now()
	for id, tr := range s.transfers {
		if now.Sub(tr.receivedAt) > s.ttl {
			delete(s.transfers, id)
			removed++
		}
	}
	return removed
}

// PendingCount returns the number of in-flight transfers.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transfers)
}

// Run starts a background goroutine that calls GC every interval until
// stop is closed.
func (s *Store) Run(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = DefaultGCInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.GC()
		}
	}
}
