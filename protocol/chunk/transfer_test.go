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

package chunk

import (
	"bytes"
	"testing"
	"time"

	"github.com/aicollab-project/platform/protoerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAndReassemble(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 100*1024)
	id := NewTransferID()
	init, chunks := Split(id, payload, 32*1024)

	s := NewStore(time.Hour)
	require.NoError(t, s.BeginTransfer(init))

	var reassembled []byte
	for _, c := range chunks {
		out, err := s.AcceptChunk(c)
		require.NoError(t, err)
		if out != nil {
			reassembled = out
		}
	}
	require.NotNil(t, reassembled)
	assert.True(t, bytes.Equal(payload, reassembled))
	assert.Equal(t, 0, s.PendingCount())
}

func TestAcceptChunkRejectsBadChecksum(t *testing.T) {
	payload := []byte("hello world")
	id := NewTransferID()
	init, chunks := Split(id, payload, 4)

	s := NewStore(time.Hour)
	require.NoError(t, s.BeginTransfer(init))

	bad := chunks[0]
	bad.Data = []byte("XXXX")
	_, err := s.AcceptChunk(bad)
	assert.True(t, protoerr.Is(err, protoerr.InvalidSignature))
}

func TestAcceptChunkRejectsUnknownTransfer(t *testing.T) {
	s := NewStore(time.Hour)
	_, chunks := Split("nope", []byte("a"), 0)
	_, err := s.AcceptChunk(chunks[0])
	assert.True(t, protoerr.Is(err, protoerr.UnknownTransfer))
}

func TestBeginTransferRejectsOversize(t *testing.T) {
	s := NewStore(time.Hour)
	err := s.BeginTransfer(Init{TransferID: "t1", TotalSize: MaxTotalSize + 1, TotalChunks: 1, Checksum: "x"})
	assert.True(t, protoerr.Is(err, protoerr.MessageTooLarge))
}

func TestGCRemovesStaleTransfers(t *testing.T) {
	s := NewStore(time.Millisecond)
	require.NoError(t, s.BeginTransfer(Init{TransferID: "t1", TotalSize: 10, TotalChunks: 1, Checksum: "x"}))
	time.Sleep(5 * time.Millisecond)
	removed := s.GC()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, s.PendingCount())
}
