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

package nonce

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNonceIsUnique(t *testing.T) {
	a, err := GenerateNonce()
	require.NoError(t, err)
	b, err := GenerateNonce()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCheckAndRecordDetectsReplay(t *testing.T) {
	m := NewManager(10)

	assert.False(t, m.CheckAndRecord("agent-a", "n1"))
	assert.True(t, m.CheckAndRecord("agent-a", "n1"))
}

func TestNoncesScopedPerSender(t *testing.T) {
	m := NewManager(10)

	assert.False(t, m.CheckAndRecord("agent-a", "n1"))
	assert.False(t, m.CheckAndRecord("agent-b", "n1"))
}

func TestCapacityEvictsOldest(t *testing.T) {
	m := NewManager(3)

	for i := 0; i < 3; i++ {
		assert.False(t, m.CheckAndRecord("agent-a", fmt.Sprintf("n%d", i)))
	}
	assert.Equal(t, 3, m.SenderCount("agent-a"))

	// n3 evicts n0; n0 should now be accepted as "new" again.
	assert.False(t, m.CheckAndRecord("agent-a", "n3"))
	assert.Equal(t, 3, m.SenderCount("agent-a"))
	assert.False(t, m.CheckAndRecord("agent-a", "n0"))
}

func TestForgetClearsSender(t *testing.T) {
	m := NewManager(10)
	m.CheckAndRecord("agent-a", "n1")
	m.Forget("agent-a")
	assert.Equal(t, 0, m.SenderCount("agent-a"))
	assert.False(t, m.Seen("agent-a", "n1"))
}

func TestDefaultCapacityAppliedForNonPositive(t *testing.T) {
	m := NewManager(0)
	assert.Equal(t, DefaultCapacity, m.capacity)
}
