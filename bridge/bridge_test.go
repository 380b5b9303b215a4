// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package bridge

import (
	"bytes"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chainpkg "github.com/aicollab-project/platform/crypto/chain"
	"github.com/aicollab-project/platform/crypto/chain/solana"
	"github.com/aicollab-project/platform/internal/logger"
)

func newTestRegistry(t *testing.T) chainpkg.ChainRegistry {
	t.Helper()
	reg := chainpkg.NewRegistry()
	require.NoError(t, reg.RegisterProvider(solana.NewProvider()))
	return reg
}

func TestReportLogsInformationalAddressForSupportedChain(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(&buf, logger.DebugLevel)

	reg := newTestRegistry(t)
	r := NewReporter(reg, log)

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	r.Report(Event{
		EntityID:  "agent-1",
		Type:      "mint",
		Amount:    "10",
		Timestamp: time.Now(),
	}, pub)

	assert.Contains(t, buf.String(), "informational chain event recorded")
	assert.Contains(t, buf.String(), "agent-1")
}

func TestReportSwallowsUnsupportedKeyType(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(&buf, logger.DebugLevel)

	reg := newTestRegistry(t)
	r := NewReporter(reg, log)

	// A non-Ed25519 public key: solana's provider rejects it, which
	// should be logged at debug and not panic.
	assert.NotPanics(t, func() {
		r.Report(Event{EntityID: "agent-2", Type: "burn", Amount: "5"}, "not-a-key")
	})
	assert.Contains(t, buf.String(), "does not support entity key type")
}

func TestEd25519AddressUsesGlobalSolanaProvider(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	addr, err := Ed25519Address(pub)
	require.NoError(t, err)
	assert.Equal(t, chainpkg.ChainTypeSolana, addr.Chain)
	assert.NotEmpty(t, addr.Value)
}
