// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package rotation

import (
	"crypto/ed25519"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicollab-project/platform/crypto/keys"
	"github.com/aicollab-project/platform/crypto/vault"
)

// sealEd25519 generates a fresh Ed25519 keypair, seals it under id in v, and
// returns the raw private key bytes stored — the same representation
// agentctl keygen writes.
func sealEd25519(t *testing.T, v vault.SecureVault, id, passphrase string) []byte {
	t.Helper()
	kp, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)
	priv, ok := kp.PrivateKey().(ed25519.PrivateKey)
	require.True(t, ok)
	require.NoError(t, v.StoreEncrypted(id, priv, passphrase))
	return priv
}

func TestRotateNonExistentEntityErrors(t *testing.T) {
	v, err := vault.NewFileVault(t.TempDir())
	require.NoError(t, err)
	r := NewVaultRotator(v)

	_, err = r.Rotate("missing", "pw", false)
	assert.Error(t, err)
}

func TestRotateReplacesSealedKeyAndRecordsHistory(t *testing.T) {
	v, err := vault.NewFileVault(t.TempDir())
	require.NoError(t, err)
	r := NewVaultRotator(v)

	oldBytes := sealEd25519(t, v, "agent-1", "pw")
	oldKeyPair, err := keys.NewEd25519KeyPair(ed25519.PrivateKey(oldBytes), "")
	require.NoError(t, err)

	newKeyPair, err := r.Rotate("agent-1", "pw", false)
	require.NoError(t, err)
	assert.NotEqual(t, oldKeyPair.ID(), newKeyPair.ID())

	sealedBytes, err := v.LoadDecrypted("agent-1", "pw")
	require.NoError(t, err)
	reloaded, err := keys.NewEd25519KeyPair(ed25519.PrivateKey(sealedBytes), "")
	require.NoError(t, err)
	assert.Equal(t, newKeyPair.ID(), reloaded.ID())

	history := r.History("agent-1")
	require.Len(t, history, 1)
	assert.Equal(t, oldKeyPair.ID(), history[0].OldKeyID)
	assert.Equal(t, newKeyPair.ID(), history[0].NewKeyID)
}

func TestRotateKeepsOldKeyWhenRequested(t *testing.T) {
	v, err := vault.NewFileVault(t.TempDir())
	require.NoError(t, err)
	r := NewVaultRotator(v)

	oldBytes := sealEd25519(t, v, "agent-2", "pw")
	oldKeyPair, err := keys.NewEd25519KeyPair(ed25519.PrivateKey(oldBytes), "")
	require.NoError(t, err)

	_, err = r.Rotate("agent-2", "pw", true)
	require.NoError(t, err)

	assert.True(t, v.Exists("agent-2.old." + oldKeyPair.ID()))
}

func TestMultipleRotationsAccumulateHistoryNewestFirst(t *testing.T) {
	v, err := vault.NewFileVault(t.TempDir())
	require.NoError(t, err)
	r := NewVaultRotator(v)

	sealEd25519(t, v, "agent-3", "pw")

	var ids []string
	for i := 0; i < 3; i++ {
		kp, err := r.Rotate("agent-3", "pw", false)
		require.NoError(t, err)
		ids = append(ids, kp.ID())
	}

	history := r.History("agent-3")
	require.Len(t, history, 3)
	assert.Equal(t, ids[2], history[0].NewKeyID)
	assert.Equal(t, ids[0], history[2].NewKeyID)
}

func TestHistoryEmptyForUnknownEntity(t *testing.T) {
	v, err := vault.NewFileVault(t.TempDir())
	require.NoError(t, err)
	r := NewVaultRotator(v)
	assert.Empty(t, r.History("never-rotated"))
}

func TestConcurrentRotationsRejectOverlap(t *testing.T) {
	v, err := vault.NewFileVault(t.TempDir())
	require.NoError(t, err)
	r := NewVaultRotator(v)
	sealEd25519(t, v, "agent-4", "pw")

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Rotate("agent-4", "pw", false)
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.GreaterOrEqual(t, successes, 1)
	assert.Less(t, successes, 5)
}
