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

package vault

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileVault(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "vault_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	v, err := NewFileVault(tempDir)
	require.NoError(t, err)

	t.Run("StoreAndLoadKey", func(t *testing.T) {
		keyID := "test_key_1"
		originalKey := []byte("this is my secret key data")
		passphrase := "strong_passphrase_123"

		require.NoError(t, v.StoreEncrypted(keyID, originalKey, passphrase))

		filePath := filepath.Join(tempDir, keyID+".json")
		info, err := os.Stat(filePath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		loadedKey, err := v.LoadDecrypted(keyID, passphrase)
		require.NoError(t, err)
		assert.Equal(t, originalKey, loadedKey)
	})

	t.Run("StoredRecordUsesConfiguredIterations", func(t *testing.T) {
		keyID := "test_key_iterations"
		require.NoError(t, v.StoreEncrypted(keyID, []byte("k"), "p"))
		encData, err := v.read(keyID)
		require.NoError(t, err)
		assert.Equal(t, pbkdf2Iterations, encData.Iterations)
		assert.Equal(t, "PBKDF2-SHA256", encData.KDF)
	})

	t.Run("InvalidPassphrase", func(t *testing.T) {
		keyID := "test_key_2"
		require.NoError(t, v.StoreEncrypted(keyID, []byte("another secret key"), "correct_passphrase"))

		_, err := v.LoadDecrypted(keyID, "wrong_passphrase")
		assert.Equal(t, ErrInvalidPassphrase, err)
	})

	t.Run("KeyNotFound", func(t *testing.T) {
		_, err := v.LoadDecrypted("non_existent_key", "passphrase")
		assert.Equal(t, ErrKeyNotFound, err)
	})

	t.Run("InvalidKeyID", func(t *testing.T) {
		err := v.StoreEncrypted("", []byte("key"), "passphrase")
		assert.Equal(t, ErrInvalidKeyID, err)

		_, err = v.LoadDecrypted("", "passphrase")
		assert.Equal(t, ErrInvalidKeyID, err)
	})

	t.Run("DeleteKey", func(t *testing.T) {
		keyID := "test_key_4"
		require.NoError(t, v.StoreEncrypted(keyID, []byte("key to delete"), "passphrase"))
		assert.True(t, v.Exists(keyID))

		require.NoError(t, v.Delete(keyID))
		assert.False(t, v.Exists(keyID))

		_, err := v.LoadDecrypted(keyID, "passphrase")
		assert.Equal(t, ErrKeyNotFound, err)

		err = v.Delete("non_existent")
		assert.Equal(t, ErrKeyNotFound, err)
	})

	t.Run("ListKeys", func(t *testing.T) {
		for _, key := range v.ListKeys() {
			v.Delete(key)
		}

		keys := []string{"key_a", "key_b", "key_c"}
		for _, keyID := range keys {
			require.NoError(t, v.StoreEncrypted(keyID, []byte("data"), "passphrase"))
		}

		listedKeys := v.ListKeys()
		assert.Len(t, listedKeys, 3)
		for _, key := range keys {
			assert.Contains(t, listedKeys, key)
		}
	})

	t.Run("OverwriteKeyPreservesCreatedAt", func(t *testing.T) {
		keyID := "test_key_5"
		require.NoError(t, v.StoreEncrypted(keyID, []byte("original data"), "passphrase"))
		first, err := v.read(keyID)
		require.NoError(t, err)

		require.NoError(t, v.StoreEncrypted(keyID, []byte("new data"), "passphrase"))
		second, err := v.read(keyID)
		require.NoError(t, err)

		assert.Equal(t, first.CreatedAt, second.CreatedAt)
		assert.True(t, !second.UpdatedAt.Before(first.UpdatedAt))

		loadedKey, err := v.LoadDecrypted(keyID, "passphrase")
		require.NoError(t, err)
		assert.Equal(t, []byte("new data"), loadedKey)
	})

	t.Run("LargeKey", func(t *testing.T) {
		keyID := "large_key"
		largeKey := make([]byte, 10*1024)
		for i := range largeKey {
			largeKey[i] = byte(i % 256)
		}

		require.NoError(t, v.StoreEncrypted(keyID, largeKey, "passphrase"))

		loadedKey, err := v.LoadDecrypted(keyID, "passphrase")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(largeKey, loadedKey))
	})

	t.Run("NoTempFilesLeftBehind", func(t *testing.T) {
		keyID := "test_key_atomic"
		require.NoError(t, v.StoreEncrypted(keyID, []byte("data"), "passphrase"))

		entries, err := os.ReadDir(tempDir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, filepath.Ext(e.Name()) == "" && e.Name()[0] == '.', "leftover temp file: %s", e.Name())
		}
	})
}

func BenchmarkFileVault(b *testing.B) {
	tempDir, err := os.MkdirTemp("", "vault_bench")
	require.NoError(b, err)
	defer os.RemoveAll(tempDir)

	v, err := NewFileVault(tempDir)
	require.NoError(b, err)

	key := []byte("benchmark test key data that is 32 bytes long!!")
	passphrase := "benchmark_passphrase"

	b.Run("StoreEncrypted", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			v.StoreEncrypted(fmt.Sprintf("bench_key_%d", i), key, passphrase)
		}
	})

	testKeyID := "bench_load_key"
	v.StoreEncrypted(testKeyID, key, passphrase)

	b.Run("LoadDecrypted", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			v.LoadDecrypted(testKeyID, passphrase)
		}
	})
}
