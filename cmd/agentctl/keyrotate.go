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

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aicollab-project/platform/crypto/rotation"
	"github.com/aicollab-project/platform/crypto/vault"
)

var (
	keyrotateDataDir    string
	keyrotateEntityID   string
	keyrotatePassphrase string
	keyrotateKeepOld    bool
)

var keyrotateCmd = &cobra.Command{
	Use:   "keyrotate",
	Short: "Rotate an entity's sealed signing identity",
	Long: `Replace the Ed25519 signing keypair sealed under entity-id with a
freshly generated one, resealing it into the same on-disk vault under the
same entity-id. The previous identity is discarded unless --keep-old is set,
in which case it is preserved under "<entity-id>.old.<old-key-id>".

Rotating an entity's key invalidates any session or handshake state other
peers hold for its old public key; they must re-discover the entity before
further messages will verify.`,
	Example: `  AICP_VAULT_PASSPHRASE=... agentctl keyrotate --data-dir ./data --entity-id agent-007`,
	RunE:    runKeyrotate,
}

func init() {
	rootCmd.AddCommand(keyrotateCmd)

	keyrotateCmd.Flags().StringVar(&keyrotateDataDir, "data-dir", "./data", "agentd data directory (vault is sealed under <data-dir>/vault)")
	keyrotateCmd.Flags().StringVar(&keyrotateEntityID, "entity-id", "", "entity id whose key should be rotated (required)")
	keyrotateCmd.Flags().StringVar(&keyrotatePassphrase, "passphrase", "", "vault passphrase (prefer AICP_VAULT_PASSPHRASE over this flag)")
	keyrotateCmd.Flags().BoolVar(&keyrotateKeepOld, "keep-old", false, "preserve the displaced key under a .old.<id> suffix instead of discarding it")
	keyrotateCmd.MarkFlagRequired("entity-id")
}

func runKeyrotate(cmd *cobra.Command, args []string) error {
	passphrase := resolvePassphrase(keyrotatePassphrase)
	if passphrase == "" {
		return fmt.Errorf("a vault passphrase is required: set AICP_VAULT_PASSPHRASE or pass --passphrase")
	}

	v, err := vault.NewFileVault(keyrotateDataDir + "/vault")
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}
	if !v.Exists(keyrotateEntityID) {
		return fmt.Errorf("entity %q has no sealed key under %s", keyrotateEntityID, keyrotateDataDir)
	}

	rotator := rotation.NewVaultRotator(v)
	newKeyPair, err := rotator.Rotate(keyrotateEntityID, passphrase, keyrotateKeepOld)
	if err != nil {
		return fmt.Errorf("rotating key: %w", err)
	}

	fmt.Printf("entity_id: %s\n", keyrotateEntityID)
	fmt.Printf("new_key_id: %s\n", newKeyPair.ID())

	history := rotator.History(keyrotateEntityID)
	if len(history) > 0 {
		last := history[0]
		fmt.Printf("rotated_at: %s\n", last.Timestamp.Format("2006-01-02 15:04:05"))
		if keyrotateKeepOld {
			fmt.Printf("old_key_preserved_as: %s.old.%s\n", keyrotateEntityID, last.OldKeyID)
		}
	}
	return nil
}
