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
	"crypto/ed25519"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aicollab-project/platform/bridge"
	"github.com/aicollab-project/platform/crypto/keys"
	"github.com/aicollab-project/platform/crypto/vault"
	"github.com/aicollab-project/platform/entity"
)

var (
	keygenDataDir     string
	keygenEntityID    string
	keygenPassphrase  string
	keygenShowAddress bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate and seal a new entity signing identity",
	Long: `Generate a fresh Ed25519 signing keypair, wrap it as an Entity, and
seal the private key into the on-disk vault agentd reads at startup.

Running this against a data directory that already holds a sealed key
for the given entity-id is an error: use agentctl keyrotate to replace
an existing identity.`,
	Example: `  AICP_VAULT_PASSPHRASE=... agentctl keygen --data-dir ./data --entity-id agent-007`,
	RunE:    runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVar(&keygenDataDir, "data-dir", "./data", "agentd data directory (vault is sealed under <data-dir>/vault)")
	keygenCmd.Flags().StringVar(&keygenEntityID, "entity-id", "", "unique entity id for the new identity (required)")
	keygenCmd.Flags().StringVar(&keygenPassphrase, "passphrase", "", "vault passphrase (prefer AICP_VAULT_PASSPHRASE over this flag)")
	keygenCmd.Flags().BoolVar(&keygenShowAddress, "show-address", true, "print the informational Solana address derived from the new key")
	keygenCmd.MarkFlagRequired("entity-id")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	passphrase := resolvePassphrase(keygenPassphrase)
	if passphrase == "" {
		return fmt.Errorf("a vault passphrase is required: set AICP_VAULT_PASSPHRASE or pass --passphrase")
	}

	v, err := vault.NewFileVault(keygenDataDir + "/vault")
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}
	if v.Exists(keygenEntityID) {
		return fmt.Errorf("entity %q already has a sealed key under %s", keygenEntityID, keygenDataDir)
	}

	kp, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return fmt.Errorf("generating keypair: %w", err)
	}
	seed, ok := kp.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return fmt.Errorf("generated key is not Ed25519")
	}
	ent, err := entity.FromKeyPair(keygenEntityID, kp)
	if err != nil {
		return fmt.Errorf("wrapping entity: %w", err)
	}
	if err := v.StoreEncrypted(keygenEntityID, seed, passphrase); err != nil {
		return fmt.Errorf("sealing key: %w", err)
	}

	fmt.Printf("entity_id: %s\n", ent.ID())
	fmt.Printf("public_key: %x\n", ent.PublicKey())

	if keygenShowAddress {
		addr, err := bridge.Ed25519Address(ent.PublicKey())
		if err != nil {
			fmt.Printf("informational_address: unavailable (%v)\n", err)
		} else {
			fmt.Printf("informational_address (solana, %s): %s\n", addr.Network, addr.Value)
		}
	}
	return nil
}
