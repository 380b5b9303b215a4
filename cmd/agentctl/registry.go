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
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aicollab-project/platform/discovery/registry"
	"github.com/aicollab-project/platform/storage"
)

var registryDataDir string

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect a node's local service registry file",
	Long: `Reads the discovery registry agentd persists under <data-dir>, the
same JSON document agentd's own discovery.registry.Registry loads at
startup. Run against a stopped node, or expect entries to lag agentd's
in-memory state by up to one heartbeat flush.`,
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every entry in the local registry",
	RunE:  runRegistryList,
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.PersistentFlags().StringVar(&registryDataDir, "data-dir", "./data", "agentd data directory")
	registryCmd.AddCommand(registryListCmd)
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	store, err := storage.NewFileStore(registryDataDir)
	if err != nil {
		return fmt.Errorf("opening data dir: %w", err)
	}

	reg := registry.New(store)
	if err := reg.Load(); err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}

	entries := reg.All()
	if len(entries) == 0 {
		fmt.Println("no registry entries found")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY_ID\tENDPOINT\tCAPABILITIES\tLAST_HEARTBEAT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", e.EntityID, e.Endpoint, e.Capabilities, e.LastHeartbeat.Format(time.RFC3339))
	}
	return tw.Flush()
}
