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

	"github.com/spf13/cobra"

	_ "github.com/aicollab-project/platform/crypto/chain/ethereum"
	_ "github.com/aicollab-project/platform/crypto/chain/solana"
)

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "agentctl - operator CLI for an AI Collaboration Platform node",
	Long: `agentctl manages and inspects a single agentd node: generating and
sealing its signing identity, querying its wallet balance and the
platform's token supply over the marketplace API, and listing the
entries its local service registry currently holds.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "agentctl:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
