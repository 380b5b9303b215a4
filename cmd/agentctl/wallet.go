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

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var walletAddr string

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Query a running agentd node's token economy over its marketplace API",
}

var walletBalanceCmd = &cobra.Command{
	Use:   "balance <entity-id>",
	Short: "Print an entity's wallet balance",
	Args:  cobra.ExactArgs(1),
	RunE:  runWalletBalance,
}

var walletSupplyCmd = &cobra.Command{
	Use:   "supply",
	Short: "Print the platform's current token supply snapshot",
	RunE:  runWalletSupply,
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.PersistentFlags().StringVar(&walletAddr, "addr", "http://127.0.0.1:8443", "agentd HTTP base URL")
	walletCmd.AddCommand(walletBalanceCmd)
	walletCmd.AddCommand(walletSupplyCmd)
}

func runWalletBalance(cmd *cobra.Command, args []string) error {
	var resp struct {
		Balance string `json:"balance"`
	}
	if err := getJSON(walletAddr, "/token/balance/"+args[0], &resp); err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", args[0], resp.Balance)
	return nil
}

// supplySnapshot mirrors economy.SupplyStats for display purposes,
// decoded independently so this CLI doesn't need to import economy
// just to print a handful of fields.
type supplySnapshot struct {
	Version           int             `json:"version"`
	TotalSupply       decimal.Decimal `json:"total_supply"`
	CirculatingSupply decimal.Decimal `json:"circulating_supply"`
	TreasuryBalance   decimal.Decimal `json:"treasury_balance"`
	MintCount         int64           `json:"mint_count"`
	BurnCount         int64           `json:"burn_count"`
	TotalMinted       decimal.Decimal `json:"total_minted"`
	TotalBurned       decimal.Decimal `json:"total_burned"`
}

func runWalletSupply(cmd *cobra.Command, args []string) error {
	var snap supplySnapshot
	if err := getJSON(walletAddr, "/economy/supply", &snap); err != nil {
		return err
	}
	fmt.Printf("total_supply:       %s\n", snap.TotalSupply)
	fmt.Printf("circulating_supply: %s\n", snap.CirculatingSupply)
	fmt.Printf("treasury_balance:   %s\n", snap.TreasuryBalance)
	fmt.Printf("mint_count:         %d (total %s)\n", snap.MintCount, snap.TotalMinted)
	fmt.Printf("burn_count:         %d (total %s)\n", snap.BurnCount, snap.TotalBurned)
	return nil
}
