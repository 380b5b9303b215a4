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

// Package economy implements the token ledger: per-entity wallets with an
// append-only transaction log, atomic transfers, a treasury-backed
// mint/burn path, task-locked funds, and JSON persistence.
package economy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aicollab-project/platform/protoerr"
)

// TransactionType enumerates the kinds of ledger entries a wallet logs.
type TransactionType string

const (
	TxDeposit     TransactionType = "deposit"
	TxWithdraw    TransactionType = "withdraw"
	TxTransferIn  TransactionType = "transfer_in"
	TxTransferOut TransactionType = "transfer_out"
	TxReward      TransactionType = "reward"
	TxBurn        TransactionType = "burn"
	TxMint        TransactionType = "mint"
)

// Transaction is one entry in a wallet's ordered log.
type Transaction struct {
	Type          TransactionType `json:"type"`
	Counterparty  string          `json:"counterparty,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

func isCredit(t TransactionType) bool {
	switch t {
	case TxDeposit, TxTransferIn, TxReward, TxMint:
		return true
	default:
		return false
	}
}

// Wallet holds one entity's balance and transaction log. Version is
// bumped whenever the on-disk schema changes; snapshots carry it for
// forward compatibility.
type Wallet struct {
	Version      int             `json:"version"`
	EntityID     string          `json:"entity_id"`
	Balance      decimal.Decimal `json:"balance"`
	Transactions []Transaction   `json:"transactions"`
}

const walletSchemaVersion = 1

// NewWallet creates an empty wallet for entityID.
func NewWallet(entityID string) *Wallet {
	return &Wallet{
		Version:  walletSchemaVersion,
		EntityID: entityID,
		Balance:  decimal.Zero,
	}
}

func (w *Wallet) append(tx Transaction) {
	if isCredit(tx.Type) {
		w.Balance = w.Balance.Add(tx.Amount)
	} else {
		w.Balance = w.Balance.Sub(tx.Amount)
	}
	w.Transactions = append(w.Transactions, tx)
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.IsZero() {
		return protoerr.New(protoerr.InvalidAmount, fmt.Sprintf("amount must be positive, got %s", amount))
	}
	return nil
}

// deposit credits amount unconditionally. Callers must hold the wallet's
// lock (see Ledger.lockFor).
func (w *Wallet) deposit(amount decimal.Decimal, txType TransactionType, counterparty, description string) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	w.append(Transaction{
		Type:         txType,
		Counterparty: counterparty,
		Amount:       amount,
		Description:  description,
		Timestamp:    time.Now(),
	})
	return nil
}

// withdraw debits amount if the balance covers it.
func (w *Wallet) withdraw(amount decimal.Decimal, txType TransactionType, counterparty, description string) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if w.Balance.LessThan(amount) {
		return protoerr.New(protoerr.InsufficientFunds, fmt.Sprintf("wallet %s balance %s is less than %s", w.EntityID, w.Balance, amount))
	}
	w.append(Transaction{
		Type:         txType,
		Counterparty: counterparty,
		Amount:       amount,
		Description:  description,
		Timestamp:    time.Now(),
	})
	return nil
}

// ComputedBalance recomputes the balance from the transaction log,
// independent of the cached Balance field, for reconciliation checks.
func (w *Wallet) ComputedBalance() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range w.Transactions {
		if isCredit(tx.Type) {
			total = total.Add(tx.Amount)
		} else {
			total = total.Sub(tx.Amount)
		}
	}
	return total
}
