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

package economy

import (
	"crypto/ed25519"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aicollab-project/platform/bridge"
	"github.com/aicollab-project/platform/internal/logger"
	"github.com/aicollab-project/platform/internal/metrics"
	"github.com/aicollab-project/platform/protoerr"
)

// TreasuryID is the entity ID of the sole mint/burn sink.
const TreasuryID = "treasury"

const supplySchemaVersion = 1

// SupplyStats is the mint/burn/treasury snapshot persisted to
// data/economy/supply.json.
type SupplyStats struct {
	Version           int             `json:"version"`
	TotalSupply       decimal.Decimal `json:"total_supply"`
	CirculatingSupply decimal.Decimal `json:"circulating_supply"`
	TreasuryBalance   decimal.Decimal `json:"treasury_balance"`
	MintCount         int64           `json:"mint_count"`
	BurnCount         int64           `json:"burn_count"`
	TotalMinted       decimal.Decimal `json:"total_minted"`
	TotalBurned       decimal.Decimal `json:"total_burned"`
}

// store is the persistence interface the Ledger depends on — satisfied by
// *storage.FileStore, and stubbed in tests with an in-memory fake.
type store interface {
	Save(key string, v interface{}) error
	Load(key string, v interface{}) error
	Exists(key string) bool
}

// Ledger owns every wallet and the locked-funds map, enforcing
// per-wallet serialization and the platform-wide reconciliation
// invariant: Σ(balances) + Σ(locked) == total_minted − total_burned.
type Ledger struct {
	mu      sync.RWMutex
	wallets map[string]*Wallet

	walletLocksMu sync.Mutex
	walletLocks   map[string]*sync.Mutex

	lockedMu sync.Mutex
	locked   map[string]decimal.Decimal // task_id -> amount

	supplyMu sync.Mutex
	supply   SupplyStats

	store      store
	log        logger.Logger
	reporter   *bridge.Reporter
	resolvePub PublicKeyResolver
}

// PublicKeyResolver resolves an entity ID to its Ed25519 public key, so
// the Ledger can report mint/burn events to an informational chain
// bridge without importing the entity package (which would cycle back
// into economy).
type PublicKeyResolver func(entityID string) (ed25519.PublicKey, bool)

// SetBridgeReporter wires an informational chain-bridge reporter and the
// resolver used to look up an entity's signing public key. Either may be
// nil, in which case Mint/Burn skip bridge reporting entirely.
func (l *Ledger) SetBridgeReporter(reporter *bridge.Reporter, resolvePub PublicKeyResolver) {
	l.reporter = reporter
	l.resolvePub = resolvePub
}

// NewLedger creates a Ledger backed by persistence store s, with an
// initialized (empty) treasury wallet.
func NewLedger(s store, log logger.Logger) *Ledger {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	l := &Ledger{
		wallets:     make(map[string]*Wallet),
		walletLocks: make(map[string]*sync.Mutex),
		locked:      make(map[string]decimal.Decimal),
		supply: SupplyStats{
			Version:           supplySchemaVersion,
			TotalSupply:       decimal.Zero,
			CirculatingSupply: decimal.Zero,
			TreasuryBalance:   decimal.Zero,
			TotalMinted:       decimal.Zero,
			TotalBurned:       decimal.Zero,
		},
		store: s,
		log:   log,
	}
	l.wallets[TreasuryID] = NewWallet(TreasuryID)
	return l
}

func (l *Ledger) lockFor(entityID string) *sync.Mutex {
	l.walletLocksMu.Lock()
	defer l.walletLocksMu.Unlock()
	m, ok := l.walletLocks[entityID]
	if !ok {
		m = &sync.Mutex{}
		l.walletLocks[entityID] = m
	}
	return m
}

// walletKey is the persistence key for an entity's wallet.
func walletKey(entityID string) string { return "wallets/" + entityID }

// wallet returns (creating if necessary) the in-memory wallet for entityID.
// Callers must hold l.mu for writing or reading as appropriate.
func (l *Ledger) wallet(entityID string) *Wallet {
	w, ok := l.wallets[entityID]
	if !ok {
		w = NewWallet(entityID)
		l.wallets[entityID] = w
	}
	return w
}

// Balance returns entityID's current balance.
func (l *Ledger) Balance(entityID string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w, ok := l.wallets[entityID]
	if !ok {
		return decimal.Zero
	}
	return w.Balance
}

func (l *Ledger) persistWallet(w *Wallet) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.Save(walletKey(w.EntityID), w); err != nil {
		l.log.Warn("wallet persistence failed", logger.String("entity_id", w.EntityID), logger.Error(err))
		return err
	}
	return nil
}

func (l *Ledger) recordOp(op string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.WalletOperations.WithLabelValues(op, status).Inc()
}

// Deposit credits amount to entityID's wallet.
func (l *Ledger) Deposit(entityID string, amount decimal.Decimal, description string) error {
	lk := l.lockFor(entityID)
	lk.Lock()
	defer lk.Unlock()

	l.mu.Lock()
	w := l.wallet(entityID)
	err := w.deposit(amount, TxDeposit, "", description)
	l.mu.Unlock()

	l.recordOp("deposit", err)
	if err != nil {
		return err
	}
	metrics.WalletBalance.WithLabelValues(entityID).Set(mustFloat(w.Balance))
	return l.persistWallet(w)
}

// Withdraw debits amount from entityID's wallet, failing with
// INSUFFICIENT_FUNDS if the balance doesn't cover it.
func (l *Ledger) Withdraw(entityID string, amount decimal.Decimal, description string) error {
	lk := l.lockFor(entityID)
	lk.Lock()
	defer lk.Unlock()

	l.mu.Lock()
	w := l.wallet(entityID)
	err := w.withdraw(amount, TxWithdraw, "", description)
	l.mu.Unlock()

	l.recordOp("withdraw", err)
	if err != nil {
		return err
	}
	metrics.WalletBalance.WithLabelValues(entityID).Set(mustFloat(w.Balance))
	return l.persistWallet(w)
}

// Transfer atomically moves amount from one wallet to another: either
// both ledger entries are written, or neither is. Locks are acquired in
// canonical (lexicographic) ID order to avoid deadlocking against a
// concurrent reverse transfer.
func (l *Ledger) Transfer(from, to string, amount decimal.Decimal, description string) error {
	if from == to {
		return protoerr.New(protoerr.InvalidAmount, "cannot transfer to self")
	}

	first, second := from, to
	if second < first {
		first, second = second, first
	}
	lockA, lockB := l.lockFor(first), l.lockFor(second)
	lockA.Lock()
	defer lockA.Unlock()
	lockB.Lock()
	defer lockB.Unlock()

	l.mu.Lock()
	src := l.wallet(from)
	dst := l.wallet(to)

	if err := validateAmount(amount); err != nil {
		l.mu.Unlock()
		l.recordOp("transfer", err)
		return err
	}
	if src.Balance.LessThan(amount) {
		l.mu.Unlock()
		err := protoerr.New(protoerr.InsufficientFunds, fmt.Sprintf("wallet %s balance %s is less than %s", from, src.Balance, amount))
		l.recordOp("transfer", err)
		return err
	}

	_ = src.withdraw(amount, TxTransferOut, to, description)
	_ = dst.deposit(amount, TxTransferIn, from, description)
	l.mu.Unlock()

	l.recordOp("transfer", nil)
	metrics.WalletBalance.WithLabelValues(from).Set(mustFloat(src.Balance))
	metrics.WalletBalance.WithLabelValues(to).Set(mustFloat(dst.Balance))

	if err := l.persistWallet(src); err != nil {
		return err
	}
	return l.persistWallet(dst)
}

// Mint credits amount to recipient from the treasury and increases total
// supply. Only the treasury wallet, never an arbitrary sender, is
// debited on the supply ledger; recipient's wallet is credited directly.
func (l *Ledger) Mint(recipient string, amount decimal.Decimal, description string) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	lk := l.lockFor(recipient)
	lk.Lock()
	l.mu.Lock()
	w := l.wallet(recipient)
	_ = w.deposit(amount, TxMint, TreasuryID, description)
	l.mu.Unlock()
	lk.Unlock()

	l.supplyMu.Lock()
	l.supply.TotalSupply = l.supply.TotalSupply.Add(amount)
	l.supply.CirculatingSupply = l.supply.CirculatingSupply.Add(amount)
	l.supply.TotalMinted = l.supply.TotalMinted.Add(amount)
	l.supply.MintCount++
	l.supplyMu.Unlock()

	l.recordOp("mint", nil)
	metrics.WalletBalance.WithLabelValues(recipient).Set(mustFloat(w.Balance))
	l.updateSupplyMetrics()

	if err := l.persistWallet(w); err != nil {
		return err
	}
	if err := l.persistSupply(); err != nil {
		return err
	}
	l.reportBridgeEvent(recipient, "mint", amount)
	return nil
}

// reportBridgeEvent notifies the informational chain-bridge reporter, if
// one is wired, that a mint/burn affecting recipient just settled. It
// never returns an error: a chain adapter is never on the settlement
// critical path (spec.md §1's non-goal).
func (l *Ledger) reportBridgeEvent(entityID, eventType string, amount decimal.Decimal) {
	if l.reporter == nil || l.resolvePub == nil {
		return
	}
	pub, ok := l.resolvePub(entityID)
	if !ok {
		return
	}
	l.reporter.Report(bridge.Event{
		EntityID:  entityID,
		Type:      eventType,
		Amount:    amount.String(),
		Timestamp: time.Now(),
	}, pub)
}

// Burn debits amount from holder and destroys it, decreasing total supply.
func (l *Ledger) Burn(holder string, amount decimal.Decimal, description string) error {
	lk := l.lockFor(holder)
	lk.Lock()
	l.mu.Lock()
	w := l.wallet(holder)
	err := w.withdraw(amount, TxBurn, "", description)
	l.mu.Unlock()
	lk.Unlock()

	l.recordOp("burn", err)
	if err != nil {
		return err
	}

	l.supplyMu.Lock()
	l.supply.TotalSupply = l.supply.TotalSupply.Sub(amount)
	l.supply.CirculatingSupply = l.supply.CirculatingSupply.Sub(amount)
	l.supply.TotalBurned = l.supply.TotalBurned.Add(amount)
	l.supply.BurnCount++
	l.supplyMu.Unlock()

	metrics.WalletBalance.WithLabelValues(holder).Set(mustFloat(w.Balance))
	l.updateSupplyMetrics()

	if err := l.persistWallet(w); err != nil {
		return err
	}
	if err := l.persistSupply(); err != nil {
		return err
	}
	l.reportBridgeEvent(holder, "burn", amount)
	return nil
}

// Reward credits amount to recipient as a task-completion reward, logged
// distinctly from an ordinary deposit for reputation/audit purposes.
func (l *Ledger) Reward(recipient string, amount decimal.Decimal, description string) error {
	lk := l.lockFor(recipient)
	lk.Lock()
	defer lk.Unlock()

	l.mu.Lock()
	w := l.wallet(recipient)
	err := w.deposit(amount, TxReward, "", description)
	l.mu.Unlock()

	l.recordOp("reward", err)
	if err != nil {
		return err
	}
	metrics.WalletBalance.WithLabelValues(recipient).Set(mustFloat(w.Balance))
	return l.persistWallet(w)
}

// LockForTask atomically debits creator and records amount as locked
// against taskID. The locked map is authoritative for reconciliation.
func (l *Ledger) LockForTask(taskID, creator string, amount decimal.Decimal) error {
	lk := l.lockFor(creator)
	lk.Lock()
	l.mu.Lock()
	w := l.wallet(creator)
	err := w.withdraw(amount, TxWithdraw, "task:"+taskID, "locked for task "+taskID)
	l.mu.Unlock()
	lk.Unlock()

	if err != nil {
		l.recordOp("lock", err)
		return err
	}

	l.lockedMu.Lock()
	l.locked[taskID] = amount
	l.lockedMu.Unlock()

	l.recordOp("lock", nil)
	metrics.WalletBalance.WithLabelValues(creator).Set(mustFloat(w.Balance))
	metrics.TaskLockedFunds.Set(mustFloat(l.TotalLocked()))
	return l.persistWallet(w)
}

// ReleaseToWorker removes taskID's lock and credits worker with the
// locked amount.
func (l *Ledger) ReleaseToWorker(taskID, worker string) error {
	l.lockedMu.Lock()
	amount, ok := l.locked[taskID]
	if ok {
		delete(l.locked, taskID)
	}
	l.lockedMu.Unlock()
	if !ok {
		return protoerr.New(protoerr.InvalidAmount, fmt.Sprintf("no funds locked for task %s", taskID))
	}

	lk := l.lockFor(worker)
	lk.Lock()
	l.mu.Lock()
	w := l.wallet(worker)
	_ = w.deposit(amount, TxTransferIn, "task:"+taskID, "released for task "+taskID)
	l.mu.Unlock()
	lk.Unlock()

	l.recordOp("release", nil)
	metrics.WalletBalance.WithLabelValues(worker).Set(mustFloat(w.Balance))
	metrics.TaskLockedFunds.Set(mustFloat(l.TotalLocked()))
	return l.persistWallet(w)
}

// ReleasePartial splits taskID's locked amount between worker (fraction
// of amount) and creator (the remainder), per the escrow's evaluation
// score scaling (see contract.ScoreToReleaseFraction).
func (l *Ledger) ReleasePartial(taskID, creator, worker string, fraction decimal.Decimal) error {
	l.lockedMu.Lock()
	amount, ok := l.locked[taskID]
	if ok {
		delete(l.locked, taskID)
	}
	l.lockedMu.Unlock()
	if !ok {
		return protoerr.New(protoerr.InvalidAmount, fmt.Sprintf("no funds locked for task %s", taskID))
	}

	toWorker := amount.Mul(fraction).Round(8)
	toCreator := amount.Sub(toWorker)

	if toWorker.IsPositive() {
		lk := l.lockFor(worker)
		lk.Lock()
		l.mu.Lock()
		w := l.wallet(worker)
		_ = w.deposit(toWorker, TxTransferIn, "task:"+taskID, "partial release for task "+taskID)
		l.mu.Unlock()
		lk.Unlock()
		metrics.WalletBalance.WithLabelValues(worker).Set(mustFloat(w.Balance))
		if err := l.persistWallet(w); err != nil {
			return err
		}
	}
	if toCreator.IsPositive() {
		lk := l.lockFor(creator)
		lk.Lock()
		l.mu.Lock()
		c := l.wallet(creator)
		_ = c.deposit(toCreator, TxTransferIn, "task:"+taskID, "unreleased portion for task "+taskID)
		l.mu.Unlock()
		lk.Unlock()
		metrics.WalletBalance.WithLabelValues(creator).Set(mustFloat(c.Balance))
		if err := l.persistWallet(c); err != nil {
			return err
		}
	}

	l.recordOp("release_partial", nil)
	metrics.TaskLockedFunds.Set(mustFloat(l.TotalLocked()))
	return nil
}

// ReturnToCreator removes taskID's lock and restores the amount to creator.
func (l *Ledger) ReturnToCreator(taskID, creator string) error {
	l.lockedMu.Lock()
	amount, ok := l.locked[taskID]
	if ok {
		delete(l.locked, taskID)
	}
	l.lockedMu.Unlock()
	if !ok {
		return protoerr.New(protoerr.InvalidAmount, fmt.Sprintf("no funds locked for task %s", taskID))
	}

	lk := l.lockFor(creator)
	lk.Lock()
	l.mu.Lock()
	w := l.wallet(creator)
	_ = w.deposit(amount, TxTransferIn, "task:"+taskID, "returned for task "+taskID)
	l.mu.Unlock()
	lk.Unlock()

	l.recordOp("return", nil)
	metrics.WalletBalance.WithLabelValues(creator).Set(mustFloat(w.Balance))
	metrics.TaskLockedFunds.Set(mustFloat(l.TotalLocked()))
	return l.persistWallet(w)
}

// TotalLocked sums the amount currently locked across every task.
func (l *Ledger) TotalLocked() decimal.Decimal {
	l.lockedMu.Lock()
	defer l.lockedMu.Unlock()
	total := decimal.Zero
	for _, amt := range l.locked {
		total = total.Add(amt)
	}
	return total
}

// Reconcile checks the platform-wide invariant Σ(balances) + Σ(locked)
// == total_minted − total_burned, returning the discrepancy (zero if
// the ledger is consistent).
func (l *Ledger) Reconcile() decimal.Decimal {
	l.mu.RLock()
	total := decimal.Zero
	for _, w := range l.wallets {
		total = total.Add(w.Balance)
	}
	l.mu.RUnlock()
	total = total.Add(l.TotalLocked())

	l.supplyMu.Lock()
	expected := l.supply.TotalMinted.Sub(l.supply.TotalBurned)
	l.supplyMu.Unlock()

	return total.Sub(expected)
}

// SupplySnapshot returns a copy of the current supply stats.
func (l *Ledger) SupplySnapshot() SupplyStats {
	l.supplyMu.Lock()
	defer l.supplyMu.Unlock()
	return l.supply
}

func (l *Ledger) updateSupplyMetrics() {
	s := l.SupplySnapshot()
	metrics.SupplyTotals.WithLabelValues("total").Set(mustFloat(s.TotalSupply))
	metrics.SupplyTotals.WithLabelValues("circulating").Set(mustFloat(s.CirculatingSupply))
	metrics.SupplyTotals.WithLabelValues("treasury").Set(mustFloat(s.TreasuryBalance))
	metrics.SupplyTotals.WithLabelValues("minted").Set(mustFloat(s.TotalMinted))
	metrics.SupplyTotals.WithLabelValues("burned").Set(mustFloat(s.TotalBurned))
}

func (l *Ledger) persistSupply() error {
	if l.store == nil {
		return nil
	}
	return l.store.Save("economy/supply", l.SupplySnapshot())
}

// LoadWallet loads entityID's wallet from the store into memory,
// replacing any in-memory state for it.
func (l *Ledger) LoadWallet(entityID string) error {
	if l.store == nil {
		return nil
	}
	var w Wallet
	if err := l.store.Load(walletKey(entityID), &w); err != nil {
		return err
	}
	l.mu.Lock()
	l.wallets[entityID] = &w
	l.mu.Unlock()
	return nil
}

// EntityIDs returns every entity ID with an in-memory wallet, sorted.
func (l *Ledger) EntityIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.wallets))
	for id := range l.wallets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
