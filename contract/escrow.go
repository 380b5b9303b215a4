// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package contract

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aicollab-project/platform/protoerr"
)

// TransactionState is a Transaction's position in the aggregate state
// machine: PROPOSED -> QUOTED -> AGREED -> LOCKED -> EXECUTING ->
// COMPLETED -> RELEASED | CANCELLED | EXPIRED | DISPUTED.
type TransactionState string

const (
	StateProposed  TransactionState = "PROPOSED"
	StateQuoted    TransactionState = "QUOTED"
	StateAgreed    TransactionState = "AGREED"
	StateLocked    TransactionState = "LOCKED"
	StateExecuting TransactionState = "EXECUTING"
	StateCompleted TransactionState = "COMPLETED"
	StateReleased  TransactionState = "RELEASED"
	StateCancelled TransactionState = "CANCELLED"
	StateExpired   TransactionState = "EXPIRED"
	StateDisputed  TransactionState = "DISPUTED"
)

var happyPath = map[TransactionState]TransactionState{
	StateProposed:  StateQuoted,
	StateQuoted:    StateAgreed,
	StateAgreed:    StateLocked,
	StateLocked:    StateExecuting,
	StateExecuting: StateCompleted,
	StateCompleted: StateReleased,
}

// preSettlementStates may transition to CANCELLED/EXPIRED/DISPUTED from
// anywhere in this set.
var preSettlementStates = map[TransactionState]bool{
	StateProposed:  true,
	StateQuoted:    true,
	StateAgreed:    true,
	StateLocked:    true,
	StateExecuting: true,
}

func (s TransactionState) canAdvanceTo(next TransactionState) bool {
	if happyPath[s] == next {
		return true
	}
	if preSettlementStates[s] && (next == StateCancelled || next == StateExpired || next == StateDisputed) {
		return true
	}
	return false
}

// EscrowCondition is one fulfillment gate on an escrow's release.
type EscrowCondition struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	Value     interface{} `json:"value"`
	Fulfilled bool        `json:"fulfilled"`
}

// EscrowStatus is an escrow record's lifecycle state.
type EscrowStatus string

const (
	EscrowLocked    EscrowStatus = "LOCKED"
	EscrowReleased  EscrowStatus = "RELEASED"
	EscrowReturned  EscrowStatus = "RETURNED"
	EscrowDisputed  EscrowStatus = "DISPUTED"
)

// Escrow holds amount in custody until its conditions are fulfilled, a
// final score is evaluated, the deadline passes, or a dispute resolver
// rules on the split.
type Escrow struct {
	EscrowID        string            `json:"escrow_id"`
	Parties         []string          `json:"parties"`
	Amount          decimal.Decimal   `json:"amount"`
	Conditions      []EscrowCondition `json:"conditions"`
	Deadline        time.Time         `json:"deadline"`
	DisputeResolver string            `json:"dispute_resolver,omitempty"`
	Status          EscrowStatus      `json:"status"`
}

// NewEscrow creates a locked escrow for the given agreement.
func NewEscrow(escrowID string, parties []string, amount decimal.Decimal, deadline time.Time, disputeResolver string) *Escrow {
	return &Escrow{
		EscrowID:        escrowID,
		Parties:         parties,
		Amount:          amount,
		Deadline:        deadline,
		DisputeResolver: disputeResolver,
		Status:          EscrowLocked,
	}
}

// AllConditionsFulfilled reports whether every named condition is met.
func (e *Escrow) AllConditionsFulfilled() bool {
	for _, c := range e.Conditions {
		if !c.Fulfilled {
			return false
		}
	}
	return true
}

// Fulfill marks the named condition fulfilled.
func (e *Escrow) Fulfill(name string) error {
	for i := range e.Conditions {
		if e.Conditions[i].Name == name {
			e.Conditions[i].Fulfilled = true
			return nil
		}
	}
	return protoerr.New(protoerr.InvalidAmount, fmt.Sprintf("escrow %s: unknown condition %q", e.EscrowID, name))
}

// Milestone is one percentage tranche of a milestone-based reward.
type Milestone struct {
	Name           string  `json:"name"`
	PaymentPercent float64 `json:"payment_percent"`
	Completed      bool    `json:"completed"`
}

// ValidateMilestones checks that payment_percent values sum to 100.
func ValidateMilestones(milestones []Milestone) error {
	var sum float64
	for _, m := range milestones {
		sum += m.PaymentPercent
	}
	if sum < 99.99 || sum > 100.01 {
		return protoerr.New(protoerr.InvalidAmount, fmt.Sprintf("milestone payment_percent must sum to 100, got %.2f", sum))
	}
	return nil
}

// ReleaseFraction scales an evaluation-driven settlement release:
// >=0.8 -> 100%, >=0.6 -> 80%, >=0.4 -> 50%, else 0%.
func ReleaseFraction(score float64) decimal.Decimal {
	switch {
	case score >= 0.8:
		return decimal.NewFromInt(1)
	case score >= 0.6:
		return decimal.NewFromFloat(0.8)
	case score >= 0.4:
		return decimal.NewFromFloat(0.5)
	default:
		return decimal.Zero
	}
}

// Transaction aggregates the proposal/quote/agreement chain plus
// escrow and drives the overall state machine. Every field transition
// requires the chain to already be (Verify'd) cryptographically sound
// before Transaction code is reached — Transaction itself does not
// re-verify signatures, it only enforces state-machine legality.
type Transaction struct {
	TaskID    string           `json:"task_id"`
	Proposal  *TaskProposal    `json:"proposal"`
	Quote     *TaskQuote       `json:"quote,omitempty"`
	Agreement *Agreement       `json:"agreement,omitempty"`
	Escrow    *Escrow          `json:"escrow,omitempty"`
	State     TransactionState `json:"state"`
}

// NewTransaction starts a transaction from an already-signed proposal.
func NewTransaction(taskID string, proposal *TaskProposal) *Transaction {
	return &Transaction{TaskID: taskID, Proposal: proposal, State: StateProposed}
}

func (t *Transaction) advance(next TransactionState) error {
	if !t.State.canAdvanceTo(next) {
		return protoerr.New(protoerr.StateTransitionInvalid,
			fmt.Sprintf("transaction %s: cannot transition from %s to %s", t.TaskID, t.State, next))
	}
	t.State = next
	return nil
}

// AttachQuote advances PROPOSED -> QUOTED.
func (t *Transaction) AttachQuote(q *TaskQuote) error {
	if err := t.advance(StateQuoted); err != nil {
		return err
	}
	t.Quote = q
	return nil
}

// AttachAgreement advances QUOTED -> AGREED.
func (t *Transaction) AttachAgreement(a *Agreement) error {
	if err := t.advance(StateAgreed); err != nil {
		return err
	}
	t.Agreement = a
	return nil
}

// Lock advances AGREED -> LOCKED, attaching the created escrow record.
// Callers are expected to have already debited the client's wallet via
// economy.Ledger.LockForTask before calling this.
func (t *Transaction) Lock(escrow *Escrow) error {
	if err := t.advance(StateLocked); err != nil {
		return err
	}
	t.Escrow = escrow
	return nil
}

// Execute advances LOCKED -> EXECUTING.
func (t *Transaction) Execute() error { return t.advance(StateExecuting) }

// Complete advances EXECUTING -> COMPLETED (provider's signed completion
// claim accepted).
func (t *Transaction) Complete() error { return t.advance(StateCompleted) }

// Release advances COMPLETED -> RELEASED, marking the escrow released.
func (t *Transaction) Release() error {
	if err := t.advance(StateReleased); err != nil {
		return err
	}
	if t.Escrow != nil {
		t.Escrow.Status = EscrowReleased
	}
	return nil
}

// Cancel, Expire, and Dispute may fire from any pre-settlement state.
func (t *Transaction) Cancel() error {
	if err := t.advance(StateCancelled); err != nil {
		return err
	}
	if t.Escrow != nil {
		t.Escrow.Status = EscrowReturned
	}
	return nil
}

func (t *Transaction) Expire() error {
	if err := t.advance(StateExpired); err != nil {
		return err
	}
	if t.Escrow != nil {
		t.Escrow.Status = EscrowReturned
	}
	return nil
}

func (t *Transaction) Dispute() error {
	if err := t.advance(StateDisputed); err != nil {
		return err
	}
	if t.Escrow != nil {
		t.Escrow.Status = EscrowDisputed
	}
	return nil
}
