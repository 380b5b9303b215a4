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

// Package contract drives the proposal -> quote -> agreement -> lock ->
// execution -> settlement pipeline for task transactions, with
// cryptographic non-repudiation at every hand-off and escrow-backed
// fund custody.
package contract

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aicollab-project/platform/protoerr"
)

// TaskStatus is a task contract's position in its status machine:
// CREATED -> ASSIGNED -> IN_PROGRESS -> COMPLETED | FAILED | CANCELLED.
type TaskStatus string

const (
	TaskCreated    TaskStatus = "CREATED"
	TaskAssigned   TaskStatus = "ASSIGNED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskCreated:    {TaskAssigned, TaskCancelled},
	TaskAssigned:   {TaskInProgress, TaskCancelled, TaskFailed},
	TaskInProgress: {TaskCompleted, TaskFailed, TaskCancelled},
}

func (s TaskStatus) canTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Task is the persisted task-contract record, matching spec.md's Task
// Contract data model.
type Task struct {
	TaskID       string          `json:"task_id"`
	CreatorID    string          `json:"creator_id"`
	WorkerID     string          `json:"worker_id,omitempty"`
	Description  string          `json:"description"`
	RewardAmount decimal.Decimal `json:"reward_amount"`
	RewardType   string          `json:"reward_type"`
	Status       TaskStatus      `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewTask creates a task in CREATED status, not yet assigned to a worker.
func NewTask(taskID, creatorID, description string, reward decimal.Decimal, rewardType string) *Task {
	return &Task{
		TaskID:       taskID,
		CreatorID:    creatorID,
		Description:  description,
		RewardAmount: reward,
		RewardType:   rewardType,
		Status:       TaskCreated,
		CreatedAt:    time.Now(),
	}
}

// transition moves the task to next if the status machine allows it.
func (t *Task) transition(next TaskStatus) error {
	if !t.Status.canTransitionTo(next) {
		return protoerr.New(protoerr.StateTransitionInvalid,
			fmt.Sprintf("task %s: cannot transition from %s to %s", t.TaskID, t.Status, next))
	}
	t.Status = next
	if next == TaskCompleted || next == TaskFailed || next == TaskCancelled {
		now := time.Now()
		t.CompletedAt = &now
	}
	return nil
}

// Assign moves the task to ASSIGNED with the given worker.
func (t *Task) Assign(workerID string) error {
	if err := t.transition(TaskAssigned); err != nil {
		return err
	}
	t.WorkerID = workerID
	return nil
}

// Start moves the task to IN_PROGRESS.
func (t *Task) Start() error { return t.transition(TaskInProgress) }

// Complete moves the task to COMPLETED.
func (t *Task) Complete() error { return t.transition(TaskCompleted) }

// Fail moves the task to FAILED.
func (t *Task) Fail() error { return t.transition(TaskFailed) }

// Cancel moves the task to CANCELLED.
func (t *Task) Cancel() error { return t.transition(TaskCancelled) }

// --- Transaction protocol records -----------------------------------

// signable is implemented by every wire record in the proposal chain;
// CanonicalPreimage produces the byte string that gets Ed25519-signed.
type signable interface {
	CanonicalPreimage() []byte
}

// TaskProposal is the client's signed offer to contract work.
type TaskProposal struct {
	ProposalID   string          `json:"proposal_id"`
	TaskType     string          `json:"task_type"`
	Description  string          `json:"description"`
	Requirements []string        `json:"requirements,omitempty"`
	Budget       decimal.Decimal `json:"budget"`
	ClientID     string          `json:"client_id"`
	Timestamp    time.Time       `json:"timestamp"`
	Signature    []byte          `json:"signature,omitempty"`
}

func NewTaskProposal(taskType, description, clientID string, budget decimal.Decimal, requirements []string) *TaskProposal {
	return &TaskProposal{
		ProposalID:   uuid.NewString(),
		TaskType:     taskType,
		Description:  description,
		Requirements: requirements,
		Budget:       budget,
		ClientID:     clientID,
		Timestamp:    time.Now(),
	}
}

func (p *TaskProposal) CanonicalPreimage() []byte {
	return []byte(strings.Join([]string{
		p.ProposalID, p.TaskType, p.Description, p.ClientID,
		p.Budget.String(), p.Timestamp.UTC().Format(time.RFC3339Nano),
	}, "|"))
}

func (p *TaskProposal) Sign(priv ed25519.PrivateKey) { p.Signature = ed25519.Sign(priv, p.CanonicalPreimage()) }

func (p *TaskProposal) Verify(pub ed25519.PublicKey) error {
	return verifySignable(p, pub, p.Signature)
}

// TaskQuote is the provider's signed response to a proposal.
type TaskQuote struct {
	QuoteID           string          `json:"quote_id"`
	ProposalID        string          `json:"proposal_id"`
	EstimatedAmount   decimal.Decimal `json:"estimated_amount"`
	EstimatedTimeSec  int64           `json:"estimated_time_sec"`
	ValidUntil        time.Time       `json:"valid_until"`
	Terms             string          `json:"terms,omitempty"`
	ProviderID        string          `json:"provider_id"`
	Signature         []byte          `json:"signature,omitempty"`
}

// NewTaskQuote builds a quote against proposal, rejecting an
// EstimatedAmount above the proposal's budget.
func NewTaskQuote(proposal *TaskProposal, providerID string, amount decimal.Decimal, estimatedTimeSec int64, validFor time.Duration, terms string) (*TaskQuote, error) {
	if amount.GreaterThan(proposal.Budget) {
		return nil, protoerr.New(protoerr.InvalidAmount,
			fmt.Sprintf("quote amount %s exceeds proposal budget %s", amount, proposal.Budget))
	}
	return &TaskQuote{
		QuoteID:          uuid.NewString(),
		ProposalID:       proposal.ProposalID,
		EstimatedAmount:  amount,
		EstimatedTimeSec: estimatedTimeSec,
		ValidUntil:       time.Now().Add(validFor),
		Terms:            terms,
		ProviderID:       providerID,
	}, nil
}

func (q *TaskQuote) CanonicalPreimage() []byte {
	return []byte(strings.Join([]string{
		q.QuoteID, q.ProposalID, q.EstimatedAmount.String(), q.ProviderID,
		q.ValidUntil.UTC().Format(time.RFC3339Nano),
	}, "|"))
}

func (q *TaskQuote) Sign(priv ed25519.PrivateKey) { q.Signature = ed25519.Sign(priv, q.CanonicalPreimage()) }

func (q *TaskQuote) Verify(pub ed25519.PublicKey) error {
	return verifySignable(q, pub, q.Signature)
}

// IsExpired reports whether the quote is past its valid_until deadline.
func (q *TaskQuote) IsExpired(now time.Time) bool { return now.After(q.ValidUntil) }

// Agreement is the client's confirmation of a quote, binding both
// parties to confirmed_amount and deadline.
type Agreement struct {
	AgreementID     string          `json:"agreement_id"`
	QuoteID         string          `json:"quote_id"`
	TaskID          string          `json:"task_id"`
	ConfirmedAmount decimal.Decimal `json:"confirmed_amount"`
	EscrowAddress   string          `json:"escrow_address"`
	Deadline        time.Time       `json:"deadline"`
	ClientID        string          `json:"client_id"`
	ProviderID      string          `json:"provider_id"`
	Signature       []byte          `json:"signature,omitempty"`
}

// NewAgreement constructs an agreement against quote, before its
// valid_until deadline.
func NewAgreement(quote *TaskQuote, taskID, escrowAddress, clientID string, deadline time.Time) (*Agreement, error) {
	if quote.IsExpired(time.Now()) {
		return nil, protoerr.New(protoerr.QuoteExpired, fmt.Sprintf("quote %s expired at %s", quote.QuoteID, quote.ValidUntil))
	}
	return &Agreement{
		AgreementID:     uuid.NewString(),
		QuoteID:         quote.QuoteID,
		TaskID:          taskID,
		ConfirmedAmount: quote.EstimatedAmount,
		EscrowAddress:   escrowAddress,
		Deadline:        deadline,
		ClientID:        clientID,
		ProviderID:      quote.ProviderID,
	}, nil
}

func (a *Agreement) CanonicalPreimage() []byte {
	return []byte(strings.Join([]string{
		a.AgreementID, a.QuoteID, a.TaskID, a.ConfirmedAmount.String(),
		a.EscrowAddress, a.ClientID, a.ProviderID, a.Deadline.UTC().Format(time.RFC3339Nano),
	}, "|"))
}

func (a *Agreement) Sign(priv ed25519.PrivateKey) { a.Signature = ed25519.Sign(priv, a.CanonicalPreimage()) }

func (a *Agreement) Verify(pub ed25519.PublicKey) error {
	return verifySignable(a, pub, a.Signature)
}

func verifySignable(s signable, pub ed25519.PublicKey, sig []byte) error {
	if len(sig) == 0 {
		return protoerr.New(protoerr.InvalidSignature, "record is unsigned")
	}
	if !ed25519.Verify(pub, s.CanonicalPreimage(), sig) {
		return protoerr.New(protoerr.InvalidSignature, "signature verification failed")
	}
	return nil
}

// MarshalChain is a convenience for logging/audit: renders proposal,
// quote, and agreement IDs as one reference chain string.
func MarshalChain(p *TaskProposal, q *TaskQuote, a *Agreement) string {
	data, _ := json.Marshal(struct {
		ProposalID  string `json:"proposal_id"`
		QuoteID     string `json:"quote_id"`
		AgreementID string `json:"agreement_id"`
	}{p.ProposalID, q.QuoteID, a.AgreementID})
	return string(data)
}
