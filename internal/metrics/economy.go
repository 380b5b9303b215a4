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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WalletOperations tracks wallet mutations by kind and outcome.
	WalletOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "operations_total",
			Help:      "Total number of wallet operations",
		},
		[]string{"operation", "status"}, // deposit/withdraw/transfer/mint/burn, success/failure
	)

	// WalletBalance is a gauge snapshot of an entity's balance, sampled on write.
	WalletBalance = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "balance",
			Help:      "Wallet balance after the last applied operation",
		},
		[]string{"entity_id"},
	)

	// TaskLockedFunds tracks the total amount currently locked against tasks.
	TaskLockedFunds = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "economy",
			Name:      "locked_funds",
			Help:      "Total funds currently locked against in-flight task contracts",
		},
	)

	// SupplyTotals tracks total/circulating supply and treasury balance.
	SupplyTotals = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "economy",
			Name:      "supply",
			Help:      "Token supply statistics",
		},
		[]string{"metric"}, // total, circulating, treasury, minted, burned
	)

	// TaskTransitions tracks task contract state transitions.
	TaskTransitions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "economy",
			Name:      "task_transitions_total",
			Help:      "Total number of task contract state transitions",
		},
		[]string{"to_status"},
	)
)
