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
	// ReputationEvents tracks evaluation verdicts applied to entities.
	ReputationEvents = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reputation",
			Name:      "events_total",
			Help:      "Total number of reputation events recorded",
		},
		[]string{"verdict"}, // pass, partial, fail
	)

	// ReputationScore is a gauge of an entity's current score.
	ReputationScore = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reputation",
			Name:      "score",
			Help:      "Current reputation score",
		},
		[]string{"entity_id"},
	)

	// TransactionStateTransitions tracks contract/escrow state changes.
	TransactionStateTransitions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transaction",
			Name:      "state_transitions_total",
			Help:      "Total number of transaction state transitions",
		},
		[]string{"to_state"},
	)

	// EscrowReleases tracks escrow settlement outcomes.
	EscrowReleases = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transaction",
			Name:      "escrow_releases_total",
			Help:      "Total number of escrow releases by outcome",
		},
		[]string{"outcome"}, // full, partial, timeout, dispute
	)
)
