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
	// RegistryEntries tracks the size of the static service registry.
	RegistryEntries = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "registry_entries",
			Help:      "Number of live entries in the static service registry",
		},
	)

	// DHTBucketSize tracks k-bucket occupancy by bucket index.
	DHTBucketSize = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dht",
			Name:      "bucket_size",
			Help:      "Number of contacts held in a routing-table bucket",
		},
		[]string{"bucket"},
	)

	// DHTLookups tracks find_node/find_value RPC outcomes.
	DHTLookups = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dht",
			Name:      "lookups_total",
			Help:      "Total number of DHT lookups performed",
		},
		[]string{"rpc", "outcome"}, // find_node/find_value, hit/miss
	)

	// RelayQueueDepth tracks how many messages are queued across all recipients.
	RelayQueueDepth = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "queue_depth",
			Help:      "Total number of messages queued across all offline recipients",
		},
	)

	// RelayForwards tracks relay forward() outcomes.
	RelayForwards = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "forwards_total",
			Help:      "Total number of relayed message forward attempts",
		},
		[]string{"outcome"}, // delivered, queued, expired, rate_limited, hop_limit
	)
)
