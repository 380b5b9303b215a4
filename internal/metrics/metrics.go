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

// Package metrics exposes the platform's Prometheus collectors. Every
// subsystem registers its own metrics here at package-init time via
// promauto, under the shared namespace and registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "aicp"

// Registry is the process-wide Prometheus registry. It is shared by every
// metrics file in this package so a single /metrics endpoint (see Handler)
// exposes all of them.
var Registry = prometheus.NewRegistry()
