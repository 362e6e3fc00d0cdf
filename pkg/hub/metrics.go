// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the hub's Prometheus metrics surface (SPEC_FULL §12), served by
// cmd/devac's promhttp handler, the same way the donor exposes index metrics.
type Metrics struct {
	ReposRegistered  prometheus.Counter
	RefreshDuration  prometheus.Histogram
	AffectedSetDepth prometheus.Histogram
}

// NewMetrics registers the hub's metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReposRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "devac_hub_repos_registered_total",
			Help: "Number of Register calls completed successfully.",
		}),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "devac_hub_refresh_duration_seconds",
			Help: "Wall-clock duration of Refresh calls.",
		}),
		AffectedSetDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "devac_hub_analyze_depth",
			Help: "max_depth used in Analyze affected-set traversals.",
			Buckets: []float64{1, 2, 3, 5, 10, 20},
		}),
	}
}
