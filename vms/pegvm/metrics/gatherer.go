// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/metric"
)

// Gatherer exposes a native gatherer to prometheus handlers.
func Gatherer(g metric.Gatherer) prometheus.Gatherer {
	return prometheus.GathererFunc(g.Gather)
}
