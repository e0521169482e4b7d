// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/luxfi/metric"

	"github.com/luxfi/pegvm/utils/wrappers"
	"github.com/luxfi/pegvm/vms/pegvm/events"
)

const (
	kindLabel = "kind"
	opLabel   = "op"
)

var _ events.Sink = (*Metrics)(nil)

// Metrics tracks emitted events, rejected operations and the headline ledger
// values. It is an events.Sink so it can be fanned out to next to the log.
type Metrics struct {
	events   metric.CounterVec
	rejected metric.CounterVec

	totalSupply      metric.Gauge
	collateralLocked metric.Gauge
	sequence         metric.Gauge
	proposals        metric.Gauge
}

func New(registerer metric.Registerer) (*Metrics, error) {
	m := &Metrics{
		events: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "events",
				Help: "Number of domain events emitted",
			},
			[]string{kindLabel},
		),
		rejected: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "rejected_ops",
				Help: "Number of operations that failed validation",
			},
			[]string{opLabel},
		),
		totalSupply: metric.NewGauge(metric.GaugeOpts{
			Name: "total_supply",
			Help: "Total number of tokens in circulation",
		}),
		collateralLocked: metric.NewGauge(metric.GaugeOpts{
			Name: "collateral_locked",
			Help: "Collateral backing the circulating supply",
		}),
		sequence: metric.NewGauge(metric.GaugeOpts{
			Name: "ledger_sequence",
			Help: "Number of committed ledger mutations",
		}),
		proposals: metric.NewGauge(metric.GaugeOpts{
			Name: "proposals",
			Help: "Number of governance proposals created",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(metric.AsCollector(m.events)),
		registerer.Register(metric.AsCollector(m.rejected)),
		registerer.Register(metric.AsCollector(m.totalSupply)),
		registerer.Register(metric.AsCollector(m.collateralLocked)),
		registerer.Register(metric.AsCollector(m.sequence)),
		registerer.Register(metric.AsCollector(m.proposals)),
	)
	return m, errs.Err
}

func (m *Metrics) Emit(e events.Event) {
	m.events.With(metric.Labels{
		kindLabel: e.Kind().String(),
	}).Inc()
}

// MarkRejected counts a failed operation.
func (m *Metrics) MarkRejected(op string) {
	m.rejected.With(metric.Labels{
		opLabel: op,
	}).Inc()
}

// ObserveLedger records the ledger values after a committed operation.
func (m *Metrics) ObserveLedger(totalSupply, collateralLocked, sequence uint64) {
	m.totalSupply.Set(float64(totalSupply))
	m.collateralLocked.Set(float64(collateralLocked))
	m.sequence.Set(float64(sequence))
}

func (m *Metrics) ObserveProposals(n int) {
	m.proposals.Set(float64(n))
}
