// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package peg computes the peg value of the token.
//
// The peg is the reference base value plus a constant adjustment derived from
// an approximation of pi, optionally shifted by a trend term that depends only
// on the supplied ledger time. The computation holds no state, so two calls
// with the same inputs always agree.
package peg

import (
	"github.com/luxfi/pegvm/utils/math"
	"github.com/luxfi/pegvm/vms/pegvm/provenance"
)

const (
	// PiApprox is pi scaled by 1e9.
	PiApprox uint64 = 3_141_590_000

	// PiAdjustment is the constant added to every peg value.
	PiAdjustment = PiApprox / 1000

	// TrendPeriod is the number of ledger ticks after which the trend repeats.
	TrendPeriod uint64 = 100

	// TrendBucket is the number of ticks sharing a trend level.
	TrendBucket uint64 = 10

	// TrendStep is the peg increment per trend level.
	TrendStep uint64 = 1000

	// MaxTrend is the largest value Trend can return.
	MaxTrend = (TrendPeriod - 1) / TrendBucket * TrendStep

	// MaxAdjustment bounds the total distance between a peg and its base.
	MaxAdjustment = PiAdjustment + MaxTrend
)

// Trend returns the trend term at [time]. It is always in [0, MaxTrend].
func Trend(time uint64) uint64 {
	return (time % TrendPeriod) / TrendBucket * TrendStep
}

// Oracle computes peg values.
type Oracle struct {
	trendEnabled bool
}

// NewOracle returns an oracle. When [trendEnabled] is false the time input is
// ignored and only the constant adjustment is applied.
func NewOracle(trendEnabled bool) *Oracle {
	return &Oracle{trendEnabled: trendEnabled}
}

// Compute returns the peg value for a holder funded by [source] at ledger
// [time].
func (o *Oracle) Compute(base uint64, source provenance.Source, time uint64) (uint64, error) {
	if !source.Valid() {
		return 0, provenance.ErrInvalidSource
	}
	adjustment := PiAdjustment
	if o.trendEnabled {
		adjustment += Trend(time)
	}
	return math.Add(base, adjustment)
}
