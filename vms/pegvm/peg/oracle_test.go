// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package peg

import (
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/pegvm/utils/math"
	"github.com/luxfi/pegvm/vms/pegvm/provenance"
)

const testBase uint64 = 314_159_000_000

func TestComputeConstantAdjustment(t *testing.T) {
	require := require.New(t)

	o := NewOracle(false)
	for _, time := range []uint64{0, 37, 1_000_000} {
		value, err := o.Compute(testBase, provenance.Mining, time)
		require.NoError(err)
		require.Equal(testBase+3_141_590, value)
	}
}

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		time     uint64
		expected uint64
	}{
		{time: 0, expected: testBase + PiAdjustment},
		{time: 9, expected: testBase + PiAdjustment},
		{time: 10, expected: testBase + PiAdjustment + 1000},
		{time: 99, expected: testBase + PiAdjustment + 9000},
		{time: 100, expected: testBase + PiAdjustment},
		{time: 1_000_057, expected: testBase + PiAdjustment + 5000},
	}
	o := NewOracle(true)
	for _, test := range tests {
		value, err := o.Compute(testBase, provenance.P2P, test.time)
		require.NoError(t, err)
		require.Equal(t, test.expected, value, "time %d", test.time)
	}
}

func TestComputeIdempotent(t *testing.T) {
	require := require.New(t)

	o := NewOracle(true)
	first, err := o.Compute(testBase, provenance.Rewards, 42)
	require.NoError(err)
	second, err := o.Compute(testBase, provenance.Rewards, 42)
	require.NoError(err)
	require.Equal(first, second)
}

func TestComputeBounded(t *testing.T) {
	require := require.New(t)

	o := NewOracle(true)
	for time := uint64(0); time < 2*TrendPeriod; time++ {
		value, err := o.Compute(testBase, provenance.Mining, time)
		require.NoError(err)
		require.GreaterOrEqual(value, testBase+PiAdjustment)
		require.LessOrEqual(value, testBase+MaxAdjustment)
	}
}

func TestComputeRejectsInvalidSource(t *testing.T) {
	_, err := NewOracle(true).Compute(testBase, provenance.Invalid, 0)
	require.ErrorIs(t, err, provenance.ErrInvalidSource)
}

func TestComputeOverflow(t *testing.T) {
	_, err := NewOracle(false).Compute(stdmath.MaxUint64, provenance.Mining, 0)
	require.ErrorIs(t, err, math.ErrOverflow)
}
