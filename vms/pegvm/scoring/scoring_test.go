// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scoring

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/pegvm/vms/pegvm/keys"
	"github.com/luxfi/pegvm/vms/pegvm/provenance"
)

type countingOracle struct {
	calls int
	score uint8
}

func (c *countingOracle) Score([]byte) uint8 {
	c.calls++
	return c.score
}

func TestLengthOracle(t *testing.T) {
	tests := []struct {
		description string
		expected    uint8
	}{
		{description: "", expected: 0},
		{description: "rebase", expected: 60},
		{description: "Update peg to $314,160", expected: 20},
		{description: string(bytes.Repeat([]byte{'x'}, 10)), expected: 0},
		{description: string(bytes.Repeat([]byte{'x'}, 29)), expected: 90},
	}
	for _, test := range tests {
		require.Equal(t, test.expected, LengthOracle{}.Score([]byte(test.description)), test.description)
	}
}

func TestLengthOracleBounded(t *testing.T) {
	for n := range 500 {
		require.LessOrEqual(t, LengthOracle{}.Score(make([]byte, n)), MaxScore)
	}
}

func TestCached(t *testing.T) {
	require := require.New(t)

	inner := &countingOracle{score: 72}
	c := NewCached(inner, keys.SHA256, 8)

	require.Equal(uint8(72), c.Score([]byte("raise quorum")))
	require.Equal(uint8(72), c.Score([]byte("raise quorum")))
	require.Equal(1, inner.calls)

	require.Equal(uint8(72), c.Score([]byte("lower quorum")))
	require.Equal(2, inner.calls)
}

func TestPredictStability(t *testing.T) {
	require := require.New(t)

	price, err := PredictStability(314_159_000_000, provenance.Mining, 35)
	require.NoError(err)
	require.Equal(uint64(314_159_003_000), price)

	_, err = PredictStability(314_159_000_000, provenance.Invalid, 35)
	require.ErrorIs(err, provenance.ErrInvalidSource)
}
