// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package scoring provides the proposal scoring capability used by governance
// and the stability predictor used by the API. Every scorer is a pure
// function of its input.
package scoring

import (
	"github.com/luxfi/cache/lru"
	"github.com/luxfi/ids"

	"github.com/luxfi/pegvm/utils/math"
	"github.com/luxfi/pegvm/vms/pegvm/keys"
	"github.com/luxfi/pegvm/vms/pegvm/peg"
	"github.com/luxfi/pegvm/vms/pegvm/provenance"
)

// MaxScore is the largest score an Oracle may return.
const MaxScore uint8 = 99

var (
	_ Oracle = LengthOracle{}
	_ Oracle = Fixed(0)
	_ Oracle = (*Cached)(nil)
)

// Oracle scores a proposal description. Implementations must be
// deterministic and return a value in [0, MaxScore].
type Oracle interface {
	Score(description []byte) uint8
}

// LengthOracle scores a description by its length: (len*10) mod 100.
type LengthOracle struct{}

func (LengthOracle) Score(description []byte) uint8 {
	return uint8((uint64(len(description)) * 10) % (uint64(MaxScore) + 1))
}

// Fixed returns the same score for every description.
type Fixed uint8

func (f Fixed) Score([]byte) uint8 {
	return uint8(f)
}

type scoreCache interface {
	Get(ids.ID) (uint8, bool)
	Put(ids.ID, uint8)
}

// Cached memoizes an Oracle by description digest.
type Cached struct {
	oracle Oracle
	hashFn keys.HashFn
	scores scoreCache
}

// NewCached wraps [oracle] with an LRU of [size] entries.
func NewCached(oracle Oracle, hashFn keys.HashFn, size int) *Cached {
	return &Cached{
		oracle: oracle,
		hashFn: hashFn,
		scores: lru.NewCache[ids.ID, uint8](size),
	}
}

func (c *Cached) Score(description []byte) uint8 {
	key := c.hashFn(description)
	if score, ok := c.scores.Get(key); ok {
		return score
	}
	score := c.oracle.Score(description)
	c.scores.Put(key, score)
	return score
}

// PredictStability projects [price] forward using the ledger trend at
// [sequence].
func PredictStability(price uint64, source provenance.Source, sequence uint64) (uint64, error) {
	if !source.Valid() {
		return 0, provenance.ErrInvalidSource
	}
	return math.Add(price, peg.Trend(sequence))
}
