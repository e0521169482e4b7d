// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pegvm implements a ledger and governance VM for a pegged token
// whose issuance is restricted to an allow-listed set of sources.
//
// The VM provides:
//   - Collateral backed minting recorded against the funding source
//   - Provenance gated transfers with anti-fraud confirmation digests
//   - Peg verification with a bounded trend adjustment
//   - Stake gated proposals, voting and quorum finalization
//   - Ecosystem entry checks and bridge notifications
package pegvm

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

var (
	// ID is the unique identifier for the peg VM
	ID = ids.ID{'p', 'e', 'g', 'v', 'm'}

	_ Factory = factory{}
)

// Factory creates new VM instances.
type Factory interface {
	New(log.Logger) (interface{}, error)
}

type factory struct{}

func NewFactory() Factory {
	return factory{}
}

func (factory) New(logger log.Logger) (interface{}, error) {
	return New(logger), nil
}
