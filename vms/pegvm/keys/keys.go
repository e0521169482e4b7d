// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package keys derives fixed width digests used across the peg VM: the
// anti-fraud base, the governance model identifier, holder provenance digests
// and seed derived keys.
package keys

import (
	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/ids"
)

var (
	// AntiFraudSeed seeds the digest every transfer confirmation is chained to.
	AntiFraudSeed = []byte("PiCoin-Ultimate-Hyper-Tech-Unique")
	// ModelSeed identifies the proposal scoring model.
	ModelSeed = []byte("PiCoin-Governance-AI-Ultimate")
	// DeploySeed is the seed of the key derived when a chain is first created.
	DeploySeed = []byte("PiCoin-Deploy-Key")
)

// HashFn maps arbitrary bytes to a 32 byte digest.
type HashFn func([]byte) ids.ID

// SHA256 is the default HashFn.
func SHA256(b []byte) ids.ID {
	return ids.ID(hash.ComputeHash256Array(b))
}

// Derive returns the key derived from [seed]. No key material is generated;
// the key is the digest of the seed.
func Derive(hashFn HashFn, seed []byte) ids.ID {
	return hashFn(seed)
}

// HolderDigest is the provenance digest of an account.
func HolderDigest(hashFn HashFn, holder ids.ShortID) ids.ID {
	return hashFn(holder[:])
}
