// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package keys

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
)

func TestSHA256MatchesStandard(t *testing.T) {
	require := require.New(t)

	expected := sha256.Sum256(AntiFraudSeed)
	require.Equal(ids.ID(expected), SHA256(AntiFraudSeed))
}

func TestDeriveDeterministic(t *testing.T) {
	require := require.New(t)

	a := Derive(SHA256, DeploySeed)
	b := Derive(SHA256, DeploySeed)
	require.Equal(a, b)
	require.NotEqual(a, Derive(SHA256, ModelSeed))
}

func TestHolderDigest(t *testing.T) {
	require := require.New(t)

	holder := ids.GenerateTestShortID()
	expected := sha256.Sum256(holder[:])
	require.Equal(ids.ID(expected), HolderDigest(SHA256, holder))
}
