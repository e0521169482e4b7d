// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines configuration types for the peg VM.
package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/pegvm/vms/pegvm/governance"
	"github.com/luxfi/pegvm/vms/pegvm/ledger"
)

var (
	ErrNoIssuer        = errors.New("issuer must be set")
	ErrZeroQuorum      = errors.New("quorum threshold must be positive")
	ErrZeroPegBase     = errors.New("peg base value must be positive")
	ErrInvalidCacheLen = errors.New("cache sizes must be positive")
)

// Config contains configuration parameters for the peg VM.
type Config struct {
	// Issuer is the account allowed to mint and to lock collateral
	Issuer ids.ShortID `json:"issuer"`
	// CollateralLocked is the genesis collateral backing the supply
	CollateralLocked uint64 `json:"collateralLocked"`
	// PegBaseValue is the reference value of the peg
	PegBaseValue uint64 `json:"pegBaseValue"`
	// PegTrendEnabled adds the ledger sequence trend to peg values
	PegTrendEnabled bool `json:"pegTrendEnabled"`

	// Governance configuration
	QuorumThreshold uint32 `json:"quorumThreshold"`
	AllowRevote     bool   `json:"allowRevote"`

	// Cache and history sizes
	ScoreCacheSize   int `json:"scoreCacheSize"`
	DigestCacheSize  int `json:"digestCacheSize"`
	EventHistorySize int `json:"eventHistorySize"`
}

// DefaultConfig returns the default configuration for the peg VM.
func DefaultConfig() Config {
	return Config{
		CollateralLocked: 100_000_000_000,
		PegBaseValue:     ledger.DefaultPegBaseValue,
		PegTrendEnabled:  true,

		QuorumThreshold: governance.DefaultQuorumThreshold,
		AllowRevote:     false,

		ScoreCacheSize:   1024,
		DigestCacheSize:  1024,
		EventHistorySize: 4096,
	}
}

// Parse overlays [configBytes] on the default configuration. The defaults
// carry no issuer, so [configBytes] must name one.
func Parse(configBytes []byte) (Config, error) {
	config := DefaultConfig()
	if len(configBytes) > 0 {
		if err := json.Unmarshal(configBytes, &config); err != nil {
			return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	return config, config.Verify()
}

// Verify returns an error if the configuration can't be used.
func (c Config) Verify() error {
	switch {
	case c.Issuer == ids.ShortEmpty:
		return ErrNoIssuer
	case c.QuorumThreshold == 0:
		return ErrZeroQuorum
	case c.PegBaseValue == 0:
		return ErrZeroPegBase
	case c.ScoreCacheSize <= 0, c.DigestCacheSize <= 0, c.EventHistorySize <= 0:
		return ErrInvalidCacheLen
	default:
		return nil
	}
}

func (c Config) Ledger() ledger.Config {
	return ledger.Config{
		Issuer:           c.Issuer,
		CollateralLocked: c.CollateralLocked,
		PegBaseValue:     c.PegBaseValue,
	}
}

func (c Config) Governance() governance.Config {
	return governance.Config{
		QuorumThreshold: c.QuorumThreshold,
		AllowRevote:     c.AllowRevote,
	}
}
