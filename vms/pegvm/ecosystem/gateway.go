// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ecosystem answers entry checks for the wider ecosystem and announces
// outbound bridge requests.
package ecosystem

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/pegvm/vms/pegvm/auth"
	"github.com/luxfi/pegvm/vms/pegvm/events"
	"github.com/luxfi/pegvm/vms/pegvm/provenance"
)

var (
	ErrNotEligible       = errors.New("holder is not ecosystem eligible")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrEmptyTargetChain  = errors.New("target chain is empty")
	ErrInsufficientFunds = errors.New("bridge amount exceeds balance")
)

// Registry is the read side of the provenance registry.
type Registry interface {
	Lookup(account ids.ShortID) (provenance.Source, bool)
	IsEcosystemEligible(account ids.ShortID) bool
	BatchVerify(accounts []ids.ShortID, sources []provenance.Source) ([]bool, error)
}

// Balances reports ledger balances.
type Balances interface {
	Balance(account ids.ShortID) uint64
}

// Gateway never mutates ledger or registry state.
type Gateway struct {
	log      log.Logger
	registry Registry
	balances Balances
	authz    auth.Authorizer
	sink     events.Sink
}

func NewGateway(
	registry Registry,
	balances Balances,
	authz auth.Authorizer,
	sink events.Sink,
	logger log.Logger,
) *Gateway {
	return &Gateway{
		log:      logger,
		registry: registry,
		balances: balances,
		authz:    authz,
		sink:     sink,
	}
}

// VerifyEcosystemEntry is true iff [account] was funded by a valid source.
func (g *Gateway) VerifyEcosystemEntry(account ids.ShortID) bool {
	return g.registry.IsEcosystemEligible(account)
}

// BatchVerify reports per index whether the proposed source is valid.
func (g *Gateway) BatchVerify(accounts []ids.ShortID, sources []provenance.Source) ([]bool, error) {
	return g.registry.BatchVerify(accounts, sources)
}

// NotifyBridge emits a BridgeRequested event for [amount] of [holder]'s
// tokens. No tokens are moved.
func (g *Gateway) NotifyBridge(ctx context.Context, holder ids.ShortID, amount uint64, targetChain string) error {
	if err := g.authz.Authorize(ctx, holder); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if targetChain == "" {
		return ErrEmptyTargetChain
	}
	source, ok := g.registry.Lookup(holder)
	if !ok || !source.Valid() {
		return fmt.Errorf("%w: %s", ErrNotEligible, holder)
	}
	if balance := g.balances.Balance(holder); balance < amount {
		return fmt.Errorf("%w: %s holds %d, requested %d",
			ErrInsufficientFunds, holder, balance, amount)
	}

	g.log.Info("bridge notification",
		log.Stringer("holder", holder),
		log.String("targetChain", targetChain),
	)
	g.sink.Emit(events.BridgeRequested{
		Holder:      holder,
		Amount:      amount,
		TargetChain: targetChain,
		Source:      source,
	})
	return nil
}
