// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger owns balances, total supply, locked collateral and the peg
// base of the token.
//
// Every mutating operation validates all of its preconditions before it
// touches state, so a failed call leaves the ledger exactly as it was. The
// ledger is not synchronized; callers serialize access.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/pegvm/utils/math"
	"github.com/luxfi/pegvm/utils/wrappers"
	"github.com/luxfi/pegvm/vms/pegvm/auth"
	"github.com/luxfi/pegvm/vms/pegvm/events"
	"github.com/luxfi/pegvm/vms/pegvm/keys"
	"github.com/luxfi/pegvm/vms/pegvm/provenance"
)

const (
	// DefaultPegBaseValue is the reference value of the peg.
	DefaultPegBaseValue uint64 = 314_159_000_000

	confirmationLen = ids.IDLen + 2*len(ids.ShortID{}) + 2*wrappers.LongLen
)

var (
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvariantViolation     = errors.New("ledger invariant violated")
)

// Registry is the provenance capability the ledger depends on.
type Registry interface {
	SetIfAbsent(account ids.ShortID, source provenance.Source) (bool, error)
	Lookup(account ids.ShortID) (provenance.Source, bool)
}

// PegOracle computes the peg value of a holder.
type PegOracle interface {
	Compute(base uint64, source provenance.Source, time uint64) (uint64, error)
}

// Config is the genesis configuration of a ledger.
type Config struct {
	// Issuer is the account whose authorization is required to mint and to
	// lock collateral.
	Issuer           ids.ShortID
	CollateralLocked uint64
	PegBaseValue     uint64
}

// Balance is the persisted balance of a single account.
type Balance struct {
	Account ids.ShortID `serialize:"true" json:"account"`
	Amount  uint64      `serialize:"true" json:"amount"`
}

// Snapshot is the persisted form of the ledger.
type Snapshot struct {
	TotalSupply      uint64    `serialize:"true" json:"totalSupply"`
	CollateralLocked uint64    `serialize:"true" json:"collateralLocked"`
	PegBaseValue     uint64    `serialize:"true" json:"pegBaseValue"`
	AntiFraudDigest  ids.ID    `serialize:"true" json:"antiFraudDigest"`
	Sequence         uint64    `serialize:"true" json:"sequence"`
	Balances         []Balance `serialize:"true" json:"balances"`
}

type Ledger struct {
	log      log.Logger
	hashFn   keys.HashFn
	issuer   ids.ShortID
	registry Registry
	oracle   PegOracle
	authz    auth.Authorizer
	sink     events.Sink

	totalSupply      uint64
	collateralLocked uint64
	pegBaseValue     uint64
	antiFraudDigest  ids.ID
	sequence         uint64
	balances         map[ids.ShortID]uint64
}

// New returns an empty ledger backed by [config.CollateralLocked].
func New(
	config Config,
	registry Registry,
	oracle PegOracle,
	authz auth.Authorizer,
	sink events.Sink,
	hashFn keys.HashFn,
	logger log.Logger,
) *Ledger {
	pegBase := config.PegBaseValue
	if pegBase == 0 {
		pegBase = DefaultPegBaseValue
	}
	return &Ledger{
		log:              logger,
		hashFn:           hashFn,
		issuer:           config.Issuer,
		registry:         registry,
		oracle:           oracle,
		authz:            authz,
		sink:             sink,
		collateralLocked: config.CollateralLocked,
		pegBaseValue:     pegBase,
		antiFraudDigest:  keys.Derive(hashFn, keys.AntiFraudSeed),
		balances:         make(map[ids.ShortID]uint64),
	}
}

// Mint credits [amount] new tokens to [to] and records [source] as the
// provenance of [to] if it has none yet.
func (l *Ledger) Mint(ctx context.Context, to ids.ShortID, amount uint64, source provenance.Source) error {
	if err := l.authz.Authorize(ctx, l.issuer); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	if !source.Valid() {
		return provenance.ErrInvalidSource
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	newSupply, err := math.Add(l.totalSupply, amount)
	if err != nil || newSupply > l.collateralLocked {
		return fmt.Errorf("%w: supply %d + %d exceeds collateral %d",
			ErrInsufficientCollateral, l.totalSupply, amount, l.collateralLocked)
	}
	// sum(balances) == totalSupply, so no balance can overflow here.
	newBalance := l.balances[to] + amount

	if _, err := l.registry.SetIfAbsent(to, source); err != nil {
		return err
	}
	l.balances[to] = newBalance
	l.totalSupply = newSupply
	l.sequence++

	l.sink.Emit(events.Minted{
		To:     to,
		Amount: amount,
		Source: source,
	})
	return nil
}

// Transfer moves [amount] from [from] to [to]. [from] must have been funded
// by a valid issuance source.
func (l *Ledger) Transfer(ctx context.Context, from, to ids.ShortID, amount uint64) error {
	if err := l.authz.Authorize(ctx, from); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if source, ok := l.registry.Lookup(from); !ok || !source.Valid() {
		return fmt.Errorf("%w: %s has no provenance", provenance.ErrInvalidSource, from)
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	fromBalance := l.balances[from]
	remaining, err := math.Sub(fromBalance, amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %d, needs %d",
			ErrInsufficientBalance, from, fromBalance, amount)
	}

	l.setBalance(from, remaining)
	l.setBalance(to, l.balances[to]+amount)
	l.sequence++

	digest, err := l.confirmationDigest(from, to, amount, l.sequence)
	if err != nil {
		// The preimage has a fixed length; this is unreachable.
		l.log.Error("failed to build transfer confirmation",
			log.Err(err),
		)
	}

	l.sink.Emit(events.Transferred{
		From:   from,
		To:     to,
		Amount: amount,
	})
	l.sink.Emit(events.TransferConfirmed{
		From:     from,
		To:       to,
		Amount:   amount,
		Sequence: l.sequence,
		Digest:   digest,
	})
	return nil
}

// LockCollateral adds [amount] to the locked collateral.
func (l *Ledger) LockCollateral(ctx context.Context, amount uint64) error {
	if err := l.authz.Authorize(ctx, l.issuer); err != nil {
		return fmt.Errorf("lock collateral: %w", err)
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	total, err := math.Add(l.collateralLocked, amount)
	if err != nil {
		return fmt.Errorf("lock collateral: %w", err)
	}
	l.collateralLocked = total
	l.sequence++

	l.sink.Emit(events.CollateralLocked{
		Amount: amount,
		Total:  total,
	})
	return nil
}

// VerifyPeg returns the peg value for [holder] at ledger [time]. It fails with
// provenance.ErrInvalidSource if [holder] was never funded.
func (l *Ledger) VerifyPeg(holder ids.ShortID, time uint64) (uint64, error) {
	source, ok := l.registry.Lookup(holder)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no provenance", provenance.ErrInvalidSource, holder)
	}
	return l.oracle.Compute(l.pegBaseValue, source, time)
}

// Audit scans every balance and verifies that the balances add up to the
// total supply and that the supply is backed by collateral.
func (l *Ledger) Audit() error {
	var sum uint64
	for account, balance := range l.balances {
		next, err := math.Add(sum, balance)
		if err != nil {
			return fmt.Errorf("%w: balances overflow at %s", ErrInvariantViolation, account)
		}
		sum = next
	}
	if sum != l.totalSupply {
		return fmt.Errorf("%w: balances sum to %d, total supply is %d",
			ErrInvariantViolation, sum, l.totalSupply)
	}
	if l.totalSupply > l.collateralLocked {
		return fmt.Errorf("%w: total supply %d exceeds collateral %d",
			ErrInvariantViolation, l.totalSupply, l.collateralLocked)
	}
	return nil
}

func (l *Ledger) Balance(account ids.ShortID) uint64 {
	return l.balances[account]
}

func (l *Ledger) TotalSupply() uint64 {
	return l.totalSupply
}

func (l *Ledger) CollateralLocked() uint64 {
	return l.collateralLocked
}

func (l *Ledger) PegBaseValue() uint64 {
	return l.pegBaseValue
}

func (l *Ledger) AntiFraudDigest() ids.ID {
	return l.antiFraudDigest
}

// Sequence is the number of committed ledger mutations.
func (l *Ledger) Sequence() uint64 {
	return l.sequence
}

// Snapshot returns the ledger state with balances ordered by account.
func (l *Ledger) Snapshot() Snapshot {
	balances := make([]Balance, 0, len(l.balances))
	for account, amount := range l.balances {
		balances = append(balances, Balance{
			Account: account,
			Amount:  amount,
		})
	}
	slices.SortFunc(balances, func(a, b Balance) int {
		return bytes.Compare(a.Account[:], b.Account[:])
	})
	return Snapshot{
		TotalSupply:      l.totalSupply,
		CollateralLocked: l.collateralLocked,
		PegBaseValue:     l.pegBaseValue,
		AntiFraudDigest:  l.antiFraudDigest,
		Sequence:         l.sequence,
		Balances:         balances,
	}
}

// Restore replaces the ledger state with [snapshot]. The snapshot is audited
// first and the ledger is left untouched if it is inconsistent.
func (l *Ledger) Restore(snapshot Snapshot) error {
	restored := &Ledger{
		totalSupply:      snapshot.TotalSupply,
		collateralLocked: snapshot.CollateralLocked,
		balances:         make(map[ids.ShortID]uint64, len(snapshot.Balances)),
	}
	for _, balance := range snapshot.Balances {
		if _, ok := restored.balances[balance.Account]; ok {
			return fmt.Errorf("%w: duplicate balance for %s", ErrInvariantViolation, balance.Account)
		}
		restored.setBalance(balance.Account, balance.Amount)
	}
	if err := restored.Audit(); err != nil {
		return err
	}

	l.totalSupply = snapshot.TotalSupply
	l.collateralLocked = snapshot.CollateralLocked
	l.pegBaseValue = snapshot.PegBaseValue
	l.antiFraudDigest = snapshot.AntiFraudDigest
	l.sequence = snapshot.Sequence
	l.balances = restored.balances
	return nil
}

func (l *Ledger) setBalance(account ids.ShortID, amount uint64) {
	if amount == 0 {
		delete(l.balances, account)
		return
	}
	l.balances[account] = amount
}

// confirmationDigest chains a transfer to the anti-fraud digest.
func (l *Ledger) confirmationDigest(from, to ids.ShortID, amount, sequence uint64) (ids.ID, error) {
	p := wrappers.Packer{
		MaxSize: confirmationLen,
		Bytes:   make([]byte, 0, confirmationLen),
	}
	p.PackFixedBytes(l.antiFraudDigest[:])
	p.PackFixedBytes(from[:])
	p.PackFixedBytes(to[:])
	p.PackLong(amount)
	p.PackLong(sequence)
	if p.Errored() {
		return ids.Empty, p.Err
	}
	return l.hashFn(p.Bytes), nil
}
