// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events defines the domain events emitted by the ledger, the
// governance engine and the ecosystem gateway. Events are informational: no
// component reads them back.
package events

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/pegvm/vms/pegvm/provenance"
)

// Kind identifies an event type.
type Kind uint8

const (
	KindMinted Kind = iota + 1
	KindTransferred
	KindTransferConfirmed
	KindCollateralLocked
	KindStaked
	KindProposalCreated
	KindVoteCast
	KindProposalFinalized
	KindBridgeRequested
)

func (k Kind) String() string {
	switch k {
	case KindMinted:
		return "minted"
	case KindTransferred:
		return "transferred"
	case KindTransferConfirmed:
		return "transfer_confirmed"
	case KindCollateralLocked:
		return "collateral_locked"
	case KindStaked:
		return "staked"
	case KindProposalCreated:
		return "proposal_created"
	case KindVoteCast:
		return "vote_cast"
	case KindProposalFinalized:
		return "proposal_finalized"
	case KindBridgeRequested:
		return "bridge_requested"
	default:
		return "unknown"
	}
}

// Event is implemented by every domain event.
type Event interface {
	Kind() Kind
}

type Minted struct {
	To     ids.ShortID
	Amount uint64
	Source provenance.Source
}

type Transferred struct {
	From   ids.ShortID
	To     ids.ShortID
	Amount uint64
}

// TransferConfirmed is the anti-fraud confirmation of a transfer. Digest
// chains the transfer to the ledger's anti-fraud base and sequence.
type TransferConfirmed struct {
	From     ids.ShortID
	To       ids.ShortID
	Amount   uint64
	Sequence uint64
	Digest   ids.ID
}

type CollateralLocked struct {
	Amount uint64
	Total  uint64
}

type Staked struct {
	Staker ids.ShortID
	Amount uint64
	Total  uint64
}

type ProposalCreated struct {
	ProposalID uint32
	Creator    ids.ShortID
	Title      string
	Score      uint8
}

type VoteCast struct {
	ProposalID uint32
	Voter      ids.ShortID
	Approve    bool
}

type ProposalFinalized struct {
	ProposalID   uint32
	Passed       bool
	VotesFor     uint32
	VotesAgainst uint32
}

// BridgeRequested announces an outbound transfer to another chain. Nothing is
// moved by the ledger.
type BridgeRequested struct {
	Holder      ids.ShortID
	Amount      uint64
	TargetChain string
	Source      provenance.Source
}

func (Minted) Kind() Kind            { return KindMinted }
func (Transferred) Kind() Kind       { return KindTransferred }
func (TransferConfirmed) Kind() Kind { return KindTransferConfirmed }
func (CollateralLocked) Kind() Kind  { return KindCollateralLocked }
func (Staked) Kind() Kind            { return KindStaked }
func (ProposalCreated) Kind() Kind   { return KindProposalCreated }
func (VoteCast) Kind() Kind          { return KindVoteCast }
func (ProposalFinalized) Kind() Kind { return KindProposalFinalized }
func (BridgeRequested) Kind() Kind   { return KindBridgeRequested }
