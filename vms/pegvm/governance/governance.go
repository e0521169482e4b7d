// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package governance runs the stake gated proposal process: proposals are
// scored on creation, voted on by stakers and finalized against a quorum
// threshold.
package governance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/pegvm/utils/math"
	"github.com/luxfi/pegvm/vms/pegvm/auth"
	"github.com/luxfi/pegvm/vms/pegvm/events"
	"github.com/luxfi/pegvm/vms/pegvm/keys"
	"github.com/luxfi/pegvm/vms/pegvm/scoring"
)

const (
	// MinStakeToVote is the stake an account needs before it may vote.
	MinStakeToVote uint64 = 100_000

	// PassScoreMin is the score a proposal must exceed to pass.
	PassScoreMin uint8 = 50

	// DefaultQuorumThreshold is the quorum used when none is configured.
	DefaultQuorumThreshold uint32 = 5
)

var (
	ErrInsufficientStake = errors.New("insufficient stake")
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrAlreadyFinalized  = errors.New("proposal already finalized")
	ErrAlreadyVoted      = errors.New("already voted on proposal")
	ErrScoreOutOfRange   = errors.New("score out of range")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidQuorum     = errors.New("quorum threshold must be positive")
	ErrInvalidSnapshot   = errors.New("invalid governance snapshot")
)

type Config struct {
	QuorumThreshold uint32
	// AllowRevote lets an account vote on the same proposal more than once.
	// Every vote is tallied.
	AllowRevote bool
}

type Proposal struct {
	ID           uint32      `serialize:"true" json:"id"`
	Creator      ids.ShortID `serialize:"true" json:"creator"`
	Title        string      `serialize:"true" json:"title"`
	Description  []byte      `serialize:"true" json:"description"`
	VotesFor     uint32      `serialize:"true" json:"votesFor"`
	VotesAgainst uint32      `serialize:"true" json:"votesAgainst"`
	Status       Status      `serialize:"true" json:"status"`
	Score        uint8       `serialize:"true" json:"score"`
}

// Voter is the stake and voting history of an account.
type Voter struct {
	Account ids.ShortID `serialize:"true" json:"account"`
	Stake   uint64      `serialize:"true" json:"stake"`
	// History holds the ids of every proposal voted on, in vote order.
	History []uint32 `serialize:"true" json:"history"`
}

// Snapshot is the persisted form of the engine.
type Snapshot struct {
	QuorumThreshold uint32     `serialize:"true" json:"quorumThreshold"`
	NextProposalID  uint32     `serialize:"true" json:"nextProposalID"`
	ModelDigest     ids.ID     `serialize:"true" json:"modelDigest"`
	Proposals       []Proposal `serialize:"true" json:"proposals"`
	Voters          []Voter    `serialize:"true" json:"voters"`
}

type Engine struct {
	log         log.Logger
	scorer      scoring.Oracle
	authz       auth.Authorizer
	sink        events.Sink
	allowRevote bool

	quorumThreshold uint32
	nextProposalID  uint32
	modelDigest     ids.ID
	proposals       map[uint32]*Proposal
	voters          map[ids.ShortID]*Voter
}

func New(
	config Config,
	scorer scoring.Oracle,
	authz auth.Authorizer,
	sink events.Sink,
	hashFn keys.HashFn,
	logger log.Logger,
) (*Engine, error) {
	if config.QuorumThreshold == 0 {
		return nil, ErrInvalidQuorum
	}
	return &Engine{
		log:             logger,
		scorer:          scorer,
		authz:           authz,
		sink:            sink,
		allowRevote:     config.AllowRevote,
		quorumThreshold: config.QuorumThreshold,
		nextProposalID:  1,
		modelDigest:     keys.Derive(hashFn, keys.ModelSeed),
		proposals:       make(map[uint32]*Proposal),
		voters:          make(map[ids.ShortID]*Voter),
	}, nil
}

// CreateProposal scores and stores a new Active proposal and returns its id.
func (e *Engine) CreateProposal(ctx context.Context, creator ids.ShortID, title string, description []byte) (uint32, error) {
	if err := e.authz.Authorize(ctx, creator); err != nil {
		return 0, fmt.Errorf("create proposal: %w", err)
	}
	if e.nextProposalID == math.MaxUint[uint32]() {
		return 0, fmt.Errorf("create proposal: %w", math.ErrOverflow)
	}
	score := e.scorer.Score(description)
	if score > scoring.MaxScore {
		return 0, fmt.Errorf("%w: %d > %d", ErrScoreOutOfRange, score, scoring.MaxScore)
	}

	id := e.nextProposalID
	e.nextProposalID++
	e.proposals[id] = &Proposal{
		ID:          id,
		Creator:     creator,
		Title:       title,
		Description: slices.Clone(description),
		Status:      Active,
		Score:       score,
	}

	e.sink.Emit(events.ProposalCreated{
		ProposalID: id,
		Creator:    creator,
		Title:      title,
		Score:      score,
	})
	return id, nil
}

// Vote records a vote of [voter] on proposal [id].
func (e *Engine) Vote(ctx context.Context, voter ids.ShortID, id uint32, approve bool) error {
	if err := e.authz.Authorize(ctx, voter); err != nil {
		return fmt.Errorf("vote: %w", err)
	}
	record, ok := e.voters[voter]
	if !ok || record.Stake < MinStakeToVote {
		var stake uint64
		if ok {
			stake = record.Stake
		}
		return fmt.Errorf("%w: %s has %d, needs %d",
			ErrInsufficientStake, voter, stake, MinStakeToVote)
	}
	proposal, ok := e.proposals[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrProposalNotFound, id)
	}
	if proposal.Status != Active {
		return fmt.Errorf("%w: %d is %s", ErrAlreadyFinalized, id, proposal.Status)
	}
	if !e.allowRevote && slices.Contains(record.History, id) {
		return fmt.Errorf("%w: %s on %d", ErrAlreadyVoted, voter, id)
	}

	tally := &proposal.VotesAgainst
	if approve {
		tally = &proposal.VotesFor
	}
	newTally, err := math.Add(*tally, 1)
	if err != nil {
		return fmt.Errorf("vote: %w", err)
	}
	*tally = newTally
	record.History = append(record.History, id)

	e.sink.Emit(events.VoteCast{
		ProposalID: id,
		Voter:      voter,
		Approve:    approve,
	})
	return nil
}

// FinalizeProposal moves proposal [id] to Passed or Failed. A proposal passes
// iff it reached the quorum threshold and its score exceeds PassScoreMin.
func (e *Engine) FinalizeProposal(_ context.Context, id uint32) (Status, error) {
	proposal, ok := e.proposals[id]
	if !ok {
		return Unknown, fmt.Errorf("%w: %d", ErrProposalNotFound, id)
	}
	if proposal.Status.Finalized() {
		return proposal.Status, fmt.Errorf("%w: %d is %s", ErrAlreadyFinalized, id, proposal.Status)
	}

	if proposal.VotesFor >= e.quorumThreshold && proposal.Score > PassScoreMin {
		proposal.Status = Passed
	} else {
		proposal.Status = Failed
	}

	e.log.Debug("proposal finalized",
		log.Uint32("proposalID", id),
		log.Stringer("status", proposal.Status),
		log.Uint32("quorumThreshold", e.quorumThreshold),
	)
	e.sink.Emit(events.ProposalFinalized{
		ProposalID:   id,
		Passed:       proposal.Status == Passed,
		VotesFor:     proposal.VotesFor,
		VotesAgainst: proposal.VotesAgainst,
	})
	return proposal.Status, nil
}

// Stake adds [amount] to the stake of [staker]. Stake is tracked separately
// from ledger balances and cannot be withdrawn.
func (e *Engine) Stake(ctx context.Context, staker ids.ShortID, amount uint64) error {
	if err := e.authz.Authorize(ctx, staker); err != nil {
		return fmt.Errorf("stake: %w", err)
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	record, ok := e.voters[staker]
	if !ok {
		record = &Voter{Account: staker}
	}
	total, err := math.Add(record.Stake, amount)
	if err != nil {
		return fmt.Errorf("stake: %w", err)
	}
	record.Stake = total
	e.voters[staker] = record

	e.sink.Emit(events.Staked{
		Staker: staker,
		Amount: amount,
		Total:  total,
	})
	return nil
}

// Proposal returns a copy of proposal [id].
func (e *Engine) Proposal(id uint32) (Proposal, error) {
	proposal, ok := e.proposals[id]
	if !ok {
		return Proposal{}, fmt.Errorf("%w: %d", ErrProposalNotFound, id)
	}
	p := *proposal
	p.Description = slices.Clone(proposal.Description)
	return p, nil
}

// Voter returns a copy of the record of [account]. Unknown accounts have no
// stake and no history.
func (e *Engine) Voter(account ids.ShortID) Voter {
	record, ok := e.voters[account]
	if !ok {
		return Voter{Account: account}
	}
	v := *record
	v.History = slices.Clone(record.History)
	return v
}

func (e *Engine) QuorumThreshold() uint32 {
	return e.quorumThreshold
}

func (e *Engine) ModelDigest() ids.ID {
	return e.modelDigest
}

// NumProposals is the number of proposals ever created.
func (e *Engine) NumProposals() int {
	return len(e.proposals)
}

// Snapshot returns the engine state with proposals ordered by id and voters
// ordered by account.
func (e *Engine) Snapshot() Snapshot {
	proposals := make([]Proposal, 0, len(e.proposals))
	for id := range e.proposals {
		p, _ := e.Proposal(id)
		proposals = append(proposals, p)
	}
	slices.SortFunc(proposals, func(a, b Proposal) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	voters := make([]Voter, 0, len(e.voters))
	for account := range e.voters {
		voters = append(voters, e.Voter(account))
	}
	slices.SortFunc(voters, func(a, b Voter) int {
		return bytes.Compare(a.Account[:], b.Account[:])
	})

	return Snapshot{
		QuorumThreshold: e.quorumThreshold,
		NextProposalID:  e.nextProposalID,
		ModelDigest:     e.modelDigest,
		Proposals:       proposals,
		Voters:          voters,
	}
}

// Restore replaces the engine state with [snapshot].
func (e *Engine) Restore(snapshot Snapshot) error {
	if snapshot.QuorumThreshold == 0 {
		return ErrInvalidQuorum
	}
	proposals := make(map[uint32]*Proposal, len(snapshot.Proposals))
	for i := range snapshot.Proposals {
		p := snapshot.Proposals[i]
		if p.ID == 0 || p.ID >= snapshot.NextProposalID {
			return fmt.Errorf("%w: proposal %d outside of [1, %d)", ErrInvalidSnapshot, p.ID, snapshot.NextProposalID)
		}
		if _, ok := proposals[p.ID]; ok {
			return fmt.Errorf("%w: duplicate proposal %d", ErrInvalidSnapshot, p.ID)
		}
		proposals[p.ID] = &p
	}
	voters := make(map[ids.ShortID]*Voter, len(snapshot.Voters))
	for i := range snapshot.Voters {
		v := snapshot.Voters[i]
		if _, ok := voters[v.Account]; ok {
			return fmt.Errorf("%w: duplicate voter %s", ErrInvalidSnapshot, v.Account)
		}
		voters[v.Account] = &v
	}

	e.quorumThreshold = snapshot.QuorumThreshold
	e.nextProposalID = snapshot.NextProposalID
	e.modelDigest = snapshot.ModelDigest
	e.proposals = proposals
	e.voters = voters
	return nil
}
