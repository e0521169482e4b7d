// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api provides the JSON-RPC API of the peg VM.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/pegvm/utils/json"
	"github.com/luxfi/pegvm/vms/pegvm/auth"
	"github.com/luxfi/pegvm/vms/pegvm/events"
	"github.com/luxfi/pegvm/vms/pegvm/governance"
	"github.com/luxfi/pegvm/vms/pegvm/provenance"
)

// CallerHeader carries the account a request is issued by.
const CallerHeader = "Caller"

var ErrInvalidCaller = errors.New("invalid caller header")

// VM is the set of VM operations served over the API.
type VM interface {
	Mint(ctx context.Context, to ids.ShortID, amount uint64, source provenance.Source) error
	Transfer(ctx context.Context, from, to ids.ShortID, amount uint64) error
	LockCollateral(ctx context.Context, amount uint64) error
	CreateProposal(ctx context.Context, creator ids.ShortID, title string, description []byte) (uint32, error)
	Vote(ctx context.Context, voter ids.ShortID, id uint32, approve bool) error
	FinalizeProposal(ctx context.Context, id uint32) (governance.Status, error)
	Stake(ctx context.Context, staker ids.ShortID, amount uint64) error
	NotifyBridge(ctx context.Context, holder ids.ShortID, amount uint64, targetChain string) error

	VerifyPeg(holder ids.ShortID, time uint64) (uint64, error)
	PredictStability(holder ids.ShortID) (uint64, error)
	Balance(account ids.ShortID) uint64
	Supply() (totalSupply uint64, collateralLocked uint64, sequence uint64)
	Provenance(account ids.ShortID) (provenance.Source, bool)
	VerifyEcosystemEntry(account ids.ShortID) bool
	BatchVerify(accounts []ids.ShortID, sources []provenance.Source) ([]bool, error)
	VerifyHolderDigest(holder ids.ShortID, expected ids.ID, source provenance.Source) (bool, error)
	Proposal(id uint32) (governance.Proposal, error)
	Voter(account ids.ShortID) governance.Voter
	Events(limit int) []events.Record
}

// Service provides the RPC API for the peg VM.
type Service struct {
	vm VM
}

func NewService(vm VM) *Service {
	return &Service{vm: vm}
}

// callerContext returns the request context carrying the caller named in the
// request headers, if any.
func callerContext(r *http.Request) (context.Context, error) {
	ctx := r.Context()
	header := r.Header.Get(CallerHeader)
	if header == "" {
		return ctx, nil
	}
	caller, err := ids.ShortFromString(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCaller, err)
	}
	return auth.WithCaller(ctx, caller), nil
}

type (
	EmptyArgs  struct{}
	EmptyReply struct{}
)

// ============================================
// Ledger APIs
// ============================================

type MintArgs struct {
	To     ids.ShortID       `json:"to"`
	Amount json.Uint64       `json:"amount"`
	Source provenance.Source `json:"source"`
}

type BalanceReply struct {
	Balance json.Uint64 `json:"balance"`
}

// Mint credits new tokens. The caller must be the issuer.
func (s *Service) Mint(r *http.Request, args *MintArgs, reply *BalanceReply) error {
	ctx, err := callerContext(r)
	if err != nil {
		return err
	}
	if err := s.vm.Mint(ctx, args.To, uint64(args.Amount), args.Source); err != nil {
		return err
	}
	reply.Balance = json.Uint64(s.vm.Balance(args.To))
	return nil
}

type TransferArgs struct {
	From   ids.ShortID `json:"from"`
	To     ids.ShortID `json:"to"`
	Amount json.Uint64 `json:"amount"`
}

// Transfer moves tokens from the caller.
func (s *Service) Transfer(r *http.Request, args *TransferArgs, reply *BalanceReply) error {
	ctx, err := callerContext(r)
	if err != nil {
		return err
	}
	if err := s.vm.Transfer(ctx, args.From, args.To, uint64(args.Amount)); err != nil {
		return err
	}
	reply.Balance = json.Uint64(s.vm.Balance(args.From))
	return nil
}

type LockCollateralArgs struct {
	Amount json.Uint64 `json:"amount"`
}

func (s *Service) LockCollateral(r *http.Request, args *LockCollateralArgs, reply *SupplyReply) error {
	ctx, err := callerContext(r)
	if err != nil {
		return err
	}
	if err := s.vm.LockCollateral(ctx, uint64(args.Amount)); err != nil {
		return err
	}
	return s.GetSupply(r, nil, reply)
}

type AccountArgs struct {
	Account ids.ShortID `json:"account"`
}

func (s *Service) GetBalance(_ *http.Request, args *AccountArgs, reply *BalanceReply) error {
	reply.Balance = json.Uint64(s.vm.Balance(args.Account))
	return nil
}

type SupplyReply struct {
	TotalSupply      json.Uint64 `json:"totalSupply"`
	CollateralLocked json.Uint64 `json:"collateralLocked"`
	Sequence         json.Uint64 `json:"sequence"`
}

func (s *Service) GetSupply(_ *http.Request, _ *EmptyArgs, reply *SupplyReply) error {
	totalSupply, collateralLocked, sequence := s.vm.Supply()
	reply.TotalSupply = json.Uint64(totalSupply)
	reply.CollateralLocked = json.Uint64(collateralLocked)
	reply.Sequence = json.Uint64(sequence)
	return nil
}

type VerifyPegArgs struct {
	Holder ids.ShortID `json:"holder"`
	// Time defaults to the current ledger sequence
	Time *json.Uint64 `json:"time"`
}

type ValueReply struct {
	Value json.Uint64 `json:"value"`
}

func (s *Service) VerifyPeg(_ *http.Request, args *VerifyPegArgs, reply *ValueReply) error {
	var at uint64
	if args.Time != nil {
		at = uint64(*args.Time)
	} else {
		_, _, at = s.vm.Supply()
	}
	value, err := s.vm.VerifyPeg(args.Holder, at)
	if err != nil {
		return err
	}
	reply.Value = json.Uint64(value)
	return nil
}

type HolderArgs struct {
	Holder ids.ShortID `json:"holder"`
}

func (s *Service) PredictStability(_ *http.Request, args *HolderArgs, reply *ValueReply) error {
	value, err := s.vm.PredictStability(args.Holder)
	if err != nil {
		return err
	}
	reply.Value = json.Uint64(value)
	return nil
}

// ============================================
// Provenance APIs
// ============================================

type ProvenanceReply struct {
	Source   provenance.Source `json:"source"`
	Eligible bool              `json:"eligible"`
}

func (s *Service) GetProvenance(_ *http.Request, args *AccountArgs, reply *ProvenanceReply) error {
	reply.Source, _ = s.vm.Provenance(args.Account)
	reply.Eligible = s.vm.VerifyEcosystemEntry(args.Account)
	return nil
}

type BatchVerifyArgs struct {
	Accounts []ids.ShortID      `json:"accounts"`
	Sources  []provenance.Source `json:"sources"`
}

type BatchVerifyReply struct {
	Results []bool `json:"results"`
}

func (s *Service) BatchVerify(_ *http.Request, args *BatchVerifyArgs, reply *BatchVerifyReply) error {
	results, err := s.vm.BatchVerify(args.Accounts, args.Sources)
	if err != nil {
		return err
	}
	reply.Results = results
	return nil
}

type VerifyHolderDigestArgs struct {
	Holder ids.ShortID       `json:"holder"`
	Digest ids.ID            `json:"digest"`
	Source provenance.Source `json:"source"`
}

type VerifyHolderDigestReply struct {
	Valid bool `json:"valid"`
}

func (s *Service) VerifyHolderDigest(_ *http.Request, args *VerifyHolderDigestArgs, reply *VerifyHolderDigestReply) error {
	valid, err := s.vm.VerifyHolderDigest(args.Holder, args.Digest, args.Source)
	if err != nil {
		return err
	}
	reply.Valid = valid
	return nil
}

type NotifyBridgeArgs struct {
	Holder      ids.ShortID `json:"holder"`
	Amount      json.Uint64 `json:"amount"`
	TargetChain string      `json:"targetChain"`
}

func (s *Service) NotifyBridge(r *http.Request, args *NotifyBridgeArgs, _ *EmptyReply) error {
	ctx, err := callerContext(r)
	if err != nil {
		return err
	}
	return s.vm.NotifyBridge(ctx, args.Holder, uint64(args.Amount), args.TargetChain)
}

// ============================================
// Governance APIs
// ============================================

type CreateProposalArgs struct {
	Creator     ids.ShortID `json:"creator"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
}

type ProposalIDReply struct {
	ProposalID json.Uint32 `json:"proposalID"`
}

func (s *Service) CreateProposal(r *http.Request, args *CreateProposalArgs, reply *ProposalIDReply) error {
	ctx, err := callerContext(r)
	if err != nil {
		return err
	}
	id, err := s.vm.CreateProposal(ctx, args.Creator, args.Title, []byte(args.Description))
	if err != nil {
		return err
	}
	reply.ProposalID = json.Uint32(id)
	return nil
}

type VoteArgs struct {
	Voter      ids.ShortID `json:"voter"`
	ProposalID json.Uint32 `json:"proposalID"`
	Approve    bool        `json:"approve"`
}

func (s *Service) Vote(r *http.Request, args *VoteArgs, _ *EmptyReply) error {
	ctx, err := callerContext(r)
	if err != nil {
		return err
	}
	return s.vm.Vote(ctx, args.Voter, uint32(args.ProposalID), args.Approve)
}

type ProposalArgs struct {
	ProposalID json.Uint32 `json:"proposalID"`
}

type StatusReply struct {
	Status governance.Status `json:"status"`
}

func (s *Service) FinalizeProposal(r *http.Request, args *ProposalArgs, reply *StatusReply) error {
	ctx, err := callerContext(r)
	if err != nil {
		return err
	}
	status, err := s.vm.FinalizeProposal(ctx, uint32(args.ProposalID))
	if err != nil {
		return err
	}
	reply.Status = status
	return nil
}

type StakeArgs struct {
	Staker ids.ShortID `json:"staker"`
	Amount json.Uint64 `json:"amount"`
}

type StakeReply struct {
	Stake json.Uint64 `json:"stake"`
}

func (s *Service) Stake(r *http.Request, args *StakeArgs, reply *StakeReply) error {
	ctx, err := callerContext(r)
	if err != nil {
		return err
	}
	if err := s.vm.Stake(ctx, args.Staker, uint64(args.Amount)); err != nil {
		return err
	}
	reply.Stake = json.Uint64(s.vm.Voter(args.Staker).Stake)
	return nil
}

type ProposalReply struct {
	ID           json.Uint32       `json:"id"`
	Creator      ids.ShortID       `json:"creator"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	VotesFor     json.Uint32       `json:"votesFor"`
	VotesAgainst json.Uint32       `json:"votesAgainst"`
	Status       governance.Status `json:"status"`
	Score        uint8             `json:"score"`
}

func (s *Service) GetProposal(_ *http.Request, args *ProposalArgs, reply *ProposalReply) error {
	p, err := s.vm.Proposal(uint32(args.ProposalID))
	if err != nil {
		return err
	}
	*reply = ProposalReply{
		ID:           json.Uint32(p.ID),
		Creator:      p.Creator,
		Title:        p.Title,
		Description:  string(p.Description),
		VotesFor:     json.Uint32(p.VotesFor),
		VotesAgainst: json.Uint32(p.VotesAgainst),
		Status:       p.Status,
		Score:        p.Score,
	}
	return nil
}

type VoterReply struct {
	Stake   json.Uint64 `json:"stake"`
	History []uint32    `json:"history"`
}

func (s *Service) GetVoter(_ *http.Request, args *AccountArgs, reply *VoterReply) error {
	v := s.vm.Voter(args.Account)
	reply.Stake = json.Uint64(v.Stake)
	reply.History = v.History
	return nil
}

// ============================================
// Event APIs
// ============================================

type GetEventsArgs struct {
	Limit int `json:"limit"`
}

type EventReply struct {
	Time  time.Time   `json:"time"`
	Kind  string      `json:"kind"`
	Event interface{} `json:"event"`
}

type GetEventsReply struct {
	Events []EventReply `json:"events"`
}

// GetEvents returns the most recent committed events, oldest first.
func (s *Service) GetEvents(_ *http.Request, args *GetEventsArgs, reply *GetEventsReply) error {
	records := s.vm.Events(args.Limit)
	reply.Events = make([]EventReply, len(records))
	for i, record := range records {
		reply.Events[i] = EventReply{
			Time:  record.Time,
			Kind:  record.Event.Kind().String(),
			Event: record.Event,
		}
	}
	return nil
}
