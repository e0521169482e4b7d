// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package traced wraps the peg VM operations in tracing spans.
package traced

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/luxfi/ids"

	"github.com/luxfi/pegvm/vms/pegvm/api"
	"github.com/luxfi/pegvm/vms/pegvm/governance"
	"github.com/luxfi/pegvm/vms/pegvm/provenance"

	oteltrace "go.opentelemetry.io/otel/trace"
)

var _ api.VM = (*tracedVM)(nil)

type tracedVM struct {
	api.VM

	tracer oteltrace.Tracer
}

// New returns [vm] with every mutating operation traced by [tracer]. Queries
// are passed through.
func New(vm api.VM, tracer oteltrace.Tracer) api.VM {
	return &tracedVM{
		VM:     vm,
		tracer: tracer,
	}
}

func amount(v uint64) attribute.KeyValue {
	return attribute.String("amount", strconv.FormatUint(v, 10))
}

func end(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (vm *tracedVM) Mint(ctx context.Context, to ids.ShortID, value uint64, source provenance.Source) error {
	ctx, span := vm.tracer.Start(ctx, "tracedVM.Mint", oteltrace.WithAttributes(
		attribute.Stringer("to", to),
		amount(value),
		attribute.Stringer("source", source),
	))
	err := vm.VM.Mint(ctx, to, value, source)
	end(span, err)
	return err
}

func (vm *tracedVM) Transfer(ctx context.Context, from, to ids.ShortID, value uint64) error {
	ctx, span := vm.tracer.Start(ctx, "tracedVM.Transfer", oteltrace.WithAttributes(
		attribute.Stringer("from", from),
		attribute.Stringer("to", to),
		amount(value),
	))
	err := vm.VM.Transfer(ctx, from, to, value)
	end(span, err)
	return err
}

func (vm *tracedVM) LockCollateral(ctx context.Context, value uint64) error {
	ctx, span := vm.tracer.Start(ctx, "tracedVM.LockCollateral", oteltrace.WithAttributes(
		amount(value),
	))
	err := vm.VM.LockCollateral(ctx, value)
	end(span, err)
	return err
}

func (vm *tracedVM) CreateProposal(ctx context.Context, creator ids.ShortID, title string, description []byte) (uint32, error) {
	ctx, span := vm.tracer.Start(ctx, "tracedVM.CreateProposal", oteltrace.WithAttributes(
		attribute.Stringer("creator", creator),
		attribute.Int("descriptionLen", len(description)),
	))
	id, err := vm.VM.CreateProposal(ctx, creator, title, description)
	span.SetAttributes(attribute.Int64("proposalID", int64(id)))
	end(span, err)
	return id, err
}

func (vm *tracedVM) Vote(ctx context.Context, voter ids.ShortID, id uint32, approve bool) error {
	ctx, span := vm.tracer.Start(ctx, "tracedVM.Vote", oteltrace.WithAttributes(
		attribute.Stringer("voter", voter),
		attribute.Int64("proposalID", int64(id)),
		attribute.Bool("approve", approve),
	))
	err := vm.VM.Vote(ctx, voter, id, approve)
	end(span, err)
	return err
}

func (vm *tracedVM) FinalizeProposal(ctx context.Context, id uint32) (governance.Status, error) {
	ctx, span := vm.tracer.Start(ctx, "tracedVM.FinalizeProposal", oteltrace.WithAttributes(
		attribute.Int64("proposalID", int64(id)),
	))
	status, err := vm.VM.FinalizeProposal(ctx, id)
	span.SetAttributes(attribute.Stringer("status", status))
	end(span, err)
	return status, err
}

func (vm *tracedVM) Stake(ctx context.Context, staker ids.ShortID, value uint64) error {
	ctx, span := vm.tracer.Start(ctx, "tracedVM.Stake", oteltrace.WithAttributes(
		attribute.Stringer("staker", staker),
		amount(value),
	))
	err := vm.VM.Stake(ctx, staker, value)
	end(span, err)
	return err
}

func (vm *tracedVM) NotifyBridge(ctx context.Context, holder ids.ShortID, value uint64, targetChain string) error {
	ctx, span := vm.tracer.Start(ctx, "tracedVM.NotifyBridge", oteltrace.WithAttributes(
		attribute.Stringer("holder", holder),
		amount(value),
		attribute.String("targetChain", targetChain),
	))
	err := vm.VM.NotifyBridge(ctx, holder, value, targetChain)
	end(span, err)
	return err
}
