// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package traced

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/luxfi/ids"

	"github.com/luxfi/pegvm/vms/pegvm/api"
	"github.com/luxfi/pegvm/vms/pegvm/governance"
	"github.com/luxfi/pegvm/vms/pegvm/provenance"

	oteltrace "go.opentelemetry.io/otel/trace"
)

var errTest = errors.New("test")

type recordingTracer struct {
	oteltrace.Tracer

	spans []string
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...oteltrace.SpanStartOption) (context.Context, oteltrace.Span) {
	r.spans = append(r.spans, name)
	return r.Tracer.Start(ctx, name, opts...)
}

type testVM struct {
	api.VM

	minted  uint64
	balance uint64
}

func (vm *testVM) Mint(_ context.Context, _ ids.ShortID, amount uint64, _ provenance.Source) error {
	vm.minted += amount
	return nil
}

func (*testVM) Transfer(context.Context, ids.ShortID, ids.ShortID, uint64) error {
	return errTest
}

func (*testVM) FinalizeProposal(context.Context, uint32) (governance.Status, error) {
	return governance.Passed, nil
}

func (vm *testVM) Balance(ids.ShortID) uint64 {
	return vm.balance
}

func TestTracedVM(t *testing.T) {
	require := require.New(t)

	tracer := &recordingTracer{
		Tracer: noop.NewTracerProvider().Tracer("test"),
	}
	inner := &testVM{balance: 9}
	vm := New(inner, tracer)
	ctx := context.Background()
	account := ids.GenerateTestShortID()

	require.NoError(vm.Mint(ctx, account, 5, provenance.Mining))
	require.Equal(uint64(5), inner.minted)

	require.ErrorIs(vm.Transfer(ctx, account, ids.GenerateTestShortID(), 1), errTest)

	status, err := vm.FinalizeProposal(ctx, 1)
	require.NoError(err)
	require.Equal(governance.Passed, status)

	require.Equal(uint64(9), vm.Balance(account))

	require.Equal([]string{
		"tracedVM.Mint",
		"tracedVM.Transfer",
		"tracedVM.FinalizeProposal",
	}, tracer.spans)
}
