// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pegvm

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/pegvm/vms/pegvm/auth"
	"github.com/luxfi/pegvm/vms/pegvm/config"
	"github.com/luxfi/pegvm/vms/pegvm/events"
	"github.com/luxfi/pegvm/vms/pegvm/governance"
	"github.com/luxfi/pegvm/vms/pegvm/ledger"
	"github.com/luxfi/pegvm/vms/pegvm/peg"
	"github.com/luxfi/pegvm/vms/pegvm/provenance"
	"github.com/luxfi/pegvm/vms/pegvm/scoring"
)

var testIssuer = ids.GenerateTestShortID()

func newTestVM(t *testing.T, db database.Database, configJSON string, opts Options) *VM {
	vm := New(log.NewNoOpLogger())
	require.NoError(t, vm.Initialize(context.Background(), db, withIssuer(t, configJSON), opts))
	return vm
}

// withIssuer sets testIssuer in [configJSON] unless an issuer is already named.
func withIssuer(t *testing.T, configJSON string) []byte {
	fields := map[string]json.RawMessage{}
	if configJSON != "" {
		require.NoError(t, json.Unmarshal([]byte(configJSON), &fields))
	}
	if _, ok := fields["issuer"]; !ok {
		fields["issuer"] = json.RawMessage(fmt.Sprintf("%q", testIssuer))
	}
	configBytes, err := json.Marshal(fields)
	require.NoError(t, err)
	return configBytes
}

func allowAll() Options {
	return Options{
		Authorizer: auth.AllowAll{},
		Scorer:     scoring.Fixed(60),
	}
}

func TestUninitialized(t *testing.T) {
	vm := New(log.NewNoOpLogger())
	err := vm.Mint(context.Background(), ids.GenerateTestShortID(), 1, provenance.Mining)
	require.ErrorIs(t, err, errNotInitialized)
}

func TestMintAndTransfer(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, memdb.New(), "", allowAll())
	ctx := context.Background()
	a := ids.GenerateTestShortID()
	b := ids.GenerateTestShortID()

	require.NoError(vm.Mint(ctx, a, 1_000_000, provenance.Mining))
	require.Equal(uint64(1_000_000), vm.Balance(a))
	source, ok := vm.Provenance(a)
	require.True(ok)
	require.Equal(provenance.Mining, source)

	require.NoError(vm.Transfer(ctx, a, b, 500_000))
	require.Equal(uint64(500_000), vm.Balance(a))
	require.Equal(uint64(500_000), vm.Balance(b))

	totalSupply, collateral, sequence := vm.Supply()
	require.Equal(uint64(1_000_000), totalSupply)
	require.Equal(uint64(100_000_000_000), collateral)
	require.Equal(uint64(2), sequence)
	require.NoError(vm.Audit())

	kinds := make([]events.Kind, 0, 3)
	for _, record := range vm.Events(0) {
		kinds = append(kinds, record.Event.Kind())
	}
	require.Equal([]events.Kind{
		events.KindMinted,
		events.KindTransferred,
		events.KindTransferConfirmed,
	}, kinds)
}

func TestRejectedOperationsLeaveNoTrace(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, memdb.New(), "", allowAll())
	ctx := context.Background()
	a := ids.GenerateTestShortID()
	c := ids.GenerateTestShortID()

	err := vm.Mint(ctx, a, 200_000_000_000, provenance.Mining)
	require.ErrorIs(err, ledger.ErrInsufficientCollateral)

	err = vm.Transfer(ctx, c, a, 1)
	require.ErrorIs(err, provenance.ErrInvalidSource)

	totalSupply, _, sequence := vm.Supply()
	require.Zero(totalSupply)
	require.Zero(sequence)
	require.Empty(vm.Events(0))
	require.False(vm.VerifyEcosystemEntry(a))
}

func TestGovernance(t *testing.T) {
	tests := []struct {
		quorumThreshold uint32
		expectedStatus  governance.Status
	}{
		{quorumThreshold: 1, expectedStatus: governance.Passed},
		{quorumThreshold: 2, expectedStatus: governance.Failed},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("quorum %d", test.quorumThreshold), func(t *testing.T) {
			require := require.New(t)

			vm := newTestVM(t, memdb.New(), fmt.Sprintf(`{"quorumThreshold":%d}`, test.quorumThreshold), allowAll())
			ctx := context.Background()
			v := ids.GenerateTestShortID()

			require.NoError(vm.Stake(ctx, v, governance.MinStakeToVote))
			id, err := vm.CreateProposal(ctx, v, "P", []byte("rebase"))
			require.NoError(err)
			require.NoError(vm.Vote(ctx, v, id, true))

			status, err := vm.FinalizeProposal(ctx, id)
			require.NoError(err)
			require.Equal(test.expectedStatus, status)

			p, err := vm.Proposal(id)
			require.NoError(err)
			require.Equal(test.expectedStatus, p.Status)
			require.Equal([]uint32{id}, vm.Voter(v).History)

			_, err = vm.FinalizeProposal(ctx, id)
			require.ErrorIs(err, governance.ErrAlreadyFinalized)
		})
	}
}

func TestDefaultScorer(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, memdb.New(), `{"quorumThreshold":1}`, Options{Authorizer: auth.AllowAll{}})
	ctx := context.Background()

	id, err := vm.CreateProposal(ctx, ids.GenerateTestShortID(), "P", []byte("rebase"))
	require.NoError(err)
	p, err := vm.Proposal(id)
	require.NoError(err)
	require.Equal(uint8(60), p.Score)
}

func TestCallerAuthorization(t *testing.T) {
	require := require.New(t)

	issuer := ids.GenerateTestShortID()
	vm := newTestVM(t, memdb.New(), fmt.Sprintf(`{"issuer":%q}`, issuer), Options{})
	a := ids.GenerateTestShortID()
	b := ids.GenerateTestShortID()

	asIssuer := auth.WithCaller(context.Background(), issuer)
	asA := auth.WithCaller(context.Background(), a)

	require.ErrorIs(vm.Mint(asA, a, 10, provenance.P2P), auth.ErrUnauthorized)
	require.NoError(vm.Mint(asIssuer, a, 10, provenance.P2P))

	require.ErrorIs(vm.Transfer(asIssuer, a, b, 5), auth.ErrUnauthorized)
	require.NoError(vm.Transfer(asA, a, b, 5))

	require.ErrorIs(vm.NotifyBridge(asIssuer, a, 5, "stellar"), auth.ErrUnauthorized)
	require.NoError(vm.NotifyBridge(asA, a, 5, "stellar"))
}

func TestVerifyPegAndPredictStability(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, memdb.New(), "", allowAll())
	ctx := context.Background()
	a := ids.GenerateTestShortID()

	_, err := vm.VerifyPeg(a, 0)
	require.ErrorIs(err, provenance.ErrInvalidSource)
	_, err = vm.PredictStability(a)
	require.ErrorIs(err, provenance.ErrInvalidSource)

	require.NoError(vm.Mint(ctx, a, 1, provenance.Rewards))

	value, err := vm.VerifyPeg(a, 10)
	require.NoError(err)
	require.Equal(ledger.DefaultPegBaseValue+peg.PiAdjustment+1_000, value)

	// sequence is 1, trend is 0
	predicted, err := vm.PredictStability(a)
	require.NoError(err)
	require.Equal(ledger.DefaultPegBaseValue+peg.PiAdjustment, predicted)
}

func TestPredictStabilityAppliesTrendOnce(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, memdb.New(), "", allowAll())
	ctx := context.Background()
	a := ids.GenerateTestShortID()

	for i := 0; i < 15; i++ {
		require.NoError(vm.Mint(ctx, a, 1, provenance.Mining))
	}
	_, _, sequence := vm.Supply()
	require.Equal(uint64(15), sequence)

	value, err := vm.VerifyPeg(a, sequence)
	require.NoError(err)
	require.Equal(ledger.DefaultPegBaseValue+peg.PiAdjustment+1_000, value)

	predicted, err := vm.PredictStability(a)
	require.NoError(err)
	require.Equal(uint64(1_000), predicted-ledger.DefaultPegBaseValue-peg.PiAdjustment)
	require.Equal(value, predicted)
}

func TestStatePersists(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	vm := newTestVM(t, db, `{"quorumThreshold":1}`, allowAll())
	ctx := context.Background()
	a := ids.GenerateTestShortID()
	b := ids.GenerateTestShortID()

	require.NoError(vm.Mint(ctx, a, 1_000, provenance.Mining))
	require.NoError(vm.Transfer(ctx, a, b, 400))
	require.NoError(vm.Stake(ctx, a, governance.MinStakeToVote))
	id, err := vm.CreateProposal(ctx, a, "P", []byte("rebase"))
	require.NoError(err)
	require.NoError(vm.Vote(ctx, a, id, true))
	require.NoError(vm.Shutdown(ctx))

	require.ErrorIs(vm.Mint(ctx, a, 1, provenance.Mining), errShutdown)

	reloaded := newTestVM(t, db, `{"quorumThreshold":1}`, allowAll())
	require.Equal(uint64(600), reloaded.Balance(a))
	require.Equal(uint64(400), reloaded.Balance(b))
	_, _, sequence := reloaded.Supply()
	require.Equal(uint64(2), sequence)

	source, ok := reloaded.Provenance(a)
	require.True(ok)
	require.Equal(provenance.Mining, source)

	p, err := reloaded.Proposal(id)
	require.NoError(err)
	require.Equal(uint32(1), p.VotesFor)
	require.Equal(governance.Active, p.Status)
	require.Equal(governance.MinStakeToVote, reloaded.Voter(a).Stake)

	status, err := reloaded.FinalizeProposal(ctx, id)
	require.NoError(err)
	require.Equal(governance.Passed, status)
}

func TestConcurrentMints(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, memdb.New(), `{"collateralLocked":15000}`, allowAll())
	ctx := context.Background()

	const (
		callers = 20
		amount  = 1_000
	)
	var eg errgroup.Group
	accounts := make([]ids.ShortID, callers)
	for i := range accounts {
		accounts[i] = ids.GenerateTestShortID()
	}
	results := make([]error, callers)
	for i := range accounts {
		eg.Go(func() error {
			results[i] = vm.Mint(ctx, accounts[i], amount, provenance.Mining)
			return nil
		})
	}
	require.NoError(eg.Wait())

	var succeeded int
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(err, ledger.ErrInsufficientCollateral)
	}
	require.Equal(15, succeeded)

	totalSupply, _, sequence := vm.Supply()
	require.Equal(uint64(15_000), totalSupply)
	require.Equal(uint64(15), sequence)
	require.NoError(vm.Audit())
}

func TestConcurrentVotes(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, memdb.New(), `{"quorumThreshold":10}`, allowAll())
	ctx := context.Background()

	id, err := vm.CreateProposal(ctx, ids.GenerateTestShortID(), "P", []byte("rebase"))
	require.NoError(err)

	voters := make([]ids.ShortID, 10)
	for i := range voters {
		voters[i] = ids.GenerateTestShortID()
		require.NoError(vm.Stake(ctx, voters[i], governance.MinStakeToVote))
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, voter := range voters {
		eg.Go(func() error {
			return vm.Vote(egCtx, voter, id, true)
		})
	}
	require.NoError(eg.Wait())

	p, err := vm.Proposal(id)
	require.NoError(err)
	require.Equal(uint32(10), p.VotesFor)

	status, err := vm.FinalizeProposal(ctx, id)
	require.NoError(err)
	require.Equal(governance.Passed, status)
}

func TestFailedCommitHaltsVM(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	vm := newTestVM(t, db, "", allowAll())
	ctx := context.Background()
	a := ids.GenerateTestShortID()

	require.NoError(vm.Mint(ctx, a, 1, provenance.Mining))
	require.NoError(db.Close())

	err := vm.Mint(ctx, a, 1, provenance.Mining)
	require.Error(err) //nolint:forbidigo // error comes from the database
	require.Len(vm.Events(0), 1)

	require.ErrorIs(vm.Mint(ctx, a, 1, provenance.Mining), errStateLost)
	_, err = vm.HealthCheck(ctx)
	require.ErrorIs(err, errStateLost)
}

func TestEventTimestamps(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, memdb.New(), "", allowAll())
	now := time.Unix(1_700_000_000, 0)
	vm.Clock.Set(now)

	require.NoError(vm.Stake(context.Background(), ids.GenerateTestShortID(), 1))
	records := vm.Events(1)
	require.Len(records, 1)
	require.Equal(now, records[0].Time)
}

func TestHealthCheck(t *testing.T) {
	require := require.New(t)

	vm := newTestVM(t, memdb.New(), "", allowAll())
	health, err := vm.HealthCheck(context.Background())
	require.NoError(err)
	require.Equal(true, health.(map[string]interface{})["healthy"])

	version, err := vm.Version(context.Background())
	require.NoError(err)
	require.Equal(Version, version)

	handlers, err := vm.CreateHandlers(context.Background())
	require.NoError(err)
	require.Contains(handlers, "")
}

func TestInitializeRejectsBadConfig(t *testing.T) {
	vm := New(log.NewNoOpLogger())
	err := vm.Initialize(context.Background(), memdb.New(), withIssuer(t, `{"quorumThreshold":0}`), Options{})
	require.ErrorIs(t, err, config.ErrZeroQuorum)
}

func TestInitializeRequiresIssuer(t *testing.T) {
	require := require.New(t)

	vm := New(log.NewNoOpLogger())
	err := vm.Initialize(context.Background(), memdb.New(), nil, allowAll())
	require.ErrorIs(err, config.ErrNoIssuer)

	err = vm.Mint(context.Background(), ids.GenerateTestShortID(), 1, provenance.Mining)
	require.ErrorIs(err, errNotInitialized)
}

func TestFactory(t *testing.T) {
	require := require.New(t)

	vm, err := NewFactory().New(log.NewNoOpLogger())
	require.NoError(err)
	require.IsType(&VM{}, vm)
}

func TestUninitializedReads(t *testing.T) {
	require := require.New(t)

	vm := New(log.NewNoOpLogger())
	account := ids.GenerateTestShortID()

	require.Zero(vm.Balance(account))
	total, collateral, sequence := vm.Supply()
	require.Zero(total)
	require.Zero(collateral)
	require.Zero(sequence)
	_, ok := vm.Provenance(account)
	require.False(ok)
	require.False(vm.VerifyEcosystemEntry(account))
	require.Empty(vm.Events(0))
	require.ErrorIs(vm.Audit(), errNotInitialized)
	_, err := vm.Proposal(1)
	require.ErrorIs(err, errNotInitialized)
	_, err = vm.VerifyPeg(account, 0)
	require.ErrorIs(err, errNotInitialized)
}
