// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pegvm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/luxfi/database"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/pegvm/utils/timer/mockable"
	"github.com/luxfi/pegvm/vms/pegvm/api"
	"github.com/luxfi/pegvm/vms/pegvm/auth"
	"github.com/luxfi/pegvm/vms/pegvm/config"
	"github.com/luxfi/pegvm/vms/pegvm/ecosystem"
	"github.com/luxfi/pegvm/vms/pegvm/events"
	"github.com/luxfi/pegvm/vms/pegvm/governance"
	"github.com/luxfi/pegvm/vms/pegvm/keys"
	"github.com/luxfi/pegvm/vms/pegvm/ledger"
	"github.com/luxfi/pegvm/vms/pegvm/metrics"
	"github.com/luxfi/pegvm/vms/pegvm/peg"
	"github.com/luxfi/pegvm/vms/pegvm/provenance"
	"github.com/luxfi/pegvm/vms/pegvm/scoring"
	"github.com/luxfi/pegvm/vms/pegvm/state"
	"github.com/luxfi/pegvm/vms/pegvm/traced"

	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	Version = "1.0.0"

	opMint           = "mint"
	opTransfer       = "transfer"
	opLockCollateral = "lock_collateral"
	opCreateProposal = "create_proposal"
	opVote           = "vote"
	opFinalize       = "finalize_proposal"
	opStake          = "stake"
	opNotifyBridge   = "notify_bridge"
)

var (
	errNotInitialized = errors.New("VM not initialized")
	errShutdown       = errors.New("VM is shut down")
	errStateLost      = errors.New("in-memory state diverged from the database")

	_ api.VM = (*VM)(nil)
)

// Options are the capabilities a VM is built from. Nil fields take their
// defaults.
type Options struct {
	// Authorizer defaults to auth.CallerAuthorizer.
	Authorizer auth.Authorizer
	// Scorer defaults to a cached scoring.LengthOracle.
	Scorer scoring.Oracle
	// HashFn defaults to keys.SHA256.
	HashFn keys.HashFn
	// Registerer defaults to a fresh registry.
	Registerer metric.Registerer
	// Sinks receive every committed event next to the log and the metrics.
	Sinks []events.Sink
	// Tracer, if set, traces the operations served over the API.
	Tracer oteltrace.Tracer
}

// VM is the peg ledger and governance engine. Every operation runs under a
// single lock and is persisted before it returns, so operations are applied
// one at a time in lock acquisition order.
type VM struct {
	config.Config

	log log.Logger

	lock sync.RWMutex

	// Used to timestamp recorded events
	Clock mockable.Clock

	baseDB database.Database
	db     *versiondb.Database
	store  *state.Store

	registry   *provenance.Registry
	ledger     *ledger.Ledger
	governance *governance.Engine
	gateway    *ecosystem.Gateway

	// events of the operation in flight
	pending  *events.Buffer
	sink     events.Sink
	recorder *events.Recorder
	metrics  *metrics.Metrics
	tracer   oteltrace.Tracer

	// set when the in-memory state could not be reloaded after a failed
	// commit; every later operation fails with it
	fatal error

	initialized bool
	shutdown    bool
}

func New(logger log.Logger) *VM {
	return &VM{log: logger}
}

// Initialize builds the components from [configBytes] and loads the last
// persisted state from [db]. An empty database is seeded with the genesis
// state described by the config.
func (vm *VM) Initialize(ctx context.Context, db database.Database, configBytes []byte, opts Options) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	cfg, err := config.Parse(configBytes)
	if err != nil {
		return err
	}
	vm.Config = cfg

	if opts.Authorizer == nil {
		opts.Authorizer = auth.CallerAuthorizer{}
	}
	if opts.HashFn == nil {
		opts.HashFn = keys.SHA256
	}
	if opts.Scorer == nil {
		opts.Scorer = scoring.NewCached(scoring.LengthOracle{}, opts.HashFn, cfg.ScoreCacheSize)
	}
	if opts.Registerer == nil {
		opts.Registerer = metric.NewRegistry()
	}

	vm.tracer = opts.Tracer
	vm.metrics, err = metrics.New(opts.Registerer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	vm.recorder = events.NewRecorder(&vm.Clock, cfg.EventHistorySize)
	sinks := append([]events.Sink{
		events.NewLogSink(vm.log),
		vm.metrics,
		vm.recorder,
	}, opts.Sinks...)
	vm.sink = events.Multi(sinks)
	vm.pending = &events.Buffer{}

	vm.registry, err = provenance.NewRegistry(vm.log, opts.HashFn, cfg.DigestCacheSize)
	if err != nil {
		return err
	}
	vm.ledger = ledger.New(
		cfg.Ledger(),
		vm.registry,
		peg.NewOracle(cfg.PegTrendEnabled),
		opts.Authorizer,
		vm.pending,
		opts.HashFn,
		vm.log,
	)
	vm.governance, err = governance.New(
		cfg.Governance(),
		opts.Scorer,
		opts.Authorizer,
		vm.pending,
		opts.HashFn,
		vm.log,
	)
	if err != nil {
		return err
	}
	vm.gateway = ecosystem.NewGateway(
		vm.registry,
		vm.ledger,
		opts.Authorizer,
		vm.pending,
		vm.log,
	)

	vm.baseDB = db
	vm.db = versiondb.New(db)
	vm.store = state.New(vm.db)

	initialized, err := vm.store.Initialized()
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}
	if initialized {
		if err := vm.restore(); err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}
		vm.log.Info("loaded peg VM state",
			log.Uint64("sequence", vm.ledger.Sequence()),
			log.Uint64("totalSupply", vm.ledger.TotalSupply()),
		)
	} else {
		if err := vm.commit(); err != nil {
			return fmt.Errorf("failed to write genesis state: %w", err)
		}
		vm.log.Info("initialized peg VM genesis",
			log.Uint64("collateralLocked", cfg.CollateralLocked),
			log.Uint32("quorumThreshold", cfg.QuorumThreshold),
		)
	}

	vm.observe()
	vm.initialized = true
	return nil
}

// Mint credits [amount] new tokens from [source] to [to].
func (vm *VM) Mint(ctx context.Context, to ids.ShortID, amount uint64, source provenance.Source) error {
	return vm.apply(opMint, func() error {
		return vm.ledger.Mint(ctx, to, amount, source)
	})
}

func (vm *VM) Transfer(ctx context.Context, from, to ids.ShortID, amount uint64) error {
	return vm.apply(opTransfer, func() error {
		return vm.ledger.Transfer(ctx, from, to, amount)
	})
}

func (vm *VM) LockCollateral(ctx context.Context, amount uint64) error {
	return vm.apply(opLockCollateral, func() error {
		return vm.ledger.LockCollateral(ctx, amount)
	})
}

func (vm *VM) CreateProposal(ctx context.Context, creator ids.ShortID, title string, description []byte) (uint32, error) {
	var id uint32
	err := vm.apply(opCreateProposal, func() error {
		var err error
		id, err = vm.governance.CreateProposal(ctx, creator, title, description)
		return err
	})
	return id, err
}

func (vm *VM) Vote(ctx context.Context, voter ids.ShortID, id uint32, approve bool) error {
	return vm.apply(opVote, func() error {
		return vm.governance.Vote(ctx, voter, id, approve)
	})
}

func (vm *VM) FinalizeProposal(ctx context.Context, id uint32) (governance.Status, error) {
	var status governance.Status
	err := vm.apply(opFinalize, func() error {
		var err error
		status, err = vm.governance.FinalizeProposal(ctx, id)
		return err
	})
	return status, err
}

func (vm *VM) Stake(ctx context.Context, staker ids.ShortID, amount uint64) error {
	return vm.apply(opStake, func() error {
		return vm.governance.Stake(ctx, staker, amount)
	})
}

// NotifyBridge announces an outbound bridge transfer. Nothing is persisted.
func (vm *VM) NotifyBridge(ctx context.Context, holder ids.ShortID, amount uint64, targetChain string) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	if err := vm.gateway.NotifyBridge(ctx, holder, amount, targetChain); err != nil {
		vm.reject(opNotifyBridge, err)
		return err
	}
	vm.pending.Flush(vm.sink)
	return nil
}

// VerifyPeg returns the peg value of [holder] at ledger [time].
func (vm *VM) VerifyPeg(holder ids.ShortID, time uint64) (uint64, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return 0, err
	}
	return vm.ledger.VerifyPeg(holder, time)
}

// PredictStability projects the peg of [holder] forward by the trend at the
// current ledger sequence. The projection starts from the trend-free peg, so
// the trend is applied exactly once.
func (vm *VM) PredictStability(holder ids.ShortID) (uint64, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return 0, err
	}
	sequence := vm.ledger.Sequence()
	// Trend(0) is zero.
	price, err := vm.ledger.VerifyPeg(holder, 0)
	if err != nil {
		return 0, err
	}
	source, _ := vm.registry.Lookup(holder)
	return scoring.PredictStability(price, source, sequence)
}

func (vm *VM) Balance(account ids.ShortID) uint64 {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.loaded() {
		return 0
	}
	return vm.ledger.Balance(account)
}

// Supply returns the total supply, the locked collateral and the ledger
// sequence.
func (vm *VM) Supply() (uint64, uint64, uint64) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.loaded() {
		return 0, 0, 0
	}
	return vm.ledger.TotalSupply(), vm.ledger.CollateralLocked(), vm.ledger.Sequence()
}

// Provenance returns the recorded source of [account].
func (vm *VM) Provenance(account ids.ShortID) (provenance.Source, bool) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.loaded() {
		return provenance.Invalid, false
	}
	return vm.registry.Lookup(account)
}

func (vm *VM) VerifyEcosystemEntry(account ids.ShortID) bool {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.loaded() {
		return false
	}
	return vm.gateway.VerifyEcosystemEntry(account)
}

func (vm *VM) BatchVerify(accounts []ids.ShortID, sources []provenance.Source) ([]bool, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.loaded() {
		return nil, errNotInitialized
	}
	return vm.gateway.BatchVerify(accounts, sources)
}

func (vm *VM) VerifyHolderDigest(holder ids.ShortID, expected ids.ID, source provenance.Source) (bool, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.loaded() {
		return false, errNotInitialized
	}
	return vm.registry.VerifyHolderDigest(holder, expected, source)
}

func (vm *VM) Proposal(id uint32) (governance.Proposal, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.loaded() {
		return governance.Proposal{}, errNotInitialized
	}
	return vm.governance.Proposal(id)
}

func (vm *VM) Voter(account ids.ShortID) governance.Voter {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.loaded() {
		return governance.Voter{Account: account}
	}
	return vm.governance.Voter(account)
}

// Events returns up to [limit] of the most recently committed events.
func (vm *VM) Events(limit int) []events.Record {
	vm.lock.RLock()
	recorder := vm.recorder
	vm.lock.RUnlock()

	if recorder == nil {
		return nil
	}
	return recorder.Records(limit)
}

// Audit verifies the ledger invariants.
func (vm *VM) Audit() error {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.loaded() {
		return errNotInitialized
	}
	return vm.ledger.Audit()
}

// apply runs [fn] under the write lock and persists the resulting state. If
// [fn] fails nothing is persisted and no event is emitted. If persisting
// fails the components are reloaded from the last committed state.
func (vm *VM) apply(op string, fn func() error) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		vm.reject(op, err)
		return err
	}
	if err := vm.commit(); err != nil {
		vm.pending.Reset()
		vm.db.Abort()
		vm.log.Error("failed to persist operation",
			log.String("op", op),
			log.Err(err),
		)
		if restoreErr := vm.restore(); restoreErr != nil {
			vm.fatal = fmt.Errorf("%w: %w", errStateLost, restoreErr)
			vm.log.Error("failed to reload state",
				log.Err(restoreErr),
			)
		}
		return fmt.Errorf("failed to persist %s: %w", op, err)
	}

	vm.pending.Flush(vm.sink)
	vm.observe()
	return nil
}

func (vm *VM) reject(op string, err error) {
	dropped := vm.pending.Len()
	vm.pending.Reset()
	vm.metrics.MarkRejected(op)
	vm.log.Debug("operation rejected",
		log.String("op", op),
		log.Int("droppedEvents", dropped),
		log.Err(err),
	)
}

// loaded is true once the components exist. Reads are served from them even
// after shutdown.
func (vm *VM) loaded() bool {
	return vm.initialized
}

func (vm *VM) ready() error {
	switch {
	case vm.shutdown:
		return errShutdown
	case !vm.loaded():
		return errNotInitialized
	case vm.fatal != nil:
		return vm.fatal
	default:
		return nil
	}
}

func (vm *VM) commit() error {
	if err := vm.store.PutLedger(vm.ledger.Snapshot()); err != nil {
		return err
	}
	if err := vm.store.PutGovernance(vm.governance.Snapshot()); err != nil {
		return err
	}
	if err := vm.store.PutProvenance(vm.registry.Snapshot()); err != nil {
		return err
	}
	return vm.db.Commit()
}

func (vm *VM) restore() error {
	ledgerSnapshot, err := vm.store.GetLedger()
	if err != nil {
		return err
	}
	governanceSnapshot, err := vm.store.GetGovernance()
	if err != nil {
		return err
	}
	provenanceSnapshot, err := vm.store.GetProvenance()
	if err != nil {
		return err
	}
	return errors.Join(
		vm.ledger.Restore(ledgerSnapshot),
		vm.governance.Restore(governanceSnapshot),
		vm.registry.Restore(provenanceSnapshot),
	)
}

func (vm *VM) observe() {
	vm.metrics.ObserveLedger(vm.ledger.TotalSupply(), vm.ledger.CollateralLocked(), vm.ledger.Sequence())
	vm.metrics.ObserveProposals(vm.governance.NumProposals())
}

// CreateHandlers returns the JSON-RPC handler of the VM.
func (vm *VM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	server.RegisterCodec(json2.NewCodec(), "application/json;charset=UTF-8")

	var served api.VM = vm
	if vm.tracer != nil {
		served = traced.New(vm, vm.tracer)
	}
	if err := server.RegisterService(api.NewService(served), "pegvm"); err != nil {
		return nil, fmt.Errorf("failed to register peg service: %w", err)
	}
	return map[string]http.Handler{
		"": server,
	}, nil
}

func (vm *VM) HealthCheck(context.Context) (interface{}, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return nil, err
	}
	if err := vm.ledger.Audit(); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"healthy":     true,
		"sequence":    vm.ledger.Sequence(),
		"totalSupply": vm.ledger.TotalSupply(),
		"proposals":   vm.governance.NumProposals(),
	}, nil
}

func (vm *VM) Version(context.Context) (string, error) {
	return Version, nil
}

func (vm *VM) Shutdown(context.Context) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.shutdown {
		return nil
	}
	vm.shutdown = true
	if vm.db == nil {
		return nil
	}
	vm.log.Info("shutting down peg VM")
	if err := vm.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
