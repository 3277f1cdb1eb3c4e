// Package sim is the top-level entry point of the promise-scheduling
// contract simulator: it wires the Account Store, Context Builder, Step
// Executor, and Promise Scheduler (§2) into the operations a caller
// actually drives — Call, View, NewAccount, Reset, SetContext.
package sim

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/govm-net/sim/account"
	"github.com/govm-net/sim/codec"
	"github.com/govm-net/sim/config"
	"github.com/govm-net/sim/executor"
	"github.com/govm-net/sim/scheduler"
	"github.com/govm-net/sim/vmctx"
	"github.com/govm-net/sim/vmdriver"
)

// Simulator is a single simulator session: its own Account Store, and the
// driver/scheduler stack built on top of it. Per §5/§9, a Simulator owns no
// global state — multiple Simulators can coexist so long as each owns its
// own Account Store.
type Simulator struct {
	cfg     config.Config
	store   *account.Store
	builder *vmctx.Builder
	exec    *executor.Executor
	sched   *scheduler.Scheduler
	logger  *slog.Logger
}

// New creates a Simulator using driver as its VM Driver (a *vmdriver.
// SubprocessDriver or *vmdriver.WazeroDriver, typically).
//
// Per §6, this simulator supports POSIX hosts only: construction on
// Windows terminates the process immediately with a diagnostic.
func New(cfg config.Config, driver vmdriver.Driver, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	if runtime.GOOS == "windows" {
		logger.Error("sim: unsupported platform, simulator requires a POSIX host", "goos", runtime.GOOS)
		os.Exit(1)
	}
	store := account.NewStoreWithDefaults(cfg.DefaultBalance, cfg.DefaultStorageUsage)
	builder := vmctx.NewBuilder(store)
	builder.SetOverrides(vmctx.Overrides{
		BlockHeight: cfg.BlockHeight,
		BlockTime:   cfg.BlockTime,
		RandomSeed:  cfg.RandomSeed,
	})
	exec := executor.New(store, builder, driver, logger)
	return &Simulator{
		cfg:     cfg,
		store:   store,
		builder: builder,
		exec:    exec,
		sched:   scheduler.New(exec, logger),
		logger:  logger,
	}
}

// Store exposes the underlying Account Store for direct inspection.
func (s *Simulator) Store() *account.Store {
	return s.store
}

// SetContext overlays the simulator-wide context (block height, timestamp,
// random seed) applied last by every subsequent Context Builder call
// (§4.2 rule 5), until changed again.
func (s *Simulator) SetContext(o vmctx.Overrides) {
	s.builder.SetOverrides(o)
}

// NewAccount explicitly creates an account, optionally backed by a
// contract image. A relative contract image path is resolved against the
// configured ContractsDir, when one is set.
func (s *Simulator) NewAccount(accountID, contractImage string) (*account.Account, error) {
	if contractImage != "" && s.cfg.ContractsDir != "" && !filepath.IsAbs(contractImage) {
		contractImage = filepath.Join(s.cfg.ContractsDir, contractImage)
	}
	return s.store.NewAccount(accountID, contractImage)
}

// Reset restores a single account to its default state without removing it.
func (s *Simulator) Reset(accountID string) {
	s.store.Reset(accountID)
}

// ResetAll restores every account in the store to its default state.
func (s *Simulator) ResetAll() {
	s.store.ResetAll()
}

// CallRequest is the caller-supplied root invocation for Call.
type CallRequest struct {
	AccountID       string
	MethodName      string
	Input           string
	SignerAccountID string
	PrepaidGas      uint64
	AttachedDeposit uint64
}

// CallResult is the caller-visible result of driving a Call to quiescence:
// the decoded return value, the terminal step's contract-level error (if
// any), and the full call/result graph for inspection or replay.
type CallResult struct {
	ReturnData json.RawMessage
	Err        error
	Calls      map[uint64]scheduler.Call
	Results    map[uint64]executor.Result
}

// Call drives req's method against its account through the full promise
// scheduler (§4.4), executing every receipt it transitively emits.
func (s *Simulator) Call(ctx context.Context, req CallRequest) (CallResult, error) {
	gas := req.PrepaidGas
	if gas == 0 {
		gas = s.cfg.DefaultGas
	}

	res, err := s.sched.Call(ctx, scheduler.Root{
		AccountID:       req.AccountID,
		MethodName:      req.MethodName,
		Input:           req.Input,
		SignerAccountID: req.SignerAccountID,
		PrepaidGas:      gas,
		AttachedDeposit: req.AttachedDeposit,
	})
	if err != nil {
		return CallResult{}, err
	}
	return CallResult{ReturnData: res.ReturnData, Err: res.Err, Calls: res.Calls, Results: res.Results}, nil
}

// ViewResult is the caller-visible result of View: the decoded return
// value (nil if the method returned none), the contract-level error (if
// any), and the decoded post-state the driver reported. That state is never
// committed: the account's stored state is unchanged by a view call.
type ViewResult struct {
	ReturnData json.RawMessage
	Err        error
	State      codec.State
}

// View executes a single side-effect-free call per §4.5: a Step Executor
// invocation with IsView set, bypassing the scheduler entirely. Any commit
// the driver would otherwise make is suppressed regardless of the driver's
// own behavior.
func (s *Simulator) View(ctx context.Context, accountID, methodName, input string) (ViewResult, error) {
	res, err := s.exec.CallStep(ctx, executor.Request{
		AccountID:  accountID,
		MethodName: methodName,
		Input:      input,
		Caller:     vmctx.CallerContext{IsView: true},
	})
	if err != nil {
		return ViewResult{}, err
	}

	var returnData json.RawMessage
	if res.Outcome.ReturnData.Kind == vmdriver.ReturnValue && len(res.Outcome.ReturnData.Value) > 0 {
		returnData = json.RawMessage(res.Outcome.ReturnData.Value)
	}
	var callErr error
	if res.Outcome.Err != nil {
		callErr = &vmdriver.ContractError{Message: *res.Outcome.Err}
	}
	return ViewResult{ReturnData: returnData, Err: callErr, State: res.State}, nil
}
