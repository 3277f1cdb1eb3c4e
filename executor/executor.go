// Package executor implements the Step Executor: the single-call entry
// point that assembles a VM context, invokes the VM Driver, and commits the
// resulting balance/state/storage back onto the callee account for
// non-view, non-failed calls.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/govm-net/sim/account"
	"github.com/govm-net/sim/codec"
	"github.com/govm-net/sim/vmctx"
	"github.com/govm-net/sim/vmdriver"
)

// Request is the input to CallStep: the callee, the method, its input, the
// caller-provided partial context, and the resolved dependency results
// (§3's input_data) to pass through to the VM Driver.
type Request struct {
	AccountID           string
	MethodName          string
	Input               string
	Caller              vmctx.CallerContext
	OutputDataReceivers []string
	PromiseResults      []vmdriver.PromiseResult
}

// Result is the outcome of a single step: the driver's Outcome, its
// emitted receipts, and the callee's decoded post-state (as observed,
// regardless of whether it was actually committed).
type Result struct {
	Outcome  vmdriver.Outcome
	Receipts []vmdriver.Receipt
	State    codec.State
}

// Executor wires together the Account Store, Context Builder, and a VM
// Driver into the call_step operation.
type Executor struct {
	store   *account.Store
	builder *vmctx.Builder
	driver  vmdriver.Driver
	logger  *slog.Logger
}

// New creates an Executor.
func New(store *account.Store, builder *vmctx.Builder, driver vmdriver.Driver, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, builder: builder, driver: driver, logger: logger}
}

// CallStep executes one contract method against one account, per §4.3.
//
// On success and non-view, the callee's balance, encoded state, and storage
// usage are committed from the outcome. On a failed step or a view call, no
// account mutation occurs: the callee's balance, state, and storage usage
// are byte-identical before and after.
func (e *Executor) CallStep(ctx context.Context, req Request) (Result, error) {
	callee, err := e.store.Get(req.AccountID)
	if err != nil {
		return Result{}, err
	}

	vmContext, err := e.builder.Build(req.AccountID, req.Input, req.PromiseResults, req.OutputDataReceivers, req.Caller)
	if err != nil {
		return Result{}, err
	}

	driverResult, err := e.driver.Execute(ctx, vmdriver.ExecRequest{
		Context:        vmContext,
		Input:          req.Input,
		WasmFile:       callee.ContractImage,
		MethodName:     req.MethodName,
		State:          callee.EncodedState,
		PromiseResults: req.PromiseResults,
	})
	if err != nil {
		return Result{}, fmt.Errorf("executor: call_step %s.%s: %w", req.AccountID, req.MethodName, err)
	}

	succeeded := driverResult.Outcome.Err == nil
	if succeeded && !req.Caller.IsView {
		callee.Balance = driverResult.Outcome.Balance
		callee.StorageUsage = driverResult.Outcome.StorageUsage
		callee.EncodedState = driverResult.State
		e.logger.Debug("executor: committed step",
			"account", req.AccountID, "method", req.MethodName, "balance", callee.Balance)
	} else {
		e.logger.Debug("executor: step not committed",
			"account", req.AccountID, "method", req.MethodName, "view", req.Caller.IsView, "failed", !succeeded)
	}

	decoded, err := codec.Decode(driverResult.State)
	if err != nil {
		return Result{}, fmt.Errorf("executor: decode state for %s: %w", req.AccountID, err)
	}

	return Result{
		Outcome:  driverResult.Outcome,
		Receipts: driverResult.Receipts,
		State:    decoded,
	}, nil
}
