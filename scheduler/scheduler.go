// Package scheduler implements the Promise Scheduler: the data-flow engine
// that drives a root contract invocation to completion, executing each
// discovered receipt in turn, wiring data dependencies between steps, and
// chasing the return_index across callback forwards (see spec §4.4).
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/govm-net/sim/executor"
	"github.com/govm-net/sim/vmctx"
	"github.com/govm-net/sim/vmdriver"
)

// ErrMalformedReceipt means a receipt carried an action count other than
// one, or its single action was not a FunctionCall. It is fatal: it
// indicates a VM Driver contract violation and aborts the scheduler.
var ErrMalformedReceipt = errors.New("scheduler: malformed receipt")

// Call is a single enqueued descriptor: one pending (or already executed)
// invocation of a method against an account, plus the bookkeeping the
// scheduler needs to run it. Calls is exposed on Result for debugging and
// replay.
type Call struct {
	Index                uint64
	AccountID            string
	MethodName           string
	Input                string
	SignerAccountID      string
	PredecessorAccountID string
	PrepaidGas           uint64
	AttachedDeposit      uint64

	// InputData holds the data_ids this call depends on, in dependency
	// order; it is empty for the root call.
	InputData []uint64
}

// outputTarget is one entry of all_output_data: "when the call this entry
// is attached to finishes, materialize its result under DataID for
// AccountID's benefit."
type outputTarget struct {
	AccountID string
	DataID    uint64
}

// Root is the caller-supplied root invocation handed to Call.
type Root struct {
	AccountID       string
	MethodName      string
	Input           string
	SignerAccountID string
	PrepaidGas      uint64
	AttachedDeposit uint64
}

// Result is the caller-visible outcome of driving a root call to
// quiescence: the decoded return value (if the terminal step returned one),
// the terminal step's contract-level error (if any — this is data, not a Go
// error), and the full calls/results maps for inspection or replay.
type Result struct {
	ReturnData json.RawMessage
	Err        error
	Calls      map[uint64]Call
	Results    map[uint64]executor.Result
}

// Scheduler drives the transitive closure of receipts from a root call. A
// Scheduler is reusable across Call invocations; each Call resets its
// per-session bookkeeping (§3's "Scheduler state (per root call)").
type Scheduler struct {
	exec   *executor.Executor
	logger *slog.Logger

	queue         []Call
	calls         map[uint64]Call
	results       map[uint64]executor.Result
	allInputData  map[uint64]vmdriver.PromiseResult
	allOutputData map[uint64][]outputTarget
	numReceipts   uint64
	numData       uint64
	returnIndex   uint64
}

// New creates a Scheduler driving steps through exec.
func New(exec *executor.Executor, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{exec: exec, logger: logger}
}

// Call drives root to completion per §4.4's main loop, and returns the
// StepResult at the final return_index.
//
// The returned error is reserved for fatal scheduler errors (an unknown
// account, a driver crash, a malformed receipt) that abort the run;
// contract-level failures surface as data in Result.Err.
func (s *Scheduler) Call(ctx context.Context, root Root) (Result, error) {
	s.calls = make(map[uint64]Call)
	s.results = make(map[uint64]executor.Result)
	s.allInputData = make(map[uint64]vmdriver.PromiseResult)
	s.allOutputData = make(map[uint64][]outputTarget)
	s.numReceipts = 1
	s.numData = 0
	s.returnIndex = 0

	s.queue = []Call{{
		Index:           0,
		AccountID:       root.AccountID,
		MethodName:      root.MethodName,
		Input:           root.Input,
		SignerAccountID: root.SignerAccountID,
		PrepaidGas:      root.PrepaidGas,
		AttachedDeposit: root.AttachedDeposit,
	}}

	for len(s.queue) > 0 {
		c := s.queue[0]
		s.queue = s.queue[1:]

		resolved, ok := s.resolveInputData(c.InputData)
		if !ok {
			s.logger.Debug("scheduler: stalling call, dependency unresolved", "index", c.Index, "account", c.AccountID)
			s.queue = append(s.queue, c)
			continue
		}

		if err := s.step(ctx, c, resolved); err != nil {
			return Result{}, err
		}
	}

	final := s.results[s.returnIndex]
	return Result{
		ReturnData: finalReturnData(final.Outcome),
		Err:        finalErr(final.Outcome),
		Calls:      s.calls,
		Results:    s.results,
	}, nil
}

// step executes one descriptor whose dependencies are all resolved:
// invokes the Step Executor, dispatches the outcome (failure propagation,
// direct-value delivery, or ReceiptIndex forwarding), and expands any
// emitted receipts into new queue entries.
func (s *Scheduler) step(ctx context.Context, c Call, resolved []vmdriver.PromiseResult) error {
	outputs := s.allOutputData[c.Index]
	receivers := make([]string, len(outputs))
	for i, o := range outputs {
		receivers[i] = o.AccountID
	}

	s.calls[c.Index] = c
	s.logger.Debug("scheduler: dispatching call", "index", c.Index, "account", c.AccountID, "method", c.MethodName)

	res, err := s.exec.CallStep(ctx, executor.Request{
		AccountID:  c.AccountID,
		MethodName: c.MethodName,
		Input:      c.Input,
		Caller: vmctx.CallerContext{
			SignerAccountID:      c.SignerAccountID,
			PredecessorAccountID: c.PredecessorAccountID,
			PrepaidGas:           c.PrepaidGas,
			AttachedDeposit:      c.AttachedDeposit,
		},
		OutputDataReceivers: receivers,
		PromiseResults:      resolved,
	})
	if err != nil {
		s.logger.Error("scheduler: fatal step error", "index", c.Index, "account", c.AccountID, "err", err)
		return fmt.Errorf("scheduler: call_step %s.%s (index %d): %w", c.AccountID, c.MethodName, c.Index, err)
	}
	s.results[c.Index] = res

	if res.Outcome.Err != nil {
		s.logger.Debug("scheduler: step failed", "index", c.Index, "account", c.AccountID, "err", *res.Outcome.Err)
		for _, o := range outputs {
			s.allInputData[o.DataID] = vmdriver.PromiseResult{Kind: vmdriver.PromiseFailed}
		}
		return nil
	}

	s.dispatchReturn(c, outputs, res.Outcome.ReturnData)
	return s.expandReceipts(c, res.Receipts)
}

// dispatchReturn implements §4.4 step 3: deliver a direct value to every
// awaiting data_id, or chase the ReceiptIndex forwarding chain.
func (s *Scheduler) dispatchReturn(c Call, outputs []outputTarget, ret vmdriver.ReturnData) {
	switch ret.Kind {
	case vmdriver.ReturnValue:
		for _, o := range outputs {
			s.allInputData[o.DataID] = vmdriver.PromiseResult{Kind: vmdriver.PromiseSuccessful, Value: ret.Value}
		}
	case vmdriver.ReturnPlainString:
		// A bare string return is treated as logging-only: the payload
		// itself is not propagated, only a Successful marker (spec §9).
		for _, o := range outputs {
			s.allInputData[o.DataID] = vmdriver.PromiseResult{Kind: vmdriver.PromiseSuccessful}
		}
	case vmdriver.ReturnReceiptIndex:
		adj := ret.ReceiptIndex + s.numReceipts
		s.allOutputData[adj] = append(s.allOutputData[adj], outputs...)
		if s.returnIndex == c.Index {
			s.returnIndex = adj
		}
	case vmdriver.ReturnNone:
		// Nothing to propagate; awaiting data_ids (if any) simply never
		// resolve from this call, mirroring the reference scheduler.
	}
}

// expandReceipts implements §4.4 step 4: renumber each receipt's local
// indices into globally unique ones, register its data dependencies, and
// enqueue a new descriptor per receipt.
func (s *Scheduler) expandReceipts(c Call, receipts []vmdriver.Receipt) error {
	for i, r := range receipts {
		if len(r.Actions) != 1 || r.Actions[0].Kind != vmdriver.FunctionCall {
			return fmt.Errorf("%w: call %d receipt %d has %d actions", ErrMalformedReceipt, c.Index, i, len(r.Actions))
		}
		action := r.Actions[0]

		dataIDs := make([]uint64, len(r.ReceiptIndices))
		for j, k := range r.ReceiptIndices {
			id := s.numData
			s.numData++
			dataIDs[j] = id
			adjK := k + s.numReceipts
			s.allOutputData[adjK] = append(s.allOutputData[adjK], outputTarget{AccountID: r.ReceiverID, DataID: id})
		}

		s.queue = append(s.queue, Call{
			Index:                uint64(i) + s.numReceipts,
			AccountID:            r.ReceiverID,
			MethodName:           action.MethodName,
			Input:                action.Args,
			SignerAccountID:      c.SignerAccountID,
			PredecessorAccountID: c.AccountID,
			PrepaidGas:           action.Gas,
			AttachedDeposit:      action.Deposit,
			InputData:            dataIDs,
		})
	}
	s.numReceipts += uint64(len(receipts))
	return nil
}

// resolveInputData looks up every data_id a call depends on. It returns
// ok=false if any dependency is still unresolved, in which case the caller
// must re-enqueue the descriptor unchanged (§4.4 step 1).
func (s *Scheduler) resolveInputData(ids []uint64) ([]vmdriver.PromiseResult, bool) {
	out := make([]vmdriver.PromiseResult, len(ids))
	for i, id := range ids {
		pr, ok := s.allInputData[id]
		if !ok {
			return nil, false
		}
		out[i] = pr
	}
	return out, true
}

func finalReturnData(o vmdriver.Outcome) json.RawMessage {
	if o.ReturnData.Kind == vmdriver.ReturnValue && len(o.ReturnData.Value) > 0 {
		return json.RawMessage(o.ReturnData.Value)
	}
	return nil
}

func finalErr(o vmdriver.Outcome) error {
	if o.Err != nil {
		return &vmdriver.ContractError{Message: *o.Err}
	}
	return nil
}
