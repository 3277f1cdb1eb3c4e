package scheduler

import (
	"context"
	"testing"

	"github.com/govm-net/sim/account"
	"github.com/govm-net/sim/codec"
	"github.com/govm-net/sim/executor"
	"github.com/govm-net/sim/vmctx"
	"github.com/govm-net/sim/vmdriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedDriver is a fake VM Driver keyed by method name, so tests can
// script a multi-step call graph without a real wazero module or
// subprocess.
type scriptedDriver struct {
	steps map[string]func(req vmdriver.ExecRequest) vmdriver.DriverResult
}

func (d *scriptedDriver) Execute(ctx context.Context, req vmdriver.ExecRequest) (vmdriver.DriverResult, error) {
	fn, ok := d.steps[req.MethodName]
	if !ok {
		return vmdriver.DriverResult{}, nil
	}
	return fn(req), nil
}

func newTestScheduler(t *testing.T, driver vmdriver.Driver, accounts ...string) (*Scheduler, *account.Store) {
	t.Helper()
	store := account.NewStore()
	for _, id := range accounts {
		store.GetOrCreate(id)
	}
	builder := vmctx.NewBuilder(store)
	ex := executor.New(store, builder, driver, nil)
	return New(ex, nil), store
}

func valueResult(balance uint64, value []byte) vmdriver.DriverResult {
	state, _ := codec.Encode(codec.State{})
	return vmdriver.DriverResult{
		Outcome: vmdriver.Outcome{
			Balance:    balance,
			ReturnData: vmdriver.ReturnData{Kind: vmdriver.ReturnValue, Value: value},
		},
		State: state,
	}
}

func TestSchedulerDirectValueReturn(t *testing.T) {
	driver := &scriptedDriver{steps: map[string]func(vmdriver.ExecRequest) vmdriver.DriverResult{
		"echo": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			return valueResult(1, []byte(`{"x":7}`))
		},
	}}
	s, _ := newTestScheduler(t, driver, "alice")

	res, err := s.Call(context.Background(), Root{AccountID: "alice", MethodName: "echo", Input: `{"x":7}`})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.JSONEq(t, `{"x":7}`, string(res.ReturnData))
	assert.Len(t, res.Calls, 1)
}

func TestSchedulerSingleCrossContractForward(t *testing.T) {
	driver := &scriptedDriver{steps: map[string]func(vmdriver.ExecRequest) vmdriver.DriverResult{
		"forward_to_bob": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			state, _ := codec.Encode(codec.State{})
			return vmdriver.DriverResult{
				Outcome: vmdriver.Outcome{
					Balance:    1,
					ReturnData: vmdriver.ReturnData{Kind: vmdriver.ReturnReceiptIndex, ReceiptIndex: 0},
				},
				Receipts: []vmdriver.Receipt{{
					ReceiverID: "bob",
					Actions:    []vmdriver.Action{{Kind: vmdriver.FunctionCall, MethodName: "double", Args: `{"n":3}`}},
				}},
				State: state,
			}
		},
		"double": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			return valueResult(1, []byte("6"))
		},
	}}
	s, _ := newTestScheduler(t, driver, "alice", "bob")

	res, err := s.Call(context.Background(), Root{AccountID: "alice", MethodName: "forward_to_bob", Input: `{"n":3}`})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, "6", string(res.ReturnData))
	assert.Len(t, res.Calls, 2)
	assert.Contains(t, res.Calls, uint64(0))
	assert.Contains(t, res.Calls, uint64(1))
	assert.Equal(t, "bob", res.Calls[1].AccountID)
	assert.Equal(t, "alice", res.Calls[1].PredecessorAccountID)
}

func TestSchedulerNestedForward(t *testing.T) {
	// alice.step0 forwards to bob.step1, which itself forwards to
	// carol.step2; return_index must chase the chain exactly twice.
	driver := &scriptedDriver{steps: map[string]func(vmdriver.ExecRequest) vmdriver.DriverResult{
		"hop0": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			state, _ := codec.Encode(codec.State{})
			return vmdriver.DriverResult{
				Outcome: vmdriver.Outcome{ReturnData: vmdriver.ReturnData{Kind: vmdriver.ReturnReceiptIndex, ReceiptIndex: 0}},
				Receipts: []vmdriver.Receipt{{
					ReceiverID: "bob",
					Actions:    []vmdriver.Action{{Kind: vmdriver.FunctionCall, MethodName: "hop1"}},
				}},
				State: state,
			}
		},
		"hop1": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			state, _ := codec.Encode(codec.State{})
			return vmdriver.DriverResult{
				Outcome: vmdriver.Outcome{ReturnData: vmdriver.ReturnData{Kind: vmdriver.ReturnReceiptIndex, ReceiptIndex: 0}},
				Receipts: []vmdriver.Receipt{{
					ReceiverID: "carol",
					Actions:    []vmdriver.Action{{Kind: vmdriver.FunctionCall, MethodName: "hop2"}},
				}},
				State: state,
			}
		},
		"hop2": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			return valueResult(1, []byte(`"done"`))
		},
	}}
	s, _ := newTestScheduler(t, driver, "alice", "bob", "carol")

	res, err := s.Call(context.Background(), Root{AccountID: "alice", MethodName: "hop0"})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, `"done"`, string(res.ReturnData))
	assert.Len(t, res.Calls, 3)
}

func TestSchedulerFanInJoin(t *testing.T) {
	// Root emits two receipts (local 0, 1) plus a joiner (local 2)
	// depending on both. The joiner must stall until both predecessors
	// resolve, then see two resolved promise results in order.
	var joinerPromises []vmdriver.PromiseResult

	driver := &scriptedDriver{steps: map[string]func(vmdriver.ExecRequest) vmdriver.DriverResult{
		"fan_out": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			state, _ := codec.Encode(codec.State{})
			return vmdriver.DriverResult{
				Outcome: vmdriver.Outcome{},
				Receipts: []vmdriver.Receipt{
					{ReceiverID: "bob", Actions: []vmdriver.Action{{Kind: vmdriver.FunctionCall, MethodName: "left"}}},
					{ReceiverID: "carol", Actions: []vmdriver.Action{{Kind: vmdriver.FunctionCall, MethodName: "right"}}},
					{ReceiverID: "dave", ReceiptIndices: []uint64{0, 1}, Actions: []vmdriver.Action{{Kind: vmdriver.FunctionCall, MethodName: "join"}}},
				},
				State: state,
			}
		},
		"left":  func(req vmdriver.ExecRequest) vmdriver.DriverResult { return valueResult(1, []byte("1")) },
		"right": func(req vmdriver.ExecRequest) vmdriver.DriverResult { return valueResult(1, []byte("2")) },
		"join": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			joinerPromises = req.PromiseResults
			return valueResult(1, []byte("3"))
		},
	}}
	s, _ := newTestScheduler(t, driver, "alice", "bob", "carol", "dave")

	res, err := s.Call(context.Background(), Root{AccountID: "alice", MethodName: "fan_out"})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Len(t, res.Calls, 4)
	require.Len(t, joinerPromises, 2)
	assert.Equal(t, vmdriver.PromiseSuccessful, joinerPromises[0].Kind)
	assert.Equal(t, []byte("1"), joinerPromises[0].Value)
	assert.Equal(t, vmdriver.PromiseSuccessful, joinerPromises[1].Kind)
	assert.Equal(t, []byte("2"), joinerPromises[1].Value)
}

func TestSchedulerFanInJoinSeesFailedPredecessor(t *testing.T) {
	var joinerPromises []vmdriver.PromiseResult

	driver := &scriptedDriver{steps: map[string]func(vmdriver.ExecRequest) vmdriver.DriverResult{
		"fan_out": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			state, _ := codec.Encode(codec.State{})
			return vmdriver.DriverResult{
				Receipts: []vmdriver.Receipt{
					{ReceiverID: "bob", Actions: []vmdriver.Action{{Kind: vmdriver.FunctionCall, MethodName: "left"}}},
					{ReceiverID: "carol", Actions: []vmdriver.Action{{Kind: vmdriver.FunctionCall, MethodName: "right"}}},
					{ReceiverID: "dave", ReceiptIndices: []uint64{0, 1}, Actions: []vmdriver.Action{{Kind: vmdriver.FunctionCall, MethodName: "join"}}},
				},
				State: state,
			}
		},
		"left": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			errMsg := "left failed"
			return vmdriver.DriverResult{Outcome: vmdriver.Outcome{Err: &errMsg}}
		},
		"right": func(req vmdriver.ExecRequest) vmdriver.DriverResult { return valueResult(1, []byte("2")) },
		"join": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			joinerPromises = req.PromiseResults
			return valueResult(1, []byte("3"))
		},
	}}
	s, _ := newTestScheduler(t, driver, "alice", "bob", "carol", "dave")

	res, err := s.Call(context.Background(), Root{AccountID: "alice", MethodName: "fan_out"})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Len(t, joinerPromises, 2)
	assert.Equal(t, vmdriver.PromiseFailed, joinerPromises[0].Kind)
	assert.Equal(t, vmdriver.PromiseSuccessful, joinerPromises[1].Kind)
}

func TestSchedulerContractErrorDoesNotAbortDrain(t *testing.T) {
	driver := &scriptedDriver{steps: map[string]func(vmdriver.ExecRequest) vmdriver.DriverResult{
		"root": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			state, _ := codec.Encode(codec.State{})
			return vmdriver.DriverResult{
				Outcome: vmdriver.Outcome{ReturnData: vmdriver.ReturnData{Kind: vmdriver.ReturnReceiptIndex, ReceiptIndex: 0}},
				Receipts: []vmdriver.Receipt{{
					ReceiverID: "bob",
					Actions:    []vmdriver.Action{{Kind: vmdriver.FunctionCall, MethodName: "abort"}},
				}},
				State: state,
			}
		},
		"abort": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			errMsg := "contract aborted"
			return vmdriver.DriverResult{Outcome: vmdriver.Outcome{Err: &errMsg}}
		},
	}}
	s, _ := newTestScheduler(t, driver, "alice", "bob")

	res, err := s.Call(context.Background(), Root{AccountID: "alice", MethodName: "root"})
	require.NoError(t, err)
	require.Error(t, res.Err)
	assert.Equal(t, "contract aborted", res.Err.Error())
	assert.Len(t, res.Calls, 2)
}

func TestSchedulerMalformedReceiptIsFatal(t *testing.T) {
	driver := &scriptedDriver{steps: map[string]func(vmdriver.ExecRequest) vmdriver.DriverResult{
		"root": func(req vmdriver.ExecRequest) vmdriver.DriverResult {
			state, _ := codec.Encode(codec.State{})
			return vmdriver.DriverResult{
				Receipts: []vmdriver.Receipt{{
					ReceiverID: "bob",
					Actions: []vmdriver.Action{
						{Kind: vmdriver.FunctionCall, MethodName: "a"},
						{Kind: vmdriver.FunctionCall, MethodName: "b"},
					},
				}},
				State: state,
			}
		},
	}}
	s, _ := newTestScheduler(t, driver, "alice", "bob")

	_, err := s.Call(context.Background(), Root{AccountID: "alice", MethodName: "root"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedReceipt)
}

func TestSchedulerUnknownAccountAborts(t *testing.T) {
	driver := &scriptedDriver{steps: map[string]func(vmdriver.ExecRequest) vmdriver.DriverResult{}}
	s, _ := newTestScheduler(t, driver, "alice")

	_, err := s.Call(context.Background(), Root{AccountID: "ghost", MethodName: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrUnknownAccount)
}
