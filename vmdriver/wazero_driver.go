package vmdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// WazeroDriver is an in-process Driver implementation backed by wazero. It
// lets the scheduler be exercised end to end without an external VM Driver
// binary: each call compiles (or reuses a cached compilation of) the
// callee's wasm file, instantiates a fresh module instance, and invokes a
// single exported "execute" function with the request encoded as JSON in
// linear memory.
//
// This bridge treats the WASM execution backend as an opaque, contract-only
// collaborator: it does not implement the full host-function ABI a real
// contract runtime would expose, only the minimal request/response
// round-trip the simulator needs to drive the scheduler.
type WazeroDriver struct {
	runtime  wazero.Runtime
	wasiOnce sync.Once

	compiledMu sync.Mutex
	compiled   map[string]wazero.CompiledModule

	// callStack tracks nested current/caller account ids for the duration
	// of an Execute call, mirroring the teacher's lightweight call-stack
	// tracer; it exists for debug logging, not for contract semantics.
	stackMu   sync.Mutex
	callStack []string

	Logger *slog.Logger
}

// NewWazeroDriver creates a WazeroDriver with a fresh wazero runtime.
func NewWazeroDriver(ctx context.Context) (*WazeroDriver, error) {
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("vmdriver: instantiate wasi: %w", err)
	}
	return &WazeroDriver{
		runtime:  rt,
		compiled: make(map[string]wazero.CompiledModule),
		Logger:   slog.Default(),
	}, nil
}

// Close releases the underlying wazero runtime and all compiled modules.
func (d *WazeroDriver) Close(ctx context.Context) error {
	return d.runtime.Close(ctx)
}

func (d *WazeroDriver) enter(accountID string) {
	d.stackMu.Lock()
	d.callStack = append(d.callStack, accountID)
	d.stackMu.Unlock()
}

func (d *WazeroDriver) exit() {
	d.stackMu.Lock()
	if len(d.callStack) > 0 {
		d.callStack = d.callStack[:len(d.callStack)-1]
	}
	d.stackMu.Unlock()
}

// currentCaller returns the account id of the step that is currently one
// level up the call stack, or "" at the top level.
func (d *WazeroDriver) currentCaller() string {
	d.stackMu.Lock()
	defer d.stackMu.Unlock()
	if len(d.callStack) < 2 {
		return ""
	}
	return d.callStack[len(d.callStack)-2]
}

// Execute implements Driver.
func (d *WazeroDriver) Execute(ctx context.Context, req ExecRequest) (DriverResult, error) {
	if req.WasmFile == "" {
		// A plain account with no contract can still be called: the VM
		// Driver contract says the outcome must still be produced, but
		// there is nothing to run. Treat this as a no-op success with no
		// receipts, matching a client account receiving a transfer-only
		// call.
		return DriverResult{
			Outcome: Outcome{Balance: req.Context.AccountBalance, StorageUsage: req.Context.StorageUsage},
			State:   req.State,
		}, nil
	}

	d.enter(req.Context.CurrentAccountID)
	defer d.exit()
	d.logger().Debug("wazero driver: executing",
		"method", req.MethodName, "account", req.Context.CurrentAccountID, "caller", d.currentCaller())

	mod, err := d.compiledModule(ctx, req.WasmFile)
	if err != nil {
		return DriverResult{}, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}

	instance, err := d.runtime.InstantiateModule(ctx, mod, wazero.NewModuleConfig().WithStartFunctions("_initialize"))
	if err != nil {
		return DriverResult{}, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}
	defer instance.Close(ctx)

	payload, err := json.Marshal(execRequestWire{
		Context:        req.Context,
		Input:          req.Input,
		MethodName:     req.MethodName,
		State:          req.State,
		PromiseResults: req.PromiseResults,
	})
	if err != nil {
		return DriverResult{}, fmt.Errorf("vmdriver: marshal request: %w", err)
	}

	resultBytes, err := d.callExecute(ctx, instance, payload)
	if err != nil {
		return DriverResult{}, fmt.Errorf("%w: %v", ErrCrashed, err)
	}

	var result DriverResult
	if err := json.Unmarshal(resultBytes, &result); err != nil {
		return DriverResult{}, fmt.Errorf("%w: %v", ErrMalformedOutcome, err)
	}
	return result, nil
}

type execRequestWire struct {
	Context        VMContext       `json:"context"`
	Input          string          `json:"input"`
	MethodName     string          `json:"method_name"`
	State          []byte          `json:"state"`
	PromiseResults []PromiseResult `json:"promise_results"`
}

func (d *WazeroDriver) compiledModule(ctx context.Context, wasmFile string) (wazero.CompiledModule, error) {
	d.compiledMu.Lock()
	defer d.compiledMu.Unlock()

	if mod, ok := d.compiled[wasmFile]; ok {
		return mod, nil
	}

	code, err := os.ReadFile(wasmFile)
	if err != nil {
		return nil, fmt.Errorf("read wasm file: %w", err)
	}
	mod, err := d.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}
	d.compiled[wasmFile] = mod
	return mod, nil
}

// callExecute writes payload into the instance's linear memory via its
// "allocate" export, invokes "execute" with the (ptr, len) pair, and reads
// back the (ptr, len) pair of the response.
func (d *WazeroDriver) callExecute(ctx context.Context, instance api.Module, payload []byte) ([]byte, error) {
	memory := instance.Memory()
	if memory == nil {
		return nil, fmt.Errorf("module exports no memory")
	}

	allocate := instance.ExportedFunction("allocate")
	execute := instance.ExportedFunction("execute")
	if allocate == nil || execute == nil {
		return nil, fmt.Errorf("module must export allocate and execute")
	}

	allocated, err := allocate.Call(ctx, uint64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}
	ptr := uint32(allocated[0])

	if !memory.Write(ptr, payload) {
		return nil, fmt.Errorf("write request payload out of bounds")
	}

	results, err := execute.Call(ctx, uint64(ptr), uint64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	if len(results) != 2 {
		return nil, fmt.Errorf("execute must return (ptr, len), got %d values", len(results))
	}

	resultPtr, resultLen := uint32(results[0]), uint32(results[1])
	data, ok := memory.Read(resultPtr, resultLen)
	if !ok {
		return nil, fmt.Errorf("read result payload out of bounds")
	}
	// Copy out: memory.Read returns a view into the module's own memory,
	// which is invalid once the instance is closed.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (d *WazeroDriver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
