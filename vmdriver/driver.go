package vmdriver

import "context"

// ExecRequest is everything the Driver needs to execute a single contract
// method: the VM context, method arguments, the callee's contract image (if
// any), its current encoded state, and the resolved results of any promise
// dependencies, in dependency order.
type ExecRequest struct {
	Context        VMContext
	Input          string
	WasmFile       string // may be empty for accounts with no contract
	MethodName     string
	State          []byte
	PromiseResults []PromiseResult
}

// Driver is the opaque, single-shot contract evaluator. Implementations are
// blocking: a call to Execute runs to completion before returning, matching
// the single-threaded, synchronous model described in §5.
type Driver interface {
	Execute(ctx context.Context, req ExecRequest) (DriverResult, error)
}
