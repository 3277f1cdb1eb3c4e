package vmdriver

import "errors"

// ErrLaunchFailed means the driver subprocess could not be spawned at all.
var ErrLaunchFailed = errors.New("vmdriver: launch failed")

// ErrCrashed means the driver subprocess exited with a non-zero status.
var ErrCrashed = errors.New("vmdriver: crashed")

// ErrMalformedOutcome means the driver's stdout could not be parsed as the
// expected result document.
var ErrMalformedOutcome = errors.New("vmdriver: malformed outcome")

// ContractError wraps a VM-reported outcome error (§7's ContractError):
// data flowing through the call graph, never a fatal simulator failure.
type ContractError struct {
	Message string
}

func (e *ContractError) Error() string {
	return e.Message
}
