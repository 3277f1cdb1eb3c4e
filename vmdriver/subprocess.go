package vmdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
)

// SubprocessDriver invokes an external VM Driver binary per call, following
// the named-argument protocol of §6: context, input, wasm-file, method-name,
// state and promise-results are all passed as flags, and the driver must
// exit 0 and write a single JSON document to stdout.
type SubprocessDriver struct {
	// BinaryPath is the VM Driver executable to invoke.
	BinaryPath string
	Logger     *slog.Logger
}

// NewSubprocessDriver creates a SubprocessDriver for the given binary.
func NewSubprocessDriver(binaryPath string) *SubprocessDriver {
	return &SubprocessDriver{BinaryPath: binaryPath, Logger: slog.Default()}
}

// Execute spawns the configured driver binary, feeds it req via CLI flags,
// and parses its stdout document.
func (d *SubprocessDriver) Execute(ctx context.Context, req ExecRequest) (DriverResult, error) {
	args, err := buildArgs(req)
	if err != nil {
		return DriverResult{}, fmt.Errorf("vmdriver: build args: %w", err)
	}

	cmd := exec.CommandContext(ctx, d.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	d.logger().Debug("vmdriver: launching step",
		"method", req.MethodName, "receiver", req.Context.CurrentAccountID)

	if err := cmd.Start(); err != nil {
		return DriverResult{}, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}

	if err := cmd.Wait(); err != nil {
		return DriverResult{}, fmt.Errorf("%w: %v (stderr: %s)", ErrCrashed, err, stderr.String())
	}

	var result DriverResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return DriverResult{}, fmt.Errorf("%w: %v", ErrMalformedOutcome, err)
	}
	return result, nil
}

func (d *SubprocessDriver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// buildArgs serializes req into the named CLI arguments the VM Driver
// protocol expects.
func buildArgs(req ExecRequest) ([]string, error) {
	ctxJSON, err := json.Marshal(req.Context)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}

	args := []string{
		"--context", string(ctxJSON),
		"--input", req.Input,
		"--method-name", req.MethodName,
		"--state", string(req.State),
	}
	if req.WasmFile != "" {
		args = append(args, "--wasm-file", req.WasmFile)
	}
	for _, pr := range req.PromiseResults {
		prJSON, err := json.Marshal(pr)
		if err != nil {
			return nil, fmt.Errorf("marshal promise result: %w", err)
		}
		args = append(args, "--promise-results", string(prJSON))
	}
	return args, nil
}
