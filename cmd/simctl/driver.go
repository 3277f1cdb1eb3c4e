package main

import (
	"context"
	"fmt"

	"github.com/govm-net/sim/config"
	"github.com/govm-net/sim/vmdriver"
)

// newDriver builds the VM Driver implied by cfg: the external subprocess
// protocol if a binary path was configured, otherwise the in-process
// wazero fallback so the simulator is exercisable standalone.
func newDriver(ctx context.Context, cfg config.Config) (vmdriver.Driver, func(), error) {
	if cfg.DriverBinaryPath != "" {
		return vmdriver.NewSubprocessDriver(cfg.DriverBinaryPath), func() {}, nil
	}

	driver, err := vmdriver.NewWazeroDriver(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("simctl: create wazero driver: %w", err)
	}
	return driver, func() { driver.Close(ctx) }, nil
}
