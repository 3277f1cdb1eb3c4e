// Package vmctx assembles the complete VM context handed to the VM Driver
// for a single step, merging caller-provided overrides with simulator-wide
// defaults and per-account derived fields.
package vmctx

import (
	"github.com/govm-net/sim/account"
	"github.com/govm-net/sim/vmdriver"
)

// CallerContext is the partial context a caller (the scheduler, or a direct
// call_step invocation) supplies. An empty SignerAccountID or
// PredecessorAccountID is filled in by the Builder; the other fields are
// passed through as given.
type CallerContext struct {
	SignerAccountID      string
	PredecessorAccountID string
	PrepaidGas           uint64
	AttachedDeposit      uint64
	IsView               bool
}

// Overrides carries simulator-wide context set via Simulator.SetContext:
// block height, timestamp, and random seed. These are overlaid last, after
// every other Builder rule, onto every VMContext produced until changed
// again.
type Overrides struct {
	BlockHeight uint64
	BlockTime   int64
	RandomSeed  string
}

// Builder assembles VMContext values per §4.2's ordered rules.
type Builder struct {
	store     *account.Store
	overrides Overrides
}

// NewBuilder creates a Builder reading signer keys and balances from store.
func NewBuilder(store *account.Store) *Builder {
	return &Builder{store: store}
}

// SetOverrides replaces the simulator-wide context overlay.
func (b *Builder) SetOverrides(o Overrides) {
	b.overrides = o
}

// Build produces a complete VMContext for a call against callee, applying
// the Context Builder's ordered rules:
//  1. signer_account_id defaults to current_account_id.
//  2. predecessor_account_id defaults to signer_account_id.
//  3. signer_account_pk is derived from the signer account's stored key.
//  4. account_balance / account_locked_balance / storage_usage are
//     snapshotted from the callee.
//  5. The simulator-wide overlay (block height, timestamp, random seed) is
//     applied last.
func (b *Builder) Build(currentAccountID, input string, inputData []vmdriver.PromiseResult, outputDataReceivers []string, caller CallerContext) (vmdriver.VMContext, error) {
	signer := caller.SignerAccountID
	if signer == "" {
		signer = currentAccountID
	}
	predecessor := caller.PredecessorAccountID
	if predecessor == "" {
		predecessor = signer
	}

	callee, err := b.store.Get(currentAccountID)
	if err != nil {
		return vmdriver.VMContext{}, err
	}
	signerAccount := b.store.GetOrCreate(signer)

	return vmdriver.VMContext{
		CurrentAccountID:     currentAccountID,
		SignerAccountID:      signer,
		SignerAccountPK:      signerAccount.SignerKey,
		PredecessorAccountID: predecessor,
		Input:                input,
		InputData:            inputData,
		OutputDataReceivers:  outputDataReceivers,
		PrepaidGas:           caller.PrepaidGas,
		AttachedDeposit:      caller.AttachedDeposit,
		AccountBalance:       callee.Balance,
		AccountLockedBalance: callee.LockedBalance,
		StorageUsage:         callee.StorageUsage,
		IsView:               caller.IsView,
		BlockHeight:          b.overrides.BlockHeight,
		BlockTime:            b.overrides.BlockTime,
		RandomSeed:           b.overrides.RandomSeed,
	}, nil
}
