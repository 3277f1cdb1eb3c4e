// Package vmdriver defines the contract between the simulator and the VM
// Driver: an opaque, single-shot evaluator that executes one contract
// method given a fully populated context, input, prior state, and resolved
// promise results, and returns an outcome plus zero or more receipts.
//
// The VM Driver itself — the WASM execution backend — is out of scope for
// this module; this package only implements the bridge to it (a subprocess
// protocol, and an in-process wazero-backed fallback for exercising the
// scheduler without an external binary).
package vmdriver

import "encoding/json"

// VMContext is the complete input bundle handed to the VM Driver.
type VMContext struct {
	CurrentAccountID     string   `json:"current_account_id"`
	SignerAccountID      string   `json:"signer_account_id"`
	SignerAccountPK      string   `json:"signer_account_pk"`
	PredecessorAccountID string   `json:"predecessor_account_id"`
	Input                string          `json:"input"`
	InputData            []PromiseResult `json:"input_data"`
	OutputDataReceivers  []string        `json:"output_data_receivers"`

	PrepaidGas           uint64 `json:"prepaid_gas"`
	AttachedDeposit      uint64 `json:"attached_deposit"`
	AccountBalance       uint64 `json:"account_balance"`
	AccountLockedBalance uint64 `json:"account_locked_balance"`
	StorageUsage         uint64 `json:"storage_usage"`
	IsView               bool   `json:"is_view"`

	BlockHeight uint64 `json:"block_height"`
	BlockTime   int64  `json:"block_time"`
	RandomSeed  string `json:"random_seed"`
}

// ReturnKind tags the shape of an Outcome's return data.
type ReturnKind int

const (
	// ReturnNone means the call produced no return value.
	ReturnNone ReturnKind = iota
	// ReturnValue means the call returned a direct value (bytes).
	ReturnValue
	// ReturnReceiptIndex means the call's real answer is whatever the
	// receipt at the carried local index returns.
	ReturnReceiptIndex
	// ReturnPlainString means the call returned a bare string rather than
	// a tagged Value; by design this is treated identically to a
	// Successful promise result with an empty payload (see spec §9).
	ReturnPlainString
)

// ReturnData is the tagged union describing an outcome's return value.
type ReturnData struct {
	Kind ReturnKind

	// Value holds the payload when Kind == ReturnValue or
	// ReturnPlainString.
	Value []byte

	// ReceiptIndex holds the local receipt index when
	// Kind == ReturnReceiptIndex.
	ReceiptIndex uint64
}

// wireReturnData is the JSON-visible shape of ReturnData as produced by the
// driver's stdout document.
type wireReturnData struct {
	Type         string `json:"type"`
	Value        []byte `json:"value,omitempty"`
	ReceiptIndex uint64 `json:"receipt_index,omitempty"`
}

// UnmarshalJSON decodes the driver's tagged return_data document.
func (r *ReturnData) UnmarshalJSON(b []byte) error {
	var w wireReturnData
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Type {
	case "", "None":
		r.Kind = ReturnNone
	case "Value":
		r.Kind = ReturnValue
		r.Value = w.Value
	case "ReceiptIndex":
		r.Kind = ReturnReceiptIndex
		r.ReceiptIndex = w.ReceiptIndex
	case "PlainString":
		r.Kind = ReturnPlainString
		r.Value = w.Value
	default:
		r.Kind = ReturnNone
	}
	return nil
}

// MarshalJSON encodes ReturnData back into the driver's tagged shape, the
// same shape UnmarshalJSON reads.
func (r ReturnData) MarshalJSON() ([]byte, error) {
	w := wireReturnData{}
	switch r.Kind {
	case ReturnValue:
		w.Type = "Value"
		w.Value = r.Value
	case ReturnReceiptIndex:
		w.Type = "ReceiptIndex"
		w.ReceiptIndex = r.ReceiptIndex
	case ReturnPlainString:
		w.Type = "PlainString"
		w.Value = r.Value
	default:
		w.Type = "None"
	}
	return json.Marshal(w)
}

// ActionKind tags the kind of a receipt's single action. FunctionCall is
// the only kind this simulator supports; anything else is a fatal
// MalformedReceipt.
type ActionKind string

// FunctionCall is the only supported receipt action kind.
const FunctionCall ActionKind = "FunctionCall"

// Action describes a single action carried by a Receipt.
type Action struct {
	Kind       ActionKind `json:"kind"`
	MethodName string     `json:"method_name"`
	Args       string     `json:"args"`
	Gas        uint64     `json:"gas"`
	Deposit    uint64     `json:"deposit"`
}

// Receipt is a deferred contract call emitted as a side effect of a step.
type Receipt struct {
	ReceiverID     string   `json:"receiver_id"`
	ReceiptIndices []uint64 `json:"receipt_indices"`
	Actions        []Action `json:"actions"`
}

// Outcome is the VM Driver's report on a single executed method.
type Outcome struct {
	Logs         []string   `json:"logs"`
	Balance      uint64     `json:"balance"`
	StorageUsage uint64     `json:"storage_usage"`
	ReturnData   ReturnData `json:"return_data"`
	Err          *string    `json:"err"`
}

// DriverResult is the full document the VM Driver writes to stdout.
type DriverResult struct {
	Outcome  Outcome   `json:"outcome"`
	Receipts []Receipt `json:"receipts"`
	State    []byte    `json:"state"`
	Err      *string   `json:"err"`
}

// PromiseResultKind tags a resolved dependency's outcome.
type PromiseResultKind int

const (
	// PromiseSuccessful means the dependency resolved with a byte payload.
	PromiseSuccessful PromiseResultKind = iota
	// PromiseFailed means the dependency's step failed.
	PromiseFailed
)

// PromiseResult is the materialized outcome of a prior receipt.
type PromiseResult struct {
	Kind  PromiseResultKind
	Value []byte
}

type wirePromiseResult struct {
	Type  string `json:"type"`
	Value []byte `json:"value,omitempty"`
}

// MarshalJSON encodes PromiseResult as the tagged {type, value} shape the
// VM Driver protocol expects for promise-results entries.
func (p PromiseResult) MarshalJSON() ([]byte, error) {
	w := wirePromiseResult{}
	switch p.Kind {
	case PromiseSuccessful:
		w.Type = "Successful"
		w.Value = p.Value
	case PromiseFailed:
		w.Type = "Failed"
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes PromiseResult from the driver's tagged shape.
func (p *PromiseResult) UnmarshalJSON(b []byte) error {
	var w wirePromiseResult
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Type {
	case "Successful":
		p.Kind = PromiseSuccessful
		p.Value = w.Value
	default:
		p.Kind = PromiseFailed
	}
	return nil
}
