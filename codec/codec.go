// Package codec converts between the decoded key/value view of an account's
// contract storage and the encoded blob the VM Driver consumes.
//
// The two representations must be exact inverses of one another
// (decode(encode(s)) == s and encode(decode(b)) == b for any well-formed
// state, i.e. one whose keys are already in Unicode NFC form), which is the
// property this package's tests exist to pin down.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// State is the decoded, external view of an account's persisted storage:
// an opaque key/value mapping.
type State map[string][]byte

// entry is the wire shape of a single key/value pair in the encoded form.
// Keys are carried as plain JSON strings; values are carried as base64
// strings via json's []byte handling. The struct form keeps key ordering
// explicit instead of relying on map iteration order.
type entry struct {
	Key   string `json:"k"`
	Value []byte `json:"v"`
}

// Encode produces the canonical on-account representation of s. Keys are
// Unicode-normalized (NFC) before encoding so that two decoded states that
// differ only by Unicode normalization form encode identically, and sorted
// so the encoding is deterministic regardless of map iteration order.
func Encode(s State) ([]byte, error) {
	entries := make([]entry, 0, len(s))
	for k, v := range s {
		entries = append(entries, entry{Key: norm.NFC.String(k), Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	buf, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("codec: encode state: %w", err)
	}
	return buf, nil
}

// Decode parses an encoded state blob back into its key/value view. An
// empty or nil blob decodes to an empty, non-nil State.
func Decode(b []byte) (State, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return State{}, nil
	}

	var entries []entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("codec: decode state: %w", err)
	}

	out := make(State, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out, nil
}
