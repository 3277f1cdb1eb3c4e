package account

import (
	"github.com/mr-tron/base58"
)

// signerKeyWidth is the number of raw bytes encoded into a signer key, per
// the external VM Driver contract: the first 32 bytes of the account id,
// right-padded with spaces.
const signerKeyWidth = 32

// SignerKey derives an account's signer public key deterministically from
// its account id: the first 32 bytes of the id, right-padded with spaces to
// exactly 32 bytes, encoded with the canonical (Bitcoin) base58 alphabet.
//
// This is a stable contract with the VM Driver and must be reproduced
// bit-exactly; it is a pure function of accountID.
func SignerKey(accountID string) string {
	buf := make([]byte, signerKeyWidth)
	for i := range buf {
		buf[i] = ' '
	}
	copy(buf, accountID[:min(len(accountID), signerKeyWidth)])
	return base58.Encode(buf)
}
